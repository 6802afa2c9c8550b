// Package gui is the desktop front end: a searchable video sidebar next to a
// player panel with seek and trim controls.
package gui

import (
	"context"
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"github.com/rs/zerolog"

	"github.com/kikiluvv/trimplayer/internal/catalog"
	"github.com/kikiluvv/trimplayer/internal/config"
	"github.com/kikiluvv/trimplayer/internal/playback"
	"github.com/kikiluvv/trimplayer/internal/player"
	"github.com/kikiluvv/trimplayer/internal/selection"
	"github.com/kikiluvv/trimplayer/internal/trim"
)

// AppID identifies the application to Fyne; the preferences trim store lives under it.
const AppID = "io.github.kikiluvv.trimplayer"

// Options wires the GUI to its collaborators
type Options struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Searcher catalog.Searcher
	Factory  player.BackendFactory
}

// RunGUI opens the main window and blocks until it is closed
func RunGUI(ctx context.Context, opts Options) error {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	myApp := app.NewWithID(AppID)

	store, err := openStore(opts.Logger, cfg.Store, myApp.Preferences())
	if err != nil {
		return fmt.Errorf("open trim store: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctrl := playback.New(opts.Logger, store, opts.Factory,
		playback.WithPollInterval(cfg.Playback.PollInterval),
		playback.WithLoadOptions(player.LoadOptions{
			Muted:        cfg.Player.StartMuted,
			HideControls: cfg.Player.HideControls,
		}),
	)
	defer ctrl.Close()

	sel := selection.New()
	thumbs := NewThumbnailLoader(opts.Logger, nil, cfg.UI.ThumbnailWorkers)
	sidebar := NewSidebar(ctx, opts.Logger, opts.Searcher, sel, thumbs, cfg.Catalog.PageSize, cfg.UI.SearchDebounce)
	defer sidebar.Stop()
	panel := NewPlayerPanel(opts.Logger, ctrl)

	sel.Subscribe(func(v *catalog.VideoRef) {
		sidebar.Refresh()
		if v == nil {
			ctrl.Clear()
			return
		}
		ctrl.Select(*v)
	})
	ctrl.Subscribe(func(s playback.State) {
		fyne.Do(func() { panel.Update(s) })
	})

	w := myApp.NewWindow("trimplayer")
	w.Resize(fyne.NewSize(cfg.UI.WindowWidth, cfg.UI.WindowHeight))

	split := container.NewHSplit(sidebar.Content(), panel.Content())
	split.SetOffset(0.35)
	w.SetContent(split)
	w.SetOnClosed(cancel)

	sidebar.Reload()
	opts.Logger.Info().Str("store", cfg.Store.Backend).Msg("starting gui")
	w.ShowAndRun()

	return nil
}

// openStore picks the trim store backend named in cfg
func openStore(logger zerolog.Logger, cfg config.StoreConfig, prefs fyne.Preferences) (trim.Store, error) {
	if cfg.Backend == config.StoreBackendPreferences {
		return trim.NewPreferencesStore(logger, prefs), nil
	}
	fs, err := trim.OpenFileStore(logger, cfg.Path)
	if err != nil {
		return nil, err
	}
	return fs, nil
}
