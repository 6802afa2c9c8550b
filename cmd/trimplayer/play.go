package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/kikiluvv/trimplayer/internal/catalog"
	"github.com/kikiluvv/trimplayer/internal/config"
	"github.com/kikiluvv/trimplayer/internal/playback"
	"github.com/kikiluvv/trimplayer/internal/player"
	"github.com/kikiluvv/trimplayer/internal/trim"
	"github.com/kikiluvv/trimplayer/pkg/util"
)

// playHeadless plays video inside its trim and returns once playback pauses
// at the trim end, the player fails, or ctx is cancelled
func playHeadless(ctx context.Context, cfg *config.Config, store trim.Store, factory player.BackendFactory, video catalog.VideoRef) error {
	ctrl := playback.New(log.Logger, store, factory,
		playback.WithPollInterval(cfg.Playback.PollInterval),
		playback.WithLoadOptions(player.LoadOptions{
			Muted: cfg.Player.StartMuted,
		}),
	)
	defer ctrl.Close()

	finished := make(chan error, 1)
	report := func(err error) {
		select {
		case finished <- err:
		default:
		}
	}

	wasReady := false
	cancel := ctrl.Subscribe(func(s playback.State) {
		switch {
		case s.Err != nil:
			report(s.Err)
		case s.AtTrimEnd:
			report(nil)
		case s.IsReady && !wasReady:
			wasReady = true
			lo, hi := s.Bounds()
			log.Info().
				Str("video", video.VideoID).
				Str("start", util.FormatSeconds(lo)).
				Str("end", util.FormatSeconds(hi)).
				Msg("playing trim")
		}
	})
	defer cancel()

	ctrl.Select(video)

	select {
	case err := <-finished:
		if err != nil {
			return fmt.Errorf("play %s: %w", video.VideoID, err)
		}
		log.Info().Str("video", video.VideoID).Msg("reached trim end")
		return nil
	case <-ctx.Done():
		log.Info().Msg("interrupted")
		return nil
	}
}
