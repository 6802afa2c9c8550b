package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kikiluvv/trimplayer/internal/catalog"
	"github.com/kikiluvv/trimplayer/internal/config"
	"github.com/kikiluvv/trimplayer/internal/gui"
	"github.com/kikiluvv/trimplayer/internal/logging"
	"github.com/kikiluvv/trimplayer/internal/player"
	"github.com/kikiluvv/trimplayer/internal/trim"
	"github.com/kikiluvv/trimplayer/pkg/util"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "trimplayer",
	Short: "trimplayer - browse videos and play them inside a trim window",
	Long:  "A desktop video browser that plays each video only between its saved trim start and end.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logging
		logging.Init(verbose)

		// Load config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// Store config in context
		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		searcher, err := openSearcher(cfg)
		if err != nil {
			return err
		}
		factory, err := mpvFactory(cfg)
		if err != nil {
			return err
		}

		return gui.RunGUI(cmd.Context(), gui.Options{
			Config:   cfg,
			Logger:   log.Logger,
			Searcher: searcher,
			Factory:  factory,
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./trimplayer.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(trimCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(configCmd)
}

var listPage int

var listCmd = &cobra.Command{
	Use:   "list [query]",
	Short: "List catalog videos",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		searcher, err := openSearcher(cfg)
		if err != nil {
			return err
		}

		q := catalog.Query{Page: listPage, PageSize: cfg.Catalog.PageSize}
		if len(args) == 1 {
			q.Search = args[0]
		}
		page, err := searcher.Search(cmd.Context(), q)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Page %d of %d (%d videos)\n", page.CurrentPage, max(page.TotalPages, 1), page.TotalResults)
		for _, v := range page.Refs() {
			fmt.Fprintf(out, "%-14s %s\n", v.VideoID, v.Title)
		}
		return nil
	},
}

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the catalog over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		if serveAddr != "" {
			cfg.Server.Address = serveAddr
		}

		cat, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			return err
		}

		app := catalog.NewServer(catalog.NewHandler(log.Logger, cat, cfg.Catalog.PageSize))

		go func() {
			<-cmd.Context().Done()
			if err := app.Shutdown(); err != nil {
				log.Error().Err(err).Msg("server shutdown failed")
			}
		}()

		log.Info().
			Str("addr", cfg.Server.Address).
			Int("videos", cat.Len()).
			Msg("serving catalog")

		return app.Listen(cfg.Server.Address)
	},
}

var trimCmd = &cobra.Command{
	Use:   "trim",
	Short: "Saved trim commands",
}

var trimShowCmd = &cobra.Command{
	Use:   "show <videoId>",
	Short: "Show the saved trim of a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openFileStore(cmd.Context())
		if err != nil {
			return err
		}

		r, ok := store.Load(args[0])
		if !ok {
			return fmt.Errorf("no trim saved for %s", args[0])
		}
		return printYAML(cmd, map[string]trim.Range{args[0]: r})
	},
}

var trimListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all saved trims",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openFileStore(cmd.Context())
		if err != nil {
			return err
		}
		return printYAML(cmd, store.Entries())
	},
}

var (
	trimStart string
	trimEnd   string
)

var trimSetCmd = &cobra.Command{
	Use:   "set <videoId>",
	Short: "Save a trim for a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := util.ParseSeconds(trimStart)
		if err != nil {
			return fmt.Errorf("--start: %w", err)
		}
		r := trim.Range{Start: start}
		if trimEnd != "" {
			end, err := util.ParseSeconds(trimEnd)
			if err != nil {
				return fmt.Errorf("--end: %w", err)
			}
			r = r.WithEnd(end)
		}
		if err := r.Validate(0); err != nil {
			return err
		}

		store, err := openFileStore(cmd.Context())
		if err != nil {
			return err
		}
		if err := store.Save(args[0], r); err != nil {
			return err
		}

		ev := log.Info().Str("video", args[0]).Str("start", util.FormatSeconds(r.Start))
		if r.End != nil {
			ev = ev.Str("end", util.FormatSeconds(*r.End))
		}
		ev.Msg("trim saved")
		return nil
	},
}

var playCmd = &cobra.Command{
	Use:   "play <videoId>",
	Short: "Play a video inside its trim without the UI",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		factory, err := mpvFactory(cfg)
		if err != nil {
			return err
		}
		store, err := openFileStore(cmd.Context())
		if err != nil {
			return err
		}

		video := catalog.VideoRef{VideoID: args[0]}
		if cat, err := catalog.Load(cfg.Catalog.Path); err == nil {
			if ref, ok := cat.Lookup(args[0]); ok {
				video = ref
			}
		}

		return playHeadless(cmd.Context(), cfg, store, factory, video)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printYAML(cmd, config.FromContext(cmd.Context()))
	},
}

var configForce bool

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration to a file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "trimplayer.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if util.FileExists(path) && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}

		log.Info().Str("path", path).Msg("config written")
		return nil
	},
}

func init() {
	listCmd.Flags().IntVar(&listPage, "page", 1, "page number")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")

	trimSetCmd.Flags().StringVar(&trimStart, "start", "0", "trim start (SS, MM:SS or HH:MM:SS.mmm)")
	trimSetCmd.Flags().StringVar(&trimEnd, "end", "", "trim end; empty plays to the end of the video")
	trimCmd.AddCommand(trimShowCmd)
	trimCmd.AddCommand(trimListCmd)
	trimCmd.AddCommand(trimSetCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

// openSearcher returns the remote catalog when a URL is configured, else the
// catalog file or the embedded sample
func openSearcher(cfg *config.Config) (catalog.Searcher, error) {
	if cfg.Catalog.URL != "" {
		client, err := catalog.NewClient(cfg.Catalog.URL, nil)
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	return cat, nil
}

func mpvFactory(cfg *config.Config) (player.BackendFactory, error) {
	return player.NewMPVFactory(log.Logger, player.MPVConfig{
		BinaryPath:     cfg.Player.BinaryPath,
		SocketDir:      cfg.Player.SocketDir,
		ExtraArgs:      cfg.Player.ExtraArgs,
		StartupTimeout: cfg.Player.StartupTimeout,
		CommandTimeout: cfg.Player.CommandTimeout,
	})
}

// openFileStore opens the trim file. The preferences backend belongs to the
// desktop app and cannot be read from the command line.
func openFileStore(ctx context.Context) (*trim.FileStore, error) {
	cfg := config.FromContext(ctx)
	if cfg.Store.Backend != config.StoreBackendFile {
		return nil, errors.New("trim commands need the file store backend")
	}
	return trim.OpenFileStore(log.Logger, cfg.Store.Path)
}

func printYAML(cmd *cobra.Command, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
