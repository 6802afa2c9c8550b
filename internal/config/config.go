package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kikiluvv/trimplayer/pkg/util"
)

type contextKey string

const configKey contextKey = "config"

// Store backends
const (
	StoreBackendFile        = "file"
	StoreBackendPreferences = "preferences"
)

// Environment overrides applied after the config file
const (
	EnvCatalogPath = "TRIMPLAYER_CATALOG_PATH"
	EnvCatalogURL  = "TRIMPLAYER_CATALOG_URL"
	EnvMPVPath     = "TRIMPLAYER_MPV_PATH"
	EnvStorePath   = "TRIMPLAYER_STORE_PATH"
	EnvServerAddr  = "TRIMPLAYER_SERVER_ADDR"
)

// Config holds all application configuration
type Config struct {
	Catalog  CatalogConfig  `yaml:"catalog"`
	Player   PlayerConfig   `yaml:"player"`
	Playback PlaybackConfig `yaml:"playback"`
	Store    StoreConfig    `yaml:"store"`
	UI       UIConfig       `yaml:"ui"`
	Server   ServerConfig   `yaml:"server"`
}

// CatalogConfig selects where the video catalog comes from. An empty Path and URL
// means the embedded sample catalog.
type CatalogConfig struct {
	Path     string `yaml:"path" env:"TRIMPLAYER_CATALOG_PATH"`
	URL      string `yaml:"url" env:"TRIMPLAYER_CATALOG_URL"`
	PageSize int    `yaml:"page_size"`
}

type PlayerConfig struct {
	BinaryPath     string        `yaml:"binary_path" env:"TRIMPLAYER_MPV_PATH"`
	SocketDir      string        `yaml:"socket_dir"`
	HideControls   bool          `yaml:"hide_controls"`
	StartMuted     bool          `yaml:"start_muted"`
	StartupTimeout time.Duration `yaml:"startup_timeout"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
	ExtraArgs      []string      `yaml:"extra_args"`
}

type PlaybackConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path" env:"TRIMPLAYER_STORE_PATH"`
}

type UIConfig struct {
	SearchDebounce   time.Duration `yaml:"search_debounce"`
	ThumbnailWorkers int           `yaml:"thumbnail_workers"`
	WindowWidth      float32       `yaml:"window_width"`
	WindowHeight     float32       `yaml:"window_height"`
}

type ServerConfig struct {
	Address string `yaml:"address" env:"TRIMPLAYER_SERVER_ADDR"`
}

// Load reads configuration from file or returns defaults. Environment overrides
// (including a .env file in the working directory) are applied last.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	cfg.applyEnv()
	cfg.normalize()

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Default returns the built-in configuration
func Default() *Config {
	cfg := defaultConfig()
	cfg.normalize()
	return cfg
}

func defaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			PageSize: 10,
		},
		Player: PlayerConfig{
			BinaryPath:     "mpv",
			HideControls:   true,
			StartMuted:     false,
			StartupTimeout: 15 * time.Second,
			CommandTimeout: 2 * time.Second,
		},
		Playback: PlaybackConfig{
			PollInterval: 100 * time.Millisecond,
		},
		Store: StoreConfig{
			Backend: StoreBackendFile,
			Path:    filepath.Join(homeDir(), ".trimplayer", "trims.json"),
		},
		UI: UIConfig{
			SearchDebounce:   300 * time.Millisecond,
			ThumbnailWorkers: 4,
			WindowWidth:      1100,
			WindowHeight:     700,
		},
		Server: ServerConfig{
			Address: ":8080",
		},
	}
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		EnvCatalogPath: &c.Catalog.Path,
		EnvCatalogURL:  &c.Catalog.URL,
		EnvMPVPath:     &c.Player.BinaryPath,
		EnvStorePath:   &c.Store.Path,
		EnvServerAddr:  &c.Server.Address,
	}
	for key, field := range overrides {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*field = v
		}
	}
}

// normalize replaces zero values left by a partial config file with defaults
func (c *Config) normalize() {
	def := defaultConfig()

	if c.Catalog.PageSize <= 0 {
		c.Catalog.PageSize = def.Catalog.PageSize
	}
	if c.Player.BinaryPath == "" {
		c.Player.BinaryPath = def.Player.BinaryPath
	}
	if c.Player.StartupTimeout <= 0 {
		c.Player.StartupTimeout = def.Player.StartupTimeout
	}
	if c.Player.CommandTimeout <= 0 {
		c.Player.CommandTimeout = def.Player.CommandTimeout
	}
	if c.Playback.PollInterval <= 0 {
		c.Playback.PollInterval = def.Playback.PollInterval
	}
	if c.Store.Backend != StoreBackendPreferences {
		c.Store.Backend = StoreBackendFile
	}
	if c.Store.Path == "" {
		c.Store.Path = def.Store.Path
	}
	c.Store.Path = util.ExpandHome(c.Store.Path)
	c.Catalog.Path = util.ExpandHome(c.Catalog.Path)
	if c.UI.SearchDebounce < 0 {
		c.UI.SearchDebounce = 0
	}
	if c.UI.ThumbnailWorkers <= 0 {
		c.UI.ThumbnailWorkers = def.UI.ThumbnailWorkers
	}
	if c.UI.WindowWidth <= 0 {
		c.UI.WindowWidth = def.UI.WindowWidth
	}
	if c.UI.WindowHeight <= 0 {
		c.UI.WindowHeight = def.UI.WindowHeight
	}
	if c.Server.Address == "" {
		c.Server.Address = def.Server.Address
	}
}

func findConfigFile() string {
	candidates := []string{
		"./trimplayer.yaml",
		"./trimplayer.yml",
		filepath.Join(homeDir(), ".trimplayer", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return os.Getenv("HOME")
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return Default()
}
