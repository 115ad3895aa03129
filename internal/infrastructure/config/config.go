package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Acquisition modes.
const (
	ModeStream = "stream"
	ModePoll   = "poll"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Backend   BackendConfig
	Registry  RegistryConfig
	Acquire   AcquireConfig
	View      ViewConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds the browser-facing HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"VIEWER_PORT" default:"8090"`
	Host string `envconfig:"VIEWER_HOST" default:"127.0.0.1"`
	// CORSOrigins lists browser origins allowed to call the API
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

// BackendConfig describes the remote monitor backend.
type BackendConfig struct {
	URL         string        `envconfig:"BACKEND_URL" default:"https://127.0.0.1:8080"`
	StreamURL   string        `envconfig:"BACKEND_STREAM_URL" default:""`
	InsecureTLS bool          `envconfig:"BACKEND_INSECURE_TLS" default:"false"`
	Timeout     time.Duration `envconfig:"BACKEND_TIMEOUT" default:"10s"`
	RPS         float64       `envconfig:"BACKEND_RPS" default:"0"`
}

// RegistryConfig controls monitor list refreshes.
type RegistryConfig struct {
	// RefreshInterval <= 0 means fetch once on startup.
	RefreshInterval time.Duration `envconfig:"REGISTRY_REFRESH" default:"2s"`
	// MaxScreens caps the screen count a registry entry may claim.
	MaxScreens int `envconfig:"MAX_SCREENS" default:"16"`
}

// AcquireConfig controls how frames are acquired for the selected monitor.
type AcquireConfig struct {
	Mode           string        `envconfig:"ACQUIRE_MODE" default:"stream"`
	PollInterval   time.Duration `envconfig:"POLL_INTERVAL" default:"500ms"`
	PrimaryOnly    bool          `envconfig:"PRIMARY_ONLY" default:"false"`
	LegacySingle   bool          `envconfig:"LEGACY_SINGLE" default:"false"`
	ReconnectDelay time.Duration `envconfig:"STREAM_RECONNECT_DELAY" default:"0s"`
	MaxFrameBytes  int64         `envconfig:"MAX_FRAME_BYTES" default:"33554432"`
}

// ViewConfig holds still-image tile clamp constants, in percent of page width.
type ViewConfig struct {
	TileMinPercent float64 `envconfig:"TILE_MIN_PERCENT" default:"20"`
	TileMaxPercent float64 `envconfig:"TILE_MAX_PERCENT" default:"90"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting for the browser-facing API.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8090",
			Host:        "127.0.0.1",
			CORSOrigins: []string{"*"},
		},
		Backend: BackendConfig{
			URL:     "https://127.0.0.1:8080",
			Timeout: 10 * time.Second,
		},
		Registry: RegistryConfig{
			RefreshInterval: 2 * time.Second,
			MaxScreens:      16,
		},
		Acquire: AcquireConfig{
			Mode:          ModeStream,
			PollInterval:  500 * time.Millisecond,
			MaxFrameBytes: 32 << 20,
		},
		View: ViewConfig{
			TileMinPercent: 20,
			TileMaxPercent: 90,
		},
		Logging: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
	}
}

// Validate rejects settings the viewer cannot run with.
func (c *Config) Validate() error {
	if c.Acquire.Mode != ModeStream && c.Acquire.Mode != ModePoll {
		return fmt.Errorf("invalid acquire mode %q (must be %s or %s)", c.Acquire.Mode, ModeStream, ModePoll)
	}
	if c.Acquire.Mode == ModePoll && c.Acquire.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.Acquire.PollInterval)
	}
	if c.Acquire.ReconnectDelay < 0 {
		return fmt.Errorf("reconnect delay must not be negative, got %s", c.Acquire.ReconnectDelay)
	}
	if c.Registry.MaxScreens < 1 {
		return fmt.Errorf("max screens must be at least 1, got %d", c.Registry.MaxScreens)
	}
	if c.Acquire.MaxFrameBytes <= 0 {
		return fmt.Errorf("max frame bytes must be positive, got %d", c.Acquire.MaxFrameBytes)
	}
	if c.View.TileMinPercent <= 0 || c.View.TileMaxPercent > 100 || c.View.TileMinPercent > c.View.TileMaxPercent {
		return fmt.Errorf("invalid tile clamp [%g, %g]", c.View.TileMinPercent, c.View.TileMaxPercent)
	}
	u, err := url.Parse(c.Backend.URL)
	if err != nil {
		return fmt.Errorf("invalid backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend url must use http or https, got %q", c.Backend.URL)
	}
	if c.Backend.StreamURL != "" {
		su, err := url.Parse(c.Backend.StreamURL)
		if err != nil {
			return fmt.Errorf("invalid stream url: %w", err)
		}
		if su.Scheme != "ws" && su.Scheme != "wss" {
			return fmt.Errorf("stream url must use ws or wss, got %q", c.Backend.StreamURL)
		}
	}
	return nil
}

// StreamBase returns the websocket base URL: the explicit stream URL if
// set, otherwise the backend URL with https→wss / http→ws.
func (c *Config) StreamBase() string {
	if c.Backend.StreamURL != "" {
		return c.Backend.StreamURL
	}
	u, err := url.Parse(c.Backend.URL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String()
}
