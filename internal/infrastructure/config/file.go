package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// fileConfig mirrors Config for YAML/TOML files. Every field is optional;
// durations are strings such as "500ms".
type fileConfig struct {
	Server struct {
		Port        *string  `yaml:"port" toml:"port"`
		Host        *string  `yaml:"host" toml:"host"`
		CORSOrigins []string `yaml:"cors_origins" toml:"cors_origins"`
	} `yaml:"server" toml:"server"`
	Backend struct {
		URL         *string  `yaml:"url" toml:"url"`
		StreamURL   *string  `yaml:"stream_url" toml:"stream_url"`
		InsecureTLS *bool    `yaml:"insecure_tls" toml:"insecure_tls"`
		Timeout     *string  `yaml:"timeout" toml:"timeout"`
		RPS         *float64 `yaml:"rps" toml:"rps"`
	} `yaml:"backend" toml:"backend"`
	Registry struct {
		RefreshInterval *string `yaml:"refresh_interval" toml:"refresh_interval"`
		MaxScreens      *int    `yaml:"max_screens" toml:"max_screens"`
	} `yaml:"registry" toml:"registry"`
	Acquire struct {
		Mode           *string `yaml:"mode" toml:"mode"`
		PollInterval   *string `yaml:"poll_interval" toml:"poll_interval"`
		PrimaryOnly    *bool   `yaml:"primary_only" toml:"primary_only"`
		LegacySingle   *bool   `yaml:"legacy_single" toml:"legacy_single"`
		ReconnectDelay *string `yaml:"reconnect_delay" toml:"reconnect_delay"`
		MaxFrameBytes  *int64  `yaml:"max_frame_bytes" toml:"max_frame_bytes"`
	} `yaml:"acquire" toml:"acquire"`
	View struct {
		TileMinPercent *float64 `yaml:"tile_min_percent" toml:"tile_min_percent"`
		TileMaxPercent *float64 `yaml:"tile_max_percent" toml:"tile_max_percent"`
	} `yaml:"view" toml:"view"`
	Logging struct {
		Level       *string `yaml:"level" toml:"level"`
		Development *bool   `yaml:"development" toml:"development"`
	} `yaml:"logging" toml:"logging"`
}

// LoadFile loads environment configuration and overlays the given YAML or
// TOML file on top of it. The file format is chosen by extension.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	case ".toml":
		err = toml.Unmarshal(data, &fc)
	default:
		return nil, fmt.Errorf("unsupported config file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := fc.apply(cfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func (fc *fileConfig) apply(cfg *Config) error {
	setString(&cfg.Server.Port, fc.Server.Port)
	setString(&cfg.Server.Host, fc.Server.Host)
	if len(fc.Server.CORSOrigins) > 0 {
		cfg.Server.CORSOrigins = fc.Server.CORSOrigins
	}

	setString(&cfg.Backend.URL, fc.Backend.URL)
	setString(&cfg.Backend.StreamURL, fc.Backend.StreamURL)
	setBool(&cfg.Backend.InsecureTLS, fc.Backend.InsecureTLS)
	if fc.Backend.RPS != nil {
		cfg.Backend.RPS = *fc.Backend.RPS
	}

	if fc.Registry.MaxScreens != nil {
		cfg.Registry.MaxScreens = *fc.Registry.MaxScreens
	}

	setString(&cfg.Acquire.Mode, fc.Acquire.Mode)
	setBool(&cfg.Acquire.PrimaryOnly, fc.Acquire.PrimaryOnly)
	setBool(&cfg.Acquire.LegacySingle, fc.Acquire.LegacySingle)
	if fc.Acquire.MaxFrameBytes != nil {
		cfg.Acquire.MaxFrameBytes = *fc.Acquire.MaxFrameBytes
	}

	if fc.View.TileMinPercent != nil {
		cfg.View.TileMinPercent = *fc.View.TileMinPercent
	}
	if fc.View.TileMaxPercent != nil {
		cfg.View.TileMaxPercent = *fc.View.TileMaxPercent
	}

	setString(&cfg.Logging.Level, fc.Logging.Level)
	setBool(&cfg.Logging.Development, fc.Logging.Development)

	durations := []struct {
		name string
		src  *string
		dst  *time.Duration
	}{
		{"backend.timeout", fc.Backend.Timeout, &cfg.Backend.Timeout},
		{"registry.refresh_interval", fc.Registry.RefreshInterval, &cfg.Registry.RefreshInterval},
		{"acquire.poll_interval", fc.Acquire.PollInterval, &cfg.Acquire.PollInterval},
		{"acquire.reconnect_delay", fc.Acquire.ReconnectDelay, &cfg.Acquire.ReconnectDelay},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		parsed, err := time.ParseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dst = parsed
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
