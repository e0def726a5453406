package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"duet/pkg/audioengine"
	"duet/pkg/playback"
)

// Load reads configuration from standard locations with environment overrides.
// Search order: ~/.duetrc, $XDG_CONFIG_HOME/duet/config.toml, ~/.config/duet/config.toml
func Load() (*Config, error) {
	return LoadFrom(findConfigFile())
}

// LoadFrom reads configuration from a specific file path. An empty path
// skips the file and uses defaults plus environment.
func LoadFrom(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	// Apply defaults, then environment variable overrides
	cfg.ApplyDefaults()
	applyEnvOverrides(cfg)

	return cfg, nil
}

// findConfigFile returns the first existing config file path.
func findConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	paths := []string{
		filepath.Join(home, ".duetrc"),
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	paths = append(paths, filepath.Join(xdgConfig, "duet", "config.toml"))

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	// Audio
	envInt("DUET_SAMPLE_RATE", &cfg.Audio.SampleRate)
	envInt("DUET_BUFFER_MS", &cfg.Audio.BufferMs)
	envString("DUET_PASSPHRASE", &cfg.Audio.Passphrase)

	// Sync
	envInt("DUET_OFFSET_MS", &cfg.Sync.OffsetMs)
	envInt("DUET_DEBOUNCE_MS", &cfg.Sync.DebounceMs)
	envInt("DUET_SNAPSHOT_MS", &cfg.Sync.SnapshotMs)
	envBool("DUET_FILTER_LINK", &cfg.Sync.FilterLink)

	// Channels
	for prefix, ch := range map[string]*ChannelConfig{"DUET_NEAR_": &cfg.Near, "DUET_FAR_": &cfg.Far} {
		envBool(prefix+"ENABLED", ch.Enabled)
		envFloat(prefix+"GAIN_DB", &ch.GainDb)
		envInt(prefix+"CUTOFF_HZ", &ch.CutoffHz)
		envString(prefix+"FILTER", &ch.Filter)
		envString(prefix+"ROUTE", &ch.Route)
	}

	// Server
	envString("DUET_SOCKET", &cfg.Server.Socket)
	envString("DUET_PLAYLIST", &cfg.Server.Playlist)
	if v := os.Getenv("DUET_LIBRARY"); v != "" {
		cfg.Server.Library = filepath.SplitList(v)
	}

	// Log
	envString("DUET_LOG_LEVEL", &cfg.Log.Level)
	envString("DUET_LOG_FORMAT", &cfg.Log.Format)
	envString("DUET_LOG_FILE", &cfg.Log.File)
}

// Channel converts the section into the engine's channel setting.
func (c *ChannelConfig) Channel() (playback.ChannelConfig, error) {
	kind, err := audioengine.ParseFilterKind(c.Filter)
	if err != nil {
		return playback.ChannelConfig{}, err
	}
	route, err := audioengine.ParseRoute(c.Route)
	if err != nil {
		return playback.ChannelConfig{}, err
	}
	return playback.ChannelConfig{
		GainDb:   c.GainDb,
		Enabled:  c.Enabled == nil || *c.Enabled,
		CutoffHz: c.CutoffHz,
		Kind:     kind,
		Route:    route,
	}, nil
}

// EngineOptions builds the playback options described by the config.
func (c *Config) EngineOptions() ([]playback.Option, error) {
	near, err := c.Near.Channel()
	if err != nil {
		return nil, fmt.Errorf("near: %w", err)
	}
	far, err := c.Far.Channel()
	if err != nil {
		return nil, fmt.Errorf("far: %w", err)
	}
	return []playback.Option{
		playback.WithChannelConfig(playback.Near, near),
		playback.WithChannelConfig(playback.Far, far),
		playback.WithSyncOffset(c.Sync.OffsetMs),
		playback.WithDebounce(time.Duration(c.Sync.DebounceMs) * time.Millisecond),
		playback.WithSnapshotInterval(time.Duration(c.Sync.SnapshotMs) * time.Millisecond),
		playback.WithFilterLink(c.Sync.FilterLink),
	}, nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Audio.Passphrase != "" {
		c.Audio.Passphrase = strings.Repeat("*", 8)
	}
	return c
}
