package config

import (
	"errors"
	"fmt"

	"duet/pkg/audioengine"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Audio.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("audio: %w", err))
	}
	if err := c.Sync.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sync: %w", err))
	}
	if err := c.Near.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("near: %w", err))
	}
	if err := c.Far.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("far: %w", err))
	}
	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}

	return errors.Join(errs...)
}

// Validate checks AudioConfig for errors.
func (c *AudioConfig) Validate() error {
	switch c.SampleRate {
	case 0, 8000, 12000, 16000, 24000, 44100, 48000:
		// valid
	default:
		return fmt.Errorf("unsupported sample_rate: %d", c.SampleRate)
	}
	if c.BufferMs < 0 {
		return errors.New("buffer_ms must be non-negative")
	}
	return nil
}

// Validate checks SyncConfig for errors.
func (c *SyncConfig) Validate() error {
	if c.DebounceMs < 0 {
		return errors.New("debounce_ms must be non-negative")
	}
	if c.SnapshotMs < 0 {
		return errors.New("snapshot_ms must be non-negative")
	}
	return nil
}

// Validate checks ChannelConfig for errors.
func (c *ChannelConfig) Validate() error {
	var errs []error
	if c.CutoffHz < 0 {
		errs = append(errs, errors.New("cutoff_hz must be non-negative"))
	}
	if c.Filter != "" {
		if _, err := audioengine.ParseFilterKind(c.Filter); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := audioengine.ParseRoute(c.Route); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Validate checks ServerConfig for errors.
func (c *ServerConfig) Validate() error {
	if c.Autoplay && len(c.Library) == 0 {
		return errors.New("autoplay needs at least one library path")
	}
	return nil
}

// Validate checks LogConfig for errors.
func (c *LogConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Level)
	}
	switch c.Format {
	case "", "console", "json":
		// valid
	default:
		return fmt.Errorf("invalid log format: %s (must be console or json)", c.Format)
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return errors.New("rotation limits must be non-negative")
	}
	return nil
}
