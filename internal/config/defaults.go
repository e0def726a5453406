package config

import (
	"os"
	"path/filepath"

	"duet/pkg/spec"
)

func boolPtr(b bool) *bool { return &b }

// defaultPlaylist is the list file ADD appends to.
func defaultPlaylist() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".duet-library.m3u")
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate: spec.SampleRate,
			BufferMs:   100,
		},
		Sync: SyncConfig{
			DebounceMs: spec.CompletionDebounceMs,
			SnapshotMs: spec.SnapshotIntervalMs,
		},
		Near: ChannelConfig{
			Enabled:  boolPtr(true),
			CutoffHz: spec.DefaultNearCutoffHz,
			Filter:   "highpass",
			Route:    "left",
		},
		Far: ChannelConfig{
			Enabled:  boolPtr(true),
			CutoffHz: spec.DefaultFarCutoffHz,
			Filter:   "lowpass",
			Route:    "right",
		},
		Server: ServerConfig{
			Socket:   filepath.Join(os.TempDir(), "duet.sock"),
			Playlist: defaultPlaylist(),
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	d := Default()

	// Audio
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = d.Audio.SampleRate
	}
	if c.Audio.BufferMs == 0 {
		c.Audio.BufferMs = d.Audio.BufferMs
	}

	// Sync
	if c.Sync.DebounceMs == 0 {
		c.Sync.DebounceMs = d.Sync.DebounceMs
	}
	if c.Sync.SnapshotMs == 0 {
		c.Sync.SnapshotMs = d.Sync.SnapshotMs
	}

	// Channels
	c.Near.applyDefaults(d.Near)
	c.Far.applyDefaults(d.Far)

	// Server
	if c.Server.Socket == "" {
		c.Server.Socket = d.Server.Socket
	}
	if c.Server.Playlist == "" {
		c.Server.Playlist = d.Server.Playlist
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = d.Log.MaxSizeMB
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = d.Log.MaxBackups
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = d.Log.MaxAgeDays
	}
}

func (c *ChannelConfig) applyDefaults(d ChannelConfig) {
	if c.Enabled == nil {
		c.Enabled = boolPtr(*d.Enabled)
	}
	if c.CutoffHz == 0 {
		c.CutoffHz = d.CutoffHz
	}
	if c.Filter == "" {
		c.Filter = d.Filter
	}
	if c.Route == "" {
		c.Route = d.Route
	}
}
