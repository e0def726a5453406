package config

// Config is the root configuration structure.
type Config struct {
	Audio  AudioConfig   `toml:"audio"`
	Sync   SyncConfig    `toml:"sync"`
	Near   ChannelConfig `toml:"near"`
	Far    ChannelConfig `toml:"far"`
	Server ServerConfig  `toml:"server"`
	Log    LogConfig     `toml:"log"`
}

// AudioConfig holds output device settings.
type AudioConfig struct {
	SampleRate int    `toml:"sample_rate"`
	BufferMs   int    `toml:"buffer_ms"`
	Passphrase string `toml:"passphrase"`
}

// SyncConfig holds the timing between the two channels.
type SyncConfig struct {
	OffsetMs   int  `toml:"offset_ms"`
	DebounceMs int  `toml:"debounce_ms"`
	SnapshotMs int  `toml:"snapshot_ms"`
	FilterLink bool `toml:"filter_link"`
}

// ChannelConfig holds the settings of one output channel.
type ChannelConfig struct {
	Enabled  *bool   `toml:"enabled"`
	GainDb   float64 `toml:"gain_db"`
	CutoffHz int     `toml:"cutoff_hz"`
	Filter   string  `toml:"filter"`
	Route    string  `toml:"route"`
}

// ServerConfig holds control socket settings.
type ServerConfig struct {
	Socket   string   `toml:"socket"`
	Playlist string   `toml:"playlist"`
	Library  []string `toml:"library"`
	Autoplay bool     `toml:"autoplay"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}
