package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"duet/pkg/audioengine"
	"duet/pkg/playback"
	"duet/pkg/spec"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultsMatchEngine(t *testing.T) {
	cfg := Default()
	near, err := cfg.Near.Channel()
	if err != nil {
		t.Fatalf("Near.Channel: %v", err)
	}
	if near != playback.DefaultNear() {
		t.Errorf("near = %+v, want %+v", near, playback.DefaultNear())
	}
	far, err := cfg.Far.Channel()
	if err != nil {
		t.Fatalf("Far.Channel: %v", err)
	}
	if far != playback.DefaultFar() {
		t.Errorf("far = %+v, want %+v", far, playback.DefaultFar())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
[sync]
offset_ms = -150
filter_link = true

[near]
gain_db = -6.5
cutoff_hz = 120

[far]
enabled = false
route = "both"

[log]
level = "debug"
`)
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Sync.OffsetMs != -150 || !cfg.Sync.FilterLink {
		t.Errorf("Sync = %+v", cfg.Sync)
	}
	if cfg.Sync.DebounceMs != spec.CompletionDebounceMs {
		t.Errorf("DebounceMs = %d, want default %d", cfg.Sync.DebounceMs, spec.CompletionDebounceMs)
	}

	near, _ := cfg.Near.Channel()
	if near.GainDb != -6.5 || near.CutoffHz != 120 || near.Kind != audioengine.HighPass || !near.Enabled {
		t.Errorf("near = %+v", near)
	}
	far, _ := cfg.Far.Channel()
	if far.Enabled {
		t.Errorf("far.Enabled = true, want false from file")
	}
	if far.Route != audioengine.RouteBoth || far.CutoffHz != spec.DefaultFarCutoffHz {
		t.Errorf("far = %+v", far)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DUET_OFFSET_MS", "200")
	t.Setenv("DUET_FAR_ENABLED", "false")
	t.Setenv("DUET_NEAR_GAIN_DB", "3")
	t.Setenv("DUET_LIBRARY", strings.Join([]string{"/a", "/b"}, string(os.PathListSeparator)))
	t.Setenv("DUET_SAMPLE_RATE", "not-a-number")

	cfg, err := LoadFrom("")
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Sync.OffsetMs != 200 {
		t.Errorf("OffsetMs = %d, want 200", cfg.Sync.OffsetMs)
	}
	if *cfg.Far.Enabled {
		t.Errorf("Far.Enabled = true, want false")
	}
	if cfg.Near.GainDb != 3 {
		t.Errorf("Near.GainDb = %v, want 3", cfg.Near.GainDb)
	}
	if len(cfg.Server.Library) != 2 {
		t.Errorf("Library = %v, want two entries", cfg.Server.Library)
	}
	if cfg.Audio.SampleRate != spec.SampleRate {
		t.Errorf("SampleRate = %d, want default for unparsable override", cfg.Audio.SampleRate)
	}
}

func TestLoadFromBadFile(t *testing.T) {
	path := writeConfig(t, "[sync\noffset_ms = ")
	if _, err := LoadFrom(path); err == nil {
		t.Errorf("LoadFrom accepted malformed TOML")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Near.Filter = "bandpass"
	cfg.Far.Route = "center"
	cfg.Sync.DebounceMs = -1
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate accepted an invalid config")
	}
	for _, want := range []string{"near:", "far:", "sync:", "log:"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate error %q does not mention %s", err, want)
		}
	}
}

func TestEngineOptions(t *testing.T) {
	cfg := Default()
	cfg.Sync.SnapshotMs = 500
	opts, err := cfg.EngineOptions()
	if err != nil {
		t.Fatalf("EngineOptions: %v", err)
	}
	if len(opts) != 6 {
		t.Errorf("EngineOptions returned %d options, want 6", len(opts))
	}

	cfg.Far.Filter = "notch"
	if _, err := cfg.EngineOptions(); err == nil {
		t.Errorf("EngineOptions accepted an invalid filter")
	}
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.Audio.Passphrase = "secret"
	if got := cfg.Redacted().Audio.Passphrase; got == "secret" {
		t.Errorf("Redacted kept the passphrase")
	}
	if cfg.Audio.Passphrase != "secret" {
		t.Errorf("Redacted modified the original")
	}
}
