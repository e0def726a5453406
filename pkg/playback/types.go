package playback

import (
	"fmt"
	"strings"

	"duet/pkg/audioengine"
	"duet/pkg/spec"
)

// Track is an immutable playlist entry. ID is the opaque source identifier
// handed to the Opener.
type Track struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	DurationMs int    `json:"duration_ms"`
	Art        string `json:"art,omitempty"`
}

// ChannelID names one of the two output paths.
type ChannelID int

const (
	Near ChannelID = iota
	Far
)

func (c ChannelID) String() string {
	if c == Far {
		return "far"
	}
	return "near"
}

func ParseChannel(s string) (ChannelID, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "near", "earpiece":
		return Near, nil
	case "far", "speaker":
		return Far, nil
	}
	return Near, fmt.Errorf("%w: unknown channel %q", ErrInvalidCommand, s)
}

// ChannelConfig is the per-channel setting that survives teardown.
type ChannelConfig struct {
	GainDb   float64
	Enabled  bool
	CutoffHz int
	Kind     audioengine.FilterKind
	Route    audioengine.Route
}

// DefaultNear is the near channel's default: high-pass at 50 Hz on the left output.
func DefaultNear() ChannelConfig {
	return ChannelConfig{
		Enabled:  true,
		CutoffHz: spec.DefaultNearCutoffHz,
		Kind:     audioengine.HighPass,
		Route:    audioengine.RouteLeft,
	}
}

// DefaultFar is the far channel's default: low-pass at 15 kHz on the right output.
func DefaultFar() ChannelConfig {
	return ChannelConfig{
		Enabled:  true,
		CutoffHz: spec.DefaultFarCutoffHz,
		Kind:     audioengine.LowPass,
		Route:    audioengine.RouteRight,
	}
}
