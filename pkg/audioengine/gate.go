package audioengine

import (
	"fmt"
	"strings"
)

type FilterKind int

const (
	HighPass FilterKind = iota
	LowPass
)

func (k FilterKind) String() string {
	if k == LowPass {
		return "lowpass"
	}
	return "highpass"
}

func ParseFilterKind(s string) (FilterKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "highpass", "high", "hp":
		return HighPass, nil
	case "lowpass", "low", "lp":
		return LowPass, nil
	}
	return HighPass, fmt.Errorf("invalid filter kind %q (must be highpass or lowpass)", s)
}

// BandBank is a fixed, ordered set of frequency bands with a settable level.
// Levels are in dB; 0 is unity.
type BandBank interface {
	NumBands() int
	CenterFreq(band int) float64
	LevelRange() (lo, hi float64)
	SetBandLevel(band int, db float64) error
}

// GateLevels computes the per-band level for a cutoff. A band is either at
// unity or at floor, nothing in between.
func GateLevels(centers []float64, floor float64, cutoffHz int, kind FilterKind) []float64 {
	cut := float64(cutoffHz)
	levels := make([]float64, len(centers))
	for i, c := range centers {
		attenuate := false
		switch kind {
		case HighPass:
			attenuate = c < cut
		case LowPass:
			attenuate = c > cut
		}
		if attenuate {
			levels[i] = floor
		}
	}
	return levels
}

// SpectralGate approximates a crossover filter by gating whole bands of a BandBank.
type SpectralGate struct {
	bank   BandBank
	cutoff int
	kind   FilterKind
	levels []float64
}

func NewSpectralGate(bank BandBank) *SpectralGate {
	return &SpectralGate{bank: bank}
}

// Centers returns the bank's center frequencies in band order.
func (g *SpectralGate) Centers() []float64 {
	n := g.bank.NumBands()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = g.bank.CenterFreq(i)
	}
	return out
}

// ApplyCutoff recomputes every band from scratch. On a band failure the
// remaining bands are still written and the first error is returned.
func (g *SpectralGate) ApplyCutoff(cutoffHz int, kind FilterKind) error {
	floor, _ := g.bank.LevelRange()
	levels := GateLevels(g.Centers(), floor, cutoffHz, kind)

	var firstErr error
	for i, lv := range levels {
		if err := g.bank.SetBandLevel(i, lv); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("band %d: %w", i, err)
		}
	}
	g.cutoff = cutoffHz
	g.kind = kind
	g.levels = levels
	return firstErr
}

func (g *SpectralGate) Cutoff() (int, FilterKind) { return g.cutoff, g.kind }

// Levels returns a copy of the last applied band levels.
func (g *SpectralGate) Levels() []float64 {
	return append([]float64(nil), g.levels...)
}
