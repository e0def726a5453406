package audioengine

import (
	"sync"

	"github.com/faiface/beep"
)

// ApplyStereoGain scales each side of a stereo buffer in place, clipping to [-1, 1].
func ApplyStereoGain(samples [][2]float64, left, right float64) {
	for i := range samples {
		samples[i][0] = clip(samples[i][0] * left)
		samples[i][1] = clip(samples[i][1] * right)
	}
}

func clip(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// StereoGain is a streamer stage holding the live (left, right) amplitudes.
// It is the GainSink used by the beep backend.
type StereoGain struct {
	mu    sync.Mutex
	s     beep.Streamer
	left  float64
	right float64
}

func NewStereoGain(s beep.Streamer) *StereoGain {
	return &StereoGain{s: s, left: 1, right: 1}
}

func (g *StereoGain) SetChannelGains(left, right float64) error {
	g.mu.Lock()
	g.left, g.right = left, right
	g.mu.Unlock()
	return nil
}

func (g *StereoGain) Gains() (float64, float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.left, g.right
}

func (g *StereoGain) Stream(samples [][2]float64) (int, bool) {
	n, ok := g.s.Stream(samples)
	l, r := g.Gains()
	ApplyStereoGain(samples[:n], l, r)
	return n, ok
}

func (g *StereoGain) Err() error { return g.s.Err() }
