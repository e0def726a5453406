package audioengine

import (
	"fmt"
	"math"
	"sync"

	"github.com/faiface/beep"
)

// EQFreqs are the center frequencies of the default band bank.
var EQFreqs = []float64{70, 180, 320, 600, 1000, 3000, 6000, 12000, 14000, 16000}

const (
	eqQ        = 1.4
	eqMinLevel = -15.0
	eqMaxLevel = 15.0
)

// EQBank is a chain of peaking biquads, one per band, that also satisfies
// BandBank. Levels can change while the bank is streaming.
//
//	[Source] -> [EQBank] -> [gain] -> [Ctrl] -> [Mixer]
type EQBank struct {
	mu      sync.Mutex
	s       beep.Streamer
	sr      float64
	centers []float64
	levels  []float64
	filters []biquad
}

func NewEQBank(sr beep.SampleRate, centers []float64) *EQBank {
	if len(centers) == 0 {
		centers = EQFreqs
	}
	b := &EQBank{
		sr:      float64(sr),
		centers: append([]float64(nil), centers...),
		levels:  make([]float64, len(centers)),
		filters: make([]biquad, len(centers)),
	}
	for i, c := range b.centers {
		b.filters[i] = biquad{freq: c, q: eqQ}
	}
	return b
}

// Wrap sets the upstream streamer and returns the bank as a beep.Streamer.
func (b *EQBank) Wrap(s beep.Streamer) beep.Streamer {
	b.mu.Lock()
	b.s = s
	b.mu.Unlock()
	return b
}

func (b *EQBank) NumBands() int { return len(b.centers) }

func (b *EQBank) CenterFreq(band int) float64 {
	if band < 0 || band >= len(b.centers) {
		return 0
	}
	return b.centers[band]
}

func (b *EQBank) LevelRange() (float64, float64) { return eqMinLevel, eqMaxLevel }

func (b *EQBank) SetBandLevel(band int, db float64) error {
	if band < 0 || band >= len(b.centers) {
		return fmt.Errorf("band %d out of range [0,%d)", band, len(b.centers))
	}
	b.mu.Lock()
	b.levels[band] = math.Max(eqMinLevel, math.Min(eqMaxLevel, db))
	b.mu.Unlock()
	return nil
}

// BandLevel reports the stored level of a band.
func (b *EQBank) BandLevel(band int) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if band < 0 || band >= len(b.levels) {
		return 0
	}
	return b.levels[band]
}

func (b *EQBank) Stream(samples [][2]float64) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.s == nil {
		return 0, false
	}
	n, ok := b.s.Stream(samples)
	for i := range b.filters {
		b.filters[i].process(samples[:n], b.levels[i], b.sr)
	}
	return n, ok
}

func (b *EQBank) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.s == nil {
		return nil
	}
	return b.s.Err()
}

// Process runs the bank over an in-memory buffer without a beep pipeline.
func (b *EQBank) Process(samples [][2]float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.filters {
		b.filters[i].process(samples, b.levels[i], b.sr)
	}
}

// biquad is an RBJ cookbook peaking filter with per-channel state.
type biquad struct {
	freq float64
	q    float64

	x1, x2 [2]float64
	y1, y2 [2]float64

	lastGain           float64
	b0, b1, b2, a1, a2 float64
	inited             bool
}

func (f *biquad) coeffs(dB, sr float64) {
	if f.inited && dB == f.lastGain {
		return
	}
	f.lastGain = dB
	f.inited = true

	a := math.Pow(10, dB/40)
	w0 := 2 * math.Pi * f.freq / sr
	sinW0 := math.Sin(w0)
	cosW0 := math.Cos(w0)
	alpha := sinW0 / (2 * f.q)

	a0 := 1 + alpha/a
	f.b0 = (1 + alpha*a) / a0
	f.b1 = (-2 * cosW0) / a0
	f.b2 = (1 - alpha*a) / a0
	f.a1 = (-2 * cosW0) / a0
	f.a2 = (1 - alpha/a) / a0
}

func (f *biquad) process(samples [][2]float64, dB, sr float64) {
	// unity bands pass through untouched
	if dB > -0.1 && dB < 0.1 {
		return
	}
	// above Nyquist the filter is undefined
	if f.freq >= sr/2 {
		return
	}
	f.coeffs(dB, sr)
	for i := range samples {
		for ch := 0; ch < 2; ch++ {
			x := samples[i][ch]
			y := f.b0*x + f.b1*f.x1[ch] + f.b2*f.x2[ch] - f.a1*f.y1[ch] - f.a2*f.y2[ch]
			f.x2[ch] = f.x1[ch]
			f.x1[ch] = x
			f.y2[ch] = f.y1[ch]
			f.y1[ch] = y
			samples[i][ch] = y
		}
	}
}
