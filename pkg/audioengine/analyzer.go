package audioengine

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

const analyzerFFTSize = 4096

// MonoMix folds a stereo buffer into one channel.
func MonoMix(samples [][2]float64) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = (s[0] + s[1]) / 2
	}
	return out
}

// BandEnergies returns the average magnitude around each center frequency,
// measured over consecutive FFT windows. Each band covers the half-octave
// around its center.
func BandEnergies(pcm []float64, sampleRate int, centers []float64) []float64 {
	out := make([]float64, len(centers))
	if len(pcm) < analyzerFFTSize || sampleRate <= 0 {
		return out
	}

	binHz := float64(sampleRate) / analyzerFFTSize
	windows := 0
	window := make([]float64, analyzerFFTSize)

	for start := 0; start+analyzerFFTSize <= len(pcm); start += analyzerFFTSize {
		// Hann window against spectral leakage
		for i := 0; i < analyzerFFTSize; i++ {
			w := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(analyzerFFTSize-1))
			window[i] = pcm[start+i] * w
		}
		coeffs := fft.FFTReal(window)

		for b, c := range centers {
			lo := int(c / math.Sqrt(math.Sqrt2) / binHz)
			hi := int(c * math.Sqrt(math.Sqrt2) / binHz)
			if hi >= analyzerFFTSize/2 {
				hi = analyzerFFTSize/2 - 1
			}
			if lo < 1 {
				lo = 1
			}
			var sum float64
			count := 0
			for k := lo; k <= hi; k++ {
				sum += math.Hypot(real(coeffs[k]), imag(coeffs[k]))
				count++
			}
			if count > 0 {
				out[b] += sum / float64(count)
			}
		}
		windows++
	}

	for b := range out {
		out[b] /= float64(windows)
	}
	return out
}

// ToDecibels converts a magnitude ratio to dB, with a floor for silence.
func ToDecibels(ratio float64) float64 {
	if ratio <= 1e-9 {
		return -180
	}
	return 20 * math.Log10(ratio)
}
