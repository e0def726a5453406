package audioengine

import (
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hraban/opus"
)

type EncoderResult struct {
	Frame []byte
	Error error
}

// StreamEncodeWavToOpus reads a 48 kHz stereo 16-bit WAV and sends 20 ms opus
// frames to resultChan. It returns the duration in seconds. The channel is
// not closed.
func StreamEncodeWavToOpus(r io.ReadSeeker, resultChan chan<- EncoderResult) (float64, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("not a valid wav file")
	}
	dec.ReadInfo()
	if dec.SampleRate != 48000 || dec.NumChans != 2 {
		return 0, fmt.Errorf("wav must be 48kHz stereo, got %dHz %dch", dec.SampleRate, dec.NumChans)
	}

	enc, err := opus.NewEncoder(48000, 2, opus.AppAudio)
	if err != nil {
		return 0, err
	}

	frameSize := 960 // 20ms @ 48kHz
	channels := 2
	pcmBuf := make([]int16, frameSize*channels)
	opusBuf := make([]byte, 1500)

	// one second per read cycle
	intBuf := &audio.IntBuffer{
		Data:   make([]int, 48000*channels),
		Format: &audio.Format{NumChannels: channels, SampleRate: 48000},
	}

	shift := 0
	if dec.BitDepth > 16 {
		shift = int(dec.BitDepth) - 16
	}

	totalSamples := 0
	for {
		n, err := dec.PCMBuffer(intBuf)
		if err != nil && err != io.EOF {
			return 0, err
		}
		if n == 0 {
			break
		}

		for i := 0; i < n; i += len(pcmBuf) {
			actualBatchSize := len(pcmBuf)
			if i+len(pcmBuf) > n {
				actualBatchSize = n - i
				// pad the tail with silence
				for j := range pcmBuf {
					pcmBuf[j] = 0
				}
			}

			for j := 0; j < actualBatchSize; j++ {
				pcmBuf[j] = int16(intBuf.Data[i+j] >> shift)
			}

			outputSize, err := enc.Encode(pcmBuf, opusBuf)
			if err != nil {
				resultChan <- EncoderResult{Error: err}
				return 0, err
			}

			frameCopy := make([]byte, outputSize)
			copy(frameCopy, opusBuf[:outputSize])
			resultChan <- EncoderResult{Frame: frameCopy}
			totalSamples += actualBatchSize
		}

		if err == io.EOF {
			break
		}
	}

	duration := float64(totalSamples) / 48000.0 / float64(channels)
	return duration, nil
}
