package audioengine

import (
	"github.com/hraban/opus"
)

// maxFrameSamples is 120 ms at 48 kHz, the longest opus frame.
const maxFrameSamples = 5760

type StreamDecoder struct {
	dec      *opus.Decoder
	channels int
	pcm      []int16
}

func NewStreamDecoder(rate, channels int) (*StreamDecoder, error) {
	d, err := opus.NewDecoder(rate, channels)
	if err != nil {
		return nil, err
	}
	return &StreamDecoder{
		dec:      d,
		channels: channels,
		pcm:      make([]int16, maxFrameSamples*channels),
	}, nil
}

// AppendStereo decodes one frame and appends it as float stereo samples.
// Mono streams are duplicated to both sides.
func (sd *StreamDecoder) AppendStereo(dst [][2]float64, frame []byte) ([][2]float64, error) {
	n, err := sd.dec.Decode(frame, sd.pcm)
	if err != nil {
		return dst, err
	}
	for i := 0; i < n; i++ {
		if sd.channels == 1 {
			v := float64(sd.pcm[i]) / 32768.0
			dst = append(dst, [2]float64{v, v})
			continue
		}
		dst = append(dst, [2]float64{
			float64(sd.pcm[i*2]) / 32768.0,
			float64(sd.pcm[i*2+1]) / 32768.0,
		})
	}
	return dst, nil
}
