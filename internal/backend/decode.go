package backend

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/faiface/beep"
	"github.com/go-audio/wav"

	"duet/internal/container"
	"duet/internal/security"
	"duet/pkg/audioengine"
	"duet/pkg/spec"
)

// ErrUnsupported is returned for files that are neither WAV nor .duet.
var ErrUnsupported = errors.New("unsupported source format")

var errInvalidWav = errors.New("not a valid wav file")

// Supported reports whether path has an extension the backend can decode.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".duet":
		return true
	}
	return false
}

// DecodeFile reads a whole source into stereo float samples at rate.
// Encrypted .duet files need passphrase.
func DecodeFile(path string, rate beep.SampleRate, passphrase string) ([][2]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var (
		pcm [][2]float64
		src beep.SampleRate
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		pcm, src, err = decodeWav(f)
	case ".duet":
		pcm, err = decodeTrack(f, passphrase)
		src = spec.SampleRate
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return resample(pcm, src, rate), nil
}

func decodeWav(r io.ReadSeeker) ([][2]float64, beep.SampleRate, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, errInvalidWav
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, err
	}

	chans := int(dec.NumChans)
	if chans < 1 {
		return nil, 0, fmt.Errorf("wav has no channels")
	}
	scale := float64(int64(1) << (dec.BitDepth - 1))
	frames := len(buf.Data) / chans
	out := make([][2]float64, frames)
	for i := 0; i < frames; i++ {
		l := float64(buf.Data[i*chans]) / scale
		r := l
		if chans > 1 {
			r = float64(buf.Data[i*chans+1]) / scale
		}
		out[i] = [2]float64{l, r}
	}
	return out, beep.SampleRate(dec.SampleRate), nil
}

// checkSource validates a source without decoding it whole: the WAV
// header, or the .duet container plus its first frame.
func checkSource(path, passphrase string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		if !wav.NewDecoder(f).IsValidFile() {
			return errInvalidWav
		}
		return nil
	case ".duet":
		tf, fc, err := openTrack(f, passphrase)
		if err != nil {
			return err
		}
		frame, err := tf.Frames(f).Next()
		if err == io.EOF {
			return fmt.Errorf("track has no audio frames")
		}
		if err != nil {
			return err
		}
		if fc != nil {
			if frame, err = fc.Decrypt(frame); err != nil {
				return fmt.Errorf("decrypt frame: %w", err)
			}
		}
		sd, err := audioengine.NewStreamDecoder(spec.SampleRate, spec.Channels)
		if err != nil {
			return err
		}
		_, err = sd.AppendStereo(nil, frame)
		return err
	}
	return fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
}

// openTrack reads the container header and builds the frame cipher an
// encrypted track needs.
func openTrack(r io.ReadSeeker, passphrase string) (*container.TrackFile, *security.FrameCipher, error) {
	tf, err := container.Unpack(r)
	if err != nil {
		return nil, nil, err
	}
	if !tf.Encrypted {
		return tf, nil, nil
	}
	if passphrase == "" {
		return nil, nil, security.ErrNoPassphrase
	}
	fc, err := security.NewFrameCipher(security.DeriveKey(passphrase, tf.Salt))
	if err != nil {
		return nil, nil, err
	}
	return tf, fc, nil
}

func decodeTrack(r io.ReadSeeker, passphrase string) ([][2]float64, error) {
	ra, ok := r.(io.ReaderAt)
	if !ok {
		return nil, fmt.Errorf("track reader does not support random access")
	}
	tf, fc, err := openTrack(r, passphrase)
	if err != nil {
		return nil, err
	}

	sd, err := audioengine.NewStreamDecoder(spec.SampleRate, spec.Channels)
	if err != nil {
		return nil, err
	}

	var out [][2]float64
	frames := tf.Frames(ra)
	for {
		frame, err := frames.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if fc != nil {
			if frame, err = fc.Decrypt(frame); err != nil {
				return nil, fmt.Errorf("decrypt frame: %w", err)
			}
		}
		if out, err = sd.AppendStereo(out, frame); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// resample converts pcm from one rate to another through beep.Resample.
func resample(pcm [][2]float64, from, to beep.SampleRate) [][2]float64 {
	if from == to || from == 0 || len(pcm) == 0 {
		return pcm
	}
	rs := beep.Resample(4, from, to, &bufferStreamer{data: pcm})
	out := make([][2]float64, 0, int(float64(len(pcm))*float64(to)/float64(from))+1)
	chunk := make([][2]float64, 4096)
	for {
		n, ok := rs.Stream(chunk)
		out = append(out, chunk[:n]...)
		if !ok || n == 0 {
			break
		}
	}
	return out
}

type bufferStreamer struct {
	data [][2]float64
	pos  int
}

func (b *bufferStreamer) Stream(samples [][2]float64) (int, bool) {
	if b.pos >= len(b.data) {
		return 0, false
	}
	n := copy(samples, b.data[b.pos:])
	b.pos += n
	return n, true
}

func (b *bufferStreamer) Err() error { return nil }
