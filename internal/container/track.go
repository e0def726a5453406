package container

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"duet/pkg/spec"
)

// Meta is the descriptive part of a .duet track file.
type Meta struct {
	Title      string
	Artist     string
	DurationMs int
	Artwork    []byte
	Salt       []byte
	Encrypted  bool
}

// TrackFile is a parsed .duet header. The audio payload is not read; only
// its location is recorded.
type TrackFile struct {
	Meta
	AudioOffset int64
	AudioSize   int64
}

var ErrBadMagic = errors.New("invalid track magic")

// Unpack walks the TLV tags of a .duet file.
func Unpack(r io.ReadSeeker) (*TrackFile, error) {
	magic := make([]byte, len(spec.TrackMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("failed to read magic: %w", err)
	}
	if string(magic) != spec.TrackMagic {
		return nil, fmt.Errorf("%w: %q", ErrBadMagic, string(magic))
	}

	tf := &TrackFile{AudioOffset: -1}
	pos := int64(len(magic))

	for {
		tagBuf := make([]byte, 4)
		if _, err := io.ReadFull(r, tagBuf); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		var size uint32
		if err := binary.Read(r, binary.BigEndian, &size); err != nil {
			return nil, err
		}
		pos += 8

		tag := string(tagBuf)
		switch tag {
		case spec.AudioData:
			tf.AudioOffset = pos
			tf.AudioSize = int64(size)
			if _, err := r.Seek(int64(size), io.SeekCurrent); err != nil {
				return nil, err
			}

		case spec.Title, spec.Artist, spec.Artwork, spec.Salt, spec.Duration, spec.Encrypted:
			buf := make([]byte, size)
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, fmt.Errorf("tag %s: %w", tag, err)
			}
			if err := tf.apply(tag, buf); err != nil {
				return nil, err
			}

		default:
			// unknown tag, skip
			if _, err := r.Seek(int64(size), io.SeekCurrent); err != nil {
				return nil, err
			}
		}
		pos += int64(size)
	}

	if tf.AudioOffset < 0 {
		return nil, fmt.Errorf("no audio found in track (%s missing)", spec.AudioData)
	}
	return tf, nil
}

func (tf *TrackFile) apply(tag string, buf []byte) error {
	switch tag {
	case spec.Title:
		tf.Title = string(buf)
	case spec.Artist:
		tf.Artist = string(buf)
	case spec.Artwork:
		tf.Artwork = buf
	case spec.Salt:
		tf.Salt = buf
	case spec.Encrypted:
		tf.Encrypted = true
	case spec.Duration:
		if len(buf) != 4 {
			return fmt.Errorf("tag %s: want 4 bytes, got %d", tag, len(buf))
		}
		tf.DurationMs = int(binary.BigEndian.Uint32(buf))
	}
	return nil
}

// Frames returns a reader over the length-prefixed audio frames.
func (tf *TrackFile) Frames(r io.ReaderAt) *FrameReader {
	return &FrameReader{r: io.NewSectionReader(r, tf.AudioOffset, tf.AudioSize)}
}

type FrameReader struct {
	r io.Reader
}

// Next returns the next frame or io.EOF.
func (f *FrameReader) Next() ([]byte, error) {
	var sz uint16
	if err := binary.Read(f.r, binary.BigEndian, &sz); err != nil {
		return nil, err
	}
	frame := make([]byte, sz)
	if _, err := io.ReadFull(f.r, frame); err != nil {
		return nil, io.ErrUnexpectedEOF
	}
	return frame, nil
}

// Pack writes a complete .duet file. Frames are written as given; encrypt
// them beforehand when meta.Encrypted is set.
func Pack(w io.Writer, meta Meta, frames [][]byte) error {
	if _, err := w.Write([]byte(spec.TrackMagic)); err != nil {
		return err
	}

	dur := make([]byte, 4)
	binary.BigEndian.PutUint32(dur, uint32(meta.DurationMs))

	tags := []struct {
		tag  string
		data []byte
		keep bool
	}{
		{spec.Title, []byte(meta.Title), meta.Title != ""},
		{spec.Artist, []byte(meta.Artist), meta.Artist != ""},
		{spec.Duration, dur, true},
		{spec.Artwork, meta.Artwork, len(meta.Artwork) > 0},
		{spec.Salt, meta.Salt, len(meta.Salt) > 0},
		{spec.Encrypted, nil, meta.Encrypted},
	}
	for _, t := range tags {
		if !t.keep {
			continue
		}
		if err := writeTag(w, t.tag, t.data); err != nil {
			return err
		}
	}

	var audio bytes.Buffer
	for i, fr := range frames {
		if len(fr) > 0xFFFF {
			return fmt.Errorf("frame %d too large (%d bytes)", i, len(fr))
		}
		binary.Write(&audio, binary.BigEndian, uint16(len(fr)))
		audio.Write(fr)
	}
	return writeTag(w, spec.AudioData, audio.Bytes())
}

func writeTag(w io.Writer, tag string, data []byte) error {
	if _, err := w.Write([]byte(tag)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}
