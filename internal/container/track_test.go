package container

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestPackUnpack(t *testing.T) {
	meta := Meta{
		Title:      "Night Drive",
		Artist:     "The Pair",
		DurationMs: 183500,
		Artwork:    []byte{0x89, 'P', 'N', 'G'},
		Salt:       bytes.Repeat([]byte{7}, 16),
		Encrypted:  true,
	}
	frames := [][]byte{[]byte("one"), {}, bytes.Repeat([]byte{1}, 300)}

	var buf bytes.Buffer
	if err := Pack(&buf, meta, frames); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	r := bytes.NewReader(buf.Bytes())
	tf, err := Unpack(r)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if tf.Title != meta.Title || tf.Artist != meta.Artist || tf.DurationMs != meta.DurationMs {
		t.Errorf("meta = %+v, want %+v", tf.Meta, meta)
	}
	if !tf.Encrypted || !bytes.Equal(tf.Salt, meta.Salt) || !bytes.Equal(tf.Artwork, meta.Artwork) {
		t.Errorf("binary tags not preserved: %+v", tf.Meta)
	}

	fr := tf.Frames(r)
	for i, want := range frames {
		got, err := fr.Next()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("frame %d = %q, want %q", i, got, want)
		}
	}
	if _, err := fr.Next(); err != io.EOF {
		t.Errorf("Next after last frame = %v, want io.EOF", err)
	}
}

func TestUnpackBadMagic(t *testing.T) {
	_, err := Unpack(bytes.NewReader([]byte("NOTATRACKFILE")))
	if !errors.Is(err, ErrBadMagic) {
		t.Errorf("Unpack = %v, want ErrBadMagic", err)
	}
}

func TestUnpackWithoutAudio(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("DUETTRK1")
	if err := writeTag(&buf, "TITL", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if _, err := Unpack(bytes.NewReader(buf.Bytes())); err == nil {
		t.Errorf("Unpack succeeded without an audio tag")
	}
}

func TestUnpackSkipsUnknownTags(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("DUETTRK1")
	writeTag(&buf, "XTRA", []byte("ignored"))
	writeTag(&buf, "TITL", []byte("kept"))
	writeTag(&buf, "AUDI", nil)

	tf, err := Unpack(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if tf.Title != "kept" {
		t.Errorf("Title = %q, want %q", tf.Title, "kept")
	}
}
