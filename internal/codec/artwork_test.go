package codec

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.White)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestProcessArtworkSquaresAndScales(t *testing.T) {
	out, err := ProcessArtwork(bytes.NewReader(encodePNG(t, 1200, 800)))
	if err != nil {
		t.Fatalf("ProcessArtwork: %v", err)
	}
	w, h, err := ArtworkBounds(out)
	if err != nil {
		t.Fatalf("ArtworkBounds: %v", err)
	}
	if w != MaxArtworkSize || h != MaxArtworkSize {
		t.Errorf("bounds = %dx%d, want %dx%d", w, h, MaxArtworkSize, MaxArtworkSize)
	}
}

func TestProcessArtworkKeepsSmallImages(t *testing.T) {
	out, err := ProcessArtwork(bytes.NewReader(encodePNG(t, 120, 200)))
	if err != nil {
		t.Fatalf("ProcessArtwork: %v", err)
	}
	w, h, _ := ArtworkBounds(out)
	if w != 120 || h != 120 {
		t.Errorf("bounds = %dx%d, want 120x120", w, h)
	}
}

func TestProcessArtworkRejectsGarbage(t *testing.T) {
	if _, err := ProcessArtwork(bytes.NewReader([]byte("not an image"))); err == nil {
		t.Errorf("ProcessArtwork accepted garbage")
	}
}
