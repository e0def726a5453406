package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"io"
)

// MaxArtworkSize is the edge length of embedded cover art.
const MaxArtworkSize = 600

// ProcessArtwork crops an image to a centered square, scales it down to at
// most MaxArtworkSize and returns PNG bytes.
func ProcessArtwork(r io.Reader) ([]byte, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode artwork: %w", err)
	}

	square := cropSquare(src)
	dst := scaleNearest(square, MaxArtworkSize)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ArtworkBounds reports the pixel size of embedded artwork without fully decoding it.
func ArtworkBounds(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

func cropSquare(src image.Image) *image.RGBA {
	b := src.Bounds()
	size := b.Dx()
	if b.Dy() < size {
		size = b.Dy()
	}
	origin := image.Point{
		X: b.Min.X + (b.Dx()-size)/2,
		Y: b.Min.Y + (b.Dy()-size)/2,
	}
	out := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(out, out.Bounds(), src, origin, draw.Src)
	return out
}

func scaleNearest(src *image.RGBA, limit int) *image.RGBA {
	size := src.Bounds().Dx()
	target := limit
	if size < target {
		target = size
	}
	if target == size {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, target, target))
	for y := 0; y < target; y++ {
		for x := 0; x < target; x++ {
			dst.Set(x, y, src.At(x*size/target, y*size/target))
		}
	}
	return dst
}
