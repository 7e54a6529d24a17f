package extract

import (
	"bytes"
	"image"
	"image/png"
	"testing"
)

func TestPreprocessForOCRBinarizes(t *testing.T) {
	// Dark glyph on a light page with a mild gradient.
	src := image.NewGray(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			src.Pix[y*src.Stride+x] = uint8(200 + y) // uneven background
		}
	}
	for y := 10; y < 20; y++ {
		for x := 10; x < 20; x++ {
			src.Pix[y*src.Stride+x] = 20
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	out, err := preprocessForOCR(buf.Bytes())
	if err != nil {
		t.Fatalf("preprocessForOCR() error = %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	gray, ok := decoded.(*image.Gray)
	if !ok {
		t.Fatalf("output decoded as %T, want *image.Gray", decoded)
	}
	for _, v := range gray.Pix {
		if v != 0 && v != 255 {
			t.Fatalf("pixel value %d, want binary output", v)
		}
	}
	if gray.GrayAt(15, 15).Y != 0 {
		t.Fatal("glyph center not black after thresholding")
	}
	if gray.GrayAt(2, 2).Y != 255 {
		t.Fatal("background not white after thresholding")
	}
}

func TestPreprocessForOCRRejectsGarbage(t *testing.T) {
	if _, err := preprocessForOCR([]byte("not an image")); err == nil {
		t.Fatal("preprocessForOCR() accepted non-image data")
	}
}

func TestAdaptiveThresholdEmptyImage(t *testing.T) {
	out := adaptiveThreshold(image.NewGray(image.Rect(0, 0, 0, 0)), 11, 2)
	if out.Bounds().Dx() != 0 || out.Bounds().Dy() != 0 {
		t.Fatalf("bounds = %v, want empty", out.Bounds())
	}
}
