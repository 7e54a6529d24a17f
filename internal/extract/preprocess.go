package extract

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	xdraw "golang.org/x/image/draw"
)

// preprocessForOCR converts a rasterized page to grayscale and binarizes it
// with an adaptive mean threshold. Scanned and faxed documents often have
// uneven lighting; a single global threshold loses whole regions there.
func preprocessForOCR(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	gray := image.NewGray(src.Bounds())
	xdraw.Draw(gray, gray.Bounds(), src, src.Bounds().Min, xdraw.Src)

	bin := adaptiveThreshold(gray, 11, 2)

	var buf bytes.Buffer
	if err := png.Encode(&buf, bin); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// adaptiveThreshold binarizes gray using the mean of a window x window
// neighborhood minus bias as the per-pixel threshold. An integral image keeps
// this linear in the pixel count.
func adaptiveThreshold(gray *image.Gray, window, bias int) *image.Gray {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(b)
	if w == 0 || h == 0 {
		return out
	}

	// integral[y+1][x+1] = sum of pixels in [0,0]..[x,y]
	integral := make([][]int64, h+1)
	for i := range integral {
		integral[i] = make([]int64, w+1)
	}
	for y := 0; y < h; y++ {
		var rowSum int64
		for x := 0; x < w; x++ {
			rowSum += int64(gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			integral[y+1][x+1] = integral[y][x+1] + rowSum
		}
	}

	half := window / 2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			x0, y0 := x-half, y-half
			x1, y1 := x+half+1, y+half+1
			if x0 < 0 {
				x0 = 0
			}
			if y0 < 0 {
				y0 = 0
			}
			if x1 > w {
				x1 = w
			}
			if y1 > h {
				y1 = h
			}
			area := int64((x1 - x0) * (y1 - y0))
			sum := integral[y1][x1] - integral[y0][x1] - integral[y1][x0] + integral[y0][x0]
			mean := sum / area
			v := int64(gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			if v > mean-int64(bias) {
				out.SetGray(b.Min.X+x, b.Min.Y+y, color.Gray{Y: 255})
			} else {
				out.SetGray(b.Min.X+x, b.Min.Y+y, color.Gray{Y: 0})
			}
		}
	}
	return out
}
