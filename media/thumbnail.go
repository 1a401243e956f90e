package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const thumbnailQuality = 82

// FitBox returns the size of a w×h rectangle scaled down to fit inside a
// box×box square. Images already inside the box keep their size.
func FitBox(w, h, box int) (int, int) {
	if w <= 0 || h <= 0 || box <= 0 {
		return 0, 0
	}
	if w <= box && h <= box {
		return w, h
	}
	if w >= h {
		nh := h * box / w
		if nh < 1 {
			nh = 1
		}
		return box, nh
	}
	nw := w * box / h
	if nw < 1 {
		nw = 1
	}
	return nw, box
}

// Thumbnail scales src into a box×box bounding box on a white background,
// so transparent images still encode cleanly as JPEG.
func Thumbnail(src image.Image, box int) image.Image {
	b := src.Bounds()
	w, h := FitBox(b.Dx(), b.Dy(), box)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

func decodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func encodeJPEG(img image.Image) (io.Reader, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil, err
	}
	return &buf, nil
}
