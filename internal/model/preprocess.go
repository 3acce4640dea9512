package model

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

func decodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	return img, nil
}

// preprocessImage scales the short side to size, centre-crops a size×size
// square and returns it as RGB planes (CHW) normalised to [0,1].
func preprocessImage(img image.Image, size int) []float32 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	var resized image.Image
	if w <= h {
		resized = resize.Resize(uint(size), 0, img, resize.Bilinear)
	} else {
		resized = resize.Resize(0, uint(size), img, resize.Bilinear)
	}

	rb := resized.Bounds()
	offX := rb.Min.X + (rb.Dx()-size)/2
	offY := rb.Min.Y + (rb.Dy()-size)/2
	if offX < rb.Min.X {
		offX = rb.Min.X
	}
	if offY < rb.Min.Y {
		offY = rb.Min.Y
	}

	plane := size * size
	data := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := resized.At(offX+x, offY+y).RGBA()
			idx := y*size + x
			data[idx] = float32(r) / 65535.0
			data[plane+idx] = float32(g) / 65535.0
			data[2*plane+idx] = float32(b) / 65535.0
		}
	}
	return data
}
