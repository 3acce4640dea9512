package model

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestPreprocessImageLayout(t *testing.T) {
	img := solidImage(40, 20, color.RGBA{R: 255, G: 0, B: 255, A: 255})
	data := preprocessImage(img, 16)
	require.Len(t, data, 3*16*16)

	plane := 16 * 16
	assert.InDelta(t, 1.0, data[0], 1e-3)
	assert.InDelta(t, 0.0, data[plane], 1e-3)
	assert.InDelta(t, 1.0, data[2*plane+plane-1], 1e-3)
}

func TestDecodeImageFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "x.png")
	f, err := os.Create(good)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, solidImage(4, 4, color.White)))
	require.NoError(t, f.Close())

	img, err := decodeImageFile(good)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())

	bad := filepath.Join(dir, "x.jpg")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o644))
	_, err = decodeImageFile(bad)
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestTop1(t *testing.T) {
	idx, conf := top1([]float32{0.1, 0.7, 0.2})
	assert.Equal(t, 1, idx)
	assert.InDelta(t, 0.7, conf, 1e-6)

	idx, conf = top1([]float32{2.0, 0.0, 0.0})
	assert.Equal(t, 0, idx)
	assert.InDelta(t, 0.7870, conf, 1e-3)
	assert.LessOrEqual(t, conf, float32(1))
}

func TestONNXBackendPredictAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, solidImage(8, 8, color.White)))
	require.NoError(t, f.Close())

	// A backend whose session has been released, as after Close.
	backend := &ONNXBackend{Metadata: Metadata{ImageSize: 8, Classes: []string{"a", "b"}}}
	_, err = backend.PredictFile(context.Background(), path)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestONNXBackendCloseIdempotent(t *testing.T) {
	backend := &ONNXBackend{}
	assert.NoError(t, backend.Close())
}
