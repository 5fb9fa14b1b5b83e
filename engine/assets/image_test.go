package assets

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberengine/ember/engine/renderer/device"
)

func writeTestPNG(t *testing.T, width, height int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "test.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestLoadImageDecodesToRGBA(t *testing.T) {
	path := writeTestPNG(t, 4, 2)

	img, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), img.Width)
	assert.Equal(t, uint32(2), img.Height)
	assert.Equal(t, device.FormatRGBA8, img.Format)
	assert.Len(t, img.Pixels, 4*2*4)

	// Pixel (1, 1) encodes its own coordinates.
	offset := (1*4 + 1) * 4
	assert.Equal(t, byte(1), img.Pixels[offset])
	assert.Equal(t, byte(1), img.Pixels[offset+1])
	assert.Equal(t, byte(255), img.Pixels[offset+3])
}

func TestLoadImageRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))

	_, err := LoadImage(path)
	assert.Error(t, err)
}

func TestResize(t *testing.T) {
	path := writeTestPNG(t, 8, 8)
	img, err := LoadImage(path)
	require.NoError(t, err)

	small := img.Resize(4, 4)
	assert.Equal(t, uint32(4), small.Width)
	assert.Equal(t, uint32(4), small.Height)
	assert.Len(t, small.Pixels, 4*4*4)
}
