package assets

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	xdraw "golang.org/x/image/draw"

	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/engine/renderer/device"
)

// ImageData is decoded pixel data ready for texture upload.
type ImageData struct {
	Width  uint32
	Height uint32
	Format device.TextureFormat
	Pixels []byte
}

// LoadImage decodes a PNG or JPEG file into tightly packed RGBA8.
func LoadImage(path string) (*ImageData, error) {
	f, err := os.Open(path)
	if err != nil {
		core.LogError("failed to open image %s", path)
		return nil, err
	}
	defer f.Close()

	decoded, format, err := image.Decode(f)
	if err != nil {
		core.LogError("failed to decode image %s", path)
		return nil, fmt.Errorf("assets: decode %s: %w", path, err)
	}
	core.LogDebug("loaded %s image %s", format, path)

	return fromImage(decoded), nil
}

func fromImage(src image.Image) *ImageData {
	bounds := src.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	xdraw.Draw(rgba, rgba.Bounds(), src, bounds.Min, xdraw.Src)

	return &ImageData{
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
		Format: device.FormatRGBA8,
		Pixels: rgba.Pix,
	}
}

// Resize scales the image to the given extent with bilinear filtering.
// Used to clamp oversized source art to the device texture limit.
func (img *ImageData) Resize(width, height uint32) *ImageData {
	src := &image.RGBA{
		Pix:    img.Pixels,
		Stride: int(img.Width) * 4,
		Rect:   image.Rect(0, 0, int(img.Width), int(img.Height)),
	}
	dst := image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	return &ImageData{
		Width:  width,
		Height: height,
		Format: device.FormatRGBA8,
		Pixels: dst.Pix,
	}
}
