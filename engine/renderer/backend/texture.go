package backend

import (
	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/engine/renderer/device"
)

// Texture is a sampled image plus the sampler description draws resolve
// through the context's sampler cache.
type Texture struct {
	name     string
	resource device.Texture
	width    uint32
	height   uint32
	format   device.TextureFormat
	sampler  device.SamplerDesc
}

func (c *Context) NewTexture(width, height, mipLevels uint32, format device.TextureFormat) (*Texture, error) {
	core.Assertf(width > 0 && height > 0, "texture with zero extent")

	// RGB is padded to RGBA on upload, the device only ever sees RGBA.
	deviceFormat := format
	if format == device.FormatRGB8 {
		deviceFormat = device.FormatRGBA8
	}

	resource, err := c.device.CreateTexture(width, height, mipLevels, deviceFormat)
	if err != nil {
		core.LogError("failed to create %dx%d texture", width, height)
		return nil, err
	}
	return &Texture{
		name:     core.GenerateName("texture"),
		resource: resource,
		width:    width,
		height:   height,
		format:   format,
		sampler: device.SamplerDesc{
			MinFilter: device.FilterLinear,
			MagFilter: device.FilterLinear,
			WrapU:     device.WrapRepeat,
			WrapV:     device.WrapRepeat,
		},
	}, nil
}

func (t *Texture) Name() string   { return t.name }
func (t *Texture) Width() uint32  { return t.width }
func (t *Texture) Height() uint32 { return t.height }

// SetSamplerParams changes how the texture is sampled. Takes effect on
// the next draw that uses the texture.
func (t *Texture) SetSamplerParams(desc device.SamplerDesc) {
	t.sampler = desc
}

// expandRGBToRGBA repacks 3-byte texels into 4-byte ones with opaque alpha.
func expandRGBToRGBA(data []byte) []byte {
	texels := len(data) / 3
	out := make([]byte, texels*4)
	for i := 0; i < texels; i++ {
		out[i*4+0] = data[i*3+0]
		out[i*4+1] = data[i*3+1]
		out[i*4+2] = data[i*3+2]
		out[i*4+3] = 0xFF
	}
	return out
}

// UploadTexture copies pixel data into a mip level. Depth/stencil textures
// cannot be filled from the CPU; that request is logged and dropped rather
// than treated as fatal, matching how render-target attachments are used.
func (c *Context) UploadTexture(t *Texture, mip uint32, data []byte) error {
	if t.format.IsDepthStencil() {
		core.LogError("cannot upload pixel data to a depth/stencil texture")
		return nil
	}

	upload := data
	if t.format == device.FormatRGB8 {
		upload = expandRGBToRGBA(data)
	}

	if err := t.resource.Upload(mip, upload); err != nil {
		core.LogError("failed to upload mip %d of %s", mip, t.name)
		return core.CheckDeviceErr(c.cfg.VerifyCalls, err)
	}
	return nil
}

// DestroyTexture retires the texture into the current frame slot.
func (c *Context) DestroyTexture(t *Texture) {
	c.DestroyResourceDeferred(t.resource)
	t.resource = nil
}

// sampler returns the cached device sampler for a description, creating
// and memoizing it on first use. Samplers are deduplicated for the life
// of the context.
func (c *Context) samplerFor(desc device.SamplerDesc) (device.Sampler, error) {
	if s, ok := c.samplerCache[desc]; ok {
		return s, nil
	}
	s, err := c.device.CreateSampler(desc)
	if err != nil {
		core.LogError("failed to create sampler")
		return nil, err
	}
	c.samplerCache[desc] = s
	return s, nil
}
