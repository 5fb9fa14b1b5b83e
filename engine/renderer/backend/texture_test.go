package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberengine/ember/engine/renderer/device"
)

func TestRGBUploadIsExpandedToRGBA(t *testing.T) {
	c, _ := newTestContext(t)

	tex, err := c.NewTexture(2, 1, 1, device.FormatRGB8)
	require.NoError(t, err)

	ft := tex.resource.(*fakeTexture)
	assert.Equal(t, device.FormatRGBA8, ft.format, "device never sees a 3-byte format")

	require.NoError(t, c.UploadTexture(tex, 0, []byte{1, 2, 3, 4, 5, 6}))
	require.Len(t, ft.uploaded, 1)
	assert.Equal(t, []byte{1, 2, 3, 0xFF, 4, 5, 6, 0xFF}, ft.uploaded[0])
}

func TestRGBAUploadPassesThrough(t *testing.T) {
	c, _ := newTestContext(t)

	tex, err := c.NewTexture(1, 1, 1, device.FormatRGBA8)
	require.NoError(t, err)

	data := []byte{9, 8, 7, 6}
	require.NoError(t, c.UploadTexture(tex, 0, data))
	ft := tex.resource.(*fakeTexture)
	require.Len(t, ft.uploaded, 1)
	assert.Equal(t, data, ft.uploaded[0])
}

func TestDepthStencilUploadIsDropped(t *testing.T) {
	c, _ := newTestContext(t)

	tex, err := c.NewTexture(4, 4, 1, device.FormatDepth32F)
	require.NoError(t, err)

	// Dropped with a log line, not an error: depth textures are
	// render-target attachments, not CPU-fed images.
	require.NoError(t, c.UploadTexture(tex, 0, make([]byte, 64)))
	assert.Empty(t, tex.resource.(*fakeTexture).uploaded)
}

func TestSamplerParamsChangeCreatesNewCachedSampler(t *testing.T) {
	c, _ := newTestContext(t)
	_, _ = beginDrawFrame(t, c)

	require.NoError(t, c.Draw(3, 0))
	assert.Len(t, c.samplerCache, 1)

	c.boundTextures[0].SetSamplerParams(device.SamplerDesc{
		MinFilter: device.FilterNearest,
		MagFilter: device.FilterNearest,
		WrapU:     device.WrapClampToEdge,
		WrapV:     device.WrapClampToEdge,
	})
	require.NoError(t, c.Draw(3, 0))
	assert.Len(t, c.samplerCache, 2)

	// Reverting reuses the first cached sampler.
	c.boundTextures[0].SetSamplerParams(device.SamplerDesc{
		MinFilter: device.FilterLinear,
		MagFilter: device.FilterLinear,
		WrapU:     device.WrapRepeat,
		WrapV:     device.WrapRepeat,
	})
	require.NoError(t, c.Draw(3, 0))
	assert.Len(t, c.samplerCache, 2)

	require.NoError(t, c.EndFrame())
}
