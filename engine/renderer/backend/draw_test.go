package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberengine/ember/engine/renderer/device"
)

func testVertexDeclaration() *VertexDeclaration {
	return NewVertexDeclaration([]VertexStream{
		{Name: "position", Type: device.TypeVec3},
		{Name: "texcoord", Type: device.TypeVec2},
	})
}

// beginDrawFrame opens a frame with a program, geometry and a texture
// bound, ready for Draw calls.
func beginDrawFrame(t *testing.T, c *Context) (*Program, *fakeRecorder) {
	t.Helper()
	require.NoError(t, c.BeginFrame(context.Background(), [4]float32{}))

	p := newTestProgram(t, c)
	c.SetProgram(p)

	vb, err := c.NewVertexBuffer(make([]byte, 20*3))
	require.NoError(t, err)
	c.SetVertexBuffer(vb, testVertexDeclaration())

	tex, err := c.NewTexture(4, 4, 1, device.FormatRGBA8)
	require.NoError(t, err)
	c.SetTexture(0, tex)

	return p, c.frame().recorder.(*fakeRecorder)
}

func TestDrawBindsRootParameters(t *testing.T) {
	c, _ := newTestContext(t)
	_, rec := beginDrawFrame(t, c)

	require.NoError(t, c.Draw(3, 0))

	// Two uniform blocks land in the first root slots. Both fit the
	// smallest size class so the second starts one block in.
	assert.Equal(t, map[uint32]uint32{0: 0, 1: 256}, rec.rootConstants)

	// The texture at unit 0 binds right after the constant buffers, its
	// sampler in the adjacent slot.
	assert.Equal(t, map[uint32]uint64{2: 0}, rec.textureTables)
	assert.Equal(t, map[uint32]uint64{3: 0}, rec.samplerTables)

	require.NoError(t, c.EndFrame())
}

func TestSetSamplerReroutesTextureUnit(t *testing.T) {
	c, _ := newTestContext(t)
	p, rec := beginDrawFrame(t, c)

	tex, err := c.NewTexture(2, 2, 1, device.FormatRGBA8)
	require.NoError(t, err)
	c.SetTexture(1, tex)

	c.SetSampler(p.UniformLocation("albedo"), 1)
	require.NoError(t, c.Draw(3, 0))

	// Unit 1 shifts both tables two slots past unit 0's pair.
	assert.Equal(t, map[uint32]uint64{4: 0}, rec.textureTables)
	assert.Equal(t, map[uint32]uint64{5: 0}, rec.samplerTables)

	require.NoError(t, c.EndFrame())
}

func TestDrawCopiesUniformShadowIntoScratch(t *testing.T) {
	c, _ := newTestContext(t)
	p, _ := beginDrawFrame(t, c)

	c.SetUniformVec4(p.UniformLocation("color"), Vec4{0.5, 0.25, 0.125, 1})
	require.NoError(t, c.Draw(3, 0))

	// The material block is the second allocation from size class zero.
	scratch := c.frame().scratch
	pool := scratch.pools[0].memory.(*fakeConstantPool)
	var expected [16]byte
	float32Bytes(expected[:], []float32{0.5, 0.25, 0.125, 1})
	assert.Equal(t, expected[:], pool.data[256:256+16])

	require.NoError(t, c.EndFrame())
}

func TestUniformsPersistAcrossDraws(t *testing.T) {
	c, _ := newTestContext(t)
	p, rec := beginDrawFrame(t, c)

	c.SetUniformVec4(p.UniformLocation("tint"), Vec4{1, 1, 0, 1})
	require.NoError(t, c.Draw(3, 0))
	require.NoError(t, c.Draw(3, 0))

	// Nothing changed between the draws, so the second rebinds the
	// regions the first already uploaded instead of taking fresh ones.
	assert.Equal(t, map[uint32]uint32{0: 0, 1: 256}, rec.rootConstants)

	require.NoError(t, c.EndFrame())
}

func TestDirtyBlockReuploadsAndCleanBlockRebinds(t *testing.T) {
	c, _ := newTestContext(t)
	p, rec := beginDrawFrame(t, c)

	require.NoError(t, c.Draw(3, 0))

	// Touching the material block between draws reallocates only that
	// block; the untouched view block keeps its region.
	c.SetUniformVec4(p.UniformLocation("tint"), Vec4{0, 1, 0, 1})
	require.NoError(t, c.Draw(3, 0))

	assert.Equal(t, map[uint32]uint32{0: 0, 1: 512}, rec.rootConstants)

	scratch := c.frame().scratch
	pool := scratch.pools[0].memory.(*fakeConstantPool)
	var expected [16]byte
	float32Bytes(expected[:], []float32{0, 1, 0, 1})
	assert.Equal(t, expected[:], pool.data[512+16:512+32])

	require.NoError(t, c.EndFrame())
}

func TestSamplersAreDeduplicated(t *testing.T) {
	c, _ := newTestContext(t)
	_, _ = beginDrawFrame(t, c)

	require.NoError(t, c.Draw(3, 0))
	require.NoError(t, c.Draw(3, 0))

	assert.Len(t, c.samplerCache, 1)
	require.NoError(t, c.EndFrame())
}

func TestDrawWithoutBoundTexturePanics(t *testing.T) {
	c, _ := newTestContext(t)
	_, _ = beginDrawFrame(t, c)
	c.SetTexture(0, nil)

	assert.Panics(t, func() { _ = c.Draw(3, 0) })
}
