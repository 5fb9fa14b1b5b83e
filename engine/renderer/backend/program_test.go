package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberengine/ember/engine/renderer/device"
)

func member(name string, t device.DataType, offset uint32) device.Member {
	return device.Member{
		Name:      name,
		NameHash:  hashString(name),
		Type:      t,
		TypeIndex: device.NoType,
		Offset:    offset,
	}
}

func binding(name string, set, bnd uint32, kind device.BindingKind, typeIndex, blockSize uint32) device.ResourceBinding {
	return device.ResourceBinding{
		Name:      name,
		NameHash:  hashString(name),
		Set:       set,
		Binding:   bnd,
		Kind:      kind,
		TypeIndex: typeIndex,
		BlockSize: blockSize,
	}
}

// testShaderMeta models a vertex/fragment pair sharing a view block, with
// a fragment-only material block and one sampled texture.
func testShaderMeta() device.ShaderMeta {
	return device.ShaderMeta{
		Stages: []device.StageMeta{
			{
				Stage: device.StageVertex,
				Bindings: []device.ResourceBinding{
					binding("view", 0, 0, device.BindingUniformBuffer, 0, 64),
				},
				Inputs: []device.VertexInput{
					{Name: "position", NameHash: hashString("position"), Location: 0, Type: device.TypeVec3},
					{Name: "texcoord", NameHash: hashString("texcoord"), Location: 1, Type: device.TypeVec2},
				},
				Types: []device.TypeInfo{
					{Members: []device.Member{member("mtx_view", device.TypeMat4, 0)}},
				},
			},
			{
				Stage: device.StageFragment,
				Bindings: []device.ResourceBinding{
					binding("view", 0, 0, device.BindingUniformBuffer, 0, 64),
					binding("material", 0, 1, device.BindingUniformBuffer, 1, 32),
					binding("albedo", 0, 2, device.BindingTexture, device.NoType, 0),
				},
				Types: []device.TypeInfo{
					{Members: []device.Member{member("mtx_view", device.TypeMat4, 0)}},
					{Members: []device.Member{
						member("color", device.TypeVec4, 0),
						member("tint", device.TypeVec4, 16),
					}},
				},
			},
		},
	}
}

func newTestProgram(t *testing.T, c *Context) *Program {
	t.Helper()
	p, err := c.NewProgram(ProgramDesc{
		VertexCode: []byte{0x1},
		PixelCode:  []byte{0x2},
		Meta:       testShaderMeta(),
	})
	require.NoError(t, err)
	return p
}

func TestBindingLayoutMergesStages(t *testing.T) {
	meta := testShaderMeta()
	layout, err := fillBindingLayout(&meta)
	require.NoError(t, err)

	require.Len(t, layout.uniformBuffers, 2)
	require.Len(t, layout.textures, 1)
	assert.Empty(t, layout.storageBuffers)

	// The view block was claimed by the vertex stage and the fragment
	// redeclaration only widened its visibility.
	view := layout.uniformBuffers[0]
	assert.Equal(t, "view", view.binding.Name)
	assert.Equal(t, device.StageVertex|device.StageFragment, view.stages)

	material := layout.uniformBuffers[1]
	assert.Equal(t, "material", material.binding.Name)
	assert.Equal(t, device.StageFragment, material.stages)
	assert.Len(t, material.data, 32)

	assert.Equal(t, uint32(1), layout.maxSet)
	assert.Equal(t, uint32(3), layout.maxBinding)
}

func TestBindingLayoutRejectsKindMismatch(t *testing.T) {
	meta := testShaderMeta()
	meta.Stages[1].Bindings[0].Kind = device.BindingTexture

	_, err := fillBindingLayout(&meta)
	assert.ErrorContains(t, err, "different kind")
}

func TestBindingLayoutRejectsNestedStructs(t *testing.T) {
	meta := testShaderMeta()
	// Point the material block's first member at another struct type.
	meta.Stages[1].Types[1].Members[0].TypeIndex = 0

	_, err := fillBindingLayout(&meta)
	assert.ErrorContains(t, err, "nested struct")
}

func TestBindingLayoutRejectsOutOfRangeTypeIndex(t *testing.T) {
	meta := device.ShaderMeta{
		Stages: []device.StageMeta{
			{
				Stage: device.StageVertex,
				Bindings: []device.ResourceBinding{
					binding("view", 0, 0, device.BindingUniformBuffer, 5, 64),
				},
				// No types at all, the block's index dangles.
			},
		},
	}

	layout, err := fillBindingLayout(&meta)
	assert.Nil(t, layout)
	assert.ErrorContains(t, err, "carries 0 types")
}

func TestProgramRejectsComputeStage(t *testing.T) {
	c, _ := newTestContext(t)
	meta := testShaderMeta()
	meta.Stages = append(meta.Stages, device.StageMeta{Stage: device.StageCompute})

	_, err := c.NewProgram(ProgramDesc{
		VertexCode: []byte{0x1},
		PixelCode:  []byte{0x2},
		Meta:       meta,
	})
	assert.ErrorContains(t, err, "compute")
}

func TestUniformLocationEncoding(t *testing.T) {
	loc := makeUniformLocation(3, 7, 2)
	assert.Equal(t, uint32(3), loc.Set())
	assert.Equal(t, uint32(7), loc.Binding())
	assert.Equal(t, uint32(2), loc.Member())
}

func TestProgramUniformLookup(t *testing.T) {
	c, _ := newTestContext(t)
	p := newTestProgram(t, c)

	assert.Equal(t, uint32(2), p.UniformBufferCount())
	assert.Equal(t, uint32(1), p.TextureCount())

	tint := p.UniformLocation("tint")
	require.NotEqual(t, InvalidUniformLocation, tint)
	assert.Equal(t, uint32(0), tint.Set())
	assert.Equal(t, uint32(1), tint.Binding())
	assert.Equal(t, uint32(1), tint.Member())
	assert.Equal(t, "tint", p.UniformName(tint))

	albedo := p.UniformLocation("albedo")
	require.NotEqual(t, InvalidUniformLocation, albedo)
	assert.Equal(t, uint32(2), albedo.Binding())
	assert.Equal(t, "albedo", p.UniformName(albedo))

	assert.Equal(t, InvalidUniformLocation, p.UniformLocation("no_such_uniform"))
	assert.Equal(t, "", p.UniformName(makeUniformLocation(9, 9, 0)))
}

func TestSetUniformWritesCPUShadow(t *testing.T) {
	c, _ := newTestContext(t)
	p := newTestProgram(t, c)
	c.SetProgram(p)

	tint := p.UniformLocation("tint")
	c.SetUniformVec4(tint, Vec4{1, 0, 0, 1})

	material := p.bindings.uniformBuffers[1]
	assert.True(t, material.dirty)
	var expected [16]byte
	float32Bytes(expected[:], []float32{1, 0, 0, 1})
	assert.Equal(t, expected[:], material.data[16:32])

	assert.Panics(t, func() {
		c.SetUniformMat4(tint, Mat4{})
	}, "a mat4 does not fit the remaining block space")
}
