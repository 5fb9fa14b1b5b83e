package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberengine/ember/engine/renderer/device"
)

func TestPipelineCompiledOncePerStateCombination(t *testing.T) {
	c, dev := newTestContext(t)
	_, _ = beginDrawFrame(t, c)

	require.NoError(t, c.Draw(3, 0))
	require.NoError(t, c.Draw(3, 0))
	require.NoError(t, c.Draw(6, 3))

	assert.Equal(t, 1, dev.pipelines)
	assert.Equal(t, 1, c.pipelineCache.Len())
	require.NoError(t, c.EndFrame())
}

func TestPipelineStateChangeCompilesNewPipeline(t *testing.T) {
	c, dev := newTestContext(t)
	_, _ = beginDrawFrame(t, c)

	require.NoError(t, c.Draw(3, 0))

	state := *c.PipelineState()
	state.BlendEnabled = true
	state.BlendSrcFactor = device.BlendSrcAlpha
	state.BlendDstFactor = device.BlendOneMinusSrcAlpha
	c.SetPipelineState(state)
	require.NoError(t, c.Draw(3, 0))
	assert.Equal(t, 2, dev.pipelines)

	// Switching back to the original state is a cache hit.
	c.SetPipelineState(device.DefaultPipelineState())
	require.NoError(t, c.Draw(3, 0))
	assert.Equal(t, 2, dev.pipelines)

	require.NoError(t, c.EndFrame())
}

func TestVertexStrideChangeCompilesNewPipeline(t *testing.T) {
	c, dev := newTestContext(t)
	_, _ = beginDrawFrame(t, c)

	require.NoError(t, c.Draw(3, 0))

	// Same streams, wider stride: the layout differs in memory even
	// though the attributes match, so the pipeline must differ too.
	padded := NewVertexDeclarationStride([]VertexStream{
		{Name: "position", Type: device.TypeVec3},
		{Name: "texcoord", Type: device.TypeVec2},
	}, 32, StepPerVertex)
	c.SetVertexBuffer(c.boundVertexBuffer, padded)
	require.NoError(t, c.Draw(3, 0))
	assert.Equal(t, 2, dev.pipelines)

	require.NoError(t, c.EndFrame())
}

func TestStepFunctionChangeCompilesNewPipeline(t *testing.T) {
	c, dev := newTestContext(t)
	_, _ = beginDrawFrame(t, c)

	require.NoError(t, c.Draw(3, 0))

	perInstance := NewVertexDeclarationStride([]VertexStream{
		{Name: "position", Type: device.TypeVec3},
		{Name: "texcoord", Type: device.TypeVec2},
	}, 20, StepPerInstance)
	c.SetVertexBuffer(c.boundVertexBuffer, perInstance)
	require.NoError(t, c.Draw(3, 0))
	assert.Equal(t, 2, dev.pipelines)

	require.NoError(t, c.EndFrame())
}

func TestRenderTargetIdentityFeedsPipelineKey(t *testing.T) {
	c, dev := newTestContext(t)
	_, _ = beginDrawFrame(t, c)

	require.NoError(t, c.Draw(3, 0))

	offscreen, err := c.NewRenderTarget(128, 128, []device.TextureFormat{device.FormatRGBA8}, device.FormatDepth32F)
	require.NoError(t, err)
	c.BeginRenderTarget(offscreen, [4]float32{})
	require.NoError(t, c.Draw(3, 0))
	assert.Equal(t, 2, dev.pipelines)

	// Back on the main target the original pipeline is reused.
	c.BeginRenderTarget(nil, [4]float32{})
	require.NoError(t, c.Draw(3, 0))
	assert.Equal(t, 2, dev.pipelines)

	require.NoError(t, c.EndFrame())
	c.DestroyRenderTarget(offscreen)
}

func TestVertexDeclarationRejectsUnfedShaderInput(t *testing.T) {
	c, _ := newTestContext(t)
	_, _ = beginDrawFrame(t, c)

	positionOnly := NewVertexDeclaration([]VertexStream{
		{Name: "position", Type: device.TypeVec3},
	})
	c.SetVertexBuffer(c.boundVertexBuffer, positionOnly)

	err := c.Draw(3, 0)
	assert.ErrorContains(t, err, "no stream")

	require.NoError(t, c.EndFrame())
}
