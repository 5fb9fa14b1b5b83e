package backend

import (
	"encoding/binary"
	"math"

	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/engine/renderer/device"
)

type Vec4 [4]float32

// Mat4 is column-major, matching what the shader side expects.
type Mat4 [16]float32

func float32Bytes(dst []byte, values []float32) {
	for i, v := range values {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}

// SetUniformVec4 stores a vec4 into the bound program's CPU shadow. The
// value reaches the GPU at the next draw via the frame's scratch buffer.
func (c *Context) SetUniformVec4(location UniformLocation, value Vec4) {
	core.Assertf(c.currentProgram != nil, "SetUniformVec4 with no program bound")
	var buf [16]byte
	float32Bytes(buf[:], value[:])
	c.currentProgram.setUniformBytes(location, buf[:])
}

// SetUniformVec4Array stores count consecutive vec4 elements.
func (c *Context) SetUniformVec4Array(location UniformLocation, values []Vec4) {
	core.Assertf(c.currentProgram != nil, "SetUniformVec4Array with no program bound")
	buf := make([]byte, len(values)*16)
	for i, v := range values {
		float32Bytes(buf[i*16:(i+1)*16], v[:])
	}
	c.currentProgram.setUniformBytes(location, buf)
}

// SetUniformMat4 stores a mat4 into the bound program's CPU shadow.
func (c *Context) SetUniformMat4(location UniformLocation, value Mat4) {
	core.Assertf(c.currentProgram != nil, "SetUniformMat4 with no program bound")
	var buf [64]byte
	float32Bytes(buf[:], value[:])
	c.currentProgram.setUniformBytes(location, buf[:])
}

// SetSampler routes a sampler uniform to a texture unit, so the texture
// bound at that unit is the one the shader samples.
func (c *Context) SetSampler(location UniformLocation, unit uint32) {
	core.Assertf(c.currentProgram != nil, "SetSampler with no program bound")
	p := c.currentProgram
	res := p.findResource(location.Set(), location.Binding())
	core.Assertf(res != nil && res.binding.Kind == device.BindingTexture, "SetSampler location %x is not a texture", uint64(location))

	for i, t := range p.bindings.textures {
		if t == res {
			p.textureUnits[i] = unit
			return
		}
	}
}
