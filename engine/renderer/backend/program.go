package backend

import (
	"fmt"

	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/engine/renderer/device"
)

// UniformLocation packs the coordinates of a uniform into one value:
// the descriptor set in the low 16 bits, the binding in the next 16 and
// the member index within a uniform block in the high 32.
type UniformLocation uint64

const InvalidUniformLocation UniformLocation = 0xFFFFFFFFFFFFFFFF

func makeUniformLocation(set, binding, member uint32) UniformLocation {
	return UniformLocation(uint64(set) | uint64(binding)<<16 | uint64(member)<<32)
}

func (l UniformLocation) Set() uint32     { return uint32(uint64(l) & 0xFFFF) }
func (l UniformLocation) Binding() uint32 { return uint32((uint64(l) >> 16) & 0xFFFF) }
func (l UniformLocation) Member() uint32  { return uint32(uint64(l) >> 32) }

// programResource is one claimed shader resource after merging all stages.
type programResource struct {
	binding device.ResourceBinding
	stages  device.StageFlags
	// Uniform blocks only: member layout and the CPU shadow copy that
	// SetUniform writes into and commitUniforms uploads from.
	members []device.Member
	data    []byte
	dirty   bool
	// Scratch region holding the last upload of the shadow. Only valid
	// while regionFrame matches the context's frame counter, scratch
	// memory is recycled every frame.
	region      ConstantRegion
	regionFrame uint64
}

// bindingLayout is the merged view over every stage's reflection. Root
// parameter order is uniform buffers first in claim order, then one
// texture/sampler table pair per texture unit.
type bindingLayout struct {
	uniformBuffers []*programResource
	textures       []*programResource
	storageBuffers []*programResource
	maxSet         uint32
	maxBinding     uint32
}

// fillBindingLayout merges the stage reflections. A resource coordinate
// (set, binding) is claimed by the first stage that mentions it; later
// stages only OR their visibility into the claim. A later stage that
// redeclares the coordinate with a different kind is an error.
func fillBindingLayout(meta *device.ShaderMeta) (*bindingLayout, error) {
	layout := &bindingLayout{}

	type coord struct{ set, binding uint32 }
	claimed := make(map[coord]*programResource)

	for si := range meta.Stages {
		stage := &meta.Stages[si]
		for bi := range stage.Bindings {
			b := stage.Bindings[bi]
			key := coord{b.Set, b.Binding}

			if prior, ok := claimed[key]; ok {
				if prior.binding.Kind != b.Kind {
					return nil, fmt.Errorf("renderer: resource %q at set=%d binding=%d redeclared with a different kind", b.Name, b.Set, b.Binding)
				}
				prior.stages |= stage.Stage
				continue
			}

			res := &programResource{binding: b, stages: stage.Stage}
			if b.Kind == device.BindingUniformBuffer {
				if b.TypeIndex == device.NoType {
					return nil, fmt.Errorf("renderer: uniform block %q has no type information", b.Name)
				}
				// Reflection metadata is external input, an out-of-range
				// index must not take down the process.
				if b.TypeIndex >= uint32(len(stage.Types)) {
					return nil, fmt.Errorf("renderer: uniform block %q points at type %d but the stage carries %d types", b.Name, b.TypeIndex, len(stage.Types))
				}
				members := stage.Types[b.TypeIndex].Members
				for _, m := range members {
					if m.TypeIndex != device.NoType {
						return nil, fmt.Errorf("renderer: uniform member %q in block %q is a nested struct, only flat blocks are supported", m.Name, b.Name)
					}
				}
				res.members = members
				res.data = make([]byte, b.BlockSize)
			}

			claimed[key] = res
			switch b.Kind {
			case device.BindingUniformBuffer:
				layout.uniformBuffers = append(layout.uniformBuffers, res)
			case device.BindingTexture:
				layout.textures = append(layout.textures, res)
			case device.BindingStorageBuffer:
				layout.storageBuffers = append(layout.storageBuffers, res)
			default:
				return nil, fmt.Errorf("renderer: resource %q has unknown binding kind", b.Name)
			}

			if b.Set+1 > layout.maxSet {
				layout.maxSet = b.Set + 1
			}
			if b.Binding+1 > layout.maxBinding {
				layout.maxBinding = b.Binding + 1
			}
		}
	}
	return layout, nil
}

// Program is a compiled shader pair plus the merged binding layout every
// pipeline built from it shares.
type Program struct {
	id           *core.Identifier
	vertexModule device.ShaderModule
	pixelModule  device.ShaderModule
	layout       device.RootLayout
	bindings     *bindingLayout
	vertexInputs []device.VertexInput
	// textureUnits[i] is the texture unit resource i samples from,
	// defaulting to its claim order and overridable with SetSampler.
	textureUnits []uint32
}

type ProgramDesc struct {
	VertexCode []byte
	PixelCode  []byte
	Meta       device.ShaderMeta
}

func (c *Context) NewProgram(desc ProgramDesc) (*Program, error) {
	bindings, err := fillBindingLayout(&desc.Meta)
	if err != nil {
		core.LogError("failed to build program binding layout")
		return nil, err
	}

	p := &Program{bindings: bindings}
	for si := range desc.Meta.Stages {
		switch desc.Meta.Stages[si].Stage {
		case device.StageVertex:
			p.vertexInputs = desc.Meta.Stages[si].Inputs
		case device.StageCompute:
			return nil, fmt.Errorf("renderer: compute stages cannot form a graphics program")
		}
	}

	p.vertexModule, err = c.device.CreateShaderModule(device.StageVertex, desc.VertexCode)
	if err != nil {
		core.LogError("failed to create vertex shader module")
		return nil, err
	}
	p.pixelModule, err = c.device.CreateShaderModule(device.StageFragment, desc.PixelCode)
	if err != nil {
		p.vertexModule.Destroy()
		core.LogError("failed to create pixel shader module")
		return nil, err
	}

	layoutDesc := device.RootLayoutDesc{SamplerCount: uint32(len(bindings.textures))}
	for _, ub := range bindings.uniformBuffers {
		layoutDesc.UniformBuffers = append(layoutDesc.UniformBuffers, ub.binding)
	}
	for _, t := range bindings.textures {
		layoutDesc.Textures = append(layoutDesc.Textures, t.binding)
	}
	p.layout, err = c.device.CreateRootLayout(layoutDesc)
	if err != nil {
		p.vertexModule.Destroy()
		p.pixelModule.Destroy()
		core.LogError("failed to create root layout")
		return nil, err
	}

	p.textureUnits = make([]uint32, len(bindings.textures))
	for i := range p.textureUnits {
		p.textureUnits[i] = uint32(i)
	}
	p.id = core.IdentifierAquireNewID(p)
	core.LogDebug("created program %d with %d uniform buffers and %d textures",
		p.id.UniqueID, len(bindings.uniformBuffers), len(bindings.textures))
	return p, nil
}

// DestroyProgram retires the program's device objects into the current
// frame slot.
func (c *Context) DestroyProgram(p *Program) {
	c.DestroyResourceDeferred(p.layout)
	c.DestroyResourceDeferred(p.vertexModule)
	c.DestroyResourceDeferred(p.pixelModule)
	if c.currentProgram == p {
		c.currentProgram = nil
	}
}

// UniformBufferCount is the number of root constant buffer parameters,
// which is also the root slot where texture tables start.
func (p *Program) UniformBufferCount() uint32 {
	return uint32(len(p.bindings.uniformBuffers))
}

func (p *Program) TextureCount() uint32 {
	return uint32(len(p.bindings.textures))
}

// UniformLocation finds a uniform block member or texture by name.
func (p *Program) UniformLocation(name string) UniformLocation {
	nameHash := hashString(name)
	for _, ub := range p.bindings.uniformBuffers {
		for mi, m := range ub.members {
			if m.NameHash == nameHash {
				return makeUniformLocation(ub.binding.Set, ub.binding.Binding, uint32(mi))
			}
		}
	}
	for _, t := range p.bindings.textures {
		if t.binding.NameHash == nameHash {
			return makeUniformLocation(t.binding.Set, t.binding.Binding, 0)
		}
	}
	return InvalidUniformLocation
}

// UniformName is the reverse of UniformLocation.
func (p *Program) UniformName(location UniformLocation) string {
	if res := p.findResource(location.Set(), location.Binding()); res != nil {
		if res.binding.Kind == device.BindingUniformBuffer {
			member := location.Member()
			if member < uint32(len(res.members)) {
				return res.members[member].Name
			}
			return ""
		}
		return res.binding.Name
	}
	return ""
}

func (p *Program) findResource(set, binding uint32) *programResource {
	for _, ub := range p.bindings.uniformBuffers {
		if ub.binding.Set == set && ub.binding.Binding == binding {
			return ub
		}
	}
	for _, t := range p.bindings.textures {
		if t.binding.Set == set && t.binding.Binding == binding {
			return t
		}
	}
	return nil
}

// setUniformBytes copies raw bytes into a block member's CPU shadow.
func (p *Program) setUniformBytes(location UniformLocation, data []byte) {
	res := p.findResource(location.Set(), location.Binding())
	core.Assertf(res != nil, "uniform location %x does not belong to this program", uint64(location))
	core.Assertf(res.binding.Kind == device.BindingUniformBuffer, "uniform location %x is not a block member", uint64(location))

	member := res.members[location.Member()]
	end := member.Offset + uint32(len(data))
	core.Assertf(end <= uint32(len(res.data)), "uniform %q write of %d bytes overflows its block", member.Name, len(data))
	copy(res.data[member.Offset:end], data)
	res.dirty = true
}

// textureIndexForUnit returns the texture resource currently mapped to a
// texture unit, or -1.
func (p *Program) textureIndexForUnit(unit uint32) int {
	for i, u := range p.textureUnits {
		if u == unit {
			return i
		}
	}
	return -1
}
