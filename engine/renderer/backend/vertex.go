package backend

import (
	"fmt"

	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/engine/renderer/device"
)

type VertexStepFunction uint8

const (
	StepPerVertex VertexStepFunction = iota
	StepPerInstance
)

// VertexStream is one attribute of a vertex declaration, identified by
// name so it can be matched against shader reflection at pipeline time.
type VertexStream struct {
	Name       string
	nameHash   uint64
	Type       device.DataType
	Normalized bool
	offset     uint32
}

// VertexDeclaration describes one vertex buffer's memory layout. Two
// declarations with the same streams but different strides or step
// functions hash differently and therefore compile distinct pipelines.
type VertexDeclaration struct {
	streams      []VertexStream
	stride       uint32
	stepFunction VertexStepFunction
	hash         uint64
}

func dataTypeSize(t device.DataType) uint32 {
	switch t {
	case device.TypeFloat, device.TypeInt:
		return 4
	case device.TypeVec2:
		return 8
	case device.TypeVec3:
		return 12
	case device.TypeVec4:
		return 16
	case device.TypeMat4:
		return 64
	}
	core.Assertf(false, "vertex stream with non-attribute type %d", t)
	return 0
}

// NewVertexDeclaration packs the streams tightly and derives the stride
// from their sizes.
func NewVertexDeclaration(streams []VertexStream) *VertexDeclaration {
	stride := uint32(0)
	for _, s := range streams {
		stride += dataTypeSize(s.Type)
	}
	return NewVertexDeclarationStride(streams, stride, StepPerVertex)
}

// NewVertexDeclarationStride takes an explicit stride for sparse or
// interleaved layouts, plus the step function.
func NewVertexDeclarationStride(streams []VertexStream, stride uint32, step VertexStepFunction) *VertexDeclaration {
	core.Assertf(len(streams) > 0, "vertex declaration with no streams")

	d := &VertexDeclaration{
		streams:      make([]VertexStream, len(streams)),
		stride:       stride,
		stepFunction: step,
	}
	offset := uint32(0)
	for i, s := range streams {
		s.nameHash = hashString(s.Name)
		s.offset = offset
		offset += dataTypeSize(s.Type)
		d.streams[i] = s
	}
	core.Assertf(offset <= stride, "vertex streams overflow the declared stride")

	h := newStateHasher()
	h.writeU32(d.stride)
	h.writeU8(uint8(d.stepFunction))
	for _, s := range d.streams {
		h.writeU64(s.nameHash)
		h.writeU8(uint8(s.Type))
		h.writeBool(s.Normalized)
		h.writeU32(s.offset)
	}
	d.hash = h.sum()
	return d
}

func (d *VertexDeclaration) Stride() uint32 {
	return d.stride
}

// bufferLayout resolves the declaration against a program's vertex-stage
// inputs by name hash. Streams the shader does not consume are skipped;
// inputs the declaration does not feed are an error.
func (d *VertexDeclaration) bufferLayout(program *Program) (device.VertexBufferLayout, error) {
	layout := device.VertexBufferLayout{
		Stride:      d.stride,
		PerInstance: d.stepFunction == StepPerInstance,
	}

	matched := 0
	for _, input := range program.vertexInputs {
		found := false
		for _, s := range d.streams {
			if s.nameHash == input.NameHash {
				layout.Attributes = append(layout.Attributes, device.VertexAttribute{
					Location:   input.Location,
					Offset:     s.offset,
					Type:       s.Type,
					Normalized: s.Normalized,
				})
				matched++
				found = true
				break
			}
		}
		if !found {
			return device.VertexBufferLayout{}, fmt.Errorf("renderer: vertex input %q has no stream in the declaration", input.Name)
		}
	}
	if matched == 0 {
		return device.VertexBufferLayout{}, fmt.Errorf("renderer: vertex declaration matches no shader input")
	}
	return layout, nil
}
