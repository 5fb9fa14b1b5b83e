package device

import "hash/fnv"

// HashName is the canonical hash for shader resource, uniform and vertex
// attribute names. Reflection producers and consumers must agree on it.
func HashName(name string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return h.Sum64()
}

// StageFlags is a bitmask of the shader stages a resource is visible to.
type StageFlags uint8

const (
	StageVertex StageFlags = 1 << iota
	StageFragment
	StageCompute
)

// BindingKind classifies what a reflected shader resource binds.
type BindingKind uint8

const (
	BindingNone BindingKind = iota
	BindingUniformBuffer
	BindingTexture
	BindingStorageBuffer
)

type DataType uint8

const (
	TypeFloat DataType = iota
	TypeVec2
	TypeVec3
	TypeVec4
	TypeMat4
	TypeInt
	TypeSampler2D
	TypeSamplerCube
	TypeStruct
)

// NoType marks a member or binding that carries no nested type table entry.
const NoType uint32 = 0xFFFFFFFF

// Member is one field of a reflected uniform block. A TypeIndex other than
// NoType points into the owning ShaderMeta's Types table.
type Member struct {
	Name         string
	NameHash     uint64
	Type         DataType
	TypeIndex    uint32
	ElementCount uint32
	Offset       uint32
}

// TypeInfo describes a struct type reflected from shader source.
type TypeInfo struct {
	Members []Member
}

// ResourceBinding is one reflected shader resource: a uniform buffer,
// texture or storage buffer at a (set, binding) coordinate.
type ResourceBinding struct {
	Name      string
	NameHash  uint64
	Set       uint32
	Binding   uint32
	Kind      BindingKind
	Type      DataType
	TypeIndex uint32
	// BlockSize is the byte size of a uniform block, zero otherwise.
	BlockSize uint32
}

// VertexInput is one vertex-stage input attribute.
type VertexInput struct {
	Name     string
	NameHash uint64
	Location uint32
	Type     DataType
}

// StageMeta is the reflection output for a single shader stage.
type StageMeta struct {
	Stage    StageFlags
	Bindings []ResourceBinding
	Inputs   []VertexInput
	Types    []TypeInfo
}

// ShaderMeta aggregates reflection for all stages of one program.
type ShaderMeta struct {
	Stages []StageMeta
}
