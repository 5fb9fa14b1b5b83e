package backend

import (
	"encoding/binary"
	"hash"
	"hash/fnv"
	"math"

	"github.com/emberengine/ember/engine/renderer/device"
)

// stateHasher accumulates an FNV-1a digest over the fields that identify a
// pipeline. Field order matters and must stay stable across runs of the
// same binary, which is all the cache needs.
type stateHasher struct {
	h       hash.Hash64
	scratch [8]byte
}

func newStateHasher() *stateHasher {
	return &stateHasher{h: fnv.New64a()}
}

func (s *stateHasher) writeU8(v uint8) {
	s.scratch[0] = v
	s.h.Write(s.scratch[:1])
}

func (s *stateHasher) writeBool(v bool) {
	if v {
		s.writeU8(1)
	} else {
		s.writeU8(0)
	}
}

func (s *stateHasher) writeU32(v uint32) {
	binary.LittleEndian.PutUint32(s.scratch[:4], v)
	s.h.Write(s.scratch[:4])
}

func (s *stateHasher) writeU64(v uint64) {
	binary.LittleEndian.PutUint64(s.scratch[:8], v)
	s.h.Write(s.scratch[:8])
}

func (s *stateHasher) writeF32(v float32) {
	s.writeU32(math.Float32bits(v))
}

func (s *stateHasher) writePipelineState(ps *device.PipelineState) {
	s.writeU8(ps.WriteColorMask)
	s.writeBool(ps.WriteDepth)
	s.writeU8(uint8(ps.PrimitiveType))
	s.writeBool(ps.DepthTestEnabled)
	s.writeU8(uint8(ps.DepthTestFunc))
	s.writeBool(ps.BlendEnabled)
	s.writeU8(uint8(ps.BlendSrcFactor))
	s.writeU8(uint8(ps.BlendDstFactor))
	s.writeBool(ps.CullFaceEnabled)
	s.writeU8(uint8(ps.CullFaceType))
	s.writeU8(uint8(ps.FaceWinding))
	s.writeBool(ps.StencilEnabled)
	s.writeU8(ps.StencilWriteMask)
	s.writeU8(ps.StencilCompareMask)
	s.writeU8(ps.StencilReference)
	s.writeStencilFace(&ps.StencilFront)
	s.writeStencilFace(&ps.StencilBack)
	s.writeF32(ps.PolygonOffsetFactor)
	s.writeF32(ps.PolygonOffsetUnits)
}

func (s *stateHasher) writeStencilFace(f *device.StencilFaceState) {
	s.writeU8(uint8(f.Func))
	s.writeU8(uint8(f.OpFail))
	s.writeU8(uint8(f.OpDepthFail))
	s.writeU8(uint8(f.OpPass))
}

func (s *stateHasher) sum() uint64 {
	return s.h.Sum64()
}

// hashString is FNV-1a over a string, used for shader resource and vertex
// attribute name lookups.
func hashString(str string) uint64 {
	return device.HashName(str)
}
