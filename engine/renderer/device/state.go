package device

type CompareFunc uint8

const (
	CompareNever CompareFunc = iota
	CompareLess
	CompareEqual
	CompareLessEqual
	CompareGreater
	CompareNotEqual
	CompareGreaterEqual
	CompareAlways
)

type BlendFactor uint8

const (
	BlendZero BlendFactor = iota
	BlendOne
	BlendSrcColor
	BlendOneMinusSrcColor
	BlendDstColor
	BlendOneMinusDstColor
	BlendSrcAlpha
	BlendOneMinusSrcAlpha
	BlendDstAlpha
	BlendOneMinusDstAlpha
)

type CullFace uint8

const (
	CullNone CullFace = iota
	CullFront
	CullBack
)

type FaceWinding uint8

const (
	WindingCCW FaceWinding = iota
	WindingCW
)

type StencilOp uint8

const (
	StencilKeep StencilOp = iota
	StencilZero
	StencilReplace
	StencilIncr
	StencilIncrWrap
	StencilDecr
	StencilDecrWrap
	StencilInvert
)

type PrimitiveType uint8

const (
	PrimitiveTriangles PrimitiveType = iota
	PrimitiveTriangleStrip
	PrimitiveLines
)

type StencilFaceState struct {
	Func        CompareFunc
	OpFail      StencilOp
	OpDepthFail StencilOp
	OpPass      StencilOp
}

// PipelineState is the full fixed-function state a pipeline is built from.
// It must stay flat and padding-free enough to be hashed byte-for-byte.
type PipelineState struct {
	WriteColorMask      uint8
	WriteDepth          bool
	PrimitiveType       PrimitiveType
	DepthTestEnabled    bool
	DepthTestFunc       CompareFunc
	BlendEnabled        bool
	BlendSrcFactor      BlendFactor
	BlendDstFactor      BlendFactor
	CullFaceEnabled     bool
	CullFaceType        CullFace
	FaceWinding         FaceWinding
	StencilEnabled      bool
	StencilWriteMask    uint8
	StencilCompareMask  uint8
	StencilReference    uint8
	StencilFront        StencilFaceState
	StencilBack         StencilFaceState
	PolygonOffsetFactor float32
	PolygonOffsetUnits  float32
}

func DefaultPipelineState() PipelineState {
	return PipelineState{
		WriteColorMask:   0xF,
		WriteDepth:       true,
		PrimitiveType:    PrimitiveTriangles,
		DepthTestEnabled: true,
		DepthTestFunc:    CompareLessEqual,
		BlendSrcFactor:   BlendOne,
		BlendDstFactor:   BlendZero,
		CullFaceEnabled:  false,
		CullFaceType:     CullBack,
		FaceWinding:      WindingCCW,
	}
}
