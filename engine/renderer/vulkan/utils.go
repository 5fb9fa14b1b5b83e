package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/emberengine/ember/engine/renderer/device"
)

func resultIsSuccess(result vk.Result) bool {
	switch result {
	case vk.Success, vk.NotReady, vk.Timeout, vk.EventSet, vk.EventReset,
		vk.Incomplete, vk.Suboptimal, vk.ThreadIdle, vk.ThreadDone,
		vk.OperationDeferred, vk.OperationNotDeferred, vk.PipelineCompileRequired:
		return true
	}
	return false
}

// resultToError maps a failed vk.Result onto the backend error taxonomy.
func resultToError(what string, result vk.Result) error {
	switch result {
	case vk.ErrorDeviceLost:
		return fmt.Errorf("%s: %w", what, device.ErrDeviceLost)
	case vk.Timeout:
		return fmt.Errorf("%s: %w", what, device.ErrTimeout)
	case vk.ErrorOutOfHostMemory, vk.ErrorOutOfDeviceMemory, vk.ErrorOutOfPoolMemory:
		return fmt.Errorf("%s: %w", what, device.ErrOutOfMemory)
	case vk.ErrorOutOfDate:
		return fmt.Errorf("%s: %w", what, device.ErrOutOfDate)
	}
	return fmt.Errorf("%s: vulkan result %d", what, result)
}

func checkResult(what string, result vk.Result) error {
	if resultIsSuccess(result) {
		return nil
	}
	return resultToError(what, result)
}

func vkFormat(f device.TextureFormat) vk.Format {
	switch f {
	case device.FormatRGBA8:
		return vk.FormatR8g8b8a8Unorm
	case device.FormatRGB8:
		// RGB uploads are padded to RGBA before they reach the device.
		return vk.FormatR8g8b8a8Unorm
	case device.FormatR8:
		return vk.FormatR8Unorm
	case device.FormatRG8:
		return vk.FormatR8g8Unorm
	case device.FormatRGBA16F:
		return vk.FormatR16g16b16a16Sfloat
	case device.FormatRGBA32F:
		return vk.FormatR32g32b32a32Sfloat
	case device.FormatDepth32F:
		return vk.FormatD32Sfloat
	case device.FormatDepth24Stencil8:
		return vk.FormatD24UnormS8Uint
	}
	return vk.FormatUndefined
}

func vkCompareOp(f device.CompareFunc) vk.CompareOp {
	switch f {
	case device.CompareNever:
		return vk.CompareOpNever
	case device.CompareLess:
		return vk.CompareOpLess
	case device.CompareEqual:
		return vk.CompareOpEqual
	case device.CompareLessEqual:
		return vk.CompareOpLessOrEqual
	case device.CompareGreater:
		return vk.CompareOpGreater
	case device.CompareNotEqual:
		return vk.CompareOpNotEqual
	case device.CompareGreaterEqual:
		return vk.CompareOpGreaterOrEqual
	}
	return vk.CompareOpAlways
}

func vkBlendFactor(f device.BlendFactor) vk.BlendFactor {
	switch f {
	case device.BlendZero:
		return vk.BlendFactorZero
	case device.BlendOne:
		return vk.BlendFactorOne
	case device.BlendSrcColor:
		return vk.BlendFactorSrcColor
	case device.BlendOneMinusSrcColor:
		return vk.BlendFactorOneMinusSrcColor
	case device.BlendDstColor:
		return vk.BlendFactorDstColor
	case device.BlendOneMinusDstColor:
		return vk.BlendFactorOneMinusDstColor
	case device.BlendSrcAlpha:
		return vk.BlendFactorSrcAlpha
	case device.BlendOneMinusSrcAlpha:
		return vk.BlendFactorOneMinusSrcAlpha
	case device.BlendDstAlpha:
		return vk.BlendFactorDstAlpha
	case device.BlendOneMinusDstAlpha:
		return vk.BlendFactorOneMinusDstAlpha
	}
	return vk.BlendFactorOne
}

func vkStencilOp(op device.StencilOp) vk.StencilOp {
	switch op {
	case device.StencilZero:
		return vk.StencilOpZero
	case device.StencilReplace:
		return vk.StencilOpReplace
	case device.StencilIncr:
		return vk.StencilOpIncrementAndClamp
	case device.StencilIncrWrap:
		return vk.StencilOpIncrementAndWrap
	case device.StencilDecr:
		return vk.StencilOpDecrementAndClamp
	case device.StencilDecrWrap:
		return vk.StencilOpDecrementAndWrap
	case device.StencilInvert:
		return vk.StencilOpInvert
	}
	return vk.StencilOpKeep
}

func vkAttributeFormat(t device.DataType) vk.Format {
	switch t {
	case device.TypeFloat:
		return vk.FormatR32Sfloat
	case device.TypeVec2:
		return vk.FormatR32g32Sfloat
	case device.TypeVec3:
		return vk.FormatR32g32b32Sfloat
	case device.TypeVec4:
		return vk.FormatR32g32b32a32Sfloat
	case device.TypeInt:
		return vk.FormatR32Sint
	}
	return vk.FormatUndefined
}

func vkFilter(f device.FilterMode) vk.Filter {
	if f == device.FilterNearest {
		return vk.FilterNearest
	}
	return vk.FilterLinear
}

func vkWrap(w device.WrapMode) vk.SamplerAddressMode {
	switch w {
	case device.WrapClampToEdge:
		return vk.SamplerAddressModeClampToEdge
	case device.WrapMirroredRepeat:
		return vk.SamplerAddressModeMirroredRepeat
	}
	return vk.SamplerAddressModeRepeat
}
