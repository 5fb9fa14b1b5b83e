package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/engine/renderer/device"
)

type image struct {
	handle vk.Image
	memory vk.DeviceMemory
	view   vk.ImageView
	width  uint32
	height uint32
}

func newImage(d *Device, width, height, mipLevels uint32, format vk.Format, usage vk.ImageUsageFlags, aspect vk.ImageAspectFlags) (*image, error) {
	img := &image{width: width, height: height}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Extent:        vk.Extent3D{Width: width, Height: height, Depth: 1},
		MipLevels:     mipLevels,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         usage,
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}
	var handle vk.Image
	if res := vk.CreateImage(d.logicalDevice, &imageCreateInfo, d.allocator, &handle); res != vk.Success {
		return nil, resultToError("create image", res)
	}
	img.handle = handle

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.logicalDevice, img.handle, &memoryRequirements)
	memoryRequirements.Deref()

	memoryIndex := d.findMemoryIndex(memoryRequirements.MemoryTypeBits, uint32(vk.MemoryPropertyDeviceLocalBit))
	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(d.logicalDevice, &allocateInfo, d.allocator, &memory); res != vk.Success {
		return nil, resultToError("allocate image memory", res)
	}
	img.memory = memory

	if res := vk.BindImageMemory(d.logicalDevice, img.handle, img.memory, 0); res != vk.Success {
		return nil, resultToError("bind image memory", res)
	}

	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.handle,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: mipLevels,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(d.logicalDevice, &viewCreateInfo, d.allocator, &view); res != vk.Success {
		return nil, resultToError("create image view", res)
	}
	img.view = view
	return img, nil
}

func (img *image) destroy(d *Device) {
	if img.view != vk.NullImageView {
		vk.DestroyImageView(d.logicalDevice, img.view, d.allocator)
	}
	if img.handle != vk.NullImage {
		vk.DestroyImage(d.logicalDevice, img.handle, d.allocator)
	}
	if img.memory != vk.NullDeviceMemory {
		vk.FreeMemory(d.logicalDevice, img.memory, d.allocator)
	}
}

// texture implements device.Texture with optimal tiling and a staging
// buffer upload path.
type texture struct {
	device    *Device
	image     *image
	format    device.TextureFormat
	mipLevels uint32
}

func (d *Device) CreateTexture(width, height, mipLevels uint32, format device.TextureFormat) (device.Texture, error) {
	usage := vk.ImageUsageFlags(vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit)
	aspect := vk.ImageAspectFlags(vk.ImageAspectColorBit)
	if format.IsDepthStencil() {
		usage = vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit | vk.ImageUsageSampledBit)
		aspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}

	img, err := newImage(d, width, height, mipLevels, vkFormat(format), usage, aspect)
	if err != nil {
		core.LogError("failed to create %dx%d vulkan texture", width, height)
		return nil, err
	}
	return &texture{device: d, image: img, format: format, mipLevels: mipLevels}, nil
}

func (t *texture) Width() uint32                { return t.image.width }
func (t *texture) Height() uint32               { return t.image.height }
func (t *texture) Format() device.TextureFormat { return t.format }
func (t *texture) MipLevels() uint32            { return t.mipLevels }

func (t *texture) Upload(mip uint32, data []byte) error {
	d := t.device

	staging, err := newRawBuffer(d, uint32(len(data)),
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		uint32(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return err
	}
	defer staging.destroy(d)

	if err := staging.write(d, data, 0); err != nil {
		return err
	}

	cmd, err := d.beginSingleUse()
	if err != nil {
		return err
	}

	width := t.image.width >> mip
	height := t.image.height >> mip
	if width == 0 {
		width = 1
	}
	if height == 0 {
		height = 1
	}

	transitionImageLayout(cmd, t.image.handle, mip, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:   mip,
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{Width: width, Height: height, Depth: 1},
	}
	vk.CmdCopyBufferToImage(cmd, staging.handle, t.image.handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
	transitionImageLayout(cmd, t.image.handle, mip, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)

	return d.endSingleUse(cmd)
}

func (t *texture) Destroy() {
	t.image.destroy(t.device)
}

func transitionImageLayout(cmd vk.CommandBuffer, img vk.Image, mip uint32, oldLayout, newLayout vk.ImageLayout) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:   vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel: mip,
			LevelCount:   1,
			LayerCount:   1,
		},
	}

	var srcStage, dstStage vk.PipelineStageFlags
	if oldLayout == vk.ImageLayoutUndefined {
		barrier.SrcAccessMask = 0
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		srcStage = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	} else {
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		srcStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	}

	vk.CmdPipelineBarrier(cmd, srcStage, dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

type sampler struct {
	device *Device
	handle vk.Sampler
	desc   device.SamplerDesc
}

func (d *Device) CreateSampler(desc device.SamplerDesc) (device.Sampler, error) {
	samplerCreateInfo := vk.SamplerCreateInfo{
		SType:        vk.StructureTypeSamplerCreateInfo,
		MagFilter:    vkFilter(desc.MagFilter),
		MinFilter:    vkFilter(desc.MinFilter),
		AddressModeU: vkWrap(desc.WrapU),
		AddressModeV: vkWrap(desc.WrapV),
		AddressModeW: vkWrap(desc.WrapU),
		MipmapMode:   vk.SamplerMipmapModeLinear,
	}
	if desc.MaxAnisotropy > 0 {
		samplerCreateInfo.AnisotropyEnable = vk.True
		samplerCreateInfo.MaxAnisotropy = float32(desc.MaxAnisotropy)
	}

	var handle vk.Sampler
	if res := vk.CreateSampler(d.logicalDevice, &samplerCreateInfo, d.allocator, &handle); res != vk.Success {
		return nil, resultToError("create sampler", res)
	}
	return &sampler{device: d, handle: handle, desc: desc}, nil
}

func (s *sampler) Desc() device.SamplerDesc { return s.desc }

func (s *sampler) Destroy() {
	vk.DestroySampler(s.device.logicalDevice, s.handle, s.device.allocator)
}

// beginSingleUse allocates and starts a throwaway command buffer for
// transfer work.
func (d *Device) beginSingleUse() (vk.CommandBuffer, error) {
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	buffers := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(d.logicalDevice, &allocateInfo, buffers); res != vk.Success {
		return nil, resultToError("allocate single-use command buffer", res)
	}

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(buffers[0], &beginInfo); res != vk.Success {
		return nil, resultToError("begin single-use command buffer", res)
	}
	return buffers[0], nil
}

func (d *Device) endSingleUse(cmd vk.CommandBuffer) error {
	if res := vk.EndCommandBuffer(cmd); res != vk.Success {
		return resultToError("end single-use command buffer", res)
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cmd},
	}
	if res := vk.QueueSubmit(d.graphicsQueue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence); res != vk.Success {
		return resultToError("submit single-use command buffer", res)
	}
	// Transfer work is rare enough that a full queue drain is acceptable.
	if res := vk.QueueWaitIdle(d.graphicsQueue); res != vk.Success {
		return resultToError("wait for single-use command buffer", res)
	}

	vk.FreeCommandBuffers(d.logicalDevice, d.commandPool, 1, []vk.CommandBuffer{cmd})
	return nil
}
