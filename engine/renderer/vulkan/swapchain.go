package vulkan

import (
	"math"

	vk "github.com/goki/vulkan"

	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/engine/mathx"
	"github.com/emberengine/ember/engine/renderer/device"
)

// swapchain owns the backbuffer images, the main render pass and the
// per-frame synchronization primitives the presentation engine needs.
type swapchain struct {
	handle       vk.Swapchain
	format       vk.Format
	extent       vk.Extent2D
	images       []vk.Image
	views        []vk.ImageView
	framebuffers []vk.Framebuffer
	renderPass   vk.RenderPass

	depthImage *image

	imageAvailable []vk.Semaphore
	renderComplete []vk.Semaphore
	semaphoreIndex uint32
	currentImage   uint32

	target *swapchainTarget
}

// swapchainTarget presents the backbuffer as one stable render target
// identity regardless of which image is being recorded this frame.
type swapchainTarget struct {
	sc *swapchain
	id uint32
}

func (t *swapchainTarget) ID() uint32     { return t.id }
func (t *swapchainTarget) Width() uint32  { return t.sc.extent.Width }
func (t *swapchainTarget) Height() uint32 { return t.sc.extent.Height }
func (t *swapchainTarget) ColorFormats() []device.TextureFormat {
	return []device.TextureFormat{device.FormatRGBA8}
}
func (t *swapchainTarget) DepthFormat() device.TextureFormat {
	return device.FormatDepth32F
}
func (t *swapchainTarget) Destroy() {}

func (t *swapchainTarget) renderPass() vk.RenderPass {
	return t.sc.renderPass
}

func (t *swapchainTarget) framebuffer() vk.Framebuffer {
	return t.sc.framebuffers[t.sc.currentImage]
}

func newSwapchain(d *Device, width, height uint32, vsync bool) (*swapchain, error) {
	sc := &swapchain{}

	var capabilities vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(d.physicalDevice, d.surface, &capabilities); res != vk.Success {
		return nil, resultToError("query surface capabilities", res)
	}
	capabilities.Deref()
	capabilities.CurrentExtent.Deref()
	capabilities.MinImageExtent.Deref()
	capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(d.physicalDevice, d.surface, &formatCount, nil)
	formats := make([]vk.SurfaceFormat, formatCount)
	vk.GetPhysicalDeviceSurfaceFormats(d.physicalDevice, d.surface, &formatCount, formats)

	surfaceFormat := formats[0]
	surfaceFormat.Deref()
	for i := range formats {
		formats[i].Deref()
		if formats[i].Format == vk.FormatB8g8r8a8Unorm && formats[i].ColorSpace == vk.ColorSpaceSrgbNonlinear {
			surfaceFormat = formats[i]
			break
		}
	}
	sc.format = surfaceFormat.Format

	presentMode := vk.PresentModeFifo
	if !vsync {
		var presentModeCount uint32
		vk.GetPhysicalDeviceSurfacePresentModes(d.physicalDevice, d.surface, &presentModeCount, nil)
		presentModes := make([]vk.PresentMode, presentModeCount)
		vk.GetPhysicalDeviceSurfacePresentModes(d.physicalDevice, d.surface, &presentModeCount, presentModes)
		for _, mode := range presentModes {
			if mode == vk.PresentModeMailbox {
				presentMode = mode
				break
			}
		}
	}

	sc.extent = vk.Extent2D{Width: width, Height: height}
	if capabilities.CurrentExtent.Width != math.MaxUint32 {
		sc.extent = capabilities.CurrentExtent
	}
	sc.extent.Width = mathx.Clamp(sc.extent.Width, capabilities.MinImageExtent.Width, capabilities.MaxImageExtent.Width)
	sc.extent.Height = mathx.Clamp(sc.extent.Height, capabilities.MinImageExtent.Height, capabilities.MaxImageExtent.Height)

	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && imageCount > capabilities.MaxImageCount {
		imageCount = capabilities.MaxImageCount
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.surface,
		MinImageCount:    imageCount,
		ImageFormat:      surfaceFormat.Format,
		ImageColorSpace:  surfaceFormat.ColorSpace,
		ImageExtent:      sc.extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
	}
	if d.graphicsQueueIndex != d.presentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{d.graphicsQueueIndex, d.presentQueueIndex}
	}

	var handle vk.Swapchain
	if res := vk.CreateSwapchain(d.logicalDevice, &swapchainCreateInfo, d.allocator, &handle); res != vk.Success {
		return nil, resultToError("create swapchain", res)
	}
	sc.handle = handle

	var actualCount uint32
	vk.GetSwapchainImages(d.logicalDevice, sc.handle, &actualCount, nil)
	sc.images = make([]vk.Image, actualCount)
	vk.GetSwapchainImages(d.logicalDevice, sc.handle, &actualCount, sc.images)

	sc.views = make([]vk.ImageView, actualCount)
	for i := range sc.images {
		viewCreateInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    sc.images[i],
			ViewType: vk.ImageViewType2d,
			Format:   sc.format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		if res := vk.CreateImageView(d.logicalDevice, &viewCreateInfo, d.allocator, &sc.views[i]); res != vk.Success {
			return nil, resultToError("create swapchain image view", res)
		}
	}

	depthImage, err := newImage(d, sc.extent.Width, sc.extent.Height, 1, vk.FormatD32Sfloat,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit), vk.ImageAspectFlags(vk.ImageAspectDepthBit))
	if err != nil {
		return nil, err
	}
	sc.depthImage = depthImage

	sc.renderPass, err = createRenderPass(d, []vk.Format{sc.format}, vk.FormatD32Sfloat, true)
	if err != nil {
		return nil, err
	}

	sc.framebuffers = make([]vk.Framebuffer, actualCount)
	for i := range sc.views {
		framebufferCreateInfo := vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      sc.renderPass,
			AttachmentCount: 2,
			PAttachments:    []vk.ImageView{sc.views[i], sc.depthImage.view},
			Width:           sc.extent.Width,
			Height:          sc.extent.Height,
			Layers:          1,
		}
		if res := vk.CreateFramebuffer(d.logicalDevice, &framebufferCreateInfo, d.allocator, &sc.framebuffers[i]); res != vk.Success {
			return nil, resultToError("create swapchain framebuffer", res)
		}
	}

	sc.imageAvailable = make([]vk.Semaphore, actualCount)
	sc.renderComplete = make([]vk.Semaphore, actualCount)
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	for i := uint32(0); i < actualCount; i++ {
		if res := vk.CreateSemaphore(d.logicalDevice, &semaphoreCreateInfo, d.allocator, &sc.imageAvailable[i]); res != vk.Success {
			return nil, resultToError("create semaphore", res)
		}
		if res := vk.CreateSemaphore(d.logicalDevice, &semaphoreCreateInfo, d.allocator, &sc.renderComplete[i]); res != vk.Success {
			return nil, resultToError("create semaphore", res)
		}
	}

	sc.target = &swapchainTarget{sc: sc, id: d.targetID()}
	core.LogInfo("swapchain created with %d images at %dx%d", actualCount, sc.extent.Width, sc.extent.Height)
	return sc, nil
}

func (sc *swapchain) destroy(d *Device) {
	for i := range sc.imageAvailable {
		vk.DestroySemaphore(d.logicalDevice, sc.imageAvailable[i], d.allocator)
		vk.DestroySemaphore(d.logicalDevice, sc.renderComplete[i], d.allocator)
	}
	for _, fb := range sc.framebuffers {
		vk.DestroyFramebuffer(d.logicalDevice, fb, d.allocator)
	}
	vk.DestroyRenderPass(d.logicalDevice, sc.renderPass, d.allocator)
	sc.depthImage.destroy(d)
	for _, view := range sc.views {
		vk.DestroyImageView(d.logicalDevice, view, d.allocator)
	}
	vk.DestroySwapchain(d.logicalDevice, sc.handle, d.allocator)
}

// Resize recreates the swapchain at a new framebuffer extent. The render
// target identity is carried over so cached pipelines stay valid.
func (d *Device) Resize(width, height uint32) error {
	if err := d.WaitIdle(); err != nil {
		return err
	}

	oldID := d.swapchain.target.id
	d.swapchain.destroy(d)
	sc, err := newSwapchain(d, width, height, d.vsync)
	if err != nil {
		return err
	}
	sc.target.id = oldID
	d.swapchain = sc
	return nil
}

// AcquireNextFrame claims the next backbuffer. The returned index drives
// the caller's frame slot rotation.
func (d *Device) AcquireNextFrame() (uint32, device.RenderTarget, error) {
	sc := d.swapchain
	sc.semaphoreIndex = (sc.semaphoreIndex + 1) % uint32(len(sc.imageAvailable))

	var imageIndex uint32
	result := vk.AcquireNextImage(d.logicalDevice, sc.handle, math.MaxUint64, sc.imageAvailable[sc.semaphoreIndex], vk.NullFence, &imageIndex)
	if result != vk.Success && result != vk.Suboptimal {
		return 0, nil, resultToError("acquire next image", result)
	}
	sc.currentImage = imageIndex
	return imageIndex, sc.target, nil
}

func (d *Device) Present() error {
	sc := d.swapchain
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{sc.renderComplete[sc.semaphoreIndex]},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.handle},
		PImageIndices:      []uint32{sc.currentImage},
	}
	result := vk.QueuePresent(d.presentQueue, &presentInfo)
	if result != vk.Success && result != vk.Suboptimal {
		return resultToError("present", result)
	}
	return nil
}
