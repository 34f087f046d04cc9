// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// This is initially adapted from https://github.com/vulkan-go/asche
// Copyright © 2017 Maxim Kupriianov <max@kc.vc>, under the MIT License

package vgpu

import (
	"unsafe"

	vk "github.com/goki/vulkan"
)

// VkDriver is the Vulkan implementation of [Driver] for one logical device.
type VkDriver struct {
	// physical device the logical device was made from
	GPU vk.PhysicalDevice

	// logical device
	Device vk.Device

	memProps vk.PhysicalDeviceMemoryProperties
}

// NewVkDriver returns a driver for the given device pair, caching the
// physical device memory properties.
func NewVkDriver(gpu vk.PhysicalDevice, dev vk.Device) *VkDriver {
	dr := &VkDriver{GPU: gpu, Device: dev}
	vk.GetPhysicalDeviceMemoryProperties(gpu, &dr.memProps)
	dr.memProps.Deref()
	for i := uint32(0); i < dr.memProps.MemoryTypeCount; i++ {
		dr.memProps.MemoryTypes[i].Deref()
	}
	return dr
}

func (dr *VkDriver) CreateSemaphore(timeline bool, initial uint64) (vk.Semaphore, error) {
	info := &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	if timeline {
		info.PNext = unsafe.Pointer(&vk.SemaphoreTypeCreateInfo{
			SType:         vk.StructureTypeSemaphoreTypeCreateInfo,
			SemaphoreType: vk.SemaphoreTypeTimeline,
			InitialValue:  initial,
		})
	}
	var sem vk.Semaphore
	ret := vk.CreateSemaphore(dr.Device, info, nil, &sem)
	return sem, NewOpError("CreateSemaphore", ret)
}

func (dr *VkDriver) DestroySemaphore(sem vk.Semaphore) {
	vk.DestroySemaphore(dr.Device, sem, nil)
}

func (dr *VkDriver) CreateFence(signaled bool) (vk.Fence, error) {
	info := &vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	ret := vk.CreateFence(dr.Device, info, nil, &fence)
	return fence, NewOpError("CreateFence", ret)
}

func (dr *VkDriver) DestroyFence(fence vk.Fence) {
	vk.DestroyFence(dr.Device, fence, nil)
}

func (dr *VkDriver) WaitForFences(fences []vk.Fence, timeout uint64) error {
	ret := vk.WaitForFences(dr.Device, uint32(len(fences)), fences, vk.True, timeout)
	return NewOpError("WaitForFences", ret)
}

func (dr *VkDriver) ResetFences(fences []vk.Fence) error {
	ret := vk.ResetFences(dr.Device, uint32(len(fences)), fences)
	return NewOpError("ResetFences", ret)
}

func (dr *VkDriver) FenceStatus(fence vk.Fence) error {
	return NewOpError("GetFenceStatus", vk.GetFenceStatus(dr.Device, fence))
}

func (dr *VkDriver) MemoryProperties() vk.PhysicalDeviceMemoryProperties {
	return dr.memProps
}

func (dr *VkDriver) CreateBuffer(size int, usage vk.BufferUsageFlags) (vk.Buffer, error) {
	var buffer vk.Buffer
	ret := vk.CreateBuffer(dr.Device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Usage:       usage,
		Size:        vk.DeviceSize(size),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &buffer)
	return buffer, NewOpError("CreateBuffer", ret)
}

func (dr *VkDriver) DestroyBuffer(buf vk.Buffer) {
	vk.DestroyBuffer(dr.Device, buf, nil)
}

func (dr *VkDriver) BufferMemoryRequirements(buf vk.Buffer) vk.MemoryRequirements {
	var memReqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(dr.Device, buf, &memReqs)
	memReqs.Deref()
	return memReqs
}

func (dr *VkDriver) AllocateMemory(size vk.DeviceSize, typeIndex uint32) (vk.DeviceMemory, error) {
	var memory vk.DeviceMemory
	ret := vk.AllocateMemory(dr.Device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  size,
		MemoryTypeIndex: typeIndex,
	}, nil, &memory)
	return memory, NewOpError("AllocateMemory", ret)
}

func (dr *VkDriver) FreeMemory(mem vk.DeviceMemory) {
	vk.FreeMemory(dr.Device, mem, nil)
}

func (dr *VkDriver) BindBufferMemory(buf vk.Buffer, mem vk.DeviceMemory) error {
	return NewOpError("BindBufferMemory", vk.BindBufferMemory(dr.Device, buf, mem, 0))
}

func (dr *VkDriver) MapMemory(mem vk.DeviceMemory, size int) (unsafe.Pointer, error) {
	var ptr unsafe.Pointer
	ret := vk.MapMemory(dr.Device, mem, 0, vk.DeviceSize(size), 0, &ptr)
	return ptr, NewOpError("MapMemory", ret)
}

func (dr *VkDriver) UnmapMemory(mem vk.DeviceMemory) {
	vk.UnmapMemory(dr.Device, mem)
}

func (dr *VkDriver) CreateCommandPool(family uint32, flags vk.CommandPoolCreateFlags) (vk.CommandPool, error) {
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(dr.Device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
		Flags:            flags,
	}, nil, &pool)
	return pool, NewOpError("CreateCommandPool", ret)
}

func (dr *VkDriver) DestroyCommandPool(pool vk.CommandPool) {
	vk.DestroyCommandPool(dr.Device, pool, nil)
}

func (dr *VkDriver) AllocateCommandBuffers(pool vk.CommandPool, n int) ([]vk.CommandBuffer, error) {
	cmds := make([]vk.CommandBuffer, n)
	ret := vk.AllocateCommandBuffers(dr.Device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(n),
	}, cmds)
	if err := NewOpError("AllocateCommandBuffers", ret); err != nil {
		return nil, err
	}
	return cmds, nil
}

func (dr *VkDriver) FreeCommandBuffers(pool vk.CommandPool, cmds []vk.CommandBuffer) {
	if len(cmds) == 0 {
		return
	}
	vk.FreeCommandBuffers(dr.Device, pool, uint32(len(cmds)), cmds)
}

func (dr *VkDriver) BeginCommandBuffer(cmd vk.CommandBuffer, flags vk.CommandBufferUsageFlags) error {
	ret := vk.BeginCommandBuffer(cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: flags,
	})
	return NewOpError("BeginCommandBuffer", ret)
}

func (dr *VkDriver) EndCommandBuffer(cmd vk.CommandBuffer) error {
	return NewOpError("EndCommandBuffer", vk.EndCommandBuffer(cmd))
}

func (dr *VkDriver) ResetCommandBuffer(cmd vk.CommandBuffer, flags vk.CommandBufferResetFlags) error {
	return NewOpError("ResetCommandBuffer", vk.ResetCommandBuffer(cmd, flags))
}

func (dr *VkDriver) CmdCopyBuffer(cmd vk.CommandBuffer, src, dst vk.Buffer, size int) {
	vk.CmdCopyBuffer(cmd, src, dst, 1, []vk.BufferCopy{{
		SrcOffset: 0,
		DstOffset: 0,
		Size:      vk.DeviceSize(size),
	}})
}

func (dr *VkDriver) CmdBeginRenderPass(cmd vk.CommandBuffer, pass vk.RenderPass, fb vk.Framebuffer, extent vk.Extent2D, clear [4]float32) {
	clearValues := []vk.ClearValue{
		vk.NewClearValue(clear[:]),
	}
	vk.CmdBeginRenderPass(cmd, &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass,
		Framebuffer: fb,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: extent,
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}, vk.SubpassContentsInline)
}

func (dr *VkDriver) CmdEndRenderPass(cmd vk.CommandBuffer) {
	vk.CmdEndRenderPass(cmd)
}

func (dr *VkDriver) CmdBindPipeline(cmd vk.CommandBuffer, pipeline vk.Pipeline) {
	vk.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, pipeline)
}

func (dr *VkDriver) CmdBindVertexBuffer(cmd vk.CommandBuffer, buf vk.Buffer) {
	vk.CmdBindVertexBuffers(cmd, 0, 1, []vk.Buffer{buf}, []vk.DeviceSize{0})
}

func (dr *VkDriver) CmdSetViewportScissor(cmd vk.CommandBuffer, extent vk.Extent2D) {
	vk.CmdSetViewport(cmd, 0, 1, []vk.Viewport{{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}})
	vk.CmdSetScissor(cmd, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: extent,
	}})
}

func (dr *VkDriver) CmdDraw(cmd vk.CommandBuffer, vertices uint32) {
	vk.CmdDraw(cmd, vertices, 1, 0, 0)
}

// QueueSubmit submits one batch. An empty submission only signals the
// fence, once all work submitted to the queue before it has completed.
func (dr *VkDriver) QueueSubmit(queue vk.Queue, sub *Submission, fence vk.Fence) error {
	if len(sub.WaitSemaphores)+len(sub.Commands)+len(sub.SignalSemaphores) == 0 {
		return NewOpError("QueueSubmit", vk.QueueSubmit(queue, 0, nil, fence))
	}
	info := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(sub.WaitSemaphores)),
		PWaitSemaphores:      sub.WaitSemaphores,
		PWaitDstStageMask:    sub.WaitStages,
		CommandBufferCount:   uint32(len(sub.Commands)),
		PCommandBuffers:      sub.Commands,
		SignalSemaphoreCount: uint32(len(sub.SignalSemaphores)),
		PSignalSemaphores:    sub.SignalSemaphores,
	}
	if len(sub.WaitValues) > 0 || len(sub.SignalValues) > 0 {
		info.PNext = unsafe.Pointer(&vk.TimelineSemaphoreSubmitInfo{
			SType:                     vk.StructureTypeTimelineSemaphoreSubmitInfo,
			WaitSemaphoreValueCount:   uint32(len(sub.WaitValues)),
			PWaitSemaphoreValues:      sub.WaitValues,
			SignalSemaphoreValueCount: uint32(len(sub.SignalValues)),
			PSignalSemaphoreValues:    sub.SignalValues,
		})
	}
	ret := vk.QueueSubmit(queue, 1, []vk.SubmitInfo{info}, fence)
	return NewOpError("QueueSubmit", ret)
}

func (dr *VkDriver) QueueWaitIdle(queue vk.Queue) error {
	return NewOpError("QueueWaitIdle", vk.QueueWaitIdle(queue))
}

func (dr *VkDriver) DeviceWaitIdle() error {
	return NewOpError("DeviceWaitIdle", vk.DeviceWaitIdle(dr.Device))
}

func (dr *VkDriver) DestroyDevice() {
	vk.DestroyDevice(dr.Device, nil)
}

func (dr *VkDriver) SurfaceCapabilities(surface vk.Surface) (vk.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(dr.GPU, surface, &caps)
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	return caps, NewOpError("GetPhysicalDeviceSurfaceCapabilities", ret)
}

func (dr *VkDriver) SurfacePresentModes(surface vk.Surface) ([]vk.PresentMode, error) {
	var count uint32
	ret := vk.GetPhysicalDeviceSurfacePresentModes(dr.GPU, surface, &count, nil)
	if err := NewOpError("GetPhysicalDeviceSurfacePresentModes", ret); err != nil {
		return nil, err
	}
	modes := make([]vk.PresentMode, count)
	ret = vk.GetPhysicalDeviceSurfacePresentModes(dr.GPU, surface, &count, modes)
	return modes[:count], NewOpError("GetPhysicalDeviceSurfacePresentModes", ret)
}

// SurfaceFormats returns the pixel formats the surface supports.
func (dr *VkDriver) SurfaceFormats(surface vk.Surface) ([]vk.SurfaceFormat, error) {
	var count uint32
	ret := vk.GetPhysicalDeviceSurfaceFormats(dr.GPU, surface, &count, nil)
	if err := NewOpError("GetPhysicalDeviceSurfaceFormats", ret); err != nil {
		return nil, err
	}
	formats := make([]vk.SurfaceFormat, count)
	ret = vk.GetPhysicalDeviceSurfaceFormats(dr.GPU, surface, &count, formats)
	for i := range formats {
		formats[i].Deref()
	}
	return formats[:count], NewOpError("GetPhysicalDeviceSurfaceFormats", ret)
}

func (dr *VkDriver) CreateSwapchain(info *SwapchainInfo) (vk.Swapchain, error) {
	var swapchain vk.Swapchain
	ret := vk.CreateSwapchain(dr.Device, &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          info.Surface,
		MinImageCount:    info.ImageCount,
		ImageFormat:      info.Format.Format,
		ImageColorSpace:  info.Format.ColorSpace,
		ImageExtent:      info.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     info.PreTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      info.PresentMode,
		Clipped:          vk.False,
		OldSwapchain:     vk.NullSwapchain,
	}, nil, &swapchain)
	return swapchain, NewOpError("CreateSwapchain", ret)
}

func (dr *VkDriver) DestroySwapchain(sc vk.Swapchain) {
	vk.DestroySwapchain(dr.Device, sc, nil)
}

func (dr *VkDriver) SwapchainImages(sc vk.Swapchain) ([]vk.Image, error) {
	var count uint32
	ret := vk.GetSwapchainImages(dr.Device, sc, &count, nil)
	if err := NewOpError("GetSwapchainImages", ret); err != nil {
		return nil, err
	}
	images := make([]vk.Image, count)
	ret = vk.GetSwapchainImages(dr.Device, sc, &count, images)
	return images[:count], NewOpError("GetSwapchainImages", ret)
}

func (dr *VkDriver) CreateImageView(img vk.Image, format vk.Format) (vk.ImageView, error) {
	var view vk.ImageView
	ret := vk.CreateImageView(dr.Device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}, nil, &view)
	return view, NewOpError("CreateImageView", ret)
}

func (dr *VkDriver) DestroyImageView(view vk.ImageView) {
	vk.DestroyImageView(dr.Device, view, nil)
}

func (dr *VkDriver) CreateFramebuffer(pass vk.RenderPass, view vk.ImageView, extent vk.Extent2D) (vk.Framebuffer, error) {
	var fb vk.Framebuffer
	ret := vk.CreateFramebuffer(dr.Device, &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass,
		AttachmentCount: 1,
		PAttachments:    []vk.ImageView{view},
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}, nil, &fb)
	return fb, NewOpError("CreateFramebuffer", ret)
}

func (dr *VkDriver) DestroyFramebuffer(fb vk.Framebuffer) {
	vk.DestroyFramebuffer(dr.Device, fb, nil)
}

func (dr *VkDriver) AcquireNextImage(sc vk.Swapchain, timeout uint64, sem vk.Semaphore) (uint32, vk.Result) {
	var idx uint32
	ret := vk.AcquireNextImage(dr.Device, sc, timeout, sem, vk.NullFence, &idx)
	return idx, ret
}

func (dr *VkDriver) QueuePresent(queue vk.Queue, sc vk.Swapchain, index uint32, wait vk.Semaphore) error {
	ret := vk.QueuePresent(queue, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{wait},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc},
		PImageIndices:      []uint32{index},
	})
	return NewOpError("QueuePresent", ret)
}
