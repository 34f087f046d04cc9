// Copyright (c) 2023, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	"unsafe"

	vk "github.com/goki/vulkan"
)

// Driver is the set of device-level GPU entry points used by this package.
// Every call is bound to one logical device. [VkDriver] implements it on top
// of Vulkan; package vgputest provides an in-memory implementation.
//
// Methods that can fail return errors built by [NewError], so timeouts and
// not-ready statuses come back as [ErrTimeout] and [ErrNotReady].
// Timeline semaphores are only waited on and signaled by queue
// submissions; host waits go through fences, see [TimelineSemaphore].
type Driver interface {
	CreateSemaphore(timeline bool, initial uint64) (vk.Semaphore, error)
	DestroySemaphore(sem vk.Semaphore)

	CreateFence(signaled bool) (vk.Fence, error)
	DestroyFence(fence vk.Fence)
	WaitForFences(fences []vk.Fence, timeout uint64) error
	ResetFences(fences []vk.Fence) error
	// FenceStatus returns nil when signaled and [ErrNotReady] when pending.
	FenceStatus(fence vk.Fence) error

	MemoryProperties() vk.PhysicalDeviceMemoryProperties
	CreateBuffer(size int, usage vk.BufferUsageFlags) (vk.Buffer, error)
	DestroyBuffer(buf vk.Buffer)
	BufferMemoryRequirements(buf vk.Buffer) vk.MemoryRequirements
	AllocateMemory(size vk.DeviceSize, typeIndex uint32) (vk.DeviceMemory, error)
	FreeMemory(mem vk.DeviceMemory)
	BindBufferMemory(buf vk.Buffer, mem vk.DeviceMemory) error
	MapMemory(mem vk.DeviceMemory, size int) (unsafe.Pointer, error)
	UnmapMemory(mem vk.DeviceMemory)

	CreateCommandPool(family uint32, flags vk.CommandPoolCreateFlags) (vk.CommandPool, error)
	DestroyCommandPool(pool vk.CommandPool)
	AllocateCommandBuffers(pool vk.CommandPool, n int) ([]vk.CommandBuffer, error)
	FreeCommandBuffers(pool vk.CommandPool, cmds []vk.CommandBuffer)
	BeginCommandBuffer(cmd vk.CommandBuffer, flags vk.CommandBufferUsageFlags) error
	EndCommandBuffer(cmd vk.CommandBuffer) error
	ResetCommandBuffer(cmd vk.CommandBuffer, flags vk.CommandBufferResetFlags) error

	CmdCopyBuffer(cmd vk.CommandBuffer, src, dst vk.Buffer, size int)
	CmdBeginRenderPass(cmd vk.CommandBuffer, pass vk.RenderPass, fb vk.Framebuffer, extent vk.Extent2D, clear [4]float32)
	CmdEndRenderPass(cmd vk.CommandBuffer)
	CmdBindPipeline(cmd vk.CommandBuffer, pipeline vk.Pipeline)
	CmdBindVertexBuffer(cmd vk.CommandBuffer, buf vk.Buffer)
	CmdSetViewportScissor(cmd vk.CommandBuffer, extent vk.Extent2D)
	CmdDraw(cmd vk.CommandBuffer, vertices uint32)

	QueueSubmit(queue vk.Queue, sub *Submission, fence vk.Fence) error
	QueueWaitIdle(queue vk.Queue) error
	DeviceWaitIdle() error
	// DestroyDevice destroys the logical device; nothing made from it
	// may be used after.
	DestroyDevice()

	SurfaceCapabilities(surface vk.Surface) (vk.SurfaceCapabilities, error)
	SurfacePresentModes(surface vk.Surface) ([]vk.PresentMode, error)
	CreateSwapchain(info *SwapchainInfo) (vk.Swapchain, error)
	DestroySwapchain(sc vk.Swapchain)
	SwapchainImages(sc vk.Swapchain) ([]vk.Image, error)
	CreateImageView(img vk.Image, format vk.Format) (vk.ImageView, error)
	DestroyImageView(view vk.ImageView)
	CreateFramebuffer(pass vk.RenderPass, view vk.ImageView, extent vk.Extent2D) (vk.Framebuffer, error)
	DestroyFramebuffer(fb vk.Framebuffer)
	// AcquireNextImage returns the raw result alongside the index so that
	// callers can apply their own policy on non-success statuses.
	AcquireNextImage(sc vk.Swapchain, timeout uint64, sem vk.Semaphore) (uint32, vk.Result)
	QueuePresent(queue vk.Queue, sc vk.Swapchain, index uint32, wait vk.Semaphore) error
}

// Submission describes one batch given to [Driver.QueueSubmit].
// Values are the timeline operands paired by position with the
// semaphores; they are ignored for binary semaphores, but must still be
// present whenever any semaphore of the same list is a timeline.
type Submission struct {
	WaitSemaphores   []vk.Semaphore
	WaitValues       []uint64
	WaitStages       []vk.PipelineStageFlags
	Commands         []vk.CommandBuffer
	SignalSemaphores []vk.Semaphore
	SignalValues     []uint64
}

// Wait adds a wait operand.
func (sb *Submission) Wait(sem vk.Semaphore, value uint64, stage vk.PipelineStageFlagBits) {
	sb.WaitSemaphores = append(sb.WaitSemaphores, sem)
	sb.WaitValues = append(sb.WaitValues, value)
	sb.WaitStages = append(sb.WaitStages, vk.PipelineStageFlags(stage))
}

// Signal adds a signal operand.
func (sb *Submission) Signal(sem vk.Semaphore, value uint64) {
	sb.SignalSemaphores = append(sb.SignalSemaphores, sem)
	sb.SignalValues = append(sb.SignalValues, value)
}

// SwapchainInfo holds the parameters used to build a swapchain.
type SwapchainInfo struct {
	Surface      vk.Surface
	ImageCount   uint32
	Format       vk.SurfaceFormat
	Extent       vk.Extent2D
	PresentMode  vk.PresentMode
	PreTransform vk.SurfaceTransformFlagBits
}
