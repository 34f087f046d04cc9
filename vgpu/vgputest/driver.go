// Copyright (c) 2023, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vgputest provides an in-memory [vgpu.Driver] for tests.
// Submissions execute synchronously at submit time: buffer copies move
// real bytes, semaphores and fences change state, and every call is
// appended to an ordered log.
package vgputest

import (
	"fmt"
	"slices"
	"sync"
	"time"
	"unsafe"

	"cogentcore.org/vktri/vgpu"
	vk "github.com/goki/vulkan"
)

// handleBase keeps fake handles well clear of the zero page.
const handleBase = 0x10000

type buffer struct {
	size int
	mem  vk.DeviceMemory
}

type memory struct {
	data    []byte
	typeIdx uint32
	mapped  bool
}

type op struct {
	name string
	src  vk.Buffer
	dst  vk.Buffer
	size int
}

type cmdBuffer struct {
	pool      vk.CommandPool
	ops       []op
	recording bool
}

type semaphore struct {
	timeline bool
	value    uint64
	signaled bool
}

type fence struct {
	signaled bool
}

// Driver is a fake [vgpu.Driver]. The exported configuration fields
// must be set before the driver is used; the recorded state can be read
// at any time through the accessor methods.
type Driver struct {

	// memory types offered, see [DefaultMemoryProperties]
	MemProps vk.PhysicalDeviceMemoryProperties

	// compatible memory type mask reported for every buffer;
	// 0 means all types
	MemoryTypeBits uint32

	// allocation granularity, to which buffer capacities are rounded up
	Alignment int

	// surface capabilities reported for every surface
	Caps vk.SurfaceCapabilities

	// present modes reported for every surface
	PresentModes []vk.PresentMode

	// results returned by successive AcquireNextImage calls, then Success
	AcquireResults []vk.Result

	// when set, submissions leave their fences pending until ReleaseFences
	HoldFences bool

	// when set, FenceStatus reports not ready even for a signaled fence
	StaleFenceStatus bool

	// how long each command pool access lasts, to widen the window
	// in which unsynchronized accesses from two goroutines overlap
	PoolAccessDelay time.Duration

	mu        sync.Mutex
	next      uintptr
	log       []string
	executed  []string
	subs      []vgpu.Submission
	presents  []uint32
	buffers   map[vk.Buffer]*buffer
	memories  map[vk.DeviceMemory]*memory
	cmds      map[vk.CommandBuffer]*cmdBuffer
	sems      map[vk.Semaphore]*semaphore
	fences    map[vk.Fence]*fence
	held      []vk.Fence
	images    map[vk.Swapchain][]vk.Image
	swapInfo  map[vk.Swapchain]vgpu.SwapchainInfo
	acquireAt map[vk.Swapchain]uint32
	poolBusy  map[vk.CommandPool]int
	overlaps  int
	live      int
}

// DefaultMemoryProperties returns three memory types: device local,
// host visible and coherent, and all three flags together.
func DefaultMemoryProperties() vk.PhysicalDeviceMemoryProperties {
	var mp vk.PhysicalDeviceMemoryProperties
	mp.MemoryTypeCount = 3
	mp.MemoryTypes[0].PropertyFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	mp.MemoryTypes[1].PropertyFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	mp.MemoryTypes[2].PropertyFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit | vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	mp.MemoryHeapCount = 1
	return mp
}

// DefaultCaps returns the capabilities of an 800x600 surface allowing
// 2 to 3 images.
func DefaultCaps() vk.SurfaceCapabilities {
	return vk.SurfaceCapabilities{
		MinImageCount:       2,
		MaxImageCount:       3,
		CurrentExtent:       vk.Extent2D{Width: 800, Height: 600},
		MinImageExtent:      vk.Extent2D{Width: 1, Height: 1},
		MaxImageExtent:      vk.Extent2D{Width: 4096, Height: 4096},
		SupportedTransforms: vk.SurfaceTransformFlags(vk.SurfaceTransformIdentityBit),
		CurrentTransform:    vk.SurfaceTransformIdentityBit,
	}
}

// NewDriver returns a driver with the default memory types, surface
// capabilities and FIFO plus mailbox present modes.
func NewDriver() *Driver {
	return &Driver{
		MemProps:     DefaultMemoryProperties(),
		Alignment:    256,
		Caps:         DefaultCaps(),
		PresentModes: []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox},
		buffers:      map[vk.Buffer]*buffer{},
		memories:     map[vk.DeviceMemory]*memory{},
		cmds:         map[vk.CommandBuffer]*cmdBuffer{},
		sems:         map[vk.Semaphore]*semaphore{},
		fences:       map[vk.Fence]*fence{},
		images:       map[vk.Swapchain][]vk.Image{},
		swapInfo:     map[vk.Swapchain]vgpu.SwapchainInfo{},
		acquireAt:    map[vk.Swapchain]uint32{},
		poolBusy:     map[vk.CommandPool]int{},
	}
}

// NewDevice returns a device backed by dr, with a general queue on
// family 0 and no transfer queue.
func NewDevice(dr *Driver) *vgpu.Device {
	dr.mu.Lock()
	q := vk.Queue(dr.handle())
	dr.mu.Unlock()
	return &vgpu.Device{
		Name:         "vgputest",
		GeneralQueue: &vgpu.Queue{Family: 0, Queue: q},
		Driver:       dr,
	}
}

// NewRenderPass returns a fake render pass handle, for swapchains
// that make framebuffers.
func (dr *Driver) NewRenderPass() vk.RenderPass {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	return vk.RenderPass(dr.handle())
}

// handle returns a new unique non-nil handle. Must be called with the lock held.
func (dr *Driver) handle() unsafe.Pointer {
	dr.next += 16
	return unsafe.Add(unsafe.Pointer(nil), handleBase+dr.next)
}

func (dr *Driver) record(call string) {
	dr.log = append(dr.log, call)
}

// create logs the call and counts a live object.
func (dr *Driver) create(call string) unsafe.Pointer {
	dr.record(call)
	dr.live++
	return dr.handle()
}

func (dr *Driver) destroy(call string) {
	dr.record(call)
	dr.live--
}

// Log returns a copy of the names of all calls made so far, in order.
func (dr *Driver) Log() []string {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	return slices.Clone(dr.log)
}

// Calls returns how many times the named call was made.
func (dr *Driver) Calls(name string) int {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	n := 0
	for _, c := range dr.log {
		if c == name {
			n++
		}
	}
	return n
}

// ClearLog forgets the calls made so far.
func (dr *Driver) ClearLog() {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.log = nil
	dr.executed = nil
}

// Executed returns the names of the commands executed by submissions,
// in execution order.
func (dr *Driver) Executed() []string {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	return slices.Clone(dr.executed)
}

// Submissions returns the submissions made, in order, leaving out
// batches that only signal a fence.
func (dr *Driver) Submissions() []vgpu.Submission {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	return slices.Clone(dr.subs)
}

// Presents returns the image indexes presented, in order.
func (dr *Driver) Presents() []uint32 {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	return slices.Clone(dr.presents)
}

// PoolOverlaps returns how many command pool accesses started while
// another access to the same pool was in progress. Recording a command
// buffer accesses its pool from begin to end.
func (dr *Driver) PoolOverlaps() int {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	return dr.overlaps
}

// SemaphoreValue returns the counter of a timeline semaphore.
func (dr *Driver) SemaphoreValue(sem vk.Semaphore) uint64 {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	return dr.sems[sem].value
}

// Live returns the number of objects created and not yet destroyed.
func (dr *Driver) Live() int {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	return dr.live
}

// MemoryType returns the memory type index mem was allocated with.
func (dr *Driver) MemoryType(mem vk.DeviceMemory) uint32 {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	return dr.memories[mem].typeIdx
}

// Mapped reports whether mem is currently mapped.
func (dr *Driver) Mapped(mem vk.DeviceMemory) bool {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	return dr.memories[mem].mapped
}

// BufferData returns a copy of the memory bound to buf.
func (dr *Driver) BufferData(buf vk.Buffer) []byte {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	b := dr.buffers[buf]
	return slices.Clone(dr.memories[b.mem].data[:b.size])
}

// SwapchainInfo returns the parameters sc was created with.
func (dr *Driver) SwapchainInfo(sc vk.Swapchain) vgpu.SwapchainInfo {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	return dr.swapInfo[sc]
}

// ReleaseFences signals every fence held back by HoldFences.
func (dr *Driver) ReleaseFences() {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	for _, f := range dr.held {
		if fc, ok := dr.fences[f]; ok {
			fc.signaled = true
		}
	}
	dr.held = nil
}

////////////////////////////////////////////////////////////////
// Sync

func (dr *Driver) CreateSemaphore(timeline bool, initial uint64) (vk.Semaphore, error) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	sem := vk.Semaphore(dr.create("CreateSemaphore"))
	dr.sems[sem] = &semaphore{timeline: timeline, value: initial}
	return sem, nil
}

func (dr *Driver) DestroySemaphore(sem vk.Semaphore) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.destroy("DestroySemaphore")
	delete(dr.sems, sem)
}

func (dr *Driver) signal(sem vk.Semaphore, value uint64) error {
	sm := dr.sems[sem]
	if !sm.timeline {
		if sm.signaled {
			return fmt.Errorf("vgputest: binary semaphore signaled twice")
		}
		sm.signaled = true
		return nil
	}
	if value <= sm.value {
		return fmt.Errorf("vgputest: timeline signal %d not greater than counter %d", value, sm.value)
	}
	sm.value = value
	return nil
}

func (dr *Driver) CreateFence(signaled bool) (vk.Fence, error) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	f := vk.Fence(dr.create("CreateFence"))
	dr.fences[f] = &fence{signaled: signaled}
	return f, nil
}

func (dr *Driver) DestroyFence(f vk.Fence) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.destroy("DestroyFence")
	delete(dr.fences, f)
}

// WaitForFences succeeds if every fence is signaled; a held fence
// never signals during the wait, so it times out.
func (dr *Driver) WaitForFences(fences []vk.Fence, timeout uint64) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.record("WaitForFences")
	for _, f := range fences {
		if !dr.fences[f].signaled {
			return vgpu.ErrTimeout
		}
	}
	return nil
}

func (dr *Driver) ResetFences(fences []vk.Fence) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.record("ResetFences")
	for _, f := range fences {
		fc := dr.fences[f]
		if !fc.signaled {
			return fmt.Errorf("vgputest: reset of a pending fence")
		}
		fc.signaled = false
	}
	return nil
}

func (dr *Driver) FenceStatus(f vk.Fence) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.record("FenceStatus")
	if dr.StaleFenceStatus || !dr.fences[f].signaled {
		return vgpu.ErrNotReady
	}
	return nil
}

////////////////////////////////////////////////////////////////
// Memory

func (dr *Driver) MemoryProperties() vk.PhysicalDeviceMemoryProperties {
	return dr.MemProps
}

func (dr *Driver) CreateBuffer(size int, usage vk.BufferUsageFlags) (vk.Buffer, error) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	buf := vk.Buffer(dr.create("CreateBuffer"))
	dr.buffers[buf] = &buffer{size: size}
	return buf, nil
}

func (dr *Driver) DestroyBuffer(buf vk.Buffer) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.destroy("DestroyBuffer")
	delete(dr.buffers, buf)
}

func (dr *Driver) BufferMemoryRequirements(buf vk.Buffer) vk.MemoryRequirements {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	size := dr.buffers[buf].size
	if dr.Alignment > 1 {
		size = (size + dr.Alignment - 1) / dr.Alignment * dr.Alignment
	}
	bits := dr.MemoryTypeBits
	if bits == 0 {
		bits = 1<<dr.MemProps.MemoryTypeCount - 1
	}
	return vk.MemoryRequirements{
		Size:           vk.DeviceSize(size),
		Alignment:      vk.DeviceSize(max(dr.Alignment, 1)),
		MemoryTypeBits: bits,
	}
}

func (dr *Driver) AllocateMemory(size vk.DeviceSize, typeIndex uint32) (vk.DeviceMemory, error) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	if typeIndex >= dr.MemProps.MemoryTypeCount {
		return vk.NullDeviceMemory, fmt.Errorf("vgputest: memory type %d out of range", typeIndex)
	}
	mem := vk.DeviceMemory(dr.create("AllocateMemory"))
	dr.memories[mem] = &memory{data: make([]byte, size), typeIdx: typeIndex}
	return mem, nil
}

func (dr *Driver) FreeMemory(mem vk.DeviceMemory) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.destroy("FreeMemory")
	delete(dr.memories, mem)
}

func (dr *Driver) BindBufferMemory(buf vk.Buffer, mem vk.DeviceMemory) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.record("BindBufferMemory")
	dr.buffers[buf].mem = mem
	return nil
}

func (dr *Driver) MapMemory(mem vk.DeviceMemory, size int) (unsafe.Pointer, error) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.record("MapMemory")
	m := dr.memories[mem]
	flags := dr.MemProps.MemoryTypes[m.typeIdx].PropertyFlags
	if flags&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) == 0 {
		return nil, fmt.Errorf("vgputest: mapping memory that is not host visible")
	}
	if m.mapped {
		return nil, fmt.Errorf("vgputest: memory already mapped")
	}
	if size > len(m.data) {
		return nil, fmt.Errorf("vgputest: mapping %d bytes of %d", size, len(m.data))
	}
	m.mapped = true
	return unsafe.Pointer(&m.data[0]), nil
}

func (dr *Driver) UnmapMemory(mem vk.DeviceMemory) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.record("UnmapMemory")
	dr.memories[mem].mapped = false
}

////////////////////////////////////////////////////////////////
// Commands

func (dr *Driver) CreateCommandPool(family uint32, flags vk.CommandPoolCreateFlags) (vk.CommandPool, error) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	return vk.CommandPool(dr.create("CreateCommandPool")), nil
}

func (dr *Driver) DestroyCommandPool(pool vk.CommandPool) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.destroy("DestroyCommandPool")
}

// enterPool starts an access to pool, counting an overlap if another
// one is in progress. Must be called with the lock held; it returns
// with the lock held, after PoolAccessDelay.
func (dr *Driver) enterPool(pool vk.CommandPool) {
	if dr.poolBusy[pool] > 0 {
		dr.overlaps++
	}
	dr.poolBusy[pool]++
	if dr.PoolAccessDelay > 0 {
		dr.mu.Unlock()
		time.Sleep(dr.PoolAccessDelay)
		dr.mu.Lock()
	}
}

func (dr *Driver) leavePool(pool vk.CommandPool) {
	dr.poolBusy[pool]--
}

func (dr *Driver) AllocateCommandBuffers(pool vk.CommandPool, n int) ([]vk.CommandBuffer, error) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.record("AllocateCommandBuffers")
	dr.enterPool(pool)
	defer dr.leavePool(pool)
	cmds := make([]vk.CommandBuffer, n)
	for i := range cmds {
		cmds[i] = vk.CommandBuffer(dr.handle())
		dr.cmds[cmds[i]] = &cmdBuffer{pool: pool}
		dr.live++
	}
	return cmds, nil
}

func (dr *Driver) FreeCommandBuffers(pool vk.CommandPool, cmds []vk.CommandBuffer) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.record("FreeCommandBuffers")
	dr.enterPool(pool)
	defer dr.leavePool(pool)
	for _, c := range cmds {
		delete(dr.cmds, c)
		dr.live--
	}
}

// BeginCommandBuffer starts an access to the buffer's pool that lasts
// until EndCommandBuffer.
func (dr *Driver) BeginCommandBuffer(cmd vk.CommandBuffer, flags vk.CommandBufferUsageFlags) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.record("BeginCommandBuffer")
	cb := dr.cmds[cmd]
	if cb.recording {
		return fmt.Errorf("vgputest: command buffer already recording")
	}
	dr.enterPool(cb.pool)
	cb.ops = nil
	cb.recording = true
	return nil
}

func (dr *Driver) EndCommandBuffer(cmd vk.CommandBuffer) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.record("EndCommandBuffer")
	cb := dr.cmds[cmd]
	if !cb.recording {
		return fmt.Errorf("vgputest: command buffer not recording")
	}
	dr.leavePool(cb.pool)
	cb.recording = false
	return nil
}

func (dr *Driver) ResetCommandBuffer(cmd vk.CommandBuffer, flags vk.CommandBufferResetFlags) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.record("ResetCommandBuffer")
	cb := dr.cmds[cmd]
	dr.enterPool(cb.pool)
	defer dr.leavePool(cb.pool)
	if cb.recording {
		dr.leavePool(cb.pool)
	}
	cb.ops = nil
	cb.recording = false
	return nil
}

func (dr *Driver) addOp(cmd vk.CommandBuffer, o op) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	cb := dr.cmds[cmd]
	if cb.recording {
		cb.ops = append(cb.ops, o)
	}
}

func (dr *Driver) CmdCopyBuffer(cmd vk.CommandBuffer, src, dst vk.Buffer, size int) {
	dr.addOp(cmd, op{name: "CopyBuffer", src: src, dst: dst, size: size})
}

func (dr *Driver) CmdBeginRenderPass(cmd vk.CommandBuffer, pass vk.RenderPass, fb vk.Framebuffer, extent vk.Extent2D, clear [4]float32) {
	dr.addOp(cmd, op{name: "BeginRenderPass"})
}

func (dr *Driver) CmdEndRenderPass(cmd vk.CommandBuffer) {
	dr.addOp(cmd, op{name: "EndRenderPass"})
}

func (dr *Driver) CmdBindPipeline(cmd vk.CommandBuffer, pipeline vk.Pipeline) {
	dr.addOp(cmd, op{name: "BindPipeline"})
}

func (dr *Driver) CmdBindVertexBuffer(cmd vk.CommandBuffer, buf vk.Buffer) {
	dr.addOp(cmd, op{name: "BindVertexBuffer"})
}

func (dr *Driver) CmdSetViewportScissor(cmd vk.CommandBuffer, extent vk.Extent2D) {
	dr.addOp(cmd, op{name: "SetViewportScissor"})
}

func (dr *Driver) CmdDraw(cmd vk.CommandBuffer, vertices uint32) {
	dr.addOp(cmd, op{name: fmt.Sprintf("Draw %d", vertices)})
}

////////////////////////////////////////////////////////////////
// Queues

// QueueSubmit checks the wait operands, executes the commands at once,
// then applies the signal operands and the fence.
func (dr *Driver) QueueSubmit(queue vk.Queue, sub *vgpu.Submission, f vk.Fence) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.record("QueueSubmit")
	for i, s := range sub.WaitSemaphores {
		sm := dr.sems[s]
		if sm.timeline {
			if sm.value < sub.WaitValues[i] {
				return fmt.Errorf("vgputest: wait on timeline value %d with counter at %d", sub.WaitValues[i], sm.value)
			}
			continue
		}
		if !sm.signaled {
			return fmt.Errorf("vgputest: wait on unsignaled binary semaphore")
		}
		sm.signaled = false
	}
	for _, c := range sub.Commands {
		cb := dr.cmds[c]
		if cb.recording {
			return fmt.Errorf("vgputest: submitting a command buffer still recording")
		}
		for _, o := range cb.ops {
			if o.name == "CopyBuffer" {
				src := dr.buffers[o.src]
				dst := dr.buffers[o.dst]
				copy(dr.memories[dst.mem].data[:o.size], dr.memories[src.mem].data[:o.size])
			}
			dr.executed = append(dr.executed, o.name)
		}
	}
	for i, s := range sub.SignalSemaphores {
		if err := dr.signal(s, sub.SignalValues[i]); err != nil {
			return err
		}
	}
	if f != vk.NullFence {
		if dr.HoldFences {
			dr.held = append(dr.held, f)
		} else {
			dr.fences[f].signaled = true
		}
	}
	if len(sub.WaitSemaphores)+len(sub.Commands)+len(sub.SignalSemaphores) == 0 {
		return nil
	}
	dr.subs = append(dr.subs, vgpu.Submission{
		WaitSemaphores:   slices.Clone(sub.WaitSemaphores),
		WaitValues:       slices.Clone(sub.WaitValues),
		WaitStages:       slices.Clone(sub.WaitStages),
		Commands:         slices.Clone(sub.Commands),
		SignalSemaphores: slices.Clone(sub.SignalSemaphores),
		SignalValues:     slices.Clone(sub.SignalValues),
	})
	return nil
}

func (dr *Driver) QueueWaitIdle(queue vk.Queue) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.record("QueueWaitIdle")
	return nil
}

func (dr *Driver) DeviceWaitIdle() error {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.record("DeviceWaitIdle")
	return nil
}

func (dr *Driver) DestroyDevice() {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.record("DestroyDevice")
}

////////////////////////////////////////////////////////////////
// Swapchain

func (dr *Driver) SurfaceCapabilities(surface vk.Surface) (vk.SurfaceCapabilities, error) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.record("SurfaceCapabilities")
	return dr.Caps, nil
}

func (dr *Driver) SurfacePresentModes(surface vk.Surface) ([]vk.PresentMode, error) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.record("SurfacePresentModes")
	return slices.Clone(dr.PresentModes), nil
}

func (dr *Driver) CreateSwapchain(info *vgpu.SwapchainInfo) (vk.Swapchain, error) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	sc := vk.Swapchain(dr.create("CreateSwapchain"))
	imgs := make([]vk.Image, info.ImageCount)
	for i := range imgs {
		imgs[i] = vk.Image(dr.handle())
	}
	dr.images[sc] = imgs
	dr.swapInfo[sc] = *info
	return sc, nil
}

func (dr *Driver) DestroySwapchain(sc vk.Swapchain) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.destroy("DestroySwapchain")
	delete(dr.images, sc)
}

func (dr *Driver) SwapchainImages(sc vk.Swapchain) ([]vk.Image, error) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.record("SwapchainImages")
	return slices.Clone(dr.images[sc]), nil
}

func (dr *Driver) CreateImageView(img vk.Image, format vk.Format) (vk.ImageView, error) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	return vk.ImageView(dr.create("CreateImageView")), nil
}

func (dr *Driver) DestroyImageView(view vk.ImageView) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.destroy("DestroyImageView")
}

func (dr *Driver) CreateFramebuffer(pass vk.RenderPass, view vk.ImageView, extent vk.Extent2D) (vk.Framebuffer, error) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	return vk.Framebuffer(dr.create("CreateFramebuffer")), nil
}

func (dr *Driver) DestroyFramebuffer(fb vk.Framebuffer) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.destroy("DestroyFramebuffer")
}

// AcquireNextImage returns the next queued result from AcquireResults,
// or success with the images taken in turn.
func (dr *Driver) AcquireNextImage(sc vk.Swapchain, timeout uint64, sem vk.Semaphore) (uint32, vk.Result) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.record("AcquireNextImage")
	ret := vk.Success
	if len(dr.AcquireResults) > 0 {
		ret = dr.AcquireResults[0]
		dr.AcquireResults = dr.AcquireResults[1:]
		// a suboptimal swapchain still hands out an image
		if ret != vk.Success && ret != vk.Suboptimal {
			return 0, ret
		}
	}
	idx := dr.acquireAt[sc]
	dr.acquireAt[sc] = (idx + 1) % uint32(len(dr.images[sc]))
	if sem != vk.NullSemaphore {
		if err := dr.signal(sem, 0); err != nil {
			return 0, vk.ErrorDeviceLost
		}
	}
	return idx, ret
}

func (dr *Driver) QueuePresent(queue vk.Queue, sc vk.Swapchain, index uint32, wait vk.Semaphore) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.record("QueuePresent")
	sm := dr.sems[wait]
	if !sm.signaled {
		return fmt.Errorf("vgputest: present waits on unsignaled semaphore")
	}
	sm.signaled = false
	dr.presents = append(dr.presents, index)
	return nil
}
