// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// This is initially adapted from https://github.com/vulkan-go/asche
// Copyright © 2017 Maxim Kupriianov <max@kc.vc>, under the MIT License

package vgpu

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cogentcore.org/core/base/errors"
	vk "github.com/goki/vulkan"
)

// cmdSlot is one pooled command buffer with the fence that
// guards its reuse.
type cmdSlot struct {
	cmd   vk.CommandBuffer
	fence *Fence

	// set from submission until the fence has been observed signaled
	// and reset
	submitted bool
}

// CmdPool is a command pool holding primary command buffers that are
// leased out one at a time with [CmdPool.CheckOut]. When no buffer is
// free, the pool grows by half of its capacity.
// CheckOut is not safe for use by several goroutines at once, but the
// background resetter may reset buffers while leases are recorded:
// all access to the underlying pool is serialized.
type CmdPool struct {
	Dev *Device

	// queue family the buffers are submitted to
	Queue *Queue

	Pool vk.CommandPool

	mu    sync.Mutex
	slots []*cmdSlot
	free  []int

	// held across every host access to Pool and its buffers:
	// allocation, recording, reset and freeing
	access sync.Mutex

	// background resetter, nil unless enabled
	reset *resetter
}

// CmdPoolOption configures a [CmdPool] at creation.
type CmdPoolOption func(cp *CmdPool)

// WithBackgroundReset makes [Lease.Release] hand buffers to a worker
// goroutine that waits for and resets them, instead of doing so
// on the caller's goroutine.
func WithBackgroundReset() CmdPoolOption {
	return func(cp *CmdPool) {
		cp.reset = newResetter(cp)
	}
}

// NewCmdPool makes a pool for the queue's family holding count buffers.
func NewCmdPool(dev *Device, queue *Queue, count int, opts ...CmdPoolOption) (*CmdPool, error) {
	if count < 1 {
		return nil, fmt.Errorf("vgpu.NewCmdPool: buffer count must be at least 1, got %d", count)
	}
	pool, err := dev.Driver.CreateCommandPool(queue.Family, vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit))
	if err != nil {
		return nil, err
	}
	cp := &CmdPool{Dev: dev, Queue: queue, Pool: pool}
	if err := cp.grow(count); err != nil {
		cp.Destroy()
		return nil, err
	}
	for _, opt := range opts {
		opt(cp)
	}
	return cp, nil
}

// grow allocates n more buffers in one batch, each with its own fence.
// Must be called with the lock held or before the pool is shared.
func (cp *CmdPool) grow(n int) error {
	dr := cp.Dev.Driver
	cp.access.Lock()
	cmds, err := dr.AllocateCommandBuffers(cp.Pool, n)
	cp.access.Unlock()
	if err != nil {
		return err
	}
	for i, cmd := range cmds {
		fence, err := NewFence(cp.Dev)
		if err != nil {
			cp.access.Lock()
			dr.FreeCommandBuffers(cp.Pool, cmds[i:])
			cp.access.Unlock()
			return err
		}
		cp.free = append(cp.free, len(cp.slots))
		cp.slots = append(cp.slots, &cmdSlot{cmd: cmd, fence: fence})
	}
	return nil
}

// Capacity returns the number of buffers the pool has allocated.
func (cp *CmdPool) Capacity() int {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return len(cp.slots)
}

// Free returns the number of buffers available for checkout.
func (cp *CmdPool) Free() int {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return len(cp.free)
}

// CheckOut leases a buffer, growing the pool if none is free.
// No two live leases share a buffer.
func (cp *CmdPool) CheckOut() (*Lease, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if len(cp.free) == 0 {
		n := max(1, len(cp.slots)/2)
		slog.Debug("vgpu.CmdPool: growing", "capacity", len(cp.slots), "add", n)
		if err := cp.grow(n); err != nil {
			return nil, err
		}
	}
	last := len(cp.free) - 1
	idx := cp.free[last]
	cp.free = cp.free[:last]
	return &Lease{pool: cp, index: idx, slot: cp.slots[idx]}, nil
}

// checkIn returns a recycled slot to the free list.
func (cp *CmdPool) checkIn(idx int) {
	cp.mu.Lock()
	cp.free = append(cp.free, idx)
	cp.mu.Unlock()
}

// recycle waits for the slot's last submission, resets its buffer and
// fence, and checks it back in. Errors are logged, not returned.
// A slot whose fence did not signal is checked in as is, still marked
// submitted, so that its next lease waits for it before recording.
func (cp *CmdPool) recycle(idx int) {
	cp.mu.Lock()
	sl := cp.slots[idx]
	cp.mu.Unlock()
	if sl.submitted {
		if errors.Log(sl.fence.Wait(Forever)) != nil {
			cp.checkIn(idx)
			return
		}
		if errors.Log(sl.fence.Reset()) == nil {
			sl.submitted = false
		}
	}
	cp.access.Lock()
	errors.Log(cp.Dev.Driver.ResetCommandBuffer(sl.cmd, vk.CommandBufferResetFlags(vk.CommandBufferResetReleaseResourcesBit)))
	cp.access.Unlock()
	cp.checkIn(idx)
}

// Destroy stops the background resetter, if any, and frees all buffers,
// their fences and the pool. Outstanding leases must not be used after.
func (cp *CmdPool) Destroy() {
	if cp.reset != nil {
		cp.reset.stop()
		cp.reset = nil
	}
	dr := cp.Dev.Driver
	cp.access.Lock()
	defer cp.access.Unlock()
	if len(cp.slots) > 0 {
		cmds := make([]vk.CommandBuffer, len(cp.slots))
		for i, sl := range cp.slots {
			cmds[i] = sl.cmd
			sl.fence.Destroy()
		}
		dr.FreeCommandBuffers(cp.Pool, cmds)
		cp.slots = nil
		cp.free = nil
	}
	if cp.Pool != vk.NullCommandPool {
		dr.DestroyCommandPool(cp.Pool)
		cp.Pool = vk.NullCommandPool
	}
}

// Lease is exclusive use of one pooled command buffer until [Lease.Release].
type Lease struct {
	pool     *CmdPool
	index    int
	slot     *cmdSlot
	released bool
}

// Buffer returns the leased command buffer handle.
func (ls *Lease) Buffer() vk.CommandBuffer {
	return ls.slot.cmd
}

// Fence returns the fence signaled by the lease's submissions.
func (ls *Lease) Fence() *Fence {
	return ls.slot.fence
}

// Submitted returns true if the buffer was submitted and has not been
// observed complete since.
func (ls *Lease) Submitted() bool {
	return ls.slot.submitted
}

func (ls *Lease) record(flags vk.CommandBufferUsageFlagBits, rec Recorder) error {
	if ls.released {
		return ErrReleased
	}
	if ls.slot.submitted {
		if err := ls.WaitAndReset(0); err != nil {
			return fmt.Errorf("vgpu.Lease: command buffer is still executing: %w", err)
		}
	}
	dr := ls.pool.Dev.Driver
	ls.pool.access.Lock()
	defer ls.pool.access.Unlock()
	if err := dr.BeginCommandBuffer(ls.slot.cmd, vk.CommandBufferUsageFlags(flags)); err != nil {
		return err
	}
	rec.Record(&Cmd{Driver: dr, Buffer: ls.slot.cmd})
	return dr.EndCommandBuffer(ls.slot.cmd)
}

// Record records rec into the buffer for possibly repeated submission.
// It fails if the last submission has not finished executing.
func (ls *Lease) Record(rec Recorder) error {
	return ls.record(0, rec)
}

// RecordOnce records rec for a single submission.
func (ls *Lease) RecordOnce(rec Recorder) error {
	return ls.record(vk.CommandBufferUsageOneTimeSubmitBit, rec)
}

// RecordPass is [Lease.Record] inside the render pass of rt.
func (ls *Lease) RecordPass(rt *RenderTarget, rec Recorder) error {
	return ls.record(0, InPass(rt, rec))
}

// RecordPassOnce is [Lease.RecordOnce] inside the render pass of rt.
func (ls *Lease) RecordPassOnce(rt *RenderTarget, rec Recorder) error {
	return ls.record(vk.CommandBufferUsageOneTimeSubmitBit, InPass(rt, rec))
}

// SubmitTo submits the buffer to the queue with the given semaphore
// operands, signaling the lease fence on completion.
func (ls *Lease) SubmitTo(queue *Queue, sub Submission) error {
	if ls.released {
		return ErrReleased
	}
	sub.Commands = []vk.CommandBuffer{ls.slot.cmd}
	if err := ls.pool.Dev.Driver.QueueSubmit(queue.Queue, &sub, ls.slot.fence.Fence); err != nil {
		return err
	}
	ls.slot.submitted = true
	return nil
}

// Wait waits for the last submission to complete. It returns nil at
// once if the buffer was never submitted, and [ErrTimeout] if the
// timeout elapses first.
func (ls *Lease) Wait(timeout time.Duration) error {
	if !ls.slot.submitted {
		return nil
	}
	return ls.slot.fence.Wait(timeout)
}

// WaitAndReset waits like [Lease.Wait] and then resets the fence so the
// buffer can be submitted again. The fence is reset only if its status
// is signaled; otherwise [ErrNotReady] is returned and the lease stays
// submitted.
func (ls *Lease) WaitAndReset(timeout time.Duration) error {
	if !ls.slot.submitted {
		return nil
	}
	if err := ls.slot.fence.Wait(timeout); err != nil {
		return err
	}
	if err := ls.slot.fence.Status(); err != nil {
		return err
	}
	if err := ls.slot.fence.Reset(); err != nil {
		return err
	}
	ls.slot.submitted = false
	return nil
}

// Release returns the buffer to the pool after waiting for it and
// resetting it. It never fails: errors are logged. Calling it again
// has no effect. With background reset, the wait and reset happen on
// the resetter goroutine.
func (ls *Lease) Release() {
	if ls == nil || ls.released {
		return
	}
	ls.released = true
	if ls.pool.reset != nil {
		ls.pool.reset.request(ls.index)
		return
	}
	ls.pool.recycle(ls.index)
}
