// Copyright (c) 2023, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	vk "github.com/goki/vulkan"
)

// Forever is the timeout that never elapses.
const Forever time.Duration = -1

// timeoutNanos converts a wait duration to the API form,
// where a negative duration means no timeout.
func timeoutNanos(d time.Duration) uint64 {
	if d < 0 {
		return vk.MaxUint64
	}
	return uint64(d)
}

// Semaphore is a binary semaphore, ordering work between submissions
// on the GPU. It cannot be waited on from the host.
type Semaphore struct {
	Dev       *Device
	Semaphore vk.Semaphore
}

// NewSemaphore makes a binary semaphore on the device.
func NewSemaphore(dev *Device) (*Semaphore, error) {
	sem, err := dev.Driver.CreateSemaphore(false, 0)
	if err != nil {
		return nil, err
	}
	return &Semaphore{Dev: dev, Semaphore: sem}, nil
}

func (sm *Semaphore) Destroy() {
	if sm.Semaphore == vk.NullSemaphore {
		return
	}
	sm.Dev.Driver.DestroySemaphore(sm.Semaphore)
	sm.Semaphore = vk.NullSemaphore
}

// TimelineSemaphore carries a monotonically increasing 64-bit counter.
// Waiting on value v returns once the counter is at least v.
//
// The counter only advances through queue submissions, which must be
// reported with [TimelineSemaphore.Issued]. The host observes it through
// fences: a wait puts a fence behind the submission that signals the
// value, on that submission's queue, and waits on the fence.
type TimelineSemaphore struct {
	Dev       *Device
	Semaphore vk.Semaphore

	mu sync.Mutex

	// highest value known to be reached
	reached uint64

	// highest value issued
	issued uint64

	// issued values, in increasing order, whose fences have not
	// been seen signaled
	pending []timelinePoint

	// signaled and reset fences for reuse
	spare []vk.Fence
}

// timelinePoint is a value signaled by a submission to queue.
// If set, fence signals once that submission, and all work before it
// on the queue, has completed.
type timelinePoint struct {
	value uint64
	queue vk.Queue
	fence vk.Fence
}

// NewTimelineSemaphore makes a timeline semaphore starting at zero.
func NewTimelineSemaphore(dev *Device) (*TimelineSemaphore, error) {
	sem, err := dev.Driver.CreateSemaphore(true, 0)
	if err != nil {
		return nil, err
	}
	return &TimelineSemaphore{Dev: dev, Semaphore: sem}, nil
}

// Issued records that a submission to queue signals value. Values must
// be issued in increasing order.
func (ts *TimelineSemaphore) Issued(queue *Queue, value uint64) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if value <= ts.issued {
		return fmt.Errorf("vgpu.TimelineSemaphore: value %d issued after %d", value, ts.issued)
	}
	ts.issued = value
	ts.pending = append(ts.pending, timelinePoint{value: value, queue: queue.Queue})
	return nil
}

// Wait blocks until the counter reaches value or the timeout elapses,
// in which case it returns [ErrTimeout]. Waiting on a value that no
// submission has been issued to signal also returns [ErrTimeout],
// at once.
func (ts *TimelineSemaphore) Wait(value uint64, timeout time.Duration) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if value <= ts.reached {
		return nil
	}
	if err := ts.poll(); err != nil {
		return err
	}
	if value <= ts.reached {
		return nil
	}
	if value > ts.issued {
		return fmt.Errorf("%w: timeline value %d has not been submitted", ErrTimeout, value)
	}
	i := slices.IndexFunc(ts.pending, func(pt timelinePoint) bool { return pt.value >= value })
	pt, err := ts.fence(ts.pending[i].queue)
	if err != nil {
		return err
	}
	if err := ts.Dev.Driver.WaitForFences([]vk.Fence{pt.fence}, timeoutNanos(timeout)); err != nil {
		return err
	}
	ts.reached = max(ts.reached, pt.value)
	return ts.poll()
}

// Counter returns the counter value observed by the host. It puts a
// fence behind the last submission on each queue, without waiting, so
// the value may lag behind the device.
func (ts *TimelineSemaphore) Counter() (uint64, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	var queues []vk.Queue
	for _, pt := range ts.pending {
		if pt.value > ts.reached && !slices.Contains(queues, pt.queue) {
			queues = append(queues, pt.queue)
		}
	}
	for _, q := range queues {
		if _, err := ts.fence(q); err != nil {
			return ts.reached, err
		}
	}
	err := ts.poll()
	return ts.reached, err
}

// Signal submits a batch to queue that only signals value, which must
// be greater than every value issued so far.
func (ts *TimelineSemaphore) Signal(queue *Queue, value uint64) error {
	ts.mu.Lock()
	issued := ts.issued
	ts.mu.Unlock()
	if value <= issued {
		return fmt.Errorf("vgpu.TimelineSemaphore: signal %d not greater than issued value %d", value, issued)
	}
	var sub Submission
	sub.Signal(ts.Semaphore, value)
	if err := ts.Dev.Driver.QueueSubmit(queue.Queue, &sub, vk.NullFence); err != nil {
		return err
	}
	return ts.Issued(queue, value)
}

// fence returns the last pending point on queue, giving it a fence if
// it has none. Must be called with the lock held.
func (ts *TimelineSemaphore) fence(queue vk.Queue) (*timelinePoint, error) {
	var pt *timelinePoint
	for i := range ts.pending {
		if ts.pending[i].queue == queue {
			pt = &ts.pending[i]
		}
	}
	if pt.fence != vk.NullFence {
		return pt, nil
	}
	var fence vk.Fence
	if n := len(ts.spare); n > 0 {
		fence = ts.spare[n-1]
		ts.spare = ts.spare[:n-1]
	} else {
		var err error
		if fence, err = ts.Dev.Driver.CreateFence(false); err != nil {
			return nil, err
		}
	}
	if err := ts.Dev.Driver.QueueSubmit(queue, &Submission{}, fence); err != nil {
		ts.spare = append(ts.spare, fence)
		return nil, err
	}
	pt.fence = fence
	return pt, nil
}

// poll advances the reached value past every point whose fence has
// signaled, and drops points that are reached and have no fence in
// flight. Must be called with the lock held.
func (ts *TimelineSemaphore) poll() error {
	dr := ts.Dev.Driver
	var firstErr error
	for i := range ts.pending {
		pt := &ts.pending[i]
		if pt.fence == vk.NullFence {
			continue
		}
		err := dr.FenceStatus(pt.fence)
		if errors.Is(err, ErrNotReady) {
			continue
		}
		if err != nil {
			firstErr = err
			break
		}
		ts.reached = max(ts.reached, pt.value)
		if err := dr.ResetFences([]vk.Fence{pt.fence}); err != nil {
			firstErr = err
			break
		}
		ts.spare = append(ts.spare, pt.fence)
		pt.fence = vk.NullFence
	}
	ts.pending = slices.DeleteFunc(ts.pending, func(pt timelinePoint) bool {
		return pt.value <= ts.reached && pt.fence == vk.NullFence
	})
	return firstErr
}

// Destroy destroys the semaphore and its fences. Submissions using it
// must have completed.
func (ts *TimelineSemaphore) Destroy() {
	if ts.Semaphore == vk.NullSemaphore {
		return
	}
	dr := ts.Dev.Driver
	for _, pt := range ts.pending {
		if pt.fence != vk.NullFence {
			dr.DestroyFence(pt.fence)
		}
	}
	for _, f := range ts.spare {
		dr.DestroyFence(f)
	}
	ts.pending = nil
	ts.spare = nil
	dr.DestroySemaphore(ts.Semaphore)
	ts.Semaphore = vk.NullSemaphore
}

// Fence is a binary completion signal observable from the host.
type Fence struct {
	Dev   *Device
	Fence vk.Fence
}

// NewFence makes a fence, initially unsignaled.
func NewFence(dev *Device) (*Fence, error) {
	fence, err := dev.Driver.CreateFence(false)
	if err != nil {
		return nil, err
	}
	return &Fence{Dev: dev, Fence: fence}, nil
}

// Wait blocks until the fence signals, or returns [ErrTimeout].
func (fc *Fence) Wait(timeout time.Duration) error {
	return fc.Dev.Driver.WaitForFences([]vk.Fence{fc.Fence}, timeoutNanos(timeout))
}

// Reset returns the fence to the unsignaled state.
func (fc *Fence) Reset() error {
	return fc.Dev.Driver.ResetFences([]vk.Fence{fc.Fence})
}

// Status returns nil if signaled and [ErrNotReady] if still pending.
// Any other error means the device was lost.
func (fc *Fence) Status() error {
	return fc.Dev.Driver.FenceStatus(fc.Fence)
}

func (fc *Fence) Destroy() {
	if fc.Fence == vk.NullFence {
		return
	}
	fc.Dev.Driver.DestroyFence(fc.Fence)
	fc.Fence = vk.NullFence
}
