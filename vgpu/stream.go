// Copyright (c) 2023, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	"fmt"

	"cogentcore.org/core/base/errors"
	vk "github.com/goki/vulkan"
)

// Event is a point on a stream's timeline: it has happened once the
// stream's semaphore reaches Value.
type Event struct {
	Stream *Stream
	Value  uint64
}

// Synchronize blocks until the event has happened.
func (ev Event) Synchronize() error {
	return ev.Stream.Semaphore.Wait(ev.Value, Forever)
}

// Stream orders GPU work on a timeline semaphore. Each submission waits
// for the previous one and advances the timeline by exactly one, so
// the value identifies the submission.
type Stream struct {
	Dev *Device

	// pool the stream leases its command buffers from
	Pool *CmdPool

	// the stream timeline
	Semaphore *TimelineSemaphore

	// pipeline stage at which submissions wait for their dependencies
	WaitStage vk.PipelineStageFlagBits

	lastValue uint64

	// lease of the last submission, released on the next one
	lease *Lease
}

// NewStream makes a stream leasing from pool, with its timeline at 0.
func NewStream(dev *Device, pool *CmdPool) (*Stream, error) {
	st := &Stream{Dev: dev, Pool: pool, WaitStage: vk.PipelineStageAllCommandsBit}
	if err := st.init(); err != nil {
		return nil, err
	}
	return st, nil
}

func (st *Stream) init() error {
	sem, err := NewTimelineSemaphore(st.Dev)
	if err != nil {
		return err
	}
	st.Semaphore = sem
	return nil
}

// LastValue returns the timeline value of the last submission.
func (st *Stream) LastValue() uint64 {
	return st.lastValue
}

// LastEvent returns the event of the last submission.
func (st *Stream) LastEvent() Event {
	return Event{Stream: st, Value: st.lastValue}
}

// submit submits sub, waiting for the previous submission and signaling
// the next timeline value, either with ls or with no command buffer.
func (st *Stream) submit(queue *Queue, ls *Lease, sub Submission) error {
	sub.Wait(st.Semaphore.Semaphore, st.lastValue, st.WaitStage)
	sub.Signal(st.Semaphore.Semaphore, st.lastValue+1)
	var err error
	if ls != nil {
		err = ls.SubmitTo(queue, sub)
	} else {
		err = st.Dev.Driver.QueueSubmit(queue.Queue, &sub, vk.NullFence)
	}
	if err != nil {
		return err
	}
	st.lastValue++
	return st.Semaphore.Issued(queue, st.lastValue)
}

func eventWaits(waits []Event, stage vk.PipelineStageFlagBits) Submission {
	var sub Submission
	for _, ev := range waits {
		sub.Wait(ev.Stream.Semaphore.Semaphore, ev.Value, stage)
	}
	return sub
}

// SubmitWork records rec into a freshly leased command buffer and
// submits it after the given events and the stream's previous work.
func (st *Stream) SubmitWork(queue *Queue, rec Recorder, waits ...Event) error {
	ls, err := st.Pool.CheckOut()
	if err != nil {
		return err
	}
	if err := ls.RecordOnce(rec); err != nil {
		ls.Release()
		return err
	}
	if err := st.submit(queue, ls, eventWaits(waits, st.WaitStage)); err != nil {
		ls.Release()
		return err
	}
	prev := st.lease
	st.lease = ls
	prev.Release()
	return nil
}

// SubmitEvents joins the given events, typically of other streams,
// into this stream: the returned event happens after all of them and
// after the stream's previous work. No commands are executed.
func (st *Stream) SubmitEvents(queue *Queue, waits ...Event) (Event, error) {
	if err := st.submit(queue, nil, eventWaits(waits, st.WaitStage)); err != nil {
		return Event{}, err
	}
	return st.LastEvent(), nil
}

// Synchronize blocks until all work submitted to the stream has completed.
func (st *Stream) Synchronize() error {
	return st.Semaphore.Wait(st.lastValue, Forever)
}

// Destroy waits for the stream's work, releases its last lease and
// destroys the timeline. Errors are logged.
func (st *Stream) Destroy() {
	if st.Semaphore == nil {
		return
	}
	errors.Log(st.Synchronize())
	st.lease.Release()
	st.lease = nil
	st.Semaphore.Destroy()
	st.Semaphore = nil
}

// Frame is an acquired swapchain image, to be rendered and presented
// by the [GraphicsStream] that acquired it.
type Frame struct {
	// swapchain image index
	Index uint32

	// timeline value of the acquire submission
	acquired uint64
}

// GraphicsStream is a [Stream] that also acquires and presents swapchain
// images, using binary semaphores to bridge the presentation engine and
// the timeline.
type GraphicsStream struct {
	Stream

	// signaled by the presentation engine when the image is ready
	AcquireSemaphore *Semaphore

	// signaled when rendering is complete, waited on by present
	PresentSemaphore *Semaphore

	// color the render pass clears to
	Clear [4]float32
}

// NewGraphicsStream makes a graphics stream leasing from pool.
// Render submissions wait at the color attachment output stage.
func NewGraphicsStream(dev *Device, pool *CmdPool) (*GraphicsStream, error) {
	gs := &GraphicsStream{Stream: Stream{Dev: dev, Pool: pool, WaitStage: vk.PipelineStageColorAttachmentOutputBit}}
	gs.Clear = [4]float32{0, 0, 0, 1}
	if err := gs.init(); err != nil {
		return nil, err
	}
	var err error
	if gs.AcquireSemaphore, err = NewSemaphore(dev); err != nil {
		gs.Destroy()
		return nil, err
	}
	if gs.PresentSemaphore, err = NewSemaphore(dev); err != nil {
		gs.Destroy()
		return nil, err
	}
	return gs, nil
}

// AcquireNextImage acquires the next swapchain image and puts the
// acquisition on the timeline as a submission without commands.
func (gs *GraphicsStream) AcquireNextImage(queue *Queue, sc *Swapchain) (Frame, error) {
	idx, err := sc.AcquireNextImage(gs.AcquireSemaphore.Semaphore)
	if err != nil {
		return Frame{}, err
	}
	var sub Submission
	// binary semaphore: the value is ignored
	sub.Wait(gs.AcquireSemaphore.Semaphore, 0, vk.PipelineStageAllCommandsBit)
	if err := gs.submit(queue, nil, sub); err != nil {
		return Frame{}, err
	}
	return Frame{Index: idx, acquired: gs.lastValue}, nil
}

// SubmitRender records rec inside the render pass of the frame's
// framebuffer and submits it like [Stream.SubmitWork].
func (gs *GraphicsStream) SubmitRender(queue *Queue, sc *Swapchain, frame Frame, rec Recorder, waits ...Event) error {
	if int(frame.Index) >= len(sc.Framebuffers) {
		return fmt.Errorf("vgpu.GraphicsStream: frame image %d has no framebuffer", frame.Index)
	}
	return gs.SubmitWork(queue, InPass(sc.Target(frame.Index, gs.Clear), rec), waits...)
}

// Present queues the frame for presentation once all work submitted
// since its acquisition has completed. It returns [ErrNotRendered] if
// nothing was submitted after the acquire.
func (gs *GraphicsStream) Present(queue *Queue, sc *Swapchain, frame Frame) error {
	if gs.lastValue <= frame.acquired {
		return ErrNotRendered
	}
	var sub Submission
	sub.Wait(gs.Semaphore.Semaphore, gs.lastValue, vk.PipelineStageAllCommandsBit)
	sub.Signal(gs.PresentSemaphore.Semaphore, 0)
	if err := gs.Dev.Driver.QueueSubmit(queue.Queue, &sub, vk.NullFence); err != nil {
		return err
	}
	return gs.Dev.Driver.QueuePresent(queue.Queue, sc.Swapchain, frame.Index, gs.PresentSemaphore.Semaphore)
}

// Destroy destroys the stream and its binary semaphores.
func (gs *GraphicsStream) Destroy() {
	gs.Stream.Destroy()
	if gs.AcquireSemaphore != nil {
		gs.AcquireSemaphore.Destroy()
		gs.AcquireSemaphore = nil
	}
	if gs.PresentSemaphore != nil {
		gs.PresentSemaphore.Destroy()
		gs.PresentSemaphore = nil
	}
}
