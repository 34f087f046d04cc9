// Copyright (c) 2023, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu_test

import (
	"slices"
	"testing"

	"cogentcore.org/vktri/vgpu"
	"cogentcore.org/vktri/vgpu/vgputest"
	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamTimeline(t *testing.T) {
	dr, dev, pool := newPool(t, 2)
	defer pool.Destroy()
	st, err := vgpu.NewStream(dev, pool)
	require.NoError(t, err)
	defer st.Destroy()
	assert.Equal(t, uint64(0), st.LastValue())

	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, st.SubmitWork(dev.GeneralQueue, noop))
		assert.Equal(t, i, st.LastValue())
		counter, err := st.Semaphore.Counter()
		require.NoError(t, err)
		assert.Equal(t, i, counter)
	}

	subs := dr.Submissions()
	require.Len(t, subs, 5)
	for i, sub := range subs {
		assert.True(t, slices.Equal([]vk.Semaphore{st.Semaphore.Semaphore}, sub.WaitSemaphores), "submission %d waits on its own timeline", i)
		assert.Equal(t, []uint64{uint64(i)}, sub.WaitValues, "submission %d waits for the previous one", i)
		assert.Equal(t, []uint64{uint64(i + 1)}, sub.SignalValues, "submission %d advances by one", i)
		assert.Len(t, sub.Commands, 1)
	}

	require.NoError(t, st.Synchronize())
	assert.NoError(t, st.LastEvent().Synchronize())
	assert.Equal(t, uint64(5), st.LastEvent().Value)

	// a value past the last submission is never reached
	future := vgpu.Event{Stream: st, Value: st.LastValue() + 1}
	assert.ErrorIs(t, future.Synchronize(), vgpu.ErrTimeout)
}

func TestStreamKeepsOneLease(t *testing.T) {
	_, dev, pool := newPool(t, 2)
	defer pool.Destroy()
	st, err := vgpu.NewStream(dev, pool)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, st.SubmitWork(dev.GeneralQueue, noop))
	}
	assert.Equal(t, 2, pool.Capacity(), "previous leases are released")
	assert.Equal(t, 1, pool.Free())
	st.Destroy()
	assert.Equal(t, 2, pool.Free())
	st.Destroy()
}

func TestStreamEvents(t *testing.T) {
	dr, dev, pool := newPool(t, 4)
	defer pool.Destroy()
	upload, err := vgpu.NewStream(dev, pool)
	require.NoError(t, err)
	defer upload.Destroy()
	render, err := vgpu.NewStream(dev, pool)
	require.NoError(t, err)
	defer render.Destroy()

	require.NoError(t, upload.SubmitWork(dev.GeneralQueue, noop))
	require.NoError(t, upload.SubmitWork(dev.GeneralQueue, noop))
	require.NoError(t, render.SubmitWork(dev.GeneralQueue, noop, upload.LastEvent()))

	subs := dr.Submissions()
	last := subs[len(subs)-1]
	assert.True(t, slices.Equal([]vk.Semaphore{upload.Semaphore.Semaphore, render.Semaphore.Semaphore}, last.WaitSemaphores), "waits on the upload event, then its own timeline")
	assert.Equal(t, []uint64{2, 0}, last.WaitValues)
	assert.Equal(t, []uint64{1}, last.SignalValues)

	ev, err := render.SubmitEvents(dev.GeneralQueue, upload.LastEvent())
	require.NoError(t, err)
	assert.Same(t, render, ev.Stream)
	assert.Equal(t, uint64(2), ev.Value)
	assert.Equal(t, uint64(2), render.LastValue())

	subs = dr.Submissions()
	join := subs[len(subs)-1]
	assert.Empty(t, join.Commands, "joining events executes no commands")
	assert.Equal(t, []uint64{2, 1}, join.WaitValues)
	assert.Equal(t, []uint64{2}, join.SignalValues)
	assert.NoError(t, ev.Synchronize())

	// a second join issues a fresh value
	ev2, err := render.SubmitEvents(dev.GeneralQueue)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), ev2.Value)
}

type frameSetup struct {
	dr   *vgputest.Driver
	dev  *vgpu.Device
	pool *vgpu.CmdPool
	sc   *vgpu.Swapchain
	gs   *vgpu.GraphicsStream
}

func newFrameSetup(t *testing.T) *frameSetup {
	t.Helper()
	dr, dev, pool := newPool(t, 2)
	sc, err := vgpu.NewSwapchain(dev, vk.NullSurface, surfaceFormat, vk.Extent2D{}, dr.NewRenderPass())
	require.NoError(t, err)
	gs, err := vgpu.NewGraphicsStream(dev, pool)
	require.NoError(t, err)
	fs := &frameSetup{dr: dr, dev: dev, pool: pool, sc: sc, gs: gs}
	t.Cleanup(func() {
		gs.Destroy()
		sc.Destroy()
		pool.Destroy()
	})
	return fs
}

func (fs *frameSetup) queueCalls() []string {
	var calls []string
	for _, c := range fs.dr.Log() {
		switch c {
		case "AcquireNextImage", "QueueSubmit", "QueuePresent":
			calls = append(calls, c)
		}
	}
	return calls
}

func TestFrameOrder(t *testing.T) {
	fs := newFrameSetup(t)
	q := fs.dev.GeneralQueue
	draw := vgpu.RecorderFunc(func(cmd *vgpu.Cmd) { cmd.Draw(3) })
	fs.dr.ClearLog()

	for i := 0; i < 3; i++ {
		frame, err := fs.gs.AcquireNextImage(q, fs.sc)
		require.NoError(t, err)
		assert.Equal(t, uint32(i%2), frame.Index)
		require.NoError(t, fs.gs.SubmitRender(q, fs.sc, frame, draw))
		require.NoError(t, fs.gs.Present(q, fs.sc, frame))
	}
	frameCalls := []string{"AcquireNextImage", "QueueSubmit", "QueueSubmit", "QueueSubmit", "QueuePresent"}
	var want []string
	for i := 0; i < 3; i++ {
		want = append(want, frameCalls...)
	}
	assert.Equal(t, want, fs.queueCalls())
	assert.Equal(t, []uint32{0, 1, 0}, fs.dr.Presents())
	assert.Equal(t, uint64(6), fs.gs.LastValue(), "acquire and render each take one value")

	subs := fs.dr.Submissions()
	acquire, render, present := subs[0], subs[1], subs[2]
	assert.Empty(t, acquire.Commands)
	assert.True(t, slices.Contains(acquire.WaitSemaphores, fs.gs.AcquireSemaphore.Semaphore))
	assert.Equal(t, []uint64{1}, acquire.SignalValues)
	assert.Equal(t, []uint64{1}, render.WaitValues)
	assert.Equal(t, []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}, render.WaitStages)
	assert.Equal(t, []uint64{2}, render.SignalValues)
	assert.Empty(t, present.Commands)
	assert.Equal(t, []uint64{2}, present.WaitValues)
	assert.True(t, slices.Equal([]vk.Semaphore{fs.gs.PresentSemaphore.Semaphore}, present.SignalSemaphores))
	assert.Equal(t, []string{"BeginRenderPass", "Draw 3", "EndRenderPass"}, fs.dr.Executed()[:3])
}

func TestPresentNotRendered(t *testing.T) {
	fs := newFrameSetup(t)
	q := fs.dev.GeneralQueue
	frame, err := fs.gs.AcquireNextImage(q, fs.sc)
	require.NoError(t, err)

	assert.ErrorIs(t, fs.gs.Present(q, fs.sc, frame), vgpu.ErrNotRendered)
	assert.Zero(t, fs.dr.Calls("QueuePresent"))

	require.NoError(t, fs.gs.SubmitRender(q, fs.sc, frame, noop))
	assert.NoError(t, fs.gs.Present(q, fs.sc, frame))
	assert.Equal(t, 1, fs.dr.Calls("QueuePresent"))
}

func TestAcquireFailureKeepsTimeline(t *testing.T) {
	fs := newFrameSetup(t)
	fs.dr.AcquireResults = []vk.Result{vk.ErrorOutOfDate}
	_, err := fs.gs.AcquireNextImage(fs.dev.GeneralQueue, fs.sc)
	assert.ErrorIs(t, err, vgpu.ErrOutOfDate)
	assert.Equal(t, uint64(0), fs.gs.LastValue())
	assert.Zero(t, fs.dr.Calls("QueueSubmit"))

	require.NoError(t, fs.sc.Recreate(vk.Extent2D{}))
	frame, err := fs.gs.AcquireNextImage(fs.dev.GeneralQueue, fs.sc)
	require.NoError(t, err)
	require.NoError(t, fs.gs.SubmitRender(fs.dev.GeneralQueue, fs.sc, frame, noop))
	assert.NoError(t, fs.gs.Present(fs.dev.GeneralQueue, fs.sc, frame))
}
