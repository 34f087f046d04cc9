// Copyright (c) 2023, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"context"
	"testing"
	"time"

	"cogentcore.org/vktri/vgpu"
	"cogentcore.org/vktri/vgpu/vgputest"
	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptWindow is a [Window] that returns scripted events, one batch
// per poll, and then a quit.
type scriptWindow struct {
	polls  [][]Event
	width  int
	height int
	npoll  int
}

func (sw *scriptWindow) RequiredExtensions() []string { return nil }

func (sw *scriptWindow) Surface(instance vk.Instance) (vk.Surface, error) {
	return vk.NullSurface, nil
}

func (sw *scriptWindow) Poll() []Event {
	sw.npoll++
	if len(sw.polls) == 0 {
		return []Event{{Type: QuitEvent}}
	}
	evs := sw.polls[0]
	sw.polls = sw.polls[1:]
	for _, ev := range evs {
		if ev.Type == ResizeEvent {
			sw.width, sw.height = ev.Width, ev.Height
		}
	}
	return evs
}

func (sw *scriptWindow) FramebufferSize() (int, int) { return sw.width, sw.height }

func (sw *scriptWindow) Destroy() {}

func newTestEngine(t *testing.T, win *scriptWindow) (*vgputest.Driver, *Engine) {
	t.Helper()
	dr := vgputest.NewDriver()
	dev := vgputest.NewDevice(dr)
	cfg := Defaults()
	cfg.PoolSize = 2
	cfg.FPSInterval = 0
	r, err := NewRenderer(dev, vk.NullSurface, SurfaceFormat, cfg.Extent(), dr.NewRenderPass(), vk.NullPipeline, Triangle(), cfg)
	require.NoError(t, err)
	t.Cleanup(r.Destroy)
	return dr, &Engine{Config: cfg, Window: win, Device: dev, Renderer: r}
}

func TestRendererUpload(t *testing.T) {
	dr, e := newTestEngine(t, &scriptWindow{})
	r := e.Renderer
	assert.Equal(t, 3, r.VertexCount)
	assert.Equal(t, 72, r.Vertices.Size)
	assert.Equal(t, VertexBytes(Triangle()), dr.BufferData(r.Vertices.Buffer))
	assert.True(t, r.Vertices.HasUsage(vk.BufferUsageVertexBufferBit))
	assert.Equal(t, uint64(1), r.Stream.LastValue(), "upload is one submission on the stream")
	assert.Equal(t, []string{"CopyBuffer"}, dr.Executed())
	assert.Equal(t, 2, dr.Calls("CreateBuffer"))
	assert.Equal(t, 1, dr.Calls("DestroyBuffer"), "staging buffer is freed after the upload")
}

func TestRunFrames(t *testing.T) {
	win := &scriptWindow{width: 800, height: 600, polls: [][]Event{
		nil,
		{{Type: ResizeEvent, Width: 400, Height: 300}, {Type: ResizeEvent, Width: 1024, Height: 768}},
		nil,
	}}
	dr, e := newTestEngine(t, win)
	dr.ClearLog()

	assert.ErrorIs(t, e.Run(context.Background()), ErrQuit)
	assert.Equal(t, 4, win.npoll)
	assert.Equal(t, []uint32{0, 1, 0}, dr.Presents())
	assert.Equal(t, 1, dr.Calls("CreateSwapchain"), "one resize rebuilds once")
	assert.Equal(t, 1, dr.Calls("DeviceWaitIdle"))
	assert.Equal(t, []string{
		"BeginRenderPass", "BindPipeline", "SetViewportScissor", "BindVertexBuffer", "Draw 3", "EndRenderPass",
	}, dr.Executed()[:6])
	assert.Len(t, dr.Executed(), 18)
}

func TestRunOutOfDate(t *testing.T) {
	win := &scriptWindow{width: 800, height: 600, polls: [][]Event{nil, nil}}
	dr, e := newTestEngine(t, win)
	dr.ClearLog()
	dr.AcquireResults = []vk.Result{vk.ErrorOutOfDate}

	assert.ErrorIs(t, e.Run(context.Background()), ErrQuit)
	assert.Equal(t, 1, dr.Calls("CreateSwapchain"), "out of date swapchain is rebuilt")
	assert.Equal(t, []uint32{0}, dr.Presents())
}

func TestRunFatal(t *testing.T) {
	win := &scriptWindow{width: 800, height: 600, polls: [][]Event{nil, nil}}
	dr, e := newTestEngine(t, win)
	dr.AcquireResults = []vk.Result{vk.ErrorSurfaceLost}

	err := e.Run(context.Background())
	assert.NotErrorIs(t, err, ErrQuit)
	var re *vgpu.ResultError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, vk.ErrorSurfaceLost, re.Result)
	assert.Equal(t, 1, win.npoll)
}

func TestRunMinimized(t *testing.T) {
	minimizedWait = time.Millisecond
	win := &scriptWindow{polls: [][]Event{nil, nil}}
	dr, e := newTestEngine(t, win)
	dr.ClearLog()

	assert.ErrorIs(t, e.Run(context.Background()), ErrQuit)
	assert.Zero(t, dr.Calls("AcquireNextImage"), "nothing is drawn without a drawable area")
}

func TestRunCanceled(t *testing.T) {
	win := &scriptWindow{width: 800, height: 600, polls: [][]Event{nil, nil}}
	dr, e := newTestEngine(t, win)
	dr.ClearLog()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, e.Run(ctx), ErrQuit)
	assert.Zero(t, win.npoll)
	assert.Zero(t, dr.Calls("AcquireNextImage"))
}

func TestEventsCoalesce(t *testing.T) {
	var ev events
	ev.push(Event{Type: ResizeEvent, Width: 1, Height: 1})
	ev.push(Event{Type: ResizeEvent, Width: 2, Height: 2})
	ev.push(Event{Type: QuitEvent})
	ev.push(Event{Type: ResizeEvent, Width: 3, Height: 3})
	assert.Equal(t, []Event{
		{Type: ResizeEvent, Width: 2, Height: 2},
		{Type: QuitEvent},
		{Type: ResizeEvent, Width: 3, Height: 3},
	}, ev.drain())
	assert.Empty(t, ev.drain())
	assert.Equal(t, "Resize", ResizeEvent.String())
}

func TestFPSCounter(t *testing.T) {
	start := time.Unix(100, 0)
	var fc fpsCounter
	fc.reset(start, 2*time.Second)
	for i := 1; i < 60; i++ {
		_, ok := fc.tick(start.Add(time.Duration(i) * 10 * time.Millisecond))
		assert.False(t, ok)
	}
	fps, ok := fc.tick(start.Add(2 * time.Second))
	require.True(t, ok)
	assert.InDelta(t, 30, fps, 0.001)

	_, ok = fc.tick(start.Add(3 * time.Second))
	assert.False(t, ok, "the interval restarts after a report")

	fc.reset(start, 0)
	_, ok = fc.tick(start.Add(time.Hour))
	assert.False(t, ok)
}
