// Copyright (c) 2023, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package engine draws a triangle in a window with the vgpu package:
// it makes the instance, the device, the render pass and the pipeline,
// and runs the frame loop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cogentcore.org/vktri/vgpu"
	vk "github.com/goki/vulkan"
)

// ErrQuit is returned by [Engine.Run] when the window is closed or the
// context is done. It is not a failure.
var ErrQuit = errors.New("engine: quit")

// minimizedWait is how long the loop sleeps between polls while the
// window has no drawable area.
var minimizedWait = 10 * time.Millisecond

// Engine owns everything needed to draw: the window, the GPU instance,
// the device and the renderer. Fields are destroyed in reverse order of
// creation by [Engine.Destroy].
type Engine struct {
	Config *Config
	Window Window

	GPU     *vgpu.GPU
	Device  *vgpu.Device
	Surface vk.Surface
	Format  vk.SurfaceFormat

	RenderPass vk.RenderPass
	Pipeline   *Pipeline
	Renderer   *Renderer

	fps fpsCounter
}

// New makes the engine for the window: the instance with the features
// the config asks for, the best device that can present to the window,
// the render pass, the pipeline and the renderer.
func New(cfg *Config, win Window) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{Config: cfg, Window: win}
	if err := e.init(); err != nil {
		e.Destroy()
		return nil, err
	}
	return e, nil
}

func (e *Engine) init() error {
	var err error
	cfg := e.Config
	e.GPU, err = vgpu.NewGPU(cfg.Title, vgpu.DefaultFeatures(), e.Window.RequiredExtensions(), cfg.Features()...)
	if err != nil {
		return err
	}
	if e.Surface, err = e.Window.Surface(e.GPU.Instance); err != nil {
		return err
	}
	if e.Device, err = e.GPU.SelectDevice(); err != nil {
		return err
	}
	if !e.Device.SurfaceSupported(e.Surface) {
		return fmt.Errorf("%w: %s cannot present to the window", vgpu.ErrNoDevice, e.Device.Name)
	}
	formats, err := SurfaceFormats(e.Device, e.Surface)
	if err != nil {
		return err
	}
	if e.Format, err = SelectSurfaceFormat(formats); err != nil {
		return err
	}
	if e.RenderPass, err = NewRenderPass(e.Device.Device, e.Format.Format); err != nil {
		return err
	}
	if e.Pipeline, err = NewPipeline(e.Device.Device, e.RenderPass, cfg.ShaderDir); err != nil {
		return err
	}
	e.Renderer, err = NewRenderer(e.Device, e.Surface, e.Format, e.framebufferExtent(), e.RenderPass, e.Pipeline.Pipeline, Triangle(), cfg)
	return err
}

// framebufferExtent returns the drawable size of the window,
// falling back on the configured size.
func (e *Engine) framebufferExtent() vk.Extent2D {
	w, h := e.Window.FramebufferSize()
	if w <= 0 || h <= 0 {
		return e.Config.Extent()
	}
	return vk.Extent2D{Width: uint32(w), Height: uint32(h)}
}

// Run renders frames until the window is closed or ctx is done, and
// then returns [ErrQuit]. A resize or an out-of-date swapchain rebuilds
// the swapchain before the next frame. Any other error stops the loop
// and is returned.
func (e *Engine) Run(ctx context.Context) error {
	e.fps.reset(time.Now(), e.Config.FPSPeriod())
	resize := false
	for {
		if ctx.Err() != nil {
			return ErrQuit
		}
		for _, ev := range e.Window.Poll() {
			switch ev.Type {
			case QuitEvent:
				return ErrQuit
			case ResizeEvent:
				slog.Debug("engine: resize event", "width", ev.Width, "height", ev.Height)
				resize = true
			}
		}
		if w, h := e.Window.FramebufferSize(); w <= 0 || h <= 0 {
			time.Sleep(minimizedWait)
			continue
		}
		if resize {
			if err := e.Renderer.Resize(e.framebufferExtent()); err != nil {
				return err
			}
			resize = false
		}
		if err := e.Renderer.Frame(); err != nil {
			if errors.Is(err, vgpu.ErrOutOfDate) {
				slog.Debug("engine: swapchain out of date", "err", err)
				resize = true
				continue
			}
			return err
		}
		if fps, ok := e.fps.tick(time.Now()); ok {
			slog.Info("engine: frame rate", "fps", fmt.Sprintf("%.0f", fps))
		}
	}
}

// Destroy frees everything the engine made, in reverse order of
// creation. The window is not destroyed.
func (e *Engine) Destroy() {
	if e.Renderer != nil {
		e.Renderer.Destroy()
		e.Renderer = nil
	}
	if e.Pipeline != nil {
		e.Pipeline.Destroy()
		e.Pipeline = nil
	}
	if e.RenderPass != vk.NullRenderPass {
		vk.DestroyRenderPass(e.Device.Device, e.RenderPass, nil)
		e.RenderPass = vk.NullRenderPass
	}
	if e.Device != nil {
		e.Device.Destroy()
		e.Device = nil
	}
	if e.GPU != nil {
		if e.Surface != vk.NullSurface {
			vk.DestroySurface(e.GPU.Instance, e.Surface, nil)
			e.Surface = vk.NullSurface
		}
		e.GPU.Destroy()
		e.GPU = nil
	}
}

// fpsCounter counts frames and reports the rate once per interval.
type fpsCounter struct {
	interval time.Duration
	start    time.Time
	frames   int
}

func (fc *fpsCounter) reset(now time.Time, interval time.Duration) {
	fc.interval = interval
	fc.start = now
	fc.frames = 0
}

// tick counts a frame and returns the rate over the last interval
// once the interval has elapsed. A zero interval never reports.
func (fc *fpsCounter) tick(now time.Time) (float64, bool) {
	fc.frames++
	if fc.interval <= 0 {
		return 0, false
	}
	el := now.Sub(fc.start)
	if el < fc.interval {
		return 0, false
	}
	fps := float64(fc.frames) / el.Seconds()
	fc.start = now
	fc.frames = 0
	return fps, true
}
