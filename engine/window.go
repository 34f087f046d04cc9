// Copyright (c) 2023, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"fmt"

	"cogentcore.org/core/base/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
)

// EventTypes are the kinds of window events the frame loop handles.
type EventTypes int32

const (
	// QuitEvent is a request to close the window.
	QuitEvent EventTypes = iota

	// ResizeEvent is a change of the framebuffer size.
	ResizeEvent
)

func (et EventTypes) String() string {
	switch et {
	case QuitEvent:
		return "Quit"
	case ResizeEvent:
		return "Resize"
	}
	return fmt.Sprintf("EventTypes(%d)", int32(et))
}

// Event is a window event. Width and Height are set for [ResizeEvent],
// in pixels.
type Event struct {
	Type          EventTypes
	Width, Height int
}

// Window is the operating system window the engine renders into.
type Window interface {

	// RequiredExtensions returns the instance extensions needed
	// to make a surface for the window.
	RequiredExtensions() []string

	// Surface makes the presentation surface of the window.
	Surface(instance vk.Instance) (vk.Surface, error)

	// Poll processes pending operating system events and returns
	// the ones the engine handles, in order.
	Poll() []Event

	// FramebufferSize returns the current size of the drawable area
	// in pixels. It is zero while the window is minimized.
	FramebufferSize() (width, height int)

	Destroy()
}

// events is an ordered queue of window events in which consecutive
// resizes collapse into the latest one.
type events []Event

func (ev *events) push(e Event) {
	if n := len(*ev); n > 0 && e.Type == ResizeEvent && (*ev)[n-1].Type == ResizeEvent {
		(*ev)[n-1] = e
		return
	}
	*ev = append(*ev, e)
}

func (ev *events) drain() []Event {
	out := *ev
	*ev = nil
	return out
}

// Init initializes glfw and points the Vulkan loader at it.
// Must be called on the main thread, before anything else here.
func Init() error {
	if err := glfw.Init(); err != nil {
		return errors.Log(err)
	}
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	return errors.Log(vk.Init())
}

// Terminate shuts glfw down. Call it last, on the main thread.
func Terminate() {
	glfw.Terminate()
}

// GLFWWindow is a [Window] made with glfw.
type GLFWWindow struct {
	Glw *glfw.Window

	pending events
}

// NewGLFWWindow opens a resizable window without a client API,
// for use with Vulkan. [Init] must have been called.
func NewGLFWWindow(title string, width, height int) (*GLFWWindow, error) {
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glw, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("engine: failed to create window: %w", err)
	}
	w := &GLFWWindow{Glw: glw}
	glw.SetFramebufferSizeCallback(w.fbResized)
	glw.SetCloseCallback(w.closeRequested)
	return w, nil
}

func (w *GLFWWindow) fbResized(glw *glfw.Window, width, height int) {
	w.pending.push(Event{Type: ResizeEvent, Width: width, Height: height})
}

func (w *GLFWWindow) closeRequested(glw *glfw.Window) {
	w.pending.push(Event{Type: QuitEvent})
}

func (w *GLFWWindow) RequiredExtensions() []string {
	return w.Glw.GetRequiredInstanceExtensions()
}

func (w *GLFWWindow) Surface(instance vk.Instance) (vk.Surface, error) {
	ptr, err := w.Glw.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, fmt.Errorf("engine: failed to create window surface: %w", err)
	}
	return vk.SurfaceFromPointer(ptr), nil
}

func (w *GLFWWindow) Poll() []Event {
	glfw.PollEvents()
	return w.pending.drain()
}

func (w *GLFWWindow) FramebufferSize() (width, height int) {
	return w.Glw.GetFramebufferSize()
}

func (w *GLFWWindow) Destroy() {
	if w.Glw == nil {
		return
	}
	w.Glw.Destroy()
	w.Glw = nil
}
