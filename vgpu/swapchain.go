// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// This is initially adapted from https://github.com/vulkan-go/asche
// Copyright © 2017 Maxim Kupriianov <max@kc.vc>, under the MIT License

package vgpu

import (
	"fmt"
	"log/slog"
	"slices"

	vk "github.com/goki/vulkan"
)

// DesiredImageCount is the number of swapchain images asked for,
// i.e., double buffering, before applying the surface limits.
const DesiredImageCount = 2

// Swapchain is the set of presentable images of a window surface,
// with a view for each and, if a render pass is given, a framebuffer
// for each.
type Swapchain struct {
	Dev *Device

	// window surface presented to; not owned
	Surface vk.Surface

	// image format and color space
	Format vk.SurfaceFormat

	// render pass the framebuffers are made for; may be null
	RenderPass vk.RenderPass

	// selected present mode
	PresentMode vk.PresentMode

	// actual image size
	Extent vk.Extent2D

	Swapchain    vk.Swapchain
	Images       []vk.Image
	Views        []vk.ImageView
	Framebuffers []vk.Framebuffer
}

// NewSwapchain makes a swapchain on the surface, of the given format.
// extent is used only when the surface leaves the size to the swapchain.
func NewSwapchain(dev *Device, surface vk.Surface, format vk.SurfaceFormat, extent vk.Extent2D, renderPass vk.RenderPass) (*Swapchain, error) {
	sc := &Swapchain{Dev: dev, Surface: surface, Format: format, RenderPass: renderPass}
	if err := sc.build(extent); err != nil {
		sc.Destroy()
		return nil, err
	}
	return sc, nil
}

// SelectPresentMode returns mailbox if it is offered, else FIFO,
// which every surface supports.
func SelectPresentMode(modes []vk.PresentMode) vk.PresentMode {
	if slices.Contains(modes, vk.PresentModeMailbox) {
		return vk.PresentModeMailbox
	}
	return vk.PresentModeFifo
}

// SelectImageCount returns [DesiredImageCount] raised to the surface
// minimum and capped at its maximum, where a maximum of 0 means no limit.
func SelectImageCount(caps *vk.SurfaceCapabilities) uint32 {
	n := max(uint32(DesiredImageCount), caps.MinImageCount)
	if caps.MaxImageCount > 0 && n > caps.MaxImageCount {
		n = caps.MaxImageCount
	}
	return n
}

// SelectExtent returns the surface's current extent, or if that is
// undefined, the requested extent clamped to the surface limits.
func SelectExtent(caps *vk.SurfaceCapabilities, want vk.Extent2D) vk.Extent2D {
	if caps.CurrentExtent.Width != vk.MaxUint32 {
		return caps.CurrentExtent
	}
	return vk.Extent2D{
		Width:  min(max(want.Width, caps.MinImageExtent.Width), caps.MaxImageExtent.Width),
		Height: min(max(want.Height, caps.MinImageExtent.Height), caps.MaxImageExtent.Height),
	}
}

func (sc *Swapchain) build(extent vk.Extent2D) error {
	dr := sc.Dev.Driver
	caps, err := dr.SurfaceCapabilities(sc.Surface)
	if err != nil {
		return err
	}
	modes, err := dr.SurfacePresentModes(sc.Surface)
	if err != nil {
		return err
	}
	sc.PresentMode = SelectPresentMode(modes)
	sc.Extent = SelectExtent(&caps, extent)

	preTransform := vk.SurfaceTransformIdentityBit
	if vk.SurfaceTransformFlagBits(caps.SupportedTransforms)&preTransform == 0 {
		preTransform = caps.CurrentTransform
	}
	sc.Swapchain, err = dr.CreateSwapchain(&SwapchainInfo{
		Surface:      sc.Surface,
		ImageCount:   SelectImageCount(&caps),
		Format:       sc.Format,
		Extent:       sc.Extent,
		PresentMode:  sc.PresentMode,
		PreTransform: preTransform,
	})
	if err != nil {
		return err
	}
	sc.Images, err = dr.SwapchainImages(sc.Swapchain)
	if err != nil {
		return err
	}
	for _, img := range sc.Images {
		view, err := dr.CreateImageView(img, sc.Format.Format)
		if err != nil {
			return err
		}
		sc.Views = append(sc.Views, view)
		if sc.RenderPass == vk.NullRenderPass {
			continue
		}
		fb, err := dr.CreateFramebuffer(sc.RenderPass, view, sc.Extent)
		if err != nil {
			return err
		}
		sc.Framebuffers = append(sc.Framebuffers, fb)
	}
	slog.Info("vgpu.Swapchain: created", "images", len(sc.Images), "width", sc.Extent.Width, "height", sc.Extent.Height, "mailbox", sc.PresentMode == vk.PresentModeMailbox)
	return nil
}

// AcquireNextImage acquires the next image to render into, signaling sem
// when it is ready. A suboptimal swapchain still yields an image, and is
// reported by the following present instead. Every other non-success
// result is returned as an error; an out-of-date swapchain matches
// [ErrOutOfDate].
func (sc *Swapchain) AcquireNextImage(sem vk.Semaphore) (uint32, error) {
	idx, ret := sc.Dev.Driver.AcquireNextImage(sc.Swapchain, vk.MaxUint64, sem)
	switch ret {
	case vk.Success:
		return idx, nil
	case vk.Suboptimal:
		slog.Debug("vgpu.Swapchain: suboptimal acquire", "image", idx)
		return idx, nil
	}
	return 0, &ResultError{Result: ret, Op: "AcquireNextImage"}
}

// Target returns the render target for the image at index,
// cleared to the given color.
func (sc *Swapchain) Target(index uint32, clear [4]float32) *RenderTarget {
	rt := &RenderTarget{Pass: sc.RenderPass, Extent: sc.Extent, Clear: clear}
	if int(index) < len(sc.Framebuffers) {
		rt.Framebuffer = sc.Framebuffers[index]
	}
	return rt
}

// Recreate rebuilds the swapchain for a new extent. It waits for the
// device to go idle before destroying anything.
func (sc *Swapchain) Recreate(extent vk.Extent2D) error {
	if err := sc.Dev.Driver.DeviceWaitIdle(); err != nil {
		return fmt.Errorf("vgpu.Swapchain.Recreate: %w", err)
	}
	sc.destroy()
	return sc.build(extent)
}

func (sc *Swapchain) destroy() {
	dr := sc.Dev.Driver
	for _, fb := range sc.Framebuffers {
		dr.DestroyFramebuffer(fb)
	}
	sc.Framebuffers = nil
	for _, view := range sc.Views {
		dr.DestroyImageView(view)
	}
	sc.Views = nil
	sc.Images = nil
	if sc.Swapchain != vk.NullSwapchain {
		dr.DestroySwapchain(sc.Swapchain)
		sc.Swapchain = vk.NullSwapchain
	}
}

// Destroy frees the framebuffers, views and swapchain.
// The surface is not destroyed.
func (sc *Swapchain) Destroy() {
	sc.destroy()
}
