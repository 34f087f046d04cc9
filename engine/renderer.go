// Copyright (c) 2023, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"log/slog"

	"cogentcore.org/core/base/errors"
	"cogentcore.org/vktri/vgpu"
	vk "github.com/goki/vulkan"
)

// Renderer owns the per-frame resources on a device: the swapchain,
// the command pool, the graphics stream and the vertex buffer. It draws
// the vertices with a pipeline it does not own.
type Renderer struct {
	Device    *vgpu.Device
	Swapchain *vgpu.Swapchain
	Pool      *vgpu.CmdPool
	Stream    *vgpu.GraphicsStream

	// device-local vertex buffer
	Vertices *vgpu.Buffer

	// number of vertices drawn per frame
	VertexCount int

	Pipeline vk.Pipeline
}

// NewRenderer makes the per-frame resources and uploads verts to a
// device-local buffer through a staging buffer.
func NewRenderer(dev *vgpu.Device, surface vk.Surface, format vk.SurfaceFormat, extent vk.Extent2D, pass vk.RenderPass, pipeline vk.Pipeline, verts []Vertex, cfg *Config) (*Renderer, error) {
	r := &Renderer{Device: dev, Pipeline: pipeline, VertexCount: len(verts)}
	var err error
	if r.Swapchain, err = vgpu.NewSwapchain(dev, surface, format, extent, pass); err != nil {
		return nil, err
	}
	if r.Pool, err = vgpu.NewCmdPool(dev, dev.GeneralQueue, cfg.PoolSize, cfg.PoolOptions()...); err != nil {
		r.Destroy()
		return nil, err
	}
	if r.Stream, err = vgpu.NewGraphicsStream(dev, r.Pool); err != nil {
		r.Destroy()
		return nil, err
	}
	if r.Vertices, err = r.upload(verts); err != nil {
		r.Destroy()
		return nil, err
	}
	return r, nil
}

// upload copies verts into a new device-local vertex buffer and waits
// for the copy to complete.
func (r *Renderer) upload(verts []Vertex) (*vgpu.Buffer, error) {
	data := VertexBytes(verts)
	staging, err := vgpu.NewBuffer(r.Device, vgpu.Staging, vk.BufferUsageTransferSrcBit, len(data))
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()
	if err := staging.CopyFrom(data); err != nil {
		return nil, err
	}
	vb, err := vgpu.NewBuffer(r.Device, vgpu.DeviceLocal, vk.BufferUsageVertexBufferBit|vk.BufferUsageTransferDstBit, len(data))
	if err != nil {
		return nil, err
	}
	rec, err := vgpu.CopyBuffer(staging, vb)
	if err == nil {
		err = r.Stream.SubmitWork(r.Device.GeneralQueue, rec)
	}
	if err == nil {
		err = r.Stream.Synchronize()
	}
	if err != nil {
		vb.Destroy()
		return nil, err
	}
	slog.Debug("engine: uploaded vertices", "vertices", len(verts), "bytes", len(data))
	return vb, nil
}

// Record draws the vertices. It implements [vgpu.Recorder].
func (r *Renderer) Record(cmd *vgpu.Cmd) {
	cmd.BindPipeline(r.Pipeline)
	cmd.SetViewportScissor(r.Swapchain.Extent)
	cmd.BindVertexBuffer(r.Vertices.Buffer)
	cmd.Draw(uint32(r.VertexCount))
}

// Frame acquires the next image, renders into it, presents it and
// waits for the frame to complete. An out-of-date or suboptimal
// swapchain is returned as [vgpu.ErrOutOfDate].
func (r *Renderer) Frame() error {
	q := r.Device.GeneralQueue
	frame, err := r.Stream.AcquireNextImage(q, r.Swapchain)
	if err != nil {
		return err
	}
	if err := r.Stream.SubmitRender(q, r.Swapchain, frame, r); err != nil {
		return err
	}
	if err := r.Stream.Present(q, r.Swapchain, frame); err != nil {
		return err
	}
	return r.Stream.Synchronize()
}

// Resize rebuilds the swapchain for the new framebuffer size.
func (r *Renderer) Resize(extent vk.Extent2D) error {
	if err := r.Swapchain.Recreate(extent); err != nil {
		return err
	}
	slog.Info("engine: resized", "extent", r.Swapchain.Extent)
	return nil
}

// Destroy waits for the device to go idle and frees everything the
// renderer made, in reverse order of creation.
func (r *Renderer) Destroy() {
	errors.Log(r.Device.WaitIdle())
	if r.Vertices != nil {
		r.Vertices.Destroy()
		r.Vertices = nil
	}
	if r.Stream != nil {
		r.Stream.Destroy()
		r.Stream = nil
	}
	if r.Pool != nil {
		r.Pool.Destroy()
		r.Pool = nil
	}
	if r.Swapchain != nil {
		r.Swapchain.Destroy()
		r.Swapchain = nil
	}
}
