// Copyright (c) 2023, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	vk "github.com/goki/vulkan"
)

// Recorder writes commands into a command buffer.
// It must not begin or end the buffer itself.
type Recorder interface {
	Record(cmd *Cmd)
}

// RecorderFunc adapts a function to the [Recorder] interface.
type RecorderFunc func(cmd *Cmd)

func (rf RecorderFunc) Record(cmd *Cmd) { rf(cmd) }

// Recorders records each of its elements in order.
type Recorders []Recorder

func (rs Recorders) Record(cmd *Cmd) {
	for _, r := range rs {
		r.Record(cmd)
	}
}

// Cmd is the recording context handed to a [Recorder]:
// a command buffer in the recording state and the driver to record with.
type Cmd struct {
	Driver Driver
	Buffer vk.CommandBuffer
}

// CopyBuffer copies the first size bytes of src into dst.
func (c *Cmd) CopyBuffer(src, dst vk.Buffer, size int) {
	c.Driver.CmdCopyBuffer(c.Buffer, src, dst, size)
}

// BeginRenderPass begins the render pass of the target, clearing
// its color attachment.
func (c *Cmd) BeginRenderPass(rt *RenderTarget) {
	c.Driver.CmdBeginRenderPass(c.Buffer, rt.Pass, rt.Framebuffer, rt.Extent, rt.Clear)
}

func (c *Cmd) EndRenderPass() {
	c.Driver.CmdEndRenderPass(c.Buffer)
}

// BindPipeline binds a graphics pipeline.
func (c *Cmd) BindPipeline(pipeline vk.Pipeline) {
	c.Driver.CmdBindPipeline(c.Buffer, pipeline)
}

// BindVertexBuffer binds buf at vertex binding 0, offset 0.
func (c *Cmd) BindVertexBuffer(buf vk.Buffer) {
	c.Driver.CmdBindVertexBuffer(c.Buffer, buf)
}

// SetViewportScissor sets the dynamic viewport and scissor
// to cover the whole extent.
func (c *Cmd) SetViewportScissor(extent vk.Extent2D) {
	c.Driver.CmdSetViewportScissor(c.Buffer, extent)
}

// Draw draws one instance of the given number of vertices.
func (c *Cmd) Draw(vertices uint32) {
	c.Driver.CmdDraw(c.Buffer, vertices)
}

// RenderTarget is what a render pass draws into: the pass itself,
// one framebuffer, its extent and the clear color.
type RenderTarget struct {
	Pass        vk.RenderPass
	Framebuffer vk.Framebuffer
	Extent      vk.Extent2D
	Clear       [4]float32
}

// InPass wraps rec in a begin and end of the render target's pass.
func InPass(rt *RenderTarget, rec Recorder) Recorder {
	return RecorderFunc(func(cmd *Cmd) {
		cmd.BeginRenderPass(rt)
		rec.Record(cmd)
		cmd.EndRenderPass()
	})
}
