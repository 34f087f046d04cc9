// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// Buffer is a region of device memory bound to a linear buffer handle.
// Its kind and usage are fixed at creation, and memory is allocated and
// bound eagerly: resizing means making a new Buffer.
type Buffer struct {
	Dev *Device

	// memory classification
	Kind BufferKinds

	// usage flags given at creation
	Usage vk.BufferUsageFlags

	// logical size in bytes, as requested
	Size int

	// bytes actually reserved by the driver, >= Size
	Capacity int

	// buffer handle
	Buffer vk.Buffer

	// backing memory
	Memory vk.DeviceMemory
}

// NewBuffer makes a buffer of the given kind, usage and size in bytes,
// allocating memory of a type that satisfies the kind's properties.
// It fails with [ErrNoMemoryType] if no memory type fits.
func NewBuffer(dev *Device, kind BufferKinds, usage vk.BufferUsageFlagBits, size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: buffer size must be positive, got %d", ErrUsage, size)
	}
	dr := dev.Driver
	bf := &Buffer{Dev: dev, Kind: kind, Usage: vk.BufferUsageFlags(usage), Size: size}
	buffer, err := dr.CreateBuffer(size, bf.Usage)
	if err != nil {
		return nil, err
	}
	bf.Buffer = buffer

	memReqs := dr.BufferMemoryRequirements(buffer)
	bf.Capacity = int(memReqs.Size)
	props := dr.MemoryProperties()
	memType, err := FindMemoryType(&props, memReqs.MemoryTypeBits, kind.MemoryFlags())
	if err != nil {
		bf.Destroy()
		return nil, fmt.Errorf("%s buffer of %d bytes: %w", kind, size, err)
	}
	mem, err := dr.AllocateMemory(memReqs.Size, memType)
	if err != nil {
		bf.Destroy()
		return nil, err
	}
	bf.Memory = mem
	if err := dr.BindBufferMemory(buffer, mem); err != nil {
		bf.Destroy()
		return nil, err
	}
	return bf, nil
}

// HasUsage returns true if all of the given usage flags were set
// at creation.
func (bf *Buffer) HasUsage(usage vk.BufferUsageFlagBits) bool {
	return bf.Usage&vk.BufferUsageFlags(usage) == vk.BufferUsageFlags(usage)
}

// mapped maps n bytes of the buffer memory and calls fun with them,
// always unmapping after.
func (bf *Buffer) mapped(n int, fun func(mem []byte)) error {
	if bf.Kind != Staging {
		return fmt.Errorf("%w: buffer is %s", ErrNotStaging, bf.Kind)
	}
	ptr, err := bf.Dev.Driver.MapMemory(bf.Memory, n)
	if err != nil {
		return err
	}
	defer bf.Dev.Driver.UnmapMemory(bf.Memory)
	fun(unsafe.Slice((*byte)(ptr), n))
	return nil
}

// CopyFrom copies src into the start of the buffer.
// The buffer must be [Staging] and src must not exceed its size.
func (bf *Buffer) CopyFrom(src []byte) error {
	if len(src) > bf.Size {
		return fmt.Errorf("%w: copy of %d bytes into buffer of %d", ErrUsage, len(src), bf.Size)
	}
	if len(src) == 0 {
		return nil
	}
	return bf.mapped(len(src), func(mem []byte) {
		copy(mem, src)
	})
}

// CopyTo copies the whole buffer into dst, which must be at least
// as large as the buffer. The buffer must be [Staging].
func (bf *Buffer) CopyTo(dst []byte) error {
	if len(dst) < bf.Size {
		return fmt.Errorf("%w: copy of buffer of %d bytes into %d", ErrUsage, bf.Size, len(dst))
	}
	return bf.mapped(bf.Size, func(mem []byte) {
		copy(dst, mem)
	})
}

// Destroy releases the buffer handle and its memory.
func (bf *Buffer) Destroy() {
	dr := bf.Dev.Driver
	if bf.Buffer != vk.NullBuffer {
		dr.DestroyBuffer(bf.Buffer)
		bf.Buffer = vk.NullBuffer
	}
	if bf.Memory != vk.NullDeviceMemory {
		dr.FreeMemory(bf.Memory)
		bf.Memory = vk.NullDeviceMemory
	}
}

// CopyBuffer returns a [Recorder] that copies all of src into dst.
// src must have TransferSrc usage, dst TransferDst usage,
// and both must be of the same size.
func CopyBuffer(src, dst *Buffer) (Recorder, error) {
	if !src.HasUsage(vk.BufferUsageTransferSrcBit) {
		return nil, fmt.Errorf("%w: source buffer needs TransferSrc usage", ErrUsage)
	}
	if !dst.HasUsage(vk.BufferUsageTransferDstBit) {
		return nil, fmt.Errorf("%w: destination buffer needs TransferDst usage", ErrUsage)
	}
	if src.Size != dst.Size {
		return nil, fmt.Errorf("%w: copy between buffers of %d and %d bytes", ErrUsage, src.Size, dst.Size)
	}
	return RecorderFunc(func(cmd *Cmd) {
		cmd.CopyBuffer(src.Buffer, dst.Buffer, src.Size)
	}), nil
}
