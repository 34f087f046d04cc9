// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	"fmt"
	"math/bits"

	vk "github.com/goki/vulkan"
)

// BufferKinds are the memory classifications of a [Buffer].
type BufferKinds int32

const (
	// DeviceLocal memory is fastest for the GPU and not visible to the host.
	DeviceLocal BufferKinds = iota

	// Staging memory is host visible and coherent, used to move data
	// to and from device local memory. Only staging buffers can be
	// copied to and from host memory.
	Staging

	// HostAccessible memory is device local and host visible.
	HostAccessible

	BufferKindsN
)

var bufferKindNames = [...]string{"DeviceLocal", "Staging", "HostAccessible"}

func (bk BufferKinds) String() string {
	if bk < 0 || bk >= BufferKindsN {
		return fmt.Sprintf("BufferKinds(%d)", int32(bk))
	}
	return bufferKindNames[bk]
}

// MemoryFlags returns the memory properties a buffer of this kind requires.
func (bk BufferKinds) MemoryFlags() vk.MemoryPropertyFlags {
	switch bk {
	case Staging:
		return vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	case HostAccessible:
		return vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit | vk.MemoryPropertyHostVisibleBit)
	}
	return vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
}

// FindMemoryType returns the lowest memory type index that is set in
// typeBits and whose property flags include all of want.
// It returns [ErrNoMemoryType] if there is none.
func FindMemoryType(props *vk.PhysicalDeviceMemoryProperties, typeBits uint32, want vk.MemoryPropertyFlags) (uint32, error) {
	for left := typeBits; left != 0; {
		i := uint32(bits.TrailingZeros32(left))
		if i >= props.MemoryTypeCount {
			break
		}
		if props.MemoryTypes[i].PropertyFlags&want == want {
			return i, nil
		}
		left &^= 1 << i
	}
	return 0, fmt.Errorf("%w (type bits %#x, properties %#x)", ErrNoMemoryType, typeBits, uint32(want))
}
