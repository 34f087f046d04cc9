// Copyright (c) 2023, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"unsafe"

	"cogentcore.org/core/math32"
	vk "github.com/goki/vulkan"
)

// Vertex is the per-vertex input of the pipeline: a position in
// normalized device coordinates and a color.
type Vertex struct {
	Position math32.Vector3
	Color    math32.Vector3
}

// VertexSize is the stride of [Vertex] in a vertex buffer.
const VertexSize = int(unsafe.Sizeof(Vertex{}))

// Triangle returns the three vertices of the drawn triangle, with a
// red, a green and a blue corner.
func Triangle() []Vertex {
	return []Vertex{
		{Position: math32.Vec3(0, -0.5, 0), Color: math32.Vec3(1, 0, 0)},
		{Position: math32.Vec3(0.5, 0.5, 0), Color: math32.Vec3(0, 1, 0)},
		{Position: math32.Vec3(-0.5, 0.5, 0), Color: math32.Vec3(0, 0, 1)},
	}
}

// VertexBytes returns the memory of the vertices as bytes,
// without copying.
func VertexBytes(verts []Vertex) []byte {
	if len(verts) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&verts[0])), len(verts)*VertexSize)
}

// VertexInput returns the binding and attributes of [Vertex]:
// binding 0 advances per vertex, location 0 is the position and
// location 1 the color.
func VertexInput() ([]vk.VertexInputBindingDescription, []vk.VertexInputAttributeDescription) {
	bindings := []vk.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    uint32(VertexSize),
		InputRate: vk.VertexInputRateVertex,
	}}
	attrs := []vk.VertexInputAttributeDescription{
		{
			Location: 0,
			Binding:  0,
			Format:   vk.FormatR32g32b32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.Position)),
		},
		{
			Location: 1,
			Binding:  0,
			Format:   vk.FormatR32g32b32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.Color)),
		},
	}
	return bindings, attrs
}
