// Copyright (c) 2023, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"path/filepath"
	"testing"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadShader(t *testing.T) {
	// SPIR-V magic number and version
	fn := writeFile(t, VertexShaderFile, "\x03\x02\x23\x07\x00\x00\x01\x00")
	code, err := LoadShader(fn)
	require.NoError(t, err)
	assert.Len(t, code, 8)

	words, err := ShaderWords(code)
	require.NoError(t, err)
	require.Len(t, words, 2)
	assert.Equal(t, code, unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), 8))

	_, err = LoadShader(writeFile(t, "odd.spv", "\x03\x02\x23\x07\x00\x00"))
	assert.ErrorIs(t, err, ErrShaderSize)
	_, err = LoadShader(writeFile(t, "empty.spv", ""))
	assert.ErrorIs(t, err, ErrShaderSize)

	_, err = LoadShader(filepath.Join(t.TempDir(), FragmentShaderFile))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrShaderSize)

	_, err = ShaderWords(nil)
	assert.ErrorIs(t, err, ErrShaderSize)
}

func TestVertexLayout(t *testing.T) {
	assert.Equal(t, 24, VertexSize)
	assert.Len(t, VertexBytes(Triangle()), 72)
	assert.Nil(t, VertexBytes(nil))

	bindings, attrs := VertexInput()
	require.Len(t, bindings, 1)
	assert.Equal(t, uint32(24), bindings[0].Stride)
	assert.Equal(t, vk.VertexInputRateVertex, bindings[0].InputRate)
	require.Len(t, attrs, 2)
	for i, at := range attrs {
		assert.Equal(t, uint32(i), at.Location)
		assert.Equal(t, uint32(0), at.Binding)
		assert.Equal(t, vk.FormatR32g32b32Sfloat, at.Format)
		assert.Equal(t, uint32(12*i), at.Offset)
	}
}

func TestSelectSurfaceFormat(t *testing.T) {
	unorm := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	f, err := SelectSurfaceFormat([]vk.SurfaceFormat{unorm, SurfaceFormat})
	require.NoError(t, err)
	assert.Equal(t, SurfaceFormat, f)

	_, err = SelectSurfaceFormat([]vk.SurfaceFormat{unorm})
	assert.ErrorIs(t, err, ErrSurfaceFormat)
	_, err = SelectSurfaceFormat(nil)
	assert.ErrorIs(t, err, ErrSurfaceFormat)
}
