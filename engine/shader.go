// Copyright (c) 2023, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

//go:generate glslc -fshader-stage=vertex -o ../shaders/vertex_shader.spv ../shaders/triangle.vert
//go:generate glslc -fshader-stage=fragment -o ../shaders/fragment_shader.spv ../shaders/triangle.frag

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"cogentcore.org/vktri/vgpu"
	vk "github.com/goki/vulkan"
)

// File names of the compiled shaders within the shader directory.
const (
	VertexShaderFile   = "vertex_shader.spv"
	FragmentShaderFile = "fragment_shader.spv"
)

// ErrShaderSize is returned for SPIR-V code that is empty or
// not made of whole 32-bit words.
var ErrShaderSize = errors.New("engine: shader code size is not a positive multiple of 4")

// LoadShader reads a compiled SPIR-V shader file.
func LoadShader(path string) ([]byte, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("engine: failed to open shader file: %w", err)
	}
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("%w: %s has %d bytes", ErrShaderSize, path, len(code))
	}
	return code, nil
}

// ShaderWords returns the code as the 32-bit words the driver takes.
func ShaderWords(code []byte) ([]uint32, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrShaderSize, len(code))
	}
	words := make([]uint32, len(code)/4)
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(code)), code)
	return words, nil
}

// NewShaderModule loads the named shader from dir into a module.
// The caller destroys it once the pipeline is built.
func NewShaderModule(dev vk.Device, dir, name string) (vk.ShaderModule, error) {
	var module vk.ShaderModule
	code, err := LoadShader(filepath.Join(dir, name))
	if err != nil {
		return module, err
	}
	words, err := ShaderWords(code)
	if err != nil {
		return module, err
	}
	ret := vk.CreateShaderModule(dev, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    words,
	}, nil, &module)
	if err := vgpu.NewOpError("CreateShaderModule", ret); err != nil {
		return module, fmt.Errorf("engine: shader %s: %w", name, err)
	}
	return module, nil
}
