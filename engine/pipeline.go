// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// This is initially adapted from https://github.com/vulkan-go/asche
// Copyright © 2017 Maxim Kupriianov <max@kc.vc>, under the MIT License

package engine

import (
	"fmt"

	"cogentcore.org/vktri/vgpu"
	vk "github.com/goki/vulkan"
)

// Pipeline is the fixed graphics pipeline drawing [Vertex] triangles.
// Viewport and scissor are dynamic, so it survives swapchain resizes.
type Pipeline struct {
	Device vk.Device

	// empty layout: no descriptors and no push constants
	Layout vk.PipelineLayout

	Cache vk.PipelineCache

	Pipeline vk.Pipeline
}

// NewPipeline loads the vertex and fragment shaders from shaderDir
// and builds the pipeline for subpass 0 of pass. The shader modules
// are freed once the pipeline is built.
func NewPipeline(dev vk.Device, pass vk.RenderPass, shaderDir string) (*Pipeline, error) {
	pl := &Pipeline{Device: dev}
	vert, err := NewShaderModule(dev, shaderDir, VertexShaderFile)
	if err != nil {
		return nil, err
	}
	defer vk.DestroyShaderModule(dev, vert, nil)
	frag, err := NewShaderModule(dev, shaderDir, FragmentShaderFile)
	if err != nil {
		return nil, err
	}
	defer vk.DestroyShaderModule(dev, frag, nil)

	ret := vk.CreatePipelineLayout(dev, &vk.PipelineLayoutCreateInfo{
		SType: vk.StructureTypePipelineLayoutCreateInfo,
	}, nil, &pl.Layout)
	if err := vgpu.NewOpError("CreatePipelineLayout", ret); err != nil {
		return nil, err
	}
	ret = vk.CreatePipelineCache(dev, &vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}, nil, &pl.Cache)
	if err := vgpu.NewOpError("CreatePipelineCache", ret); err != nil {
		pl.Destroy()
		return nil, err
	}

	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: vert,
			PName:  "main\x00",
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: frag,
			PName:  "main\x00",
		},
	}
	bindings, attrs := VertexInput()
	dynamic := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	info := vk.GraphicsPipelineCreateInfo{
		SType:      vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount: uint32(len(stages)),
		PStages:    stages,
		PVertexInputState: &vk.PipelineVertexInputStateCreateInfo{
			SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
			VertexBindingDescriptionCount:   uint32(len(bindings)),
			PVertexBindingDescriptions:      bindings,
			VertexAttributeDescriptionCount: uint32(len(attrs)),
			PVertexAttributeDescriptions:    attrs,
		},
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology:               vk.PrimitiveTopologyTriangleList,
			PrimitiveRestartEnable: vk.False,
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode: vk.PolygonModeFill,
			CullMode:    vk.CullModeFlags(vk.CullModeNone),
			FrontFace:   vk.FrontFaceClockwise,
			LineWidth:   1,
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
			MinSampleShading:     1,
		},
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			LogicOpEnable:   vk.False,
			LogicOp:         vk.LogicOpCopy,
			AttachmentCount: 1,
			PAttachments: []vk.PipelineColorBlendAttachmentState{{
				BlendEnable: vk.False,
				ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
					vk.ColorComponentBBit | vk.ColorComponentABit),
			}},
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: uint32(len(dynamic)),
			PDynamicStates:    dynamic,
		},
		Layout:     pl.Layout,
		RenderPass: pass,
		Subpass:    0,
	}
	pipelines := make([]vk.Pipeline, 1)
	ret = vk.CreateGraphicsPipelines(dev, pl.Cache, 1, []vk.GraphicsPipelineCreateInfo{info}, nil, pipelines)
	if err := vgpu.NewOpError("CreateGraphicsPipelines", ret); err != nil {
		pl.Destroy()
		return nil, fmt.Errorf("engine: building pipeline: %w", err)
	}
	pl.Pipeline = pipelines[0]
	return pl, nil
}

// Destroy destroys the pipeline, its cache and its layout.
func (pl *Pipeline) Destroy() {
	if pl.Pipeline != vk.NullPipeline {
		vk.DestroyPipeline(pl.Device, pl.Pipeline, nil)
		pl.Pipeline = vk.NullPipeline
	}
	if pl.Cache != nil {
		vk.DestroyPipelineCache(pl.Device, pl.Cache, nil)
		pl.Cache = nil
	}
	if pl.Layout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(pl.Device, pl.Layout, nil)
		pl.Layout = vk.NullPipelineLayout
	}
}
