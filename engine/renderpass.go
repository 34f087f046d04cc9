// Copyright (c) 2023, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"errors"
	"fmt"

	"cogentcore.org/vktri/vgpu"
	vk "github.com/goki/vulkan"
)

// SurfaceFormat is the only surface format the engine renders to.
var SurfaceFormat = vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}

// ErrSurfaceFormat is returned when the surface does not offer
// [SurfaceFormat].
var ErrSurfaceFormat = errors.New("engine: failed to find suitable surface format")

// SelectSurfaceFormat returns [SurfaceFormat] if it is among formats.
func SelectSurfaceFormat(formats []vk.SurfaceFormat) (vk.SurfaceFormat, error) {
	for _, f := range formats {
		if f.Format == SurfaceFormat.Format && f.ColorSpace == SurfaceFormat.ColorSpace {
			return f, nil
		}
	}
	return vk.SurfaceFormat{}, fmt.Errorf("%w: %d formats offered", ErrSurfaceFormat, len(formats))
}

// SurfaceFormats returns the formats the device can present to the surface in.
func SurfaceFormats(dev *vgpu.Device, surface vk.Surface) ([]vk.SurfaceFormat, error) {
	var n uint32
	if err := vgpu.NewOpError("GetPhysicalDeviceSurfaceFormats", vk.GetPhysicalDeviceSurfaceFormats(dev.GPU, surface, &n, nil)); err != nil {
		return nil, err
	}
	formats := make([]vk.SurfaceFormat, n)
	if err := vgpu.NewOpError("GetPhysicalDeviceSurfaceFormats", vk.GetPhysicalDeviceSurfaceFormats(dev.GPU, surface, &n, formats)); err != nil {
		return nil, err
	}
	for i := range formats {
		formats[i].Deref()
	}
	return formats[:n], nil
}

// NewRenderPass makes the single-subpass render pass: one color
// attachment in the given format, cleared on load and left ready
// for presentation.
func NewRenderPass(dev vk.Device, format vk.Format) (vk.RenderPass, error) {
	color := vk.AttachmentDescription{
		Format:         format,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments: []vk.AttachmentReference{{
			Attachment: 0,
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		}},
	}
	// the image layout transition waits for the acquire
	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}
	var pass vk.RenderPass
	ret := vk.CreateRenderPass(dev, &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.AttachmentDescription{color},
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}, nil, &pass)
	if err := vgpu.NewOpError("CreateRenderPass", ret); err != nil {
		return vk.NullRenderPass, err
	}
	return pass, nil
}
