// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build darwin

package vgpu

import vk "github.com/goki/vulkan"

// MoltenVK is a portability implementation: it is only enumerated when
// asked for, and its devices need the portability subset extension.

func platformInstanceExts() []string {
	return []string{vk.KhrGetPhysicalDeviceProperties2ExtensionName, vk.KhrPortabilityEnumerationExtensionName}
}

func platformDeviceExts() []string {
	return []string{"VK_KHR_portability_subset"}
}
