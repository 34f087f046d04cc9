// Copyright (c) 2023, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveClosure(t *testing.T) {
	rf, err := DefaultFeatures().Resolve(TimelineSemaphoreFeature)
	require.NoError(t, err)
	assert.Equal(t, []string{PhysicalDevicePropsFeature, TimelineSemaphoreFeature}, rf.Names)
	assert.True(t, rf.Has(PhysicalDevicePropsFeature))
	assert.False(t, rf.Has(SemaphoreFeature), "timelines need no external semaphores")
	assert.Equal(t, []string{"VK_KHR_get_physical_device_properties2"}, rf.InstanceExts)
	assert.Equal(t, []string{"VK_KHR_timeline_semaphore"}, rf.DeviceExts)
	assert.Empty(t, rf.Layers)

	rf, err = DefaultFeatures().Resolve(SemaphoreFeature)
	require.NoError(t, err)
	assert.Equal(t, []string{"VK_KHR_get_physical_device_properties2", "VK_KHR_external_semaphore_capabilities"}, rf.InstanceExts)
	assert.Equal(t, "VK_KHR_external_semaphore", rf.DeviceExts[0])
}

func TestMissingExtension(t *testing.T) {
	avail := []string{"VK_KHR_swapchain", "VK_KHR_timeline_semaphore"}
	_, ok := missing([]string{"VK_KHR_timeline_semaphore", "VK_KHR_swapchain"}, avail)
	assert.False(t, ok)
	_, ok = missing(nil, avail)
	assert.False(t, ok)

	ext, ok := missing([]string{"VK_KHR_swapchain", "VK_KHR_external_fence_fd", "VK_KHR_external_fence"}, avail)
	assert.True(t, ok)
	assert.Equal(t, "VK_KHR_external_fence_fd", ext, "the first missing extension is named")
}

func TestResolveDedup(t *testing.T) {
	rf, err := DefaultFeatures().Resolve(SemaphoreFeature, FenceFeature, SemaphoreFeature, GLFWFeature, HeadlessSurfaceFeature)
	require.NoError(t, err)
	seen := map[string]bool{}
	for _, ext := range rf.InstanceExts {
		assert.False(t, seen[ext], "duplicate %s", ext)
		seen[ext] = true
	}
	assert.Equal(t, "VK_KHR_get_physical_device_properties2", rf.InstanceExts[0])
	assert.Contains(t, rf.InstanceExts, "VK_KHR_surface")
	assert.Contains(t, rf.InstanceExts, "VK_EXT_headless_surface")
	assert.Len(t, rf.Names, 6)
}

func TestResolveValidation(t *testing.T) {
	rf, err := DefaultFeatures().Resolve(SwapchainFeature, ValidationFeature)
	require.NoError(t, err)
	assert.Equal(t, []string{"VK_KHR_swapchain"}, rf.DeviceExts)
	assert.Equal(t, []string{"VK_LAYER_KHRONOS_validation"}, rf.Layers)
}

func TestResolveErrors(t *testing.T) {
	ft := DefaultFeatures()
	_, err := ft.Resolve("raytracing")
	assert.ErrorIs(t, err, ErrFeature)

	ft.Add("broken", Feature{Deps: []string{"missing"}})
	_, err = ft.Resolve(SwapchainFeature, "broken")
	assert.ErrorIs(t, err, ErrFeature)
	assert.Contains(t, err.Error(), `"missing"`)

	ft.Add("a", Feature{Deps: []string{"b"}})
	ft.Add("b", Feature{Deps: []string{"a"}})
	_, err = ft.Resolve("a")
	assert.ErrorIs(t, err, ErrFeature)
	assert.Contains(t, err.Error(), "a -> b -> a")
}

func TestResolveEmpty(t *testing.T) {
	rf, err := DefaultFeatures().Resolve()
	require.NoError(t, err)
	assert.Empty(t, rf.Names)
	assert.Empty(t, rf.InstanceExts)
}
