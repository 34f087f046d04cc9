// Copyright (c) 2023, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	"fmt"
	"runtime"
	"slices"
	"strings"
)

// Feature is a capability that needs instance extensions, device
// extensions or validation layers, possibly depending on other features.
type Feature struct {
	InstanceExts []string
	DeviceExts   []string
	Layers       []string
	Deps         []string
}

// FeatureTable maps feature names to their requirements.
type FeatureTable map[string]Feature

// Names of the built-in features.
const (
	SurfaceFeature             = "surface"
	GLFWFeature                = "glfw"
	HeadlessSurfaceFeature     = "headless-surface"
	PhysicalDevicePropsFeature = "physical-device-properties"
	SemaphoreFeature           = "semaphore"
	TimelineSemaphoreFeature   = "timeline-semaphore"
	FenceFeature               = "fence"
	SwapchainFeature           = "swapchain"
	ValidationFeature          = "validation"
)

// platformSuffix is the suffix of the platform specific external
// semaphore and fence extensions.
func platformSuffix() string {
	if runtime.GOOS == "windows" {
		return "_win32"
	}
	return "_fd"
}

// DefaultFeatures returns the table of built-in features.
func DefaultFeatures() FeatureTable {
	ft := FeatureTable{
		SurfaceFeature: {
			InstanceExts: []string{"VK_KHR_surface"},
		},
		GLFWFeature: {
			Deps: []string{SurfaceFeature},
		},
		HeadlessSurfaceFeature: {
			InstanceExts: []string{"VK_EXT_headless_surface"},
			Deps:         []string{SurfaceFeature},
		},
		PhysicalDevicePropsFeature: {
			InstanceExts: []string{"VK_KHR_get_physical_device_properties2"},
		},
		// semaphores and fences shareable with other APIs and processes
		SemaphoreFeature: {
			InstanceExts: []string{"VK_KHR_external_semaphore_capabilities"},
			DeviceExts:   []string{"VK_KHR_external_semaphore", "VK_KHR_external_semaphore" + platformSuffix()},
			Deps:         []string{PhysicalDevicePropsFeature},
		},
		TimelineSemaphoreFeature: {
			DeviceExts: []string{"VK_KHR_timeline_semaphore"},
			Deps:       []string{PhysicalDevicePropsFeature},
		},
		FenceFeature: {
			InstanceExts: []string{"VK_KHR_external_fence_capabilities"},
			DeviceExts:   []string{"VK_KHR_external_fence", "VK_KHR_external_fence" + platformSuffix()},
			Deps:         []string{PhysicalDevicePropsFeature},
		},
		SwapchainFeature: {
			DeviceExts: []string{"VK_KHR_swapchain"},
		},
		ValidationFeature: {
			InstanceExts: []string{"VK_EXT_debug_utils"},
			Layers:       []string{"VK_LAYER_KHRONOS_validation"},
		},
	}
	if runtime.GOOS == "windows" {
		sf := ft[SurfaceFeature]
		sf.InstanceExts = append(sf.InstanceExts, "VK_KHR_win32_surface")
		ft[SurfaceFeature] = sf
	}
	return ft
}

// Add registers or replaces a feature.
func (ft FeatureTable) Add(name string, f Feature) {
	ft[name] = f
}

// ResolvedFeatures is the flattened requirement set of a list of features.
type ResolvedFeatures struct {

	// all feature names, requested and implied, dependencies first
	Names []string

	InstanceExts []string
	DeviceExts   []string
	Layers       []string
}

// Has returns true if the named feature is part of the resolved set.
func (rf *ResolvedFeatures) Has(name string) bool {
	return slices.Contains(rf.Names, name)
}

// Resolve computes the transitive closure of the named features and
// concatenates their requirements without duplicates, in dependency
// order. It fails with [ErrFeature] on an unknown feature or dependency,
// and on a dependency cycle.
func (ft FeatureTable) Resolve(names ...string) (*ResolvedFeatures, error) {
	rf := &ResolvedFeatures{}
	const (
		visiting = 1
		done     = 2
	)
	state := map[string]int{}
	add := func(list *[]string, items []string) {
		for _, it := range items {
			if !slices.Contains(*list, it) {
				*list = append(*list, it)
			}
		}
	}
	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: dependency cycle %s", ErrFeature, strings.Join(append(path, name), " -> "))
		}
		f, ok := ft[name]
		if !ok {
			if len(path) == 0 {
				return fmt.Errorf("%w: unknown feature %q", ErrFeature, name)
			}
			return fmt.Errorf("%w: feature %q depends on unknown feature %q", ErrFeature, path[len(path)-1], name)
		}
		state[name] = visiting
		for _, dep := range f.Deps {
			if err := visit(dep, append(path, name)); err != nil {
				return err
			}
		}
		state[name] = done
		rf.Names = append(rf.Names, name)
		add(&rf.InstanceExts, f.InstanceExts)
		add(&rf.DeviceExts, f.DeviceExts)
		add(&rf.Layers, f.Layers)
		return nil
	}
	for _, name := range names {
		if err := visit(name, nil); err != nil {
			return nil, err
		}
	}
	return rf, nil
}

// missing returns the first of want that is not in avail.
func missing(want, avail []string) (string, bool) {
	for _, w := range want {
		if !slices.Contains(avail, w) {
			return w, true
		}
	}
	return "", false
}
