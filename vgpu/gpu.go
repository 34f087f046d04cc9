// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// This is initially adapted from https://github.com/vulkan-go/asche
// Copyright © 2017 Maxim Kupriianov <max@kc.vc>, under the MIT License

package vgpu

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// GPU is the Vulkan instance, with the features it was made for.
// The package level loader must be initialized first, e.g., via glfw.
type GPU struct {
	Instance vk.Instance

	// name of the application, given to the driver
	AppName string

	// features enabled on the instance and on devices made from it
	Features *ResolvedFeatures

	// instance extensions actually enabled
	InstanceExts []string

	// validation layers actually enabled
	Layers []string
}

// NewGPU resolves the named features in the table and makes an instance
// with their extensions and layers, plus the extra instance extensions
// the window system requires.
func NewGPU(appName string, table FeatureTable, windowExts []string, features ...string) (*GPU, error) {
	rf, err := table.Resolve(features...)
	if err != nil {
		return nil, err
	}
	slog.Info("vgpu: resolved features", "features", rf.Names)
	gp := &GPU{AppName: appName, Features: rf}
	gp.InstanceExts = slices.Clone(rf.InstanceExts)
	for _, ext := range slices.Concat(windowExts, platformInstanceExts()) {
		ext = strings.TrimSuffix(ext, "\x00")
		if !slices.Contains(gp.InstanceExts, ext) {
			gp.InstanceExts = append(gp.InstanceExts, ext)
		}
	}
	gp.Layers = rf.Layers

	avail := InstanceExtensions()
	slog.Debug("vgpu: available instance extensions", "extensions", avail)
	if ext, ok := missing(gp.InstanceExts, avail); ok {
		return nil, fmt.Errorf("%w: instance extension %s is not available", ErrFeature, ext)
	}
	if len(gp.Layers) > 0 {
		availLayers := InstanceLayers()
		slog.Debug("vgpu: available layers", "layers", availLayers)
		if ly, ok := missing(gp.Layers, availLayers); ok {
			return nil, fmt.Errorf("%w: layer %s is not available", ErrFeature, ly)
		}
	}
	slog.Info("vgpu: enabling", "instanceExtensions", gp.InstanceExts, "layers", gp.Layers)

	var flags vk.InstanceCreateFlags
	if slices.Contains(gp.InstanceExts, "VK_KHR_portability_enumeration") {
		flags |= vk.InstanceCreateFlags(vk.InstanceCreateEnumeratePortabilityBit)
	}
	var instance vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		Flags: flags,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			ApiVersion:         vk.MakeVersion(1, 3, 0),
			ApplicationVersion: vk.MakeVersion(1, 0, 0),
			PApplicationName:   safeString(appName),
			PEngineName:        "vktri\x00",
		},
		EnabledExtensionCount:   uint32(len(gp.InstanceExts)),
		PpEnabledExtensionNames: safeStrings(gp.InstanceExts),
		EnabledLayerCount:       uint32(len(gp.Layers)),
		PpEnabledLayerNames:     safeStrings(gp.Layers),
	}, nil, &instance)
	if err := NewOpError("CreateInstance", ret); err != nil {
		return nil, err
	}
	gp.Instance = instance
	vk.InitInstance(instance)
	return gp, nil
}

// InstanceExtensions returns the names of the instance extensions
// the loader offers.
func InstanceExtensions() []string {
	var n uint32
	vk.EnumerateInstanceExtensionProperties("", &n, nil)
	props := make([]vk.ExtensionProperties, n)
	vk.EnumerateInstanceExtensionProperties("", &n, props)
	names := make([]string, n)
	for i := range props {
		props[i].Deref()
		names[i] = vk.ToString(props[i].ExtensionName[:])
	}
	return names
}

// InstanceLayers returns the names of the available layers.
func InstanceLayers() []string {
	var n uint32
	vk.EnumerateInstanceLayerProperties(&n, nil)
	props := make([]vk.LayerProperties, n)
	vk.EnumerateInstanceLayerProperties(&n, props)
	names := make([]string, n)
	for i := range props {
		props[i].Deref()
		names[i] = vk.ToString(props[i].LayerName[:])
	}
	return names
}

// DeviceExtensions returns the names of the device extensions the
// physical device offers.
func DeviceExtensions(gpu vk.PhysicalDevice) ([]string, error) {
	var n uint32
	if err := NewOpError("EnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(gpu, "", &n, nil)); err != nil {
		return nil, err
	}
	props := make([]vk.ExtensionProperties, n)
	if err := NewOpError("EnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(gpu, "", &n, props)); err != nil {
		return nil, err
	}
	names := make([]string, n)
	for i := range props[:n] {
		props[i].Deref()
		names[i] = vk.ToString(props[i].ExtensionName[:])
	}
	return names[:n], nil
}

// PhysicalDevices returns what device selection needs to know
// about every physical device.
func (gp *GPU) PhysicalDevices() ([]PhysicalInfo, error) {
	var n uint32
	if err := NewOpError("EnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(gp.Instance, &n, nil)); err != nil {
		return nil, err
	}
	gpus := make([]vk.PhysicalDevice, n)
	if err := NewOpError("EnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(gp.Instance, &n, gpus)); err != nil {
		return nil, err
	}
	infos := make([]PhysicalInfo, n)
	for i, pd := range gpus {
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &props)
		props.Deref()
		var feats vk.PhysicalDeviceFeatures
		vk.GetPhysicalDeviceFeatures(pd, &feats)
		feats.Deref()

		var nq uint32
		vk.GetPhysicalDeviceQueueFamilyProperties(pd, &nq, nil)
		qfs := make([]vk.QueueFamilyProperties, nq)
		vk.GetPhysicalDeviceQueueFamilyProperties(pd, &nq, qfs)
		families := make([]vk.QueueFlags, nq)
		for j := range qfs {
			qfs[j].Deref()
			families[j] = qfs[j].QueueFlags
		}
		infos[i] = PhysicalInfo{
			GPU:            pd,
			Name:           vk.ToString(props.DeviceName[:]),
			Type:           props.DeviceType,
			GeometryShader: feats.GeometryShader.B(),
			Families:       families,
		}
	}
	return infos, nil
}

// SelectDevice picks the best physical device and makes a logical
// device on it with one general queue and, if there is one, one
// dedicated transfer queue.
func (gp *GPU) SelectDevice() (*Device, error) {
	infos, err := gp.PhysicalDevices()
	if err != nil {
		return nil, err
	}
	for i := range infos {
		slog.Debug("vgpu: physical device", "name", infos[i].Name, "score", ScoreDevice(&infos[i]))
	}
	best, err := SelectDevice(infos)
	if err != nil {
		return nil, err
	}
	return gp.NewDevice(&infos[best])
}

// NewDevice makes the logical device for the physical device,
// enabling timeline semaphores, synchronization2 and the resolved
// device extensions.
func (gp *GPU) NewDevice(pi *PhysicalInfo) (*Device, error) {
	general, transfer := pi.QueueFamilies()
	if general < 0 {
		return nil, fmt.Errorf("%w: %s has no general queue", ErrNoDevice, pi.Name)
	}
	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: uint32(general),
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}
	if transfer >= 0 {
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: uint32(transfer),
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}
	exts := append(slices.Clone(gp.Features.DeviceExts), platformDeviceExts()...)
	avail, err := DeviceExtensions(pi.GPU)
	if err != nil {
		return nil, err
	}
	slog.Debug("vgpu: available device extensions", "device", pi.Name, "extensions", avail)
	if ext, ok := missing(exts, avail); ok {
		return nil, fmt.Errorf("%w: device extension %s is not available on %s", ErrFeature, ext, pi.Name)
	}

	vk13 := &vk.PhysicalDeviceVulkan13Features{
		SType:            vk.StructureTypePhysicalDeviceVulkan13Features,
		Synchronization2: vk.True,
	}
	var device vk.Device
	ret := vk.CreateDevice(pi.GPU, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(exts)),
		PpEnabledExtensionNames: safeStrings(exts),
		EnabledLayerCount:       uint32(len(gp.Layers)),
		PpEnabledLayerNames:     safeStrings(gp.Layers),
		PNext: unsafe.Pointer(&vk.PhysicalDeviceVulkan12Features{
			SType:             vk.StructureTypePhysicalDeviceVulkan12Features,
			PNext:             unsafe.Pointer(vk13),
			TimelineSemaphore: vk.True,
		}),
	}, nil, &device)
	if err := NewOpError("CreateDevice", ret); err != nil {
		return nil, err
	}
	dev := &Device{
		Name:   pi.Name,
		GPU:    pi.GPU,
		Device: device,
		Driver: NewVkDriver(pi.GPU, device),
	}
	dev.GeneralQueue = dev.queue(uint32(general))
	if transfer >= 0 {
		dev.TransferQueue = dev.queue(uint32(transfer))
	}
	slog.Info("vgpu: selected device", "device", dev.String(), "extensions", exts)
	return dev, nil
}

func (dv *Device) queue(family uint32) *Queue {
	q := &Queue{Family: family}
	vk.GetDeviceQueue(dv.Device, family, 0, &q.Queue)
	return q
}

// SurfaceSupported reports whether the general queue of the device
// can present to the surface.
func (dv *Device) SurfaceSupported(surface vk.Surface) bool {
	var supported vk.Bool32
	vk.GetPhysicalDeviceSurfaceSupport(dv.GPU, dv.GeneralQueue.Family, surface, &supported)
	return supported.B()
}

// Destroy destroys the instance. Everything made from it must be
// destroyed first.
func (gp *GPU) Destroy() {
	if gp.Instance == nil {
		return
	}
	vk.DestroyInstance(gp.Instance, nil)
	gp.Instance = nil
}

// safeString returns s terminated by a NUL, as the API expects.
func safeString(s string) string {
	if strings.HasSuffix(s, "\x00") {
		return s
	}
	return s + "\x00"
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = safeString(s)
	}
	return out
}
