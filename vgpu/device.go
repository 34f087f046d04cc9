// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// This is initially adapted from https://github.com/vulkan-go/asche
// Copyright © 2017 Maxim Kupriianov <max@kc.vc>, under the MIT License

package vgpu

import (
	"fmt"
	"sort"

	"cogentcore.org/core/base/errors"
	vk "github.com/goki/vulkan"
)

// Queue describes one device queue: its family, its index within the
// family, and the execution handle.
type Queue struct {
	Family uint32
	Index  uint32
	Queue  vk.Queue
}

// Device is the selected physical device together with its logical
// device and queues. It must be destroyed after everything made from it.
type Device struct {

	// name of the physical device, for logging
	Name string

	// physical device handle
	GPU vk.PhysicalDevice

	// logical device handle
	Device vk.Device

	// queue supporting graphics, compute and transfer -- always present
	GeneralQueue *Queue

	// transfer-only queue, if the device has one
	TransferQueue *Queue

	// entry points for everything made from this device
	Driver Driver
}

// Destroy waits for the device to go idle and destroys it.
// A failed wait is logged.
func (dv *Device) Destroy() {
	if dv.Driver == nil {
		return
	}
	errors.Log(dv.Driver.DeviceWaitIdle())
	dv.Driver.DestroyDevice()
	dv.Driver = nil
	dv.Device = nil
}

// WaitIdle blocks until all queues of the device are idle.
func (dv *Device) WaitIdle() error {
	return dv.Driver.DeviceWaitIdle()
}

// BadDeviceScore marks a device that cannot be used.
const BadDeviceScore = -1

// PhysicalInfo holds what device selection needs to know about a
// physical device.
type PhysicalInfo struct {
	GPU            vk.PhysicalDevice
	Name           string
	Type           vk.PhysicalDeviceType
	GeometryShader bool
	Families       []vk.QueueFlags
}

// QueueFamilies returns the general and dedicated transfer
// queue family indexes of the device, -1 where there is none.
func (pi *PhysicalInfo) QueueFamilies() (general, transfer int) {
	return FindQueueFamilies(pi.Families)
}

const generalQueueFlags = vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueComputeBit | vk.QueueTransferBit)

// FindQueueFamilies categorizes queue families by their flags. The general
// family supports graphics, compute and transfer; the transfer family
// supports transfer and nothing else. The last matching family wins.
// Missing categories are -1.
func FindQueueFamilies(families []vk.QueueFlags) (general, transfer int) {
	general, transfer = -1, -1
	for i, fl := range families {
		switch {
		case fl&generalQueueFlags == generalQueueFlags:
			general = i
		case fl == vk.QueueFlags(vk.QueueTransferBit):
			transfer = i
		}
	}
	return
}

// ScoreDevice rates a device for rendering; greater is better.
// Devices without a geometry shader or a general queue
// get [BadDeviceScore].
func ScoreDevice(pi *PhysicalInfo) int {
	general, transfer := pi.QueueFamilies()
	if !pi.GeometryShader || general < 0 {
		return BadDeviceScore
	}
	score := 0
	if pi.Type == vk.PhysicalDeviceTypeDiscreteGpu {
		score += 1000
	}
	if transfer >= 0 {
		score += 300
	}
	return score
}

// SelectDevice returns the index of the best scoring device,
// or [ErrNoDevice] if none is usable.
func SelectDevice(infos []PhysicalInfo) (int, error) {
	if len(infos) == 0 {
		return -1, ErrNoDevice
	}
	order := make([]int, len(infos))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return ScoreDevice(&infos[order[a]]) > ScoreDevice(&infos[order[b]])
	})
	best := order[0]
	if ScoreDevice(&infos[best]) == BadDeviceScore {
		return -1, ErrNoDevice
	}
	return best, nil
}

func (dv *Device) String() string {
	s := fmt.Sprintf("%s (general queue family %d", dv.Name, dv.GeneralQueue.Family)
	if dv.TransferQueue != nil {
		s += fmt.Sprintf(", transfer queue family %d", dv.TransferQueue.Family)
	}
	return s + ")"
}
