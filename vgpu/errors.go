// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"
)

var (
	// ErrTimeout is returned by waits whose timeout elapsed before the
	// awaited signal. It is not fatal: the caller decides whether to retry.
	ErrTimeout = errors.New("vgpu: wait timed out")

	// ErrNotReady is returned when a fence has not signaled yet.
	// It is not fatal.
	ErrNotReady = errors.New("vgpu: not ready")

	// ErrNoDevice means no physical device qualified for rendering.
	ErrNoDevice = errors.New("vgpu: failed to find a suitable GPU for Vulkan rendering")

	// ErrNoMemoryType means no memory type satisfied a buffer's requirements.
	ErrNoMemoryType = errors.New("vgpu: failed to find suitable memory type for buffer")

	// ErrNotStaging is returned by host copies on a buffer that is not
	// of the Staging kind.
	ErrNotStaging = errors.New("vgpu: host copy requires a staging buffer")

	// ErrUsage is returned when an operation violates a buffer's usage
	// flags or size preconditions.
	ErrUsage = errors.New("vgpu: invalid buffer usage")

	// ErrFeature is returned when a feature or one of its
	// dependencies is unknown.
	ErrFeature = errors.New("vgpu: unresolved feature")

	// ErrNotRendered is returned when a frame is presented without a
	// render submission after its acquire.
	ErrNotRendered = errors.New("vgpu: frame presented before any render submission")

	// ErrOutOfDate means the swapchain no longer matches its surface and
	// must be recreated.
	ErrOutOfDate = errors.New("vgpu: swapchain out of date")

	// ErrReleased is returned when a lease is used after Release.
	ErrReleased = errors.New("vgpu: command buffer lease already released")
)

// ResultError is an unexpected Vulkan status. It is always fatal.
type ResultError struct {
	Result vk.Result
	Op     string
}

func (e *ResultError) Error() string {
	msg := vk.Error(e.Result).Error()
	if e.Op == "" {
		return fmt.Sprintf("vulkan error: %s (%d)", msg, e.Result)
	}
	return fmt.Sprintf("vulkan error: %s: %s (%d)", e.Op, msg, e.Result)
}

// Is makes out-of-date and suboptimal results match [ErrOutOfDate].
func (e *ResultError) Is(target error) bool {
	return target == ErrOutOfDate && (e.Result == vk.ErrorOutOfDate || e.Result == vk.Suboptimal)
}

// IsError returns true for any result other than success.
func IsError(ret vk.Result) bool {
	return ret != vk.Success
}

// NewError converts a Vulkan result into an error: nil for success,
// [ErrTimeout] and [ErrNotReady] for the two benign statuses, and a
// [*ResultError] for everything else.
func NewError(ret vk.Result) error {
	return NewOpError("", ret)
}

// NewOpError is [NewError] with the name of the failing operation.
func NewOpError(op string, ret vk.Result) error {
	switch ret {
	case vk.Success:
		return nil
	case vk.Timeout:
		return ErrTimeout
	case vk.NotReady:
		return ErrNotReady
	}
	return &ResultError{Result: ret, Op: op}
}

// IsFatal reports whether err is an unrecoverable condition.
// Timeouts and not-ready statuses are expected outcomes of waits.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrTimeout) && !errors.Is(err, ErrNotReady)
}
