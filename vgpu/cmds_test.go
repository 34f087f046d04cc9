// Copyright (c) 2023, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu_test

import (
	"testing"
	"time"

	"cogentcore.org/vktri/vgpu"
	"cogentcore.org/vktri/vgpu/vgputest"
	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noop = vgpu.RecorderFunc(func(cmd *vgpu.Cmd) {})

func newPool(t *testing.T, count int, opts ...vgpu.CmdPoolOption) (*vgputest.Driver, *vgpu.Device, *vgpu.CmdPool) {
	t.Helper()
	dr := vgputest.NewDriver()
	dev := vgputest.NewDevice(dr)
	pool, err := vgpu.NewCmdPool(dev, dev.GeneralQueue, count, opts...)
	require.NoError(t, err)
	return dr, dev, pool
}

func TestPoolGrowth(t *testing.T) {
	dr, _, pool := newPool(t, 4)
	defer pool.Destroy()
	assert.Equal(t, 4, pool.Capacity())
	assert.Equal(t, 1, dr.Calls("AllocateCommandBuffers"))

	seen := map[vk.CommandBuffer]bool{}
	var leases []*vgpu.Lease
	for i := 0; i < 9; i++ {
		ls, err := pool.CheckOut()
		require.NoError(t, err)
		assert.False(t, seen[ls.Buffer()], "lease %d shares a buffer", i)
		seen[ls.Buffer()] = true
		leases = append(leases, ls)
	}
	// 4 -> 6 -> 9, one batch allocation per growth
	assert.Equal(t, 9, pool.Capacity())
	assert.Equal(t, 3, dr.Calls("AllocateCommandBuffers"))
	assert.Equal(t, 0, pool.Free())

	for _, ls := range leases {
		ls.Release()
	}
	assert.Equal(t, 9, pool.Free())
}

func TestPoolGrowthFromOne(t *testing.T) {
	_, _, pool := newPool(t, 1)
	defer pool.Destroy()
	a, err := pool.CheckOut()
	require.NoError(t, err)
	b, err := pool.CheckOut()
	require.NoError(t, err)
	assert.True(t, a.Buffer() != b.Buffer(), "live leases share a buffer")
	assert.Equal(t, 2, pool.Capacity())
}

func TestPoolReuse(t *testing.T) {
	_, _, pool := newPool(t, 2)
	defer pool.Destroy()
	a, err := pool.CheckOut()
	require.NoError(t, err)
	buf := a.Buffer()
	a.Release()
	a.Release()
	assert.Equal(t, 2, pool.Free(), "second release has no effect")

	b, err := pool.CheckOut()
	require.NoError(t, err)
	assert.True(t, buf == b.Buffer(), "released buffer is checked out first")
	assert.ErrorIs(t, a.Record(noop), vgpu.ErrReleased)
	assert.ErrorIs(t, a.SubmitTo(pool.Queue, vgpu.Submission{}), vgpu.ErrReleased)
}

func TestWaitNeverSubmitted(t *testing.T) {
	dr, _, pool := newPool(t, 1)
	defer pool.Destroy()
	ls, err := pool.CheckOut()
	require.NoError(t, err)
	require.NoError(t, ls.Record(noop))

	start := time.Now()
	assert.NoError(t, ls.Wait(vgpu.Forever))
	assert.NoError(t, ls.WaitAndReset(vgpu.Forever))
	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, dr.Calls("WaitForFences"))
	assert.Zero(t, dr.Calls("ResetFences"))
}

func TestNoResetWhilePending(t *testing.T) {
	dr, dev, pool := newPool(t, 1)
	defer pool.Destroy()
	dr.HoldFences = true

	ls, err := pool.CheckOut()
	require.NoError(t, err)
	require.NoError(t, ls.RecordOnce(noop))
	require.NoError(t, ls.SubmitTo(dev.GeneralQueue, vgpu.Submission{}))

	err = ls.WaitAndReset(10 * time.Millisecond)
	assert.ErrorIs(t, err, vgpu.ErrTimeout)
	assert.False(t, vgpu.IsFatal(err))
	assert.True(t, ls.Submitted())
	assert.Zero(t, dr.Calls("ResetFences"))

	// still executing, so it cannot be recorded again
	assert.ErrorIs(t, ls.Record(noop), vgpu.ErrTimeout)

	dr.ReleaseFences()
	require.NoError(t, ls.WaitAndReset(vgpu.Forever))
	assert.False(t, ls.Submitted())
	assert.Equal(t, 1, dr.Calls("ResetFences"))
	assert.NoError(t, ls.Record(noop))
	ls.Release()
}

func TestNoResetOnStaleStatus(t *testing.T) {
	dr, dev, pool := newPool(t, 1)
	defer pool.Destroy()
	ls, err := pool.CheckOut()
	require.NoError(t, err)
	require.NoError(t, ls.RecordOnce(noop))
	require.NoError(t, ls.SubmitTo(dev.GeneralQueue, vgpu.Submission{}))

	dr.StaleFenceStatus = true
	assert.ErrorIs(t, ls.WaitAndReset(vgpu.Forever), vgpu.ErrNotReady)
	assert.Zero(t, dr.Calls("ResetFences"))
	assert.True(t, ls.Submitted())

	dr.StaleFenceStatus = false
	assert.NoError(t, ls.WaitAndReset(vgpu.Forever))
	assert.Equal(t, 1, dr.Calls("ResetFences"))
}

func TestReleaseWaitsAndResets(t *testing.T) {
	dr, dev, pool := newPool(t, 1)
	defer pool.Destroy()
	ls, err := pool.CheckOut()
	require.NoError(t, err)
	require.NoError(t, ls.RecordOnce(noop))
	require.NoError(t, ls.SubmitTo(dev.GeneralQueue, vgpu.Submission{}))
	dr.ClearLog()

	ls.Release()
	assert.Equal(t, []string{"WaitForFences", "ResetFences", "ResetCommandBuffer"}, dr.Log())
	assert.Equal(t, 1, pool.Free())
}

func TestReleaseSwallowsErrors(t *testing.T) {
	dr, dev, pool := newPool(t, 1)
	defer pool.Destroy()
	dr.HoldFences = true
	ls, err := pool.CheckOut()
	require.NoError(t, err)
	require.NoError(t, ls.RecordOnce(noop))
	require.NoError(t, ls.SubmitTo(dev.GeneralQueue, vgpu.Submission{}))

	assert.NotPanics(t, ls.Release)
	assert.Equal(t, 1, pool.Free())
	assert.Zero(t, dr.Calls("ResetFences"), "a fence that did not signal is not reset")

	// the slot remembers its pending fence
	again, err := pool.CheckOut()
	require.NoError(t, err)
	assert.True(t, again.Submitted())
	assert.Error(t, again.Record(noop))
	dr.ReleaseFences()
	assert.NoError(t, again.Record(noop))
}

func TestBackgroundReset(t *testing.T) {
	dr, dev, pool := newPool(t, 2, vgpu.WithBackgroundReset())
	var leases []*vgpu.Lease
	for i := 0; i < 2; i++ {
		ls, err := pool.CheckOut()
		require.NoError(t, err)
		require.NoError(t, ls.RecordOnce(noop))
		require.NoError(t, ls.SubmitTo(dev.GeneralQueue, vgpu.Submission{}))
		leases = append(leases, ls)
	}
	for _, ls := range leases {
		ls.Release()
	}
	assert.Eventually(t, func() bool { return pool.Free() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, 2, dr.Calls("ResetFences"))
	assert.Equal(t, 2, dr.Calls("ResetCommandBuffer"))

	pool.Destroy()
	assert.Equal(t, 1, dr.Calls("DestroyCommandPool"))
	assert.Equal(t, 0, dr.Live())
}

func TestBackgroundResetDrainsOnDestroy(t *testing.T) {
	dr, dev, pool := newPool(t, 3, vgpu.WithBackgroundReset())
	for i := 0; i < 3; i++ {
		ls, err := pool.CheckOut()
		require.NoError(t, err)
		require.NoError(t, ls.RecordOnce(noop))
		require.NoError(t, ls.SubmitTo(dev.GeneralQueue, vgpu.Submission{}))
		ls.Release()
	}
	pool.Destroy()
	assert.Equal(t, 3, dr.Calls("ResetCommandBuffer"), "pending requests are served before shutdown")
}

func TestRecordPass(t *testing.T) {
	dr, dev, pool := newPool(t, 1)
	defer pool.Destroy()
	ls, err := pool.CheckOut()
	require.NoError(t, err)
	defer ls.Release()
	rt := &vgpu.RenderTarget{Extent: vk.Extent2D{Width: 4, Height: 4}}
	rec := vgpu.Recorders{
		vgpu.RecorderFunc(func(cmd *vgpu.Cmd) { cmd.SetViewportScissor(rt.Extent) }),
		vgpu.RecorderFunc(func(cmd *vgpu.Cmd) { cmd.Draw(3) }),
	}
	require.NoError(t, ls.RecordPass(rt, rec))
	require.NoError(t, ls.SubmitTo(dev.GeneralQueue, vgpu.Submission{}))
	assert.Equal(t, []string{"BeginRenderPass", "SetViewportScissor", "Draw 3", "EndRenderPass"}, dr.Executed())

	// resubmitting a reusable recording runs it again
	require.NoError(t, ls.WaitAndReset(vgpu.Forever))
	require.NoError(t, ls.SubmitTo(dev.GeneralQueue, vgpu.Submission{}))
	assert.Len(t, dr.Executed(), 8)
}

func TestBackgroundResetSerializesPoolAccess(t *testing.T) {
	dr, dev, pool := newPool(t, 2, vgpu.WithBackgroundReset())
	dr.PoolAccessDelay = 200 * time.Microsecond
	for i := 0; i < 20; i++ {
		ls, err := pool.CheckOut()
		require.NoError(t, err)
		require.NoError(t, ls.RecordOnce(noop))
		require.NoError(t, ls.SubmitTo(dev.GeneralQueue, vgpu.Submission{}))
		ls.Release()
	}
	pool.Destroy()
	assert.Equal(t, 20, dr.Calls("ResetCommandBuffer"))
	assert.Zero(t, dr.PoolOverlaps(), "the pool is used by one thread at a time")
}
