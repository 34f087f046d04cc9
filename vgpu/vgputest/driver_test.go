// Copyright (c) 2023, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgputest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolOverlaps(t *testing.T) {
	dr := NewDriver()
	pool, err := dr.CreateCommandPool(0, 0)
	require.NoError(t, err)
	other, err := dr.CreateCommandPool(0, 0)
	require.NoError(t, err)
	cmds, err := dr.AllocateCommandBuffers(pool, 2)
	require.NoError(t, err)
	others, err := dr.AllocateCommandBuffers(other, 1)
	require.NoError(t, err)
	assert.Zero(t, dr.PoolOverlaps())

	require.NoError(t, dr.BeginCommandBuffer(cmds[0], 0))
	require.NoError(t, dr.BeginCommandBuffer(others[0], 0))
	assert.Zero(t, dr.PoolOverlaps(), "separate pools")

	require.NoError(t, dr.ResetCommandBuffer(cmds[1], 0))
	assert.Equal(t, 1, dr.PoolOverlaps(), "reset while the pool is recording")

	require.NoError(t, dr.EndCommandBuffer(cmds[0]))
	require.NoError(t, dr.ResetCommandBuffer(cmds[1], 0))
	assert.Equal(t, 1, dr.PoolOverlaps())

	// resetting a recording buffer ends its access
	require.NoError(t, dr.ResetCommandBuffer(others[0], 0))
	dr.FreeCommandBuffers(other, others)
	assert.Equal(t, 1, dr.PoolOverlaps())
}

func TestSemaphoreValue(t *testing.T) {
	dr := NewDriver()
	sem, err := dr.CreateSemaphore(true, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), dr.SemaphoreValue(sem))
	require.NoError(t, dr.signal(sem, 7))
	assert.Equal(t, uint64(7), dr.SemaphoreValue(sem))
	assert.Error(t, dr.signal(sem, 7), "timeline values only increase")
}
