// Copyright (c) 2023, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"cogentcore.org/vktri/vgpu"
	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "Vulkan Engine", cfg.Title)
	assert.Equal(t, vk.Extent2D{Width: 1280, Height: 720}, cfg.Extent())
	assert.Equal(t, "shaders", cfg.ShaderDir)
	assert.Equal(t, 16, cfg.PoolSize)
	assert.Equal(t, 10*time.Second, cfg.FPSPeriod())
	assert.False(t, cfg.Validation)
	assert.Empty(t, cfg.PoolOptions())
	assert.NotContains(t, cfg.Features(), vgpu.ValidationFeature)
	assert.NoError(t, cfg.Validate())

	rf, err := vgpu.DefaultFeatures().Resolve(cfg.Features()...)
	assert.NoError(t, err, "engine features are all built in")
	assert.False(t, rf.Has(vgpu.SemaphoreFeature))
	assert.False(t, rf.Has(vgpu.FenceFeature))
	for _, ext := range rf.DeviceExts {
		assert.NotContains(t, ext, "external", "the engine shares nothing with other APIs")
	}
	assert.Contains(t, rf.DeviceExts, "VK_KHR_timeline_semaphore")
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	fn := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(fn, []byte(content), 0o644))
	return fn
}

func TestConfigOpen(t *testing.T) {
	fn := writeFile(t, "vktri.toml", `
title = "Test"
width = 640
pool-size = 4
validation = true
background-reset = true
fps-interval = 0.5
`)
	cfg := Defaults()
	require.NoError(t, cfg.Open(fn))
	assert.Equal(t, "Test", cfg.Title)
	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 720, cfg.Height, "unset keys keep their value")
	assert.Equal(t, 4, cfg.PoolSize)
	assert.Equal(t, 500*time.Millisecond, cfg.FPSPeriod())
	assert.Contains(t, cfg.Features(), vgpu.ValidationFeature)
	assert.Len(t, cfg.PoolOptions(), 1)
}

func TestConfigOpenErrors(t *testing.T) {
	cfg := Defaults()
	assert.Error(t, cfg.Open(filepath.Join(t.TempDir(), "missing.toml")))

	err := cfg.Open(writeFile(t, "bad.toml", "colour = 1\n"))
	assert.ErrorContains(t, err, "colour")

	assert.Error(t, cfg.Open(writeFile(t, "syntax.toml", "width = \n")))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(cfg *Config)
	}{
		{"zero width", func(cfg *Config) { cfg.Width = 0 }},
		{"negative height", func(cfg *Config) { cfg.Height = -1 }},
		{"empty pool", func(cfg *Config) { cfg.PoolSize = 0 }},
		{"negative fps interval", func(cfg *Config) { cfg.FPSInterval = -1 }},
		{"no shader dir", func(cfg *Config) { cfg.ShaderDir = "" }},
	}
	for _, tt := range tests {
		cfg := Defaults()
		tt.edit(cfg)
		assert.Error(t, cfg.Validate(), tt.name)
	}
}
