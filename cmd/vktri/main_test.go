// Copyright (c) 2023, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cogentcore.org/vktri/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFatal(t *testing.T) {
	var buf bytes.Buffer
	writeFatal(&buf, errors.New("vgpu: failed to find a suitable GPU for Vulkan rendering"))
	assert.Equal(t, "Fatal error: vgpu: failed to find a suitable GPU for Vulkan rendering\n", buf.String())
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "vktri.toml")
	require.NoError(t, os.WriteFile(fn, []byte("width = 640\nheight = 480\npool-size = 8\n"), 0o644))

	cfg := engine.Defaults()
	cmd := newRootCmd(cfg)
	require.NoError(t, cmd.ParseFlags([]string{"--height", "100", "-v", "--fps-interval", "0"}))
	require.NoError(t, loadConfig(cmd, cfg, fn))

	assert.Equal(t, 640, cfg.Width, "from the file")
	assert.Equal(t, 8, cfg.PoolSize, "from the file")
	assert.Equal(t, 100, cfg.Height, "flag wins over the file")
	assert.True(t, cfg.Verbose)
	assert.Zero(t, cfg.FPSInterval)
	assert.Equal(t, "Vulkan Engine", cfg.Title, "default when neither sets it")
}

func TestEveryFlagOverridesConfigFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "vktri.toml")
	file := `title = "From File"
width = 640
height = 480
shader-dir = "file/shaders"
pool-size = 8
validation = true
background-reset = true
fps-interval = 5.0
verbose = true
`
	require.NoError(t, os.WriteFile(fn, []byte(file), 0o644))

	cfg := engine.Defaults()
	cmd := newRootCmd(cfg)
	require.NoError(t, cmd.ParseFlags([]string{
		"--title", "From Flags",
		"--width", "320",
		"--height", "240",
		"--shader-dir", "flag/shaders",
		"--pool-size", "4",
		"--validation=false",
		"--background-reset=false",
		"--fps-interval", "2.5",
		"--verbose=false",
	}))
	require.NoError(t, loadConfig(cmd, cfg, fn))

	assert.Equal(t, &engine.Config{
		Title:       "From Flags",
		Width:       320,
		Height:      240,
		ShaderDir:   "flag/shaders",
		PoolSize:    4,
		FPSInterval: 2.5,
	}, cfg)
}

func TestNoConfigFile(t *testing.T) {
	cfg := engine.Defaults()
	cmd := newRootCmd(cfg)
	require.NoError(t, loadConfig(cmd, cfg, ""))
	assert.Equal(t, engine.Defaults(), cfg)
	assert.Error(t, loadConfig(cmd, cfg, filepath.Join(t.TempDir(), "missing.toml")))
}

func TestRejectsArgs(t *testing.T) {
	cmd := newRootCmd(engine.Defaults())
	cmd.SetArgs([]string{"extra"})
	assert.Error(t, cmd.Execute())
}
