// Copyright (c) 2023, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"errors"
	"fmt"
	"os"
	"time"

	"cogentcore.org/core/cli"
	"cogentcore.org/vktri/vgpu"
	vk "github.com/goki/vulkan"
	"github.com/pelletier/go-toml/v2"
)

// Config holds the settings of the engine. Zero values are replaced by
// the `default:` tags in [Defaults].
type Config struct {

	// title of the window, also given to the driver as the application name
	Title string `toml:"title" default:"Vulkan Engine"`

	// initial width of the window in screen coordinates
	Width int `toml:"width" default:"1280"`

	// initial height of the window in screen coordinates
	Height int `toml:"height" default:"720"`

	// directory holding vertex_shader.spv and fragment_shader.spv
	ShaderDir string `toml:"shader-dir" default:"shaders"`

	// number of command buffers the pool starts with; it grows as needed
	PoolSize int `toml:"pool-size" default:"16"`

	// enable the Khronos validation layer
	Validation bool `toml:"validation"`

	// wait for and reset released command buffers on a worker goroutine
	BackgroundReset bool `toml:"background-reset"`

	// seconds between frame rate reports; 0 turns them off
	FPSInterval float64 `toml:"fps-interval" default:"10"`

	// log at debug level
	Verbose bool `toml:"verbose"`
}

// Defaults returns a config with every field at its default.
func Defaults() *Config {
	cfg := &Config{}
	cli.SetFromDefaults(cfg)
	return cfg
}

// Open reads the TOML file into the config, on top of the values it
// already has. Unknown keys are an error.
func (cfg *Config) Open(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	dec := toml.NewDecoder(f).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var sme *toml.StrictMissingError
		if errors.As(err, &sme) {
			return fmt.Errorf("engine: config %s: %s", filename, sme.String())
		}
		return fmt.Errorf("engine: config %s: %w", filename, err)
	}
	return nil
}

// Validate checks that the config can be used to start the engine.
func (cfg *Config) Validate() error {
	switch {
	case cfg.Width <= 0 || cfg.Height <= 0:
		return fmt.Errorf("engine: window size must be positive, got %dx%d", cfg.Width, cfg.Height)
	case cfg.PoolSize < 1:
		return fmt.Errorf("engine: pool size must be at least 1, got %d", cfg.PoolSize)
	case cfg.FPSInterval < 0:
		return fmt.Errorf("engine: fps interval must not be negative, got %g", cfg.FPSInterval)
	case cfg.ShaderDir == "":
		return errors.New("engine: shader directory is not set")
	}
	return nil
}

// Extent returns the configured window size.
func (cfg *Config) Extent() vk.Extent2D {
	return vk.Extent2D{Width: uint32(cfg.Width), Height: uint32(cfg.Height)}
}

// Features returns the names of the GPU features the engine needs.
func (cfg *Config) Features() []string {
	fs := []string{vgpu.GLFWFeature, vgpu.SwapchainFeature, vgpu.TimelineSemaphoreFeature}
	if cfg.Validation {
		fs = append(fs, vgpu.ValidationFeature)
	}
	return fs
}

// PoolOptions returns the command pool options for the config.
func (cfg *Config) PoolOptions() []vgpu.CmdPoolOption {
	if cfg.BackgroundReset {
		return []vgpu.CmdPoolOption{vgpu.WithBackgroundReset()}
	}
	return nil
}

// FPSPeriod returns the frame rate report interval.
func (cfg *Config) FPSPeriod() time.Duration {
	return time.Duration(cfg.FPSInterval * float64(time.Second))
}
