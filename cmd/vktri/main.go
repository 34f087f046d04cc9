// Copyright (c) 2023, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command vktri opens a window and draws a triangle in it with Vulkan
// until the window is closed.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"

	"cogentcore.org/core/base/logx"
	"cogentcore.org/vktri/engine"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func init() {
	// glfw and the GPU must stay on the main thread
	runtime.LockOSThread()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd(engine.Defaults()).ExecuteContext(ctx)
	stop()
	if err != nil && !errors.Is(err, engine.ErrQuit) {
		writeFatal(os.Stderr, err)
		os.Exit(1)
	}
}

// writeFatal writes err to w after a red "Fatal error: " when w is a
// terminal that supports color.
func writeFatal(w io.Writer, err error) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w, out.String("Fatal error: ").Foreground(termenv.ANSIRed).String()+err.Error())
}

// newRootCmd returns the command, with its flags bound to cfg.
func newRootCmd(cfg *engine.Config) *cobra.Command {
	var cfgFile string
	var quiet bool
	cmd := &cobra.Command{
		Use:           "vktri",
		Short:         "Draw a triangle with Vulkan",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, cfg, cfgFile); err != nil {
				return err
			}
			setLogLevel(logx.LevelFromFlags(cfg.Verbose, !quiet, quiet))
			return run(cmd.Context(), cfg)
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&cfgFile, "config", "c", "", "TOML config file; flags override its values")
	fs.StringVar(&cfg.Title, "title", cfg.Title, "window title")
	fs.IntVar(&cfg.Width, "width", cfg.Width, "window width")
	fs.IntVar(&cfg.Height, "height", cfg.Height, "window height")
	fs.StringVar(&cfg.ShaderDir, "shader-dir", cfg.ShaderDir, "directory holding the compiled shaders")
	fs.IntVar(&cfg.PoolSize, "pool-size", cfg.PoolSize, "initial number of command buffers")
	fs.BoolVar(&cfg.Validation, "validation", cfg.Validation, "enable the validation layer")
	fs.BoolVar(&cfg.BackgroundReset, "background-reset", cfg.BackgroundReset, "reset released command buffers on a worker goroutine")
	fs.Float64Var(&cfg.FPSInterval, "fps-interval", cfg.FPSInterval, "seconds between frame rate reports, 0 for none")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "log debug messages")
	fs.BoolVarP(&quiet, "quiet", "q", false, "log errors only")
	return cmd
}

// loadConfig reads the config file, if any, under the flags that were
// set on the command line.
func loadConfig(cmd *cobra.Command, cfg *engine.Config, file string) error {
	if file == "" {
		return nil
	}
	set := map[string]string{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		set[f.Name] = f.Value.String()
	})
	if err := cfg.Open(file); err != nil {
		return err
	}
	for name, value := range set {
		if err := cmd.Flags().Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

func setLogLevel(level slog.Level) {
	logx.UserLevel = level
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// run makes the window and the engine and renders until quit.
func run(ctx context.Context, cfg *engine.Config) error {
	if err := engine.Init(); err != nil {
		return err
	}
	defer engine.Terminate()
	win, err := engine.NewGLFWWindow(cfg.Title, cfg.Width, cfg.Height)
	if err != nil {
		return err
	}
	defer win.Destroy()
	e, err := engine.New(cfg, win)
	if err != nil {
		return err
	}
	defer e.Destroy()
	return e.Run(ctx)
}
