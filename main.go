// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spectrolysis/cmd"
	"spectrolysis/internal/audio"
	"spectrolysis/internal/config"
	"spectrolysis/internal/engine"
	"spectrolysis/internal/log"
	"spectrolysis/internal/tui"
	"spectrolysis/pkg/build"
)

// main is the entry point for the spectrogram service.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and the config file
//   - Initialize PortAudio when a backend needs it
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Open the capture device or load the requested file
//   - Run the render loop and stream frames to renderers
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Close devices before their buffers, then transports
func main() {
	os.Exit(realMain())
}

// realMain returns the process exit code so deferred cleanup runs first.
func realMain() int {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		log.Debugf("Build: %v, using development defaults", err)
	}

	cfg, err := cmd.ParseArgs()
	if err != nil {
		log.Errorf("%v", err)
		return 2
	}
	if cfg == nil {
		return 0 // --help or --version
	}
	log.Infof("Build: %s", build.GetBuildInfo())

	if usesPortAudio(cfg) {
		if err := audio.Initialize(); err != nil {
			log.Errorf("%v", err)
			return 1
		}
		defer audio.Terminate()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, cfg); err != nil {
		log.Errorf("%v", err)
		return 1
	}
	return 0
}

func usesPortAudio(cfg *config.Config) bool {
	return cfg.Audio.Backend == "portaudio" || cfg.PlaybackBackend() == "portaudio"
}

func execute(ctx context.Context, cfg *config.Config) error {
	switch cfg.Command {
	case cmd.CommandList:
		return listDevices(cfg)
	case cmd.CommandExport:
		return exportRecording(ctx, cfg)
	case cmd.CommandPick:
		return pickAndRun(ctx, cfg)
	default:
		return run(ctx, cfg)
	}
}

// ==================== CONCURRENT PHASE (Hot Path) ====================

func run(ctx context.Context, cfg *config.Config) error {
	eng, err := engine.NewEngine(cfg)
	if err != nil {
		return err
	}
	// Blocks until SIGINT/SIGTERM, then closes everything in order.
	return eng.Run(ctx)
}

// pickAndRun lets the user choose the capture device before running. Quitting
// the picker exits without starting the engine.
func pickAndRun(ctx context.Context, cfg *config.Config) error {
	b, err := engine.NewBackend(cfg.Audio.Backend)
	if err != nil {
		return err
	}
	sel, ok, err := tui.Pick(b)
	if err != nil || !ok {
		return err
	}
	cfg.Audio.InputDevice = sel.DeviceID
	cfg.Audio.SampleRate = sel.SampleRate
	log.Infof("Selected device %d at %d Hz", sel.DeviceID, sel.SampleRate)
	return run(ctx, cfg)
}

func listDevices(cfg *config.Config) error {
	seen := map[string]bool{}
	for _, name := range []string{cfg.Audio.Backend, cfg.PlaybackBackend()} {
		if seen[name] {
			continue
		}
		seen[name] = true
		b, err := engine.NewBackend(name)
		if err != nil {
			return err
		}
		if err := audio.ListDevices(os.Stdout, b); err != nil {
			return err
		}
	}
	return nil
}

func exportRecording(ctx context.Context, cfg *config.Config) error {
	cfg.Transport.WSEnabled = false
	cfg.Transport.UDPEnabled = false
	cfg.PlaybackFile = ""

	eng, err := engine.NewEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.Start(); err != nil {
		return err
	}

	d := time.Duration(cfg.ExportSec) * time.Second
	fmt.Printf("Recording %s, Ctrl+C to stop early...\n", d)
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================
	if err := eng.ExportRecent(cfg.ExportFile, d); err != nil {
		return err
	}
	fmt.Printf("Recording saved to: %s\n", cfg.ExportFile)
	return nil
}
