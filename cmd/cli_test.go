// SPDX-License-Identifier: MIT
package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"spectrolysis/internal/config"
	"spectrolysis/internal/log"
)

func resetLogLevel(t *testing.T) {
	t.Helper()
	prev := log.GetLevel()
	t.Cleanup(func() { log.SetLevel(prev) })
}

func TestParseDefaults(t *testing.T) {
	resetLogLevel(t)
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Command != CommandRun {
		t.Errorf("Command = %q, want run", cfg.Command)
	}
	if cfg.Spectrum.FFTLen != config.DefaultFFTLen || cfg.Spectrogram.Rows != config.DefaultRows {
		t.Errorf("defaults not applied: %+v", cfg.Spectrum)
	}
	if cfg.PlaybackFile != "" {
		t.Errorf("PlaybackFile = %q", cfg.PlaybackFile)
	}
}

func TestParseFlagsOverrideConfig(t *testing.T) {
	resetLogLevel(t)
	path := filepath.Join(t.TempDir(), "spectro.yaml")
	yaml := "spectrum:\n  fft_len: 4096\n  audio_len: 2048\nspectrogram:\n  rows: 50\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Parse([]string{
		"--config", path,
		"--fft-len", "1024",
		"--udp", "127.0.0.1:9999",
		"--ws-addr", "",
		"--file", "song.mp3",
		"--backend", "null",
		"-d", "3",
		"-v",
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Spectrum.FFTLen != 1024 || cfg.Spectrum.AudioLen != 1024 {
		t.Errorf("fft_len/audio_len = %d/%d, want 1024/1024", cfg.Spectrum.FFTLen, cfg.Spectrum.AudioLen)
	}
	if cfg.Spectrogram.Rows != 50 {
		t.Errorf("rows = %d, want 50 from the file", cfg.Spectrogram.Rows)
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.UDPTargetAddress != "127.0.0.1:9999" {
		t.Errorf("udp = %v %q", cfg.Transport.UDPEnabled, cfg.Transport.UDPTargetAddress)
	}
	if cfg.Transport.WSEnabled {
		t.Error("empty --ws-addr should disable the WebSocket")
	}
	if cfg.PlaybackFile != "song.mp3" || cfg.Audio.InputDevice != 3 || cfg.Audio.Backend != "null" {
		t.Errorf("audio flags not applied: file=%q device=%d backend=%q",
			cfg.PlaybackFile, cfg.Audio.InputDevice, cfg.Audio.Backend)
	}
	if cfg.LogLevel != "debug" || log.GetLevel() != log.LevelDebug {
		t.Errorf("verbose not applied: %q", cfg.LogLevel)
	}
}

func TestParseSubcommands(t *testing.T) {
	resetLogLevel(t)
	cfg, err := Parse([]string{"list", "--backend", "null"})
	if err != nil {
		t.Fatalf("Parse(list) error = %v", err)
	}
	if cfg.Command != CommandList {
		t.Errorf("Command = %q, want list", cfg.Command)
	}

	cfg, err = Parse([]string{"export", "--seconds", "5", "-o", "out.wav"})
	if err != nil {
		t.Fatalf("Parse(export) error = %v", err)
	}
	if cfg.Command != CommandExport || cfg.ExportSec != 5 || cfg.ExportFile != "out.wav" {
		t.Errorf("export = %q %d %q", cfg.Command, cfg.ExportSec, cfg.ExportFile)
	}

	cfg, err = Parse([]string{"pick", "-b", "null"})
	if err != nil {
		t.Fatalf("Parse(pick) error = %v", err)
	}
	if cfg.Command != CommandPick {
		t.Errorf("Command = %q, want pick", cfg.Command)
	}

	cfg, err = Parse([]string{"export"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(cfg.ExportFile, "recording-") || !strings.HasSuffix(cfg.ExportFile, ".wav") {
		t.Errorf("default export file = %q", cfg.ExportFile)
	}
}

func TestParseErrors(t *testing.T) {
	resetLogLevel(t)
	tests := []struct {
		name string
		args []string
	}{
		{"invalid fft length", []string{"--fft-len", "1000"}},
		{"bad backend", []string{"--backend", "jack"}},
		{"unknown flag", []string{"--nope"}},
		{"negative seconds", []string{"export", "--seconds", "-1"}},
		{"missing config", []string{"--config", "/does/not/exist.yaml"}},
		{"stray argument", []string{"extra"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.args); err == nil {
				t.Error("Parse() expected error")
			}
		})
	}
}

func TestParseHelp(t *testing.T) {
	resetLogLevel(t)
	devnull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer devnull.Close()
	stdout := os.Stdout
	os.Stdout = devnull
	defer func() { os.Stdout = stdout }()

	cfg, err := Parse([]string{"--help"})
	if err != nil || cfg != nil {
		t.Errorf("Parse(--help) = %v, %v; want nil, nil", cfg, err)
	}
}
