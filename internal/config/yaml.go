// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"spectrolysis/internal/transport/udp"
	"spectrolysis/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// kernelTolerance is how far a+b+c may stray from 1.
const kernelTolerance = 1e-3

// LoadConfig loads configuration from a YAML file specified by path. If path
// is empty it looks for "config.yaml" in the working directory and falls back
// to the built-in defaults. Environment overrides are applied after loading
// and the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		candidates := []string{"config.yaml"}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the values the pipeline relies on for correct buffer
// sizing. It is called again by the CLI after flags are applied.
func (c *Config) Validate() error {
	switch c.Audio.Backend {
	case "portaudio", "null":
	default:
		return fmt.Errorf("audio.backend %q is not one of portaudio, null", c.Audio.Backend)
	}
	switch c.Audio.OutputBackend {
	case "", "portaudio", "oto", "null":
	default:
		return fmt.Errorf("audio.output_backend %q is not one of portaudio, oto, null", c.Audio.OutputBackend)
	}
	if c.Audio.InputDevice < MinDeviceID || c.Audio.OutputDevice < MinDeviceID {
		return fmt.Errorf("device ids must be >= %d", MinDeviceID)
	}
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate %d outside [%d, %d]", c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Audio.CallbackFrames <= 0 {
		return fmt.Errorf("audio.callback_frames must be positive, got %d", c.Audio.CallbackFrames)
	}
	if c.Audio.MaxRecordingSec <= 0 {
		return fmt.Errorf("audio.max_recording_sec must be positive, got %d", c.Audio.MaxRecordingSec)
	}

	n := c.Spectrum.FFTLen
	if !bitint.IsPowerOfTwo(n) || n < MinFFTLen || n > MaxFFTLen {
		return fmt.Errorf("spectrum.fft_len %d must be a power of two in [%d, %d] (try %d)",
			n, MinFFTLen, MaxFFTLen, bitint.NextPowerOfTwo(max(n, MinFFTLen)))
	}
	if c.Spectrum.AudioLen <= 0 || c.Spectrum.AudioLen > n {
		return fmt.Errorf("spectrum.audio_len %d must be in [1, fft_len=%d]", c.Spectrum.AudioLen, n)
	}
	if c.Spectrum.FloorDB == 0 {
		return fmt.Errorf("spectrum.floor_db must be non-zero")
	}

	if c.Smoothing.ConvRows < 2 {
		return fmt.Errorf("smoothing.conv_rows must be at least 2, got %d", c.Smoothing.ConvRows)
	}
	if sum := c.Smoothing.A + c.Smoothing.B + c.Smoothing.C; math.Abs(sum-1) > kernelTolerance {
		return fmt.Errorf("smoothing kernel a+b+c must sum to 1, got %.4f", sum)
	}

	if c.Spectrogram.Rows < 1 {
		return fmt.Errorf("spectrogram.rows must be at least 1, got %d", c.Spectrogram.Rows)
	}
	if c.Render.TickInterval <= 0 {
		return fmt.Errorf("render.tick_interval must be positive")
	}

	if c.Transport.UDPEnabled {
		if !strings.Contains(c.Transport.UDPTargetAddress, ":") {
			return fmt.Errorf("transport.udp_target_address %q appears invalid (missing port?)", c.Transport.UDPTargetAddress)
		}
		if c.Transport.UDPSendInterval <= 0 {
			return fmt.Errorf("transport.udp_send_interval must be positive when UDP is enabled")
		}
		if cols := c.Cols(); cols > udp.MaxValues {
			return fmt.Errorf("spectrum.fft_len %d gives %d columns, more than the %d a UDP datagram holds; use fft_len <= %d or disable UDP",
				n, cols, udp.MaxValues, maxUDPFFTLen())
		}
	}

	return nil
}

// applyEnvOverrides applies SPECTRO_* environment variables on top of the
// file or default values. Unparseable values are ignored.
func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("SPECTRO_LOG_LEVEL"); ok {
		c.LogLevel = val
	}
	if val, ok := os.LookupEnv("SPECTRO_BACKEND"); ok {
		c.Audio.Backend = val
	}
	if val, ok := os.LookupEnv("SPECTRO_WS_ADDR"); ok {
		c.Transport.WSAddr = val
	}
	if val, ok := os.LookupEnv("SPECTRO_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
		}
	}
	if val, ok := os.LookupEnv("SPECTRO_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
	}
	if val, ok := os.LookupEnv("SPECTRO_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = dur
		}
	}
}

// maxUDPFFTLen is the largest valid fft_len whose row fits one UDP datagram.
func maxUDPFFTLen() int {
	n := MaxFFTLen
	for n > MinFFTLen && n/2-2 > udp.MaxValues {
		n /= 2
	}
	return n
}
