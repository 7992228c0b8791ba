// SPDX-License-Identifier: MIT
package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the spectrogram pipeline.
const (
	// Audio devices
	DefaultBackend         = "portaudio" // Capture and playback backend
	DefaultOutputBackend   = ""          // Empty means same as Backend
	DefaultDeviceID        = MinDeviceID // System default device
	DefaultSampleRate      = 44100       // CD-quality audio
	DefaultCallbackFrames  = 2048        // Frames per backend callback
	DefaultMaxRecordingSec = 300         // Ring buffer length in seconds

	// Spectrum
	DefaultFFTLen   = 8192   // Transform length, power of two > 32
	DefaultAudioLen = 2048   // Samples read per tick, zero-padded to FFTLen
	DefaultFloorDB  = -120.0 // Noise floor for the dB conversion
	DefaultScale    = true   // Map dB to [0, 1]
	DefaultWindow   = "none" // Analysis window

	// Smoothing
	DefaultConvRows = 10   // Temporal kernel taps
	DefaultKernelA  = 0.25 // Left spectral tap
	DefaultKernelB  = 0.5  // Centre spectral tap
	DefaultKernelC  = 0.25 // Right spectral tap

	// Spectrogram and render loop
	DefaultRows         = 200
	DefaultTickInterval = 16 * time.Millisecond

	// Transport
	DefaultWSAddr          = ":8080"
	DefaultUDPTarget       = "127.0.0.1:9090"
	DefaultUDPSendInterval = 33 * time.Millisecond

	// Hardware and processing limits
	MinDeviceID   = -1     // -1 represents system default device
	MinSampleRate = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate = 192000 // Maximum supported sample rate (Hz)
	MinFFTLen     = 64     // Smallest power of two above 32
	MaxFFTLen     = 1 << 16
)

// Config holds all runtime configuration options. It is loaded from YAML,
// overridden by environment variables and finally by command line flags.
type Config struct {
	LogLevel    string            `yaml:"log_level"`         // debug, info, warn, error.
	Command     string            `yaml:"command,omitempty"` // One-off command instead of running the engine.
	Audio       AudioConfig       `yaml:"audio"`
	Spectrum    SpectrumConfig    `yaml:"spectrum"`
	Smoothing   SmoothingConfig   `yaml:"smoothing"`
	Spectrogram SpectrogramConfig `yaml:"spectrogram"`
	Render      RenderConfig      `yaml:"render"`
	Transport   TransportConfig   `yaml:"transport"`

	// Set by the CLI only.
	PlaybackFile string `yaml:"-"` // Start in player mode with this file.
	ExportFile   string `yaml:"-"` // Target of the export command.
	ExportSec    int    `yaml:"-"` // Seconds to capture before exporting.
}

// AudioConfig selects devices and the backend callback cadence.
type AudioConfig struct {
	Backend         string `yaml:"backend"`           // portaudio or null.
	OutputBackend   string `yaml:"output_backend"`    // portaudio, oto or null; empty follows backend.
	InputDevice     int    `yaml:"input_device"`      // Capture device index, -1 for default.
	OutputDevice    int    `yaml:"output_device"`     // Playback device index, -1 for default.
	SampleRate      int    `yaml:"sample_rate"`       // Requested capture rate in Hz.
	CallbackFrames  int    `yaml:"callback_frames"`   // Frames per backend callback.
	MaxRecordingSec int    `yaml:"max_recording_sec"` // Capture ring length in seconds.
}

// SpectrumConfig drives the transform engine.
type SpectrumConfig struct {
	FFTLen   int     `yaml:"fft_len"`
	AudioLen int     `yaml:"audio_len"`
	FloorDB  float64 `yaml:"floor_db"`
	Scale    bool    `yaml:"scale"`
	Window   string  `yaml:"window"`
}

// SmoothingConfig drives the blur engine.
type SmoothingConfig struct {
	ConvRows int     `yaml:"conv_rows"`
	A        float64 `yaml:"a"`
	B        float64 `yaml:"b"`
	C        float64 `yaml:"c"`
}

// SpectrogramConfig sizes the history buffer.
type SpectrogramConfig struct {
	Rows int `yaml:"rows"`
}

// RenderConfig sets the render loop cadence.
type RenderConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
}

// TransportConfig holds settings for handing frames to renderers.
type TransportConfig struct {
	WSEnabled        bool          `yaml:"ws_enabled"`
	WSAddr           string        `yaml:"ws_addr"`
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"`
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
}

// NewConfig creates a Config populated with the built-in defaults.
func NewConfig() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			Backend:         DefaultBackend,
			OutputBackend:   DefaultOutputBackend,
			InputDevice:     DefaultDeviceID,
			OutputDevice:    DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			CallbackFrames:  DefaultCallbackFrames,
			MaxRecordingSec: DefaultMaxRecordingSec,
		},
		Spectrum: SpectrumConfig{
			FFTLen:   DefaultFFTLen,
			AudioLen: DefaultAudioLen,
			FloorDB:  DefaultFloorDB,
			Scale:    DefaultScale,
			Window:   DefaultWindow,
		},
		Smoothing: SmoothingConfig{
			ConvRows: DefaultConvRows,
			A:        DefaultKernelA,
			B:        DefaultKernelB,
			C:        DefaultKernelC,
		},
		Spectrogram: SpectrogramConfig{Rows: DefaultRows},
		Render:      RenderConfig{TickInterval: DefaultTickInterval},
		Transport: TransportConfig{
			WSEnabled:        true,
			WSAddr:           DefaultWSAddr,
			UDPEnabled:       false,
			UDPTargetAddress: DefaultUDPTarget,
			UDPSendInterval:  DefaultUDPSendInterval,
		},
	}
}

// Cols returns the number of plotted frequency columns, DC and Nyquist
// excluded.
func (c *Config) Cols() int {
	return c.Spectrum.FFTLen/2 - 2
}

// PlaybackBackend resolves the backend used for file playback.
func (c *Config) PlaybackBackend() string {
	if c.Audio.OutputBackend == "" {
		return c.Audio.Backend
	}
	return c.Audio.OutputBackend
}
