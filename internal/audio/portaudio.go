// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Initialize sets up the PortAudio subsystem.
// This must be called before any audio operations and paired with a Terminate() call.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
// This should be deferred immediately after Initialize().
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// PortAudioBackend opens capture and playback streams through PortAudio.
// Initialize must have been called.
type PortAudioBackend struct{}

var _ Backend = (*PortAudioBackend)(nil)

func NewPortAudioBackend() *PortAudioBackend { return &PortAudioBackend{} }

func (b *PortAudioBackend) Name() string { return "portaudio" }

// Devices lists the devices that have channels in the given direction. IDs
// are PortAudio host indices, so they are stable between calls.
func (b *PortAudioBackend) Devices(dir Direction) ([]DeviceInfo, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	var def *portaudio.DeviceInfo
	if dir == Capture {
		def, _ = portaudio.DefaultInputDevice()
	} else {
		def, _ = portaudio.DefaultOutputDevice()
	}

	devices := make([]DeviceInfo, 0, len(infos))
	for i, info := range infos {
		if dir == Capture && info.MaxInputChannels == 0 {
			continue
		}
		if dir == Playback && info.MaxOutputChannels == 0 {
			continue
		}
		devices = append(devices, DeviceInfo{
			ID:                i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			IsDefault:         def != nil && def.Name == info.Name,
		})
	}
	return devices, nil
}

// lookupDevice resolves a device ID. DefaultDevice returns the system default
// for the direction.
func lookupDevice(dir Direction, id int) (*portaudio.DeviceInfo, error) {
	if id == DefaultDevice {
		if dir == Capture {
			return portaudio.DefaultInputDevice()
		}
		return portaudio.DefaultOutputDevice()
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	if id < 0 || id >= len(devices) {
		return nil, fmt.Errorf("invalid device ID: %d", id)
	}
	return devices[id], nil
}

func (b *PortAudioBackend) Open(dir Direction, id int, want Spec, cb Callback) (Device, error) {
	info, err := lookupDevice(dir, id)
	if err != nil {
		return nil, err
	}

	params := portaudio.StreamParameters{
		FramesPerBuffer: want.FramesPerBuffer,
		SampleRate:      float64(want.SampleRate),
	}

	var stream *portaudio.Stream
	switch dir {
	case Capture:
		params.Input = portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: want.Channels,
			Latency:  info.DefaultLowInputLatency,
		}
		stream, err = portaudio.OpenStream(params, func(in []float32) { cb(in) })
	case Playback:
		params.Output = portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: want.Channels,
			Latency:  info.DefaultLowOutputLatency,
		}
		stream, err = portaudio.OpenStream(params, func(out []float32) { cb(out) })
	default:
		return nil, fmt.Errorf("%w: direction %v", ErrUnsupported, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", info.Name, err)
	}

	got := want
	if si := stream.Info(); si != nil && si.SampleRate > 0 {
		got.SampleRate = int(si.SampleRate)
	}
	return &paDevice{stream: stream, spec: got}, nil
}

type paDevice struct {
	mu      sync.Mutex
	stream  *portaudio.Stream
	spec    Spec
	running bool
}

func (d *paDevice) Spec() Spec { return d.spec }

func (d *paDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running || d.stream == nil {
		return nil
	}
	if err := d.stream.Start(); err != nil {
		return err
	}
	d.running = true
	return nil
}

func (d *paDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running || d.stream == nil {
		return nil
	}
	d.running = false
	return d.stream.Stop()
}

func (d *paDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream == nil {
		return nil
	}
	if d.running {
		_ = d.stream.Stop()
		d.running = false
	}
	err := d.stream.Close()
	d.stream = nil
	return err
}
