// SPDX-License-Identifier: MIT
/*
Package audio is the boundary to the platform audio subsystem. A Backend
enumerates devices and opens them with a Callback that the backend invokes on
its own goroutine or OS thread at a fixed cadence.

Callback contract:
  - must not block
  - must not allocate
  - must not panic; failures become silence

Capture callbacks receive the captured interleaved samples. Playback
callbacks fill the buffer they are given.
*/
package audio

import (
	"errors"
	"fmt"
)

// Direction selects capture or playback devices.
type Direction int

const (
	Capture Direction = iota
	Playback
)

func (d Direction) String() string {
	switch d {
	case Capture:
		return "capture"
	case Playback:
		return "playback"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// DefaultDevice selects the system default device for a direction.
const DefaultDevice = -1

// ErrUnsupported is returned when a backend cannot serve a direction.
var ErrUnsupported = errors.New("audio: operation not supported by backend")

// Spec describes a float32 interleaved stream.
type Spec struct {
	SampleRate      int
	Channels        int
	FramesPerBuffer int
}

// BytesPerSecond is the float32 data rate of the stream.
func (s Spec) BytesPerSecond() int {
	return s.SampleRate * s.Channels * 4
}

// Callback moves one buffer of interleaved float32 samples.
type Callback func(buf []float32)

// DeviceInfo describes one enumerable device.
type DeviceInfo struct {
	ID                int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	IsDefault         bool
}

// Device is an opened stream. Start and Stop toggle whether the callback runs;
// Close releases the stream, after which the callback is never invoked again.
type Device interface {
	Spec() Spec
	Start() error
	Stop() error
	Close() error
}

// Backend is an audio subsystem.
type Backend interface {
	Name() string
	Devices(dir Direction) ([]DeviceInfo, error)
	// Open opens device id (DefaultDevice for the system default) with the
	// requested spec. The obtained spec may differ in sample rate.
	Open(dir Direction, id int, want Spec, cb Callback) (Device, error)
}
