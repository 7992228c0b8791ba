// SPDX-License-Identifier: MIT
package source

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDevice is returned when an operation needs an open device.
	ErrNoDevice = errors.New("no audio device open")
	// ErrNotLoaded is returned when playback is requested before Load.
	ErrNotLoaded = errors.New("no audio loaded")
	// ErrRingSize is wrapped by AllocationError when a ring would be empty or too large.
	ErrRingSize = errors.New("ring buffer size out of range")
)

// DeviceError reports a failure to open, start or stop an audio device. The
// source keeps its prior state.
type DeviceError struct {
	Op     string
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Device, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// DecodeError reports an unsupported or corrupt file. No playback state is
// changed.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ConfigurationError reports a caller configuration mistake that degrades to
// silence instead of failing.
type ConfigurationError struct {
	Field string
	Msg   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %s", e.Field, e.Msg)
}

// AllocationError reports a buffer that could not be sized. The source
// remains in its last good state.
type AllocationError struct {
	Bytes int64
	Err   error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("allocate %d bytes: %v", e.Bytes, e.Err)
}

func (e *AllocationError) Unwrap() error { return e.Err }

func deviceLabel(id int) string {
	if id < 0 {
		return "default device"
	}
	return fmt.Sprintf("device %d", id)
}
