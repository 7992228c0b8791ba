// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"sync"
	"time"
)

// NullBackend is a hardware-free backend. Devices never produce sound; with
// Realtime set, started devices pump their callbacks from a goroutine at the
// cadence of the stream, otherwise tests drive them with Pump.
type NullBackend struct {
	Realtime bool
	// OpenErr, when set, is returned by every Open.
	OpenErr error
	// SampleRate, when non-zero, overrides the obtained sample rate.
	SampleRate int

	mu      sync.Mutex
	devices []*NullDevice
}

var _ Backend = (*NullBackend)(nil)

func NewNullBackend(realtime bool) *NullBackend {
	return &NullBackend{Realtime: realtime}
}

func (b *NullBackend) Name() string { return "null" }

func (b *NullBackend) Devices(dir Direction) ([]DeviceInfo, error) {
	info := DeviceInfo{ID: 0, Name: "null " + dir.String(), DefaultSampleRate: 44100, IsDefault: true}
	if dir == Capture {
		info.MaxInputChannels = 2
	} else {
		info.MaxOutputChannels = 2
	}
	return []DeviceInfo{info}, nil
}

func (b *NullBackend) Open(dir Direction, id int, want Spec, cb Callback) (Device, error) {
	if b.OpenErr != nil {
		return nil, b.OpenErr
	}
	if id != DefaultDevice && id != 0 {
		return nil, fmt.Errorf("invalid device ID: %d", id)
	}
	got := want
	if b.SampleRate > 0 {
		got.SampleRate = b.SampleRate
	}
	d := &NullDevice{
		dir:      dir,
		spec:     got,
		cb:       cb,
		buf:      make([]float32, got.FramesPerBuffer*got.Channels),
		realtime: b.Realtime,
	}
	b.mu.Lock()
	b.devices = append(b.devices, d)
	b.mu.Unlock()
	return d, nil
}

// Last returns the most recently opened device, or nil.
func (b *NullBackend) Last() *NullDevice {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.devices) == 0 {
		return nil
	}
	return b.devices[len(b.devices)-1]
}

// NullDevice is a Device opened by NullBackend.
type NullDevice struct {
	dir      Direction
	spec     Spec
	realtime bool

	mu      sync.Mutex // serializes callbacks with Stop and Close
	cb      Callback
	buf     []float32
	running bool
	closed  bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

func (d *NullDevice) Spec() Spec { return d.spec }

func (d *NullDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("null device closed")
	}
	if d.running {
		return nil
	}
	d.running = true
	if d.realtime {
		d.stop = make(chan struct{})
		d.wg.Add(1)
		go d.loop(d.stop)
	}
	return nil
}

func (d *NullDevice) loop(stop <-chan struct{}) {
	defer d.wg.Done()
	period := time.Duration(d.spec.FramesPerBuffer) * time.Second / time.Duration(max(d.spec.SampleRate, 1))
	ticker := time.NewTicker(max(period, time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			d.Pump(nil)
		}
	}
}

func (d *NullDevice) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	stop := d.stop
	d.stop = nil
	d.mu.Unlock()

	if stop != nil {
		close(stop)
		d.wg.Wait()
	}
	return nil
}

func (d *NullDevice) Close() error {
	if err := d.Stop(); err != nil {
		return err
	}
	d.mu.Lock()
	d.closed = true
	d.cb = nil
	d.mu.Unlock()
	return nil
}

// Running reports whether the device is started.
func (d *NullDevice) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Closed reports whether Close has been called.
func (d *NullDevice) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Pump runs one callback if the device is running and reports whether it
// did. For capture devices data is what the callback receives (silence when
// nil). For playback devices the filled buffer is copied into data when it is
// non-nil.
func (d *NullDevice) Pump(data []float32) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running || d.cb == nil {
		return false
	}

	if d.dir == Capture && data != nil {
		d.cb(data)
		return true
	}

	clear(d.buf)
	d.cb(d.buf)
	if d.dir == Playback && data != nil {
		copy(data, d.buf)
	}
	return true
}
