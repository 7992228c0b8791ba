// SPDX-License-Identifier: MIT
package source

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"spectrolysis/internal/audio"
	"spectrolysis/internal/log"
)

// maxRingBytes bounds a capture ring at 2 GiB.
const maxRingBytes = 1 << 31

// RingSource keeps the most recent MaxRecordingSec seconds of mono capture in
// a circular buffer. The capture callback and ReadLatest share one mutex, held
// only for the copy.
type RingSource struct {
	backend audio.Backend
	maxSec  int

	devMu    sync.Mutex // serializes Setup, Record, Pause and Close
	device   audio.Device
	deviceID int
	spec     audio.Spec

	mu       sync.Mutex // guards ring and writePos
	ring     []float32
	writePos int // always < len(ring)

	paused     atomic.Bool
	sampleRate atomic.Int64

	warnedWindow atomic.Int64 // last oversized window reported
	lastErr      atomic.Pointer[ConfigurationError]
}

// NewRingSource creates a paused source with a zeroed ring sized for
// maxRecordingSec seconds at the default rate. No device is opened until Setup.
func NewRingSource(backend audio.Backend, maxRecordingSec int) (*RingSource, error) {
	capacity, err := ringCapacity(maxRecordingSec, 44100, 1)
	if err != nil {
		return nil, err
	}
	r := &RingSource{
		backend: backend,
		maxSec:  maxRecordingSec,
		ring:    make([]float32, capacity),
	}
	r.paused.Store(true)
	return r, nil
}

func ringCapacity(seconds, sampleRate, channels int) (int, error) {
	samples := int64(seconds) * int64(sampleRate) * int64(channels)
	bytes := samples * bytesPerSample
	if samples <= 0 || bytes > maxRingBytes {
		return 0, &AllocationError{Bytes: bytes, Err: ErrRingSize}
	}
	return int(samples), nil
}

// Setup opens capture device id (audio.DefaultDevice for the system default)
// and replaces any open device. The previous stream is closed before the new
// one is opened, since exclusive-mode hosts refuse a second stream on the same
// device. If the new device cannot be used the previous one is reopened with
// its old spec; when that fails too the source is left without a device and
// paused. The ring is reallocated, zeroed and rewound only when the obtained
// rate changes its size.
func (r *RingSource) Setup(id, sampleRate, framesPerBuffer int) error {
	r.devMu.Lock()
	defer r.devMu.Unlock()

	prev, prevID, prevSpec := r.device, r.deviceID, r.spec
	if prev != nil {
		// The old stream must stop calling back before the ring is touched.
		if err := prev.Close(); err != nil {
			log.Warnf("Source: closing previous capture device: %v", err)
		}
		r.device = nil
	}

	want := audio.Spec{SampleRate: sampleRate, Channels: 1, FramesPerBuffer: framesPerBuffer}
	err := r.open(id, want)
	if err == nil || r.device != nil || prev == nil {
		return err
	}

	if rerr := r.reopen(prevID, prevSpec); rerr != nil {
		log.Warnf("Source: capture %s could not be reopened: %v", deviceLabel(prevID), rerr)
		r.spec = audio.Spec{}
		r.sampleRate.Store(0)
		r.paused.Store(true)
	}
	return err
}

// open opens and installs a capture device. Callers hold devMu and have
// closed any previous device. r.device is set once the ring fits, even when
// starting the stream fails.
func (r *RingSource) open(id int, want audio.Spec) error {
	dev, err := r.backend.Open(audio.Capture, id, want, r.onCapture)
	if err != nil {
		return &DeviceError{Op: "open capture", Device: deviceLabel(id), Err: err}
	}
	got := dev.Spec()

	capacity, err := ringCapacity(r.maxSec, got.SampleRate, got.Channels)
	if err != nil {
		_ = dev.Close()
		return err
	}

	r.mu.Lock()
	if len(r.ring) != capacity {
		r.ring = make([]float32, capacity)
		r.writePos = 0
	}
	r.mu.Unlock()

	r.device = dev
	r.deviceID = id
	r.spec = got
	r.sampleRate.Store(int64(got.SampleRate))
	log.Infof("Source: capture %s open at %d Hz, %d frames per buffer, ring %d samples",
		deviceLabel(id), got.SampleRate, got.FramesPerBuffer, capacity)

	if !r.paused.Load() {
		if err := dev.Start(); err != nil {
			r.paused.Store(true)
			return &DeviceError{Op: "start capture", Device: deviceLabel(id), Err: err}
		}
	}
	return nil
}

// reopen restores a previously working device. The ring is kept as is, so
// the obtained spec must match the old one exactly.
func (r *RingSource) reopen(id int, spec audio.Spec) error {
	dev, err := r.backend.Open(audio.Capture, id, spec, r.onCapture)
	if err != nil {
		return err
	}
	if got := dev.Spec(); got != spec {
		_ = dev.Close()
		return fmt.Errorf("obtained %d Hz x %d, had %d Hz x %d", got.SampleRate, got.Channels, spec.SampleRate, spec.Channels)
	}
	r.device = dev
	if !r.paused.Load() {
		if err := dev.Start(); err != nil {
			r.paused.Store(true)
			return err
		}
	}
	log.Infof("Source: capture %s reopened at %d Hz", deviceLabel(id), spec.SampleRate)
	return nil
}

// Record unpauses the source and starts the capture stream.
func (r *RingSource) Record() error {
	r.devMu.Lock()
	defer r.devMu.Unlock()
	if r.device == nil {
		return &DeviceError{Op: "record", Device: "capture", Err: ErrNoDevice}
	}
	r.paused.Store(false)
	if err := r.device.Start(); err != nil {
		r.paused.Store(true)
		return &DeviceError{Op: "record", Device: "capture", Err: err}
	}
	return nil
}

// Pause stops the capture stream. ReadLatest returns silence until Record.
func (r *RingSource) Pause() error {
	r.devMu.Lock()
	defer r.devMu.Unlock()
	var err error
	if r.device != nil {
		err = r.device.Stop()
	}
	r.paused.Store(true)
	if err != nil {
		return &DeviceError{Op: "pause", Device: "capture", Err: err}
	}
	return nil
}

func (r *RingSource) IsPaused() bool { return r.paused.Load() }

func (r *RingSource) SampleRate() int { return int(r.sampleRate.Load()) }

// Spec returns the obtained capture spec.
func (r *RingSource) Spec() audio.Spec {
	r.devMu.Lock()
	defer r.devMu.Unlock()
	return r.spec
}

// CapacityBytes returns the ring size in bytes.
func (r *RingSource) CapacityBytes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ring) * bytesPerSample
}

// LastError returns the most recent configuration problem seen by ReadLatest.
func (r *RingSource) LastError() error {
	if e := r.lastErr.Load(); e != nil {
		return e
	}
	return nil
}

// ReadLatest copies the len(dst) most recent samples into dst, oldest first.
// Samples not yet captured since the last ring reset read as zeros. A window
// larger than the ring reads as silence and records a ConfigurationError.
func (r *RingSource) ReadLatest(dst []float32) {
	if r.paused.Load() {
		clear(dst)
		return
	}

	r.mu.Lock()
	capacity := len(r.ring)
	if len(dst) > capacity {
		r.mu.Unlock()
		clear(dst)
		r.warnWindow(len(dst), capacity)
		return
	}
	r.copyTail(dst)
	r.mu.Unlock()
}

// copyTail copies the samples ending at writePos. r.mu must be held and
// len(dst) <= len(r.ring).
func (r *RingSource) copyTail(dst []float32) {
	n := len(dst)
	if r.writePos <= n {
		// Window spans the wrap: older part from the end of the ring.
		older := n - r.writePos
		copy(dst[:older], r.ring[len(r.ring)-older:])
		copy(dst[older:], r.ring[:r.writePos])
		return
	}
	copy(dst, r.ring[r.writePos-n:r.writePos])
}

func (r *RingSource) warnWindow(window, capacity int) {
	if r.warnedWindow.Swap(int64(window)) == int64(window) {
		return
	}
	e := &ConfigurationError{
		Field: "audio_len",
		Msg:   fmt.Sprintf("read window of %d samples exceeds ring capacity of %d", window, capacity),
	}
	r.lastErr.Store(e)
	log.Warnf("Source: %v, returning silence", e)
}

// onCapture is the capture callback. It appends in at the write cursor,
// splitting across the wrap, and advances the cursor modulo capacity.
func (r *RingSource) onCapture(in []float32) {
	r.mu.Lock()
	capacity := len(r.ring)
	if capacity == 0 {
		r.mu.Unlock()
		return
	}
	if len(in) > capacity {
		in = in[len(in)-capacity:]
	}

	remaining := capacity - r.writePos
	if len(in) > remaining {
		copy(r.ring[r.writePos:], in[:remaining])
		copy(r.ring, in[remaining:])
	} else {
		copy(r.ring[r.writePos:], in)
	}
	r.writePos = (r.writePos + len(in)) % capacity
	r.mu.Unlock()
}

// Recent returns a copy of up to d of the most recent capture, oldest first,
// regardless of the paused state.
func (r *RingSource) Recent(d time.Duration) []float32 {
	rate := r.SampleRate()
	if rate == 0 {
		rate = 44100
	}
	n := int(d.Seconds() * float64(rate))

	r.mu.Lock()
	defer r.mu.Unlock()
	n = max(0, min(n, len(r.ring)))
	out := make([]float32, n)
	r.copyTail(out)
	return out
}

// Close stops and releases the device, then drops the ring. The device goes
// first so no callback can run against a released buffer.
func (r *RingSource) Close() error {
	r.devMu.Lock()
	defer r.devMu.Unlock()

	r.paused.Store(true)
	var err error
	if r.device != nil {
		err = r.device.Close()
		r.device = nil
	}

	r.mu.Lock()
	r.ring = nil
	r.writePos = 0
	r.mu.Unlock()
	r.sampleRate.Store(0)
	return err
}
