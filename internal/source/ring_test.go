// SPDX-License-Identifier: MIT
package source

import (
	"errors"
	"testing"
	"time"

	"spectrolysis/internal/audio"
	"spectrolysis/pkg/utils"
)

const testRingRate = 16 // one second of ring is 16 samples

func newTestRing(t *testing.T) (*RingSource, *audio.NullBackend) {
	t.Helper()
	b := audio.NewNullBackend(false)
	b.SampleRate = testRingRate
	r, err := NewRingSource(b, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Setup(audio.DefaultDevice, testRingRate, 4); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := r.Record(); err != nil {
		t.Fatalf("Record: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r, b
}

func assertSamples(t *testing.T, got []float32, want ...float32) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestRingFreshReadsSilence(t *testing.T) {
	r, _ := newTestRing(t)
	for _, n := range []int{1, 5, 16} {
		dst := utils.GenerateRamp(n, 1)
		r.ReadLatest(dst)
		for i, v := range dst {
			if v != 0 {
				t.Fatalf("window %d: sample %d = %f, want 0", n, i, v)
			}
		}
	}
}

func TestRingWrapAround(t *testing.T) {
	r, b := newTestRing(t)
	dev := b.Last()

	// 21 samples through a 16 sample ring in uneven chunks.
	ramp := utils.GenerateRamp(21, 1)
	for start := 0; start < len(ramp); start += 7 {
		dev.Pump(ramp[start:min(start+7, len(ramp))])
	}

	dst := make([]float32, 10)
	r.ReadLatest(dst)
	assertSamples(t, dst, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21)

	dst = make([]float32, 3)
	r.ReadLatest(dst)
	assertSamples(t, dst, 19, 20, 21)

	dst = make([]float32, 16)
	r.ReadLatest(dst)
	assertSamples(t, dst, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21)
}

func TestRingStartupGrace(t *testing.T) {
	r, b := newTestRing(t)
	b.Last().Pump([]float32{1, 2, 3})

	dst := make([]float32, 5)
	r.ReadLatest(dst)
	assertSamples(t, dst, 0, 0, 1, 2, 3)
}

func TestRingOversizedCallback(t *testing.T) {
	r, b := newTestRing(t)
	b.Last().Pump(utils.GenerateRamp(40, 1))

	dst := make([]float32, 16)
	r.ReadLatest(dst)
	if dst[0] != 25 || dst[15] != 40 {
		t.Errorf("after oversized callback got %v, want 25..40", dst)
	}
}

func TestRingOversizedWindow(t *testing.T) {
	r, b := newTestRing(t)
	b.Last().Pump(utils.GenerateRamp(16, 1))

	dst := utils.GenerateRamp(17, 1)
	r.ReadLatest(dst)
	for i, v := range dst {
		if v != 0 {
			t.Fatalf("oversized window sample %d = %f, want 0", i, v)
		}
	}
	var cfgErr *ConfigurationError
	if !errors.As(r.LastError(), &cfgErr) {
		t.Errorf("LastError() = %v, want ConfigurationError", r.LastError())
	}
}

func TestRingPausedReadsSilence(t *testing.T) {
	r, b := newTestRing(t)
	dev := b.Last()
	dev.Pump(utils.GenerateRamp(8, 1))

	if err := r.Pause(); err != nil {
		t.Fatal(err)
	}
	if !r.IsPaused() || dev.Running() {
		t.Fatalf("Pause did not stop the device")
	}
	dst := make([]float32, 4)
	r.ReadLatest(dst)
	assertSamples(t, dst, 0, 0, 0, 0)

	if err := r.Record(); err != nil {
		t.Fatal(err)
	}
	r.ReadLatest(dst)
	assertSamples(t, dst, 5, 6, 7, 8)
}

func TestRingSetupFailureReopensPrevious(t *testing.T) {
	r, b := newTestRing(t)
	first := b.Last()
	first.Pump([]float32{1, 2})

	// The null backend only knows the default device.
	err := r.Setup(3, 48000, 256)
	var devErr *DeviceError
	if !errors.As(err, &devErr) || devErr.Op != "open capture" {
		t.Fatalf("Setup error = %v, want DeviceError", err)
	}
	if !first.Closed() {
		t.Error("previous device should be closed before the new one is opened")
	}
	restored := b.Last()
	if restored == first || !restored.Running() {
		t.Fatal("previous device not reopened and restarted")
	}
	if r.SampleRate() != testRingRate || r.IsPaused() {
		t.Errorf("state after reopen: rate=%d paused=%v", r.SampleRate(), r.IsPaused())
	}
	dst := make([]float32, 2)
	r.ReadLatest(dst)
	assertSamples(t, dst, 1, 2)

	restored.Pump([]float32{3})
	r.ReadLatest(dst)
	assertSamples(t, dst, 2, 3)
}

func TestRingSetupFailureWithoutReopen(t *testing.T) {
	r, b := newTestRing(t)
	first := b.Last()

	b.OpenErr = errors.New("device unplugged")
	var devErr *DeviceError
	if err := r.Setup(audio.DefaultDevice, testRingRate, 4); !errors.As(err, &devErr) {
		t.Fatalf("Setup error = %v, want DeviceError", err)
	}
	if !first.Closed() {
		t.Error("previous device left open")
	}
	if r.SampleRate() != 0 || !r.IsPaused() {
		t.Errorf("rate=%d paused=%v, want 0 and paused", r.SampleRate(), r.IsPaused())
	}
	if err := r.Record(); !errors.Is(err, ErrNoDevice) {
		t.Errorf("Record() = %v, want ErrNoDevice", err)
	}
}

// exclusiveBackend refuses to open a stream while the previous one is open,
// like hosts that grant devices exclusively.
type exclusiveBackend struct {
	*audio.NullBackend
}

func (b exclusiveBackend) Open(dir audio.Direction, id int, want audio.Spec, cb audio.Callback) (audio.Device, error) {
	if last := b.Last(); last != nil && !last.Closed() {
		return nil, errors.New("device busy")
	}
	return b.NullBackend.Open(dir, id, want, cb)
}

func TestRingSetupExclusiveDevice(t *testing.T) {
	b := exclusiveBackend{audio.NewNullBackend(false)}
	b.SampleRate = testRingRate
	r, err := NewRingSource(b, 1)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = r.Close() })

	if err := r.Setup(audio.DefaultDevice, testRingRate, 4); err != nil {
		t.Fatal(err)
	}
	if err := r.Record(); err != nil {
		t.Fatal(err)
	}
	b.SampleRate = 32
	if err := r.Setup(audio.DefaultDevice, 32, 4); err != nil {
		t.Fatalf("re-Setup of the same device: %v", err)
	}
	if r.SampleRate() != 32 || !b.Last().Running() {
		t.Errorf("rate=%d running=%v after re-Setup", r.SampleRate(), b.Last().Running())
	}
}

func TestRingSetupResizes(t *testing.T) {
	r, b := newTestRing(t)
	first := b.Last()
	first.Pump([]float32{1, 2})

	b.SampleRate = 32
	if err := r.Setup(audio.DefaultDevice, 32, 4); err != nil {
		t.Fatal(err)
	}
	if first.Running() {
		t.Errorf("old device still running after Setup")
	}
	if got := r.CapacityBytes(); got != 32*4 {
		t.Errorf("CapacityBytes() = %d, want %d", got, 32*4)
	}
	if !b.Last().Running() {
		t.Errorf("new device not started while recording")
	}
	dst := make([]float32, 2)
	r.ReadLatest(dst)
	assertSamples(t, dst, 0, 0)
}

func TestRingAllocationError(t *testing.T) {
	if _, err := NewRingSource(audio.NewNullBackend(false), 0); !errors.Is(err, ErrRingSize) {
		t.Errorf("zero length ring error = %v, want ErrRingSize", err)
	}

	r, b := newTestRing(t)
	b.SampleRate = 1 << 30
	var allocErr *AllocationError
	if err := r.Setup(audio.DefaultDevice, 44100, 4); !errors.As(err, &allocErr) {
		t.Errorf("huge ring error = %v, want AllocationError", err)
	}
	// The old device cannot come back at its old rate either.
	if r.SampleRate() != 0 || !r.IsPaused() {
		t.Errorf("rate=%d paused=%v after AllocationError", r.SampleRate(), r.IsPaused())
	}
	if got := r.CapacityBytes(); got != testRingRate*4 {
		t.Errorf("ring resized after AllocationError: %d bytes", got)
	}
}

func TestRingRecordWithoutDevice(t *testing.T) {
	r, err := NewRingSource(audio.NewNullBackend(false), 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Record(); !errors.Is(err, ErrNoDevice) {
		t.Errorf("Record() error = %v, want ErrNoDevice", err)
	}
}

func TestRingRecentAndClose(t *testing.T) {
	r, b := newTestRing(t)
	dev := b.Last()
	dev.Pump(utils.GenerateRamp(20, 1))

	recent := r.Recent(500 * time.Millisecond)
	assertSamples(t, recent, 13, 14, 15, 16, 17, 18, 19, 20)
	if got := len(r.Recent(10 * time.Second)); got != testRingRate {
		t.Errorf("Recent beyond capacity returned %d samples", got)
	}

	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if dev.Pump([]float32{1}) {
		t.Errorf("callback ran after Close")
	}
	dst := []float32{9}
	r.ReadLatest(dst)
	assertSamples(t, dst, 0)
}

func TestRingReadLatestZeroAllocs(t *testing.T) {
	r, b := newTestRing(t)
	dev := b.Last()
	chunk := utils.GenerateRamp(4, 1)
	dst := make([]float32, 8)

	allocs := testing.AllocsPerRun(100, func() {
		dev.Pump(chunk)
		r.ReadLatest(dst)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in capture path, got %.1f", allocs)
	}
}
