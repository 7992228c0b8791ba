// SPDX-License-Identifier: MIT
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// OtoBackend plays through a single process-wide oto context. It has no
// capture support and exposes one playback device.
type OtoBackend struct {
	once sync.Once
	ctx  *oto.Context
	spec Spec // spec the context was created with
	err  error
}

var _ Backend = (*OtoBackend)(nil)

func NewOtoBackend() *OtoBackend { return &OtoBackend{} }

func (b *OtoBackend) Name() string { return "oto" }

func (b *OtoBackend) Devices(dir Direction) ([]DeviceInfo, error) {
	if dir != Playback {
		return nil, fmt.Errorf("%w: oto %v", ErrUnsupported, dir)
	}
	return []DeviceInfo{{ID: 0, Name: "oto default output", MaxOutputChannels: 2, IsDefault: true}}, nil
}

// Open creates a player pulling from cb. oto allows one context per process,
// so every player shares the sample rate and channel count of the first Open.
func (b *OtoBackend) Open(dir Direction, id int, want Spec, cb Callback) (Device, error) {
	if dir != Playback {
		return nil, fmt.Errorf("%w: oto %v", ErrUnsupported, dir)
	}
	if id != DefaultDevice && id != 0 {
		return nil, fmt.Errorf("invalid device ID: %d", id)
	}

	b.once.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   want.SampleRate,
			ChannelCount: want.Channels,
			Format:       oto.FormatFloat32LE,
		})
		if err != nil {
			b.err = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-ready
		b.ctx = ctx
		b.spec = want
	})
	if b.err != nil {
		return nil, b.err
	}
	if b.spec.SampleRate != want.SampleRate || b.spec.Channels != want.Channels {
		return nil, fmt.Errorf("oto context is fixed at %d Hz x %d, cannot open %d Hz x %d",
			b.spec.SampleRate, b.spec.Channels, want.SampleRate, want.Channels)
	}

	r := newCallbackReader(cb, want.FramesPerBuffer*want.Channels)
	return &otoDevice{player: b.ctx.NewPlayer(r), spec: want}, nil
}

type otoDevice struct {
	mu     sync.Mutex
	player *oto.Player
	spec   Spec
}

func (d *otoDevice) Spec() Spec { return d.spec }

func (d *otoDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player != nil {
		d.player.Play()
	}
	return nil
}

func (d *otoDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player != nil {
		d.player.Pause()
	}
	return nil
}

func (d *otoDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player == nil {
		return nil
	}
	err := d.player.Close()
	d.player = nil
	return err
}

// callbackReader adapts a playback Callback to the io.Reader oto pulls from.
// It never returns io.EOF; end of stream is the callback's silence.
type callbackReader struct {
	cb      Callback
	samples []float32
}

func newCallbackReader(cb Callback, size int) *callbackReader {
	return &callbackReader{cb: cb, samples: make([]float32, max(size, 1024))}
}

func (r *callbackReader) Read(p []byte) (int, error) {
	n := len(p) / 4
	if n == 0 {
		return 0, nil
	}
	if len(r.samples) < n {
		r.samples = make([]float32, n)
	}
	buf := r.samples[:n]
	clear(buf)
	r.cb(buf)

	for i, v := range buf {
		binary.LittleEndian.PutUint32(p[4*i:], math.Float32bits(v))
	}
	return n * 4, nil
}
