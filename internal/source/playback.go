// SPDX-License-Identifier: MIT
package source

import (
	"fmt"
	"sync"
	"sync/atomic"

	"spectrolysis/internal/audio"
	"spectrolysis/internal/log"
)

// Decoder turns a file into float32 PCM.
type Decoder interface {
	DecodeFile(path string) (*audio.PCM, error)
}

// track is an immutable loaded buffer. Callbacks and readers load it through
// an atomic pointer so a swap never tears.
type track struct {
	pcm     *audio.PCM
	samples []float32
	rate    int
	perSec  int64 // samples per second, rate * channels
}

// PlaybackSource plays a fully decoded buffer and samples it behind the play
// cursor. The cursor is advanced by the output callback only.
type PlaybackSource struct {
	backend         audio.Backend
	deviceID        int
	framesPerBuffer int

	devMu  sync.Mutex // serializes Load, Play, Pause and Close
	device audio.Device

	track   atomic.Pointer[track]
	readPos atomic.Int64 // samples, never above len(track.samples)
	paused  atomic.Bool

	ended chan struct{} // end of stream, buffered 1
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once

	stops atomic.Int64 // end-of-stream stops performed
}

// NewPlaybackSource creates an empty, paused source that will open playback
// device id with framesPerBuffer frames per callback on every Load.
func NewPlaybackSource(backend audio.Backend, id, framesPerBuffer int) *PlaybackSource {
	p := &PlaybackSource{
		backend:         backend,
		deviceID:        id,
		framesPerBuffer: framesPerBuffer,
		ended:           make(chan struct{}, 1),
		done:            make(chan struct{}),
	}
	p.paused.Store(true)
	p.wg.Add(1)
	go p.monitor()
	return p
}

// monitor stops the device when the callback reports end of stream. The
// callback cannot stop its own stream.
func (p *PlaybackSource) monitor() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case <-p.ended:
			p.devMu.Lock()
			if p.device != nil && p.paused.Load() {
				if err := p.device.Stop(); err != nil {
					log.Warnf("Source: stopping playback at end of stream: %v", err)
				}
				p.stops.Add(1)
				log.Debugf("Source: playback reached end of stream")
			}
			p.devMu.Unlock()
		}
	}
}

// LoadFile decodes path with dec and loads it. A decode failure returns a
// DecodeError and leaves the current buffer untouched.
func (p *PlaybackSource) LoadFile(path string, dec Decoder) error {
	pcm, err := dec.DecodeFile(path)
	if err != nil {
		return &DecodeError{Path: path, Err: err}
	}
	if err := p.Load(pcm); err != nil {
		pcm.Release()
		return err
	}
	log.Infof("Source: loaded %s (%s, %d Hz, %d ch, %.1fs)",
		path, pcm.Format, pcm.SampleRate, pcm.Channels, p.TotalTimeSec())
	return nil
}

// Load replaces the current buffer with pcm, rewinds and pauses. The new
// device is opened first; on failure the previous buffer and device are kept
// and the caller still owns pcm. On success the source owns pcm and releases
// the previous buffer after its device is closed.
func (p *PlaybackSource) Load(pcm *audio.PCM) error {
	if pcm == nil || pcm.SampleRate <= 0 || pcm.Channels <= 0 {
		return &DecodeError{Path: "<pcm>", Err: fmt.Errorf("invalid pcm spec")}
	}

	p.devMu.Lock()
	defer p.devMu.Unlock()

	dev, err := p.backend.Open(audio.Playback, p.deviceID, pcm.Spec(p.framesPerBuffer), p.onPlayback)
	if err != nil {
		return &DeviceError{Op: "open playback", Device: deviceLabel(p.deviceID), Err: err}
	}

	p.paused.Store(true)
	if p.device != nil {
		if err := p.device.Close(); err != nil {
			log.Warnf("Source: closing previous playback device: %v", err)
		}
	}

	// Drain a stale end-of-stream signal from the previous track.
	select {
	case <-p.ended:
	default:
	}

	old := p.track.Swap(&track{
		pcm:     pcm,
		samples: pcm.Samples,
		rate:    dev.Spec().SampleRate,
		perSec:  int64(dev.Spec().SampleRate) * int64(pcm.Channels),
	})
	p.readPos.Store(0)
	p.device = dev

	if old != nil {
		old.pcm.Release()
	}
	return nil
}

// Play unpauses and starts the stream.
func (p *PlaybackSource) Play() error {
	p.devMu.Lock()
	defer p.devMu.Unlock()
	if p.device == nil || p.track.Load() == nil {
		return &DeviceError{Op: "play", Device: "playback", Err: ErrNotLoaded}
	}
	p.paused.Store(false)
	if err := p.device.Start(); err != nil {
		p.paused.Store(true)
		return &DeviceError{Op: "play", Device: "playback", Err: err}
	}
	return nil
}

// Pause stops the stream. ReadLatest returns silence until Play.
func (p *PlaybackSource) Pause() error {
	p.devMu.Lock()
	defer p.devMu.Unlock()
	var err error
	if p.device != nil {
		err = p.device.Stop()
	}
	p.paused.Store(true)
	if err != nil {
		return &DeviceError{Op: "pause", Device: "playback", Err: err}
	}
	return nil
}

func (p *PlaybackSource) IsPaused() bool { return p.paused.Load() }

func (p *PlaybackSource) SampleRate() int {
	if t := p.track.Load(); t != nil {
		return t.rate
	}
	return 0
}

// Loaded reports whether a buffer is loaded.
func (p *PlaybackSource) Loaded() bool { return p.track.Load() != nil }

// Seek moves the cursor to seconds, clamped to [0, total], on a frame boundary.
func (p *PlaybackSource) Seek(seconds float64) {
	t := p.track.Load()
	if t == nil || t.perSec == 0 {
		return
	}
	channels := t.perSec / int64(t.rate)
	total := int64(len(t.samples))
	pos := int64(min(max(seconds, 0)*float64(t.perSec), float64(total)))
	pos -= pos % channels
	p.readPos.Store(pos)
}

// SkipToStart rewinds the cursor.
func (p *PlaybackSource) SkipToStart() {
	p.readPos.Store(0)
}

// PositionBytes returns the cursor in bytes.
func (p *PlaybackSource) PositionBytes() int64 {
	return p.readPos.Load() * bytesPerSample
}

// TotalBytes returns the loaded buffer size in bytes.
func (p *PlaybackSource) TotalBytes() int64 {
	if t := p.track.Load(); t != nil {
		return int64(len(t.samples)) * bytesPerSample
	}
	return 0
}

// CurrentTimeSec returns the cursor in seconds, never past TotalTimeSec.
func (p *PlaybackSource) CurrentTimeSec() float64 {
	t := p.track.Load()
	if t == nil || t.perSec == 0 {
		return 0
	}
	return min(float64(p.readPos.Load())/float64(t.perSec), p.TotalTimeSec())
}

// TotalTimeSec returns the loaded duration in seconds.
func (p *PlaybackSource) TotalTimeSec() float64 {
	t := p.track.Load()
	if t == nil || t.perSec == 0 {
		return 0
	}
	return float64(len(t.samples)) / float64(t.perSec)
}

// ReadLatest copies the len(dst) samples before the cursor into dst. It reads
// silence when paused, before len(dst) samples have played, or at the end.
func (p *PlaybackSource) ReadLatest(dst []float32) {
	t := p.track.Load()
	if p.paused.Load() || t == nil {
		clear(dst)
		return
	}
	pos := p.readPos.Load()
	n := int64(len(dst))
	if pos > n && pos < int64(len(t.samples)) {
		copy(dst, t.samples[pos-n:pos])
		return
	}
	clear(dst)
}

// onPlayback is the output callback. It copies forward from the cursor,
// zero-fills past the end, and on reaching the end pauses and asks the
// monitor to stop the stream, exactly once per end.
func (p *PlaybackSource) onPlayback(out []float32) {
	t := p.track.Load()
	if p.paused.Load() || t == nil {
		clear(out)
		return
	}

	pos := p.readPos.Load()
	total := int64(len(t.samples))
	n := 0
	if pos < total {
		n = copy(out, t.samples[pos:])
	}
	clear(out[n:])

	next := pos + int64(n)
	// A concurrent Seek wins over this advance.
	p.readPos.CompareAndSwap(pos, next)

	if next >= total && p.paused.CompareAndSwap(false, true) {
		select {
		case p.ended <- struct{}{}:
		default:
		}
	}
}

// Close stops the monitor, closes the device and then releases the buffer.
func (p *PlaybackSource) Close() error {
	var err error
	p.once.Do(func() {
		close(p.done)
		p.wg.Wait()

		p.devMu.Lock()
		defer p.devMu.Unlock()
		p.paused.Store(true)
		if p.device != nil {
			err = p.device.Close()
			p.device = nil
		}
		if t := p.track.Swap(nil); t != nil {
			t.pcm.Release()
		}
		p.readPos.Store(0)
	})
	return err
}
