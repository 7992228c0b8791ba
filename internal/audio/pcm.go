// SPDX-License-Identifier: MIT
package audio

import "sync"

// PCM is a fully decoded interleaved float32 buffer. It carries the release
// function of whatever produced it so the owner always frees it through the
// matching path.
type PCM struct {
	Samples    []float32
	SampleRate int
	Channels   int
	Format     string // decoder name, for diagnostics

	once    sync.Once
	release func()
}

// NewPCM wraps samples. release may be nil.
func NewPCM(samples []float32, sampleRate, channels int, format string, release func()) *PCM {
	return &PCM{
		Samples:    samples,
		SampleRate: sampleRate,
		Channels:   channels,
		Format:     format,
		release:    release,
	}
}

// Frames returns the number of sample frames.
func (p *PCM) Frames() int {
	if p.Channels == 0 {
		return 0
	}
	return len(p.Samples) / p.Channels
}

// Spec returns the stream spec of the buffer for a given callback size.
func (p *PCM) Spec(framesPerBuffer int) Spec {
	return Spec{SampleRate: p.SampleRate, Channels: p.Channels, FramesPerBuffer: framesPerBuffer}
}

// Release hands the buffer back to its producer. It is safe to call more
// than once.
func (p *PCM) Release() {
	p.once.Do(func() {
		if p.release != nil {
			p.release()
		}
	})
}
