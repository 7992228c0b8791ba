// SPDX-License-Identifier: MIT
/*
Package source provides the audio sources the spectrogram reads from.

Both variants expose the same window contract: ReadLatest fills dst with the
len(dst) samples ending at the current position, or with silence when the
source is paused or the window cannot be served. Positions are counted in
float32 samples; one sample is 4 bytes.
*/
package source

// Source is an audio stream the render loop can sample.
type Source interface {
	IsPaused() bool
	// SampleRate returns the obtained rate in Hz, 0 when nothing is open.
	SampleRate() int
	ReadLatest(dst []float32)
}

var (
	_ Source = (*RingSource)(nil)
	_ Source = (*PlaybackSource)(nil)
)

// bytesPerSample is the size of one float32 sample.
const bytesPerSample = 4
