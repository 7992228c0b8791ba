// SPDX-License-Identifier: MIT
/*
Package analysis runs the per-tick spectrogram pipeline: read the latest
samples from a source, zero-pad, transform, convert to decibels, blur and
append the result to the scrolling history.
*/
package analysis

// ResultProvider exposes the latest spectrum to readers on other
// goroutines. Consumers such as BandMeter depend on this instead of the
// concrete Analyzer.
type ResultProvider interface {
	// MagnitudesInto copies the latest unsmoothed magnitude row into dst.
	MagnitudesInto(dst []float32) error
	// FrequencyForBin returns the centre frequency (Hz) of a bin, 0 when out of range.
	FrequencyForBin(bin int) float64
	FFTLen() int
	// SampleRate returns the rate of the last analysed source.
	SampleRate() int
}

var _ ResultProvider = (*Analyzer)(nil)
