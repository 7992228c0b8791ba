// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"sync"

	"spectrolysis/internal/config"
	"spectrolysis/internal/fft"
	"spectrolysis/internal/smoothing"
	"spectrolysis/internal/source"
	"spectrolysis/internal/spectrogram"
)

// Options sizes the pipeline.
type Options struct {
	FFTLen   int
	AudioLen int
	Rows     int
	FloorDB  float64
	Scale    bool
	Window   fft.Window
	ConvRows int
	A, B, C  float32
}

// OptionsFromConfig maps a validated configuration onto Options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	w, err := fft.ParseWindow(cfg.Spectrum.Window)
	if err != nil {
		return Options{}, err
	}
	return Options{
		FFTLen:   cfg.Spectrum.FFTLen,
		AudioLen: cfg.Spectrum.AudioLen,
		Rows:     cfg.Spectrogram.Rows,
		FloorDB:  cfg.Spectrum.FloorDB,
		Scale:    cfg.Spectrum.Scale,
		Window:   w,
		ConvRows: cfg.Smoothing.ConvRows,
		A:        float32(cfg.Smoothing.A),
		B:        float32(cfg.Smoothing.B),
		C:        float32(cfg.Smoothing.C),
	}, nil
}

// Analyzer owns the transform, smoother and history. Tick is called from a
// single render goroutine; the read methods are safe from any goroutine.
type Analyzer struct {
	opts Options
	half int

	transform *fft.Transform
	smoother  *smoothing.Smoother

	samples  []float32 // FFTLen, the tail past AudioLen stays zero
	spectrum []float32 // packed transform output

	mu          sync.RWMutex
	history     *spectrogram.History
	magnitudes  []float32 // FFTLen/2, DC first
	frequencies []float32 // FFTLen/2
	sampleRate  int
	rms         float32
	ticks       uint64
}

// New allocates every buffer the pipeline needs. Tick does not allocate.
func New(opts Options) (*Analyzer, error) {
	if opts.AudioLen <= 0 || opts.AudioLen > opts.FFTLen {
		return nil, fmt.Errorf("analysis: audio length %d must be in [1, %d]", opts.AudioLen, opts.FFTLen)
	}
	if opts.Rows < 1 {
		return nil, fmt.Errorf("analysis: rows %d must be at least 1", opts.Rows)
	}

	transform, err := fft.NewTransform(opts.FFTLen)
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}
	if err := transform.SetWindow(opts.Window, opts.AudioLen); err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}

	smoother, err := smoothing.NewSmoother(opts.FFTLen, smoothing.HalfGaussian(opts.ConvRows), opts.A, opts.B, opts.C)
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}

	history, err := spectrogram.NewHistory(opts.Rows, smoother.Cols())
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}

	half := opts.FFTLen / 2
	return &Analyzer{
		opts:        opts,
		half:        half,
		transform:   transform,
		smoother:    smoother,
		samples:     make([]float32, opts.FFTLen),
		spectrum:    make([]float32, opts.FFTLen),
		history:     history,
		magnitudes:  make([]float32, half),
		frequencies: make([]float32, half),
	}, nil
}

// Tick runs one frame of the pipeline against src. A nil or paused source
// leaves the history untouched and Tick reports false.
func (a *Analyzer) Tick(src source.Source) (bool, error) {
	if src == nil || src.IsPaused() {
		return false, nil
	}

	window := a.samples[:a.opts.AudioLen]
	src.ReadLatest(window)
	rms := rootMeanSquare(window)

	if err := a.transform.Forward(a.spectrum, a.samples); err != nil {
		return false, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.transform.MagnitudeDB(a.magnitudes, a.spectrum, a.half, a.opts.Scale, a.opts.FloorDB); err != nil {
		return false, err
	}
	a.sampleRate = src.SampleRate()
	if err := a.transform.Frequencies(a.frequencies, float64(a.sampleRate), a.half); err != nil {
		return false, err
	}

	row := a.history.Advance()
	if err := a.smoother.BlurRow(row, a.magnitudes[1:a.half-1]); err != nil {
		return false, err
	}
	a.rms = rms
	a.ticks++
	return true, nil
}

// Reset clears the history and the temporal smoothing context.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history.Reset()
	a.smoother.Reset()
	clear(a.magnitudes)
	a.rms = 0
}

// Rows returns the number of history rows.
func (a *Analyzer) Rows() int { return a.history.Rows() }

// Cols returns the number of plotted columns, DC and Nyquist excluded.
func (a *Analyzer) Cols() int { return a.history.Cols() }

// FFTLen returns the transform length.
func (a *Analyzer) FFTLen() int { return a.opts.FFTLen }

// SampleRate returns the rate of the last analysed source.
func (a *Analyzer) SampleRate() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sampleRate
}

// Ticks returns the number of frames that advanced the history.
func (a *Analyzer) Ticks() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ticks
}

// RMS returns the root mean square of the last analysed sample window.
func (a *Analyzer) RMS() float32 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.rms
}

// FrequencyForBin returns the centre frequency (Hz) for a bin index.
func (a *Analyzer) FrequencyForBin(bin int) float64 {
	if bin < 0 || bin >= a.half {
		return 0
	}
	return float64(bin) * a.transform.BinWidth(float64(a.SampleRate()))
}

// MagnitudesInto copies the latest unsmoothed magnitude row (FFTLen/2
// values, DC first) into dst.
func (a *Analyzer) MagnitudesInto(dst []float32) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(dst) != len(a.magnitudes) {
		return fmt.Errorf("analysis: destination length %d does not match %d", len(dst), len(a.magnitudes))
	}
	copy(dst, a.magnitudes)
	return nil
}

// HistoryInto copies the row-major history into dst.
func (a *Analyzer) HistoryInto(dst []float32) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.history.CopyInto(dst)
}

// LatestRowInto copies the newest smoothed history row into dst.
func (a *Analyzer) LatestRowInto(dst []float32) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(dst) != a.history.Cols() {
		return fmt.Errorf("analysis: destination length %d does not match %d", len(dst), a.history.Cols())
	}
	copy(dst, a.history.Row(a.history.Rows()-1))
	return nil
}

// View calls fn with the live history, the plotted frequencies and the
// matching unsmoothed magnitudes while holding the read lock. fn must not
// retain the slices.
func (a *Analyzer) View(fn func(history, frequencies, magnitudes []float32)) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	fn(a.history.Data(), a.frequencies[1:a.half-1], a.magnitudes[1:a.half-1])
}

func rootMeanSquare(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(samples))))
}
