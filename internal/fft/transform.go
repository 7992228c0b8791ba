// SPDX-License-Identifier: MIT
package fft

import (
	"errors"
	"fmt"
	"math"

	"spectrolysis/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
)

// MinLen is the exclusive lower bound for a transform length.
const MinLen = 32

// epsilon floors the per-bin power before the logarithm.
const epsilon = 1e-20

var (
	// ErrSize is returned when a transform length is not a power of two > MinLen.
	ErrSize = errors.New("fft: transform length must be a power of two greater than 32")
	// ErrLength is returned when a caller passes a buffer of the wrong length.
	ErrLength = errors.New("fft: buffer length mismatch")
	// ErrFloor is returned by MagnitudeDB when the decibel floor is zero.
	ErrFloor = errors.New("fft: decibel floor must be non-zero")
)

// Transform is an owned real-input forward transform of a fixed length N.
// Its packed output layout is
//
//	[DC, Nyquist, Re(1), Im(1), Re(2), Im(2), ..., Re(N/2-1), Im(N/2-1)]
//
// and it is unscaled, so a full-scale sine centred on bin k has magnitude N/2.
// A Transform owns its scratch buffers and is not safe for concurrent use;
// create one per goroutine.
type Transform struct {
	n      int
	fft    *fourier.FFT
	input  []float64
	coeff  []complex128
	window []float64 // nil when no window is applied

	dbOffset float64 // 20*log10(n)
}

// NewTransform creates a transform context of length n.
func NewTransform(n int) (*Transform, error) {
	if n <= MinLen || !bitint.IsPowerOfTwo(n) {
		return nil, fmt.Errorf("%w: got %d", ErrSize, n)
	}
	return &Transform{
		n:        n,
		fft:      fourier.NewFFT(n),
		input:    make([]float64, n),
		coeff:    make([]complex128, n/2+1),
		dbOffset: 20 * math.Log10(float64(n)),
	}, nil
}

// Len returns the transform length.
func (t *Transform) Len() int { return t.n }

// SetWindow selects the analysis window applied by Forward to the first
// length input samples, the audio block ahead of any zero padding. Samples
// past length pass through unchanged. WindowNone disables windowing.
func (t *Transform) SetWindow(w Window, length int) error {
	if w == WindowNone {
		t.window = nil
		return nil
	}
	if length < 1 || length > t.n {
		return fmt.Errorf("%w: window length %d outside [1, %d]", ErrLength, length, t.n)
	}
	coeffs := make([]float64, length)
	fillWindow(coeffs, w)
	t.window = coeffs
	return nil
}

// Forward transforms src into dst using the packed layout. Both slices must
// have length Len(); dst may alias src.
func (t *Transform) Forward(dst, src []float32) error {
	if len(src) != t.n || len(dst) != t.n {
		return fmt.Errorf("%w: forward wants %d, got src=%d dst=%d", ErrLength, t.n, len(src), len(dst))
	}

	for i, v := range src {
		t.input[i] = float64(v)
	}
	for i, w := range t.window {
		t.input[i] *= w
	}

	t.fft.Coefficients(t.coeff, t.input)

	half := t.n / 2
	dst[0] = float32(real(t.coeff[0]))
	dst[1] = float32(real(t.coeff[half]))
	for k := 1; k < half; k++ {
		dst[2*k] = float32(real(t.coeff[k]))
		dst[2*k+1] = float32(imag(t.coeff[k]))
	}
	return nil
}

// Inverse maps a packed spectrum back to the time domain. Like Forward it is
// unscaled: Inverse(Forward(x)) == Len() * x.
func (t *Transform) Inverse(dst, src []float32) error {
	if len(src) != t.n || len(dst) != t.n {
		return fmt.Errorf("%w: inverse wants %d, got src=%d dst=%d", ErrLength, t.n, len(src), len(dst))
	}

	half := t.n / 2
	t.coeff[0] = complex(float64(src[0]), 0)
	t.coeff[half] = complex(float64(src[1]), 0)
	for k := 1; k < half; k++ {
		t.coeff[k] = complex(float64(src[2*k]), float64(src[2*k+1]))
	}

	t.fft.Sequence(t.input, t.coeff)
	for i, v := range t.input {
		dst[i] = float32(v)
	}
	return nil
}

// Magnitude extracts linear magnitudes from a packed spectrum into
// dst[:length]. dst[0] is DC as-is; when length > Len()/2 the Nyquist term is
// written as-is to dst[Len()/2]. With normalize the magnitudes are divided by
// 2*Len().
func (t *Transform) Magnitude(dst, packed []float32, length int, normalize bool) error {
	if err := t.checkExtract(dst, packed, length); err != nil {
		return err
	}

	half := t.n / 2
	dst[0] = packed[0]
	if length > half {
		dst[half] = packed[1]
	}

	norm := float32(1)
	if normalize {
		norm = 1 / float32(2*t.n)
	}
	for i := 1; i < min(length, half); i++ {
		re := float64(packed[2*i])
		im := float64(packed[2*i+1])
		dst[i] = float32(math.Sqrt(re*re+im*im)) * norm
	}
	return nil
}

// MagnitudeDB extracts decibel magnitudes relative to a full-scale bin
// (|X| == Len()) into dst[:length], clamped below at -|floorDB|. With scale the
// result is mapped linearly so that the floor is 0 and 0 dB is 1.
func (t *Transform) MagnitudeDB(dst, packed []float32, length int, scale bool, floorDB float64) error {
	if err := t.checkExtract(dst, packed, length); err != nil {
		return err
	}
	floor := -math.Abs(floorDB)
	if floor == 0 {
		return ErrFloor
	}

	half := t.n / 2
	dst[0] = t.db(float64(packed[0])*float64(packed[0]), floor, scale)
	if length > half {
		dst[half] = t.db(float64(packed[1])*float64(packed[1]), floor, scale)
	}
	for i := 1; i < min(length, half); i++ {
		re := float64(packed[2*i])
		im := float64(packed[2*i+1])
		dst[i] = t.db(re*re+im*im, floor, scale)
	}
	return nil
}

func (t *Transform) db(power, floor float64, scale bool) float32 {
	dB := 10*math.Log10(max(power, epsilon)) - t.dbOffset
	dB = max(dB, floor)
	if scale {
		return float32(1 - dB/floor)
	}
	return float32(dB)
}

func (t *Transform) checkExtract(dst, packed []float32, length int) error {
	if len(packed) != t.n {
		return fmt.Errorf("%w: packed spectrum wants %d, got %d", ErrLength, t.n, len(packed))
	}
	if length < 1 || length > t.n/2+1 || len(dst) < length {
		return fmt.Errorf("%w: length %d outside [1, %d] or dst too short (%d)", ErrLength, length, t.n/2+1, len(dst))
	}
	return nil
}

// BinWidth returns the frequency spacing in Hz between adjacent bins.
func (t *Transform) BinWidth(sampleRate float64) float64 {
	return sampleRate / float64(t.n)
}

// Frequencies writes the centre frequency of bins [0, length) into dst.
func (t *Transform) Frequencies(dst []float32, sampleRate float64, length int) error {
	if length < 1 || length > t.n/2+1 || len(dst) < length {
		return fmt.Errorf("%w: length %d outside [1, %d] or dst too short (%d)", ErrLength, length, t.n/2+1, len(dst))
	}
	width := t.BinWidth(sampleRate)
	for i := range length {
		dst[i] = float32(float64(i) * width)
	}
	return nil
}
