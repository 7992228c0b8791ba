// SPDX-License-Identifier: MIT
package smoothing

import (
	"errors"
	"fmt"
	"math"

	"spectrolysis/internal/spectrogram"
	"spectrolysis/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
)

// InsertWeight is the default tap for InsertRow, spreading two rows over a
// 3x3 neighbourhood that sums to 1.
const InsertWeight = 1.0 / 6

// ErrRowLength is returned when a row does not have Cols() elements.
var ErrRowLength = errors.New("smoothing: row length mismatch")

// Smoother blurs each new spectrum row with a separable kernel: a 3-tap
// spectral kernel [a b c] applied through the transform domain, followed by a
// convRows-tap temporal kernel applied as a direct weighted sum over the
// previous convRows-1 horizontally convolved rows.
//
// Rows passed in and out have Cols() = fftLen/2-2 elements (DC and Nyquist
// excluded). A Smoother is owned by the render loop and is not safe for
// concurrent use.
type Smoother struct {
	width    int // fftLen/2, the padded row length
	cols     int // width-2
	convRows int

	colKernel []float32
	a, b, c   float32

	fft        *fourier.FFT
	kernCoeff  []complex128 // transform of [a b c 0 ...], fixed
	rowCoeff   []complex128
	scratch    []complex128 // InsertRow kernel
	padded     []float64
	horizontal []float64 // current row after the spectral pass
	extra      []float64 // second row for InsertRow

	// previousRows is (convRows-1) x width, row-major, oldest first. It holds
	// horizontally convolved rows only.
	previousRows []float32
}

// NewSmoother creates a Smoother for transforms of length fftLen. colKernel
// holds the temporal taps, oldest row first; its length fixes convRows.
func NewSmoother(fftLen int, colKernel []float32, a, b, c float32) (*Smoother, error) {
	if !bitint.IsPowerOfTwo(fftLen) || fftLen <= 32 {
		return nil, fmt.Errorf("smoothing: fft length %d must be a power of two greater than 32", fftLen)
	}
	if len(colKernel) < 2 {
		return nil, fmt.Errorf("smoothing: column kernel needs at least 2 taps, got %d", len(colKernel))
	}

	width := fftLen / 2
	s := &Smoother{
		width:        width,
		cols:         width - 2,
		convRows:     len(colKernel),
		colKernel:    append([]float32(nil), colKernel...),
		a:            a,
		b:            b,
		c:            c,
		fft:          fourier.NewFFT(width),
		kernCoeff:    make([]complex128, width/2+1),
		rowCoeff:     make([]complex128, width/2+1),
		scratch:      make([]complex128, width/2+1),
		padded:       make([]float64, width),
		horizontal:   make([]float64, width),
		extra:        make([]float64, width),
		previousRows: make([]float32, (len(colKernel)-1)*width),
	}
	s.kernelCoefficients(s.kernCoeff, a, b, c)
	return s, nil
}

// Cols returns the row length accepted by BlurRow and InsertRow.
func (s *Smoother) Cols() int { return s.cols }

// ConvRows returns the number of temporal taps.
func (s *Smoother) ConvRows() int { return s.convRows }

// Reset clears the temporal context.
func (s *Smoother) Reset() {
	clear(s.previousRows)
}

// BlurRow smooths row into dst and pushes the horizontally convolved row onto
// the temporal context. dst may alias row.
func (s *Smoother) BlurRow(dst, row []float32) error {
	if len(row) != s.cols || len(dst) != s.cols {
		return fmt.Errorf("%w: want %d, got row=%d dst=%d", ErrRowLength, s.cols, len(row), len(dst))
	}

	s.convolveRow(s.horizontal, row, s.kernCoeff)

	last := s.convRows - 1
	current := s.colKernel[last]
	for j := 1; j <= s.cols; j++ {
		var sum float32
		for i := range last {
			sum += s.colKernel[i] * s.previousRows[spectrogram.Index(i, j, s.width)]
		}
		sum += current * float32(s.horizontal[j])
		dst[j-1] = sum
	}

	if last > 1 {
		spectrogram.ShiftRowsUp(s.previousRows, last, s.width, 1)
	}
	tail := s.previousRows[spectrogram.Index(last-1, 0, s.width):]
	for j, v := range s.horizontal {
		tail[j] = float32(v)
	}
	return nil
}

// InsertRow builds an interpolated row between row0 and row1 with the
// separable kernel [a b c] x [1; 0; 1]. It does not touch the temporal context.
func (s *Smoother) InsertRow(dst, row0, row1 []float32, a, b, c float32) error {
	if len(row0) != s.cols || len(row1) != s.cols || len(dst) != s.cols {
		return fmt.Errorf("%w: want %d, got row0=%d row1=%d dst=%d",
			ErrRowLength, s.cols, len(row0), len(row1), len(dst))
	}

	s.kernelCoefficients(s.scratch, a, b, c)
	s.convolveRow(s.horizontal, row0, s.scratch)
	s.convolveRow(s.extra, row1, s.scratch)

	for j := 1; j <= s.cols; j++ {
		dst[j-1] = float32(s.horizontal[j] + s.extra[j])
	}
	return nil
}

// convolveRow zero-pads row to the padded width and convolves it with the
// kernel whose transform is kern, writing all width samples to dst. The two
// trailing zeros make the circular convolution linear over the row.
func (s *Smoother) convolveRow(dst []float64, row []float32, kern []complex128) {
	for j, v := range row {
		s.padded[j] = float64(v)
	}
	s.padded[s.cols] = 0
	s.padded[s.cols+1] = 0

	s.fft.Coefficients(s.rowCoeff, s.padded)
	for k := range s.rowCoeff {
		s.rowCoeff[k] *= kern[k]
	}
	s.fft.Sequence(dst, s.rowCoeff)

	scale := 1 / float64(s.width)
	for j := range dst {
		dst[j] *= scale
	}
}

func (s *Smoother) kernelCoefficients(dst []complex128, a, b, c float32) {
	clear(s.padded)
	s.padded[0] = float64(a)
	s.padded[1] = float64(b)
	s.padded[2] = float64(c)
	s.fft.Coefficients(dst, s.padded)
}

// HalfGaussian returns n normalized taps of a Gaussian sampled from x=4
// (index 0, oldest) to x=0 (index n-1, current). The taps sum to 1 and never
// increase toward index 0.
func HalfGaussian(n int) []float32 {
	if n <= 0 {
		return nil
	}
	kernel := make([]float32, n)
	if n == 1 {
		kernel[0] = 1
		return kernel
	}

	var sum float64
	probs := make([]float64, n)
	for i := range n {
		x := 4 * float64(n-1-i) / float64(n-1)
		probs[i] = math.Exp(-x * x / 2)
		sum += probs[i]
	}
	for i, p := range probs {
		kernel[i] = float32(p / sum)
	}
	return kernel
}
