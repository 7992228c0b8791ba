// SPDX-License-Identifier: MIT
package spectrogram

import "fmt"

// Index returns the offset of (row, col) in a row-major matrix with cols columns.
func Index(row, col, cols int) int {
	return row*cols + col
}

// ShiftRowsUp moves rows [shiftBy, rows) of a row-major matrix to
// [0, rows-shiftBy). The last shiftBy rows keep their previous content. No
// bounds checking is done; callers guarantee 0 < shiftBy < rows and
// len(m) >= rows*cols.
func ShiftRowsUp(m []float32, rows, cols, shiftBy int) {
	copy(m[:Index(rows-shiftBy, 0, cols)], m[Index(shiftBy, 0, cols):Index(rows, 0, cols)])
}

// History is a fixed-size waterfall of smoothed spectra. Row Rows()-1 holds
// the newest row and row 0 the oldest. History is not synchronized; it is
// mutated by the render loop only.
type History struct {
	rows int
	cols int
	data []float32
}

// NewHistory allocates a zeroed rows x cols history.
func NewHistory(rows, cols int) (*History, error) {
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("spectrogram: invalid dimensions %dx%d", rows, cols)
	}
	return &History{
		rows: rows,
		cols: cols,
		data: make([]float32, rows*cols),
	}, nil
}

func (h *History) Rows() int { return h.rows }
func (h *History) Cols() int { return h.cols }

// Data returns the live row-major buffer.
func (h *History) Data() []float32 { return h.data }

// Row returns the live slice backing row r.
func (h *History) Row(r int) []float32 {
	start := Index(r, 0, h.cols)
	return h.data[start : start+h.cols]
}

// Advance scrolls the history by one row and returns the newest row for the
// caller to overwrite. Until then it still holds the previous newest row.
func (h *History) Advance() []float32 {
	if h.rows > 1 {
		ShiftRowsUp(h.data, h.rows, h.cols, 1)
	}
	return h.Row(h.rows - 1)
}

// Push scrolls the history and copies row into the newest slot.
func (h *History) Push(row []float32) error {
	if len(row) != h.cols {
		return fmt.Errorf("spectrogram: row has %d columns, want %d", len(row), h.cols)
	}
	copy(h.Advance(), row)
	return nil
}

// CopyInto copies the whole history into dst, which must be Rows()*Cols() long.
func (h *History) CopyInto(dst []float32) error {
	if len(dst) != len(h.data) {
		return fmt.Errorf("spectrogram: destination length %d does not match %d", len(dst), len(h.data))
	}
	copy(dst, h.data)
	return nil
}

// Snapshot returns a copy of the history.
func (h *History) Snapshot() []float32 {
	out := make([]float32, len(h.data))
	copy(out, h.data)
	return out
}

// Reset zeroes every row.
func (h *History) Reset() {
	clear(h.data)
}
