// SPDX-License-Identifier: MIT
package transport

// Transport hands frames or events to a renderer. Implementations must be
// safe for concurrent use and must not retain slices from a Frame after Send
// returns; the caller reuses them on the next tick.
type Transport interface {
	Send(data any) error
	Close() error
}

// Band is a named frequency band level.
type Band struct {
	Name  string  `json:"name"`
	Level float32 `json:"level"`
}

// Frame is one render tick worth of output.
type Frame struct {
	Seq  uint64 `json:"seq"`
	Time int64  `json:"time"` // Unix nanoseconds.
	Mode string `json:"mode"` // "mic" or "player".

	Rows int `json:"rows"`
	Cols int `json:"cols"`
	// History is the row-major waterfall, oldest row first.
	History []float32 `json:"history,omitempty"`
	// Frequencies and Magnitudes are the unsmoothed 2D plot, Cols values each.
	Frequencies []float32 `json:"frequencies"`
	Magnitudes  []float32 `json:"magnitudes"`

	RMS   float32 `json:"rms"`
	Bands []Band  `json:"bands,omitempty"`

	PositionSec float64 `json:"positionSec,omitempty"`
	DurationSec float64 `json:"durationSec,omitempty"`
}

// NewestRow returns the most recent history row, or nil when the frame has
// no history.
func (f *Frame) NewestRow() []float32 {
	if f.Rows <= 0 || f.Cols <= 0 || len(f.History) < f.Rows*f.Cols {
		return nil
	}
	return f.History[(f.Rows-1)*f.Cols : f.Rows*f.Cols]
}
