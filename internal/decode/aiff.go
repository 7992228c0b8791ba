// SPDX-License-Identifier: MIT
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/aiff"

	"spectrolysis/internal/audio"
)

var ErrNotAIFF = errors.New("not an aiff file")

// AIFF decodes big-endian integer AIFF files.
type AIFF struct{}

func (AIFF) Decode(r io.ReadSeeker) (*audio.PCM, error) {
	dec := aiff.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrNotAIFF
	}
	dec.ReadInfo()

	format := dec.Format()
	if format == nil {
		return nil, fmt.Errorf("aiff: missing format")
	}

	ints, err := readAllInts(dec, 0)
	if err != nil {
		return nil, fmt.Errorf("aiff: %w", err)
	}
	samples, err := IntToFloat32(make([]float32, 0, len(ints)), ints, int(dec.BitDepth), 0)
	if err != nil {
		return nil, fmt.Errorf("aiff: %w", err)
	}

	return audio.NewPCM(samples, format.SampleRate, format.NumChannels, "aiff", nil), nil
}
