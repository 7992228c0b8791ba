// SPDX-License-Identifier: MIT
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/wav"

	"spectrolysis/internal/audio"
)

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

var ErrNotWAV = errors.New("not a wav file")

// WAV decodes RIFF/WAVE files with integer PCM or 32-bit float data.
type WAV struct{}

func (WAV) Decode(r io.ReadSeeker) (*audio.PCM, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrNotWAV
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}

	format := dec.Format()
	depth := int(dec.BitDepth)
	hint := 0
	if depth > 0 {
		hint = int(dec.PCMLen()) / (depth / 8)
	}

	ints, err := readAllInts(dec, hint)
	if err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}

	var samples []float32
	switch {
	case dec.WavAudioFormat == wavFormatFloat && depth == 32:
		samples = bitsToFloat32(make([]float32, 0, len(ints)), ints)
	case dec.WavAudioFormat == wavFormatPCM:
		offset := 0
		if depth == 8 {
			offset = -128
		}
		samples, err = IntToFloat32(make([]float32, 0, len(ints)), ints, depth, offset)
		if err != nil {
			return nil, fmt.Errorf("wav: %w", err)
		}
	default:
		return nil, fmt.Errorf("wav: unsupported encoding %d at %d bits", dec.WavAudioFormat, depth)
	}

	return audio.NewPCM(samples, format.SampleRate, format.NumChannels, "wav", nil), nil
}
