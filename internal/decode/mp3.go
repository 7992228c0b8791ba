// SPDX-License-Identifier: MIT
package decode

import (
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"spectrolysis/internal/audio"
)

// go-mp3 always produces 16-bit little-endian stereo.
const mp3Channels = 2

// MP3 decodes MPEG-1/2 layer III streams.
type MP3 struct{}

func (MP3) Decode(r io.ReadSeeker) (*audio.PCM, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	samples := Int16LEToFloat32(make([]float32, 0, len(raw)/2), raw)

	return audio.NewPCM(samples, dec.SampleRate(), mp3Channels, "mp3", nil), nil
}
