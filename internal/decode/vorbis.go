// SPDX-License-Identifier: MIT
package decode

import (
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"

	"spectrolysis/internal/audio"
)

// Vorbis decodes Ogg Vorbis streams. The codec already yields float32.
type Vorbis struct{}

func (Vorbis) Decode(r io.ReadSeeker) (*audio.PCM, error) {
	samples, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ogg: %w", err)
	}
	return audio.NewPCM(samples, format.SampleRate, format.Channels, "ogg", nil), nil
}
