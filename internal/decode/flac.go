// SPDX-License-Identifier: MIT
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"

	"spectrolysis/internal/audio"
)

// FLAC decodes native FLAC streams frame by frame and interleaves the
// subframes.
type FLAC struct{}

func (FLAC) Decode(r io.ReadSeeker) (*audio.PCM, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("flac: %w", err)
	}
	defer stream.Close()

	info := stream.Info
	bits := int(info.BitsPerSample)
	if bits < 4 || bits > 32 {
		return nil, fmt.Errorf("flac: unsupported bit depth %d", bits)
	}
	scale := float32(int64(1) << (bits - 1))
	channels := int(info.NChannels)

	samples := make([]float32, 0, int(info.NSamples)*channels)
	for {
		frame, err := stream.ParseNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("flac: %w", err)
		}
		if len(frame.Subframes) != channels {
			return nil, fmt.Errorf("flac: frame has %d channels, stream has %d", len(frame.Subframes), channels)
		}
		for i := 0; i < frame.Subframes[0].NSamples; i++ {
			for _, sub := range frame.Subframes {
				samples = append(samples, float32(sub.Samples[i])/scale)
			}
		}
	}

	return audio.NewPCM(samples, int(info.SampleRate), channels, "flac", nil), nil
}
