// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ExportWAV writes interleaved float32 samples to a 16-bit PCM WAV file.
// Samples are clamped to [-1, 1].
func ExportWAV(path string, samples []float32, spec Spec) error {
	if spec.SampleRate <= 0 || spec.Channels <= 0 {
		return fmt.Errorf("invalid export spec %d Hz x %d", spec.SampleRate, spec.Channels)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := wav.NewEncoder(file, spec.SampleRate, 16, spec.Channels, 1)

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: spec.Channels,
			SampleRate:  spec.SampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		buf.Data[i] = int(max(-1, min(1, s)) * 32767)
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}
	return nil
}
