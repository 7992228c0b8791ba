// SPDX-License-Identifier: MIT
package decode

import (
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
)

// readChunk is the number of ints pulled from a go-audio decoder per call.
const readChunk = 8192

// intScale returns the divisor mapping a signed integer of the given depth
// onto [-1, 1).
func intScale(bitDepth int) (float32, error) {
	switch bitDepth {
	case 8:
		return 128, nil
	case 16:
		return 32768, nil
	case 24:
		return 8388608, nil
	case 32:
		return 2147483648, nil
	}
	return 0, fmt.Errorf("unsupported bit depth %d", bitDepth)
}

// IntToFloat32 appends the linear conversion of src to dst. offset is added
// to each sample before scaling and is -128 for unsigned 8-bit data.
func IntToFloat32(dst []float32, src []int, bitDepth, offset int) ([]float32, error) {
	scale, err := intScale(bitDepth)
	if err != nil {
		return dst, err
	}
	for _, v := range src {
		dst = append(dst, float32(v+offset)/scale)
	}
	return dst, nil
}

// Int16LEToFloat32 converts little-endian 16-bit PCM bytes. A trailing odd
// byte is ignored.
func Int16LEToFloat32(dst []float32, src []byte) []float32 {
	for i := 0; i+1 < len(src); i += 2 {
		v := int16(uint16(src[i]) | uint16(src[i+1])<<8)
		dst = append(dst, float32(v)/32768)
	}
	return dst
}

// bitsToFloat32 reinterprets 32-bit IEEE float samples read as integers.
func bitsToFloat32(dst []float32, src []int) []float32 {
	for _, v := range src {
		dst = append(dst, math.Float32frombits(uint32(v)))
	}
	return dst
}

// pcmReader is the chunked read side shared by the go-audio decoders.
type pcmReader interface {
	Format() *goaudio.Format
	PCMBuffer(buf *goaudio.IntBuffer) (int, error)
}

// readAllInts drains r. sizeHint preallocates when the total is known.
func readAllInts(r pcmReader, sizeHint int) ([]int, error) {
	out := make([]int, 0, max(sizeHint, 0))
	buf := &goaudio.IntBuffer{Format: r.Format(), Data: make([]int, readChunk)}
	for {
		buf.Data = buf.Data[:readChunk]
		n, err := r.PCMBuffer(buf)
		out = append(out, buf.Data[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
		if n == 0 {
			return out, nil
		}
	}
}
