// SPDX-License-Identifier: MIT
/*
Package decode turns audio files into fully decoded interleaved float32 PCM.

Each container has its own Decoder; a Registry dispatches on the file
extension. Integer encodings are converted to float32 once, at decode time.
*/
package decode

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"spectrolysis/internal/audio"
)

// ErrUnsupportedFormat is returned for extensions with no registered decoder.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Decoder decodes a whole stream into memory.
type Decoder interface {
	Decode(r io.ReadSeeker) (*audio.PCM, error)
}

// Registry maps lowercase extensions (without the dot) to decoders.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
}

func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]Decoder)}
}

// NewDefaultRegistry returns a registry with every built-in format.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("wav", WAV{})
	r.Register("wave", WAV{})
	r.Register("aiff", AIFF{})
	r.Register("aif", AIFF{})
	r.Register("mp3", MP3{})
	r.Register("ogg", Vorbis{})
	r.Register("flac", FLAC{})
	return r
}

func (r *Registry) Register(ext string, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[normalizeExt(ext)] = d
}

func (r *Registry) Get(ext string) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decoders[normalizeExt(ext)]
	return d, ok
}

// Extensions lists the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.decoders))
	for ext := range r.decoders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// DecodeFile picks a decoder by the extension of path and decodes the file.
func (r *Registry) DecodeFile(path string) (*audio.PCM, error) {
	ext := filepath.Ext(path)
	d, ok := r.Get(ext)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pcm, err := d.Decode(f)
	if err != nil {
		return nil, err
	}
	if pcm.SampleRate <= 0 || pcm.Channels <= 0 {
		pcm.Release()
		return nil, fmt.Errorf("invalid stream format %d Hz x %d", pcm.SampleRate, pcm.Channels)
	}
	return pcm, nil
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
