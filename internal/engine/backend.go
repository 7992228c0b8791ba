// SPDX-License-Identifier: MIT
package engine

import (
	"fmt"

	"spectrolysis/internal/audio"
)

// NewBackend returns the audio backend registered under name.
func NewBackend(name string) (audio.Backend, error) {
	switch name {
	case "portaudio":
		return audio.NewPortAudioBackend(), nil
	case "oto":
		return audio.NewOtoBackend(), nil
	case "null":
		return audio.NewNullBackend(true), nil
	}
	return nil, fmt.Errorf("unknown audio backend %q", name)
}
