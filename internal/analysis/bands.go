// SPDX-License-Identifier: MIT
package analysis

import "fmt"

// FrequencyBand names a frequency range and carries its latest level.
type FrequencyBand struct {
	Name   string  `json:"name"`
	LowHz  float64 `json:"lowHz"`
	HighHz float64 `json:"highHz"`
	Level  float32 `json:"level"` // Mean magnitude of the bins in range.
}

// DefaultBands covers the audible range in six musical regions. The top band
// is open ended and is clipped to Nyquist at measurement time.
func DefaultBands() []FrequencyBand {
	return []FrequencyBand{
		{Name: "sub", LowHz: 20, HighHz: 60},
		{Name: "bass", LowHz: 60, HighHz: 250},
		{Name: "lowMid", LowHz: 250, HighHz: 500},
		{Name: "mid", LowHz: 500, HighHz: 2000},
		{Name: "highMid", LowHz: 2000, HighHz: 4000},
		{Name: "treble", LowHz: 4000, HighHz: 1e9},
	}
}

// BandMeter averages the latest magnitudes of a ResultProvider over a set of
// bands.
type BandMeter struct {
	provider   ResultProvider
	bands      []FrequencyBand
	magnitudes []float32
	counts     []int
}

// NewBandMeter creates a meter for the given bands. It panics on a nil
// provider, which is a wiring error.
func NewBandMeter(provider ResultProvider, bands []FrequencyBand) *BandMeter {
	if provider == nil {
		panic("analysis: BandMeter requires a non-nil ResultProvider")
	}
	return &BandMeter{
		provider:   provider,
		bands:      append([]FrequencyBand(nil), bands...),
		magnitudes: make([]float32, provider.FFTLen()/2),
		counts:     make([]int, len(bands)),
	}
}

// Measure refreshes every band level and returns the bands. The returned
// slice is owned by the meter and overwritten on the next call.
func (m *BandMeter) Measure() ([]FrequencyBand, error) {
	if err := m.provider.MagnitudesInto(m.magnitudes); err != nil {
		return nil, fmt.Errorf("band meter: %w", err)
	}

	for i := range m.bands {
		m.bands[i].Level = 0
		m.counts[i] = 0
	}

	width := float64(m.provider.SampleRate()) / float64(m.provider.FFTLen())

	// DC is skipped, as in the plotted spectrum.
	for bin := 1; bin < len(m.magnitudes); bin++ {
		freq := float64(bin) * width
		for i := range m.bands {
			if freq >= m.bands[i].LowHz && freq < m.bands[i].HighHz {
				m.bands[i].Level += m.magnitudes[bin]
				m.counts[i]++
				break
			}
		}
	}

	for i := range m.bands {
		if m.counts[i] > 0 {
			m.bands[i].Level /= float32(m.counts[i])
		}
	}
	return m.bands, nil
}
