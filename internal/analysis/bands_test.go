// SPDX-License-Identifier: MIT
package analysis

import "testing"

func TestBandMeter(t *testing.T) {
	a := newTestAnalyzer(t)
	if _, err := a.Tick(sineSource()); err != nil {
		t.Fatal(err)
	}

	bands, err := NewBandMeter(a, DefaultBands()).Measure()
	if err != nil {
		t.Fatalf("Measure() error = %v", err)
	}
	if len(bands) != 6 {
		t.Fatalf("len(bands) = %d, want 6", len(bands))
	}

	var loudest FrequencyBand
	for _, b := range bands {
		if b.Level > loudest.Level {
			loudest = b
		}
	}
	if loudest.Name != "mid" {
		t.Errorf("loudest band = %q, want mid (1 kHz tone)", loudest.Name)
	}
}

func TestBandMeterSilence(t *testing.T) {
	a := newTestAnalyzer(t)
	bands, err := NewBandMeter(a, DefaultBands()).Measure()
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range bands {
		if b.Level != 0 {
			t.Errorf("band %s = %v, want 0 before any tick", b.Name, b.Level)
		}
	}
}

func TestBandMeterNilProvider(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for nil provider")
		}
	}()
	NewBandMeter(nil, DefaultBands())
}

// countingProvider wraps an Analyzer and counts lock-taking lookups.
type countingProvider struct {
	*Analyzer
	rateCalls, binCalls int
}

func (c *countingProvider) SampleRate() int {
	c.rateCalls++
	return c.Analyzer.SampleRate()
}

func (c *countingProvider) FrequencyForBin(bin int) float64 {
	c.binCalls++
	return c.Analyzer.FrequencyForBin(bin)
}

func TestBandMeterReadsRateOncePerMeasure(t *testing.T) {
	a := newTestAnalyzer(t)
	if _, err := a.Tick(sineSource()); err != nil {
		t.Fatal(err)
	}
	p := &countingProvider{Analyzer: a}
	meter := NewBandMeter(p, DefaultBands())

	bands, err := meter.Measure()
	if err != nil {
		t.Fatal(err)
	}
	if p.rateCalls != 1 || p.binCalls != 0 {
		t.Errorf("SampleRate calls = %d, FrequencyForBin calls = %d, want 1 and 0", p.rateCalls, p.binCalls)
	}
	if bands[3].Name != "mid" || bands[3].Level == 0 {
		t.Errorf("mid band = %+v, want the 1 kHz tone", bands[3])
	}
}
