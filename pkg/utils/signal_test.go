// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"testing"
)

const (
	testSize       = 1024
	testSampleRate = 44100
	testFrequency  = 440.0 // A4 note
)

func TestMockTransport(t *testing.T) {
	mt := &MockTransport{}
	for i := range 3 {
		if err := mt.Send(i); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}
	sent := mt.Sent()
	if len(sent) != 3 || sent[2].(int) != 2 {
		t.Errorf("Sent() = %v, want [0 1 2]", sent)
	}
	sent[0] = 99
	if mt.Sent()[0].(int) != 0 {
		t.Errorf("Sent() returned internal slice instead of a copy")
	}
	if mt.Closed() {
		t.Errorf("Closed() before Close")
	}
	_ = mt.Close()
	if !mt.Closed() {
		t.Errorf("Closed() = false after Close")
	}
}

func TestGenerateComplexWave(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		sampleRate float64
	}{
		{"Standard", 1024, 44100},
		{"Small", 16, 8000},
		{"Large", 8192, 96000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateComplexWave(tt.size, tt.sampleRate)

			if len(result) != tt.size {
				t.Errorf("GenerateComplexWave() buffer size = %d, want %d", len(result), tt.size)
			}

			hasNonZero := false
			for _, v := range result {
				if v > 1 || v < -1 {
					t.Fatalf("sample %f outside [-1, 1]", v)
				}
				if v != 0 {
					hasNonZero = true
				}
			}
			if !hasNonZero {
				t.Errorf("GenerateComplexWave() produced all zeros")
			}
		})
	}
}

func TestGenerateSineWave(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		sampleRate float64
		frequency  float64
	}{
		{"A4 Note", 1024, 44100, 440.0},
		{"Middle C", 1024, 44100, 261.63},
		{"High Sample Rate", 1024, 192000, 440.0},
		{"Low Sample Rate", 1024, 8000, 440.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateSineWave(tt.size, tt.sampleRate, tt.frequency, 0.9)

			if len(result) != tt.size {
				t.Errorf("GenerateSineWave() buffer size = %d, want %d", len(result), tt.size)
			}

			samplesPerCycle := tt.sampleRate / tt.frequency
			crossCount := 0
			for i := 1; i < tt.size; i++ {
				if (result[i-1] < 0 && result[i] >= 0) || (result[i-1] >= 0 && result[i] < 0) {
					crossCount++
				}
			}

			// Two crossings per cycle, with slack for phase alignment.
			expectedCrossings := float64(tt.size) / (samplesPerCycle / 2)
			tolerance := 0.2 * expectedCrossings
			if math.Abs(float64(crossCount)-expectedCrossings) > tolerance {
				t.Errorf("GenerateSineWave() zero crossings = %d, expected approximately %.1f±%.1f",
					crossCount, expectedCrossings, tolerance)
			}
		})
	}
}

func TestGenerateRamp(t *testing.T) {
	r := GenerateRamp(4, 10)
	for i, want := range []float32{10, 11, 12, 13} {
		if r[i] != want {
			t.Errorf("ramp[%d] = %f, want %f", i, r[i], want)
		}
	}
}

func TestFindPeakBin(t *testing.T) {
	mags := make([]float32, testSize)
	for i := range mags {
		mags[i] = float32(math.Exp(-0.01 * math.Pow(float64(i-testSize/4), 2)))
	}

	tests := []struct {
		name     string
		mags     []float32
		start    int
		end      int
		expected int
	}{
		{"Full Range", mags, 0, testSize - 1, testSize / 4},
		{"Partial Range Start", mags, testSize / 8, testSize - 1, testSize / 4},
		{"Partial Range End", mags, 0, testSize / 3, testSize / 4},
		{"Negative Start", mags, -10, testSize - 1, testSize / 4},
		{"Out of Range End", mags, 0, testSize * 2, testSize / 4},
		{"Empty Slice", []float32{}, 0, 10, 0},
		{"Single Value", []float32{1.0}, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := FindPeakBin(tt.mags, tt.start, tt.end); result != tt.expected {
				t.Errorf("FindPeakBin() = %d, want %d", result, tt.expected)
			}
		})
	}

	allocs := testing.AllocsPerRun(100, func() {
		FindPeakBin(mags, 0, len(mags)-1)
	})
	if allocs > 0 {
		t.Errorf("FindPeakBin allocated memory: got %.1f allocs, want 0", allocs)
	}
}

func BenchmarkGenerateSineWave(b *testing.B) {
	b.ReportAllocs()
	for b.Loop() {
		GenerateSineWave(testSize, testSampleRate, testFrequency, 0.9)
	}
}
