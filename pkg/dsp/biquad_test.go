package dsp

import (
	"math"
	"testing"
)

func rms(buf []float64) float64 {
	var sum float64
	for _, s := range buf {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(buf)))
}

func TestBandPass_PassesToneBand(t *testing.T) {
	const rate = 48000.0
	bp := NewBandPass(700, 2500, rate)

	buf := synthTone(1500, rate, 9600, 1.0) // 200 ms, mid-band
	bp.ProcessBuffer(buf)

	// skip the transient, measure the settled half
	settled := rms(buf[len(buf)/2:])
	if settled < 0.5 || settled > 0.9 {
		t.Errorf("Expected in-band RMS near 0.707, got %f", settled)
	}
}

func TestBandPass_RejectsOutOfBand(t *testing.T) {
	const rate = 48000.0

	tests := []struct {
		name string
		freq float64
	}{
		{"below band", 100},
		{"above band", 8000},
	}

	for _, tt := range tests {
		bp := NewBandPass(700, 2500, rate)
		buf := synthTone(tt.freq, rate, 9600, 1.0)
		bp.ProcessBuffer(buf)

		settled := rms(buf[len(buf)/2:])
		if settled > 0.1 {
			t.Errorf("%s (%.0f Hz): expected strong attenuation, RMS %f", tt.name, tt.freq, settled)
		}
	}
}

func TestBandPass_Reset(t *testing.T) {
	bp := NewBandPass(700, 2500, 48000)

	first := synthTone(1500, 48000, 4800, 1.0)
	bp.ProcessBuffer(first)

	bp.Reset()
	second := synthTone(1500, 48000, 4800, 1.0)
	bp.ProcessBuffer(second)

	// identical input after a reset must produce identical output
	reference := synthTone(1500, 48000, 4800, 1.0)
	NewBandPass(700, 2500, 48000).ProcessBuffer(reference)
	for i := range second {
		if second[i] != reference[i] {
			t.Fatalf("Sample %d differs after reset", i)
		}
	}
}

func TestBiquad_Stability(t *testing.T) {
	f := newLowPass(2500, 48000, 0.7071)
	var out float64
	for i := 0; i < 48000; i++ {
		out = f.Process(1.0)
	}
	// a stable low-pass settles to unity DC gain
	if math.Abs(out-1.0) > 0.01 {
		t.Errorf("Expected DC gain 1.0, got %f", out)
	}
}
