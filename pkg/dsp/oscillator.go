package dsp

import "math"

// Oscillator synthesizes sine waves with a persistent phase accumulator,
// so consecutive fills at different frequencies join without a phase
// step. Keyed tone sequences stay click-free at symbol boundaries.
type Oscillator struct {
	sampleRate float64
	phase      float64
}

// NewOscillator creates an oscillator for the given sample rate.
func NewOscillator(sampleRate int) *Oscillator {
	return &Oscillator{sampleRate: float64(sampleRate)}
}

// Fill writes len(out) samples of a freq Hz sine at the given amplitude.
// A non-positive frequency writes silence and leaves the phase where the
// last tone ended.
func (o *Oscillator) Fill(out []float64, freq, amplitude float64) {
	if freq <= 0 {
		for i := range out {
			out[i] = 0
		}
		return
	}
	step := 2 * math.Pi * freq / o.sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(o.phase)
		o.phase += step
		if o.phase >= 2*math.Pi {
			o.phase -= 2 * math.Pi
		}
	}
}

// Reset rewinds the phase to zero.
func (o *Oscillator) Reset() {
	o.phase = 0
}
