package dsp

import (
	"time"

	"gonum.org/v1/gonum/dsp/window"
)

// ToneClock yields successive tone-window lengths in samples. The exact
// window length is usually fractional (e.g. 70 ms at 44.1 kHz is 3087.0
// but 70 ms at 11025 Hz is 771.75); the clock carries the remainder so
// the accumulated error over a long sequence never exceeds one sample.
type ToneClock struct {
	exact float64
	acc   float64
}

// NewToneClock creates a clock for one tone duration at a sample rate.
func NewToneClock(toneDuration time.Duration, sampleRate int) *ToneClock {
	return &ToneClock{exact: toneDuration.Seconds() * float64(sampleRate)}
}

// Next returns the length in samples of the next window.
func (c *ToneClock) Next() int {
	c.acc += c.exact
	n := int(c.acc)
	c.acc -= float64(n)
	return n
}

// Nominal returns the whole-sample window size without advancing the
// clock (the floor of the exact length).
func (c *ToneClock) Nominal() int {
	return int(c.exact)
}

// Exact returns the precise window length in samples.
func (c *ToneClock) Exact() float64 {
	return c.exact
}

// Reset clears the fractional remainder.
func (c *ToneClock) Reset() {
	c.acc = 0
}

// AnalysisWindow applies precomputed Hamming coefficients to detector
// blocks before tone estimation, containing spectral leakage from the
// abrupt block edges.
type AnalysisWindow struct {
	values  window.Values
	scratch []float64
}

// NewAnalysisWindow precomputes coefficients for blocks of n samples.
func NewAnalysisWindow(n int) *AnalysisWindow {
	return &AnalysisWindow{
		values:  window.NewValues(window.Hamming, n),
		scratch: make([]float64, n),
	}
}

// Apply returns block multiplied by the window. The returned slice is
// reused by the next call.
func (w *AnalysisWindow) Apply(block []float64) []float64 {
	copy(w.scratch, block)
	return w.values.Transform(w.scratch)
}

// Downsample copies every factor-th sample of src into dst and returns
// the filled slice. It does no filtering; callers band-limit the input
// below the decimated Nyquist first.
func Downsample(dst, src []float64, factor int) []float64 {
	if factor <= 1 {
		return append(dst, src...)
	}
	for i := 0; i < len(src); i += factor {
		dst = append(dst, src[i])
	}
	return dst
}
