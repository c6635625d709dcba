package dsp

import "math"

// Biquad is a direct-form-I second-order IIR section.
type Biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
	x1, x2     float64
	y1, y2     float64
}

// Process filters one sample.
func (f *Biquad) Process(x float64) float64 {
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

// Reset clears the filter history.
func (f *Biquad) Reset() {
	f.x1, f.x2, f.y1, f.y2 = 0, 0, 0, 0
}

func newLowPass(cutoff, sampleRate, q float64) *Biquad {
	omega := 2 * math.Pi * cutoff / sampleRate
	sn, cs := math.Sincos(omega)
	alpha := sn / (2 * q)
	a0 := 1 + alpha
	return &Biquad{
		b0: (1 - cs) / 2 / a0,
		b1: (1 - cs) / a0,
		b2: (1 - cs) / 2 / a0,
		a1: -2 * cs / a0,
		a2: (1 - alpha) / a0,
	}
}

func newHighPass(cutoff, sampleRate, q float64) *Biquad {
	omega := 2 * math.Pi * cutoff / sampleRate
	sn, cs := math.Sincos(omega)
	alpha := sn / (2 * q)
	a0 := 1 + alpha
	return &Biquad{
		b0: (1 + cs) / 2 / a0,
		b1: -(1 + cs) / a0,
		b2: (1 + cs) / 2 / a0,
		a1: -2 * cs / a0,
		a2: (1 - alpha) / a0,
	}
}

// butterworthQ holds the section Q values for a fourth-order Butterworth
// response realized as two cascaded biquads.
var butterworthQ = [2]float64{0.54119610, 1.30656296}

// BandPass bounds the SelCall tone band with fourth-order Butterworth
// high- and low-pass edges. It protects the Goertzel bank from
// out-of-band energy and keeps decimation alias-free.
type BandPass struct {
	sections []*Biquad
}

// NewBandPass builds a band-pass with edges at low and high Hz.
func NewBandPass(low, high, sampleRate float64) *BandPass {
	return &BandPass{sections: []*Biquad{
		newHighPass(low, sampleRate, butterworthQ[0]),
		newHighPass(low, sampleRate, butterworthQ[1]),
		newLowPass(high, sampleRate, butterworthQ[0]),
		newLowPass(high, sampleRate, butterworthQ[1]),
	}}
}

// ProcessBuffer filters buf in place.
func (f *BandPass) ProcessBuffer(buf []float64) {
	for i, x := range buf {
		for _, s := range f.sections {
			x = s.Process(x)
		}
		buf[i] = x
	}
}

// Reset clears all section histories.
func (f *BandPass) Reset() {
	for _, s := range f.sections {
		s.Reset()
	}
}
