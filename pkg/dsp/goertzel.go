// Package dsp holds the signal-processing primitives shared by the
// SelCall decoder and encoder: Goertzel tone estimation, window
// functions, tone-clock timing, sine synthesis and band-pass filtering.
package dsp

import "math"

// Goertzel is a single-bin resonator measuring spectral power at one
// target frequency over fixed-length blocks. It costs one multiply-add
// per sample, so a full alphabet bank stays far cheaper than an FFT.
type Goertzel struct {
	coeff float64
}

// NewGoertzel creates a resonator for freq at the given rate and block
// length. The bin index is rounded to the nearest integer bin for the
// block so the filter lands on an exact DFT frequency.
func NewGoertzel(freq, sampleRate float64, blockSize int) *Goertzel {
	k := math.Floor(0.5 + float64(blockSize)*freq/sampleRate)
	omega := 2 * math.Pi * k / float64(blockSize)
	return &Goertzel{coeff: 2 * math.Cos(omega)}
}

// Power runs the resonator over block and returns the squared magnitude
// at the target bin.
func (g *Goertzel) Power(block []float64) float64 {
	var s1, s2 float64
	for _, x := range block {
		s := x + g.coeff*s1 - s2
		s2 = s1
		s1 = s
	}
	return math.Abs(s1*s1 + s2*s2 - g.coeff*s1*s2)
}

// ToneBank evaluates Goertzel power for every candidate tone of an
// alphabet. Each candidate sweeps a small band around its center
// frequency and reports the strongest response, which tolerates a few
// hertz of transmitter mistuning.
type ToneBank struct {
	blockSize int
	sweeps    [][]*Goertzel
}

// NewToneBank builds a bank for the given center frequencies. halfBand
// is the sweep half-width in Hz and steps the number of probe points per
// candidate (1 disables the sweep).
func NewToneBank(freqs []float64, sampleRate float64, blockSize int, halfBand float64, steps int) *ToneBank {
	if steps < 1 {
		steps = 1
	}
	bank := &ToneBank{
		blockSize: blockSize,
		sweeps:    make([][]*Goertzel, len(freqs)),
	}
	for i, f := range freqs {
		sweep := make([]*Goertzel, 0, steps)
		for s := 0; s < steps; s++ {
			offset := 0.0
			if steps > 1 {
				offset = -halfBand + 2*halfBand*float64(s)/float64(steps-1)
			}
			sweep = append(sweep, NewGoertzel(f+offset, sampleRate, blockSize))
		}
		bank.sweeps[i] = sweep
	}
	return bank
}

// BlockSize returns the block length the bank was built for.
func (b *ToneBank) BlockSize() int {
	return b.blockSize
}

// Powers fills out[i] with the strongest sweep response for candidate i.
// out must have one slot per candidate frequency.
func (b *ToneBank) Powers(block []float64, out []float64) {
	for i, sweep := range b.sweeps {
		best := 0.0
		for _, g := range sweep {
			if p := g.Power(block); p > best {
				best = p
			}
		}
		out[i] = best
	}
}
