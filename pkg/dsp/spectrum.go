package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// Spectrum computes one-shot magnitude spectra of recent audio for
// debugging tone placement. Not part of the decode path.
type Spectrum struct {
	size   int
	fft    *fourier.FFT
	values window.Values
	input  []float64
	coeffs []complex128
}

// NewSpectrum creates an analyzer with the given FFT size.
func NewSpectrum(size int) *Spectrum {
	return &Spectrum{
		size:   size,
		fft:    fourier.NewFFT(size),
		values: window.NewValues(window.Hann, size),
		input:  make([]float64, size),
		coeffs: make([]complex128, size/2+1),
	}
}

// Size returns the FFT size.
func (s *Spectrum) Size() int {
	return s.size
}

// BinWidth returns the frequency resolution in Hz at the given rate.
func (s *Spectrum) BinWidth(sampleRate int) float64 {
	return float64(sampleRate) / float64(s.size)
}

// Magnitudes returns the bin magnitudes (size/2+1 values) for block.
// Blocks shorter than the FFT size are zero-padded, longer ones
// truncated.
func (s *Spectrum) Magnitudes(block []float64) []float64 {
	n := copy(s.input, block)
	for i := n; i < s.size; i++ {
		s.input[i] = 0
	}
	s.values.Transform(s.input)

	coeffs := s.fft.Coefficients(s.coeffs, s.input)
	mags := make([]float64, len(coeffs))
	for i, c := range coeffs {
		mags[i] = math.Hypot(real(c), imag(c))
	}
	return mags
}
