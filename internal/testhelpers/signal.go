// Package testhelpers provides signal synthesis and event collection for
// tests that exercise the audio chain across package boundaries.
package testhelpers

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/pietro2356/gr-selcall/pkg/protocol"
)

// LeadSilence is the quiet stretch rendered before and after a call,
// matching what radios key on air.
const LeadSilence = 0.7 // seconds

// AppendTone appends n samples of a sine wave at freq to buf.
func AppendTone(buf []float64, freq float64, rate, n int, amp float64) []float64 {
	for i := 0; i < n; i++ {
		buf = append(buf, amp*math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return buf
}

// AppendSilence appends n zero samples to buf.
func AppendSilence(buf []float64, n int) []float64 {
	for i := 0; i < n; i++ {
		buf = append(buf, 0)
	}
	return buf
}

// Symbols renders a raw symbol run at the protocol's tone duration, one
// tone per symbol, without repeat substitution. Use it to build the
// partial or malformed sequences the encoder refuses to produce.
func Symbols(spec *protocol.Spec, symbols string, rate int, amp float64) ([]float64, error) {
	n := int(spec.ToneDuration.Seconds() * float64(rate))
	var buf []float64
	for i := 0; i < len(symbols); i++ {
		freq, ok := spec.Frequency(protocol.Symbol(symbols[i]))
		if !ok {
			return nil, fmt.Errorf("symbol %q not in %s alphabet", string(symbols[i]), spec.Name)
		}
		buf = AppendTone(buf, freq, rate, n, amp)
	}
	return buf, nil
}

// Call renders a complete transmission the way a radio keys it: lead
// silence, each field with repeat markers applied, the pause tone between
// fields, tail silence.
func Call(spec *protocol.Spec, fields []string, rate int, amp float64) ([]float64, error) {
	lead := int(LeadSilence * float64(rate))
	n := int(spec.ToneDuration.Seconds() * float64(rate))

	buf := AppendSilence(nil, lead)
	for i, field := range fields {
		if i > 0 {
			buf = AppendTone(buf, spec.PauseFrequency(), rate, n, amp)
		}
		seg, err := Symbols(spec, spec.ApplyRepeatMarkers(field), rate, amp)
		if err != nil {
			return nil, err
		}
		buf = append(buf, seg...)
	}
	return AppendSilence(buf, lead), nil
}

// AddNoise returns a copy of samples with uniform white noise of the
// given peak level mixed in. The same seed produces the same noise.
func AddNoise(samples []float64, level float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s + level*(2*rng.Float64()-1)
	}
	return out
}

// RMS returns the root mean square level of buf.
func RMS(buf []float64) float64 {
	if len(buf) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range buf {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(buf)))
}
