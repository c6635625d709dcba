// Package ringer sounds a two-tone alarm when the station's own code has
// been called.
package ringer

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pietro2356/gr-selcall/pkg/dsp"
)

// Ringer defaults
const (
	DefaultToneA     = 800.0
	DefaultToneB     = 1010.0
	DefaultToggle    = 300 * time.Millisecond
	DefaultRing      = 10 * time.Second
	DefaultAmplitude = 0.5
)

// Config configures a Ringer.
type Config struct {
	SampleRate int
	ToneA      float64       // 0 uses DefaultToneA
	ToneB      float64       // 0 uses DefaultToneB
	Toggle     time.Duration // 0 uses DefaultToggle
	Duration   time.Duration // 0 uses DefaultRing
	Amplitude  float64       // 0 uses DefaultAmplitude
}

// Ringer alternates two tones for a fixed ring time, counted in samples so
// behavior is identical for live audio and file processing. Retriggering
// restarts the countdown instead of stacking a second ring, and the
// indicator callback fires only on start and stop edges.
type Ringer struct {
	osc     *dsp.Oscillator
	toneA   float64
	toneB   float64
	amp     float64
	toggle  int
	ring    int64
	scratch []float64

	remaining int64
	togglePos int
	useB      bool

	active      atomic.Bool
	onIndicator func(bool)
}

// New validates cfg and returns a Ringer.
func New(cfg Config) (*Ringer, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("ringer: sample rate must be positive, got %d", cfg.SampleRate)
	}
	toneA := cfg.ToneA
	if toneA == 0 {
		toneA = DefaultToneA
	}
	toneB := cfg.ToneB
	if toneB == 0 {
		toneB = DefaultToneB
	}
	nyquist := float64(cfg.SampleRate) / 2
	if toneA <= 0 || toneA >= nyquist || toneB <= 0 || toneB >= nyquist {
		return nil, fmt.Errorf("ringer: tones %.0f/%.0f Hz must be within (0, %.0f)", toneA, toneB, nyquist)
	}
	toggle := cfg.Toggle
	if toggle == 0 {
		toggle = DefaultToggle
	}
	ring := cfg.Duration
	if ring == 0 {
		ring = DefaultRing
	}
	if toggle <= 0 || ring <= 0 {
		return nil, fmt.Errorf("ringer: toggle and ring durations must be positive")
	}
	amp := cfg.Amplitude
	if amp == 0 {
		amp = DefaultAmplitude
	}
	if amp < 0 || amp > 1 {
		return nil, fmt.Errorf("ringer: amplitude must be within (0, 1], got %v", amp)
	}
	toggleSamples := int(toggle.Seconds() * float64(cfg.SampleRate))
	if toggleSamples < 1 {
		toggleSamples = 1
	}
	return &Ringer{
		osc:    dsp.NewOscillator(cfg.SampleRate),
		toneA:  toneA,
		toneB:  toneB,
		amp:    amp,
		toggle: toggleSamples,
		ring:   int64(ring.Seconds() * float64(cfg.SampleRate)),
	}, nil
}

// SetIndicatorHandler registers the callback driven at ring start (true)
// and ring end (false). Must be set before audio processing starts.
func (r *Ringer) SetIndicatorHandler(h func(on bool)) {
	r.onIndicator = h
}

// Trigger starts the ring, or restarts the countdown when already
// ringing. The indicator fires only on the idle-to-ringing edge.
func (r *Ringer) Trigger() {
	wasActive := r.remaining > 0
	r.remaining = r.ring
	if wasActive {
		return
	}
	r.togglePos = 0
	r.useB = false
	r.osc.Reset()
	r.active.Store(true)
	if r.onIndicator != nil {
		r.onIndicator(true)
	}
}

// Active reports whether the ringer is currently sounding.
func (r *Ringer) Active() bool {
	return r.active.Load()
}

// Mix adds the next chunk of ring audio into out. When idle it leaves out
// untouched.
func (r *Ringer) Mix(out []float64) {
	if r.remaining <= 0 {
		return
	}
	if cap(r.scratch) < len(out) {
		r.scratch = make([]float64, len(out))
	}

	n := 0
	for n < len(out) && r.remaining > 0 {
		take := len(out) - n
		if int64(take) > r.remaining {
			take = int(r.remaining)
		}
		if rem := r.toggle - r.togglePos; take > rem {
			take = rem
		}
		freq := r.toneA
		if r.useB {
			freq = r.toneB
		}
		block := r.scratch[:take]
		r.osc.Fill(block, freq, r.amp)
		for i, s := range block {
			out[n+i] += s
		}
		n += take
		r.remaining -= int64(take)
		r.togglePos += take
		if r.togglePos == r.toggle {
			r.togglePos = 0
			r.useB = !r.useB
		}
	}
	if r.remaining == 0 {
		r.active.Store(false)
		if r.onIndicator != nil {
			r.onIndicator(false)
		}
	}
}

// Stop silences the ringer immediately. A no-op when idle.
func (r *Ringer) Stop() {
	if r.remaining <= 0 {
		return
	}
	r.remaining = 0
	r.active.Store(false)
	if r.onIndicator != nil {
		r.onIndicator(false)
	}
}
