package decoder

import "time"

// DefaultGateRamp is the fade length applied at gate transitions.
const DefaultGateRamp = 5 * time.Millisecond

// Gate scales receive audio by a gain that ramps between 0 and 1 at
// squelch transitions, so opening and closing never clicks.
type Gate struct {
	step  float64
	level float64
	open  bool
}

// NewGate builds a gate with the given ramp length at the given rate.
func NewGate(ramp time.Duration, rate int) *Gate {
	n := int(float64(rate) * ramp.Seconds())
	if n < 1 {
		n = 1
	}
	return &Gate{step: 1 / float64(n)}
}

// SetOpen switches the gate target. The gain ramps toward it over the
// configured fade length.
func (g *Gate) SetOpen(open bool) {
	g.open = open
}

// IsOpen reports the gate target, not the instantaneous gain.
func (g *Gate) IsOpen() bool {
	return g.open
}

// Apply writes the gated samples into out. in and out may be the same
// slice; their lengths must match.
func (g *Gate) Apply(in, out []float64) {
	target := 0.0
	if g.open {
		target = 1.0
	}
	for i, s := range in {
		switch {
		case g.level < target:
			g.level += g.step
			if g.level > target {
				g.level = target
			}
		case g.level > target:
			g.level -= g.step
			if g.level < target {
				g.level = target
			}
		}
		out[i] = s * g.level
	}
}
