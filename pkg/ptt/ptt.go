// Package ptt keys the transmitter and drives call indicator lines.
package ptt

import "sync/atomic"

// Keyer asserts and releases the transmitter's push-to-talk line.
type Keyer interface {
	Key() error
	Unkey() error
	Close() error
}

// Indicator drives an on/off annunciator, typically a call lamp or relay.
type Indicator interface {
	Set(on bool) error
	Close() error
}

// lineValue maps a logical state onto the electrical line level.
func lineValue(on, activeLow bool) int {
	if on != activeLow {
		return 1
	}
	return 0
}

// NoopKeyer satisfies Keyer without touching hardware; it remembers the
// last state so tests and dry runs can observe keying. A watchdog may
// unkey from another goroutine, so the state is atomic.
type NoopKeyer struct {
	keyed atomic.Bool
}

// NewNoopKeyer returns a keyer for configurations without a PTT line.
func NewNoopKeyer() *NoopKeyer { return &NoopKeyer{} }

func (k *NoopKeyer) Key() error   { k.keyed.Store(true); return nil }
func (k *NoopKeyer) Unkey() error { k.keyed.Store(false); return nil }
func (k *NoopKeyer) Close() error { k.keyed.Store(false); return nil }

// Keyed reports the last commanded state.
func (k *NoopKeyer) Keyed() bool { return k.keyed.Load() }

// NoopIndicator satisfies Indicator without touching hardware.
type NoopIndicator struct {
	on atomic.Bool
}

// NewNoopIndicator returns an indicator for configurations without a lamp
// line.
func NewNoopIndicator() *NoopIndicator { return &NoopIndicator{} }

func (i *NoopIndicator) Set(on bool) error { i.on.Store(on); return nil }
func (i *NoopIndicator) Close() error      { i.on.Store(false); return nil }

// On reports the last commanded state.
func (i *NoopIndicator) On() bool { return i.on.Load() }
