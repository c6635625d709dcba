package transmit

import (
	"sync"
	"time"
)

// Watchdog manages named abort timers for in-flight transmissions.
type Watchdog struct {
	timers map[string]*armedTimer
	mu     sync.RWMutex
}

type armedTimer struct {
	timer *time.Timer
	d     time.Duration
}

// NewWatchdog creates an empty watchdog.
func NewWatchdog() *Watchdog {
	return &Watchdog{timers: make(map[string]*armedTimer)}
}

// Arm starts (or restarts) the named timer. fn runs once on its own
// goroutine when d elapses without a Refresh or Disarm; fn must be
// idempotent because a timer may fire concurrently with Disarm.
func (w *Watchdog) Arm(name string, d time.Duration, fn func()) {
	if d <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if existing, ok := w.timers[name]; ok {
		existing.timer.Stop()
	}
	at := &armedTimer{d: d}
	at.timer = time.AfterFunc(d, func() {
		fn()
		w.mu.Lock()
		delete(w.timers, name)
		w.mu.Unlock()
	})
	w.timers[name] = at
}

// Refresh restarts the named timer with its original duration. Unknown
// names are ignored.
func (w *Watchdog) Refresh(name string) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if at, ok := w.timers[name]; ok {
		at.timer.Reset(at.d)
	}
}

// Disarm cancels the named timer if it has not fired yet.
func (w *Watchdog) Disarm(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if at, ok := w.timers[name]; ok {
		at.timer.Stop()
		delete(w.timers, name)
	}
}

// Armed reports whether the named timer is pending.
func (w *Watchdog) Armed(name string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	_, ok := w.timers[name]
	return ok
}

// StopAll cancels every pending timer.
func (w *Watchdog) StopAll() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, at := range w.timers {
		at.timer.Stop()
	}
	w.timers = make(map[string]*armedTimer)
}
