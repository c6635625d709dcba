package transmit

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestWatchdog_ArmAndFire(t *testing.T) {
	w := NewWatchdog()
	fired := make(chan struct{})
	w.Arm("tx", 20*time.Millisecond, func() { close(fired) })

	if !w.Armed("tx") {
		t.Error("timer should be armed")
	}
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}

	// the fired timer removes itself
	deadline := time.Now().Add(time.Second)
	for w.Armed("tx") {
		if time.Now().After(deadline) {
			t.Fatal("fired timer still armed")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWatchdog_Disarm(t *testing.T) {
	w := NewWatchdog()
	var fired atomic.Bool
	w.Arm("tx", 30*time.Millisecond, func() { fired.Store(true) })
	w.Disarm("tx")

	if w.Armed("tx") {
		t.Error("timer should be gone after Disarm")
	}
	time.Sleep(80 * time.Millisecond)
	if fired.Load() {
		t.Error("disarmed timer fired")
	}
}

func TestWatchdog_Refresh(t *testing.T) {
	w := NewWatchdog()
	fired := make(chan struct{})
	w.Arm("tx", 100*time.Millisecond, func() { close(fired) })

	// keep refreshing past the original deadline
	for i := 0; i < 3; i++ {
		time.Sleep(50 * time.Millisecond)
		w.Refresh("tx")
	}
	select {
	case <-fired:
		t.Fatal("refreshed timer fired early")
	default:
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire after refreshes stopped")
	}
}

func TestWatchdog_RearmReplaces(t *testing.T) {
	w := NewWatchdog()
	var first, second atomic.Bool
	w.Arm("tx", 30*time.Millisecond, func() { first.Store(true) })
	w.Arm("tx", 60*time.Millisecond, func() { second.Store(true) })

	time.Sleep(150 * time.Millisecond)
	if first.Load() {
		t.Error("replaced timer fired")
	}
	if !second.Load() {
		t.Error("replacement timer did not fire")
	}
}

func TestWatchdog_ZeroDurationIgnored(t *testing.T) {
	w := NewWatchdog()
	w.Arm("tx", 0, func() { t.Error("zero-duration timer armed") })
	if w.Armed("tx") {
		t.Error("zero-duration timer should not be armed")
	}
}

func TestWatchdog_StopAll(t *testing.T) {
	w := NewWatchdog()
	var fired atomic.Int32
	w.Arm("a", 30*time.Millisecond, func() { fired.Add(1) })
	w.Arm("b", 30*time.Millisecond, func() { fired.Add(1) })
	w.StopAll()

	if w.Armed("a") || w.Armed("b") {
		t.Error("timers should be gone after StopAll")
	}
	time.Sleep(80 * time.Millisecond)
	if n := fired.Load(); n != 0 {
		t.Errorf("%d stopped timers fired", n)
	}
}
