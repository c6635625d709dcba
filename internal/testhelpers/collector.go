package testhelpers

import (
	"sync"
	"testing"
	"time"

	"github.com/pietro2356/gr-selcall/pkg/decoder"
)

// DecodeCollector gathers decoder callbacks behind a mutex so one
// goroutine can feed audio while another asserts on the results.
type DecodeCollector struct {
	mu     sync.Mutex
	events []decoder.DecodeEvent
	rings  int
}

// Attach registers the collector on the decoder's callbacks. Must be
// called before audio is fed.
func (c *DecodeCollector) Attach(d *decoder.Decoder) {
	d.SetDecodeHandler(c.Add)
	d.SetRingHandler(func() {
		c.mu.Lock()
		c.rings++
		c.mu.Unlock()
	})
}

// Add records one decode event.
func (c *DecodeCollector) Add(ev decoder.DecodeEvent) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

// Events returns a copy of the collected events in arrival order.
func (c *DecodeCollector) Events() []decoder.DecodeEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]decoder.DecodeEvent, len(c.events))
	copy(out, c.events)
	return out
}

// Rings returns how many times the ring callback fired.
func (c *DecodeCollector) Rings() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rings
}

// WaitForEvents blocks until at least n events arrived or timeout passed.
func (c *DecodeCollector) WaitForEvents(n int, timeout time.Duration) bool {
	return WaitFor(func() bool { return len(c.Events()) >= n }, timeout)
}

// Feed drives a decoder with samples split into chunk-sized slices, the
// way the daemon's receive loop does, and returns the gated output.
func Feed(d *decoder.Decoder, samples []float64, chunk int) []float64 {
	out := make([]float64, 0, len(samples))
	buf := make([]float64, chunk)
	for start := 0; start < len(samples); start += chunk {
		end := start + chunk
		if end > len(samples) {
			end = len(samples)
		}
		n := end - start
		d.Process(samples[start:end], buf[:n])
		out = append(out, buf[:n]...)
	}
	return out
}

// WaitFor polls condition every 10 ms until it holds or timeout passes.
func WaitFor(condition func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// Eventually fails the test when condition does not hold within timeout.
func Eventually(t *testing.T, condition func() bool, timeout time.Duration, message string) {
	t.Helper()
	if !WaitFor(condition, timeout) {
		t.Errorf("condition not met within %v: %s", timeout, message)
	}
}
