package audio

import (
	"context"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/pietro2356/gr-selcall/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Output: io.Discard})
}

func TestUDP_SourceSinkRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sent := make([]float64, 2000)
	for i := range sent {
		sent[i] = 0.4 * math.Sin(2*math.Pi*600*float64(i)/8000)
	}

	src := NewUDPSource("127.0.0.1:0", testLogger())
	var (
		mu   sync.Mutex
		got  []float64
		once sync.Once
		done = make(chan struct{})
	)
	src.SetChunkHandler(func(chunk []float64) {
		mu.Lock()
		got = append(got, chunk...)
		n := len(got)
		mu.Unlock()
		if n >= len(sent) {
			once.Do(func() { close(done) })
		}
	})

	go func() { _ = src.Start(ctx) }()
	if err := src.WaitStarted(ctx); err != nil {
		t.Fatalf("WaitStarted: %v", err)
	}
	addr, err := src.Addr()
	if err != nil {
		t.Fatalf("Addr: %v", err)
	}

	sink, err := NewUDPSink(addr.String())
	if err != nil {
		t.Fatalf("NewUDPSink: %v", err)
	}
	defer func() { _ = sink.Close() }()
	if err := sink.Write(sent); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for PCM to arrive")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != len(sent) {
		t.Fatalf("received %d samples, want %d", len(got), len(sent))
	}
	for i := range sent {
		if diff := math.Abs(got[i] - sent[i]); diff > 1.0/32767+1e-9 {
			t.Fatalf("sample %d: sent %v received %v", i, sent[i], got[i])
		}
	}
}

func TestNewUDPSink_BadAddress(t *testing.T) {
	if _, err := NewUDPSink("not-a-real-host-name.invalid.:bogus"); err == nil {
		t.Error("expected an error for an unresolvable destination")
	}
}
