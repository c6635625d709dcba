//go:build integration
// +build integration

package integration

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pietro2356/gr-selcall/internal/testhelpers"
	"github.com/pietro2356/gr-selcall/pkg/decoder"
	"github.com/pietro2356/gr-selcall/pkg/encoder"
	"github.com/pietro2356/gr-selcall/pkg/logger"
	"github.com/pietro2356/gr-selcall/pkg/metrics"
	"github.com/pietro2356/gr-selcall/pkg/mqtt"
	"github.com/pietro2356/gr-selcall/pkg/protocol"
	"github.com/pietro2356/gr-selcall/pkg/transmit"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Output: io.Discard})
}

// captureSink collects everything the transmit controller writes so the
// samples can be replayed into a decoder.
type captureSink struct {
	mu      sync.Mutex
	samples []float64
}

func (s *captureSink) Write(p []float64) error {
	s.mu.Lock()
	s.samples = append(s.samples, p...)
	s.mu.Unlock()
	return nil
}

func (s *captureSink) snapshot() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.samples))
	copy(out, s.samples)
	return out
}

// TestEncodeDecodeRoundTrip renders a two-field call with the encoder and
// verifies the decoder recovers both fields on every supported standard.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		protocol string
		source   string
		dest     string
	}{
		{"ZVEI-1", "99999", "12345"},
		{"ZVEI-2", "24680", "13579"},
		{"CCIR-1", "11223", "54321"},
		{"CCIR-2", "00000", "98765"},
		{"CCIR-7", "1234567", "7654321"},
		{"PCCIR", "55555", "12021"},
	}

	for _, tc := range cases {
		t.Run(tc.protocol, func(t *testing.T) {
			spec, err := protocol.Get(tc.protocol)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}

			enc, err := encoder.New(encoder.Config{Spec: spec, SampleRate: 24000})
			if err != nil {
				t.Fatalf("encoder.New: %v", err)
			}
			rendering, err := enc.Call(tc.source, tc.dest)
			if err != nil {
				t.Fatalf("Call: %v", err)
			}

			dec, err := decoder.New(decoder.Config{
				Spec:       spec,
				SampleRate: 24000,
				Code:       tc.dest,
			}, testLogger())
			if err != nil {
				t.Fatalf("decoder.New: %v", err)
			}
			var c testhelpers.DecodeCollector
			c.Attach(dec)

			testhelpers.Feed(dec, rendering.RenderAll(), 512)

			events := c.Events()
			if len(events) != 2 {
				t.Fatalf("got %d decode events, want 2", len(events))
			}
			if events[0].Code != tc.source || events[0].Matched {
				t.Errorf("source event = %+v, want unmatched %s", events[0], tc.source)
			}
			if events[1].Code != tc.dest || !events[1].Matched {
				t.Errorf("destination event = %+v, want matched %s", events[1], tc.dest)
			}
			if !dec.GateOpen() {
				t.Error("gate should open after the destination matched")
			}
			if c.Rings() != 1 {
				t.Errorf("ring fired %d times, want 1", c.Rings())
			}
		})
	}
}

// TestEncodeDecodeWithNoiseAndDecimation runs the round trip through the
// production receive configuration: 48 kHz input, bandpass, decimation,
// and additive noise on the channel.
func TestEncodeDecodeWithNoiseAndDecimation(t *testing.T) {
	spec, err := protocol.Get("ZVEI-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	enc, err := encoder.New(encoder.Config{Spec: spec, SampleRate: 48000})
	if err != nil {
		t.Fatalf("encoder.New: %v", err)
	}
	rendering, err := enc.Call("99999", "12345")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	noisy := testhelpers.AddNoise(rendering.RenderAll(), 0.05, 1)

	dec, err := decoder.New(decoder.Config{
		Spec:       spec,
		SampleRate: 48000,
		Code:       "12345",
		Decimation: 6,
		Bandpass:   true,
	}, testLogger())
	if err != nil {
		t.Fatalf("decoder.New: %v", err)
	}
	var c testhelpers.DecodeCollector
	c.Attach(dec)

	testhelpers.Feed(dec, noisy, 1024)

	events := c.Events()
	if len(events) != 2 {
		t.Fatalf("got %d decode events, want 2", len(events))
	}
	if !events[1].Matched || events[1].Code != "12345" {
		t.Errorf("destination event = %+v, want matched 12345", events[1])
	}
}

// TestTransmitToDecoderLoopback runs the full chain: a job submitted to
// the transmit controller, rendered through its sink, then replayed into
// a decoder configured as the called station.
func TestTransmitToDecoderLoopback(t *testing.T) {
	spec, err := protocol.Get("ZVEI-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	enc, err := encoder.New(encoder.Config{Spec: spec, SampleRate: 24000})
	if err != nil {
		t.Fatalf("encoder.New: %v", err)
	}

	sink := &captureSink{}
	ctrl, err := transmit.New(transmit.Config{
		Encoder: enc,
		Sink:    sink,
		Logger:  testLogger(),
		Source:  "99999",
	})
	if err != nil {
		t.Fatalf("transmit.New: %v", err)
	}

	records := make(chan transmit.Record, 1)
	ctrl.SetRecordHandler(func(rec transmit.Record) { records <- rec })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = ctrl.Run(ctx) }()

	// the controller accepts jobs only once its loop is up
	submitted := testhelpers.WaitFor(func() bool {
		_, err := ctrl.Submit("12345", "test")
		return err == nil
	}, 2*time.Second)
	if !submitted {
		t.Fatal("controller never accepted the job")
	}

	var rec transmit.Record
	select {
	case rec = <-records:
	case <-time.After(5 * time.Second):
		t.Fatal("no transmission record within 5s")
	}
	if rec.Aborted {
		t.Fatalf("transmission aborted: %+v", rec)
	}
	if rec.Symbols != "9E9E9C12345" {
		t.Errorf("Symbols = %q, want 9E9E9C12345", rec.Symbols)
	}

	samples := sink.snapshot()
	if int64(len(samples)) != rec.Samples {
		t.Errorf("sink received %d samples, record says %d", len(samples), rec.Samples)
	}

	dec, err := decoder.New(decoder.Config{
		Spec:       spec,
		SampleRate: 24000,
		Code:       "12345",
	}, testLogger())
	if err != nil {
		t.Fatalf("decoder.New: %v", err)
	}
	var c testhelpers.DecodeCollector
	c.Attach(dec)
	testhelpers.Feed(dec, samples, 512)

	events := c.Events()
	if len(events) != 2 {
		t.Fatalf("got %d decode events, want 2", len(events))
	}
	if !events[1].Matched || events[1].Code != "12345" {
		t.Errorf("destination event = %+v, want matched 12345", events[1])
	}
}

// TestMQTTEventPublishing verifies the MQTT client accepts every event
// shape without error while disabled.
func TestMQTTEventPublishing(t *testing.T) {
	client := mqtt.New(mqtt.Config{
		Enabled:     false,
		TopicPrefix: "selcall/test",
	}, testLogger())

	decode := decoder.DecodeEvent{
		ID:        "test-event",
		Protocol:  "ZVEI-1",
		Raw:       "1E1E1",
		Code:      "11111",
		Matched:   true,
		Timestamp: time.Now(),
	}
	if err := client.PublishDecode(decode); err != nil {
		t.Errorf("PublishDecode: %v", err)
	}

	record := transmit.Record{
		ID:          "test-job",
		Protocol:    "ZVEI-1",
		Destination: "12345",
		Symbols:     "12345",
		StartedAt:   time.Now(),
		EndedAt:     time.Now(),
	}
	if err := client.PublishTransmission(record); err != nil {
		t.Errorf("PublishTransmission: %v", err)
	}

	if err := client.PublishGate(map[string]bool{"open": true}); err != nil {
		t.Errorf("PublishGate: %v", err)
	}
	if err := client.PublishRinger(map[string]bool{"active": true}); err != nil {
		t.Errorf("PublishRinger: %v", err)
	}
}

// TestMetricsCollection exercises the collector across the receive and
// transmit chains.
func TestMetricsCollection(t *testing.T) {
	collector := metrics.NewCollector()

	collector.SamplesProcessed(48000)
	collector.SamplesProcessed(48000)
	if got := collector.GetSamplesProcessed(); got != 96000 {
		t.Errorf("samples = %d, want 96000", got)
	}

	collector.DecodeCompleted(true)
	collector.DecodeCompleted(true)
	collector.DecodeCompleted(false)
	matched, mismatched := collector.GetDecodes()
	if matched != 2 || mismatched != 1 {
		t.Errorf("decodes = %d/%d, want 2/1", matched, mismatched)
	}

	collector.GateOpened()
	if !collector.IsGateOpen() {
		t.Error("gate should be open")
	}
	collector.GateClosed()
	if collector.IsGateOpen() {
		t.Error("gate should be closed")
	}

	collector.RingerTriggered()
	if got := collector.GetRingerTriggers(); got != 1 {
		t.Errorf("ringer triggers = %d, want 1", got)
	}

	collector.TransmissionCompleted()
	collector.TransmissionAborted()
	collector.TransmissionRejected()
	completed, aborted, rejected := collector.GetTransmissions()
	if completed != 1 || aborted != 1 || rejected != 1 {
		t.Errorf("transmissions = %d/%d/%d, want 1/1/1", completed, aborted, rejected)
	}
}

// TestMetricsConcurrency hammers the collector from many goroutines and
// verifies no update is lost.
func TestMetricsConcurrency(t *testing.T) {
	collector := metrics.NewCollector()

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				collector.SamplesProcessed(512)
				collector.DecodeCompleted(j%2 == 0)
				collector.WindowClassified(true)
			}
		}()
	}
	wg.Wait()

	if got := collector.GetSamplesProcessed(); got != workers*10*512 {
		t.Errorf("samples = %d, want %d", got, workers*10*512)
	}
	matched, mismatched := collector.GetDecodes()
	if matched+mismatched != workers*10 {
		t.Errorf("decodes = %d, want %d", matched+mismatched, workers*10)
	}
	symbol, _ := collector.GetWindowsClassified()
	if symbol != workers*10 {
		t.Errorf("windows = %d, want %d", symbol, workers*10)
	}
}
