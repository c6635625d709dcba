package audio

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pietro2356/gr-selcall/pkg/logger"
)

// maxDatagramBytes keeps PCM frames under a typical path MTU.
const maxDatagramBytes = 1400

// UDPSource receives s16le PCM datagrams and hands the decoded chunks to
// a handler, in arrival order on a single goroutine.
type UDPSource struct {
	listen  string
	log     *logger.Logger
	conn    *net.UDPConn
	started chan struct{}

	handler func([]float64)
}

// NewUDPSource creates a source listening on listen ("host:port").
func NewUDPSource(listen string, log *logger.Logger) *UDPSource {
	return &UDPSource{
		listen:  listen,
		log:     log.WithComponent("audio.udp"),
		started: make(chan struct{}),
	}
}

// SetChunkHandler registers the callback for received chunks. The slice is
// reused between calls; handlers must not retain it. Must be set before
// Start.
func (s *UDPSource) SetChunkHandler(h func([]float64)) {
	s.handler = h
}

// Start binds the listener and receives until the context is canceled.
func (s *UDPSource) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", s.listen)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", s.listen, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.listen, err)
	}
	s.conn = conn
	close(s.started)
	defer func() { _ = conn.Close() }()

	s.log.Info("audio source listening", logger.String("addr", conn.LocalAddr().String()))

	buffer := make([]byte, 4096)
	samples := make([]float64, len(buffer)/BytesPerSample)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond)); err != nil {
			s.log.Warn("failed to set read deadline", logger.Error(err))
			continue
		}
		n, _, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			s.log.Error("failed to read from UDP", logger.Error(err))
			continue
		}
		if n < BytesPerSample {
			continue
		}
		// decoded inline: chunks must reach the decoder in arrival order
		m := FromS16LE(samples, buffer[:n])
		if s.handler != nil {
			s.handler(samples[:m])
		}
	}
}

// WaitStarted blocks until the listener is bound or ctx is canceled.
func (s *UDPSource) WaitStarted(ctx context.Context) error {
	select {
	case <-s.started:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Addr returns the bound address. Call after WaitStarted.
func (s *UDPSource) Addr() (*net.UDPAddr, error) {
	if s.conn == nil {
		return nil, fmt.Errorf("source not started")
	}
	udpAddr, ok := s.conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return nil, fmt.Errorf("not a UDP address")
	}
	return udpAddr, nil
}

// UDPSink streams s16le PCM datagrams to a fixed destination, splitting
// large chunks to stay under the path MTU.
type UDPSink struct {
	mu      sync.Mutex
	conn    *net.UDPConn
	scratch []byte
}

// NewUDPSink dials dest ("host:port") and returns a connected sink.
func NewUDPSink(dest string) (*UDPSink, error) {
	addr, err := net.ResolveUDPAddr("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dest, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", dest, err)
	}
	return &UDPSink{conn: conn}, nil
}

// Write encodes and sends samples. Implements Sink.
func (k *UDPSink) Write(samples []float64) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	maxSamples := maxDatagramBytes / BytesPerSample
	if cap(k.scratch) < maxDatagramBytes {
		k.scratch = make([]byte, maxDatagramBytes)
	}
	for len(samples) > 0 {
		n := len(samples)
		if n > maxSamples {
			n = maxSamples
		}
		size := ToS16LE(k.scratch[:maxDatagramBytes], samples[:n])
		if _, err := k.conn.Write(k.scratch[:size]); err != nil {
			return fmt.Errorf("send PCM: %w", err)
		}
		samples = samples[n:]
	}
	return nil
}

// Close releases the socket.
func (k *UDPSink) Close() error {
	return k.conn.Close()
}
