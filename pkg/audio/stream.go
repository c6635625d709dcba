package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// StreamChunks reads s16le PCM from r (typically a pipe from a radio
// front end) and delivers fixed-size chunks until EOF or cancellation.
// A short final chunk is delivered before returning nil.
func StreamChunks(ctx context.Context, r io.Reader, chunkSamples int, fn func([]float64)) error {
	if chunkSamples < 1 {
		return fmt.Errorf("audio: chunk size must be at least 1 sample, got %d", chunkSamples)
	}
	buf := make([]byte, chunkSamples*BytesPerSample)
	samples := make([]float64, chunkSamples)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := io.ReadFull(r, buf)
		if n >= BytesPerSample {
			m := FromS16LE(samples, buf[:n])
			fn(samples[:m])
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("audio: read PCM stream: %w", err)
		}
	}
}

// StreamSink writes s16le PCM to w. Implements Sink.
type StreamSink struct {
	w       io.Writer
	scratch []byte
}

// NewStreamSink wraps w, typically stdout or a pipe to a transmitter.
func NewStreamSink(w io.Writer) *StreamSink {
	return &StreamSink{w: w}
}

// Write encodes and writes samples.
func (s *StreamSink) Write(samples []float64) error {
	need := len(samples) * BytesPerSample
	if cap(s.scratch) < need {
		s.scratch = make([]byte, need)
	}
	n := ToS16LE(s.scratch[:need], samples)
	if _, err := s.w.Write(s.scratch[:n]); err != nil {
		return fmt.Errorf("audio: write PCM stream: %w", err)
	}
	return nil
}
