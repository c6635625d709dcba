// Package audio moves PCM sample streams in and out of the daemon: WAV
// files, UDP frames and raw pipes, all as mono float64 in [-1, 1).
package audio

import "encoding/binary"

// BytesPerSample is the wire size of one signed 16-bit little-endian sample.
const BytesPerSample = 2

// Sink consumes rendered sample chunks.
type Sink interface {
	Write(samples []float64) error
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Write([]float64) error { return nil }

// FromS16LE decodes little-endian 16-bit PCM into dst and returns the
// number of samples written. Trailing odd bytes are ignored.
func FromS16LE(dst []float64, src []byte) int {
	n := len(src) / BytesPerSample
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(src[i*BytesPerSample:]))
		dst[i] = float64(v) / 32768
	}
	return n
}

// ToS16LE encodes samples as little-endian 16-bit PCM into dst, clipping
// to full scale, and returns the number of bytes written.
func ToS16LE(dst []byte, src []float64) int {
	n := len(src)
	if max := len(dst) / BytesPerSample; n > max {
		n = max
	}
	for i := 0; i < n; i++ {
		s := src[i]
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		binary.LittleEndian.PutUint16(dst[i*BytesPerSample:], uint16(v))
	}
	return n * BytesPerSample
}
