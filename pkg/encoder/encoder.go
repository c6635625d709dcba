// Package encoder renders selective calls as audio sample streams.
package encoder

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/pietro2356/gr-selcall/pkg/dsp"
	"github.com/pietro2356/gr-selcall/pkg/protocol"
)

// Encoder defaults
const (
	DefaultAmplitude = 0.8
	// DefaultPadding is 700 ms of silence before and after the tones. It is
	// a whole multiple of both the 70 ms and 100 ms tone windows, so a
	// decoder that locks its window grid onto the stream start stays
	// aligned with the tones.
	DefaultPadding = 700 * time.Millisecond
)

// FieldOrder selects which address field is keyed first.
type FieldOrder int

const (
	SourceFirst FieldOrder = iota
	DestinationFirst
)

func (o FieldOrder) String() string {
	switch o {
	case SourceFirst:
		return "source-first"
	case DestinationFirst:
		return "destination-first"
	default:
		return "unknown"
	}
}

// ParseFieldOrder maps a configuration string to a FieldOrder. The empty
// string selects the default, source first.
func ParseFieldOrder(s string) (FieldOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "source-first", "source_first":
		return SourceFirst, nil
	case "destination-first", "destination_first":
		return DestinationFirst, nil
	default:
		return SourceFirst, fmt.Errorf("encoder: unknown field order %q", s)
	}
}

// Config configures an Encoder.
type Config struct {
	Spec         *protocol.Spec
	SampleRate   int
	CodeLength   int           // 0 uses the protocol default
	ToneDuration time.Duration // 0 uses the protocol standard
	Amplitude    float64       // 0 uses DefaultAmplitude
	LeadIn       time.Duration // silence before the first tone, 0 uses DefaultPadding
	TailOut      time.Duration // silence after the last tone, 0 uses DefaultPadding
	FieldOrder   FieldOrder
}

// Encoder turns source/destination codes into renderable tone sequences.
type Encoder struct {
	spec    *protocol.Spec
	rate    int
	codeLen int
	tone    time.Duration
	amp     float64
	lead    int
	tail    int
	order   FieldOrder
}

// New validates cfg and returns an Encoder.
func New(cfg Config) (*Encoder, error) {
	if cfg.Spec == nil {
		return nil, fmt.Errorf("encoder: protocol spec is required")
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("encoder: sample rate must be positive, got %d", cfg.SampleRate)
	}
	codeLen := cfg.CodeLength
	if codeLen == 0 {
		codeLen = cfg.Spec.DefaultCodeLen
	}
	if codeLen < 1 {
		return nil, fmt.Errorf("encoder: code length must be at least 1, got %d", codeLen)
	}
	tone := cfg.ToneDuration
	if tone == 0 {
		tone = cfg.Spec.ToneDuration
	}
	if tone <= 0 {
		return nil, fmt.Errorf("encoder: tone duration must be positive, got %v", tone)
	}
	amp := cfg.Amplitude
	if amp == 0 {
		amp = DefaultAmplitude
	}
	if amp < 0 || amp > 1 {
		return nil, fmt.Errorf("encoder: amplitude must be within (0, 1], got %v", amp)
	}
	lead := cfg.LeadIn
	if lead == 0 {
		lead = DefaultPadding
	}
	tail := cfg.TailOut
	if tail == 0 {
		tail = DefaultPadding
	}
	if lead < 0 || tail < 0 {
		return nil, fmt.Errorf("encoder: padding must not be negative")
	}
	return &Encoder{
		spec:    cfg.Spec,
		rate:    cfg.SampleRate,
		codeLen: codeLen,
		tone:    tone,
		amp:     amp,
		lead:    int(math.Round(lead.Seconds() * float64(cfg.SampleRate))),
		tail:    int(math.Round(tail.Seconds() * float64(cfg.SampleRate))),
		order:   cfg.FieldOrder,
	}, nil
}

// SampleRate returns the configured output rate.
func (e *Encoder) SampleRate() int {
	return e.rate
}

// CodeLength returns the per-field symbol count.
func (e *Encoder) CodeLength() int {
	return e.codeLen
}

// Spec returns the protocol the encoder renders.
func (e *Encoder) Spec() *protocol.Spec {
	return e.spec
}

// segment is one constant-frequency stretch of the rendering; freq 0 is
// silence.
type segment struct {
	freq float64
	n    int
}

// Rendering is a one-shot sample stream for a single call.
type Rendering struct {
	osc      *dsp.Oscillator
	segments []segment
	symbols  string
	amp      float64
	rate     int
	total    int64
	idx      int
	offset   int
}

// Call builds the rendering for a selective call. An empty source keys a
// single-field call to destination only; destination is required.
func (e *Encoder) Call(source, destination string) (*Rendering, error) {
	destination = protocol.Normalize(destination)
	if destination == "" {
		return nil, fmt.Errorf("encoder: destination code is required")
	}
	if err := e.spec.ValidateCode(destination, e.codeLen); err != nil {
		return nil, err
	}
	fields := []string{destination}
	if source = protocol.Normalize(source); source != "" {
		if err := e.spec.ValidateCode(source, e.codeLen); err != nil {
			return nil, err
		}
		if e.order == SourceFirst {
			fields = []string{source, destination}
		} else {
			fields = []string{destination, source}
		}
	}
	return e.render(fields)
}

func (e *Encoder) render(fields []string) (*Rendering, error) {
	var symbols []byte
	for i, field := range fields {
		if i > 0 {
			symbols = append(symbols, byte(e.spec.Pause))
		}
		symbols = append(symbols, e.spec.ApplyRepeatMarkers(field)...)
	}

	clock := dsp.NewToneClock(e.tone, e.rate)
	segments := make([]segment, 0, len(symbols)+2)
	if e.lead > 0 {
		segments = append(segments, segment{n: e.lead})
	}
	for _, sym := range symbols {
		freq, ok := e.spec.Frequency(protocol.Symbol(sym))
		if !ok {
			return nil, fmt.Errorf("%w: symbol %q has no %s tone", protocol.ErrInvalidCode, string(sym), e.spec.Name)
		}
		segments = append(segments, segment{freq: freq, n: clock.Next()})
	}
	if e.tail > 0 {
		segments = append(segments, segment{n: e.tail})
	}

	var total int64
	for _, seg := range segments {
		total += int64(seg.n)
	}
	return &Rendering{
		osc:      dsp.NewOscillator(e.rate),
		segments: segments,
		symbols:  string(symbols),
		amp:      e.amp,
		rate:     e.rate,
		total:    total,
	}, nil
}

// Symbols returns the keyed symbol run, repeat markers and pauses
// included, e.g. "9E9E9C12345".
func (r *Rendering) Symbols() string {
	return r.symbols
}

// TotalSamples returns the length of the full rendering.
func (r *Rendering) TotalSamples() int64 {
	return r.total
}

// Duration returns the rendering length as wall time.
func (r *Rendering) Duration() time.Duration {
	return time.Duration(float64(r.total) / float64(r.rate) * float64(time.Second))
}

// Read fills out with the next samples of the rendering. It returns the
// number of samples written and io.EOF once the rendering is exhausted.
// The oscillator runs phase-continuously across tone boundaries.
func (r *Rendering) Read(out []float64) (int, error) {
	if r.idx >= len(r.segments) {
		return 0, io.EOF
	}
	n := 0
	for n < len(out) && r.idx < len(r.segments) {
		seg := r.segments[r.idx]
		take := len(out) - n
		if remain := seg.n - r.offset; take > remain {
			take = remain
		}
		r.osc.Fill(out[n:n+take], seg.freq, r.amp)
		n += take
		r.offset += take
		if r.offset == seg.n {
			r.idx++
			r.offset = 0
		}
	}
	return n, nil
}

// RenderAll reads the whole rendering into one buffer.
func (r *Rendering) RenderAll() []float64 {
	buf := make([]float64, r.total)
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			break
		}
	}
	return buf[:n]
}
