package decoder

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pietro2356/gr-selcall/pkg/dsp"
	"github.com/pietro2356/gr-selcall/pkg/logger"
	"github.com/pietro2356/gr-selcall/pkg/protocol"
)

const (
	// DefaultGateHold keeps the receive gate open this long after a match.
	DefaultGateHold = 20 * time.Second

	// analysis pre-filter corners, wide enough for every supported protocol
	bandLowHz  = 700.0
	bandHighHz = 2500.0
)

// Config configures a Decoder.
type Config struct {
	Spec           *protocol.Spec
	SampleRate     int
	Code           string        // target code; empty monitors without matching
	CodeLength     int           // 0 uses the protocol default
	ToneDuration   time.Duration // 0 uses the protocol standard
	GateHold       time.Duration // 0 uses DefaultGateHold
	GateRamp       time.Duration // 0 uses DefaultGateRamp
	RatioThreshold float64
	MinConsecutive int
	Decimation     int     // analysis decimation factor, 0/1 disables
	GapTolerance   int     // windows, 0 uses the protocol default
	Bandpass       bool    // pre-filter the analysis path
	BandLowHz      float64 // lower pre-filter corner, 0 uses 700 Hz
	BandHighHz     float64 // upper pre-filter corner, 0 uses 2500 Hz
}

// DecodeEvent reports one completed code evaluation.
type DecodeEvent struct {
	ID        string    `json:"id"`
	Protocol  string    `json:"protocol"`
	Raw       string    `json:"raw"`
	Code      string    `json:"code"`
	Display   string    `json:"display"`
	Matched   bool      `json:"matched"`
	Pos       int64     `json:"sample_pos"`
	Timestamp time.Time `json:"timestamp"`
}

// Decoder runs the full receive chain: optional bandpass, tone detection,
// code matching and the audio gate. It is driven from a single audio
// goroutine; the snapshot accessors are safe from any goroutine.
type Decoder struct {
	spec     *protocol.Spec
	log      *logger.Logger
	detector *Detector
	machine  *StateMachine
	gate     *Gate
	band     *dsp.BandPass

	holdSamples   int64
	holdRemaining int64

	analysis []float64

	gateOpen atomic.Bool
	state    atomic.Int32

	onDecode func(DecodeEvent)
	onRing   func()
}

// New validates cfg and builds the receive chain.
func New(cfg Config, log *logger.Logger) (*Decoder, error) {
	det, err := NewDetector(DetectorConfig{
		Spec:           cfg.Spec,
		SampleRate:     cfg.SampleRate,
		ToneDuration:   cfg.ToneDuration,
		RatioThreshold: cfg.RatioThreshold,
		MinConsecutive: cfg.MinConsecutive,
		Decimation:     cfg.Decimation,
	})
	if err != nil {
		return nil, err
	}
	machine, err := NewStateMachine(cfg.Spec, cfg.Code, cfg.CodeLength, cfg.GapTolerance)
	if err != nil {
		return nil, err
	}

	hold := cfg.GateHold
	if hold == 0 {
		hold = DefaultGateHold
	}
	ramp := cfg.GateRamp
	if ramp == 0 {
		ramp = DefaultGateRamp
	}

	d := &Decoder{
		spec:        cfg.Spec,
		log:         log.WithComponent("decoder"),
		detector:    det,
		machine:     machine,
		gate:        NewGate(ramp, cfg.SampleRate),
		holdSamples: int64(float64(cfg.SampleRate) * hold.Seconds()),
	}
	if cfg.Bandpass {
		low := cfg.BandLowHz
		if low <= 0 {
			low = bandLowHz
		}
		high := cfg.BandHighHz
		if high <= 0 {
			high = bandHighHz
		}
		if high <= low {
			return nil, fmt.Errorf("decoder: bandpass corners %.0f-%.0f Hz are inverted", low, high)
		}
		d.band = dsp.NewBandPass(low, high, float64(cfg.SampleRate))
	}
	return d, nil
}

// SetDecodeHandler registers the callback invoked for every completed code
// evaluation. Must be called before Process.
func (d *Decoder) SetDecodeHandler(h func(DecodeEvent)) {
	d.onDecode = h
}

// SetRingHandler registers the callback invoked when a matched decode
// opens the gate. Must be called before Process.
func (d *Decoder) SetRingHandler(h func()) {
	d.onRing = h
}

// Process consumes one chunk of receive audio and writes the gated
// monitor audio into out. len(out) must equal len(in).
func (d *Decoder) Process(in, out []float64) {
	analysis := in
	if d.band != nil {
		d.analysis = append(d.analysis[:0], in...)
		d.band.ProcessBuffer(d.analysis)
		analysis = d.analysis
	}

	for _, ev := range d.detector.Process(analysis) {
		res := d.machine.Feed(ev)
		if res != nil {
			d.emit(res)
		}
	}
	d.state.Store(int32(d.machine.State()))

	if d.holdRemaining > 0 {
		d.holdRemaining -= int64(len(in))
		if d.holdRemaining <= 0 {
			d.holdRemaining = 0
			d.gate.SetOpen(false)
			d.gateOpen.Store(false)
			d.log.Info("receive gate closed")
		}
	}
	d.gate.Apply(in, out)
}

func (d *Decoder) emit(res *Result) {
	ev := DecodeEvent{
		ID:        uuid.New().String(),
		Protocol:  d.spec.Name,
		Raw:       res.Raw,
		Code:      res.Code,
		Display:   res.Display,
		Matched:   res.Matched,
		Pos:       res.Pos,
		Timestamp: time.Now().UTC(),
	}

	d.log.Info("code decoded",
		logger.String("code", res.Code),
		logger.String("display", res.Display),
		logger.Bool("matched", res.Matched))

	if res.Matched {
		restarted := d.gate.IsOpen()
		d.holdRemaining = d.holdSamples
		d.gate.SetOpen(true)
		d.gateOpen.Store(true)
		if restarted {
			d.log.Info("receive gate hold restarted", logger.String("code", res.Code))
		} else {
			d.log.Info("receive gate opened", logger.String("code", res.Code))
		}
		if d.onRing != nil {
			d.onRing()
		}
	}
	if d.onDecode != nil {
		d.onDecode(ev)
	}
}

// GateOpen reports whether the receive gate is currently open.
func (d *Decoder) GateOpen() bool {
	return d.gateOpen.Load()
}

// State returns the matcher state as of the last processed chunk.
func (d *Decoder) State() State {
	return State(d.state.Load())
}

// NoiseFloor returns the detector's adaptive noise estimate.
func (d *Decoder) NoiseFloor() float64 {
	return d.detector.NoiseFloor()
}

// DetectorStats returns cumulative window classifications and confirmed
// symbol counts for the metrics exporter.
func (d *Decoder) DetectorStats() (symbolWindows, emptyWindows, confirmedSymbols uint64) {
	return d.detector.Stats()
}

// SpectrumWindow copies the most recent analysis block into dst and
// returns the analysis sample rate. Feeds the spectrum debug endpoint.
func (d *Decoder) SpectrumWindow(dst []float64) (int, float64) {
	return d.detector.LastWindow(dst), d.detector.AnalysisRate()
}

// AnalysisLen returns the detector's analysis block length.
func (d *Decoder) AnalysisLen() int {
	return d.detector.AnalysisLen()
}
