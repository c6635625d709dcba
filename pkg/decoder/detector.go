// Package decoder turns a continuous audio sample stream into validated
// SelCall codes and drives the receive audio gate.
package decoder

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pietro2356/gr-selcall/pkg/dsp"
	"github.com/pietro2356/gr-selcall/pkg/protocol"
)

// Detector defaults
const (
	DefaultRatioThreshold = 2.5   // margin over the second-best candidate
	DefaultHardFloor      = 100.0 // absolute power floor, rejects idle-channel noise
	DefaultMinConsecutive = 1     // windows a classification must persist

	// adaptive noise floor estimation
	noiseInitial     = 10.0 // starting estimate before any audio is seen
	noiseGuardFactor = 20.0 // windows louder than guard*avg are signal, not noise
	noiseAlpha       = 0.95 // EMA weight of the running estimate
	noiseThreshold   = 8.0  // detection threshold as a multiple of the estimate

	sweepHalfBandHz = 8.0 // per-candidate probe band
	sweepSteps      = 5
)

// SymbolEvent is one detector observation: a confirmed symbol, or a gap
// marker for a window with no acceptable tone. Continuation windows of an
// already-confirmed tone produce no event.
type SymbolEvent struct {
	Symbol protocol.Symbol // confirmed symbol, or protocol.NoSymbol
	Power  float64         // strongest candidate power in the window
	Pos    int64           // sample position of the window start
}

// DetectorConfig configures tone classification.
type DetectorConfig struct {
	Spec           *protocol.Spec
	SampleRate     int
	ToneDuration   time.Duration // 0 uses the protocol's standard duration
	RatioThreshold float64       // 0 uses DefaultRatioThreshold
	MinConsecutive int           // 0 uses DefaultMinConsecutive
	Decimation     int           // analysis decimation factor, 0/1 disables
	HardFloor      float64       // 0 uses DefaultHardFloor
}

// Detector classifies successive non-overlapping tone windows into
// symbols. It consumes full-rate audio; analysis optionally runs at a
// decimated rate to cut Goertzel cost.
type Detector struct {
	spec      *protocol.Spec
	symbols   []protocol.Symbol
	rate      int
	decim     int
	ratio     float64
	minRun    int
	hardFloor float64

	clock       *dsp.ToneClock
	bank        *dsp.ToneBank
	window      *dsp.AnalysisWindow
	analysisLen int

	buf     []float64
	nextWin int
	pos     int64

	powers  []float64
	scratch []float64

	runSym protocol.Symbol
	runLen int

	winSymbol    atomic.Uint64
	winEmpty     atomic.Uint64
	symConfirmed atomic.Uint64

	mu        sync.Mutex
	noiseAvg  float64
	lastBlock []float64
}

// NewDetector validates the configuration and builds the Goertzel bank.
func NewDetector(cfg DetectorConfig) (*Detector, error) {
	if cfg.Spec == nil {
		return nil, fmt.Errorf("detector: protocol spec is required")
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("detector: sample rate must be positive, got %d", cfg.SampleRate)
	}
	tone := cfg.ToneDuration
	if tone <= 0 {
		tone = cfg.Spec.ToneDuration
	}
	ratio := cfg.RatioThreshold
	if ratio == 0 {
		ratio = DefaultRatioThreshold
	}
	if ratio <= 1 {
		return nil, fmt.Errorf("detector: ratio threshold must exceed 1, got %.2f", ratio)
	}
	minRun := cfg.MinConsecutive
	if minRun == 0 {
		minRun = DefaultMinConsecutive
	}
	if minRun < 1 {
		return nil, fmt.Errorf("detector: min consecutive windows must be at least 1, got %d", minRun)
	}
	decim := cfg.Decimation
	if decim <= 0 {
		decim = 1
	}
	floor := cfg.HardFloor
	if floor == 0 {
		floor = DefaultHardFloor
	}

	maxFreq := 0.0
	for _, f := range cfg.Spec.Frequencies() {
		if f > maxFreq {
			maxFreq = f
		}
	}
	analysisRate := float64(cfg.SampleRate) / float64(decim)
	if analysisRate <= 2*maxFreq {
		return nil, fmt.Errorf("detector: decimation %d leaves %.0f Hz below Nyquist for %.0f Hz tones",
			decim, analysisRate, maxFreq)
	}

	clock := dsp.NewToneClock(tone, cfg.SampleRate)
	analysisLen := clock.Nominal() / decim
	if analysisLen < 8 {
		return nil, fmt.Errorf("detector: window of %d analysis samples is too short", analysisLen)
	}

	d := &Detector{
		spec:        cfg.Spec,
		symbols:     cfg.Spec.Symbols(),
		rate:        cfg.SampleRate,
		decim:       decim,
		ratio:       ratio,
		minRun:      minRun,
		hardFloor:   floor,
		clock:       clock,
		bank:        dsp.NewToneBank(cfg.Spec.Frequencies(), analysisRate, analysisLen, sweepHalfBandHz, sweepSteps),
		window:      dsp.NewAnalysisWindow(analysisLen),
		analysisLen: analysisLen,
		powers:      make([]float64, len(cfg.Spec.Frequencies())),
		scratch:     make([]float64, 0, analysisLen+1),
		runSym:      protocol.NoSymbol,
		noiseAvg:    noiseInitial,
		lastBlock:   make([]float64, analysisLen),
	}
	d.nextWin = d.clock.Next()
	return d, nil
}

// Process consumes a chunk of full-rate samples and returns the detector
// events completed by it, in stream order.
func (d *Detector) Process(samples []float64) []SymbolEvent {
	d.buf = append(d.buf, samples...)

	var events []SymbolEvent
	for len(d.buf) >= d.nextWin {
		if ev, ok := d.classify(d.buf[:d.nextWin]); ok {
			events = append(events, ev)
		}
		d.pos += int64(d.nextWin)
		n := copy(d.buf, d.buf[d.nextWin:])
		d.buf = d.buf[:n]
		d.nextWin = d.clock.Next()
	}
	return events
}

// classify analyzes one tone window. It returns an event for a confirmed
// symbol or a gap window; continuation windows return ok=false.
func (d *Detector) classify(window []float64) (SymbolEvent, bool) {
	d.scratch = dsp.Downsample(d.scratch[:0], window, d.decim)
	block := d.scratch[:d.analysisLen]

	d.mu.Lock()
	copy(d.lastBlock, block)
	d.mu.Unlock()

	d.bank.Powers(d.window.Apply(block), d.powers)

	best, second := 0, -1
	for i, p := range d.powers {
		if p > d.powers[best] {
			best = i
		}
	}
	for i, p := range d.powers {
		if i == best {
			continue
		}
		if second < 0 || p > d.powers[second] {
			second = i
		}
	}
	maxPower := d.powers[best]
	secondPower := 0.0
	if second >= 0 {
		secondPower = d.powers[second]
	}

	d.mu.Lock()
	if maxPower < d.noiseAvg*noiseGuardFactor {
		d.noiseAvg = noiseAlpha*d.noiseAvg + (1-noiseAlpha)*maxPower
	}
	adaptive := d.noiseAvg * noiseThreshold
	d.mu.Unlock()

	sym := protocol.NoSymbol
	if maxPower > adaptive && maxPower > d.hardFloor && maxPower >= secondPower*d.ratio {
		sym = d.symbols[best]
	}

	pos := d.pos
	if sym == protocol.NoSymbol {
		d.winEmpty.Add(1)
		d.runSym = protocol.NoSymbol
		d.runLen = 0
		return SymbolEvent{Symbol: protocol.NoSymbol, Power: maxPower, Pos: pos}, true
	}
	d.winSymbol.Add(1)

	if sym == d.runSym {
		d.runLen++
	} else {
		d.runSym = sym
		d.runLen = 1
	}
	if d.runLen == d.minRun {
		d.symConfirmed.Add(1)
		return SymbolEvent{Symbol: sym, Power: maxPower, Pos: pos}, true
	}
	return SymbolEvent{}, false
}

// NoiseFloor returns the current adaptive noise estimate.
func (d *Detector) NoiseFloor() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.noiseAvg
}

// Stats returns cumulative window classifications by outcome and the
// number of debounced symbol decisions.
func (d *Detector) Stats() (symbolWindows, emptyWindows, confirmedSymbols uint64) {
	return d.winSymbol.Load(), d.winEmpty.Load(), d.symConfirmed.Load()
}

// LastWindow copies the most recent analysis block into dst and returns
// the number of samples copied. Used by the spectrum debug endpoint.
func (d *Detector) LastWindow(dst []float64) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return copy(dst, d.lastBlock)
}

// AnalysisLen returns the analysis block length in decimated samples.
func (d *Detector) AnalysisLen() int {
	return d.analysisLen
}

// AnalysisRate returns the decimated sample rate the bank runs at.
func (d *Detector) AnalysisRate() float64 {
	return float64(d.rate) / float64(d.decim)
}
