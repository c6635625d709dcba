// Package transmit serializes selective calls onto the air: it renders
// encoder jobs one at a time, keys the PTT line around the audio, and
// guards every transmission with a watchdog.
package transmit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pietro2356/gr-selcall/pkg/audio"
	"github.com/pietro2356/gr-selcall/pkg/encoder"
	"github.com/pietro2356/gr-selcall/pkg/logger"
	"github.com/pietro2356/gr-selcall/pkg/protocol"
	"github.com/pietro2356/gr-selcall/pkg/ptt"
)

const (
	// DefaultChunkSize is the number of samples per sink write.
	DefaultChunkSize = 512

	// DefaultMaxDuration caps one transmission before the watchdog forces
	// PTT off.
	DefaultMaxDuration = 10 * time.Second

	// DefaultStallTimeout aborts a transmission when the sink has accepted
	// no audio for this long.
	DefaultStallTimeout = 2 * time.Second
)

var (
	// ErrBusy rejects a job while a transmission is in flight and the
	// queue, if any, is full.
	ErrBusy = errors.New("transmit: busy")

	// ErrStopped rejects jobs while the controller is not running.
	ErrStopped = errors.New("transmit: controller stopped")
)

// TxState describes the transmit side of the radio.
type TxState int

const (
	TxIdle TxState = iota
	TxKeyed
	TxDraining
)

func (s TxState) String() string {
	switch s {
	case TxIdle:
		return "idle"
	case TxKeyed:
		return "keyed"
	case TxDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// Job is one queued transmission request.
type Job struct {
	ID          string
	Destination string
	Origin      string // "api", "mqtt", "cli"
	SubmittedAt time.Time
}

// PTTEvent is a transmit key edge.
type PTTEvent struct {
	On        bool      `json:"on"`
	JobID     string    `json:"job_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Record describes one finished transmission.
type Record struct {
	ID          string    `json:"id"`
	Protocol    string    `json:"protocol"`
	Source      string    `json:"source,omitempty"`
	Destination string    `json:"destination"`
	Symbols     string    `json:"symbols"`
	Origin      string    `json:"origin,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	Duration    float64   `json:"duration_s"`
	Samples     int64     `json:"samples"`
	Aborted     bool      `json:"aborted"`
}

// Config configures a Controller.
type Config struct {
	Encoder *encoder.Encoder
	Sink    audio.Sink
	Keyer   ptt.Keyer // nil uses a no-op keyer
	Logger  *logger.Logger

	// Source is the personal code sent with every call, placed before or
	// after the destination per the encoder's field order. Empty sends
	// destination-only calls.
	Source string

	ChunkSize    int           // samples per sink write, 0 uses DefaultChunkSize
	QueueSize    int           // jobs held while busy, 0 rejects instead
	MaxDuration  time.Duration // transmission cap, 0 uses DefaultMaxDuration
	StallTimeout time.Duration // sink inactivity cap, 0 uses DefaultStallTimeout
	Pace         bool          // pace writes at the sample rate (network sinks)
}

// Controller owns the encoder and the PTT line. Jobs are rendered
// strictly one at a time by the Run loop; Submit never blocks.
type Controller struct {
	enc    *encoder.Encoder
	sink   audio.Sink
	keyer  ptt.Keyer
	log    *logger.Logger
	source string
	chunk  int
	maxDur time.Duration
	stall  time.Duration
	pace   bool

	jobs     chan Job
	watchdog *Watchdog
	state    atomic.Int32
	running  atomic.Bool
	aborted  atomic.Bool
	current  atomic.Value // job ID string, "" when idle

	onPTT    func(PTTEvent)
	onRecord func(Record)
}

// New validates cfg and returns a Controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Encoder == nil {
		return nil, fmt.Errorf("transmit: encoder is required")
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("transmit: audio sink is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("transmit: logger is required")
	}
	source := protocol.Normalize(cfg.Source)
	if source != "" {
		if err := cfg.Encoder.Spec().ValidateCode(source, cfg.Encoder.CodeLength()); err != nil {
			return nil, fmt.Errorf("transmit: source code: %w", err)
		}
	}
	if cfg.ChunkSize < 0 {
		return nil, fmt.Errorf("transmit: chunk size must not be negative, got %d", cfg.ChunkSize)
	}
	if cfg.QueueSize < 0 {
		return nil, fmt.Errorf("transmit: queue size must not be negative, got %d", cfg.QueueSize)
	}
	if cfg.MaxDuration < 0 || cfg.StallTimeout < 0 {
		return nil, fmt.Errorf("transmit: timeouts must not be negative")
	}
	chunk := cfg.ChunkSize
	if chunk == 0 {
		chunk = DefaultChunkSize
	}
	maxDur := cfg.MaxDuration
	if maxDur == 0 {
		maxDur = DefaultMaxDuration
	}
	stall := cfg.StallTimeout
	if stall == 0 {
		stall = DefaultStallTimeout
	}
	keyer := cfg.Keyer
	if keyer == nil {
		keyer = ptt.NewNoopKeyer()
	}
	c := &Controller{
		enc:      cfg.Encoder,
		sink:     cfg.Sink,
		keyer:    keyer,
		log:      cfg.Logger.WithComponent("transmit"),
		source:   source,
		chunk:    chunk,
		maxDur:   maxDur,
		stall:    stall,
		pace:     cfg.Pace,
		jobs:     make(chan Job, cfg.QueueSize),
		watchdog: NewWatchdog(),
	}
	c.current.Store("")
	return c, nil
}

// SetPTTHandler registers a callback for key edges. Must be called
// before Run.
func (c *Controller) SetPTTHandler(fn func(PTTEvent)) {
	c.onPTT = fn
}

// SetRecordHandler registers a callback for finished transmissions.
// Must be called before Run.
func (c *Controller) SetRecordHandler(fn func(Record)) {
	c.onRecord = fn
}

// Submit queues a call to destination. It validates the code and never
// blocks: while a transmission is in flight and the queue is full (or
// absent) the job is rejected with ErrBusy. Returns the job ID.
func (c *Controller) Submit(destination, origin string) (string, error) {
	if !c.running.Load() {
		return "", ErrStopped
	}
	destination = protocol.Normalize(destination)
	if err := c.enc.Spec().ValidateCode(destination, c.enc.CodeLength()); err != nil {
		c.log.Debug("transmission request rejected",
			logger.String("origin", origin),
			logger.Error(err))
		return "", err
	}
	job := Job{
		ID:          uuid.New().String(),
		Destination: destination,
		Origin:      origin,
		SubmittedAt: time.Now(),
	}
	select {
	case c.jobs <- job:
		c.log.Debug("transmission queued",
			logger.String("id", job.ID),
			logger.String("destination", destination),
			logger.String("origin", origin))
		return job.ID, nil
	default:
		c.log.Warn("transmission rejected, transmitter busy",
			logger.String("destination", destination),
			logger.String("origin", origin))
		return "", ErrBusy
	}
}

// State reports the transmit side as last set by the render loop.
func (c *Controller) State() TxState {
	return TxState(c.state.Load())
}

// Pending returns the number of queued jobs not yet started.
func (c *Controller) Pending() int {
	return len(c.jobs)
}

// Run renders queued jobs until ctx is cancelled. It is the only
// goroutine that touches the sink; the keyer is shared with the
// watchdog, which may force it off.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return fmt.Errorf("transmit: controller already running")
	}
	defer c.running.Store(false)
	defer c.watchdog.StopAll()

	c.log.Info("transmit controller started",
		logger.Int("queue_size", cap(c.jobs)),
		logger.Float64("max_tx_s", c.maxDur.Seconds()))
	for {
		select {
		case <-ctx.Done():
			if n := len(c.jobs); n > 0 {
				c.log.Warn("dropping queued transmissions", logger.Int("count", n))
			}
			c.log.Info("transmit controller stopped")
			return nil
		case job := <-c.jobs:
			c.transmit(ctx, job)
		}
	}
}

func (c *Controller) transmit(ctx context.Context, job Job) {
	rendering, err := c.enc.Call(c.source, job.Destination)
	if err != nil {
		// Submit validated already, so this is unexpected.
		c.log.Error("render failed", logger.String("id", job.ID), logger.Error(err))
		return
	}

	c.aborted.Store(false)
	c.current.Store(job.ID)
	start := time.Now()
	if err := c.keyer.Key(); err != nil {
		c.log.Error("ptt key failed", logger.String("id", job.ID), logger.Error(err))
		c.current.Store("")
		return
	}
	c.state.Store(int32(TxKeyed))
	c.emitPTT(true, job.ID, start)
	c.watchdog.Arm(job.ID+":total", c.maxDur, func() {
		c.forceAbort(job.ID, "max transmission time exceeded")
	})
	c.watchdog.Arm(job.ID+":stall", c.stall, func() {
		c.forceAbort(job.ID, "audio sink stalled")
	})
	c.log.Info("transmission started",
		logger.String("id", job.ID),
		logger.String("destination", job.Destination),
		logger.String("symbols", rendering.Symbols()),
		logger.Float64("audio_s", rendering.Duration().Seconds()))

	interval := time.Duration(float64(c.chunk) / float64(c.enc.SampleRate()) * float64(time.Second))
	var ticker *time.Ticker
	if c.pace {
		ticker = time.NewTicker(interval)
		defer ticker.Stop()
	}

	buf := make([]float64, c.chunk)
	var sent int64
stream:
	for {
		if c.aborted.Load() || ctx.Err() != nil {
			break
		}
		n, err := rendering.Read(buf)
		if n > 0 {
			if werr := c.sink.Write(buf[:n]); werr != nil {
				c.log.Error("sink write failed", logger.String("id", job.ID), logger.Error(werr))
				break
			}
			sent += int64(n)
			c.watchdog.Refresh(job.ID + ":stall")
		}
		if err == io.EOF {
			break
		}
		if ticker != nil {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				break stream
			}
		}
	}

	c.state.Store(int32(TxDraining))
	c.watchdog.Disarm(job.ID + ":stall")
	if ticker != nil && !c.aborted.Load() && ctx.Err() == nil {
		// let the final chunk play out before dropping the key
		select {
		case <-ticker.C:
		case <-ctx.Done():
		}
	}
	c.watchdog.Disarm(job.ID + ":total")

	end := time.Now()
	if err := c.keyer.Unkey(); err != nil {
		c.log.Error("ptt unkey failed", logger.String("id", job.ID), logger.Error(err))
	}
	c.current.Store("")
	c.state.Store(int32(TxIdle))
	c.emitPTT(false, job.ID, end)

	aborted := c.aborted.Load() || ctx.Err() != nil
	rec := Record{
		ID:          job.ID,
		Protocol:    c.enc.Spec().Name,
		Source:      c.source,
		Destination: job.Destination,
		Symbols:     rendering.Symbols(),
		Origin:      job.Origin,
		StartedAt:   start,
		EndedAt:     end,
		Duration:    end.Sub(start).Seconds(),
		Samples:     sent,
		Aborted:     aborted,
	}
	if aborted {
		c.log.Warn("transmission aborted",
			logger.String("id", job.ID),
			logger.Int64("samples_sent", sent))
	} else {
		c.log.Info("transmission complete",
			logger.String("id", job.ID),
			logger.Float64("wall_s", rec.Duration))
	}
	if c.onRecord != nil {
		c.onRecord(rec)
	}
}

// forceAbort runs on the watchdog goroutine. The key drops immediately;
// the render loop notices the flag and finishes the job as aborted.
func (c *Controller) forceAbort(jobID, reason string) {
	if id, _ := c.current.Load().(string); id != jobID {
		return
	}
	if !c.aborted.CompareAndSwap(false, true) {
		return
	}
	c.log.Warn("transmit watchdog fired",
		logger.String("id", jobID),
		logger.String("reason", reason))
	if err := c.keyer.Unkey(); err != nil {
		c.log.Error("ptt unkey failed", logger.String("id", jobID), logger.Error(err))
	}
}

func (c *Controller) emitPTT(on bool, jobID string, at time.Time) {
	if c.onPTT == nil {
		return
	}
	c.onPTT(PTTEvent{On: on, JobID: jobID, Timestamp: at})
}
