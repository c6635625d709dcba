package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pietro2356/gr-selcall/pkg/audio"
	"github.com/pietro2356/gr-selcall/pkg/config"
	"github.com/pietro2356/gr-selcall/pkg/database"
	"github.com/pietro2356/gr-selcall/pkg/decoder"
	"github.com/pietro2356/gr-selcall/pkg/directory"
	"github.com/pietro2356/gr-selcall/pkg/dispatch"
	"github.com/pietro2356/gr-selcall/pkg/dsp"
	"github.com/pietro2356/gr-selcall/pkg/encoder"
	"github.com/pietro2356/gr-selcall/pkg/logger"
	"github.com/pietro2356/gr-selcall/pkg/metrics"
	"github.com/pietro2356/gr-selcall/pkg/mqtt"
	"github.com/pietro2356/gr-selcall/pkg/protocol"
	"github.com/pietro2356/gr-selcall/pkg/ptt"
	"github.com/pietro2356/gr-selcall/pkg/ringer"
	"github.com/pietro2356/gr-selcall/pkg/transmit"
	"github.com/pietro2356/gr-selcall/pkg/web"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// receiveChunk is the number of samples pulled from stdin/wav input per
// processing step (about 21 ms at 48 kHz).
const receiveChunk = 1024

// recentDecodeCap bounds the in-memory decode log backing /api/decodes
// when the database is disabled.
const recentDecodeCap = 200

func main() {
	// Parse command line flags
	configFile := flag.String("config", "", "Path to configuration file (searches for selcall.yaml when empty)")
	showVersion := flag.Bool("version", false, "Show version information")
	validate := flag.Bool("validate", false, "Validate configuration and exit")
	flag.Parse()

	// Show version
	if *showVersion {
		fmt.Printf("selcalld %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	// Initialize basic logger for startup
	log := logger.New(logger.Config{
		Level:  "info",
		Format: "text",
	})

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Error("Failed to load configuration", logger.Error(err))
		os.Exit(1)
	}

	// Validate only mode
	if *validate {
		log.Info("Configuration is valid")
		os.Exit(0)
	}

	// Reinitialize logger with config settings. When an audio output
	// streams PCM to stdout the logs move to stderr to keep the stream
	// clean.
	logOut, err := openLogOutput(cfg)
	if err != nil {
		log.Error("Failed to open log output", logger.Error(err))
		os.Exit(1)
	}
	log = logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: logOut,
	})

	log.Info("Starting selcalld",
		logger.String("version", version),
		logger.String("build_time", buildTime),
		logger.String("protocol", cfg.Protocol.Name))

	spec, err := protocol.Get(cfg.Protocol.Name)
	if err != nil {
		// Load validated the name already, so this is unexpected.
		log.Error("Unknown protocol", logger.Error(err))
		os.Exit(1)
	}
	toneDuration := time.Duration(cfg.Protocol.ToneDurationMS) * time.Millisecond

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize wait group for goroutines
	var wg sync.WaitGroup

	// Initialize metrics collector
	collector := metrics.NewCollector()
	startTime := time.Now()

	// Initialize database if enabled
	var (
		db         *database.DB
		decodeRepo *database.DecodeRepository
		txRepo     *database.TransmissionRepository
	)
	if cfg.Database.Enabled {
		db, err = database.NewDB(database.Config{Path: cfg.Database.Path}, log.WithComponent("database"))
		if err != nil {
			log.Error("Failed to initialize database", logger.Error(err))
			os.Exit(1)
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Error("Failed to close database", logger.Error(err))
			}
		}()
		decodeRepo = database.NewDecodeRepository(db.GetDB())
		txRepo = database.NewTransmissionRepository(db.GetDB())

		if cfg.Database.RetentionDays > 0 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				runRetention(ctx, decodeRepo, txRepo, cfg.Database.RetentionDays, log.WithComponent("retention"))
			}()
		}
	}

	// Start directory syncer if enabled
	var dirSyncer *directory.Syncer
	if cfg.Directory.Enabled {
		dirRepo := database.NewDirectoryRepository(db.GetDB())
		dirSyncer = directory.NewSyncer(
			cfg.Directory.URL,
			time.Duration(cfg.Directory.RefreshHours)*time.Hour,
			dirRepo,
			log.WithComponent("directory"),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			dirSyncer.Start(ctx)
		}()
	}

	// The dispatcher decouples the sample path from MQTT, WebSocket,
	// database and GPIO consumers.
	bus := dispatch.New(log)
	recent := newDecodeLog(recentDecodeCap)

	// Initialize ringer if enabled
	var ring *ringer.Ringer
	if cfg.Ringer.Enabled {
		ring, err = ringer.New(ringer.Config{
			SampleRate: cfg.Audio.SampleRate,
			ToneA:      cfg.Ringer.FreqAHz,
			ToneB:      cfg.Ringer.FreqBHz,
			Toggle:     time.Duration(cfg.Ringer.IntervalMS) * time.Millisecond,
			Duration:   time.Duration(cfg.Ringer.DurationS * float64(time.Second)),
			Amplitude:  cfg.Ringer.Amplitude,
		})
		if err != nil {
			log.Error("Failed to initialize ringer", logger.Error(err))
			os.Exit(1)
		}
		ring.SetIndicatorHandler(func(on bool) {
			bus.Publish(dispatch.NewEvent(dispatch.EventRinger, ringerPayload{
				Active:    on,
				Timestamp: time.Now().UTC(),
			}))
		})
	}

	// Initialize decoder if enabled
	var dec *decoder.Decoder
	if cfg.Decoder.Enabled {
		decLog := log
		if cfg.Decoder.Debug {
			decLog = logger.New(logger.Config{Level: "debug", Format: cfg.Log.Format, Output: logOut})
		}
		dec, err = decoder.New(decoder.Config{
			Spec:           spec,
			SampleRate:     cfg.Audio.SampleRate,
			Code:           cfg.Decoder.TargetCode,
			CodeLength:     cfg.Protocol.CodeLength,
			ToneDuration:   toneDuration,
			GateHold:       time.Duration(cfg.Decoder.GateHoldS * float64(time.Second)),
			GateRamp:       time.Duration(cfg.Decoder.RampMS) * time.Millisecond,
			RatioThreshold: cfg.Decoder.RatioThreshold,
			MinConsecutive: cfg.Decoder.MinConsecutive,
			Decimation:     cfg.Decoder.Decimation,
			GapTolerance:   cfg.Protocol.GapToleranceWin,
			Bandpass:       cfg.Decoder.Bandpass.Enabled,
			BandLowHz:      cfg.Decoder.Bandpass.LowHz,
			BandHighHz:     cfg.Decoder.Bandpass.HighHz,
		}, decLog)
		if err != nil {
			log.Error("Failed to initialize decoder", logger.Error(err))
			os.Exit(1)
		}
		dec.SetDecodeHandler(func(ev decoder.DecodeEvent) {
			p := decodePayload{DecodeEvent: ev}
			if dirSyncer != nil {
				p.Label = dirSyncer.LabelFor(ev.Code)
			}
			recent.add(p)
			collector.DecodeCompleted(ev.Matched)
			bus.Publish(dispatch.NewEvent(dispatch.EventDecode, p))
		})
		dec.SetRingHandler(func() {
			collector.RingerTriggered()
			if ring != nil {
				ring.Trigger()
			}
		})
		if cfg.Decoder.TargetCode == "" {
			log.Info("Decoder in monitor mode, no target code configured")
		}
	}

	// Monitor audio output for the gated receive stream
	monitorSink, closeMonitor, err := buildSink(cfg.Audio.Output, cfg.Audio.SampleRate)
	if err != nil {
		log.Error("Failed to open audio output", logger.Error(err))
		os.Exit(1)
	}
	if closeMonitor != nil {
		defer func() {
			if err := closeMonitor(); err != nil {
				log.Warn("Failed to close audio output", logger.Error(err))
			}
		}()
	}

	// Initialize encoder and transmit controller if enabled
	var controller *transmit.Controller
	if cfg.Encoder.Enabled {
		order, err := encoder.ParseFieldOrder(cfg.Encoder.FieldOrder)
		if err != nil {
			log.Error("Invalid field order", logger.Error(err))
			os.Exit(1)
		}
		enc, err := encoder.New(encoder.Config{
			Spec:         spec,
			SampleRate:   cfg.Audio.SampleRate,
			CodeLength:   cfg.Protocol.CodeLength,
			ToneDuration: toneDuration,
			Amplitude:    cfg.Encoder.Amplitude,
			LeadIn:       time.Duration(cfg.Encoder.LeadMS) * time.Millisecond,
			TailOut:      time.Duration(cfg.Encoder.TailMS) * time.Millisecond,
			FieldOrder:   order,
		})
		if err != nil {
			log.Error("Failed to initialize encoder", logger.Error(err))
			os.Exit(1)
		}

		txSink, closeTx, err := buildSink(cfg.Encoder.Output, cfg.Audio.SampleRate)
		if err != nil {
			log.Error("Failed to open transmit output", logger.Error(err))
			os.Exit(1)
		}
		if closeTx != nil {
			defer func() {
				if err := closeTx(); err != nil {
					log.Warn("Failed to close transmit output", logger.Error(err))
				}
			}()
		}

		keyer, err := buildKeyer(cfg.PTT, log)
		if err != nil {
			log.Error("Failed to acquire PTT line", logger.Error(err))
			os.Exit(1)
		}
		defer func() {
			if err := keyer.Close(); err != nil {
				log.Warn("Failed to release PTT line", logger.Error(err))
			}
		}()

		queueSize := 0
		if strings.EqualFold(cfg.Encoder.BusyPolicy, "queue") {
			queueSize = cfg.Encoder.QueueSize
		}
		controller, err = transmit.New(transmit.Config{
			Encoder:     enc,
			Sink:        txSink,
			Keyer:       keyer,
			Logger:      log,
			Source:      cfg.Encoder.PersonalCode,
			QueueSize:   queueSize,
			MaxDuration: time.Duration(cfg.Encoder.MaxTxS * float64(time.Second)),
			// UDP receivers have no backpressure, so writes are paced at
			// the sample rate.
			Pace: strings.EqualFold(cfg.Encoder.Output.Type, "udp"),
		})
		if err != nil {
			log.Error("Failed to initialize transmit controller", logger.Error(err))
			os.Exit(1)
		}
		controller.SetPTTHandler(func(e transmit.PTTEvent) {
			collector.TransmitActive(e.On)
			bus.Publish(dispatch.NewEvent(dispatch.EventPTT, e))
		})
		controller.SetRecordHandler(func(rec transmit.Record) {
			if rec.Aborted {
				collector.TransmissionAborted()
			} else {
				collector.TransmissionCompleted()
			}
			bus.Publish(dispatch.NewEvent(dispatch.EventTransmission, rec))
		})

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := controller.Run(ctx); err != nil {
				log.Error("Transmit controller error", logger.Error(err))
			}
		}()
	}

	// statusFn assembles the live snapshot served on /api/status and
	// broadcast over WebSocket
	statusFn := func() web.Status {
		matched, mismatched := collector.GetDecodes()
		completed, aborted, _ := collector.GetTransmissions()
		st := web.Status{
			Service:        "selcalld",
			Version:        version,
			Protocol:       spec.Name,
			UptimeS:        time.Since(startTime).Seconds(),
			GateOpen:       collector.IsGateOpen(),
			TxState:        transmit.TxIdle.String(),
			Decodes:        matched + mismatched,
			DecodesMatched: matched,
			Transmissions:  completed + aborted,
			RingerTriggers: collector.GetRingerTriggers(),
		}
		if controller != nil {
			st.TxState = controller.State().String()
		}
		return st
	}

	// Initialize MQTT client if enabled
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient = mqtt.New(mqtt.Config{
			Enabled:     cfg.MQTT.Enabled,
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			QoS:         cfg.MQTT.QoS,
			Protocol:    spec.Name,
		}, log)
		mqttClient.OnTxRequest(func(destination string) error {
			if controller == nil {
				return fmt.Errorf("transmit is disabled")
			}
			_, err := controller.Submit(destination, "mqtt")
			if errors.Is(err, transmit.ErrBusy) {
				collector.TransmissionRejected()
			}
			return err
		})
		if err := mqttClient.Start(ctx); err != nil {
			log.Error("Failed to start MQTT client", logger.Error(err))
			os.Exit(1)
		}

		sub := bus.Subscribe("mqtt", 0,
			dispatch.EventDecode, dispatch.EventTransmission,
			dispatch.EventGate, dispatch.EventRinger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			forwardMQTT(sub, mqttClient, collector)
		}()
	}

	// Start web server if enabled
	var hub *web.WebSocketHub
	if cfg.Web.Enabled {
		srv := web.NewServer(cfg.Web, log.WithComponent("web"))
		hub = srv.GetHub()

		api := srv.GetAPI()
		api.SetStatusFunc(statusFn)
		api.SetConfigFunc(func() interface{} { return cfg.Sanitized() })
		if decodeRepo != nil {
			api.SetDecodesFunc(func(limit int) (interface{}, error) {
				return decodeRepo.GetRecent(limit)
			})
		} else {
			api.SetDecodesFunc(func(limit int) (interface{}, error) {
				return recent.list(limit), nil
			})
		}
		if dec != nil {
			api.SetSpectrumFunc(newSpectrumSource(dec).snapshot)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Web server error", logger.Error(err))
			}
		}()

		sub := bus.Subscribe("websocket", 0)
		wg.Add(1)
		go func() {
			defer wg.Done()
			forwardWebSocket(sub, hub)
		}()
	}

	// Start Prometheus metrics server if enabled
	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewPrometheusServer(metrics.PrometheusConfig{
			Enabled: cfg.Metrics.Enabled,
			Host:    cfg.Metrics.Host,
			Port:    cfg.Metrics.Port,
		}, collector, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metricsServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Prometheus metrics server error", logger.Error(err))
			}
		}()
	}

	// Database recorder subscriber
	if decodeRepo != nil {
		sub := bus.Subscribe("database", 0, dispatch.EventDecode, dispatch.EventTransmission)
		wg.Add(1)
		go func() {
			defer wg.Done()
			recordEvents(sub, decodeRepo, txRepo, log.WithComponent("database"))
		}()
	}

	// Call indicator subscriber follows the ringer edges
	if strings.EqualFold(cfg.LED.Type, "gpio") {
		indicator, err := buildIndicator(cfg.LED, log)
		if err != nil {
			log.Error("Failed to acquire LED line", logger.Error(err))
			os.Exit(1)
		}
		defer func() {
			if err := indicator.Close(); err != nil {
				log.Warn("Failed to release LED line", logger.Error(err))
			}
		}()

		sub := bus.Subscribe("led", 8, dispatch.EventRinger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ev := range sub.Events() {
				p, ok := ev.Payload.(ringerPayload)
				if !ok {
					continue
				}
				if err := indicator.Set(p.Active); err != nil {
					log.Warn("Failed to drive call indicator", logger.Error(err))
				}
			}
		}()
	}

	// Status broadcaster and gauge refresher
	wg.Add(1)
	go func() {
		defer wg.Done()
		runStatusLoop(ctx, bus, hub, collector, statusFn)
	}()

	// Receive chain
	if cfg.Decoder.Enabled {
		chain := &receiveChain{
			dec:       dec,
			ring:      ring,
			monitor:   monitorSink,
			bus:       bus,
			collector: collector,
			log:       log,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			runReceive(ctx, cfg, chain, log.WithComponent("audio"))
		}()
	} else {
		log.Info("Decoder disabled, not consuming receive audio")
	}

	log.Info("selcalld initialized",
		logger.String("input", cfg.Audio.Input.Type),
		logger.Bool("decoder", cfg.Decoder.Enabled),
		logger.Bool("encoder", cfg.Encoder.Enabled),
		logger.Bool("ringer", cfg.Ringer.Enabled))

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info("Received shutdown signal", logger.String("signal", sig.String()))

	// Cancel context to trigger graceful shutdown
	cancel()

	// Stop MQTT client if running
	if mqttClient != nil {
		mqttClient.Stop()
	}

	// Close the dispatcher so subscriber loops drain and exit
	bus.Close()

	// Wait for goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("Clean shutdown completed")
	case <-time.After(5 * time.Second):
		log.Warn("Shutdown timeout, forcing exit")
	}

	log.Info("selcalld stopped")
}

// decodePayload is the event payload fanned out for one decode: the
// decoder's event plus the directory label, when known.
type decodePayload struct {
	decoder.DecodeEvent
	Label string `json:"label,omitempty"`
}

// gatePayload reports an audio gate transition.
type gatePayload struct {
	Open      bool      `json:"open"`
	Timestamp time.Time `json:"timestamp"`
}

// ringerPayload reports a ringer start or stop edge.
type ringerPayload struct {
	Active    bool      `json:"active"`
	Timestamp time.Time `json:"timestamp"`
}

// decodeLog keeps the most recent decodes in memory so /api/decodes has
// something to serve when the database is disabled.
type decodeLog struct {
	mu  sync.Mutex
	buf []decodePayload
	max int
}

func newDecodeLog(max int) *decodeLog {
	return &decodeLog{max: max}
}

func (l *decodeLog) add(p decodePayload) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf = append(l.buf, p)
	if len(l.buf) > l.max {
		l.buf = l.buf[len(l.buf)-l.max:]
	}
}

// list returns up to limit decodes, newest first.
func (l *decodeLog) list(limit int) []decodePayload {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.buf)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]decodePayload, n)
	for i := 0; i < n; i++ {
		out[i] = l.buf[len(l.buf)-1-i]
	}
	return out
}

// receiveChain runs the per-chunk receive path: decode and gate, mix the
// ringer, then feed the monitor output. Driven from a single goroutine.
type receiveChain struct {
	dec       *decoder.Decoder
	ring      *ringer.Ringer
	monitor   audio.Sink
	bus       *dispatch.Dispatcher
	collector *metrics.Collector
	log       *logger.Logger

	out      []float64
	gateOpen bool
	sinkDown bool

	// last detector totals folded into the collector
	lastWinSym    uint64
	lastWinEmpty  uint64
	lastConfirmed uint64
}

func (r *receiveChain) process(in []float64) {
	if len(in) == 0 {
		return
	}
	if cap(r.out) < len(in) {
		r.out = make([]float64, len(in))
	}
	out := r.out[:len(in)]

	r.dec.Process(in, out)
	if r.ring != nil {
		r.ring.Mix(out)
	}

	r.collector.SamplesProcessed(uint64(len(in)))
	r.collector.NoiseFloorUpdated(r.dec.NoiseFloor())
	symWin, emptyWin, confirmed := r.dec.DetectorStats()
	for ; r.lastWinSym < symWin; r.lastWinSym++ {
		r.collector.WindowClassified(true)
	}
	for ; r.lastWinEmpty < emptyWin; r.lastWinEmpty++ {
		r.collector.WindowClassified(false)
	}
	for ; r.lastConfirmed < confirmed; r.lastConfirmed++ {
		r.collector.SymbolConfirmed()
	}
	if open := r.dec.GateOpen(); open != r.gateOpen {
		r.gateOpen = open
		if open {
			r.collector.GateOpened()
		} else {
			r.collector.GateClosed()
		}
		r.bus.Publish(dispatch.NewEvent(dispatch.EventGate, gatePayload{
			Open:      open,
			Timestamp: time.Now().UTC(),
		}))
	}

	if r.sinkDown {
		return
	}
	if err := r.monitor.Write(out); err != nil {
		// keep decoding; a dead monitor pipe must not stop the receiver
		r.log.Warn("Monitor output failed, disabling it", logger.Error(err))
		r.sinkDown = true
	}
}

// runReceive feeds the receive chain from the configured audio input
// until the input ends or ctx is cancelled.
func runReceive(ctx context.Context, cfg *config.Config, chain *receiveChain, log *logger.Logger) {
	switch strings.ToLower(cfg.Audio.Input.Type) {
	case "stdin":
		log.Info("Reading s16le PCM from stdin",
			logger.Int("sample_rate", cfg.Audio.SampleRate))
		err := audio.StreamChunks(ctx, os.Stdin, receiveChunk, chain.process)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Audio input failed", logger.Error(err))
			return
		}
		if err == nil {
			log.Info("Audio input ended")
		}

	case "wav":
		samples, rate, err := audio.ReadFile(cfg.Audio.Input.Path)
		if err != nil {
			log.Error("Failed to read input file", logger.Error(err))
			return
		}
		if rate != cfg.Audio.SampleRate {
			log.Error("Input file sample rate does not match configuration",
				logger.Int("file_rate", rate),
				logger.Int("configured_rate", cfg.Audio.SampleRate))
			return
		}
		start := time.Now()
		for i := 0; i < len(samples); i += receiveChunk {
			if ctx.Err() != nil {
				return
			}
			end := i + receiveChunk
			if end > len(samples) {
				end = len(samples)
			}
			chain.process(samples[i:end])
		}
		log.Info("Input file processed",
			logger.String("path", cfg.Audio.Input.Path),
			logger.Float64("audio_s", float64(len(samples))/float64(rate)),
			logger.Duration("took", time.Since(start)))

	case "udp":
		src := audio.NewUDPSource(cfg.Audio.Input.Listen, log)
		src.SetChunkHandler(chain.process)
		if err := src.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Audio input failed", logger.Error(err))
		}
	}
}

// runRetention prunes stored events beyond the retention window, once at
// startup and then twice a day.
func runRetention(ctx context.Context, decodes *database.DecodeRepository, txs *database.TransmissionRepository, days int, log *logger.Logger) {
	prune := func() {
		cutoff := time.Now().AddDate(0, 0, -days)
		if n, err := decodes.DeleteOlderThan(cutoff); err != nil {
			log.Warn("Failed to prune decodes", logger.Error(err))
		} else if n > 0 {
			log.Info("Pruned old decodes", logger.Int64("rows", n))
		}
		if n, err := txs.DeleteOlderThan(cutoff); err != nil {
			log.Warn("Failed to prune transmissions", logger.Error(err))
		} else if n > 0 {
			log.Info("Pruned old transmissions", logger.Int64("rows", n))
		}
	}

	prune()
	ticker := time.NewTicker(12 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

// forwardMQTT drains dispatcher events onto the broker.
func forwardMQTT(sub *dispatch.Subscriber, client *mqtt.Client, collector *metrics.Collector) {
	for ev := range sub.Events() {
		var err error
		switch ev.Type {
		case dispatch.EventDecode:
			err = client.PublishDecode(ev.Payload)
		case dispatch.EventTransmission:
			err = client.PublishTransmission(ev.Payload)
		case dispatch.EventGate:
			err = client.PublishGate(ev.Payload)
		case dispatch.EventRinger:
			err = client.PublishRinger(ev.Payload)
		default:
			continue
		}
		if err != nil {
			collector.MQTTDropped()
		} else {
			collector.MQTTPublished()
		}
	}
}

// forwardWebSocket drains dispatcher events into the hub.
func forwardWebSocket(sub *dispatch.Subscriber, hub *web.WebSocketHub) {
	for ev := range sub.Events() {
		switch ev.Type {
		case dispatch.EventDecode:
			hub.BroadcastDecode(ev.Payload)
		case dispatch.EventTransmission:
			hub.BroadcastTransmission(ev.Payload)
		case dispatch.EventGate:
			hub.BroadcastGate(ev.Payload)
		case dispatch.EventRinger:
			hub.BroadcastRinger(ev.Payload)
		case dispatch.EventPTT:
			hub.BroadcastPTT(ev.Payload)
		case dispatch.EventStatus:
			hub.BroadcastStatusUpdate(ev.Payload)
		}
	}
}

// recordEvents persists decode and transmission events.
func recordEvents(sub *dispatch.Subscriber, decodes *database.DecodeRepository, txs *database.TransmissionRepository, log *logger.Logger) {
	for ev := range sub.Events() {
		switch p := ev.Payload.(type) {
		case decodePayload:
			rec := database.DecodeRecord{
				EventID:   p.ID,
				Code:      p.Code,
				Raw:       p.Raw,
				Protocol:  p.Protocol,
				Matched:   p.Matched,
				Label:     p.Label,
				SamplePos: p.Pos,
				DecodedAt: p.Timestamp,
			}
			if err := decodes.Create(&rec); err != nil {
				log.Warn("Failed to store decode", logger.Error(err))
			}
		case transmit.Record:
			rec := database.TransmissionRecord{
				JobID:       p.ID,
				Protocol:    p.Protocol,
				Source:      p.Source,
				Destination: p.Destination,
				Symbols:     p.Symbols,
				Origin:      p.Origin,
				StartedAt:   p.StartedAt,
				EndedAt:     p.EndedAt,
				Duration:    p.Duration,
				Samples:     p.Samples,
				Aborted:     p.Aborted,
			}
			if err := txs.Create(&rec); err != nil {
				log.Warn("Failed to store transmission", logger.Error(err))
			}
		}
	}
}

// runStatusLoop periodically publishes a status snapshot and mirrors
// dispatcher and WebSocket drop counts into the metrics collector.
func runStatusLoop(ctx context.Context, bus *dispatch.Dispatcher, hub *web.WebSocketHub, collector *metrics.Collector, statusFn func() web.Status) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	var lastBusDrops, lastHubDrops int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if d := bus.Drops(); d > lastBusDrops {
				collector.DispatchDropped(uint64(d - lastBusDrops))
				lastBusDrops = d
			}
			if hub != nil {
				collector.WebSocketClients(hub.GetClientCount())
				for d := hub.GetDropCount(); lastHubDrops < d; lastHubDrops++ {
					collector.WebSocketDropped()
				}
			}
			bus.Publish(dispatch.NewEvent(dispatch.EventStatus, statusFn()))
		}
	}
}

// spectrumSource serves on-demand magnitude snapshots of the decoder's
// most recent analysis window.
type spectrumSource struct {
	mu  sync.Mutex
	dec *decoder.Decoder
	fft *dsp.Spectrum
	win []float64
}

func newSpectrumSource(dec *decoder.Decoder) *spectrumSource {
	n := dec.AnalysisLen()
	return &spectrumSource{
		dec: dec,
		fft: dsp.NewSpectrum(n),
		win: make([]float64, n),
	}
}

func (s *spectrumSource) snapshot() (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, rate := s.dec.SpectrumWindow(s.win)
	if n == 0 {
		return nil, fmt.Errorf("no audio analyzed yet")
	}
	mags := s.fft.Magnitudes(s.win[:n])
	out := make([]float64, len(mags))
	copy(out, mags)

	return map[string]interface{}{
		"sample_rate": rate,
		"bin_hz":      rate / float64(s.fft.Size()),
		"magnitudes":  out,
	}, nil
}

// openLogOutput resolves the configured log destination. Logs are forced
// to stderr whenever an audio output would share stdout with them.
func openLogOutput(cfg *config.Config) (io.Writer, error) {
	name := strings.ToLower(cfg.Log.Output)
	switch name {
	case "", "stdout":
		if strings.EqualFold(cfg.Audio.Output.Type, "stdout") ||
			strings.EqualFold(cfg.Encoder.Output.Type, "stdout") {
			return os.Stderr, nil
		}
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		f, err := os.OpenFile(cfg.Log.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", cfg.Log.Output, err)
		}
		return f, nil
	}
}

// buildSink realizes an audio output section. The returned closer is nil
// for sinks that hold no resources.
func buildSink(out config.OutputConfig, sampleRate int) (audio.Sink, func() error, error) {
	switch strings.ToLower(out.Type) {
	case "", "none":
		return audio.Discard, nil, nil
	case "stdout":
		return audio.NewStreamSink(os.Stdout), nil, nil
	case "wav":
		sink, err := audio.NewWAVSink(out.Path, sampleRate)
		if err != nil {
			return nil, nil, err
		}
		return sink, sink.Close, nil
	case "udp":
		sink, err := audio.NewUDPSink(out.Target)
		if err != nil {
			return nil, nil, err
		}
		return sink, sink.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported audio output type %q", out.Type)
	}
}

// buildKeyer maps the PTT pin section onto a keyer implementation.
func buildKeyer(pin config.GPIOPinConfig, log *logger.Logger) (ptt.Keyer, error) {
	if !strings.EqualFold(pin.Type, "gpio") {
		return ptt.NewNoopKeyer(), nil
	}
	keyer, err := ptt.NewGPIOKeyer(ptt.Config{
		Chip:      pin.Chip,
		Line:      pin.Line,
		ActiveLow: pin.ActiveLow,
	})
	if err != nil {
		return nil, err
	}
	log.Info("PTT line acquired",
		logger.String("chip", pin.Chip),
		logger.Int("line", pin.Line))
	return keyer, nil
}

// buildIndicator maps the LED pin section onto an indicator implementation.
func buildIndicator(pin config.GPIOPinConfig, log *logger.Logger) (ptt.Indicator, error) {
	if !strings.EqualFold(pin.Type, "gpio") {
		return ptt.NewNoopIndicator(), nil
	}
	indicator, err := ptt.NewGPIOIndicator(ptt.Config{
		Chip:      pin.Chip,
		Line:      pin.Line,
		ActiveLow: pin.ActiveLow,
	})
	if err != nil {
		return nil, err
	}
	log.Info("LED line acquired",
		logger.String("chip", pin.Chip),
		logger.Int("line", pin.Line))
	return indicator, nil
}
