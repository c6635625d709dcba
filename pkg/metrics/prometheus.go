package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pietro2356/gr-selcall/pkg/logger"
)

// PrometheusConfig holds Prometheus server configuration
type PrometheusConfig struct {
	Enabled bool
	Host    string
	Port    int
	Path    string
}

// PrometheusHandler handles Prometheus metrics HTTP requests
type PrometheusHandler struct {
	collector *Collector
}

// NewPrometheusHandler creates a new Prometheus handler
func NewPrometheusHandler(collector *Collector) *PrometheusHandler {
	return &PrometheusHandler{
		collector: collector,
	}
}

// ServeHTTP handles HTTP requests for metrics
func (h *PrometheusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	var output strings.Builder

	// Receive chain metrics
	output.WriteString("# HELP selcall_audio_samples_total Input samples consumed by the receive chain\n")
	output.WriteString("# TYPE selcall_audio_samples_total counter\n")
	output.WriteString(fmt.Sprintf("selcall_audio_samples_total %d\n", h.collector.GetSamplesProcessed()))

	symbolWins, emptyWins := h.collector.GetWindowsClassified()
	output.WriteString("# HELP selcall_decoder_windows_total Analysis windows classified, by outcome\n")
	output.WriteString("# TYPE selcall_decoder_windows_total counter\n")
	output.WriteString(fmt.Sprintf("selcall_decoder_windows_total{outcome=\"symbol\"} %d\n", symbolWins))
	output.WriteString(fmt.Sprintf("selcall_decoder_windows_total{outcome=\"none\"} %d\n", emptyWins))

	output.WriteString("# HELP selcall_decoder_symbols_total Debounced symbol decisions\n")
	output.WriteString("# TYPE selcall_decoder_symbols_total counter\n")
	output.WriteString(fmt.Sprintf("selcall_decoder_symbols_total %d\n", h.collector.GetSymbolsConfirmed()))

	matched, mismatched := h.collector.GetDecodes()
	output.WriteString("# HELP selcall_decodes_total Completed code decodes, by match outcome\n")
	output.WriteString("# TYPE selcall_decodes_total counter\n")
	output.WriteString(fmt.Sprintf("selcall_decodes_total{result=\"matched\"} %d\n", matched))
	output.WriteString(fmt.Sprintf("selcall_decodes_total{result=\"mismatched\"} %d\n", mismatched))

	output.WriteString("# HELP selcall_noise_floor Detector noise floor estimate\n")
	output.WriteString("# TYPE selcall_noise_floor gauge\n")
	output.WriteString(fmt.Sprintf("selcall_noise_floor %s\n", strconv.FormatFloat(h.collector.GetNoiseFloor(), 'g', -1, 64)))

	output.WriteString("# HELP selcall_gate_open Whether the audio gate is currently open\n")
	output.WriteString("# TYPE selcall_gate_open gauge\n")
	output.WriteString(fmt.Sprintf("selcall_gate_open %d\n", boolValue(h.collector.IsGateOpen())))

	output.WriteString("# HELP selcall_gate_opens_total Audio gate open transitions\n")
	output.WriteString("# TYPE selcall_gate_opens_total counter\n")
	output.WriteString(fmt.Sprintf("selcall_gate_opens_total %d\n", h.collector.GetGateOpens()))

	output.WriteString("# HELP selcall_ringer_triggers_total Ringer activations\n")
	output.WriteString("# TYPE selcall_ringer_triggers_total counter\n")
	output.WriteString(fmt.Sprintf("selcall_ringer_triggers_total %d\n", h.collector.GetRingerTriggers()))

	// Transmit chain metrics
	completed, aborted, rejected := h.collector.GetTransmissions()
	output.WriteString("# HELP selcall_transmissions_total Transmissions, by outcome\n")
	output.WriteString("# TYPE selcall_transmissions_total counter\n")
	output.WriteString(fmt.Sprintf("selcall_transmissions_total{outcome=\"completed\"} %d\n", completed))
	output.WriteString(fmt.Sprintf("selcall_transmissions_total{outcome=\"aborted\"} %d\n", aborted))
	output.WriteString(fmt.Sprintf("selcall_transmissions_total{outcome=\"rejected\"} %d\n", rejected))

	output.WriteString("# HELP selcall_transmit_active Whether the transmitter is currently keyed\n")
	output.WriteString("# TYPE selcall_transmit_active gauge\n")
	output.WriteString(fmt.Sprintf("selcall_transmit_active %d\n", boolValue(h.collector.IsTransmitActive())))

	// Delivery metrics
	output.WriteString("# HELP selcall_dispatch_dropped_total Events dropped by slow dispatcher subscribers\n")
	output.WriteString("# TYPE selcall_dispatch_dropped_total counter\n")
	output.WriteString(fmt.Sprintf("selcall_dispatch_dropped_total %d\n", h.collector.GetDispatchDrops()))

	output.WriteString("# HELP selcall_mqtt_published_total MQTT messages published\n")
	output.WriteString("# TYPE selcall_mqtt_published_total counter\n")
	output.WriteString(fmt.Sprintf("selcall_mqtt_published_total %d\n", h.collector.GetMQTTPublished()))

	output.WriteString("# HELP selcall_mqtt_dropped_total MQTT messages lost while disconnected\n")
	output.WriteString("# TYPE selcall_mqtt_dropped_total counter\n")
	output.WriteString(fmt.Sprintf("selcall_mqtt_dropped_total %d\n", h.collector.GetMQTTDrops()))

	output.WriteString("# HELP selcall_websocket_dropped_total Frames dropped on slow WebSocket clients\n")
	output.WriteString("# TYPE selcall_websocket_dropped_total counter\n")
	output.WriteString(fmt.Sprintf("selcall_websocket_dropped_total %d\n", h.collector.GetWebSocketDrops()))

	output.WriteString("# HELP selcall_websocket_clients Connected WebSocket clients\n")
	output.WriteString("# TYPE selcall_websocket_clients gauge\n")
	output.WriteString(fmt.Sprintf("selcall_websocket_clients %d\n", h.collector.GetWebSocketClients()))

	w.Write([]byte(output.String()))
}

func boolValue(b bool) int {
	if b {
		return 1
	}
	return 0
}

// PrometheusServer is an HTTP server for Prometheus metrics
type PrometheusServer struct {
	config    PrometheusConfig
	collector *Collector
	log       *logger.Logger
	server    *http.Server
}

// NewPrometheusServer creates a new Prometheus metrics server
func NewPrometheusServer(config PrometheusConfig, collector *Collector, log *logger.Logger) *PrometheusServer {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}
	if config.Path == "" {
		config.Path = "/metrics"
	}

	return &PrometheusServer{
		config:    config,
		collector: collector,
		log:       log.WithComponent("metrics"),
	}
}

// Start starts the Prometheus metrics server
func (s *PrometheusServer) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.log.Info("Prometheus metrics server disabled")
		return nil
	}

	handler := NewPrometheusHandler(s.collector)
	mux := http.NewServeMux()
	mux.Handle(s.config.Path, handler)

	// Use a listener to get the actual port (useful for testing with port 0)
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	actualPort := listener.Addr().(*net.TCPAddr).Port

	s.server = &http.Server{
		Handler: mux,
	}

	s.log.Info("Starting Prometheus metrics server",
		logger.Int("port", actualPort),
		logger.String("path", s.config.Path))

	// Start server
	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.log.Info("Shutting down Prometheus metrics server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown error: %w", err)
		}
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// Stop stops the Prometheus metrics server
func (s *PrometheusServer) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(ctx)
	}
}
