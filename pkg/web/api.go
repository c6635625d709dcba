package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/pietro2356/gr-selcall/pkg/logger"
	"github.com/pietro2356/gr-selcall/pkg/protocol"
)

// Status is the /api/status payload assembled by the daemon.
type Status struct {
	Service        string  `json:"service"`
	Version        string  `json:"version"`
	Protocol       string  `json:"protocol"`
	UptimeS        float64 `json:"uptime_s"`
	GateOpen       bool    `json:"gate_open"`
	TxState        string  `json:"tx_state"`
	Decodes        uint64  `json:"decodes"`
	DecodesMatched uint64  `json:"decodes_matched"`
	Transmissions  uint64  `json:"transmissions"`
	RingerTriggers uint64  `json:"ringer_triggers"`
}

// ProtocolInfo describes one registered signalling standard.
type ProtocolInfo struct {
	Name           string  `json:"name"`
	ToneDurationMS float64 `json:"tone_duration_ms"`
	CodeLength     int     `json:"code_length"`
	Symbols        int     `json:"symbols"`
	GapTolerance   int     `json:"gap_tolerance_windows"`
}

// API handles REST API endpoints. Data sources are injected by the daemon;
// endpoints without a source answer with an empty payload.
type API struct {
	logger     *logger.Logger
	statusFn   func() Status
	decodesFn  func(limit int) (interface{}, error)
	configFn   func() interface{}
	spectrumFn func() (interface{}, error)
}

// NewAPI creates a new API instance
func NewAPI(log *logger.Logger) *API {
	return &API{
		logger: log,
	}
}

// SetStatusFunc sets the status snapshot source. Must be called before Start.
func (a *API) SetStatusFunc(fn func() Status) {
	a.statusFn = fn
}

// SetDecodesFunc sets the recent-decodes source. Must be called before Start.
func (a *API) SetDecodesFunc(fn func(limit int) (interface{}, error)) {
	a.decodesFn = fn
}

// SetConfigFunc sets the sanitized-config source. Must be called before Start.
func (a *API) SetConfigFunc(fn func() interface{}) {
	a.configFn = fn
}

// SetSpectrumFunc sets the spectrum snapshot source. Must be called before Start.
func (a *API) SetSpectrumFunc(fn func() (interface{}, error)) {
	a.spectrumFn = fn
}

// HandleStatus handles the /api/status endpoint
func (a *API) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := Status{Service: "selcalld"}
	if a.statusFn != nil {
		status = a.statusFn()
	}

	a.writeJSON(w, status)
}

// HandleDecodes handles the /api/decodes endpoint
func (a *API) HandleDecodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if limit > 500 {
		limit = 500
	}

	if a.decodesFn == nil {
		a.writeJSON(w, []interface{}{})
		return
	}

	decodes, err := a.decodesFn(limit)
	if err != nil {
		a.logger.Warn("Failed to fetch decodes", logger.Error(err))
		http.Error(w, "failed to fetch decodes", http.StatusInternalServerError)
		return
	}
	a.writeJSON(w, decodes)
}

// HandleProtocols handles the /api/protocols endpoint
func (a *API) HandleProtocols(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	names := protocol.Names()
	infos := make([]ProtocolInfo, 0, len(names))
	for _, name := range names {
		spec, err := protocol.Get(name)
		if err != nil {
			continue
		}
		infos = append(infos, ProtocolInfo{
			Name:           spec.Name,
			ToneDurationMS: float64(spec.ToneDuration) / float64(time.Millisecond),
			CodeLength:     spec.DefaultCodeLen,
			Symbols:        len(spec.Symbols()),
			GapTolerance:   spec.GapTolerance,
		})
	}
	a.writeJSON(w, infos)
}

// HandleConfig handles the /api/config endpoint
func (a *API) HandleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if a.configFn == nil {
		a.writeJSON(w, map[string]interface{}{})
		return
	}
	a.writeJSON(w, a.configFn())
}

// HandleSpectrum handles the /api/spectrum endpoint
func (a *API) HandleSpectrum(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if a.spectrumFn == nil {
		http.Error(w, "spectrum not available", http.StatusServiceUnavailable)
		return
	}

	snapshot, err := a.spectrumFn()
	if err != nil {
		a.logger.Warn("Failed to compute spectrum", logger.Error(err))
		http.Error(w, "failed to compute spectrum", http.StatusInternalServerError)
		return
	}
	a.writeJSON(w, snapshot)
}

// writeJSON writes a JSON response with status 200
func (a *API) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("Failed to encode response", logger.Error(err))
	}
}
