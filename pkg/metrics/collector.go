package metrics

import (
	"sync"
)

// Collector collects decoder and transmit chain metrics
type Collector struct {
	mu sync.RWMutex

	// Receive chain metrics
	samplesProcessed uint64
	windowsSymbol    uint64
	windowsEmpty     uint64
	symbolsConfirmed uint64
	decodesMatched   uint64
	decodesMismatch  uint64
	noiseFloor       float64
	gateOpen         bool
	gateOpens        uint64
	ringerTriggers   uint64

	// Transmit chain metrics
	txCompleted uint64
	txAborted   uint64
	txRejected  uint64
	txActive    bool

	// Delivery metrics
	dispatchDrops uint64
	mqttPublished uint64
	mqttDrops     uint64
	wsDrops       uint64
	wsClients     int
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{}
}

// SamplesProcessed records input samples consumed by the receive chain
func (c *Collector) SamplesProcessed(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.samplesProcessed += n
}

// WindowClassified records one analysis window by outcome
func (c *Collector) WindowClassified(symbol bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if symbol {
		c.windowsSymbol++
	} else {
		c.windowsEmpty++
	}
}

// SymbolConfirmed records a debounced symbol decision
func (c *Collector) SymbolConfirmed() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.symbolsConfirmed++
}

// DecodeCompleted records a completed code, matched or not
func (c *Collector) DecodeCompleted(matched bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if matched {
		c.decodesMatched++
	} else {
		c.decodesMismatch++
	}
}

// NoiseFloorUpdated records the detector's current noise floor estimate
func (c *Collector) NoiseFloorUpdated(level float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.noiseFloor = level
}

// GateOpened records the audio gate opening
func (c *Collector) GateOpened() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gateOpen = true
	c.gateOpens++
}

// GateClosed records the audio gate closing
func (c *Collector) GateClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gateOpen = false
}

// RingerTriggered records a ringer activation
func (c *Collector) RingerTriggered() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ringerTriggers++
}

// TransmissionCompleted records a transmission that ran to the end
func (c *Collector) TransmissionCompleted() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.txCompleted++
}

// TransmissionAborted records a transmission cut short by the watchdog
func (c *Collector) TransmissionAborted() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.txAborted++
}

// TransmissionRejected records a submission refused by the busy policy
func (c *Collector) TransmissionRejected() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.txRejected++
}

// TransmitActive records whether the transmitter is currently keyed
func (c *Collector) TransmitActive(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.txActive = active
}

// DispatchDropped records events dropped by slow dispatcher subscribers
func (c *Collector) DispatchDropped(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dispatchDrops += n
}

// MQTTPublished records a successfully published MQTT message
func (c *Collector) MQTTPublished() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mqttPublished++
}

// MQTTDropped records an MQTT message lost while disconnected
func (c *Collector) MQTTDropped() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mqttDrops++
}

// WebSocketDropped records a frame dropped on a slow WebSocket client
func (c *Collector) WebSocketDropped() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.wsDrops++
}

// WebSocketClients records the current WebSocket client count
func (c *Collector) WebSocketClients(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.wsClients = n
}

// Reset resets gauge state (useful for testing)
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gateOpen = false
	c.txActive = false
	c.noiseFloor = 0
	c.wsClients = 0
	// Note: cumulative counters are not reset
}

// Getters for metrics

// GetSamplesProcessed returns total input samples consumed
func (c *Collector) GetSamplesProcessed() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.samplesProcessed
}

// GetWindowsClassified returns analysis window totals by outcome
func (c *Collector) GetWindowsClassified() (symbol, empty uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.windowsSymbol, c.windowsEmpty
}

// GetSymbolsConfirmed returns total debounced symbol decisions
func (c *Collector) GetSymbolsConfirmed() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.symbolsConfirmed
}

// GetDecodes returns completed decodes split by match outcome
func (c *Collector) GetDecodes() (matched, mismatched uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.decodesMatched, c.decodesMismatch
}

// GetNoiseFloor returns the detector's last noise floor estimate
func (c *Collector) GetNoiseFloor() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.noiseFloor
}

// IsGateOpen returns whether the audio gate is currently open
func (c *Collector) IsGateOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gateOpen
}

// GetGateOpens returns total gate open transitions
func (c *Collector) GetGateOpens() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gateOpens
}

// GetRingerTriggers returns total ringer activations
func (c *Collector) GetRingerTriggers() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ringerTriggers
}

// GetTransmissions returns transmission totals by outcome
func (c *Collector) GetTransmissions() (completed, aborted, rejected uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.txCompleted, c.txAborted, c.txRejected
}

// IsTransmitActive returns whether the transmitter is currently keyed
func (c *Collector) IsTransmitActive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.txActive
}

// GetDispatchDrops returns total events dropped by the dispatcher
func (c *Collector) GetDispatchDrops() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dispatchDrops
}

// GetMQTTPublished returns total MQTT messages published
func (c *Collector) GetMQTTPublished() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttPublished
}

// GetMQTTDrops returns total MQTT messages lost
func (c *Collector) GetMQTTDrops() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttDrops
}

// GetWebSocketDrops returns total frames dropped on slow clients
func (c *Collector) GetWebSocketDrops() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.wsDrops
}

// GetWebSocketClients returns the current WebSocket client count
func (c *Collector) GetWebSocketClients() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.wsClients
}
