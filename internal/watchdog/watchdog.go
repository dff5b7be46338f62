// Package watchdog implements the Connection Watchdog from SPEC_FULL.md
// section 2: it detects stalled long-lived operations (WebSocket
// connections, background downloads, Cronet reads that stop pumping) via
// heartbeat polling and triggers the adapter's cancellation path.
package watchdog

import (
	"context"
	"sync"
	"time"

	"github.com/nvm/fraktgo/internal/events"
	"github.com/nvm/fraktgo/internal/logger"
)

// defaultHeartbeatInterval is how often the watchdog polls operations for
// liveness between hang-threshold checks.
const defaultHeartbeatInterval = 15 * time.Second

// Watchdog monitors long-lived operations to detect ones that have
// stalled. A single goroutine polls every registered operation, rather
// than each operation running its own heartbeat goroutine, centralizing
// heartbeat management the way a single monitoring loop checks many
// ports.
type Watchdog struct {
	ctx               context.Context
	operations        map[string]*operationState
	cancel            context.CancelFunc
	eventBus          *events.Bus
	wg                sync.WaitGroup
	checkInterval     time.Duration
	hangThreshold     time.Duration
	heartbeatInterval time.Duration
	mu                sync.RWMutex
}

// operationState tracks the health of a single monitored operation.
type operationState struct {
	lastHeartbeat  time.Time
	responder      HeartbeatResponder
	onHungCallback func(operationID string)
	operationID    string
	heartbeatCount uint64
	isHung         bool
}

// HeartbeatResponder is implemented by anything the watchdog can actively
// poll for liveness: a WebSocket connection wrapper, a Cronet read-loop
// context, a resumable download's retry loop.
type HeartbeatResponder interface {
	// IsAlive reports whether the operation is still making progress.
	IsAlive() bool
	// OperationID returns the identifier this responder tracks.
	OperationID() string
}

// New creates a watchdog that checks for hung operations every
// checkInterval, declaring one hung after hangThreshold with no heartbeat.
func New(checkInterval, hangThreshold time.Duration) *Watchdog {
	ctx, cancel := context.WithCancel(context.Background())
	return &Watchdog{
		operations:        make(map[string]*operationState),
		checkInterval:     checkInterval,
		hangThreshold:     hangThreshold,
		heartbeatInterval: defaultHeartbeatInterval,
		ctx:               ctx,
		cancel:            cancel,
	}
}

// SetEventBus wires the event bus the watchdog publishes
// watchdog.operation_hung events to.
func (w *Watchdog) SetEventBus(bus *events.Bus) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.eventBus = bus
}

// Start begins the watchdog's monitoring loop.
func (w *Watchdog) Start() {
	w.wg.Add(1)
	go w.monitorLoop()
}

// Stop halts the monitoring loop and waits for it to exit.
func (w *Watchdog) Stop() {
	w.cancel()
	w.wg.Wait()
}

// RegisterOperation adds an operation to monitor; onHungCallback fires the
// first time the operation is observed hung, and should invoke the
// adapter's cancellation path (flip the CancelToken, cancel the native
// handle).
func (w *Watchdog) RegisterOperation(operationID string, onHungCallback func(string)) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.operations[operationID] = &operationState{
		operationID:    operationID,
		lastHeartbeat:  time.Now(),
		onHungCallback: onHungCallback,
	}

	logger.Debug("watchdog registered operation", "operation_id", operationID)
}

// RegisterOperationWithResponder adds an operation with active liveness
// polling support via HeartbeatResponder.
func (w *Watchdog) RegisterOperationWithResponder(operationID string, responder HeartbeatResponder, onHungCallback func(string)) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.operations[operationID] = &operationState{
		operationID:    operationID,
		lastHeartbeat:  time.Now(),
		onHungCallback: onHungCallback,
		responder:      responder,
	}

	logger.Debug("watchdog registered operation with responder", "operation_id", operationID)
}

// UnregisterOperation stops monitoring operationID.
func (w *Watchdog) UnregisterOperation(operationID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.operations, operationID)

	logger.Debug("watchdog unregistered operation", "operation_id", operationID)
}

// Heartbeat records that an operation is alive and making progress.
// Engine adapters call this from their pump goroutine on every chunk.
func (w *Watchdog) Heartbeat(operationID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if state, exists := w.operations[operationID]; exists {
		state.lastHeartbeat = time.Now()
		state.heartbeatCount++
		state.isHung = false
	}
}

// OperationState returns the current heartbeat state of an operation, for
// tests and diagnostics.
func (w *Watchdog) OperationState(operationID string) (lastHeartbeat time.Time, count uint64, exists bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if state, ok := w.operations[operationID]; ok {
		return state.lastHeartbeat, state.heartbeatCount, true
	}
	return time.Time{}, 0, false
}

func (w *Watchdog) monitorLoop() {
	defer w.wg.Done()

	checkTicker := time.NewTicker(w.checkInterval)
	defer checkTicker.Stop()

	heartbeatTicker := time.NewTicker(w.heartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-heartbeatTicker.C:
			w.pollHeartbeats()
		case <-checkTicker.C:
			w.checkOperations()
		}
	}
}

// pollHeartbeats actively polls every operation that supplied a
// HeartbeatResponder, centralizing liveness polling in the watchdog
// instead of each operation running its own heartbeat goroutine.
func (w *Watchdog) pollHeartbeats() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	for _, state := range w.operations {
		if state.responder != nil && state.responder.IsAlive() {
			state.lastHeartbeat = now
			state.heartbeatCount++
			state.isHung = false
		}
	}
}

type hungOperationInfo struct {
	callback           func(string)
	operationID        string
	timeSinceHeartbeat time.Duration
}

func (w *Watchdog) checkOperations() {
	var hung []hungOperationInfo
	var eventBus *events.Bus

	w.mu.Lock()
	eventBus = w.eventBus
	now := time.Now()
	for operationID, state := range w.operations {
		timeSinceHeartbeat := now.Sub(state.lastHeartbeat)
		if timeSinceHeartbeat <= w.hangThreshold {
			continue
		}
		if state.isHung {
			continue
		}
		state.isHung = true

		logger.Warn("watchdog detected hung operation",
			"operation_id", operationID,
			"time_since_heartbeat", timeSinceHeartbeat.String(),
			"hang_threshold", w.hangThreshold.String(),
			"heartbeat_count", state.heartbeatCount,
		)

		if state.onHungCallback != nil {
			hung = append(hung, hungOperationInfo{operationID: operationID, callback: state.onHungCallback, timeSinceHeartbeat: timeSinceHeartbeat})
		}
	}
	w.mu.Unlock()

	// Callbacks run outside the lock: they typically trigger cancellation,
	// which may re-enter the watchdog (UnregisterOperation).
	for _, h := range hung {
		if eventBus != nil {
			eventBus.Publish(events.NewOperationHungEvent(h.operationID, h.timeSinceHeartbeat.String()))
		}
		h.callback(h.operationID)
	}
}
