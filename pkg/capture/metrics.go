package capture

import (
	"sync"
	"time"
)

// Metrics tracks delivery counters for one session.
type Metrics struct {
	mu sync.RWMutex

	framesDelivered uint64
	framesDropped   uint64
	framesEmpty     uint64
	handlerErrors   uint64
	lastDispatch    time.Duration
	maxDispatch     time.Duration
	totalDispatch   time.Duration
	startTime       time.Time
}

func newMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

func (m *Metrics) recordDispatch(d time.Duration) {
	m.mu.Lock()
	m.framesDelivered++
	m.lastDispatch = d
	m.totalDispatch += d
	if d > m.maxDispatch {
		m.maxDispatch = d
	}
	m.mu.Unlock()
}

// recordDrop counts a frame the engine produced after delivery had ended.
func (m *Metrics) recordDrop() {
	m.mu.Lock()
	m.framesDropped++
	m.mu.Unlock()
}

// recordEmpty counts a pull-mode acquire that returned no new frame.
func (m *Metrics) recordEmpty() {
	m.mu.Lock()
	m.framesEmpty++
	m.mu.Unlock()
}

func (m *Metrics) recordHandlerError() {
	m.mu.Lock()
	m.handlerErrors++
	m.mu.Unlock()
}

// MetricsSnapshot is a point-in-time copy of the session counters.
type MetricsSnapshot struct {
	FramesDelivered uint64
	FramesDropped   uint64
	FramesEmpty     uint64
	HandlerErrors   uint64
	LastDispatchMs  float64
	MaxDispatchMs   float64
	AvgDispatchMs   float64
	DeliveredFPS    float64
	Uptime          time.Duration
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	uptime := time.Since(m.startTime)
	snap := MetricsSnapshot{
		FramesDelivered: m.framesDelivered,
		FramesDropped:   m.framesDropped,
		FramesEmpty:     m.framesEmpty,
		HandlerErrors:   m.handlerErrors,
		LastDispatchMs:  float64(m.lastDispatch.Microseconds()) / 1000.0,
		MaxDispatchMs:   float64(m.maxDispatch.Microseconds()) / 1000.0,
		Uptime:          uptime,
	}
	if m.framesDelivered > 0 {
		snap.AvgDispatchMs = float64(m.totalDispatch.Microseconds()) / 1000.0 / float64(m.framesDelivered)
	}
	if uptime.Seconds() > 0 {
		snap.DeliveredFPS = float64(m.framesDelivered) / uptime.Seconds()
	}
	return snap
}
