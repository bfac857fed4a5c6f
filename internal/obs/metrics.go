package obs

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"hearth/pkg/gateway"
)

const namespace = "hearth_gateway"

var states = []gateway.ConnectionState{
	gateway.StateDisconnected,
	gateway.StateConnecting,
	gateway.StateConnected,
	gateway.StateReconnecting,
}

// Metrics exports gateway client metrics to prometheus and keeps an in-process snapshot
// for the shutdown summary. A nil *Metrics is a valid no-op gateway.Observer.
type Metrics struct {
	state      *prometheus.GaugeVec
	frames     *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	reconnects prometheus.Counter
	backoff    prometheus.Histogram
	heartbeats prometheus.Counter

	frameCount     uint64
	droppedCount   uint64
	reconnectCount uint64
	heartbeatCount uint64
	connectingAt   int64
	connectLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current counter values.
type Snapshot struct {
	State          gateway.ConnectionState
	Frames         uint64
	Dropped        uint64
	Reconnects     uint64
	Heartbeats     uint64
	ConnectLatency LatencySnapshot
}

// NewMetrics registers the gateway collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		state: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "state",
				Help:      "Current connection state, 1 for the active state.",
			},
			[]string{"state"},
		),
		frames: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_total",
				Help:      "Inbound frames routed by event kind.",
			},
			[]string{"kind"},
		),
		dropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dropped_frames_total",
				Help:      "Inbound frames dropped by reason.",
			},
			[]string{"reason"},
		),
		reconnects: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconnects_total",
				Help:      "Scheduled reconnect attempts.",
			},
		),
		backoff: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backoff_seconds",
				Help:      "Delay before each reconnect attempt.",
				Buckets:   []float64{.5, 1, 2, 4, 8, 16, 32, 64},
			},
		),
		heartbeats: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "heartbeats_total",
				Help:      "Heartbeat frames written.",
			},
		),
	}
	m.ObserveState(gateway.StateDisconnected)
	return m
}

func (m *Metrics) ObserveState(state gateway.ConnectionState) {
	if m == nil {
		return
	}
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		m.state.WithLabelValues(s.String()).Set(v)
	}

	now := time.Now().UnixNano()
	switch state {
	case gateway.StateConnecting:
		atomic.StoreInt64(&m.connectingAt, now)
	case gateway.StateConnected:
		if start := atomic.SwapInt64(&m.connectingAt, 0); start > 0 {
			m.connectLatency.Observe(time.Duration(now - start))
		}
	}
}

func (m *Metrics) ObserveFrame(kind gateway.EventKind) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.frameCount, 1)
	m.frames.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) ObserveDropped(reason string) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.droppedCount, 1)
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveReconnect(attempt int, delay time.Duration) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.reconnectCount, 1)
	m.reconnects.Inc()
	m.backoff.Observe(delay.Seconds())
}

func (m *Metrics) ObserveHeartbeat() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.heartbeatCount, 1)
	m.heartbeats.Inc()
}

// Snapshot returns a copy of the current values. state is the client's current state.
func (m *Metrics) Snapshot(state gateway.ConnectionState) Snapshot {
	if m == nil {
		return Snapshot{State: state}
	}
	return Snapshot{
		State:          state,
		Frames:         atomic.LoadUint64(&m.frameCount),
		Dropped:        atomic.LoadUint64(&m.droppedCount),
		Reconnects:     atomic.LoadUint64(&m.reconnectCount),
		Heartbeats:     atomic.LoadUint64(&m.heartbeatCount),
		ConnectLatency: m.connectLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		cur := atomic.LoadUint64(&l.min)
		if cur != 0 && nanos >= cur {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, cur, nanos) {
			break
		}
	}
	for {
		cur := atomic.LoadUint64(&l.max)
		if nanos <= cur {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, cur, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(atomic.LoadUint64(&l.min)),
		Max:   time.Duration(atomic.LoadUint64(&l.max)),
		Avg:   time.Duration(atomic.LoadUint64(&l.sum) / count),
	}
}
