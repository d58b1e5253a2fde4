package audiocore

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SceneMetrics exposes the scene's live state to Prometheus: active source
// count by state, interned buffer count, and fade activity. Constructed
// once at startup and updated by the server's main loop after every
// dispatch cycle.
type SceneMetrics struct {
	sourcesByState *prometheus.GaugeVec
	buffersTotal   prometheus.Gauge
	fadesActive    prometheus.Gauge
	sourcesCreated prometheus.Counter
	sourcesDeleted prometheus.Counter
}

// NewSceneMetrics creates and registers the scene gauges/counters against
// registry.
func NewSceneMetrics(registry *prometheus.Registry) (*SceneMetrics, error) {
	m := &SceneMetrics{
		sourcesByState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "oas",
			Subsystem: "audiocore",
			Name:      "sources",
			Help:      "Number of audio sources currently in each lifecycle state.",
		}, []string{"state"}),
		buffersTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "oas",
			Subsystem: "audiocore",
			Name:      "buffers_interned",
			Help:      "Number of distinct decoded audio buffers currently cached.",
		}),
		fadesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "oas",
			Subsystem: "audiocore",
			Name:      "fades_active",
			Help:      "Number of sources with an in-flight fade.",
		}),
		sourcesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oas",
			Subsystem: "audiocore",
			Name:      "sources_created_total",
			Help:      "Total audio sources created via GHDL or WAVE.",
		}),
		sourcesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oas",
			Subsystem: "audiocore",
			Name:      "sources_deleted_total",
			Help:      "Total audio sources reaped via RHDL.",
		}),
	}

	collectors := []prometheus.Collector{
		m.sourcesByState, m.buffersTotal, m.fadesActive, m.sourcesCreated, m.sourcesDeleted,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordSourceCreated increments the creation counter; called by
// AudioHandler.insertSource.
func (m *SceneMetrics) RecordSourceCreated() {
	if m == nil {
		return
	}
	m.sourcesCreated.Inc()
}

// RecordSourceDeleted increments the reap counter; called by
// AudioHandler.ProcessLazyDeletionQueue.
func (m *SceneMetrics) RecordSourceDeleted() {
	if m == nil {
		return
	}
	m.sourcesDeleted.Inc()
}

// Snapshot resets the state-keyed gauge and the point-in-time gauges from
// the current contents of the handler, called once per main-loop
// iteration rather than on every mutation to keep the hot path
// allocation-free.
func (m *SceneMetrics) Snapshot(h *AudioHandler) {
	if m == nil {
		return
	}

	h.mu.RLock()
	counts := map[SourceState]int{}
	fades := 0
	for _, src := range h.sources {
		src.mu.Lock()
		counts[src.state]++
		if src.fade.Active() {
			fades++
		}
		src.mu.Unlock()
	}
	h.mu.RUnlock()

	for _, s := range []SourceState{StateInitial, StatePlaying, StatePaused, StateStopped} {
		m.sourcesByState.WithLabelValues(s.String()).Set(float64(counts[s]))
	}
	m.fadesActive.Set(float64(fades))
	m.buffersTotal.Set(float64(h.buffers.Len()))
}
