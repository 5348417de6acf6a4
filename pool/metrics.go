package pool

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wippyai/isolate/trap"
)

// metrics carries the pool's Prometheus collectors. They are always
// maintained; registration with an external registry is optional.
type metrics struct {
	slotsInUse  *prometheus.GaugeVec
	acquires    *prometheus.CounterVec
	releases    *prometheus.CounterVec
	exhaustions *prometheus.CounterVec
	traps       *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		slotsInUse: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "isolate",
			Subsystem: "pool",
			Name:      "slots_in_use",
			Help:      "Currently allocated slots per resource class.",
		}, []string{"class"}),
		acquires: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "isolate",
			Subsystem: "pool",
			Name:      "acquires_total",
			Help:      "Successful slot acquisitions per resource class.",
		}, []string{"class"}),
		releases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "isolate",
			Subsystem: "pool",
			Name:      "releases_total",
			Help:      "Slot releases per resource class.",
		}, []string{"class"}),
		exhaustions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "isolate",
			Subsystem: "pool",
			Name:      "exhaustions_total",
			Help:      "Acquisitions rejected because the class was at capacity.",
		}, []string{"class"}),
		traps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "isolate",
			Subsystem: "guest",
			Name:      "traps_total",
			Help:      "Guest traps observed, by trap code.",
		}, []string{"code"}),
	}
	if reg != nil {
		reg.MustRegister(m.slotsInUse, m.acquires, m.releases, m.exhaustions, m.traps)
	}
	return m
}

func (m *metrics) acquired(class string) {
	m.slotsInUse.WithLabelValues(class).Inc()
	m.acquires.WithLabelValues(class).Inc()
}

func (m *metrics) released(class string) {
	m.slotsInUse.WithLabelValues(class).Dec()
	m.releases.WithLabelValues(class).Inc()
}

func (m *metrics) exhausted(class string) {
	m.exhaustions.WithLabelValues(class).Inc()
}

// CountTrap records a guest trap for observability. The runtime layer calls
// this from the frame that consumed the trap, never from the fault context.
func (p *Pool) CountTrap(code trap.Code) {
	p.metrics.traps.WithLabelValues(code.String()).Inc()
}
