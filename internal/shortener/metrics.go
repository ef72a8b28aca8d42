package shortener

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sundayezeilo/tasklinks/internal/errx"
)

// Metrics counts link lifecycle events. A nil *Metrics records nothing.
type Metrics struct {
	linksCreated   prometheus.Counter
	resolutions    *prometheus.CounterVec
	codeCollisions prometheus.Counter
	codeExhausted  prometheus.Counter
}

// NewMetrics registers the shortener counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		linksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shortener_links_created_total",
			Help: "Short links created.",
		}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shortener_resolutions_total",
			Help: "Short code resolutions by outcome.",
		}, []string{"outcome"}),
		codeCollisions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shortener_code_collisions_total",
			Help: "Generated codes that were already taken.",
		}),
		codeExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shortener_code_space_exhausted_total",
			Help: "Create requests that ran out of code generation attempts.",
		}),
	}
	reg.MustRegister(m.linksCreated, m.resolutions, m.codeCollisions, m.codeExhausted)
	return m
}

func (m *Metrics) created() {
	if m != nil {
		m.linksCreated.Inc()
	}
}

func (m *Metrics) resolved(err error) {
	if m == nil {
		return
	}
	outcome := "found"
	switch {
	case err == nil:
	case errx.KindOf(err) == errx.NotFound:
		outcome = "not_found"
	default:
		outcome = "error"
	}
	m.resolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) collision() {
	if m != nil {
		m.codeCollisions.Inc()
	}
}

func (m *Metrics) exhausted() {
	if m != nil {
		m.codeExhausted.Inc()
	}
}
