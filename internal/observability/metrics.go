package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the dashboard's fetch and pipeline counters.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	dispatches    *prometheus.CounterVec
	resolutions   *prometheus.CounterVec
	violations    *prometheus.CounterVec
	advances      *prometheus.CounterVec
	providerCalls *prometheus.CounterVec
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	dispatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "changesdeck_fetch_dispatches_total",
		Help: "Loader invocations by stage.",
	}, []string{"stage"})
	resolutions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "changesdeck_fetch_resolutions_total",
		Help: "Fetch state transitions out of loading by stage and outcome.",
	}, []string{"stage", "outcome"})
	violations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "changesdeck_contract_violations_total",
		Help: "Fetch orchestration contract violations by stage.",
	}, []string{"stage"})
	advances := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "changesdeck_pipeline_advances_total",
		Help: "Pipeline Advance calls by outcome.",
	}, []string{"outcome"})
	providerCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "changesdeck_provider_calls_total",
		Help: "Backend calls by operation and error kind.",
	}, []string{"operation", "error"})

	return &Metrics{
		dispatches:    registerCounterVec(registerer, dispatches),
		resolutions:   registerCounterVec(registerer, resolutions),
		violations:    registerCounterVec(registerer, violations),
		advances:      registerCounterVec(registerer, advances),
		providerCalls: registerCounterVec(registerer, providerCalls),
	}
}

func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) IncDispatch(stage string) {
	if m == nil || m.dispatches == nil {
		return
	}
	m.dispatches.WithLabelValues(stage).Inc()
}

func (m *Metrics) IncResolution(stage, outcome string) {
	if m == nil || m.resolutions == nil {
		return
	}
	m.resolutions.WithLabelValues(stage, outcome).Inc()
}

func (m *Metrics) IncViolation(stage string) {
	if m == nil || m.violations == nil {
		return
	}
	m.violations.WithLabelValues(stage).Inc()
}

func (m *Metrics) IncAdvance(outcome string) {
	if m == nil || m.advances == nil {
		return
	}
	m.advances.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncProviderCall(operation, errKind string) {
	if m == nil || m.providerCalls == nil {
		return
	}
	m.providerCalls.WithLabelValues(operation, errKind).Inc()
}

// Dispatches exposes the dispatch counter for a stage, for tests.
func (m *Metrics) Dispatches(stage string) prometheus.Counter {
	return m.dispatches.WithLabelValues(stage)
}

// Resolutions exposes the resolution counter, for tests.
func (m *Metrics) Resolutions(stage, outcome string) prometheus.Counter {
	return m.resolutions.WithLabelValues(stage, outcome)
}

// Violations exposes the violation counter, for tests.
func (m *Metrics) Violations(stage string) prometheus.Counter {
	return m.violations.WithLabelValues(stage)
}

func registerCounterVec(registerer prometheus.Registerer, counter *prometheus.CounterVec) *prometheus.CounterVec {
	if err := registerer.Register(counter); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return counter
}
