package daemon

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ladapp/lad/pkg/types"
)

// Metrics holds the daemon's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ready          prometheus.Gauge
	onAC           prometheus.Gauge
	externalCount  prometheus.Gauge
	transitions    *prometheus.CounterVec
	bundleDuration *prometheus.HistogramVec
	stepResults    *prometheus.CounterVec
	resumes        prometheus.Counter
	safetyReverts  prometheus.Counter
	processCPU     prometheus.Gauge
	processRSS     prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ready: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "lad",
			Name:      "ready",
			Help:      "1 when the machine is on AC power with an external monitor attached.",
		}),
		onAC: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "lad",
			Name:      "on_ac_power",
			Help:      "1 when the AC line is online.",
		}),
		externalCount: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "lad",
			Name:      "external_monitors",
			Help:      "Number of external monitors counted at the last evaluation.",
		}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lad",
			Name:      "readiness_transitions_total",
			Help:      "Readiness transitions by target state.",
		}, []string{"to", "forced"}),
		bundleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lad",
			Name:      "bundle_duration_seconds",
			Help:      "Time taken to run a settings bundle.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"direction"}),
		stepResults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lad",
			Name:      "bundle_steps_total",
			Help:      "Bundle step outcomes by step and error kind.",
		}, []string{"direction", "step", "outcome", "kind"}),
		resumes: f.NewCounter(prometheus.CounterOpts{
			Namespace: "lad",
			Name:      "resume_reapply_total",
			Help:      "Forced re-applications after resume from sleep.",
		}),
		safetyReverts: f.NewCounter(prometheus.CounterOpts{
			Namespace: "lad",
			Name:      "safety_reverts_total",
			Help:      "Safety revert hotkey presses.",
		}),
		processCPU: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "lad",
			Name:      "process_cpu_percent",
			Help:      "Daemon CPU usage at the last performance heartbeat.",
		}),
		processRSS: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "lad",
			Name:      "process_resident_memory_bytes",
			Help:      "Daemon resident memory at the last performance heartbeat.",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) setEnvironment(ready, onAC bool, external int) {
	if m == nil {
		return
	}
	m.ready.Set(b2f(ready))
	m.onAC.Set(b2f(onAC))
	m.externalCount.Set(float64(external))
}

func (m *Metrics) observeTransition(ready, forced bool) {
	if m == nil {
		return
	}
	to := "not_ready"
	if ready {
		to = "ready"
	}
	m.transitions.WithLabelValues(to, boolLabel(forced)).Inc()
}

func (m *Metrics) observeBundle(r *types.BundleReport) {
	if m == nil {
		return
	}
	m.bundleDuration.WithLabelValues(string(r.Direction)).Observe(r.Took.Seconds())
}

func (m *Metrics) observeStep(direction types.Direction, res types.StepResult) {
	if m == nil {
		return
	}
	m.stepResults.WithLabelValues(string(direction), res.Step, string(res.Outcome), res.Kind).Inc()
}

func (m *Metrics) observeResume() {
	if m == nil {
		return
	}
	m.resumes.Inc()
}

func (m *Metrics) observeSafetyRevert() {
	if m == nil {
		return
	}
	m.safetyReverts.Inc()
}

func (m *Metrics) setProcess(cpuPercent float64, rssBytes uint64) {
	if m == nil {
		return
	}
	m.processCPU.Set(cpuPercent)
	m.processRSS.Set(float64(rssBytes))
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
