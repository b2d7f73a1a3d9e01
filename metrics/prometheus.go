package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	promNamespace = "writeharness"

	promStoreSubsystem    = "store"
	promDispatchSubsystem = "dispatch"
	promThrottleSubsystem = "throttle"
	promStatsSubsystem    = "stats"
	promTimeoutSubsystem  = "timeout"
	promCBSubsystem       = "circuitbreaker"
	promChaosSubsystem    = "chaos"
)

type prometheusRec struct {
	// Metrics.
	putDuration            *prometheus.HistogramVec
	outcomes               *prometheus.CounterVec
	submitFailures         *prometheus.CounterVec
	workerInflight         *prometheus.GaugeVec
	throttleWaitDuration   *prometheus.HistogramVec
	connectionsChurn       *prometheus.GaugeVec
	timeoutTimeouts        *prometheus.CounterVec
	cbStateChanges         *prometheus.CounterVec
	cbRejections           *prometheus.CounterVec
	chaosFailureInjections *prometheus.CounterVec

	id  string
	reg prometheus.Registerer
}

// NewPrometheusRecorder returns a new Recorder that knows how to measure
// using Prometheus kind metrics.
func NewPrometheusRecorder(reg prometheus.Registerer) Recorder {
	p := &prometheusRec{
		reg: reg,
	}

	p.registerMetrics()
	return p
}

func (p prometheusRec) WithID(id string) Recorder {
	return &prometheusRec{
		putDuration:            p.putDuration,
		outcomes:               p.outcomes,
		submitFailures:         p.submitFailures,
		workerInflight:         p.workerInflight,
		throttleWaitDuration:   p.throttleWaitDuration,
		connectionsChurn:       p.connectionsChurn,
		timeoutTimeouts:        p.timeoutTimeouts,
		cbStateChanges:         p.cbStateChanges,
		cbRejections:           p.cbRejections,
		chaosFailureInjections: p.chaosFailureInjections,

		id:  id,
		reg: p.reg,
	}
}

func (p *prometheusRec) registerMetrics() {
	p.putDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: promNamespace,
		Subsystem: promStoreSubsystem,
		Name:      "put_duration_seconds",
		Help:      "The duration of the writes on the store in seconds.",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"id", "outcome"})

	p.outcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promDispatchSubsystem,
		Name:      "outcomes_total",
		Help:      "Total number of finished writes by outcome.",
	}, []string{"id", "outcome"})

	p.submitFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promDispatchSubsystem,
		Name:      "submit_failures_total",
		Help:      "Total number of writes that could not be submitted.",
	}, []string{"id"})

	p.workerInflight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Subsystem: promThrottleSubsystem,
		Name:      "inflight_writes",
		Help:      "The number of in flight writes of each worker.",
	}, []string{"id", "worker"})

	p.throttleWaitDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: promNamespace,
		Subsystem: promThrottleSubsystem,
		Name:      "wait_duration_seconds",
		Help:      "The time waited for a worker slot in seconds.",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
	}, []string{"id", "worker"})

	p.connectionsChurn = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Subsystem: promStatsSubsystem,
		Name:      "connections_churn",
		Help:      "The number of connections opened or closed on the node during the run.",
	}, []string{"id", "kind"})

	p.timeoutTimeouts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promTimeoutSubsystem,
		Name:      "timeouts_total",
		Help:      "Total number of writes that exceeded their deadline.",
	}, []string{"id"})

	p.cbStateChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promCBSubsystem,
		Name:      "state_changes_total",
		Help:      "Total number of state changes made by the error rate circuit breaker.",
	}, []string{"id", "state"})

	p.cbRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promCBSubsystem,
		Name:      "rejections_total",
		Help:      "Total number of writes rejected by the error rate circuit breaker.",
	}, []string{"id"})

	p.chaosFailureInjections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promChaosSubsystem,
		Name:      "failure_injections_total",
		Help:      "Total number of failure injections made by the chaos store.",
	}, []string{"id", "kind"})

	p.reg.MustRegister(p.putDuration,
		p.outcomes,
		p.submitFailures,
		p.workerInflight,
		p.throttleWaitDuration,
		p.connectionsChurn,
		p.timeoutTimeouts,
		p.cbStateChanges,
		p.cbRejections,
		p.chaosFailureInjections,
	)
}

func (p prometheusRec) ObservePut(start time.Time, outcome string) {
	secs := time.Since(start).Seconds()
	p.putDuration.WithLabelValues(p.id, outcome).Observe(secs)
}

func (p prometheusRec) IncOutcome(outcome string) {
	p.outcomes.WithLabelValues(p.id, outcome).Inc()
}

func (p prometheusRec) IncSubmitFailure() {
	p.submitFailures.WithLabelValues(p.id).Inc()
}

func (p prometheusRec) SetWorkerInflight(worker int, inflight int) {
	p.workerInflight.WithLabelValues(p.id, strconv.Itoa(worker)).Set(float64(inflight))
}

func (p prometheusRec) ObserveThrottleWait(worker int, start time.Time) {
	secs := time.Since(start).Seconds()
	p.throttleWaitDuration.WithLabelValues(p.id, strconv.Itoa(worker)).Observe(secs)
}

func (p prometheusRec) SetConnectionsChurn(kind string, delta int) {
	p.connectionsChurn.WithLabelValues(p.id, kind).Set(float64(delta))
}

func (p prometheusRec) IncTimeout() {
	p.timeoutTimeouts.WithLabelValues(p.id).Inc()
}

func (p prometheusRec) IncCircuitbreakerState(state string) {
	p.cbStateChanges.WithLabelValues(p.id, state).Inc()
}

func (p prometheusRec) IncCircuitbreakerRejection() {
	p.cbRejections.WithLabelValues(p.id).Inc()
}

func (p prometheusRec) IncChaosInjectedFailure(kind string) {
	p.chaosFailureInjections.WithLabelValues(p.id, kind).Inc()
}
