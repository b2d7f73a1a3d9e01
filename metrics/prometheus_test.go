package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"

	"github.com/slok/writeharness/metrics"
)

func TestPrometheus(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name          string
		recordMetrics func(metrics.Recorder)
		expMetrics    []string
	}{
		{
			name: "Recording put metrics should expose the metrics.",
			recordMetrics: func(m metrics.Recorder) {
				m1 := m.WithID("test")
				m2 := m.WithID("test2")
				m1.ObservePut(now.Add(-3*time.Millisecond), "success")
				m1.ObservePut(now.Add(-30*time.Millisecond), "timeout_error")
				m1.ObservePut(now.Add(-2*time.Second), "success")
				m2.ObservePut(now.Add(-200*time.Millisecond), "other_error")
			},
			expMetrics: []string{
				`writeharness_store_put_duration_seconds_bucket{id="test",outcome="success",le="0.001"} 0`,
				`writeharness_store_put_duration_seconds_bucket{id="test",outcome="success",le="0.005"} 1`,
				`writeharness_store_put_duration_seconds_bucket{id="test",outcome="success",le="1"} 1`,
				`writeharness_store_put_duration_seconds_bucket{id="test",outcome="success",le="+Inf"} 2`,
				`writeharness_store_put_duration_seconds_count{id="test",outcome="success"} 2`,
				`writeharness_store_put_duration_seconds_bucket{id="test",outcome="timeout_error",le="0.025"} 0`,
				`writeharness_store_put_duration_seconds_bucket{id="test",outcome="timeout_error",le="0.05"} 1`,
				`writeharness_store_put_duration_seconds_count{id="test",outcome="timeout_error"} 1`,
				`writeharness_store_put_duration_seconds_bucket{id="test2",outcome="other_error",le="0.1"} 0`,
				`writeharness_store_put_duration_seconds_bucket{id="test2",outcome="other_error",le="0.25"} 1`,
				`writeharness_store_put_duration_seconds_count{id="test2",outcome="other_error"} 1`,
			},
		},
		{
			name: "Recording dispatch metrics should expose the metrics.",
			recordMetrics: func(m metrics.Recorder) {
				m1 := m.WithID("test")
				m2 := m.WithID("test2")
				m1.IncOutcome("success")
				m1.IncOutcome("success")
				m1.IncOutcome("max_error_rate")
				m2.IncOutcome("connection_error")
				m1.IncSubmitFailure()
			},
			expMetrics: []string{
				`writeharness_dispatch_outcomes_total{id="test",outcome="max_error_rate"} 1`,
				`writeharness_dispatch_outcomes_total{id="test",outcome="success"} 2`,
				`writeharness_dispatch_outcomes_total{id="test2",outcome="connection_error"} 1`,
				`writeharness_dispatch_submit_failures_total{id="test"} 1`,
			},
		},
		{
			name: "Recording throttle metrics should expose the metrics.",
			recordMetrics: func(m metrics.Recorder) {
				m1 := m.WithID("test")
				m1.SetWorkerInflight(0, 4)
				m1.SetWorkerInflight(1, 12)
				m1.SetWorkerInflight(0, 3)
				m1.ObserveThrottleWait(1, now.Add(-20*time.Millisecond))
			},
			expMetrics: []string{
				`writeharness_throttle_inflight_writes{id="test",worker="0"} 3`,
				`writeharness_throttle_inflight_writes{id="test",worker="1"} 12`,
				`writeharness_throttle_wait_duration_seconds_bucket{id="test",worker="1",le="0.01"} 0`,
				`writeharness_throttle_wait_duration_seconds_bucket{id="test",worker="1",le="0.05"} 1`,
				`writeharness_throttle_wait_duration_seconds_count{id="test",worker="1"} 1`,
			},
		},
		{
			name: "Recording connection churn should expose the metrics.",
			recordMetrics: func(m metrics.Recorder) {
				m1 := m.WithID("test")
				m1.SetConnectionsChurn("opened", 14)
				m1.SetConnectionsChurn("closed", 9)
			},
			expMetrics: []string{
				`writeharness_stats_connections_churn{id="test",kind="closed"} 9`,
				`writeharness_stats_connections_churn{id="test",kind="opened"} 14`,
			},
		},
		{
			name: "Recording timeout metrics should expose the metrics.",
			recordMetrics: func(m metrics.Recorder) {
				m1 := m.WithID("test")
				m2 := m.WithID("test2")
				m1.IncTimeout()
				m1.IncTimeout()
				m2.IncTimeout()
			},
			expMetrics: []string{
				`writeharness_timeout_timeouts_total{id="test"} 2`,
				`writeharness_timeout_timeouts_total{id="test2"} 1`,
			},
		},
		{
			name: "Recording circuitbreaker metrics should expose the metrics.",
			recordMetrics: func(m metrics.Recorder) {
				m1 := m.WithID("test")
				m2 := m.WithID("test2")
				m1.IncCircuitbreakerState("open")
				m1.IncCircuitbreakerState("closed")
				m2.IncCircuitbreakerState("closed")
				m1.IncCircuitbreakerState("closed")
				m1.IncCircuitbreakerRejection()
			},
			expMetrics: []string{
				`writeharness_circuitbreaker_state_changes_total{id="test",state="open"} 1`,
				`writeharness_circuitbreaker_state_changes_total{id="test",state="closed"} 2`,
				`writeharness_circuitbreaker_state_changes_total{id="test2",state="closed"} 1`,
				`writeharness_circuitbreaker_rejections_total{id="test"} 1`,
			},
		},
		{
			name: "Recording chaos metrics should expose the metrics.",
			recordMetrics: func(m metrics.Recorder) {
				m1 := m.WithID("test")
				m2 := m.WithID("test2")
				m1.IncChaosInjectedFailure("latency")
				m1.IncChaosInjectedFailure("error")
				m2.IncChaosInjectedFailure("error")
			},
			expMetrics: []string{
				`writeharness_chaos_failure_injections_total{id="test",kind="error"} 1`,
				`writeharness_chaos_failure_injections_total{id="test",kind="latency"} 1`,
				`writeharness_chaos_failure_injections_total{id="test2",kind="error"} 1`,
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert := assert.New(t)

			reg := prometheus.NewRegistry()
			p := metrics.NewPrometheusRecorder(reg)

			test.recordMetrics(p)

			// Get the metrics handler and serve.
			h := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/metrics", nil)
			h.ServeHTTP(rec, req)

			resp := rec.Result()

			// Check all metrics are present.
			if assert.Equal(http.StatusOK, resp.StatusCode) {
				body, _ := io.ReadAll(resp.Body)
				for _, expMetric := range test.expMetrics {
					assert.Contains(string(body), expMetric, "metric not present on the result of metrics service")
				}
			}
		})
	}
}
