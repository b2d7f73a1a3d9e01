package metrics

import "time"

// Recorder knows how to measure different kind of metrics.
type Recorder interface {
	// WithID will set the ID name to the recorder and every metric
	// measured with the obtained recorder will be identified with
	// the name.
	WithID(id string) Recorder
	// ObservePut will measure the duration of a write on the store.
	ObservePut(start time.Time, outcome string)
	// IncOutcome increments the number of finished writes by outcome.
	IncOutcome(outcome string)
	// IncSubmitFailure increments the number of writes that failed before being submitted.
	IncSubmitFailure()
	// SetWorkerInflight sets the number of in flight writes of a worker.
	SetWorkerInflight(worker int, inflight int)
	// ObserveThrottleWait will measure the time waited to get a worker slot.
	ObserveThrottleWait(worker int, start time.Time)
	// SetConnectionsChurn sets the connections opened or closed during the run.
	SetConnectionsChurn(kind string, delta int)
	// IncTimeout will increment the number of timeouts.
	IncTimeout()
	// IncCircuitbreakerState increments the number of state changes of the error rate circuit breaker.
	IncCircuitbreakerState(state string)
	// IncCircuitbreakerRejection increments the number of writes rejected by the error rate circuit breaker.
	IncCircuitbreakerRejection()
	// IncChaosInjectedFailure increments the number of times injected failure.
	IncChaosInjectedFailure(kind string)
}

// Dummy is a dummy recorder.
var Dummy = &dummy{}

type dummy struct{}

func (d dummy) WithID(id string) Recorder { return d }
func (dummy) ObservePut(start time.Time, outcome string) {}
func (dummy) IncOutcome(outcome string) {}
func (dummy) IncSubmitFailure() {}
func (dummy) SetWorkerInflight(worker int, inflight int) {}
func (dummy) ObserveThrottleWait(worker int, start time.Time) {}
func (dummy) SetConnectionsChurn(kind string, delta int) {}
func (dummy) IncTimeout() {}
func (dummy) IncCircuitbreakerState(state string) {}
func (dummy) IncCircuitbreakerRejection() {}
func (dummy) IncChaosInjectedFailure(kind string) {}
