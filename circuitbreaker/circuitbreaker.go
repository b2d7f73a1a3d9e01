package circuitbreaker

import (
	"context"
	"sync"
	"time"

	"github.com/slok/writeharness"
	"github.com/slok/writeharness/errors"
	"github.com/slok/writeharness/metrics"
)

type state string

const (
	stateOpen   state = "open"
	stateClosed state = "closed"
)

// Config is the configuration of the error rate circuit breaker.
type Config struct {
	// MaxErrorRate is the max number of errors allowed on the window, when
	// the window has more errors every write will be rejected until the
	// window slides. 0 disables the circuit breaker.
	MaxErrorRate int
	// ErrorRateWindow is the number of tend intervals of the window.
	ErrorRateWindow int
	// TendInterval is the duration of each bucket of the window.
	TendInterval time.Duration
}

// defaults will use the default settings of the Aerospike clients.
func (c *Config) defaults() {
	if c.MaxErrorRate < 0 {
		c.MaxErrorRate = 0
	}

	if c.ErrorRateWindow <= 0 {
		c.ErrorRateWindow = 1
	}

	if c.TendInterval <= 0 {
		c.TendInterval = 1 * time.Second
	}
}

type circuitbreaker struct {
	writeharness.Store

	cfg      Config
	recorder *bucketWindow
	state    state
	mu       sync.Mutex
}

// NewMiddleware returns a middleware that simulates the error rate circuit
// breaker of a store node.
//
// The circuit starts in closed state, every write is sent to the wrapped
// store and the failed ones are recorded on a sliding window of
// ErrorRateWindow buckets of TendInterval duration each.
//
// When the window has more errors than MaxErrorRate the circuit moves to
// open state, being in open state every write is rejected with a max error
// rate error, the rejections are not recorded on the window and don't close
// the connection.
//
// When the window slides and the recorded errors are again under the limit
// the circuit moves to closed state.
func NewMiddleware(cfg Config) writeharness.Middleware {
	cfg.defaults()

	return func(next writeharness.Store) writeharness.Store {
		return &circuitbreaker{
			Store:    writeharness.SanitizeStore(next),
			state:    stateClosed,
			recorder: newBucketWindow(cfg.ErrorRateWindow, cfg.TendInterval, time.Now),
			cfg:      cfg,
		}
	}
}

func (c *circuitbreaker) Put(ctx context.Context, policy writeharness.WritePolicy, key writeharness.Key, bin writeharness.Bin) error {
	if c.cfg.MaxErrorRate == 0 {
		return c.Store.Put(ctx, policy, key, bin)
	}

	metricsRecorder, _ := metrics.RecorderFromContext(ctx)

	// Decide state before executing, the window could have slid.
	if c.decideState(metricsRecorder) == stateOpen {
		metricsRecorder.IncCircuitbreakerRejection()
		return errors.NewStoreError(errors.ResultMaxErrorRate, "max error rate exceeded")
	}

	err := c.Store.Put(ctx, policy, key, bin)

	// Measure result.
	if err != nil {
		c.recorder.inc(err)
		c.decideState(metricsRecorder)
	}

	return err
}

func (c *circuitbreaker) decideState(metricsRec metrics.Recorder) state {
	st := stateClosed
	if c.recorder.errors() > c.cfg.MaxErrorRate {
		st = stateOpen
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Only change if the state changed.
	if c.state != st {
		metricsRec.IncCircuitbreakerState(string(st))
		c.state = st
	}
	return st
}
