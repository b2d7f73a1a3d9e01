package chaos

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slok/writeharness"
	"github.com/slok/writeharness/errors"
	"github.com/slok/writeharness/metrics"
)

// Injector will control how the faults will be injected in the chaos store.
// It can be changed while the store is being used.
type Injector struct {
	latency      time.Duration
	errorPercent int
	code         errors.ResultCode
	mu           sync.Mutex
}

// SetLatency will set the latency on the injector.
func (i *Injector) SetLatency(t time.Duration) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.latency = t
}

// SetErrorPercent will set the error percent on the injector.
func (i *Injector) SetErrorPercent(percent int) error {
	if percent > 100 || percent < 0 {
		return fmt.Errorf("%d is not a valid percent", percent)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.errorPercent = percent
	return nil
}

// SetResultCode will set the result code of the injected failures. By default
// the failures are server not available errors.
func (i *Injector) SetResultCode(code errors.ResultCode) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.code = code
}

func (i *Injector) get() (latency time.Duration, errorPercent int, code errors.ResultCode) {
	i.mu.Lock()
	defer i.mu.Unlock()
	code = i.code
	if code == errors.ResultOK {
		code = errors.ResultServerNotAvailable
	}
	return i.latency, i.errorPercent, code
}

// Config is the configuration of the chaos store.
type Config struct {
	// Injector is the failure injector for the chaos store.
	Injector *Injector
}

func (c *Config) defaults() {
	if c.Injector == nil {
		c.Injector = &Injector{
			latency: 100 * time.Millisecond,
		}
	}
}

// NewMiddleware returns a new chaos middleware. The chaos store will inject
// failures using the injector. The injector controls the faults. See Injector
// to know what kind of failures are controllable.
func NewMiddleware(cfg Config) writeharness.Middleware {
	cfg.defaults()

	return func(next writeharness.Store) writeharness.Store {
		return &failureInjector{
			cfg:   cfg,
			Store: writeharness.SanitizeStore(next),
		}
	}
}

type failureInjector struct {
	writeharness.Store

	total int
	errs  int
	mu    sync.Mutex
	cfg   Config
}

func (f *failureInjector) Put(ctx context.Context, policy writeharness.WritePolicy, key writeharness.Key, bin writeharness.Bin) (err error) {
	metricsRecorder, _ := metrics.RecorderFromContext(ctx)

	// Measure the write requests and errors.
	defer func() {
		f.mu.Lock()
		f.total++
		if err != nil {
			f.errs++
		}
		f.mu.Unlock()
	}()

	lat, errPerc, code := f.cfg.Injector.get()

	// Inject latency attack, the write context can cut it.
	if lat > 0 {
		metricsRecorder.IncChaosInjectedFailure("latency")
		t := time.NewTimer(lat)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}

	// Inject error attack, only if the failure keeps the error percent
	// under the target.
	f.mu.Lock()
	inject := (f.errs+1)*100 <= errPerc*(f.total+1)
	f.mu.Unlock()
	if inject {
		metricsRecorder.IncChaosInjectedFailure("error")
		return errors.WrapStoreError(code, errors.ErrFailureInjected)
	}

	return f.Store.Put(ctx, policy, key, bin)
}
