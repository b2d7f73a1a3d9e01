package timeout

import (
	"context"
	goerrors "errors"
	"time"

	"github.com/slok/writeharness"
	"github.com/slok/writeharness/errors"
	"github.com/slok/writeharness/metrics"
)

const (
	defaultTimeout = 1 * time.Second
)

// Config is the configuration of the timeout middleware.
type Config struct {
	// Timeout is used when the write policy doesn't have a socket timeout.
	Timeout time.Duration
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// NewMiddleware returns a middleware that cuts the writes that don't get a
// reply before the socket timeout of their policy. A cut write returns a
// timeout store error, the deadline is also set on the context so the store
// can abort the write.
func NewMiddleware(cfg Config) writeharness.Middleware {
	cfg.defaults()

	return func(next writeharness.Store) writeharness.Store {
		return &timeoutStore{
			Store: writeharness.SanitizeStore(next),
			cfg:   cfg,
		}
	}
}

type timeoutStore struct {
	writeharness.Store
	cfg Config
}

func (t *timeoutStore) Put(ctx context.Context, policy writeharness.WritePolicy, key writeharness.Key, bin writeharness.Bin) error {
	metricsRecorder, _ := metrics.RecorderFromContext(ctx)

	d := policy.SocketTimeout
	if d <= 0 {
		d = t.cfg.Timeout
	}

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	// Run the write.
	errc := make(chan error, 1)
	go func() {
		errc <- t.Store.Put(ctx, policy, key, bin)
	}()

	// Wait until the deadline has been reached or we have a result.
	select {
	case err := <-errc:
		// The store could have aborted the write due to our deadline.
		if !goerrors.Is(err, context.DeadlineExceeded) || parent.Err() != nil {
			return err
		}
	case <-ctx.Done():
		// The caller cancelled, it's not a timeout.
		if parent.Err() != nil {
			return parent.Err()
		}
	}

	metricsRecorder.IncTimeout()
	return errors.WrapStoreError(errors.ResultTimeout, errors.ErrTimeout)
}
