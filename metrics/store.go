package metrics

import (
	"context"
	"time"

	"github.com/slok/writeharness"
	"github.com/slok/writeharness/outcome"
)

var ctxRecorderKey contextKey = "recorder"

type contextKey string

func (c contextKey) String() string {
	return "metrics-ctx-key" + string(c)
}

// RecorderFromContext will get the metrics recorder from the context.
// If there is not context it will return also a dummy recorder that is
// safe to use it.
func RecorderFromContext(ctx context.Context) (recorder Recorder, ok bool) {
	rec, ok := ctx.Value(ctxRecorderKey).(Recorder)

	if !ok {
		return Dummy, false
	}

	return rec, true
}

// WithRecorder returns a new context with the recorder set, the stores of the
// chain will measure using it.
func WithRecorder(ctx context.Context, r Recorder) context.Context {
	return context.WithValue(ctx, ctxRecorderKey, r)
}

// NewMeasuredMiddleware returns a middleware that measures the writes of the
// wrapped store and sets the recorder on the context for the rest of the chain.
func NewMeasuredMiddleware(id string, rec Recorder) writeharness.Middleware {
	if rec == nil {
		rec = Dummy
	}
	rec = rec.WithID(id)

	return func(next writeharness.Store) writeharness.Store {
		return &measuredStore{
			Store: writeharness.SanitizeStore(next),
			rec:   rec,
		}
	}
}

type measuredStore struct {
	writeharness.Store
	rec Recorder
}

func (m *measuredStore) Put(ctx context.Context, policy writeharness.WritePolicy, key writeharness.Key, bin writeharness.Bin) (err error) {
	defer func(start time.Time) {
		m.rec.ObservePut(start, string(outcome.Classify(err)))
	}(time.Now())

	ctx = WithRecorder(ctx, m.rec)
	return m.Store.Put(ctx, policy, key, bin)
}
