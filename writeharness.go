package writeharness

import (
	"context"
	"time"
)

// Key identifies a record on the remote store.
type Key struct {
	Namespace string
	Set       string
	Seq       int
}

// Bin is the single named value written on every operation.
type Bin struct {
	Name  string
	Value string
}

// WritePolicy is the per call timeout policy passed along with every write.
type WritePolicy struct {
	// SocketTimeout is the max time to wait for the node to reply once the
	// request has been sent.
	SocketTimeout time.Duration
	// TotalTimeout is the max time of the whole operation, 0 means no total limit.
	TotalTimeout time.Duration
}

// DefaultWritePolicy returns the policy used by the harness when none is set,
// a short socket timeout makes any latency on the node surface as timeouts.
func DefaultWritePolicy() WritePolicy {
	return WritePolicy{
		SocketTimeout: 10 * time.Millisecond,
	}
}

// Store is the remote data store the harness drives load against.
type Store interface {
	// Put writes the bin on the key. The returned error, if any, should carry a
	// result code (see errors.StoreError).
	Put(ctx context.Context, policy WritePolicy, key Key, bin Bin) error
	// Info runs an info command on the store and returns the raw response line.
	Info(ctx context.Context, command string) (string, error)
}

// PutFunc is a helper that will satisfy the Store interface by using a function.
// The resulting store has no statistics.
type PutFunc func(ctx context.Context, policy WritePolicy, key Key, bin Bin) error

// Put satisfies Store interface.
func (f PutFunc) Put(ctx context.Context, policy WritePolicy, key Key, bin Bin) error {
	return f(ctx, policy, key, bin)
}

// Info satisfies Store interface.
func (f PutFunc) Info(_ context.Context, _ string) (string, error) {
	return "", nil
}

// Middleware wraps a Store returning a new Store with extra behaviour.
type Middleware func(next Store) Store

// StoreChain wraps base with the middlewares. The first middleware is the
// outermost one, the one that receives the calls first.
func StoreChain(base Store, middlewares ...Middleware) Store {
	s := SanitizeStore(base)
	for i := len(middlewares) - 1; i >= 0; i-- {
		s = middlewares[i](s)
	}
	return s
}

// SanitizeStore returns a safe Store if the store is nil.
func SanitizeStore(s Store) Store {
	// In case of end of chain.
	if s == nil {
		return NopStore{}
	}
	return s
}

// NopStore is a Store that accepts every write and has no statistics.
type NopStore struct{}

// Put satisfies Store interface.
func (NopStore) Put(ctx context.Context, _ WritePolicy, _ Key, _ Bin) error {
	return ctx.Err()
}

// Info satisfies Store interface.
func (NopStore) Info(_ context.Context, _ string) (string, error) {
	return "", nil
}
