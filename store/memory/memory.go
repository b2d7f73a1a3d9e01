package memory

import (
	"context"
	goerrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/slok/writeharness"
	"github.com/slok/writeharness/errors"
	"github.com/slok/writeharness/stats"
)

// Config is the configuration of the memory Store.
type Config struct {
	// Latency is the time the node takes to apply each write.
	Latency time.Duration
}

// Store is an in memory single node store. It models the client connections
// of the node: a write takes an idle connection or opens a new one, and the
// connection is closed when the write fails due to a timeout or the node
// being unavailable. The counters are exposed on the statistics info command
// like a real node does.
type Store struct {
	cfg Config

	mu          sync.Mutex
	records     map[writeharness.Key]writeharness.Bin
	idle        int
	opened      int
	closed      int
	unavailable bool
}

// New returns a new memory Store.
func New(cfg Config) *Store {
	return &Store{
		cfg:     cfg,
		records: map[writeharness.Key]writeharness.Bin{},
	}
}

// SetAvailable makes the node reachable or not. While not available every
// write fails with a server not available error.
func (s *Store) SetAvailable(available bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = !available
	// A node going down drops all the connections.
	if s.unavailable {
		s.closed += s.idle
		s.idle = 0
	}
}

// Put satisfies writeharness.Store interface.
func (s *Store) Put(ctx context.Context, policy writeharness.WritePolicy, key writeharness.Key, bin writeharness.Bin) error {
	if err := s.getConn(); err != nil {
		return err
	}

	if policy.SocketTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, policy.SocketTimeout)
		defer cancel()
	}

	if s.cfg.Latency > 0 {
		t := time.NewTimer(s.cfg.Latency)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
		}
	}

	if err := ctx.Err(); err != nil {
		// The client gives up on the connection, it can't be reused.
		s.closeConn()
		if goerrors.Is(err, context.DeadlineExceeded) {
			return errors.WrapStoreError(errors.ResultTimeout, errors.ErrTimeout)
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		s.closed++
		return errors.NewStoreError(errors.ResultServerNotAvailable, "node not reachable")
	}
	s.records[key] = bin
	s.idle++

	return nil
}

// Info satisfies writeharness.Store interface.
func (s *Store) Info(_ context.Context, command string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unavailable {
		return "", errors.NewStoreError(errors.ResultServerNotAvailable, "node not reachable")
	}

	switch command {
	case stats.StatisticsCommand:
		return fmt.Sprintf("cluster_size=1;objects=%d;%s=%d;%s=%d;client_connections=%d",
			len(s.records),
			stats.ConnectionsOpened, s.opened,
			stats.ConnectionsClosed, s.closed,
			s.opened-s.closed,
		), nil
	case "build":
		return "memory", nil
	}

	return "", errors.NewStoreError(errors.ResultParameterError, fmt.Sprintf("unknown info command %q", command))
}

// Get returns the bin stored on the key.
func (s *Store) Get(key writeharness.Key) (writeharness.Bin, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.records[key]
	return b, ok
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *Store) getConn() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unavailable {
		return errors.NewStoreError(errors.ResultServerNotAvailable, "node not reachable")
	}

	if s.idle > 0 {
		s.idle--
		return nil
	}
	s.opened++
	return nil
}

func (s *Store) closeConn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
}
