package worker

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/slok/writeharness/errors"
)

// Config is the configuration of the worker Pool.
type Config struct {
	// Workers is the number of workers of the pool. By default the number
	// of CPUs.
	Workers int
	// QueueSize is the number of jobs that can be queued on a worker before
	// Submit blocks.
	QueueSize int
}

func (c *Config) defaults() {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}

	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
}

// Pool is a fixed set of workers, each one with its own job queue. A worker
// starts every job asynchronously so it can have multiple jobs in flight, the
// number of in flight jobs is controlled by the submitter.
type Pool struct {
	queues []chan func()
	next   atomic.Uint64
	stopC  chan struct{}
	closed bool
	mu     sync.RWMutex
	group  errgroup.Group
	jobs   sync.WaitGroup
	once   sync.Once
}

// New returns a new started worker Pool.
func New(cfg Config) *Pool {
	cfg.defaults()

	p := &Pool{
		queues: make([]chan func(), cfg.Workers),
		stopC:  make(chan struct{}),
	}

	for i := range p.queues {
		q := make(chan func(), cfg.QueueSize)
		p.queues[i] = q
		p.group.Go(func() error {
			p.runWorker(q)
			return nil
		})
	}

	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.queues)
}

// Next returns the next worker using round robin.
func (p *Pool) Next() int {
	n := p.next.Add(1) - 1
	return int(n % uint64(len(p.queues)))
}

// Submit queues the job on the worker, it blocks while the worker queue is
// full. Once submitted the job will be executed even if the pool is closed.
func (p *Pool) Submit(worker int, job func()) error {
	if worker < 0 || worker >= len(p.queues) {
		return fmt.Errorf("%w: %d", errors.ErrUnknownWorker, worker)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errors.ErrPoolClosed
	}

	p.queues[worker] <- job
	return nil
}

// Close stops accepting jobs and waits until the queued and the running jobs
// have finished.
func (p *Pool) Close() error {
	var err error
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.stopC)

		err = p.group.Wait()
		p.jobs.Wait()
	})
	return err
}

func (p *Pool) runWorker(q chan func()) {
	for {
		select {
		case <-p.stopC:
			// Nobody can submit after stopping, start what is left on the queue.
			for {
				select {
				case job := <-q:
					p.start(job)
				default:
					return
				}
			}
		case job := <-q:
			p.start(job)
		}
	}
}

func (p *Pool) start(job func()) {
	p.jobs.Add(1)
	go func() {
		defer p.jobs.Done()
		job()
	}()
}
