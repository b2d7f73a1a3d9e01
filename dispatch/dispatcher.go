package dispatch

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/slok/writeharness"
	"github.com/slok/writeharness/barrier"
	"github.com/slok/writeharness/errors"
	"github.com/slok/writeharness/metrics"
	"github.com/slok/writeharness/outcome"
	"github.com/slok/writeharness/stats"
	"github.com/slok/writeharness/throttle"
	"github.com/slok/writeharness/worker"
)

const defaultConcurrencyBudget = 96

// Config is the configuration of the Dispatcher.
type Config struct {
	// Store is the store where the writes are sent.
	Store writeharness.Store
	// Operations is the number of writes of the run.
	Operations int
	// Workers is the number of workers, by default the number of CPUs.
	Workers int
	// ConcurrencyBudget is the max number of in flight writes, split evenly
	// between the workers.
	ConcurrencyBudget int
	// QueueSize is the number of writes a worker can have queued.
	QueueSize int
	// Throttle overrides the throttle created from the concurrency budget,
	// it must have one entry per worker. The run closes it when the context
	// is cancelled, like the throttles it creates.
	Throttle *throttle.Set
	// Policy is the timeout policy of every write.
	Policy writeharness.WritePolicy
	// Namespace and Set are the location of the written keys.
	Namespace string
	Set       string
	// Bin is the value written on every key.
	Bin writeharness.Bin
	// RunID identifies the run on the logs and metrics, by default a random UUID.
	RunID string
	// Out is where the progress and the summary are printed.
	Out io.Writer
	// Logger is the logger of the dispatcher.
	Logger *zap.Logger
	// Recorder is the metrics recorder.
	Recorder metrics.Recorder
}

func (c *Config) defaults() {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
		if c.Throttle != nil {
			c.Workers = c.Throttle.Workers()
		}
	}

	if c.ConcurrencyBudget <= 0 {
		c.ConcurrencyBudget = defaultConcurrencyBudget
	}

	if c.Policy == (writeharness.WritePolicy{}) {
		c.Policy = writeharness.DefaultWritePolicy()
	}

	if c.Namespace == "" {
		c.Namespace = "test"
	}

	if c.Set == "" {
		c.Set = "testset"
	}

	if c.Bin == (writeharness.Bin{}) {
		c.Bin = writeharness.Bin{Name: "testbin", Value: "testvalue"}
	}

	if c.RunID == "" {
		c.RunID = uuid.NewString()
	}

	if c.Out == nil {
		c.Out = io.Discard
	}

	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	if c.Recorder == nil {
		c.Recorder = metrics.Dummy
	}
}

func (c Config) validate() error {
	if c.Store == nil {
		return fmt.Errorf("%w: store is required", errors.ErrInvalidConfig)
	}

	if c.Operations < 1 {
		return fmt.Errorf("%w: operations must be at least 1, got %d", errors.ErrInvalidConfig, c.Operations)
	}

	if c.Workers < 1 {
		return fmt.Errorf("%w: at least one worker is required", errors.ErrInvalidConfig)
	}

	if c.Throttle != nil {
		if c.Throttle.Workers() != c.Workers {
			return fmt.Errorf("%w: throttle has %d workers, want %d", errors.ErrInvalidConfig, c.Throttle.Workers(), c.Workers)
		}
		return nil
	}

	if throttle.CapacityPerWorker(c.ConcurrencyBudget, c.Workers) < 1 {
		return fmt.Errorf("%w: concurrency budget %d is lower than the %d workers", errors.ErrInvalidConfig, c.ConcurrencyBudget, c.Workers)
	}

	return nil
}

// Dispatcher sends the writes of a run to the store keeping every worker
// under its in flight limit and waits until all of them have finished.
type Dispatcher struct {
	cfg      Config
	capacity int
	state    atomic.Int32
	sampler  *stats.Sampler
	logger   *zap.Logger
	rec      metrics.Recorder
	out      io.Writer
	submit   func(pool *worker.Pool, w, seq int, job func()) error
}

func poolSubmit(pool *worker.Pool, w, _ int, job func()) error {
	return pool.Submit(w, job)
}

// New returns a new Dispatcher for a single run.
func New(cfg Config) (*Dispatcher, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	capacity := throttle.CapacityPerWorker(cfg.ConcurrencyBudget, cfg.Workers)
	if cfg.Throttle != nil {
		capacity = cfg.Throttle.Stats(0).Capacity
	}

	return &Dispatcher{
		cfg:      cfg,
		capacity: capacity,
		sampler:  stats.NewSampler(stats.SamplerConfig{}, cfg.Store),
		logger:   cfg.Logger.With(zap.String("run_id", cfg.RunID)),
		rec:      cfg.Recorder.WithID(cfg.RunID),
		out:      &syncWriter{w: cfg.Out},
		submit:   poolSubmit,
	}, nil
}

// State returns the current state of the run.
func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

func (d *Dispatcher) setState(s State) {
	d.state.Store(int32(s))
	d.logger.Debug("run state changed", zap.Stringer("state", s))
}

// Run sends all the writes and blocks until every one of them has finished,
// then returns the report of the run. Failed writes don't fail the run, they
// are counted on the report.
//
// Cancelling the context stops the submission, the writes not submitted yet
// are counted as failed.
func (d *Dispatcher) Run(ctx context.Context) (Report, error) {
	if !d.state.CompareAndSwap(int32(StateIdle), int32(StateSamplingBefore)) {
		return Report{}, errors.ErrRunStarted
	}
	ctx = metrics.WithRecorder(ctx, d.rec)

	fmt.Fprintf(d.out, "Loops=%d, Max Commands=%d\n", d.cfg.Workers, d.capacity)
	d.logger.Info("starting run",
		zap.Int("operations", d.cfg.Operations),
		zap.Int("workers", d.cfg.Workers),
		zap.Int("max_commands", d.capacity),
	)

	before := d.sample(ctx, "before")

	d.setState(StateDispatching)
	throttles := d.cfg.Throttle
	if throttles == nil {
		throttles = throttle.New(d.cfg.Workers, d.capacity)
	}
	pool := worker.New(worker.Config{Workers: d.cfg.Workers, QueueSize: d.cfg.QueueSize})
	r := &run{
		d:         d,
		pool:      pool,
		throttles: throttles,
		barrier:   barrier.New(d.cfg.Operations),
		progress:  progress{total: int64(d.cfg.Operations), out: d.out},
	}

	// Waiting for slots makes no sense once the run is cancelled.
	stop := context.AfterFunc(ctx, throttles.Close)
	defer stop()

	start := time.Now()
	for seq := 1; seq <= d.cfg.Operations; seq++ {
		r.dispatch(ctx, seq)
	}

	d.setState(StateDraining)
	r.barrier.Wait()
	elapsed := time.Since(start)

	if err := pool.Close(); err != nil {
		d.logger.Warn("could not stop the workers", zap.Error(err))
	}

	d.setState(StateSamplingAfter)
	after := d.sample(context.WithoutCancel(ctx), "after")

	d.setState(StateReporting)
	report := Report{
		RunID:       d.cfg.RunID,
		Operations:  d.cfg.Operations,
		Workers:     d.cfg.Workers,
		MaxCommands: d.capacity,
		Elapsed:     elapsed,
		Counts:      r.tally.Counts(),
		Connections: before.Delta(after),
	}
	if report.Connections.OpenedOK {
		d.rec.SetConnectionsChurn("opened", report.Connections.Opened)
	}
	if report.Connections.ClosedOK {
		d.rec.SetConnectionsChurn("closed", report.Connections.Closed)
	}

	if err := report.WriteSummary(d.out); err != nil {
		d.logger.Warn("could not write the summary", zap.Error(err))
	}
	d.logger.Info("run finished",
		zap.Duration("elapsed", elapsed),
		zap.Int64("success", report.Counts.Success),
		zap.Int64("failures", report.Counts.Failures()),
	)
	d.setState(StateDone)

	return report, nil
}

// sample reads the connection counters of the node, a failure only makes
// the counters unavailable.
func (d *Dispatcher) sample(ctx context.Context, when string) stats.Snapshot {
	snap, err := d.sampler.Snapshot(ctx)
	if err != nil {
		d.logger.Warn("could not sample node statistics", zap.String("when", when), zap.Error(err))
	}
	return snap
}

// run is the state of a single run.
type run struct {
	d         *Dispatcher
	pool      *worker.Pool
	throttles *throttle.Set
	barrier   *barrier.Barrier
	tally     outcome.Tally
	progress  progress
}

func (r *run) dispatch(ctx context.Context, seq int) {
	d := r.d
	w := r.pool.Next()

	start := time.Now()
	if !r.throttles.Acquire(w, 1) {
		r.complete(w, seq, false, errors.ErrThrottleClosed)
		return
	}
	d.rec.ObserveThrottleWait(w, start)
	d.rec.SetWorkerInflight(w, r.throttles.Inflight(w))

	key := writeharness.Key{Namespace: d.cfg.Namespace, Set: d.cfg.Set, Seq: seq}
	err := d.submit(r.pool, w, seq, func() {
		err := d.cfg.Store.Put(ctx, d.cfg.Policy, key, d.cfg.Bin)
		r.complete(w, seq, true, err)
	})
	if err != nil {
		// Never submitted, it finishes here so the run can still complete.
		d.rec.IncSubmitFailure()
		d.logger.Error("could not submit write", zap.Int("seq", seq), zap.Int("worker", w), zap.Error(err))
		r.complete(w, seq, true, err)
	}
}

// complete is called once per write when it finishes, from any goroutine.
func (r *run) complete(w, seq int, acquired bool, err error) {
	d := r.d
	if acquired {
		r.throttles.Release(w, 1)
		d.rec.SetWorkerInflight(w, r.throttles.Inflight(w))
	}

	cat := outcome.Classify(err)
	if cat == outcome.OtherError {
		d.logger.Warn("write failed", zap.Int("seq", seq), zap.Error(err))
	}

	total := r.tally.Record(cat)
	d.rec.IncOutcome(string(cat))
	r.progress.report(total)
	r.barrier.Notify()
}

// progress prints a line every time the finished writes cross a tenth of the total.
type progress struct {
	total int64
	out   io.Writer
}

func (p progress) report(current int64) {
	if current*10/p.total == (current-1)*10/p.total {
		return
	}
	fmt.Fprintf(p.out, "%d of %d records written\n", current, p.total)
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
