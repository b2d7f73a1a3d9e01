package throttle

import (
	"sync"
)

// Stats is a point in time view of a worker slots.
type Stats struct {
	// Capacity is the configured number of slots.
	Capacity int
	// Available is the number of slots that can be acquired right now.
	Available int
	// Inflight is the number of acquired slots not released yet.
	Inflight int
	// Acquired is the number of slots acquired since creation.
	Acquired int
	// Released is the number of slots released since creation.
	Released int
	// Waits is the number of acquires that had to wait for a release.
	Waits int
}

// Set holds the slots of every worker. Each worker has its own lock so
// workers don't contend between them.
type Set struct {
	slots []*slot
}

type slot struct {
	mu        sync.Mutex
	cond      *sync.Cond
	capacity  int
	available int
	inflight  int
	acquired  int
	released  int
	waits     int
	closed    bool
}

// New returns a new Set with capacity slots for each of the workers.
func New(workers, capacity int) *Set {
	if capacity < 0 {
		capacity = 0
	}

	s := &Set{slots: make([]*slot, workers)}
	for i := range s.slots {
		sl := &slot{capacity: capacity, available: capacity}
		sl.cond = sync.NewCond(&sl.mu)
		s.slots[i] = sl
	}

	return s
}

// CapacityPerWorker splits a global concurrency budget between the workers,
// the remainder is not used.
func CapacityPerWorker(budget, workers int) int {
	if workers <= 0 || budget <= 0 {
		return 0
	}
	return budget / workers
}

// Workers returns the number of workers of the set.
func (s *Set) Workers() int {
	return len(s.slots)
}

// Acquire reserves n slots of the worker, it blocks until they are available.
// It returns false only if the set has been closed.
func (s *Set) Acquire(worker, n int) bool {
	sl := s.slots[worker]

	sl.mu.Lock()
	defer sl.mu.Unlock()

	waited := false
	for !sl.closed && sl.available < n {
		if !waited {
			sl.waits++
			waited = true
		}
		sl.cond.Wait()
	}

	if sl.closed {
		return false
	}

	sl.available -= n
	sl.inflight += n
	sl.acquired += n
	return true
}

// Release returns n slots to the worker, it never blocks.
//
// Every successful Acquire must be followed by exactly one Release of the same
// slots. Releasing slots that were not acquired adds capacity to the worker.
func (s *Set) Release(worker, n int) {
	sl := s.slots[worker]

	sl.mu.Lock()
	sl.available += n
	sl.released += n
	sl.inflight -= n
	if sl.inflight < 0 {
		sl.inflight = 0
	}
	sl.mu.Unlock()

	sl.cond.Broadcast()
}

// Close unblocks all the waiting acquires, from now on Acquire returns false.
func (s *Set) Close() {
	for _, sl := range s.slots {
		sl.mu.Lock()
		sl.closed = true
		sl.mu.Unlock()
		sl.cond.Broadcast()
	}
}

// Stats returns the stats of the worker slots.
func (s *Set) Stats(worker int) Stats {
	sl := s.slots[worker]

	sl.mu.Lock()
	defer sl.mu.Unlock()
	return Stats{
		Capacity:  sl.capacity,
		Available: sl.available,
		Inflight:  sl.inflight,
		Acquired:  sl.acquired,
		Released:  sl.released,
		Waits:     sl.waits,
	}
}

// Inflight returns the acquired and not released slots of the worker.
func (s *Set) Inflight(worker int) int {
	return s.Stats(worker).Inflight
}
