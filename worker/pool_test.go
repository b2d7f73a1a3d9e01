package worker_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/writeharness/errors"
	"github.com/slok/writeharness/worker"
)

func TestPoolNextRoundRobin(t *testing.T) {
	assert := assert.New(t)

	p := worker.New(worker.Config{Workers: 3})
	defer p.Close()

	got := []int{}
	for i := 0; i < 7; i++ {
		got = append(got, p.Next())
	}

	assert.Equal(3, p.Size())
	assert.Equal([]int{0, 1, 2, 0, 1, 2, 0}, got)
}

func TestPoolExecutesAllSubmittedJobs(t *testing.T) {
	require := require.New(t)

	const jobs = 1000

	p := worker.New(worker.Config{Workers: 4, QueueSize: 1})
	var executed atomic.Int64
	for i := 0; i < jobs; i++ {
		err := p.Submit(p.Next(), func() { executed.Add(1) })
		require.NoError(err)
	}

	// Close should wait for the queued and running jobs.
	require.NoError(p.Close())
	require.Equal(int64(jobs), executed.Load())
}

func TestPoolWorkerRunsJobsConcurrently(t *testing.T) {
	assert := assert.New(t)

	p := worker.New(worker.Config{Workers: 1})
	defer p.Close()

	// If the worker executed the jobs one by one the second job would never start.
	var wg sync.WaitGroup
	wg.Add(2)
	release := make(chan struct{})
	for i := 0; i < 2; i++ {
		err := p.Submit(0, func() {
			wg.Done()
			<-release
		})
		assert.NoError(err)
	}

	started := make(chan struct{})
	go func() {
		wg.Wait()
		close(started)
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		assert.FailNow("both jobs should be running at the same time")
	}
	close(release)
}

func TestPoolSubmitErrors(t *testing.T) {
	assert := assert.New(t)

	p := worker.New(worker.Config{Workers: 2})

	err := p.Submit(2, func() {})
	assert.ErrorIs(err, errors.ErrUnknownWorker)

	assert.NoError(p.Close())
	err = p.Submit(0, func() {})
	assert.ErrorIs(err, errors.ErrPoolClosed)

	// Closing twice should be safe.
	assert.NoError(p.Close())
}
