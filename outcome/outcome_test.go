package outcome_test

import (
	goerrors "errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/writeharness/errors"
	"github.com/slok/writeharness/outcome"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expCat outcome.Category
	}{
		{
			name:   "No error should be a success.",
			err:    nil,
			expCat: outcome.Success,
		},
		{
			name:   "Server not available should be a connection error.",
			err:    errors.NewStoreError(errors.ResultServerNotAvailable, ""),
			expCat: outcome.ConnectionError,
		},
		{
			name:   "Timeout should be a timeout error.",
			err:    errors.NewStoreError(errors.ResultTimeout, ""),
			expCat: outcome.TimeoutError,
		},
		{
			name:   "Max error rate should be a max error rate error.",
			err:    errors.NewStoreError(errors.ResultMaxErrorRate, ""),
			expCat: outcome.MaxErrorRate,
		},
		{
			name:   "Invalid node should be a node unavailable error.",
			err:    errors.NewStoreError(errors.ResultInvalidNode, ""),
			expCat: outcome.NodeUnavailable,
		},
		{
			name:   "A wrapped known code should be classified by its code.",
			err:    fmt.Errorf("write 42: %w", errors.NewStoreError(errors.ResultTimeout, "")),
			expCat: outcome.TimeoutError,
		},
		{
			name:   "An unknown result code should be other error.",
			err:    errors.NewStoreError(errors.ResultCode(1234), ""),
			expCat: outcome.OtherError,
		},
		{
			name:   "A parameter error should be other error.",
			err:    errors.NewStoreError(errors.ResultParameterError, ""),
			expCat: outcome.OtherError,
		},
		{
			name:   "An error without result code should be other error.",
			err:    goerrors.New("wanted error"),
			expCat: outcome.OtherError,
		},
		{
			name:   "A closed throttle should be other error.",
			err:    errors.ErrThrottleClosed,
			expCat: outcome.OtherError,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert := assert.New(t)

			// Classification must be deterministic.
			for i := 0; i < 10; i++ {
				assert.Equal(test.expCat, outcome.Classify(test.err))
			}
		})
	}
}

func TestTallyConcurrentRecords(t *testing.T) {
	assert := assert.New(t)

	const goroutines = 50
	const perGoroutine = 200

	tally := &outcome.Tally{}
	totals := make(chan int64, goroutines*perGoroutine)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				cat := outcome.Categories[(g+i)%len(outcome.Categories)]
				totals <- tally.Record(cat)
			}
		}(g)
	}
	wg.Wait()
	close(totals)

	// Every running total should be returned once.
	seen := map[int64]bool{}
	for total := range totals {
		assert.False(seen[total], "total %d returned twice", total)
		seen[total] = true
	}

	counts := tally.Counts()
	assert.Equal(int64(goroutines*perGoroutine), tally.Total())
	assert.Equal(tally.Total(), counts.Sum())
	assert.Len(seen, goroutines*perGoroutine)
	for _, cat := range outcome.Categories {
		assert.NotZero(counts.Get(cat))
	}
}

func TestCountsFailures(t *testing.T) {
	c := outcome.Counts{Success: 5, ConnectionError: 1, TimeoutError: 2, MaxErrorRate: 3, NodeUnavailable: 4, OtherError: 6}
	assert.Equal(t, int64(21), c.Sum())
	assert.Equal(t, int64(16), c.Failures())
}
