package outcome

import (
	"sync/atomic"

	"github.com/slok/writeharness/errors"
)

// Category is the kind of terminal outcome of a write.
type Category string

const (
	// Success is a write acknowledged by the store.
	Success Category = "success"
	// ConnectionError is a failure that makes the client tear down the connection
	// because the node is not reachable.
	ConnectionError Category = "connection_error"
	// TimeoutError is a failure due to the deadline being exceeded before the node
	// replied, the connection will be torn down.
	TimeoutError Category = "timeout_error"
	// MaxErrorRate is a rejection due to the store circuit breaker, the connection
	// is kept open, it's a rate limit and not a connectivity failure.
	MaxErrorRate Category = "max_error_rate"
	// NodeUnavailable is a failure due to no node being eligible to route the write.
	NodeUnavailable Category = "node_unavailable"
	// OtherError is every failure not covered by the other categories.
	OtherError Category = "other_error"
)

// Categories are all the categories in report order.
var Categories = []Category{Success, ConnectionError, TimeoutError, MaxErrorRate, NodeUnavailable, OtherError}

// Classify maps the result of a write to its category. A nil error is a
// success, errors without result code are other errors.
func Classify(err error) Category {
	if err == nil {
		return Success
	}

	code, _ := errors.ResultCodeOf(err)
	switch code {
	case errors.ResultServerNotAvailable:
		return ConnectionError
	case errors.ResultTimeout:
		return TimeoutError
	case errors.ResultMaxErrorRate:
		return MaxErrorRate
	case errors.ResultInvalidNode:
		return NodeUnavailable
	default:
		return OtherError
	}
}

// Counts is a point in time copy of a Tally.
type Counts struct {
	Success         int64
	ConnectionError int64
	TimeoutError    int64
	MaxErrorRate    int64
	NodeUnavailable int64
	OtherError      int64
}

// Sum returns the total of outcomes.
func (c Counts) Sum() int64 {
	return c.Success + c.ConnectionError + c.TimeoutError + c.MaxErrorRate + c.NodeUnavailable + c.OtherError
}

// Failures returns the total of failed outcomes.
func (c Counts) Failures() int64 {
	return c.Sum() - c.Success
}

// Get returns the count of a category.
func (c Counts) Get(cat Category) int64 {
	switch cat {
	case Success:
		return c.Success
	case ConnectionError:
		return c.ConnectionError
	case TimeoutError:
		return c.TimeoutError
	case MaxErrorRate:
		return c.MaxErrorRate
	case NodeUnavailable:
		return c.NodeUnavailable
	}
	return c.OtherError
}

// Tally counts outcomes, safe for concurrent use. The zero value is ready to use.
type Tally struct {
	success         atomic.Int64
	connectionError atomic.Int64
	timeoutError    atomic.Int64
	maxErrorRate    atomic.Int64
	nodeUnavailable atomic.Int64
	otherError      atomic.Int64
	total           atomic.Int64
}

// Record counts one outcome and returns the running total after counting it.
// Every returned total is unique for the Tally.
func (t *Tally) Record(cat Category) int64 {
	t.counter(cat).Add(1)
	return t.total.Add(1)
}

// Total returns the running total.
func (t *Tally) Total() int64 {
	return t.total.Load()
}

// Counts returns a copy of the current counts.
func (t *Tally) Counts() Counts {
	return Counts{
		Success:         t.success.Load(),
		ConnectionError: t.connectionError.Load(),
		TimeoutError:    t.timeoutError.Load(),
		MaxErrorRate:    t.maxErrorRate.Load(),
		NodeUnavailable: t.nodeUnavailable.Load(),
		OtherError:      t.otherError.Load(),
	}
}

func (t *Tally) counter(cat Category) *atomic.Int64 {
	switch cat {
	case Success:
		return &t.success
	case ConnectionError:
		return &t.connectionError
	case TimeoutError:
		return &t.timeoutError
	case MaxErrorRate:
		return &t.maxErrorRate
	case NodeUnavailable:
		return &t.nodeUnavailable
	}
	return &t.otherError
}
