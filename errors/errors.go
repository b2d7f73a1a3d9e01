package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout will be used when a write does not get a reply before its deadline.
	ErrTimeout = errors.New("timeout while writing")
	// ErrThrottleClosed will be used when a write has not been submitted because
	// the throttle was closed while waiting for a slot.
	ErrThrottleClosed = errors.New("throttle closed, write not submitted")
	// ErrPoolClosed will be used when a write is submitted to a stopped worker pool.
	ErrPoolClosed = errors.New("worker pool closed, write not submitted")
	// ErrUnknownWorker will be used when a write is submitted to a worker that
	// is not part of the pool.
	ErrUnknownWorker = errors.New("unknown worker")
	// ErrStatNotFound will be used when a statistic is missing on the statistics line.
	ErrStatNotFound = errors.New("stat not found")
	// ErrFailureInjected will be used when the chaos store injects a failure.
	ErrFailureInjected = errors.New("failure injected on purpose")
	// ErrRunStarted will be used when a dispatcher is run more than once.
	ErrRunStarted = errors.New("run already started")
	// ErrInvalidConfig will be used when a run can't start due to a wrong configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ResultCode is the discrete result of an operation on the remote store.
type ResultCode int

// The values match the ones used by the Aerospike clients.
const (
	ResultOK                 ResultCode = 0
	ResultServerError        ResultCode = 1
	ResultParameterError     ResultCode = 4
	ResultTimeout            ResultCode = 9
	ResultInvalidNode        ResultCode = -3
	ResultServerNotAvailable ResultCode = -8
	ResultMaxErrorRate       ResultCode = -12
)

func (r ResultCode) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultServerError:
		return "SERVER_ERROR"
	case ResultParameterError:
		return "PARAMETER_ERROR"
	case ResultTimeout:
		return "TIMEOUT"
	case ResultInvalidNode:
		return "INVALID_NODE_ERROR"
	case ResultServerNotAvailable:
		return "SERVER_NOT_AVAILABLE"
	case ResultMaxErrorRate:
		return "MAX_ERROR_RATE"
	}
	return fmt.Sprintf("RESULT_CODE(%d)", int(r))
}

// StoreError is a failure of the remote store carrying its result code.
type StoreError struct {
	Code ResultCode
	Msg  string
	Err  error
}

// NewStoreError returns a new StoreError.
func NewStoreError(code ResultCode, msg string) *StoreError {
	return &StoreError{Code: code, Msg: msg}
}

// WrapStoreError returns a new StoreError with err as its cause.
func WrapStoreError(code ResultCode, err error) *StoreError {
	return &StoreError{Code: code, Err: err}
}

func (e *StoreError) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		return fmt.Sprintf("result code %s", e.Code)
	}
	return fmt.Sprintf("result code %s: %s", e.Code, msg)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ResultCodeOf returns the result code carried by err, if any.
func ResultCodeOf(err error) (ResultCode, bool) {
	var serr *StoreError
	if !errors.As(err, &serr) {
		return ResultOK, false
	}
	return serr.Code, true
}
