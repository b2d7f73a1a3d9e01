package dispatch

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/slok/writeharness/outcome"
	"github.com/slok/writeharness/stats"
)

// State is the phase of a run.
type State int32

const (
	StateIdle State = iota
	StateSamplingBefore
	StateDispatching
	StateDraining
	StateSamplingAfter
	StateReporting
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSamplingBefore:
		return "sampling_before"
	case StateDispatching:
		return "dispatching"
	case StateDraining:
		return "draining"
	case StateSamplingAfter:
		return "sampling_after"
	case StateReporting:
		return "reporting"
	case StateDone:
		return "done"
	}
	return "unknown"
}

// Report is the result of a run.
type Report struct {
	RunID       string
	Operations  int
	Workers     int
	MaxCommands int
	Elapsed     time.Duration
	Counts      outcome.Counts
	Connections stats.Delta
}

// WriteSummary writes the human readable summary of the run.
func (r Report) WriteSummary(w io.Writer) error {
	secs := float64(r.Elapsed.Milliseconds()) / 1000

	var b bytes.Buffer
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "Run time:                 %s seconds\n", strconv.FormatFloat(secs, 'f', -1, 64))
	fmt.Fprintf(&b, "Successful writes:        %d\n", r.Counts.Success)
	fmt.Fprintf(&b, "Connection errors:        %d\n", r.Counts.ConnectionError)
	fmt.Fprintf(&b, "Timeout errors:           %d\n", r.Counts.TimeoutError)
	fmt.Fprintf(&b, "Max errors exceeded:      %d\n", r.Counts.MaxErrorRate)
	fmt.Fprintf(&b, "Node unavailable errors:  %d\n", r.Counts.NodeUnavailable)
	fmt.Fprintf(&b, "Other errors:             %d\n", r.Counts.OtherError)
	fmt.Fprintf(&b, "Connections opened:       %s\n", churn(r.Connections.Opened, r.Connections.OpenedOK))
	fmt.Fprintf(&b, "Connections closed:       %s\n", churn(r.Connections.Closed, r.Connections.ClosedOK))

	_, err := w.Write(b.Bytes())
	return err
}

func churn(delta int, ok bool) string {
	if !ok {
		return "unavailable"
	}
	return strconv.Itoa(delta)
}
