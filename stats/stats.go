package stats

import (
	"context"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	pkgerrors "github.com/pkg/errors"

	"github.com/slok/writeharness/errors"
)

const (
	// StatisticsCommand is the info command that returns the node statistics.
	StatisticsCommand = "statistics"
	// ConnectionsOpened is the number of client connections opened by the node.
	ConnectionsOpened = "client_connections_opened"
	// ConnectionsClosed is the number of client connections closed by the node.
	ConnectionsClosed = "client_connections_closed"
)

// Querier knows how to run info commands on a store node.
type Querier interface {
	Info(ctx context.Context, command string) (string, error)
}

// SamplerConfig is the configuration of the Sampler.
type SamplerConfig struct {
	// Command is the info command that returns the statistics line.
	Command string
}

func (c *SamplerConfig) defaults() {
	if c.Command == "" {
		c.Command = StatisticsCommand
	}
}

// Sampler reads integer statistics from the `key=value;key=value` line of a
// store node.
type Sampler struct {
	cfg     SamplerConfig
	querier Querier
}

// NewSampler returns a new Sampler.
func NewSampler(cfg SamplerConfig, q Querier) *Sampler {
	cfg.defaults()
	return &Sampler{cfg: cfg, querier: q}
}

// Sample returns the current value of the metric.
func (s *Sampler) Sample(ctx context.Context, metric string) (int, error) {
	line, err := s.querier.Info(ctx, s.cfg.Command)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "could not get %q info", s.cfg.Command)
	}
	return Parse(line, metric)
}

// Snapshot samples the connection metrics. Both metrics are read from the same
// statistics line, the metrics that could not be read are marked as not
// available on the snapshot and the error combines all the failures.
func (s *Sampler) Snapshot(ctx context.Context) (Snapshot, error) {
	line, err := s.querier.Info(ctx, s.cfg.Command)
	if err != nil {
		return Snapshot{}, pkgerrors.Wrapf(err, "could not get %q info", s.cfg.Command)
	}

	var snap Snapshot
	var result *multierror.Error

	opened, err := Parse(line, ConnectionsOpened)
	if err != nil {
		result = multierror.Append(result, err)
	} else {
		snap.Opened, snap.OpenedOK = opened, true
	}

	closed, err := Parse(line, ConnectionsClosed)
	if err != nil {
		result = multierror.Append(result, err)
	} else {
		snap.Closed, snap.ClosedOK = closed, true
	}

	return snap, result.ErrorOrNil()
}

// Parse returns the integer value of the metric in a statistics line.
func Parse(line, metric string) (int, error) {
	for _, kv := range strings.Split(line, ";") {
		k, v, _ := strings.Cut(kv, "=")
		if strings.TrimSpace(k) != metric {
			continue
		}

		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, pkgerrors.Wrapf(err, "invalid value for stat %s", metric)
		}
		return n, nil
	}

	return 0, pkgerrors.Wrap(errors.ErrStatNotFound, metric)
}

// Snapshot are the connection counters of a node at a point in time.
type Snapshot struct {
	Opened   int
	OpenedOK bool
	Closed   int
	ClosedOK bool
}

// Delta returns the change of the counters between s and after. A metric is
// only available if it was available on both snapshots.
func (s Snapshot) Delta(after Snapshot) Delta {
	d := Delta{
		OpenedOK: s.OpenedOK && after.OpenedOK,
		ClosedOK: s.ClosedOK && after.ClosedOK,
	}
	if d.OpenedOK {
		d.Opened = after.Opened - s.Opened
	}
	if d.ClosedOK {
		d.Closed = after.Closed - s.Closed
	}
	return d
}

// Delta is the connection churn between two snapshots.
type Delta struct {
	Opened   int
	OpenedOK bool
	Closed   int
	ClosedOK bool
}
