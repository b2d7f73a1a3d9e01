package cli

import (
	"strconv"

	pkgerrors "github.com/pkg/errors"

	"github.com/slok/writeharness/errors"
	"github.com/slok/writeharness/store/aerospike"
)

const usage = `Arguments: HOST:PORT  MAX_ERROR_RATE WRITE_OPS
Example: 172.17.0.2:3000 5 10000
`

// Args are the positional arguments of a run.
type Args struct {
	Hosts        []aerospike.Host
	MaxErrorRate int
	Operations   int
}

// ParseArgs parses the `HOST:PORT MAX_ERROR_RATE WRITE_OPS` arguments.
func ParseArgs(args []string) (Args, error) {
	if len(args) != 3 {
		return Args{}, pkgerrors.Wrapf(errors.ErrInvalidConfig, "got %d arguments, want 3", len(args))
	}

	hosts, err := aerospike.ParseHosts(args[0], aerospike.DefaultPort)
	if err != nil {
		return Args{}, pkgerrors.Wrap(errors.ErrInvalidConfig, err.Error())
	}

	maxErrorRate, err := strconv.Atoi(args[1])
	if err != nil || maxErrorRate < 0 {
		return Args{}, pkgerrors.Wrapf(errors.ErrInvalidConfig, "invalid max error rate %q", args[1])
	}

	ops, err := strconv.Atoi(args[2])
	if err != nil || ops < 1 {
		return Args{}, pkgerrors.Wrapf(errors.ErrInvalidConfig, "invalid write ops %q", args[2])
	}

	return Args{
		Hosts:        hosts,
		MaxErrorRate: maxErrorRate,
		Operations:   ops,
	}, nil
}
