package aerospike

import (
	"context"
	goerrors "errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	as "github.com/aerospike/aerospike-client-go/v7"
	"github.com/aerospike/aerospike-client-go/v7/types"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/slok/writeharness"
	"github.com/slok/writeharness/errors"
)

// DefaultPort is the service port of the nodes.
const DefaultPort = 3000

// Host is a seed node of the cluster.
type Host struct {
	Name string
	Port int
}

func (h Host) String() string {
	return net.JoinHostPort(h.Name, strconv.Itoa(h.Port))
}

// ParseHosts parses a comma separated list of `host[:port]` seeds, the hosts
// without port use the default port.
func ParseHosts(s string, defaultPort int) ([]Host, error) {
	var hosts []Host
	for _, raw := range strings.Split(s, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		name, port := raw, defaultPort
		if strings.Contains(raw, ":") {
			h, p, err := net.SplitHostPort(raw)
			if err != nil {
				return nil, pkgerrors.Wrapf(err, "invalid host %q", raw)
			}
			port, err = strconv.Atoi(p)
			if err != nil || port <= 0 || port > 65535 {
				return nil, fmt.Errorf("invalid port on host %q", raw)
			}
			name = h
		}
		if name == "" {
			return nil, fmt.Errorf("missing host name on %q", raw)
		}

		hosts = append(hosts, Host{Name: name, Port: port})
	}

	if len(hosts) == 0 {
		return nil, fmt.Errorf("no hosts on %q", s)
	}

	return hosts, nil
}

// Config is the configuration of the Aerospike Store.
type Config struct {
	// Hosts are the seed nodes of the cluster.
	Hosts []Host
	// MaxErrorRate is the max number of errors per ErrorRateWindow before
	// the client rejects commands to a node. 0 disables the limit.
	MaxErrorRate int
	// ErrorRateWindow is the number of tend intervals of the error rate window.
	ErrorRateWindow int
	// ConnectionQueueSize is the max connections per node.
	ConnectionQueueSize int
	// ConnectTimeout is the timeout to open connections to the nodes.
	ConnectTimeout time.Duration
	// Logger is the logger of the store.
	Logger *zap.Logger
}

func (c *Config) defaults() {
	if c.ErrorRateWindow <= 0 {
		c.ErrorRateWindow = 1
	}

	if c.ConnectionQueueSize <= 0 {
		c.ConnectionQueueSize = 100
	}

	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 1 * time.Second
	}

	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// Store is a writeharness.Store backed by an Aerospike cluster.
type Store struct {
	cfg    Config
	client *as.Client
}

// New connects to the cluster and returns a new Store.
func New(cfg Config) (*Store, error) {
	cfg.defaults()
	if len(cfg.Hosts) == 0 {
		return nil, fmt.Errorf("%w: at least one host is required", errors.ErrInvalidConfig)
	}

	policy := as.NewClientPolicy()
	policy.MaxErrorRate = cfg.MaxErrorRate
	policy.ErrorRateWindow = cfg.ErrorRateWindow
	policy.ConnectionQueueSize = cfg.ConnectionQueueSize
	policy.Timeout = cfg.ConnectTimeout

	hosts := make([]*as.Host, 0, len(cfg.Hosts))
	for _, h := range cfg.Hosts {
		hosts = append(hosts, as.NewHost(h.Name, h.Port))
	}

	client, err := as.NewClientWithPolicyAndHost(policy, hosts...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "could not connect to the cluster")
	}

	cfg.Logger.Info("connected to the cluster",
		zap.Stringers("hosts", cfg.Hosts),
		zap.Int("nodes", len(client.GetNodes())),
		zap.Int("max_error_rate", cfg.MaxErrorRate),
	)

	return &Store{cfg: cfg, client: client}, nil
}

// Put satisfies writeharness.Store interface. The write is not retried.
func (s *Store) Put(ctx context.Context, policy writeharness.WritePolicy, key writeharness.Key, bin writeharness.Bin) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	wp := as.NewWritePolicy(0, 0)
	wp.SocketTimeout = policy.SocketTimeout
	wp.TotalTimeout = policy.TotalTimeout
	wp.MaxRetries = 0

	k, kerr := as.NewKey(key.Namespace, key.Set, key.Seq)
	if kerr != nil {
		return errors.WrapStoreError(errors.ResultParameterError, kerr)
	}

	if perr := s.client.PutBins(wp, k, as.NewBin(bin.Name, bin.Value)); perr != nil {
		return errors.WrapStoreError(resultCode(perr), perr)
	}

	return nil
}

// Info satisfies writeharness.Store interface. The command is sent to the
// first node of the cluster.
func (s *Store) Info(_ context.Context, command string) (string, error) {
	nodes := s.client.GetNodes()
	if len(nodes) == 0 {
		return "", errors.NewStoreError(errors.ResultInvalidNode, "no nodes available")
	}

	res, err := nodes[0].RequestInfo(as.NewInfoPolicy(), command)
	if err != nil {
		return "", errors.WrapStoreError(resultCode(err), err)
	}

	return res[command], nil
}

// Close closes the connections to the cluster.
func (s *Store) Close() {
	s.client.Close()
}

func resultCode(err as.Error) errors.ResultCode {
	switch {
	case err.Matches(types.SERVER_NOT_AVAILABLE):
		return errors.ResultServerNotAvailable
	case err.Matches(types.TIMEOUT):
		return errors.ResultTimeout
	case err.Matches(types.MAX_ERROR_RATE):
		return errors.ResultMaxErrorRate
	case err.Matches(types.INVALID_NODE_ERROR):
		return errors.ResultInvalidNode
	}

	var aerr *as.AerospikeError
	if goerrors.As(err, &aerr) {
		return errors.ResultCode(aerr.ResultCode)
	}
	return errors.ResultServerError
}
