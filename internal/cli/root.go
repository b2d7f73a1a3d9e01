package cli

import (
	"context"
	goerrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/slok/writeharness"
	"github.com/slok/writeharness/chaos"
	"github.com/slok/writeharness/circuitbreaker"
	"github.com/slok/writeharness/dispatch"
	"github.com/slok/writeharness/errors"
	"github.com/slok/writeharness/internal/logging"
	"github.com/slok/writeharness/metrics"
	"github.com/slok/writeharness/store/aerospike"
	"github.com/slok/writeharness/store/memory"
	"github.com/slok/writeharness/timeout"
)

const envPrefix = "WRITEHARNESS"

// Run executes the command line and returns the exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand(stdout)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case goerrors.Is(err, errors.ErrInvalidConfig):
		fmt.Fprint(stdout, usage)
	default:
		fmt.Fprintf(stderr, "error: %s\n", err)
	}
	return 1
}

// NewRootCommand returns the command that runs the writes. Flags can also be
// set with WRITEHARNESS_ prefixed environment variables.
func NewRootCommand(stdout io.Writer) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "writeharness HOST:PORT MAX_ERROR_RATE WRITE_OPS",
		Short:         "Send throttled async writes to a cluster and report how they ended.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(_ *cobra.Command, args []string) error {
			_, err := ParseArgs(args)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ParseArgs(args)
			if err != nil {
				return err
			}
			return run(cmd.Context(), loadOptions(v), a, stdout)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return pkgerrors.Wrap(errors.ErrInvalidConfig, err.Error())
	})

	flags := cmd.Flags()
	flags.Int("workers", 0, "Number of workers, by default the number of CPUs.")
	flags.Int("budget", 96, "Max in flight writes, split evenly between the workers.")
	flags.Int("queue-size", 64, "Writes that can be queued on each worker.")
	flags.String("namespace", "test", "Namespace of the written keys.")
	flags.String("set", "testset", "Set of the written keys.")
	flags.String("bin", "testbin", "Bin name of the written records.")
	flags.String("value", "testvalue", "Bin value of the written records.")
	flags.Duration("connect-timeout", 100*time.Millisecond, "Timeout to open connections to the cluster nodes.")
	flags.Duration("socket-timeout", 10*time.Millisecond, "Socket timeout of every write.")
	flags.String("log-level", "info", "Log level: debug, info, warn or error.")
	flags.String("metrics-addr", "", "Address where the Prometheus metrics are served, disabled when empty.")
	flags.Bool("simulate", false, "Write to an in memory simulated node instead of the cluster.")
	flags.Duration("sim-latency", 0, "Latency of the simulated node.")
	flags.Int("chaos-error-percent", 0, "Percent of simulated writes that fail.")
	flags.Int("chaos-result-code", int(errors.ResultServerNotAvailable), "Result code of the simulated failures.")
	flags.Duration("chaos-latency", 0, "Extra latency added to the simulated writes.")
	_ = v.BindPFlags(flags)

	return cmd
}

type options struct {
	workers           int
	budget            int
	queueSize         int
	namespace         string
	set               string
	bin               string
	value             string
	connectTimeout    time.Duration
	socketTimeout     time.Duration
	logLevel          string
	metricsAddr       string
	simulate          bool
	simLatency        time.Duration
	chaosErrorPercent int
	chaosResultCode   int
	chaosLatency      time.Duration
}

func loadOptions(v *viper.Viper) options {
	return options{
		workers:           v.GetInt("workers"),
		budget:            v.GetInt("budget"),
		queueSize:         v.GetInt("queue-size"),
		namespace:         v.GetString("namespace"),
		set:               v.GetString("set"),
		bin:               v.GetString("bin"),
		value:             v.GetString("value"),
		connectTimeout:    v.GetDuration("connect-timeout"),
		socketTimeout:     v.GetDuration("socket-timeout"),
		logLevel:          v.GetString("log-level"),
		metricsAddr:       v.GetString("metrics-addr"),
		simulate:          v.GetBool("simulate"),
		simLatency:        v.GetDuration("sim-latency"),
		chaosErrorPercent: v.GetInt("chaos-error-percent"),
		chaosResultCode:   v.GetInt("chaos-result-code"),
		chaosLatency:      v.GetDuration("chaos-latency"),
	}
}

func run(ctx context.Context, opts options, args Args, stdout io.Writer) error {
	logger, err := logging.New(opts.logLevel)
	if err != nil {
		return pkgerrors.Wrap(errors.ErrInvalidConfig, err.Error())
	}
	defer func() { _ = logger.Sync() }()

	reg := prometheus.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)
	if opts.metricsAddr != "" {
		stop := serveMetrics(opts.metricsAddr, reg, logger)
		defer stop()
	}

	runID := uuid.NewString()
	store, closeStore, err := newStore(opts, args, runID, rec, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	d, err := dispatch.New(dispatch.Config{
		Store:             store,
		Operations:        args.Operations,
		Workers:           opts.workers,
		ConcurrencyBudget: opts.budget,
		QueueSize:         opts.queueSize,
		Policy: writeharness.WritePolicy{
			SocketTimeout: opts.socketTimeout,
		},
		Namespace: opts.namespace,
		Set:       opts.set,
		Bin:       writeharness.Bin{Name: opts.bin, Value: opts.value},
		RunID:     runID,
		Out:       stdout,
		Logger:    logger,
		Recorder:  rec,
	})
	if err != nil {
		return err
	}

	_, err = d.Run(ctx)
	return err
}

// newStore returns the store of the run, the simulated one wraps a memory
// node with the same protections the cluster client has.
func newStore(opts options, args Args, runID string, rec metrics.Recorder, logger *zap.Logger) (writeharness.Store, func(), error) {
	measured := metrics.NewMeasuredMiddleware(runID, rec)

	if !opts.simulate {
		st, err := aerospike.New(aerospike.Config{
			Hosts:          args.Hosts,
			MaxErrorRate:   args.MaxErrorRate,
			ConnectTimeout: opts.connectTimeout,
			Logger:         logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return writeharness.StoreChain(st, measured), st.Close, nil
	}

	inj := &chaos.Injector{}
	inj.SetLatency(opts.chaosLatency)
	inj.SetResultCode(errors.ResultCode(opts.chaosResultCode))
	if err := inj.SetErrorPercent(opts.chaosErrorPercent); err != nil {
		return nil, nil, pkgerrors.Wrap(errors.ErrInvalidConfig, err.Error())
	}

	logger.Info("using a simulated node", zap.Duration("latency", opts.simLatency), zap.Int("chaos_error_percent", opts.chaosErrorPercent))
	st := writeharness.StoreChain(memory.New(memory.Config{Latency: opts.simLatency}),
		measured,
		circuitbreaker.NewMiddleware(circuitbreaker.Config{MaxErrorRate: args.MaxErrorRate}),
		timeout.NewMiddleware(timeout.Config{}),
		chaos.NewMiddleware(chaos.Config{Injector: inj}),
	)
	return st, func() {}, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !goerrors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
