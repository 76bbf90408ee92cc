package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/falcon-client/pkg/client"
	"github.com/Sternrassler/falcon-client/pkg/config"
	"github.com/Sternrassler/falcon-client/pkg/falcon"
	"github.com/Sternrassler/falcon-client/pkg/logging"
	"github.com/Sternrassler/falcon-client/pkg/metrics"
)

// app is the state shared by all commands of one invocation.
type app struct {
	configFile  string
	envFile     string
	metricsAddr string
	logLevel    string
	concurrency int

	// transport replaces the HTTP transport; tests point it at a mock.
	transport http.RoundTripper

	client  *client.Client
	closeFn func() error
	stop    context.CancelFunc
	metrics *http.Server
	logger  zerolog.Logger

	metricsListener net.Addr
}

// execute runs the CLI with args and releases everything it started, also
// when the command fails.
func execute(ctx context.Context, transport http.RoundTripper, out io.Writer, args []string) error {
	root, a := newRootCommand(transport)
	root.SetOut(out)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if cerr := a.shutdown(); err == nil {
		err = cerr
	}
	return err
}

func newRootCommand(transport http.RoundTripper) (*cobra.Command, *app) {
	a := &app{transport: transport}

	root := &cobra.Command{
		Use:           "falcon-cli",
		Short:         "Query hosts, alerts and vulnerabilities",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.start(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "YAML configuration file")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the environment")
	flags.StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	flags.StringVar(&a.logLevel, "log-level", "", "log level, overrides configuration")
	flags.IntVar(&a.concurrency, "concurrency", 1, "detail chunks fetched in parallel")

	root.AddCommand(
		newPingCommand(a),
		newDevicesCommand(a),
		newAlertsCommand(a),
		newVulnsCommand(a),
	)
	return root, a
}

func (a *app) start(cmd *cobra.Command) error {
	settings, err := config.Load(config.Options{File: a.configFile, EnvFile: a.envFile})
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if a.logLevel != "" {
		settings.Logging.Level = a.logLevel
	}
	if a.transport != nil {
		settings.Client.Transport = a.transport
	}

	logging.Setup(settings.Logging)
	a.logger = logging.NewLogger("cli")
	a.logger.Debug().Str("command", cmd.Name()).Msg("CLI started")

	if a.metricsAddr != "" {
		if err := a.serveMetrics(); err != nil {
			return err
		}
	}

	a.client, a.closeFn, err = settings.NewClient()
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	if store := a.client.Cache(); store != nil {
		pingCtx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		err := store.Ping(pingCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}

	ctx, stop := context.WithCancel(cmd.Context())
	a.stop = stop
	go a.client.Tokens().Run(ctx)

	return nil
}

func (a *app) serveMetrics() error {
	ln, err := net.Listen("tcp", a.metricsAddr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	a.metrics = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	a.metricsListener = ln.Addr()

	go func() {
		if err := a.metrics.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	a.logger.Info().Str("addr", ln.Addr().String()).Msg("Serving metrics")
	return nil
}

func (a *app) shutdown() error {
	if a.stop != nil {
		a.stop()
		a.stop = nil
	}
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.metrics.Shutdown(ctx)
		a.metrics = nil
	}
	if a.closeFn != nil {
		closeFn := a.closeFn
		a.closeFn = nil
		return closeFn()
	}
	return nil
}

func (a *app) options() falcon.Options {
	opts := falcon.DefaultOptions()
	if a.concurrency > 1 {
		opts.MaxConcurrency = a.concurrency
	}
	return opts
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeLines(cmd *cobra.Command, lines []string) {
	out := cmd.OutOrStdout()
	for _, l := range lines {
		fmt.Fprintln(out, l)
	}
}
