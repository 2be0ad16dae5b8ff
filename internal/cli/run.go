package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/shiftguard/internal/account"
	"github.com/roach88/shiftguard/internal/api"
	"github.com/roach88/shiftguard/internal/attendance"
	"github.com/roach88/shiftguard/internal/remote"
	"github.com/roach88/shiftguard/internal/replication"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Addr string

	// IDs allows overriding the record id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs attendance.IDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the replication client and console API",
		Long: `Start the ShiftGuard client.

The client pulls the shared attendance document from the configured remote
store, keeps it fresh with a heartbeat pull, pushes local changes as they are
made and serves the console API until interrupted.

Example:
  shiftguard run
  shiftguard run --addr 127.0.0.1:9000 --env-file ./prod.env --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "console listen address (overrides HTTP_ADDR)")

	return cmd
}

func runClient(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.HTTPAddr = opts.Addr
	}
	logger := newLogger(cfg, opts.RootOptions, cmd.ErrOrStderr())

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Info("opening remote store", "backend", cfg.Remote.Backend, "table", cfg.Remote.Table, "key", cfg.Remote.Key)
	store, closeStore, err := remote.Open(ctx, cfg.Remote)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open remote store", err)
	}
	defer func() {
		if closeErr := closeStore(); closeErr != nil {
			logger.Error("error closing remote store", "error", closeErr)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	engine := replication.New(store,
		replication.WithLogger(logger),
		replication.WithMetrics(replication.NewMetrics(reg)),
		replication.WithPollInterval(cfg.PollInterval),
		replication.WithPushDebounce(cfg.PushDebounce),
	)

	gwOpts := []attendance.GatewayOption{attendance.WithLogger(logger)}
	if opts.IDs != nil {
		gwOpts = append(gwOpts, attendance.WithIDGenerator(opts.IDs))
	}
	gw := attendance.NewGateway(engine, gwOpts...)
	accounts := account.New(gw, account.AccessCodes{
		Owner: cfg.OwnerAccessCode,
		Admin: cfg.AdminAccessCode,
	}, logger)

	srv := api.New(gw, accounts, api.Options{
		Issuer:          cfg.JWTIssuer,
		SigningKey:      cfg.JWTSigningKey,
		SessionTTL:      cfg.SessionTTL,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Location:        cfg.Location(),
		Gatherer:        reg,
	}, logger)

	fmt.Fprintf(cmd.OutOrStdout(), "ShiftGuard client started. Console on %s\n", cfg.HTTPAddr)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(gctx) })
	g.Go(func() error { return srv.Serve(gctx, cfg.HTTPAddr) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "client error", err)
	}

	logger.Info("client stopped gracefully", "dirty", engine.Status().Dirty)
	return nil
}
