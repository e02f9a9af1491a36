package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dyluth/warren/internal/automation"
	"github.com/dyluth/warren/internal/health"
	"github.com/dyluth/warren/internal/printer"
)

func newRunCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a client: sync the board, automate it and serve HTTP until stopped",
		Long: `Run a long-lived client.

The client subscribes to changes from the backend, loads the board, and starts the
periodic jobs: the schedule tick, the daily reset check, the view clock and (when
automation.keepalive_interval is set) the keep-alive ping. With http.addr set it also
serves /healthz and /rooms.

Stops on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd.Context(), opts)
		},
	}
}

func runClient(ctx context.Context, opts *globalOptions) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := opts.openSession(ctx, true)
	if err != nil {
		return err
	}
	defer s.close()

	a := s.cfg.Automation
	svc := automation.New(s.local, s.remote, s.bus, s.logger, automation.Options{
		TickInterval:       a.TickInterval,
		ResetCheckInterval: a.ResetCheckInterval,
		ClockInterval:      a.ClockInterval,
		KeepaliveInterval:  a.KeepaliveInterval,
	})
	if err := svc.Start(ctx); err != nil {
		return printer.Error("failed to start", err.Error(), []string{"Check that the backend is reachable"})
	}
	defer svc.Stop()

	var hs *health.Server
	if s.cfg.HTTP.Addr != "" {
		hs = health.NewServer(s.cfg.Backend, s.remote, s.local, s.logger)
		hs.Start(s.cfg.HTTP.Addr)
	}

	s.logger.Info("client running", zap.String("backend", s.cfg.Backend))
	<-ctx.Done()
	s.logger.Info("shutting down")

	if hs != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hs.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("health server shutdown failed", zap.Error(err))
		}
	}
	return nil
}
