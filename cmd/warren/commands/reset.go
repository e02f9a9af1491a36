package commands

import (
	"github.com/spf13/cobra"

	"github.com/dyluth/warren/internal/automation"
	"github.com/dyluth/warren/internal/printer"
)

func newResetCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Run today's daily reset unless some client already has",
		Long: `Claim today's daily reset. The client that wins the claim clears every schedule time
and closes every room, releasing manual holds. When another client already reset the
board today nothing happens.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := opts.openSession(ctx, false)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.load(ctx); err != nil {
				return err
			}

			svc := automation.New(s.local, s.remote, s.bus, s.logger, automation.Options{})
			performed, err := svc.CheckReset(ctx)
			if err != nil {
				if performed {
					printer.Warning("Today's reset was claimed by this client but did not finish; no other client will retry it today\n")
				}
				return printer.Error("daily reset failed", err.Error(), nil)
			}
			if !performed {
				printer.Info("The board was already reset today\n")
				return nil
			}

			printer.Success("board reset, %d rooms closed\n", len(s.local.Snapshot().Rooms))
			return nil
		},
	}
}

func newKeepaliveCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keepalive",
		Short: "Ping the backend once so an idle hosted database stays active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := opts.openSession(ctx, false)
			if err != nil {
				return err
			}
			defer s.close()

			svc := automation.New(s.local, s.remote, s.bus, s.logger, automation.Options{})
			if err := svc.Keepalive(ctx); err != nil {
				return printer.Error("keep-alive failed", err.Error(), nil)
			}

			printer.Success("%s backend is alive\n", s.cfg.Backend)
			return nil
		},
	}
}
