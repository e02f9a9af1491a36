package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/warren/internal/printer"
)

func newToggleCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle ROOM",
		Short: "Open a closed room or close an open one",
		Long: `Flip a room between open and closed.

A toggled room is held manually: the schedule and night mode leave it alone until the
next daily reset. ROOM is a room name, a full room ID or an ID prefix of at least 6
characters.`,
		Args: cobra.ExactArgs(1),
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
			room, err := s.resolveRoom(args[0])
			if err != nil {
				return err
			}

			status, err := s.mutator.Toggle(ctx, room.ID)
			if err != nil {
				return printer.Error("toggle failed", err.Error(), []string{"The room keeps its previous state; try again"})
			}

			printer.Success("%s is now %s\n", room.Name, printer.RoomState(status.IsOpen, status.ManualOverride))
			return nil
		},
	}
}

func newBulkCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "bulk open|close",
		Short:     "Open or close every room at once",
		Long:      "Open or close every room at once. Every room is held manually until the next daily reset.",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"open", "close"},
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

			open := args[0] == "open"
			if open {
				err = s.mutator.BulkOpen(ctx)
			} else {
				err = s.mutator.BulkClose(ctx)
			}
			if err != nil {
				return printer.Error(fmt.Sprintf("bulk %s failed", args[0]), err.Error(), nil)
			}

			verb := "closed"
			if open {
				verb = "opened"
			}
			printer.Success("%d rooms %s\n", len(s.local.Snapshot().Rooms), verb)
			return nil
		},
	}
}
