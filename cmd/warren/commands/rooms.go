package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/warren/internal/display"
	"github.com/dyluth/warren/internal/printer"
)

func newRoomsCmd(opts *globalOptions) *cobra.Command {
	var (
		weekday int
		output  string
	)

	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List the rooms scheduled for a weekday",
		Long: `List the rooms that have a schedule for a weekday, in board order.

Output Formats:
  table - Human-readable table with state, hours, activity and person
  jsonl - Line-delimited JSON, one room per line

Examples:
  # Today's board
  warren rooms

  # Saturday, for scripts
  warren rooms --weekday 6 --output jsonl | jq -r 'select(.is_open) | .room.name'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "table" && output != "jsonl" {
				return printer.Error("invalid output format", fmt.Sprintf("Unknown format: %s", output), []string{"Valid formats: table, jsonl"})
			}
			if weekday < -1 || weekday > 6 {
				return printer.Error("invalid weekday", fmt.Sprintf("Weekday %d is out of range", weekday), []string{"Use 0 (Sunday) to 6 (Saturday)"})
			}

			ctx := cmd.Context()
			s, err := opts.openSession(ctx, false)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.load(ctx); err != nil {
				return err
			}

			if weekday == -1 {
				weekday = s.local.ViewWeekday()
			}
			rooms := s.local.VisibleRooms(weekday)

			if output == "jsonl" {
				return display.FormatJSONL(cmd.OutOrStdout(), rooms)
			}
			_, err = display.FormatTable(cmd.OutOrStdout(), rooms, weekday)
			return err
		},
	}

	cmd.Flags().IntVarP(&weekday, "weekday", "w", -1, "Weekday to show, 0 (Sunday) to 6 (Saturday); default today")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table or jsonl")
	return cmd
}
