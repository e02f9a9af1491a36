package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dyluth/warren/internal/filter"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/watch"
)

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var (
		output   string
		criteria filter.Criteria
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream board changes as they happen",
		Long: `Print every change made to the board by any client until interrupted.

Output Formats:
  default - One line per change with room names
  json    - Line-delimited JSON carrying the changed rows

Examples:
  # Follow the board
  warren watch

  # Status changes of the workshop rooms
  warren watch --kind room_status --room 'Werk*'

  # Only the rooms that open
  warren watch --output json | jq -c 'select(.kind == "room_status" and .new.is_open)'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format := watch.OutputFormat(output)
			if format != watch.OutputFormatDefault && format != watch.OutputFormatJSON {
				return printer.Error("invalid output format", fmt.Sprintf("Unknown format: %s", output), []string{"Valid formats: default, json"})
			}

			if err := criteria.Validate(); err != nil {
				return printer.Error("invalid filter", err.Error(), []string{"Use shell glob patterns such as 'room*' or 'Werk?tatt'"})
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := opts.openSession(ctx, false)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.load(ctx); err != nil {
				return err
			}

			if format == watch.OutputFormatDefault {
				printer.Info("Watching instance %s, Ctrl+C to stop\n", s.cfg.Instance)
			}
			return watch.StreamChanges(ctx, s.bus, s.local, criteria, format, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "default", "Output format: default or json")
	cmd.Flags().StringVar(&criteria.KindGlob, "kind", "", "Only show changes whose kind matches this glob (rooms, room_status, daily_configs, app_settings)")
	cmd.Flags().StringVar(&criteria.RoomGlob, "room", "", "Only show changes to rooms whose name matches this glob")
	return cmd
}
