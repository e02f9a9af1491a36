package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/warren/internal/config"
	"github.com/dyluth/warren/internal/printer"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	instance   string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "warren",
		Short: "Warren - shared open/closed board for the rooms of a house",
		Long: `Warren keeps a board of rooms and whether each one is open right now.

Every client holds a local copy of the board, applies its own changes to it at once,
and stays in sync with every other client through the shared backend (Redis or
PostgreSQL). Running clients open and close rooms on their daily schedule, close
everything at night, and reset the schedule once per day.`,
		// Show help rather than succeeding silently when no subcommand is given
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		FParseErrWhitelist: cobra.FParseErrWhitelist{},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to warren.yml (default: ./warren.yml when present)")
	cmd.PersistentFlags().StringVar(&opts.instance, "instance", "", "Instance namespace (overrides config and WARREN_INSTANCE)")

	cmd.AddCommand(
		newRunCmd(opts),
		newRoomsCmd(opts),
		newToggleCmd(opts),
		newBulkCmd(opts),
		newRoomCmd(opts),
		newResetCmd(opts),
		newKeepaliveCmd(opts),
		newWatchCmd(opts),
		newInitCmd(opts),
	)
	return cmd
}

var rootCmd = NewRootCmd()

// Execute runs the root command. It is called by main.main().
func Execute() error {
	// Cobra's own error and usage printing is replaced by the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

// loadConfig reads --config, or ./warren.yml when it exists, and applies --instance.
func (o *globalOptions) loadConfig() (*config.WarrenConfig, error) {
	path, optional := o.configPath, false
	if path == "" {
		path, optional = config.DefaultPath, true
	}

	cfg, err := config.Load(path, optional)
	if err != nil {
		return nil, printer.ErrorWithContext(
			"invalid configuration",
			err.Error(),
			map[string]string{"Config": path},
			[]string{"Fix the file, or point --config at another one"},
		)
	}

	if o.instance != "" {
		cfg.Instance = o.instance
	}
	return cfg, nil
}
