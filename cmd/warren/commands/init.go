package commands

import (
	"github.com/spf13/cobra"

	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/scaffold"
)

func newInitCmd(opts *globalOptions) *cobra.Command {
	var (
		force   bool
		backend string
		dir     string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter warren.yml",
		Long: `Write a commented warren.yml for the chosen backend into the current directory.

Use --force to overwrite an existing warren.yml.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printer.Step("Writing %s configuration to %s\n", backend, dir)
			path, err := scaffold.Initialize(dir, scaffold.Options{Force: force, Backend: backend, Instance: opts.instance})
			if err != nil {
				return printer.Error("initialization failed", err.Error(), []string{
					"Run 'warren init --force' to replace an existing warren.yml",
					"Use --backend redis or --backend postgres",
				})
			}

			printer.Success("Created %s\n", path)
			printer.Info("\nNext steps:\n")
			printer.Info("  1. Point %s at your backend\n", backend)
			printer.Info("  2. Run 'warren room create NAME --category eg' to add rooms\n")
			printer.Info("  3. Run 'warren run' on every client that shows the board\n")
			return nil
		},
	}

	// No -f shorthand: it would read like --file next to --config
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing warren.yml")
	cmd.Flags().StringVar(&backend, "backend", "redis", "Backend to configure: redis or postgres")
	cmd.Flags().StringVar(&dir, "dir", ".", "Directory to write warren.yml into")
	return cmd
}
