package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewValidateCmd creates the "validate" subcommand.
func NewValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path, _ := cmd.Flags().GetString("config"); path == "" {
				return exitError(exitValidation, "--config is required")
			}

			cfg, err := loadConfigFlag(cmd)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Configuration is valid (model %s, %d stage overrides).\n", cfg.Model, len(cfg.Stages))
			return nil
		},
	}

	cmd.Flags().StringP("config", "c", "", "Config file, YAML or .hcl")

	return cmd
}
