package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the pipeline command tree.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "pipeline",
		Short: "Reactive computation pipeline demo",
		// SilenceUsage prevents printing usage on every error
		SilenceUsage: true,
	}

	root.PersistentFlags().Bool("verbose", false, "Enable debug logging")

	root.Version = version
	root.SetVersionTemplate(fmt.Sprintf("pipeline version %s\n", version))

	root.AddCommand(NewRunCmd())
	root.AddCommand(NewValidateCmd())

	return root
}
