package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:          "validate <module>",
	Short:        "Check that a module loads",
	Long:         `Load a module into this process and call its entry points in virtual mode, then release it.`,
	RunE:         runValidate,
	SilenceUsage: true,
	Args:         cobra.ExactArgs(1),
}

func runValidate(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	return validateModule(cmd.OutOrStdout(), path)
}
