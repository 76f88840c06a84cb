// internal/cli/env.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arc-language/bundlekit"
	"github.com/arc-language/bundlekit/pkg/env"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Print the runtime environment of the installed bundle",
	Long: `Print the variables written to the application's runtime config
as shell export statements.

Examples:
  eval "$(bundlekit env)"`,
	Args: cobra.NoArgs,
	RunE: runEnv,
}

func runEnv(cmd *cobra.Command, args []string) error {
	receipt, err := bundlekit.Installed(config)
	if err != nil {
		return fmt.Errorf("nothing installed in %s: %w", config.Prefix, err)
	}

	renv := &env.RuntimeEnvironment{Vars: receipt.Env}
	for _, line := range renv.ExportLines() {
		fmt.Println(line)
	}
	return nil
}
