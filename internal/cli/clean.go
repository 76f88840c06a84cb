// internal/cli/clean.go
package cli

import (
	"fmt"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the installed bundle from the prefix",
	Long: `Remove staged components, the launcher and the install receipt.
Verified downloads stay in the cache.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		o, _, err := newOrchestrator()
		if err != nil {
			return err
		}
		if err := o.Clean(); err != nil {
			return err
		}
		color.Success.Printf("✓ Cleaned %s\n", config.Prefix)
		fmt.Println("Downloads kept in", config.DownloadDir())
		return nil
	},
}
