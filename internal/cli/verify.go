// internal/cli/verify.go
package cli

import (
	"github.com/gookit/color"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run the installed launcher as a smoke test",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		o, _, err := newOrchestrator()
		if err != nil {
			return err
		}
		if err := o.Verify(cmd.Context()); err != nil {
			color.Danger.Printf("✗ Launcher check failed: %v\n", err)
			return err
		}
		color.Success.Println("✓ Launcher runs")
		return nil
	},
}
