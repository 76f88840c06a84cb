// internal/cli/install.go
package cli

import (
	"errors"
	"fmt"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/arc-language/bundlekit/pkg/core"
	"github.com/arc-language/bundlekit/pkg/install"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the bundle into the prefix",
	Long: `Install every component of the bundle for the current platform.

Examples:
  bundlekit install
  bundlekit install --prefix=/opt/autopsy
  bundlekit install --manifest=./bundle.toml --debug`,
	Args: cobra.NoArgs,
	RunE: runInstall,
}

func runInstall(cmd *cobra.Command, args []string) error {
	o, host, err := newOrchestrator()
	if err != nil {
		return err
	}

	fmt.Printf("Installing into %s (%s)\n", config.Prefix, host)
	if !config.Debug {
		o.OnTransition = printTransition
	}

	report, err := o.Run(cmd.Context())
	if err != nil {
		color.Danger.Printf("✗ Install failed in %s: %v\n", report.FailedStage, err)

		var buildErr *core.BuildError
		if errors.As(err, &buildErr) && buildErr.Stderr != "" && !config.Debug {
			color.Comment.Println("Run with --debug for the complete build output.")
		}
		if errors.Is(err, core.ErrAlreadyInstalled) {
			color.Comment.Println("Run 'bundlekit clean' to remove the existing install.")
		}
		return err
	}

	color.Success.Printf("✓ Installed %d components\n", len(report.Plan))
	for _, id := range report.Plan {
		fmt.Printf("  %-16s %s\n", id, report.Layout[id])
	}
	if report.Launcher != "" {
		fmt.Printf("Launcher: %s\n", report.Launcher)
	}
	return nil
}

func printTransition(t install.Transition) {
	switch {
	case t.State == install.StateFailed:
	case t.Component != "":
		color.Info.Printf("==> %s ", t.State)
		fmt.Println(t.Component)
	default:
		color.Info.Printf("==> %s\n", t.State)
	}
}
