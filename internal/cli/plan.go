// internal/cli/plan.go
package cli

import (
	"fmt"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/arc-language/bundlekit"
	"github.com/arc-language/bundlekit/pkg/install"
	"github.com/arc-language/bundlekit/pkg/platform"
)

var planAll bool

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the components an install would process",
	Long: `Print the install order of the bundle's components, with their
artifacts and hashes, without fetching anything.

Examples:
  bundlekit plan
  bundlekit plan --os=darwin --arch=arm64
  bundlekit plan --all`,
	Args: cobra.NoArgs,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().BoolVar(&planAll, "all", false, "show the plan of every supported platform")
}

func runPlan(cmd *cobra.Command, args []string) error {
	m, err := bundlekit.LoadManifest(config)
	if err != nil {
		return err
	}

	hosts := platform.AllHosts
	if !planAll {
		host, err := targetHost()
		if err != nil {
			return err
		}
		hosts = []platform.Host{host}
	}

	var firstErr error
	for _, host := range hosts {
		color.Info.Printf("%s (%s)\n", m.Name, host)

		plan, err := install.NewPlan(m.Components, host)
		if err != nil {
			color.Danger.Printf("  ✗ %v\n", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		for i, c := range plan.Components {
			fmt.Printf("  %d. %-14s %-15s %s\n", i+1, c.ID, c.Kind, c.URL)
			fmt.Printf("     sha256 %s\n", c.SHA256)
			if len(c.DependsOn) > 0 {
				fmt.Printf("     after  %v\n", c.DependsOn)
			}
		}
	}
	if !planAll {
		return firstErr
	}
	return nil
}
