// internal/cli/root.go
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arc-language/bundlekit"
	"github.com/arc-language/bundlekit/pkg/core"
	"github.com/arc-language/bundlekit/pkg/platform"
)

var (
	cfgFile      string
	manifestFile string
	prefix       string
	targetOS     string
	targetArch   string
	debug        bool
	config       *core.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "bundlekit",
	Short: "Self-contained application bundle installer",
	Long: `bundlekit - Self-contained application bundle installer

Fetches, verifies, builds and stages every component of an application
bundle into one prefix, writes the runtime environment the application
needs and links a launcher.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute executes the root command. An interrupt cancels the running
// install; the prefix is left in the Failed state.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/bundlekit/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&manifestFile, "manifest", "", "component table (yaml or toml) replacing the built-in one")
	rootCmd.PersistentFlags().StringVar(&prefix, "prefix", "", "install prefix (default is $BUNDLEKIT_PREFIX or $HOME/.bundlekit)")
	rootCmd.PersistentFlags().StringVar(&targetOS, "os", "", "target operating system (default is the current one)")
	rootCmd.PersistentFlags().StringVar(&targetArch, "arch", "", "target architecture (default is the current one)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	// Add commands
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(envCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	var err error
	config, err = core.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		config = core.DefaultConfig()
	}

	// Override config with flags
	if manifestFile != "" {
		config.Manifest = manifestFile
	}
	if prefix != "" {
		config.Prefix = prefix
	}
	if debug {
		config.Debug = true
	}
}

// targetHost combines --os and --arch with the running machine
func targetHost() (platform.Host, error) {
	host, err := platform.Detect()
	if err != nil && (targetOS == "" || targetArch == "") {
		return platform.Host{}, fmt.Errorf("detecting platform: %w", err)
	}
	goos, goarch := host.OS, host.Arch
	if targetOS != "" {
		goos = targetOS
	}
	if targetArch != "" {
		goarch = targetArch
	}
	return platform.New(goos, goarch)
}

func newOrchestrator() (*bundlekit.Orchestrator, platform.Host, error) {
	host, err := targetHost()
	if err != nil {
		return nil, host, err
	}
	o, err := bundlekit.NewOrchestrator(config, host)
	return o, host, err
}
