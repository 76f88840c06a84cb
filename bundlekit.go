// bundlekit.go
package bundlekit

import (
	"context"
	"fmt"

	"github.com/arc-language/bundlekit/pkg/core"
	"github.com/arc-language/bundlekit/pkg/install"
	"github.com/arc-language/bundlekit/pkg/manifest"
	"github.com/arc-language/bundlekit/pkg/platform"
)

// Re-export the types callers need to drive an install
type (
	Config        = core.Config
	ComponentSpec = core.ComponentSpec
	Host          = platform.Host
	Manifest      = manifest.Manifest
	Orchestrator  = install.Orchestrator
	Report        = install.Report
	Receipt       = install.Receipt
)

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return core.DefaultConfig()
}

// LoadManifest returns the manifest named by config, or the embedded
// default one when config names none.
func LoadManifest(config *Config) (*Manifest, error) {
	var (
		m   *Manifest
		err error
	)
	if config.Manifest != "" {
		m, err = manifest.Load(config.Manifest)
	} else {
		m, err = manifest.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("loading manifest: %w", err)
	}
	return m, nil
}

// NewOrchestrator creates an orchestrator for host. A zero host means the
// machine bundlekit runs on.
func NewOrchestrator(config *Config, host Host) (*Orchestrator, error) {
	if config == nil {
		config = core.DefaultConfig()
	}

	m, err := LoadManifest(config)
	if err != nil {
		return nil, err
	}

	if host == (Host{}) {
		host, err = platform.Detect()
		if err != nil {
			return nil, err
		}
	}

	return install.New(config, m, host), nil
}

// Install runs a complete install on the current machine
func Install(ctx context.Context, config *Config) (*Report, error) {
	o, err := NewOrchestrator(config, Host{})
	if err != nil {
		return nil, err
	}
	return o.Run(ctx)
}

// Installed returns the receipt of a finished install in config's prefix
func Installed(config *Config) (*Receipt, error) {
	return install.LoadReceipt(config.Prefix)
}
