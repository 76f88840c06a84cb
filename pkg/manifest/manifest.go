// pkg/manifest/manifest.go
package manifest

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/arc-language/bundlekit/pkg/core"
	"github.com/arc-language/bundlekit/pkg/env"
	"github.com/arc-language/bundlekit/pkg/platform"
)

//go:embed default.yaml
var defaultManifest []byte

// Launcher describes the entry point linked into <prefix>/bin
type Launcher struct {
	Name      string   `yaml:"name" toml:"name"`
	Component string   `yaml:"component" toml:"component"`
	Target    string   `yaml:"target" toml:"target"` // relative to the component's staged directory
	SmokeArgs []string `yaml:"smoke_args,omitempty" toml:"smoke_args"`
}

// Manifest is the full description of one composed application
type Manifest struct {
	Name       string               `yaml:"name" toml:"name"`
	Launcher   Launcher             `yaml:"launcher" toml:"launcher"`
	Components []core.ComponentSpec `yaml:"components" toml:"components"`
	Runtime    env.RuntimeTable     `yaml:"runtime" toml:"runtime"`
}

// Default returns the embedded manifest
func Default() (*Manifest, error) {
	return Parse(defaultManifest, "yaml")
}

// Load reads a manifest, choosing the decoder by file extension
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: reading %s: %w", path, err)
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	m, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("manifest: %s: %w", path, err)
	}
	return m, nil
}

// Parse decodes and validates a manifest in "yaml", "yml" or "toml" format
func Parse(data []byte, format string) (*Manifest, error) {
	var m Manifest
	switch format {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parsing yaml: %w", err)
		}
	case "toml":
		if _, err := toml.Decode(string(data), &m); err != nil {
			return nil, fmt.Errorf("parsing toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported manifest format %q", format)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks every component and that no host selects two
// components with the same ID.
func (m *Manifest) Validate() error {
	for i := range m.Components {
		if err := m.Components[i].Validate(); err != nil {
			return err
		}
	}

	for _, h := range platform.AllHosts {
		seen := make(map[string]bool)
		for _, c := range m.Components {
			if !c.Platforms.Matches(h) {
				continue
			}
			if seen[c.ID] {
				return fmt.Errorf("manifest: component %s is selected twice for %s", c.ID, h)
			}
			seen[c.ID] = true
		}
	}

	if err := m.validateRuntime(); err != nil {
		return err
	}

	if m.Launcher.Name != "" {
		if m.Launcher.Component == "" || m.Launcher.Target == "" {
			return fmt.Errorf("manifest: launcher %s needs component and target", m.Launcher.Name)
		}
		if !m.HasComponent(m.Launcher.Component) {
			return fmt.Errorf("manifest: launcher refers to unknown component %s", m.Launcher.Component)
		}
	}
	return nil
}

// loaderVars are the dynamic loader search path variables of every host
var loaderVars = map[string]bool{
	"LD_LIBRARY_PATH":            true,
	"DYLD_LIBRARY_PATH":          true,
	"DYLD_FALLBACK_LIBRARY_PATH": true,
}

// validateRuntime rejects runtime rows that set another host's loader
// variable, the usual result of copying a row between platforms.
func (m *Manifest) validateRuntime() error {
	for _, h := range platform.AllHosts {
		bindings, err := m.Runtime.Bindings(h)
		if err != nil {
			continue
		}
		want := env.LibraryPathVar(h)
		for _, b := range bindings {
			if b.Name == "" {
				return fmt.Errorf("manifest: runtime binding without name for %s", h)
			}
			darwinAlt := h.OS == platform.OSDarwin && b.Name == "DYLD_LIBRARY_PATH"
			if loaderVars[b.Name] && b.Name != want && !darwinAlt {
				return fmt.Errorf("manifest: runtime binding %s does not apply to %s (use %s)", b.Name, h, want)
			}
		}
	}
	return nil
}

// HasComponent reports whether any entry carries id
func (m *Manifest) HasComponent(id string) bool {
	for _, c := range m.Components {
		if c.ID == id {
			return true
		}
	}
	return false
}
