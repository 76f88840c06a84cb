// pkg/env/composer.go
package env

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/arc-language/bundlekit/pkg/core"
	"github.com/arc-language/bundlekit/pkg/platform"
)

// Config configures the composer
type Config struct {
	Debug  bool
	Logger *log.Logger
}

// Composer derives a RuntimeEnvironment from a staging layout
type Composer struct {
	table  *RuntimeTable
	logger *log.Logger
}

// NewComposer creates a composer over a runtime table
func NewComposer(table *RuntimeTable, cfg *Config) *Composer {
	logger := cfg.Logger
	if logger == nil {
		if cfg.Debug {
			logger = log.New(os.Stdout, "[DEBUG] ", log.LstdFlags)
		} else {
			logger = log.New(io.Discard, "", 0)
		}
	}
	return &Composer{table: table, logger: logger}
}

// Bindings returns the table row for a host
func (t *RuntimeTable) Bindings(h platform.Host) ([]Binding, error) {
	for _, row := range t.Platforms {
		for _, pat := range row.Match {
			if h.Match(pat) {
				return row.Vars, nil
			}
		}
	}
	return nil, fmt.Errorf("runtime table has no entry for %s: %w", h, core.ErrPlatformNotSupported)
}

// Components returns the IDs of every component a host's row refers to
func (t *RuntimeTable) Components(h platform.Host) []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	add(t.ConfigFile.Component)
	if vars, err := t.Bindings(h); err == nil {
		for _, b := range vars {
			for _, ref := range b.Paths {
				add(ref.Component)
			}
		}
	}
	return ids
}

// Compose resolves the host's bindings against layout. A binding that
// refers to a component missing from layout is an error; a missing system
// path is only logged, since it is consulted at run time, not now.
func (c *Composer) Compose(layout core.StagingLayout, h platform.Host) (*RuntimeEnvironment, error) {
	if len(c.table.Platforms) == 0 && c.table.ConfigFile.Component == "" {
		return &RuntimeEnvironment{}, nil
	}

	bindings, err := c.table.Bindings(h)
	if err != nil {
		return nil, err
	}

	c.logger.Printf("Composing runtime environment for %s", h)
	renv := &RuntimeEnvironment{}
	for _, b := range bindings {
		paths := make([]string, 0, len(b.Paths))
		for _, ref := range b.Paths {
			p, err := resolve(layout, ref)
			if err != nil {
				return nil, fmt.Errorf("binding %s: %w", b.Name, err)
			}
			if !fileExists(p) {
				c.logger.Printf("  ⚠️  %s: %s does not exist on this machine", b.Name, p)
			}
			paths = append(paths, p)
		}

		for _, lib := range b.ExpectLibraries {
			if found := FindSharedLibrary(paths, lib, h.OS); found != nil {
				c.logger.Printf("  ✓ %s: found lib%s at %s", b.Name, lib, found.Path)
			} else {
				c.logger.Printf("  ⚠️  %s: lib%s not found in %v", b.Name, lib, paths)
			}
		}

		value := strings.Join(paths, ListSeparator)
		if b.Template != "" {
			value = strings.ReplaceAll(b.Template, PathsPlaceholder, value)
		}
		renv.Vars = append(renv.Vars, Var{Name: b.Name, Value: value})
		c.logger.Printf("  %s=%s", b.Name, value)
	}

	if cf := c.table.ConfigFile; cf.Component != "" {
		root, ok := layout.Path(cf.Component)
		if !ok {
			return nil, fmt.Errorf("config file owner %s: %w", cf.Component, core.ErrMissingComponent)
		}
		renv.Patches = append(renv.Patches, ConfigPatch{
			Path:  filepath.Join(root, filepath.FromSlash(cf.Path)),
			Lines: renv.ExportLines(),
		})
	}

	return renv, nil
}

func resolve(layout core.StagingLayout, ref PathRef) (string, error) {
	switch {
	case ref.Component != "" && ref.System != "":
		return "", fmt.Errorf("path reference names both component %s and system path %s", ref.Component, ref.System)
	case ref.Component != "":
		root, ok := layout.Path(ref.Component)
		if !ok {
			return "", fmt.Errorf("%s: %w", ref.Component, core.ErrMissingComponent)
		}
		return filepath.Join(root, filepath.FromSlash(ref.Sub)), nil
	case ref.System != "":
		return filepath.Join(ref.System, filepath.FromSlash(ref.Sub)), nil
	default:
		return "", fmt.Errorf("empty path reference")
	}
}
