// stager.go
package stage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/arc-language/bundlekit/pkg/build"
	"github.com/arc-language/bundlekit/pkg/core"
)

// IncompleteMarker is present in a staged directory until staging finished
const IncompleteMarker = ".bundlekit-incomplete"

// Runner executes a command with an explicit environment
type Runner interface {
	Run(ctx context.Context, component, phase, dir string, env build.Env, argv []string) error
}

// Config configures the stager
type Config struct {
	// OverrideHashes pins override files that the component table leaves unpinned
	OverrideHashes map[string]string
	Debug          bool
	Logger         *log.Logger
}

// Stager places fetched or built components into isolated directories
type Stager struct {
	fetcher core.Fetcher
	runner  Runner
	config  *Config
	logger  *log.Logger
}

// New creates a stager
func New(fetcher core.Fetcher, runner Runner, cfg *Config) *Stager {
	logger := cfg.Logger
	if logger == nil {
		if cfg.Debug {
			logger = log.New(os.Stdout, "[DEBUG] ", log.LstdFlags)
		} else {
			logger = log.New(io.Discard, "", 0)
		}
	}
	return &Stager{fetcher: fetcher, runner: runner, config: cfg, logger: logger}
}

// Locate returns the single directory directly under dir matching pattern.
// Zero or several matches are an *core.AmbiguousArtifactError.
func Locate(dir, pattern string) (string, error) {
	if pattern == "" {
		return dir, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", dir, err)
	}

	var matches []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		ok, err := filepath.Match(pattern, entry.Name())
		if err != nil {
			return "", fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if ok {
			matches = append(matches, entry.Name())
		}
	}
	sort.Strings(matches)

	if len(matches) != 1 {
		return "", &core.AmbiguousArtifactError{Dir: dir, Pattern: pattern, Matches: matches}
	}
	return filepath.Join(dir, matches[0]), nil
}

// Begin clears dest and marks it incomplete
func Begin(dest string) error {
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("clearing %s: %w", dest, err)
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	return os.WriteFile(filepath.Join(dest, IncompleteMarker), nil, 0644)
}

// Finish removes the incomplete marker from dest
func Finish(dest string) error {
	err := os.Remove(filepath.Join(dest, IncompleteMarker))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// IsIncomplete reports whether dest carries the incomplete marker
func IsIncomplete(dest string) bool {
	_, err := os.Stat(filepath.Join(dest, IncompleteMarker))
	return err == nil
}

// StagePrebuilt copies the located top-level directory of an unpacked
// artifact into dest. dest is left marked incomplete; call Finish once any
// overrides and setup steps have run.
func (s *Stager) StagePrebuilt(spec *core.ComponentSpec, srcRoot, dest string) error {
	root, err := Locate(srcRoot, spec.Pattern)
	if err != nil {
		return err
	}

	s.logger.Printf("Staging %s: %s -> %s", spec.ID, root, dest)
	if err := Begin(dest); err != nil {
		return err
	}
	if err := CopyTree(root, dest); err != nil {
		return fmt.Errorf("copying %s: %w", spec.ID, err)
	}
	s.logger.Printf("  ✓ %s staged", spec.ID)
	return nil
}

// StageCompiled relocates the make install output found at destDir+prefix
// into prefix, giving compiled components the same shape as prebuilt ones.
func (s *Stager) StageCompiled(spec *core.ComponentSpec, destDir, prefix string) error {
	installed := filepath.Join(destDir, prefix)
	info, err := os.Stat(installed)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("install phase of %s produced nothing under %s", spec.ID, installed)
	}

	s.logger.Printf("Relocating %s: %s -> %s", spec.ID, installed, prefix)
	if err := Begin(prefix); err != nil {
		return err
	}
	if err := CopyTree(installed, prefix); err != nil {
		return fmt.Errorf("relocating %s: %w", spec.ID, err)
	}
	s.logger.Printf("  ✓ %s relocated", spec.ID)
	return nil
}

// ApplyOverrides replaces bundled files with curated copies. Each copy goes
// through the fetcher's hash check. An override without a known hash keeps
// the bundled file, unless it is required.
func (s *Stager) ApplyOverrides(ctx context.Context, spec *core.ComponentSpec, dest string) error {
	for _, o := range spec.Overrides {
		sum := o.SHA256
		if sum == "" {
			sum = s.config.OverrideHashes[o.Name]
		}
		if sum == "" {
			if o.Required {
				return &core.Error{Op: "override", Component: spec.ID,
					Err: fmt.Errorf("%s has no pinned sha256: %w", o.Name, core.ErrIntegrity)}
			}
			s.logger.Printf("  ⚠️  Skipping override %s: no pinned sha256, keeping bundled %s", o.Name, o.Path)
			continue
		}

		target := filepath.Join(dest, filepath.FromSlash(o.Path))
		if rel, err := filepath.Rel(dest, target); err != nil || !filepath.IsLocal(rel) {
			return &core.Error{Op: "override", Component: spec.ID, Err: fmt.Errorf("%s escapes %s", o.Path, dest)}
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}

		s.logger.Printf("Overriding %s with %s", o.Path, o.URL)
		if err := s.fetcher.FetchFile(ctx, spec.ID, o.URL, sum, target); err != nil {
			return err
		}
		if err := os.Chmod(target, 0755); err != nil {
			return err
		}
		s.logger.Printf("  ✓ %s replaced", o.Path)
	}
	return nil
}

// RunSetup runs the component's setup script from dest. expand resolves
// ${name} references in arguments and environment values.
func (s *Stager) RunSetup(ctx context.Context, spec *core.ComponentSpec, dest string, env build.Env, expand func(string) string) error {
	if spec.Setup == nil {
		return nil
	}

	script := filepath.Join(dest, filepath.FromSlash(spec.Setup.Script))
	if err := os.Chmod(script, 0755); err != nil {
		return fmt.Errorf("preparing setup script: %w", err)
	}

	argv := []string{script}
	for _, a := range spec.Setup.Args {
		argv = append(argv, expand(a))
	}
	for k, v := range spec.Setup.Env {
		env = env.With(k, expand(v))
	}

	s.logger.Printf("Running setup for %s", spec.ID)
	return s.runner.Run(ctx, spec.ID, build.PhaseSetup, dest, env, argv)
}
