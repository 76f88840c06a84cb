// pkg/core/component.go
package core

import (
	"encoding/hex"
	"fmt"
	"path"
	"strings"

	"github.com/arc-language/bundlekit/pkg/platform"
)

// BuildKind selects how a component reaches its staged directory
type BuildKind string

const (
	// KindPrebuilt components are copied as-is from the unpacked archive
	KindPrebuilt BuildKind = "prebuilt-stage"
	// KindCompile components run configure, make and make install
	KindCompile BuildKind = "compile"
)

// ArchiveFormat names a supported artifact container
type ArchiveFormat string

const (
	FormatTar    ArchiveFormat = "tar"
	FormatTarGz  ArchiveFormat = "tar.gz"
	FormatTarXz  ArchiveFormat = "tar.xz"
	FormatTarZst ArchiveFormat = "tar.zst"
	FormatZip    ArchiveFormat = "zip"
	FormatNar    ArchiveFormat = "nar"
	FormatNarXz  ArchiveFormat = "nar.xz"
	// FormatFile is a single file that is stored without unpacking
	FormatFile ArchiveFormat = "file"
)

// suffixes is checked in order, so longer suffixes come first
var suffixes = []struct {
	suffix string
	format ArchiveFormat
}{
	{".tar.gz", FormatTarGz},
	{".tgz", FormatTarGz},
	{".tar.xz", FormatTarXz},
	{".txz", FormatTarXz},
	{".tar.zst", FormatTarZst},
	{".tzst", FormatTarZst},
	{".nar.xz", FormatNarXz},
	{".tar", FormatTar},
	{".zip", FormatZip},
	{".nar", FormatNar},
}

// DetectFormat infers the archive format from a URL or file name
func DetectFormat(url string) (ArchiveFormat, error) {
	name := strings.ToLower(url)
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	for _, s := range suffixes {
		if strings.HasSuffix(name, s.suffix) {
			return s.format, nil
		}
	}
	return "", fmt.Errorf("unsupported archive format: %s", path.Base(name))
}

// Predicate selects the hosts a component applies to. An empty Include
// matches every host; Exclude always wins.
type Predicate struct {
	Include []string `yaml:"include,omitempty" toml:"include" json:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty" toml:"exclude" json:"exclude,omitempty"`
}

// Matches reports whether the predicate selects the host
func (p Predicate) Matches(h platform.Host) bool {
	for _, pat := range p.Exclude {
		if h.Match(pat) {
			return false
		}
	}
	if len(p.Include) == 0 {
		return true
	}
	for _, pat := range p.Include {
		if h.Match(pat) {
			return true
		}
	}
	return false
}

// Override replaces a file shipped inside a staged component with a
// curated copy. The replacement is fetched and hash-checked like any artifact.
type Override struct {
	Name     string `yaml:"name" toml:"name" json:"name"`
	Path     string `yaml:"path" toml:"path" json:"path"` // relative to the staged directory
	URL      string `yaml:"url" toml:"url" json:"url"`
	SHA256   string `yaml:"sha256,omitempty" toml:"sha256" json:"sha256,omitempty"`
	Required bool   `yaml:"required,omitempty" toml:"required" json:"required,omitempty"`
}

// SetupStep is a script run from the staged directory after staging
type SetupStep struct {
	Script string            `yaml:"script" toml:"script" json:"script"` // relative to the staged directory
	Args   []string          `yaml:"args,omitempty" toml:"args" json:"args,omitempty"`
	Env    map[string]string `yaml:"env,omitempty" toml:"env" json:"env,omitempty"`
}

// ComponentSpec describes one independently sourced piece of the application
type ComponentSpec struct {
	ID            string            `yaml:"id" toml:"id" json:"id"`
	URL           string            `yaml:"url" toml:"url" json:"url"`
	SHA256        string            `yaml:"sha256" toml:"sha256" json:"sha256"`
	Kind          BuildKind         `yaml:"kind" toml:"kind" json:"kind"`
	Archive       ArchiveFormat     `yaml:"archive,omitempty" toml:"archive" json:"archive,omitempty"`
	Pattern       string            `yaml:"pattern,omitempty" toml:"pattern" json:"pattern,omitempty"`
	Platforms     Predicate         `yaml:"platforms,omitempty" toml:"platforms" json:"platforms,omitempty"`
	DependsOn     []string          `yaml:"depends_on,omitempty" toml:"depends_on" json:"depends_on,omitempty"`
	ConfigureArgs []string          `yaml:"configure_args,omitempty" toml:"configure_args" json:"configure_args,omitempty"`
	BuildEnv      map[string]string `yaml:"build_env,omitempty" toml:"build_env" json:"build_env,omitempty"`
	Overrides     []Override        `yaml:"overrides,omitempty" toml:"overrides" json:"overrides,omitempty"`
	Setup         *SetupStep        `yaml:"setup,omitempty" toml:"setup" json:"setup,omitempty"`
}

// Format returns the declared archive format, or the one inferred from the URL
func (c *ComponentSpec) Format() (ArchiveFormat, error) {
	if c.Archive != "" {
		return c.Archive, nil
	}
	return DetectFormat(c.URL)
}

// Validate checks that the component can be fetched and staged
func (c *ComponentSpec) Validate() error {
	invalid := func(format string, args ...any) error {
		return &Error{Op: "validate", Component: c.ID, Err: fmt.Errorf("%w: "+format, append([]any{ErrInvalidComponent}, args...)...)}
	}

	if c.ID == "" {
		return invalid("missing id")
	}
	if strings.ContainsAny(c.ID, `/\`) || c.ID == "." || c.ID == ".." {
		return invalid("id %q is not a valid directory name", c.ID)
	}
	if c.URL == "" {
		return invalid("missing url")
	}
	if !IsSHA256(c.SHA256) {
		return invalid("sha256 must be 64 hex characters, got %q", c.SHA256)
	}
	switch c.Kind {
	case KindPrebuilt, KindCompile:
	default:
		return invalid("unknown kind %q", c.Kind)
	}
	if _, err := c.Format(); err != nil {
		return invalid("%v", err)
	}
	if _, err := path.Match(c.Pattern, ""); err != nil {
		return invalid("bad pattern %q: %v", c.Pattern, err)
	}
	for _, o := range c.Overrides {
		if o.Name == "" || o.Path == "" || o.URL == "" {
			return invalid("override needs name, path and url")
		}
		if o.SHA256 != "" && !IsSHA256(o.SHA256) {
			return invalid("override %s: malformed sha256", o.Name)
		}
	}
	if c.Setup != nil && c.Setup.Script == "" {
		return invalid("setup step without script")
	}
	return nil
}

// IsSHA256 reports whether s is a hex-encoded SHA-256 digest
func IsSHA256(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
