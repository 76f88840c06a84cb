// env.go
package build

import (
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Env is an immutable set of environment variables handed to one build.
// Every modifier returns a copy, so a value prepared for one component can
// never leak into a sibling's build.
type Env struct {
	vars map[string]string
}

// NewEnv builds an Env from KEY=VALUE pairs, as returned by os.Environ
func NewEnv(pairs []string) Env {
	vars := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, _ := strings.Cut(kv, "=")
		if k == "" {
			continue
		}
		vars[k] = v
	}
	return Env{vars: vars}
}

// SnapshotEnv copies the current process environment. The process
// environment itself is only read, never written.
func SnapshotEnv() Env {
	return NewEnv(os.Environ())
}

// Get returns the value of key
func (e Env) Get(key string) (string, bool) {
	v, ok := e.vars[key]
	return v, ok
}

// With returns a copy with key set to value
func (e Env) With(key, value string) Env {
	vars := maps.Clone(e.vars)
	if vars == nil {
		vars = make(map[string]string)
	}
	vars[key] = value
	return Env{vars: vars}
}

// WithAll returns a copy with every entry of m set
func (e Env) WithAll(m map[string]string) Env {
	vars := maps.Clone(e.vars)
	if vars == nil {
		vars = make(map[string]string, len(m))
	}
	maps.Copy(vars, m)
	return Env{vars: vars}
}

// PrependPath returns a copy with dir placed first in the list variable key
func (e Env) PrependPath(key, dir string) Env {
	old, ok := e.vars[key]
	if !ok || old == "" {
		return e.With(key, dir)
	}
	return e.With(key, dir+string(filepath.ListSeparator)+old)
}

// Environ returns the variables as sorted KEY=VALUE pairs for exec.Cmd.Env
func (e Env) Environ() []string {
	keys := slices.Sorted(maps.Keys(e.vars))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+e.vars[k])
	}
	return out
}

// Len returns the number of variables
func (e Env) Len() int {
	return len(e.vars)
}
