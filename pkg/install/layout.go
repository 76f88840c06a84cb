// pkg/install/layout.go
package install

import (
	"fmt"
	"maps"

	"github.com/arc-language/bundlekit/pkg/core"
)

// Layout maps component IDs to installed paths. Each key is written once,
// after its component fully staged.
type Layout struct {
	entries map[string]string
	order   []string
}

var _ core.StagingLayout = (*Layout)(nil)

// NewLayout returns an empty layout
func NewLayout() *Layout {
	return &Layout{entries: make(map[string]string)}
}

// Set records the installed path of a component
func (l *Layout) Set(id, path string) error {
	if _, ok := l.entries[id]; ok {
		return fmt.Errorf("%s: %w", id, core.ErrLayoutEntryExists)
	}
	l.entries[id] = path
	l.order = append(l.order, id)
	return nil
}

// Path returns the installed path of a component
func (l *Layout) Path(id string) (string, bool) {
	p, ok := l.entries[id]
	return p, ok
}

// IDs returns the recorded components in the order they completed
func (l *Layout) IDs() []string {
	return append([]string(nil), l.order...)
}

// Entries returns a copy of the mapping
func (l *Layout) Entries() map[string]string {
	return maps.Clone(l.entries)
}
