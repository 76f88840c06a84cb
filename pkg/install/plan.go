// pkg/install/plan.go
package install

import (
	"fmt"
	"strings"

	"github.com/arc-language/bundlekit/pkg/core"
	"github.com/arc-language/bundlekit/pkg/platform"
)

// Plan is the ordered, host-filtered list of components for one run
type Plan struct {
	Host       platform.Host
	Components []core.ComponentSpec
}

// NewPlan keeps the specs whose predicate matches h and orders them so
// every component follows the components it depends on. Among components
// that are ready at the same time, table order is kept.
func NewPlan(specs []core.ComponentSpec, h platform.Host) (*Plan, error) {
	var selected []core.ComponentSpec
	index := make(map[string]int)
	for _, s := range specs {
		if !s.Platforms.Matches(h) {
			continue
		}
		if _, dup := index[s.ID]; dup {
			return nil, fmt.Errorf("component %s is selected twice for %s", s.ID, h)
		}
		index[s.ID] = len(selected)
		selected = append(selected, s)
	}

	// in-degree per component and reverse edges
	pending := make([]int, len(selected))
	dependents := make([][]int, len(selected))
	for i, s := range selected {
		for _, dep := range s.DependsOn {
			j, ok := index[dep]
			if !ok {
				return nil, &core.Error{Op: "plan", Component: s.ID,
					Err: fmt.Errorf("%w: %s is not available for %s", core.ErrUnresolvedDependency, dep, h)}
			}
			if j == i {
				return nil, &core.Error{Op: "plan", Component: s.ID, Err: fmt.Errorf("%w: depends on itself", core.ErrDependencyCycle)}
			}
			pending[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	done := make([]bool, len(selected))
	ordered := make([]core.ComponentSpec, 0, len(selected))
	for len(ordered) < len(selected) {
		next := -1
		for i := range selected {
			if !done[i] && pending[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			var stuck []string
			for i, s := range selected {
				if !done[i] {
					stuck = append(stuck, s.ID)
				}
			}
			return nil, &core.Error{Op: "plan", Err: fmt.Errorf("%w among %s", core.ErrDependencyCycle, strings.Join(stuck, ", "))}
		}

		done[next] = true
		ordered = append(ordered, selected[next])
		for _, d := range dependents[next] {
			pending[d]--
		}
	}

	return &Plan{Host: h, Components: ordered}, nil
}

// IDs returns the component IDs in install order
func (p *Plan) IDs() []string {
	ids := make([]string, len(p.Components))
	for i, c := range p.Components {
		ids[i] = c.ID
	}
	return ids
}

// Has reports whether the plan contains id
func (p *Plan) Has(id string) bool {
	for _, c := range p.Components {
		if c.ID == id {
			return true
		}
	}
	return false
}
