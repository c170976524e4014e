// Package domains holds the concrete master-data hierarchies the console cascades over.
package domains

import (
	"sort"

	"github.com/agencydesk/mdconsole/pkg/hierarchy"
)

const (
	Geography = "geography"
	Agency    = "agency"
	Insurance = "insurance"
	Expense   = "expense"
	Customer  = "customer"
)

type Registry struct {
	byName map[string]*hierarchy.Hierarchy
}

func NewRegistry(hierarchies ...*hierarchy.Hierarchy) *Registry {
	r := &Registry{byName: make(map[string]*hierarchy.Hierarchy, len(hierarchies))}
	for _, h := range hierarchies {
		r.byName[h.Name] = h
	}
	return r
}

// Default returns the five built-in domains.
func Default() *Registry {
	return NewRegistry(
		GeographyHierarchy(),
		AgencyHierarchy(),
		InsuranceHierarchy(),
		ExpenseHierarchy(),
		CustomerHierarchy(),
	)
}

func (r *Registry) Get(name string) (*hierarchy.Hierarchy, bool) {
	h, ok := r.byName[name]
	return h, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
