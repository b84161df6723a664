// Package check defines the per-kind checks that turn corresponding
// elements into differences, and the dispatcher that runs them.
package check

import (
	"fmt"
	"maps"
	"slices"

	"github.com/emenda-labs/apidelta/core/changespec"
	"github.com/emenda-labs/apidelta/core/forest"
	"github.com/emenda-labs/apidelta/core/match"
)

// Check derives differences from one pair of corresponding elements.
//
// Visit receives nil for old on additions and nil for new on removals.
// Codes may be left unqualified (category.change); the dispatcher prefixes
// the dialect namespace. Checks must not mutate the forests and must be safe
// for concurrent use across entries.
type Check interface {
	Name() string
	Interest() forest.KindSet
	Visit(ctx *Context, old, new *forest.Element) ([]changespec.Difference, error)
}

// Context gives a check access to the forests of the pair being visited.
type Context struct {
	Old *forest.Forest
	New *forest.Forest
	// Key is the matching key of the visited entry.
	Key string

	// OldOwner and NewOwner are set when visiting annotations to the
	// elements of the annotated entry. Either may be nil.
	OldOwner *forest.Element
	NewOwner *forest.Element

	corr *match.Correspondence
}

// OldElement returns the element of the old forest with the given matching
// key, or nil.
func (c *Context) OldElement(key string) *forest.Element {
	if c.corr == nil {
		return nil
	}
	return c.corr.Lookup(match.SideOld, key)
}

// Dialect returns the dialect of the compared forests.
func (c *Context) Dialect() forest.Dialect {
	if c.New != nil {
		return c.New.Dialect()
	}
	return c.Old.Dialect()
}

// OldParent returns the parent of an old element.
func (c *Context) OldParent(e *forest.Element) *forest.Element {
	return c.Old.Parent(e)
}

// NewParent returns the parent of a new element.
func (c *Context) NewParent(e *forest.Element) *forest.Element {
	return c.New.Parent(e)
}

// OldCanonical renders the type of an old element with its type variables
// replaced by position.
func (c *Context) OldCanonical(e *forest.Element, t forest.TypeRef) string {
	return match.Canonical(c.Old.Dialect(), t, match.TypeVariables(c.Old, e))
}

// NewCanonical is OldCanonical for the new forest.
func (c *Context) NewCanonical(e *forest.Element, t forest.TypeRef) string {
	return match.Canonical(c.New.Dialect(), t, match.TypeVariables(c.New, e))
}

// Registry is an ordered set of checks. The order is the order in which
// checks run and their differences are reported.
type Registry struct {
	checks []Check
}

// NewRegistry builds a registry. It panics on duplicate names, which are
// programming errors.
func NewRegistry(checks ...Check) *Registry {
	r := &Registry{}
	for _, c := range checks {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
	return r
}

// Register appends a check.
func (r *Registry) Register(c Check) error {
	for _, existing := range r.checks {
		if existing.Name() == c.Name() {
			return fmt.Errorf("check %q registered twice", c.Name())
		}
	}
	r.checks = append(r.checks, c)
	return nil
}

// Checks returns the registered checks in order.
func (r *Registry) Checks() []Check {
	if r == nil {
		return nil
	}
	return r.checks
}

// Len returns the number of registered checks.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.checks)
}

// For returns the checks interested in kind, in registration order.
func (r *Registry) For(kind forest.Kind) []Check {
	var out []Check
	for _, c := range r.Checks() {
		if c.Interest().Has(kind) {
			out = append(out, c)
		}
	}
	return out
}

// Without returns a registry lacking the named checks. Unknown names are
// reported as an error so configuration typos surface.
func (r *Registry) Without(names ...string) (*Registry, error) {
	drop := map[string]bool{}
	for _, n := range names {
		drop[n] = true
	}
	out := &Registry{}
	for _, c := range r.Checks() {
		if drop[c.Name()] {
			delete(drop, c.Name())
			continue
		}
		out.checks = append(out.checks, c)
	}
	if len(drop) > 0 {
		return nil, fmt.Errorf("unknown checks %q", slices.Sorted(maps.Keys(drop)))
	}
	return out, nil
}
