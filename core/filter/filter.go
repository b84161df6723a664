// Package filter decides which forest elements take part in an analysis.
package filter

import (
	"github.com/emenda-labs/apidelta/core/forest"
)

// Decision is the verdict of a filter on one element.
type Decision uint8

const (
	Undecided Decision = iota
	Include
	Exclude
)

func (d Decision) String() string {
	switch d {
	case Include:
		return "include"
	case Exclude:
		return "exclude"
	default:
		return "undecided"
	}
}

// Filter tests single elements. Implementations must be safe for concurrent
// use once constructed.
type Filter interface {
	Name() string
	Test(f *forest.Forest, e *forest.Element) Decision
}

// Chain composes filters in precedence order: the first filter that reaches
// a decision wins, so an Include from an earlier filter overrides an Exclude
// from a later one. Elements nobody decides on are included.
type Chain struct {
	filters []Filter
}

// NewChain builds a chain. Nil filters are skipped.
func NewChain(filters ...Filter) *Chain {
	c := &Chain{}
	for _, f := range filters {
		if f != nil {
			c.filters = append(c.filters, f)
		}
	}
	return c
}

// Len returns the number of active filters.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.filters)
}

// Decide returns the first decisive verdict of the chain.
func (c *Chain) Decide(f *forest.Forest, e *forest.Element) Decision {
	if c == nil {
		return Undecided
	}
	for _, flt := range c.filters {
		if d := flt.Test(f, e); d != Undecided {
			return d
		}
	}
	return Undecided
}

// Accept reports whether e is included.
func (c *Chain) Accept(f *forest.Forest, e *forest.Element) bool {
	return c.Decide(f, e) != Exclude
}

// Predicate adapts the chain for forest.Search.
func (c *Chain) Predicate(f *forest.Forest) forest.Predicate {
	return func(e *forest.Element) bool {
		return c.Accept(f, e)
	}
}

// View is the evaluated inclusion set of one forest.
type View struct {
	included []bool
}

// View evaluates the chain over every element of f once. Annotation
// elements share the verdict of the element they annotate.
func (c *Chain) View(f *forest.Forest) *View {
	v := &View{included: make([]bool, f.Len())}
	for e := range f.All() {
		if e.Kind == forest.Annotation {
			continue
		}
		v.included[e.ID-1] = c.Accept(f, e)
	}
	for e := range f.Search(forest.Annotation, true, nil, forest.NoID) {
		if owner := f.Owner(e); owner != nil {
			v.included[e.ID-1] = v.included[owner.ID-1]
		}
	}
	return v
}

// Included reports whether the element with the given id is part of the
// view. A nil view includes everything.
func (v *View) Included(id forest.ID) bool {
	if v == nil {
		return true
	}
	if id == forest.NoID || int(id) > len(v.included) {
		return false
	}
	return v.included[id-1]
}
