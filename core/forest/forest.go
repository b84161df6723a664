// Package forest holds the versioned API data model: an arena of typed
// elements organised as ordered trees.
//
// A Forest is built once through a Builder and is read-only afterwards, so
// it can be shared between goroutines without locking.
package forest

import (
	"iter"
)

// Dialect names the source language of a forest. It drives difference code
// namespaces and the erasure rules used for method matching.
type Dialect string

const (
	DialectJava Dialect = "java"
	DialectGo   Dialect = "go"
)

// Predicate decides whether a candidate element is yielded by Search.
type Predicate func(*Element) bool

// Forest is the full element tree of one API version.
type Forest struct {
	dialect Dialect
	label   string
	store   []Element
	roots   []ID
}

// Dialect returns the source language of the forest.
func (f *Forest) Dialect() Dialect { return f.dialect }

// Label returns the human readable version label given at build time.
func (f *Forest) Label() string { return f.label }

// Len returns the number of elements in the forest.
func (f *Forest) Len() int { return len(f.store) }

// Element returns the element with the given id, or nil.
func (f *Forest) Element(id ID) *Element {
	if f == nil || id == NoID || int(id) > len(f.store) {
		return nil
	}
	return &f.store[id-1]
}

// RootIDs returns the ids of the root elements in order.
func (f *Forest) RootIDs() []ID { return f.roots }

// Roots returns the root elements in order.
func (f *Forest) Roots() []*Element {
	return f.resolve(f.roots)
}

// Children returns the direct children of e in declaration order.
func (f *Forest) Children(e *Element) []*Element {
	if e == nil {
		return nil
	}
	return f.resolve(e.Children)
}

// Parent returns the enclosing element of e, or nil for roots.
func (f *Forest) Parent(e *Element) *Element {
	if e == nil {
		return nil
	}
	return f.Element(e.Parent)
}

// Annotations returns the annotation children of e in declaration order.
func (f *Forest) Annotations(e *Element) []*Element {
	if e == nil {
		return nil
	}
	var out []*Element
	for _, id := range e.Children {
		if c := f.Element(id); c.Kind == Annotation {
			out = append(out, c)
		}
	}
	return out
}

// Owner returns the closest ancestor-or-self of e that is not an annotation.
func (f *Forest) Owner(e *Element) *Element {
	for e != nil && e.Kind == Annotation {
		e = f.Parent(e)
	}
	return e
}

// Path returns the kind-qualified path from the root to e.
func (f *Forest) Path(e *Element) Path {
	var rev Path
	for cur := e; cur != nil; cur = f.Parent(cur) {
		name := cur.Name
		if cur.Kind == Parameter {
			name = parameterSegmentName(cur.Parameter().Index)
		}
		if cur.Kind == Annotation {
			name = cur.Annotation().Type
		}
		rev = append(rev, Segment{Kind: cur.Kind, Name: name})
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}

// Search yields the elements of the requested kind reachable from the
// element with id from (the forest roots when from is NoID) in depth-first
// pre-order. When recursive is false only the direct children of from are
// considered. A non-nil pred must accept an element for it to be yielded; it
// never prunes descent.
func (f *Forest) Search(kind Kind, recursive bool, pred Predicate, from ID) iter.Seq[*Element] {
	return func(yield func(*Element) bool) {
		start := f.roots
		if from != NoID {
			e := f.Element(from)
			if e == nil {
				return
			}
			start = e.Children
		}
		f.walk(start, kind, recursive, pred, yield)
	}
}

func (f *Forest) walk(ids []ID, kind Kind, recursive bool, pred Predicate, yield func(*Element) bool) bool {
	for _, id := range ids {
		e := f.Element(id)
		if (kind == AnyKind || e.Kind == kind) && (pred == nil || pred(e)) {
			if !yield(e) {
				return false
			}
		}
		if recursive && !f.walk(e.Children, kind, recursive, pred, yield) {
			return false
		}
	}
	return true
}

// All yields every element in depth-first pre-order.
func (f *Forest) All() iter.Seq[*Element] {
	return f.Search(AnyKind, true, nil, NoID)
}

func (f *Forest) resolve(ids []ID) []*Element {
	out := make([]*Element, len(ids))
	for i, id := range ids {
		out[i] = f.Element(id)
	}
	return out
}
