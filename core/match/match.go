// Package match pairs the elements of an old and a new API forest by their
// matching keys.
package match

import (
	"strings"

	"github.com/emenda-labs/apidelta/core/filter"
	"github.com/emenda-labs/apidelta/core/forest"
)

// Entry is one unit of the correspondence between two forests. Old is NoID
// for additions, New is NoID for removals.
type Entry struct {
	Key  string
	Kind forest.Kind
	Old  forest.ID
	New  forest.ID

	// Annotations pairs the annotations of the entry's elements.
	Annotations []Entry
}

// Matched reports whether the entry has an element on both sides.
func (e Entry) Matched() bool { return e.Old != forest.NoID && e.New != forest.NoID }

// Added reports whether the entry exists only in the new forest.
func (e Entry) Added() bool { return e.Old == forest.NoID && e.New != forest.NoID }

// Removed reports whether the entry exists only in the old forest.
func (e Entry) Removed() bool { return e.Old != forest.NoID && e.New == forest.NoID }

// Options tunes Match.
type Options struct {
	// OldView and NewView restrict the elements taking part on each side.
	// A nil view includes everything.
	OldView *filter.View
	NewView *filter.View

	// DescendUnmatched also reports the descendants of added and removed
	// elements instead of letting the top-most element stand for its subtree.
	DescendUnmatched bool
}

// Correspondence is the result of matching two forests.
type Correspondence struct {
	Old *forest.Forest
	New *forest.Forest

	// Entries lists parents before their children: old declaration order
	// first, then elements only the new forest declares.
	Entries []Entry

	// Diagnostics holds the *DuplicateKeyError values found on either side.
	Diagnostics []error

	oldByKey map[string]forest.ID
	newByKey map[string]forest.ID
}

// Lookup returns the element of the given side with the given matching key,
// or nil. Duplicates resolve to the first declared element.
func (c *Correspondence) Lookup(side Side, key string) *forest.Element {
	if side == SideOld {
		return c.Old.Element(c.oldByKey[key])
	}
	return c.New.Element(c.newByKey[key])
}

// Elements resolves the elements of an entry. Either may be nil.
func (c *Correspondence) Elements(e Entry) (oldElem, newElem *forest.Element) {
	return c.Old.Element(e.Old), c.New.Element(e.New)
}

// Counts tallies top-level entries by category.
func (c *Correspondence) Counts() (matched, added, removed int) {
	for _, e := range c.Entries {
		switch {
		case e.Matched():
			matched++
		case e.Added():
			added++
		case e.Removed():
			removed++
		}
	}
	return matched, added, removed
}

// Match pairs the elements of old and new. An element is present on a side
// when it exists there and the side's view includes it; entries whose key is
// present on neither side are omitted, though matching continues below them.
//
// Children are only paired under corresponding parents. A method whose key
// has no counterpart there is still paired with the one method of the same
// name and parameter count left on the other side, so that parameter type
// changes are reported per index; the entry keeps the old key.
func Match(old, new *forest.Forest, opts Options) *Correspondence {
	c := &Correspondence{Old: old, New: new}
	m := &matcher{opts: opts, out: c}
	m.old = m.index(SideOld, old, opts.OldView)
	m.new = m.index(SideNew, new, opts.NewView)
	c.oldByKey, c.newByKey = m.old.byKey, m.new.byKey
	m.level(old.RootIDs(), new.RootIDs())
	return c
}

type sideIndex struct {
	forest *forest.Forest
	keys   []string
	byKey  map[string]forest.ID
	view   *filter.View
	// skip marks duplicates and their subtrees.
	skip []bool
}

func (s *sideIndex) candidate(id forest.ID) bool {
	e := s.forest.Element(id)
	return e != nil && e.Kind != forest.Annotation && !s.skip[id-1]
}

func (s *sideIndex) included(id forest.ID) bool {
	return id != forest.NoID && s.view.Included(id)
}

// local returns the key of id relative to its parent's key. Package and type
// keys are absolute and returned whole.
func (s *sideIndex) local(id forest.ID) string {
	key := s.keys[id-1]
	if parent := s.forest.Element(id).Parent; parent != forest.NoID {
		if pk := s.keys[parent-1]; strings.HasPrefix(key, pk) {
			return key[len(pk):]
		}
	}
	return key
}

// siblings indexes the candidates of one sibling list by local key.
func (s *sideIndex) siblings(ids []forest.ID) map[string]forest.ID {
	out := make(map[string]forest.ID, len(ids))
	for _, id := range ids {
		if s.candidate(id) {
			out[s.local(id)] = id
		}
	}
	return out
}

type matcher struct {
	opts Options
	old  *sideIndex
	new  *sideIndex
	out  *Correspondence
}

func (m *matcher) index(side Side, f *forest.Forest, view *filter.View) *sideIndex {
	idx := &sideIndex{
		forest: f,
		keys:   Keys(f),
		byKey:  make(map[string]forest.ID, f.Len()),
		view:   view,
		skip:   make([]bool, f.Len()),
	}
	for e := range f.All() {
		if e.Parent != forest.NoID && idx.skip[e.Parent-1] {
			idx.skip[e.ID-1] = true
			continue
		}
		key := idx.keys[e.ID-1]
		if first, ok := idx.byKey[key]; ok {
			idx.skip[e.ID-1] = true
			m.out.Diagnostics = append(m.out.Diagnostics, &DuplicateKeyError{
				Side:      side,
				Key:       key,
				First:     first,
				Duplicate: e.ID,
				Path:      f.Path(e).String(),
			})
			continue
		}
		idx.byKey[key] = e.ID
	}
	return idx
}

// level matches two sibling lists whose parents correspond.
func (m *matcher) level(oldIDs, newIDs []forest.ID) {
	oldByKey, newByKey := m.old.siblings(oldIDs), m.new.siblings(newIDs)
	byShape := m.methodsByShape(oldIDs, newIDs, oldByKey, newByKey)

	pairedNew := map[forest.ID]bool{}
	for _, id := range oldIDs {
		if !m.old.candidate(id) {
			continue
		}
		key := m.old.keys[id-1]
		nid, ok := newByKey[m.old.local(id)]
		if !ok {
			nid, ok = byShape[id]
		}
		if ok {
			pairedNew[nid] = true
			m.pair(key, id, nid)
		} else {
			m.unmatched(m.old, id)
		}
	}
	for _, id := range newIDs {
		if !m.new.candidate(id) || pairedNew[id] {
			continue
		}
		m.unmatched(m.new, id)
	}
}

// methodShape identifies a method among its siblings when its key does not.
type methodShape struct {
	name   string
	params int
}

// methodsByShape pairs the methods of two sibling lists that have no key
// counterpart, when their name and parameter count is unique on both sides.
func (m *matcher) methodsByShape(oldIDs, newIDs []forest.ID, oldByKey, newByKey map[string]forest.ID) map[forest.ID]forest.ID {
	group := func(side *sideIndex, ids []forest.ID, other map[string]forest.ID) map[methodShape][]forest.ID {
		out := map[methodShape][]forest.ID{}
		for _, id := range ids {
			if !side.candidate(id) {
				continue
			}
			e := side.forest.Element(id)
			if e.Kind != forest.Method {
				continue
			}
			if _, ok := other[side.local(id)]; ok {
				continue
			}
			k := methodShape{e.Name, parameterCount(side.forest, e)}
			out[k] = append(out[k], id)
		}
		return out
	}
	oldLeft := group(m.old, oldIDs, newByKey)
	if len(oldLeft) == 0 {
		return nil
	}
	newLeft := group(m.new, newIDs, oldByKey)

	pairs := map[forest.ID]forest.ID{}
	for k, olds := range oldLeft {
		if news := newLeft[k]; len(olds) == 1 && len(news) == 1 {
			pairs[olds[0]] = news[0]
		}
	}
	return pairs
}

func parameterCount(f *forest.Forest, method *forest.Element) int {
	n := 0
	for range f.Search(forest.Parameter, false, nil, method.ID) {
		n++
	}
	return n
}

// pair handles elements that correspond in both forests. Filtering decides
// which sides are present; the children are matched either way.
func (m *matcher) pair(key string, oid, nid forest.ID) {
	oe, ne := m.old.forest.Element(oid), m.new.forest.Element(nid)
	entry := Entry{Key: key, Kind: oe.Kind}
	if m.old.included(oid) {
		entry.Old = oid
	}
	if m.new.included(nid) {
		entry.New = nid
	}
	if entry.Old != forest.NoID || entry.New != forest.NoID {
		if entry.Matched() || m.opts.DescendUnmatched {
			entry.Annotations = m.annotations(entry.Old, entry.New)
		}
		m.out.Entries = append(m.out.Entries, entry)
	}
	m.level(oe.Children, ne.Children)
}

// unmatched handles an element that exists in one forest only.
func (m *matcher) unmatched(side *sideIndex, id forest.ID) {
	e := side.forest.Element(id)
	if side.included(id) {
		entry := Entry{Key: side.keys[id-1], Kind: e.Kind}
		if side == m.old {
			entry.Old = id
		} else {
			entry.New = id
		}
		if m.opts.DescendUnmatched {
			entry.Annotations = m.annotations(entry.Old, entry.New)
		}
		m.out.Entries = append(m.out.Entries, entry)
		if !m.opts.DescendUnmatched {
			return
		}
	}
	// Excluded elements still surface their top-most included descendants.
	for _, c := range e.Children {
		if side.candidate(c) {
			m.unmatched(side, c)
		}
	}
}

func (m *matcher) annotations(oid, nid forest.ID) []Entry {
	var out []Entry
	oe, ne := m.old.forest.Element(oid), m.new.forest.Element(nid)
	newAnns := map[string]forest.ID{}
	if ne != nil {
		for _, a := range m.new.forest.Annotations(ne) {
			newAnns[m.new.local(a.ID)] = a.ID
		}
	}
	paired := map[string]bool{}
	if oe != nil {
		for _, a := range m.old.forest.Annotations(oe) {
			local := m.old.local(a.ID)
			paired[local] = true
			out = append(out, Entry{Key: m.old.keys[a.ID-1], Kind: forest.Annotation, Old: a.ID, New: newAnns[local]})
		}
	}
	if ne != nil {
		for _, a := range m.new.forest.Annotations(ne) {
			if paired[m.new.local(a.ID)] {
				continue
			}
			out = append(out, Entry{Key: m.new.keys[a.ID-1], Kind: forest.Annotation, New: a.ID})
		}
	}
	return out
}
