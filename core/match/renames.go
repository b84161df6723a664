package match

import (
	"cmp"
	"slices"
	"strings"

	"github.com/emenda-labs/apidelta/core/forest"
)

const (
	// MinNameSimilarity is the minimum normalized Levenshtein similarity for fuzzy rename matching.
	MinNameSimilarity = 0.7

	// MinParamOverlap is the minimum Jaccard overlap on parameter and result types for fuzzy rename matching.
	MinParamOverlap = 0.8

	// ShortNameLength is the threshold below which stricter name similarity is required.
	ShortNameLength = 4

	// ShortNameMinSimilarity is the stricter threshold for names shorter than ShortNameLength.
	ShortNameMinSimilarity = 0.85
)

// Confidence grades a rename hint.
type Confidence string

const (
	// ConfidenceHigh marks a unique member with an identical shape.
	ConfidenceHigh Confidence = "high"
	// ConfidenceMedium marks a member with a similar name and similar types.
	ConfidenceMedium Confidence = "medium"
)

// Rename pairs a removed entry with the added entry that likely replaces it.
// The indexes point into Correspondence.Entries. Renames never change the
// matching itself; they only explain a removal.
type Rename struct {
	Removed    int
	Added      int
	Confidence Confidence
}

// renameCandidate is an unmatched method or field with the shape it is
// compared by.
type renameCandidate struct {
	entry  int
	scope  string
	name   string
	kind   forest.Kind
	shape  string
	types  []string
	taken  bool
	method bool
}

// Renames looks for removed methods and fields that reappear under another
// name in the same owner. Two passes run in order:
//
//  1. shape: a removed member whose shape (erased parameters and canonical
//     results, or field type) matches exactly one added member of the same
//     owner, and no other removed member. Methods without parameters and
//     results are skipped since their shape says nothing.
//  2. fuzzy: remaining methods whose names are similar and whose parameter
//     and result types mostly overlap, best score first.
func Renames(c *Correspondence) []Rename {
	var removed, added []*renameCandidate
	for i, e := range c.Entries {
		if e.Kind != forest.Method && e.Kind != forest.Field {
			continue
		}
		switch {
		case e.Removed():
			removed = append(removed, newRenameCandidate(c.Old, c.Old.Element(e.Old), e, i))
		case e.Added():
			added = append(added, newRenameCandidate(c.New, c.New.Element(e.New), e, i))
		}
	}
	if len(removed) == 0 || len(added) == 0 {
		return nil
	}

	var out []Rename
	out = append(out, renamesByShape(removed, added)...)
	out = append(out, fuzzyRenames(removed, added)...)
	slices.SortFunc(out, func(a, b Rename) int { return cmp.Compare(a.Removed, b.Removed) })
	return out
}

func newRenameCandidate(f *forest.Forest, e *forest.Element, entry Entry, index int) *renameCandidate {
	rc := &renameCandidate{entry: index, name: e.Name, kind: e.Kind}
	if i := strings.LastIndex(entry.Key, "::"); e.Kind == forest.Method && i >= 0 {
		rc.scope = entry.Key[:i]
	} else if i := strings.LastIndexByte(entry.Key, '#'); i >= 0 {
		rc.scope = entry.Key[:i]
	}

	vars := TypeVariables(f, e)
	switch e.Kind {
	case forest.Method:
		rc.method = true
		rc.types = ErasedSignature(f, e)
		params := strings.Join(rc.types, ",")
		var results []string
		if info := e.Method(); info != nil {
			for _, r := range info.Results {
				results = append(results, Canonical(f.Dialect(), r, vars))
			}
		}
		rc.types = append(rc.types, results...)
		if len(rc.types) > 0 {
			rc.shape = "(" + params + ")" + strings.Join(results, ",")
		}
	case forest.Field:
		if info := e.Field(); info != nil {
			rc.shape = Canonical(f.Dialect(), info.Type, vars)
		}
	}
	return rc
}

// renamesByShape runs the exact pass. Collisions on either side are left to
// the fuzzy pass.
func renamesByShape(removed, added []*renameCandidate) []Rename {
	type shapeKey struct {
		scope string
		kind  forest.Kind
		shape string
	}
	group := func(cands []*renameCandidate) map[shapeKey][]*renameCandidate {
		m := map[shapeKey][]*renameCandidate{}
		for _, rc := range cands {
			if rc.shape == "" {
				continue
			}
			k := shapeKey{rc.scope, rc.kind, rc.shape}
			m[k] = append(m[k], rc)
		}
		return m
	}
	addedByShape := group(added)

	var out []Rename
	for k, olds := range group(removed) {
		news := addedByShape[k]
		if len(olds) != 1 || len(news) != 1 {
			continue
		}
		olds[0].taken, news[0].taken = true, true
		out = append(out, Rename{Removed: olds[0].entry, Added: news[0].entry, Confidence: ConfidenceHigh})
	}
	return out
}

// scoredPair holds a candidate fuzzy match with its composite score.
type scoredPair struct {
	old   *renameCandidate
	new   *renameCandidate
	score float64
}

// fuzzyRenames runs the greedy similarity pass over the methods left.
func fuzzyRenames(removed, added []*renameCandidate) []Rename {
	var candidates []scoredPair
	for _, o := range removed {
		if o.taken || !o.method {
			continue
		}
		for _, n := range added {
			if n.taken || !n.method || n.scope != o.scope {
				continue
			}

			nameSim := nameSimilarity(o.name, n.name)
			overlap := typeOverlap(o.types, n.types)

			nameThreshold := MinNameSimilarity
			if max(len(o.name), len(n.name)) < ShortNameLength {
				nameThreshold = ShortNameMinSimilarity
			}
			if nameSim >= nameThreshold && overlap >= MinParamOverlap {
				candidates = append(candidates, scoredPair{old: o, new: n, score: nameSim * overlap})
			}
		}
	}

	// Descending score, ties by declaration order.
	slices.SortStableFunc(candidates, func(a, b scoredPair) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.old.entry, b.old.entry); c != 0 {
			return c
		}
		return cmp.Compare(a.new.entry, b.new.entry)
	})

	var out []Rename
	for _, p := range candidates {
		if p.old.taken || p.new.taken {
			continue
		}
		p.old.taken, p.new.taken = true, true
		out = append(out, Rename{Removed: p.old.entry, Added: p.new.entry, Confidence: ConfidenceMedium})
	}
	return out
}

// levenshteinDistance computes the edit distance between two strings.
func levenshteinDistance(a, b string) int {
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	// Use two rows instead of full matrix.
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)

	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[lb]
}

// nameSimilarity returns the normalized Levenshtein similarity between two strings.
// Returns a value in [0.0, 1.0] where 1.0 means identical.
func nameSimilarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	maxLen := max(len(a), len(b))
	return 1.0 - float64(levenshteinDistance(a, b))/float64(maxLen)
}

// typeOverlap computes the Jaccard similarity of two type multisets. Two
// empty sets overlap fully.
func typeOverlap(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}

	counts := make(map[string][2]int)
	for _, t := range a {
		c := counts[t]
		c[0]++
		counts[t] = c
	}
	for _, t := range b {
		c := counts[t]
		c[1]++
		counts[t] = c
	}

	// Jaccard on multisets: intersection = sum of min counts, union = sum of max counts.
	var intersection, union int
	for _, c := range counts {
		intersection += min(c[0], c[1])
		union += max(c[0], c[1])
	}
	return float64(intersection) / float64(union)
}
