package match

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/emenda-labs/apidelta/core/filter"
	"github.com/emenda-labs/apidelta/core/forest"
)

type row struct {
	Key   string
	State string
}

func state(e Entry) string {
	switch {
	case e.Matched():
		return "matched"
	case e.Added():
		return "added"
	default:
		return "removed"
	}
}

func rows(c *Correspondence) []row {
	out := make([]row, 0, len(c.Entries))
	for _, e := range c.Entries {
		out = append(out, row{e.Key, state(e)})
	}
	return out
}

func mustBuild(t *testing.T, b *forest.Builder) *forest.Forest {
	t.Helper()
	f, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return f
}

func method(b *forest.Builder, owner forest.ID, name string, params ...string) forest.ID {
	id := b.AddMethod(owner, name, forest.Public, nil)
	for i, p := range params {
		b.AddParameter(id, "p"+string(rune('a'+i)), forest.TypeRef{Name: p})
	}
	return id
}

// widgets builds a forest with type p.A holding m(int) and the named field,
// plus a sibling type.
func widgets(t *testing.T, field, sibling string) *forest.Forest {
	t.Helper()
	b := forest.NewBuilder(forest.DialectJava, field)
	a := b.AddType(forest.NoID, "p.A", forest.Public, nil)
	method(b, a, "m", "int")
	b.AddField(a, field, forest.Public, &forest.FieldInfo{Type: forest.TypeRef{Name: "int"}})
	s := b.AddType(forest.NoID, sibling, forest.Public, nil)
	method(b, s, "run")
	return mustBuild(t, b)
}

func TestMatch_Basic(t *testing.T) {
	old := widgets(t, "f", "p.B")
	new := widgets(t, "g", "p.C")

	got := rows(Match(old, new, Options{}))
	want := []row{
		{"type p.A", "matched"},
		{"type p.A::m(int)", "matched"},
		{"type p.A::m(int)[0]", "matched"},
		{"type p.A#f", "removed"},
		{"type p.A#g", "added"},
		{"type p.B", "removed"},
		{"type p.C", "added"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Match() mismatch (-want +got):\n%s", diff)
	}
}

func TestMatch_DescendUnmatched(t *testing.T) {
	old := widgets(t, "f", "p.B")
	new := widgets(t, "g", "p.C")

	got := rows(Match(old, new, Options{DescendUnmatched: true}))
	want := []row{
		{"type p.A", "matched"},
		{"type p.A::m(int)", "matched"},
		{"type p.A::m(int)[0]", "matched"},
		{"type p.A#f", "removed"},
		{"type p.A#g", "added"},
		{"type p.B", "removed"},
		{"type p.B::run()", "removed"},
		{"type p.C", "added"},
		{"type p.C::run()", "added"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Match() mismatch (-want +got):\n%s", diff)
	}
}

func TestMatch_PartitionsKeyUnion(t *testing.T) {
	old := widgets(t, "f", "p.B")
	new := widgets(t, "g", "p.C")
	c := Match(old, new, Options{DescendUnmatched: true})

	keySet := func(f *forest.Forest) map[string]bool {
		keys := Keys(f)
		set := map[string]bool{}
		for e := range f.All() {
			if e.Kind != forest.Annotation {
				set[keys[e.ID-1]] = true
			}
		}
		return set
	}
	oldKeys, newKeys := keySet(old), keySet(new)

	seen := map[string]int{}
	for _, e := range c.Entries {
		seen[e.Key]++
		want := "matched"
		switch {
		case !newKeys[e.Key]:
			want = "removed"
		case !oldKeys[e.Key]:
			want = "added"
		}
		if got := state(e); got != want {
			t.Errorf("entry %q is %s, want %s", e.Key, got, want)
		}
	}
	for _, set := range []map[string]bool{oldKeys, newKeys} {
		for k := range set {
			if seen[k] != 1 {
				t.Errorf("key %q covered %d times, want 1", k, seen[k])
			}
		}
	}
}

func TestMatch_Idempotent(t *testing.T) {
	old := widgets(t, "f", "p.B")
	new := widgets(t, "g", "p.C")

	first := Match(old, new, Options{})
	second := Match(old, new, Options{})
	if diff := cmp.Diff(first.Entries, second.Entries); diff != "" {
		t.Errorf("repeated Match() differs (-first +second):\n%s", diff)
	}
}

func TestMatch_SwappedParameterTypes(t *testing.T) {
	build := func(params ...string) *forest.Forest {
		b := forest.NewBuilder(forest.DialectJava, "t")
		a := b.AddType(forest.NoID, "p.A", forest.Public, nil)
		m := method(b, a, "m", params...)
		b.AddAnnotation(m, "Beta")
		return mustBuild(t, b)
	}
	old := build("int", "java.lang.String")
	new := build("String", "int")

	c := Match(old, new, Options{})
	want := []row{
		{"type p.A", "matched"},
		{"type p.A::m(int,String)", "matched"},
		{"type p.A::m(int,String)[0]", "matched"},
		{"type p.A::m(int,String)[1]", "matched"},
	}
	if diff := cmp.Diff(want, rows(c)); diff != "" {
		t.Errorf("Match() mismatch (-want +got):\n%s", diff)
	}
	if anns := c.Entries[1].Annotations; len(anns) != 1 || !anns[0].Matched() {
		t.Errorf("method annotations = %+v, want @Beta matched", anns)
	}
}

func TestMatch_AmbiguousOverloadsStayUnmatched(t *testing.T) {
	b := forest.NewBuilder(forest.DialectJava, "old")
	a := b.AddType(forest.NoID, "p.A", forest.Public, nil)
	method(b, a, "m", "int")
	method(b, a, "m", "long")
	method(b, a, "m", "int", "int")
	old := mustBuild(t, b)

	b = forest.NewBuilder(forest.DialectJava, "new")
	a = b.AddType(forest.NoID, "p.A", forest.Public, nil)
	method(b, a, "m", "short")
	method(b, a, "m", "int", "long")
	new := mustBuild(t, b)

	got := rows(Match(old, new, Options{}))
	want := []row{
		{"type p.A", "matched"},
		{"type p.A::m(int)", "removed"},
		{"type p.A::m(long)", "removed"},
		{"type p.A::m(int,int)", "matched"},
		{"type p.A::m(int,int)[0]", "matched"},
		{"type p.A::m(int,int)[1]", "matched"},
		{"type p.A::m(short)", "added"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Match() mismatch (-want +got):\n%s", diff)
	}
}

func TestMatch_ChildrenPairOnlyUnderMatchedParents(t *testing.T) {
	b := forest.NewBuilder(forest.DialectJava, "old")
	method(b, b.AddType(forest.NoID, "p.A", forest.Public, nil), "run")
	old := mustBuild(t, b)

	b = forest.NewBuilder(forest.DialectJava, "new")
	pkg := b.AddPackage("p")
	method(b, b.AddType(pkg, "p.A", forest.Public, nil), "run")
	new := mustBuild(t, b)

	c := Match(old, new, Options{DescendUnmatched: true})
	want := []row{
		{"type p.A", "removed"},
		{"type p.A::run()", "removed"},
		{"package p", "added"},
		{"type p.A", "added"},
		{"type p.A::run()", "added"},
	}
	if diff := cmp.Diff(want, rows(c)); diff != "" {
		t.Errorf("Match() mismatch (-want +got):\n%s", diff)
	}
	if got := c.Lookup(SideNew, "type p.A"); got == nil || got.Parent == forest.NoID {
		t.Errorf("Lookup(new, type p.A) = %+v, want the nested type", got)
	}
}

func TestMatch_ErasureIgnoresTypeVariableNames(t *testing.T) {
	build := func(tv string, bound []forest.TypeRef, arg string) *forest.Forest {
		b := forest.NewBuilder(forest.DialectJava, "t")
		a := b.AddType(forest.NoID, "p.A", forest.Public, nil)
		m := b.AddMethod(a, "put", forest.Public, &forest.MethodInfo{
			TypeParams: []forest.TypeParam{{Name: tv, Bounds: bound}},
		})
		b.AddParameter(m, "k", forest.TypeRef{Name: tv})
		b.AddParameter(m, "v", forest.TypeRef{Name: "java.util.List", Args: []forest.TypeRef{{Name: arg}}})
		return mustBuild(t, b)
	}
	old := build("T", nil, "String")
	new := build("U", []forest.TypeRef{{Name: "Number"}}, "Integer")

	c := Match(old, new, Options{})
	matched, added, removed := c.Counts()
	if matched != 4 || added != 0 || removed != 0 {
		t.Errorf("Counts() = %d, %d, %d; want 4 matched only: %v", matched, added, removed, rows(c))
	}
	if c.Entries[1].Key != "type p.A::put(Object,List)" {
		t.Errorf("method key = %q", c.Entries[1].Key)
	}
}

func TestMatch_DuplicateKeys(t *testing.T) {
	b := forest.NewBuilder(forest.DialectJava, "old")
	a := b.AddType(forest.NoID, "p.A", forest.Public, nil)
	first := method(b, a, "m", "java.util.List")
	dup := method(b, a, "m", "List")
	old := mustBuild(t, b)

	b = forest.NewBuilder(forest.DialectJava, "new")
	a = b.AddType(forest.NoID, "p.A", forest.Public, nil)
	method(b, a, "m", "List")
	new := mustBuild(t, b)

	c := Match(old, new, Options{})
	if len(c.Diagnostics) != 1 {
		t.Fatalf("Diagnostics = %v, want one", c.Diagnostics)
	}
	var dupErr *DuplicateKeyError
	if !errors.As(c.Diagnostics[0], &dupErr) {
		t.Fatalf("diagnostic %T is not a DuplicateKeyError", c.Diagnostics[0])
	}
	want := DuplicateKeyError{
		Side:      SideOld,
		Key:       "type p.A::m(List)",
		First:     first,
		Duplicate: dup,
		Path:      "type p.A/method m",
	}
	if diff := cmp.Diff(want, *dupErr); diff != "" {
		t.Errorf("DuplicateKeyError mismatch (-want +got):\n%s", diff)
	}

	for _, e := range c.Entries {
		if e.Old == dup || e.Old == dup+1 {
			t.Errorf("duplicate subtree took part in matching: %+v", e)
		}
	}
	if matched, added, removed := c.Counts(); matched != 3 || added+removed != 0 {
		t.Errorf("Counts() = %d, %d, %d; want 3 matched", matched, added, removed)
	}
}

func TestMatch_AnnotationEntries(t *testing.T) {
	build := func(anns ...forest.AnnotationInfo) *forest.Forest {
		b := forest.NewBuilder(forest.DialectJava, "t")
		a := b.AddType(forest.NoID, "p.A", forest.Public, nil)
		for _, ann := range anns {
			b.AddAnnotation(a, ann.Type, ann.Attributes...)
		}
		return mustBuild(t, b)
	}
	since := func(v string) forest.AnnotationInfo {
		return forest.AnnotationInfo{Type: "Since", Attributes: []forest.Attribute{{Name: "value", Value: v}}}
	}
	old := build(forest.AnnotationInfo{Type: "Deprecated"}, since(`"1"`))
	new := build(since(`"2"`), forest.AnnotationInfo{Type: "Beta"})

	c := Match(old, new, Options{})
	if len(c.Entries) != 1 {
		t.Fatalf("Entries = %v, want the type only", rows(c))
	}
	var got []row
	for _, e := range c.Entries[0].Annotations {
		got = append(got, row{e.Key, state(e)})
	}
	want := []row{
		{"type p.A@Deprecated#0", "removed"},
		{"type p.A@Since#0", "matched"},
		{"type p.A@Beta#0", "added"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("annotation entries mismatch (-want +got):\n%s", diff)
	}
}

func publicOnly(t *testing.T, f *forest.Forest) *filter.View {
	t.Helper()
	flt, err := filter.NewAnnotated(filter.AnnotatedConfig{Include: []string{"@Public"}})
	if err != nil {
		t.Fatal(err)
	}
	return filter.NewChain(flt).View(f)
}

func TestMatch_FilteredViews(t *testing.T) {
	// The type loses @Public while its method keeps it.
	build := func(public bool) *forest.Forest {
		b := forest.NewBuilder(forest.DialectJava, "t")
		a := b.AddType(forest.NoID, "p.A", forest.Public, nil)
		if public {
			b.AddAnnotation(a, "Public")
		}
		m := method(b, a, "m")
		b.AddAnnotation(m, "Public")
		method(b, a, "hidden")
		return mustBuild(t, b)
	}
	old, new := build(true), build(false)

	c := Match(old, new, Options{OldView: publicOnly(t, old), NewView: publicOnly(t, new)})
	want := []row{
		{"type p.A", "removed"},
		{"type p.A::m()", "matched"},
	}
	if diff := cmp.Diff(want, rows(c)); diff != "" {
		t.Errorf("Match() mismatch (-want +got):\n%s", diff)
	}
}

func TestMatch_ExcludedUnmatchedSurfacesIncludedDescendants(t *testing.T) {
	b := forest.NewBuilder(forest.DialectJava, "old")
	x := b.AddType(forest.NoID, "p.X", forest.Public, nil)
	m := method(b, x, "api")
	b.AddAnnotation(m, "Public")
	method(b, x, "impl")
	old := mustBuild(t, b)
	new := mustBuild(t, forest.NewBuilder(forest.DialectJava, "new"))

	c := Match(old, new, Options{OldView: publicOnly(t, old), NewView: publicOnly(t, new)})
	want := []row{{"type p.X::api()", "removed"}}
	if diff := cmp.Diff(want, rows(c)); diff != "" {
		t.Errorf("Match() mismatch (-want +got):\n%s", diff)
	}
}

func TestErase(t *testing.T) {
	vars := map[string]int{"K": 0, "V": 1}
	tests := []struct {
		dialect forest.Dialect
		in      forest.TypeRef
		want    string
	}{
		{forest.DialectJava, forest.TypeRef{Name: "K"}, "Object"},
		{forest.DialectJava, forest.TypeRef{Name: "java.util.Map", Args: []forest.TypeRef{{Name: "K"}, {Name: "V"}}}, "Map"},
		{forest.DialectJava, forest.TypeRef{Name: "int", Dims: 2}, "int[][]"},
		{forest.DialectJava, forest.TypeRef{Name: "String", Dims: 1, Variadic: true}, "String[]"},
		{forest.DialectGo, forest.TypeRef{Name: "map[K][]V"}, "map[$0][]$1"},
		{forest.DialectGo, forest.TypeRef{Name: "func(pkg.K) Key"}, "func(pkg.K) Key"},
		{forest.DialectGo, forest.TypeRef{Name: "*List[V]"}, "*List[$1]"},
	}
	for _, tt := range tests {
		if got := Erase(tt.dialect, tt.in, vars); got != tt.want {
			t.Errorf("Erase(%s, %v) = %q, want %q", tt.dialect, tt.in, got, tt.want)
		}
	}
}

func TestCanonical(t *testing.T) {
	vars := map[string]int{"T": 0}
	tests := []struct {
		dialect forest.Dialect
		in      forest.TypeRef
		want    string
	}{
		{forest.DialectJava, forest.TypeRef{Name: "T", Dims: 1}, "$0[]"},
		{forest.DialectJava, forest.TypeRef{Name: "java.util.List", Args: []forest.TypeRef{{Name: "T"}}}, "List<$0>"},
		{forest.DialectJava, forest.TypeRef{Name: "java.util.List", Args: []forest.TypeRef{{
			Name: forest.WildcardExtends, Args: []forest.TypeRef{{Name: "java.lang.Number"}},
		}}}, "List<? extends Number>"},
		{forest.DialectJava, forest.TypeRef{Name: "Comparator", Args: []forest.TypeRef{{
			Name: forest.WildcardSuper, Args: []forest.TypeRef{{Name: "T"}},
		}}}, "Comparator<? super $0>"},
		{forest.DialectJava, forest.TypeRef{}, "void"},
		{forest.DialectGo, forest.TypeRef{Name: "[]T"}, "[]$0"},
	}
	for _, tt := range tests {
		if got := Canonical(tt.dialect, tt.in, vars); got != tt.want {
			t.Errorf("Canonical(%s, %v) = %q, want %q", tt.dialect, tt.in, got, tt.want)
		}
	}
}
