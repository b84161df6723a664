package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emenda-labs/apidelta/core/changespec"
	"github.com/emenda-labs/apidelta/core/check"
	"github.com/emenda-labs/apidelta/core/forest"
	"github.com/emenda-labs/apidelta/core/match"
)

// compare runs the default checks over every entry and indexes the
// differences by qualified code.
func compare(t *testing.T, old, new *forest.Forest) map[changespec.Code][]changespec.Difference {
	t.Helper()
	c := match.Match(old, new, match.Options{})
	d := check.NewDispatcher(Default())
	out := map[changespec.Code][]changespec.Difference{}
	for _, e := range c.Entries {
		r := d.Dispatch(c, e)
		require.Empty(t, r.Problems, e.Key)
		for _, diff := range r.Differences {
			out[diff.Code] = append(out[diff.Code], diff)
		}
	}
	return out
}

func build(t *testing.T, fn func(b *forest.Builder)) *forest.Forest {
	t.Helper()
	b := forest.NewBuilder(forest.DialectJava, "t")
	fn(b)
	f, err := b.Build()
	require.NoError(t, err)
	return f
}

func codes(diffs map[changespec.Code][]changespec.Difference) []changespec.Code {
	var out []changespec.Code
	for c := range diffs {
		out = append(out, c)
	}
	return out
}

func TestNowStatic(t *testing.T) {
	class := func(mods forest.Modifiers) *forest.Forest {
		return build(t, func(b *forest.Builder) {
			pkg := b.AddPackage("Public")
			ty := b.AddType(pkg, "Public.Class", forest.Public, nil)
			b.AddMethod(ty, "m", mods, nil)
		})
	}

	diffs := compare(t, class(forest.Public), class(forest.Public|forest.Static))
	require.ElementsMatch(t, []changespec.Code{"java.method.nowStatic"}, codes(diffs))

	d := diffs["java.method.nowStatic"][0]
	assert.Equal(t, changespec.SeverityBreaking, d.Classification[changespec.CompatibilityBinary])
	assert.Equal(t, "m", d.New.Name)
	mod, _ := d.Attachment(changespec.AttachModifier)
	assert.Equal(t, "static", mod)

	diffs = compare(t, class(forest.Public|forest.Static), class(forest.Public))
	assert.ElementsMatch(t, []changespec.Code{"java.method.noLongerStatic"}, codes(diffs))

	assert.Empty(t, compare(t, class(forest.Public|forest.Static), class(forest.Public|forest.Static)))
}

func TestElementPresence(t *testing.T) {
	old := build(t, func(b *forest.Builder) {
		a := b.AddType(forest.NoID, "p.A", forest.Public, nil)
		b.AddMethod(a, "gone", forest.Public, nil)
		b.AddType(forest.NoID, "p.B", forest.Public, nil)
		b.AddType(forest.NoID, "p.I", forest.Public, &forest.TypeInfo{Flavor: forest.FlavorInterface})
	})
	new := build(t, func(b *forest.Builder) {
		a := b.AddType(forest.NoID, "p.A", forest.Public, nil)
		b.AddField(a, "size", forest.Public, &forest.FieldInfo{Type: forest.TypeRef{Name: "int"}})
		i := b.AddType(forest.NoID, "p.I", forest.Public, &forest.TypeInfo{Flavor: forest.FlavorInterface})
		b.AddMethod(i, "run", forest.Public|forest.Abstract, nil)
		b.AddMethod(i, "helper", forest.Public|forest.Default, nil)
	})

	diffs := compare(t, old, new)
	assert.ElementsMatch(t, []changespec.Code{
		"java.method.removed",
		"java.class.removed",
		"java.field.added",
		"java.method.addedToInterface",
		"java.method.added",
	}, codes(diffs))
	assert.Equal(t, changespec.SeverityBreaking, diffs["java.class.removed"][0].Classification.Max())
	assert.Equal(t, "helper", diffs["java.method.added"][0].New.Name)
	assert.Equal(t, changespec.SeverityBreaking, diffs["java.method.addedToInterface"][0].Classification[changespec.CompatibilitySource])
}

func TestElementPresence_NewInterface(t *testing.T) {
	old := build(t, func(b *forest.Builder) {
		b.AddType(b.AddPackage("p"), "p.A", forest.Public, nil)
	})
	new := build(t, func(b *forest.Builder) {
		pkg := b.AddPackage("p")
		b.AddType(pkg, "p.A", forest.Public, nil)
		i := b.AddType(pkg, "p.I", forest.Public, &forest.TypeInfo{Flavor: forest.FlavorInterface})
		b.AddMethod(i, "run", forest.Public|forest.Abstract, nil)
	})

	c := match.Match(old, new, match.Options{DescendUnmatched: true})
	d := check.NewDispatcher(Default())
	var got []changespec.Code
	for _, e := range c.Entries {
		for _, diff := range d.Dispatch(c, e).Differences {
			got = append(got, diff.Code)
		}
	}
	assert.Equal(t, []changespec.Code{"java.class.added", "java.method.added"}, got)
}

func TestVisibility(t *testing.T) {
	field := func(mods forest.Modifiers) *forest.Forest {
		return build(t, func(b *forest.Builder) {
			a := b.AddType(forest.NoID, "p.A", forest.Public, nil)
			b.AddField(a, "f", mods, &forest.FieldInfo{Type: forest.TypeRef{Name: "int"}})
		})
	}

	diffs := compare(t, field(forest.Public), field(forest.Protected))
	require.Contains(t, diffs, changespec.Code("java.element.visibilityReduced"))
	v, _ := diffs["java.element.visibilityReduced"][0].Attachment(changespec.AttachNewValue)
	assert.Equal(t, "protected", v)

	diffs = compare(t, field(0), field(forest.Public))
	assert.Contains(t, diffs, changespec.Code("java.element.visibilityIncreased"))
}

func TestTypeChanges(t *testing.T) {
	list := func(arg string) forest.TypeRef {
		return forest.TypeRef{Name: "java.util.List", Args: []forest.TypeRef{{Name: arg}}}
	}
	api := func(result, param forest.TypeRef, field forest.TypeRef, typeVar string) *forest.Forest {
		return build(t, func(b *forest.Builder) {
			a := b.AddType(forest.NoID, "p.A", forest.Public, nil)
			m := b.AddMethod(a, "get", forest.Public, &forest.MethodInfo{
				Results:    []forest.TypeRef{result},
				TypeParams: []forest.TypeParam{{Name: typeVar}},
			})
			b.AddParameter(m, "in", param)
			b.AddParameter(m, "key", forest.TypeRef{Name: typeVar})
			b.AddField(a, "f", forest.Public, &forest.FieldInfo{Type: field})
		})
	}

	t.Run("renamed type variable is no change", func(t *testing.T) {
		diffs := compare(t, api(list("T"), list("String"), forest.TypeRef{Name: "int"}, "T"),
			api(list("U"), list("String"), forest.TypeRef{Name: "int"}, "U"))
		assert.Empty(t, diffs)
	})

	t.Run("erasure preserving changes break source only", func(t *testing.T) {
		diffs := compare(t, api(list("String"), list("String"), forest.TypeRef{Name: "int"}, "T"),
			api(list("Integer"), list("Long"), forest.TypeRef{Name: "int"}, "T"))
		require.ElementsMatch(t, []changespec.Code{"java.method.returnTypeChanged", "java.method.parameterTypeChanged"}, codes(diffs))

		ret := diffs["java.method.returnTypeChanged"][0]
		assert.Equal(t, changespec.SeverityNonBreaking, ret.Classification[changespec.CompatibilityBinary])
		assert.Equal(t, changespec.SeverityBreaking, ret.Classification[changespec.CompatibilitySource])

		idx, _ := diffs["java.method.parameterTypeChanged"][0].Attachment(changespec.AttachIndex)
		assert.Equal(t, "0", idx)
	})

	t.Run("field type", func(t *testing.T) {
		diffs := compare(t, api(list("T"), list("String"), forest.TypeRef{Name: "int"}, "T"),
			api(list("T"), list("String"), forest.TypeRef{Name: "long"}, "T"))
		require.ElementsMatch(t, []changespec.Code{"java.field.typeChanged"}, codes(diffs))
		assert.Equal(t, changespec.SeverityBreaking, diffs["java.field.typeChanged"][0].Classification.Max())
	})
}

func TestAnnotationChecks(t *testing.T) {
	annotated := func(anns ...forest.AnnotationInfo) *forest.Forest {
		return build(t, func(b *forest.Builder) {
			a := b.AddType(forest.NoID, "p.A", forest.Public, nil)
			for _, ann := range anns {
				b.AddAnnotation(a, ann.Type, ann.Attributes...)
			}
		})
	}
	attrs := func(kv ...string) []forest.Attribute {
		var out []forest.Attribute
		for i := 0; i+1 < len(kv); i += 2 {
			out = append(out, forest.Attribute{Name: kv[i], Value: kv[i+1]})
		}
		return out
	}

	old := annotated(
		forest.AnnotationInfo{Type: "Since", Attributes: attrs("value", `"1.0"`, "note", `"x"`)},
		forest.AnnotationInfo{Type: "Beta"},
	)
	new := annotated(
		forest.AnnotationInfo{Type: "Since", Attributes: attrs("value", `"2.0"`, "until", `"3.0"`)},
		forest.AnnotationInfo{Type: "java.lang.Deprecated"},
	)

	diffs := compare(t, old, new)
	assert.ElementsMatch(t, []changespec.Code{
		"java.annotation.attributeValueChanged",
		"java.annotation.attributeRemoved",
		"java.annotation.attributeAdded",
		"java.annotation.removed",
		"java.annotation.added",
		"java.element.nowDeprecated",
	}, codes(diffs))

	dep := diffs["java.element.nowDeprecated"][0]
	require.NotNil(t, dep.New)
	assert.Equal(t, "p.A", dep.New.Name, "deprecation is attributed to the annotated element")

	changed := diffs["java.annotation.attributeValueChanged"][0]
	v, _ := changed.Attachment(changespec.AttachNewValue)
	assert.Equal(t, `"2.0"`, v)

	diffs = compare(t, new, old)
	assert.Contains(t, diffs, changespec.Code("java.element.noLongerDeprecated"))
}

func TestAnnotationAttributes_NormalizedValues(t *testing.T) {
	annotated := func(v string) *forest.Forest {
		return build(t, func(b *forest.Builder) {
			a := b.AddType(forest.NoID, "p.A", forest.Public, nil)
			b.AddAnnotation(a, "Tags", forest.Attribute{Name: "value", Value: v})
		})
	}
	assert.Empty(t, compare(t, annotated(`{"a", "b"}`), annotated(`{"a","b"}`)))
}

func TestTypeKind(t *testing.T) {
	typ := func(info *forest.TypeInfo) *forest.Forest {
		return build(t, func(b *forest.Builder) {
			b.AddType(forest.NoID, "p.T", forest.Public, info)
		})
	}

	diffs := compare(t, typ(&forest.TypeInfo{Flavor: forest.FlavorClass}), typ(&forest.TypeInfo{Flavor: forest.FlavorRecord}))
	require.ElementsMatch(t, []changespec.Code{"java.class.kindChanged"}, codes(diffs))
	old, _ := diffs["java.class.kindChanged"][0].Attachment(changespec.AttachOldValue)
	assert.Equal(t, "class", old)

	named := func(underlying string, params ...string) *forest.Forest {
		b := forest.NewBuilder(forest.DialectGo, "t")
		info := &forest.TypeInfo{Flavor: forest.FlavorNamed, Underlying: underlying}
		for _, p := range params {
			info.TypeParams = append(info.TypeParams, forest.TypeParam{Name: p})
		}
		b.AddType(forest.NoID, "m.Token", forest.Public, info)
		f, err := b.Build()
		require.NoError(t, err)
		return f
	}
	diffs = compare(t, named("string"), named("int"))
	require.ElementsMatch(t, []changespec.Code{"go.type.underlyingTypeChanged"}, codes(diffs))
	assert.Equal(t, changespec.SeverityBreaking, diffs["go.type.underlyingTypeChanged"][0].Classification.Max())

	assert.Empty(t, compare(t, named("[]T", "T"), named("[]E", "E")), "renamed type parameters")
}

func TestConstantValue(t *testing.T) {
	constant := func(mods forest.Modifiers, value string) *forest.Forest {
		return build(t, func(b *forest.Builder) {
			ty := b.AddType(forest.NoID, "p.C", forest.Public, nil)
			b.AddField(ty, "MAX", mods, &forest.FieldInfo{Type: forest.TypeRef{Name: "int"}, Value: value})
		})
	}
	final := forest.Public | forest.Static | forest.Final

	diffs := compare(t, constant(final, "16"), constant(final, "32"))
	require.ElementsMatch(t, []changespec.Code{"java.field.constantValueChanged"}, codes(diffs))
	d := diffs["java.field.constantValueChanged"][0]
	assert.Equal(t, changespec.SeverityPotentiallyBreaking, d.Classification[changespec.CompatibilitySemantic])
	assert.Equal(t, changespec.SeverityEquivalent, d.Classification[changespec.CompatibilityBinary])

	assert.Empty(t, compare(t, constant(final, `{ 1, 2 }`), constant(final, `{1,2}`)))
	assert.Empty(t, compare(t, constant(forest.Public, "16"), constant(forest.Public, "32")), "not a constant")
}
