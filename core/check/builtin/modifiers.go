package builtin

import (
	"fmt"
	"strings"

	"github.com/emenda-labs/apidelta/core/changespec"
	"github.com/emenda-labs/apidelta/core/check"
	"github.com/emenda-labs/apidelta/core/forest"
)

// ModifierChanged reports a modifier appearing on (added) or disappearing
// from (removed) a matched element of one of the interesting kinds.
type ModifierChanged struct {
	name     string
	added    bool
	modifier forest.Modifiers
	kinds    forest.KindSet
	// classify gives the classification per element kind.
	classify map[forest.Kind]changespec.Classification
}

// NowStatic reports methods and fields that became static.
func NowStatic() ModifierChanged {
	return ModifierChanged{
		name: "now-static", added: true, modifier: forest.Static,
		kinds: forest.KindsOf(forest.Method, forest.Field),
		classify: map[forest.Kind]changespec.Classification{
			forest.Method: changespec.Classify(changespec.SeverityBreaking, changespec.SeverityNonBreaking),
			forest.Field:  changespec.Classify(changespec.SeverityBreaking, changespec.SeverityNonBreaking),
		},
	}
}

// NoLongerStatic reports methods and fields that stopped being static.
func NoLongerStatic() ModifierChanged {
	return ModifierChanged{
		name: "no-longer-static", added: false, modifier: forest.Static,
		kinds: forest.KindsOf(forest.Method, forest.Field),
		classify: map[forest.Kind]changespec.Classification{
			forest.Method: breaking,
			forest.Field:  breaking,
		},
	}
}

// NowFinal reports classes, methods and fields that became final.
func NowFinal() ModifierChanged {
	return ModifierChanged{
		name: "now-final", added: true, modifier: forest.Final,
		kinds: forest.KindsOf(forest.Type, forest.Method, forest.Field),
		classify: map[forest.Kind]changespec.Classification{
			forest.Type:   breaking,
			forest.Method: breaking,
			forest.Field:  breaking,
		},
	}
}

// NoLongerFinal reports classes, methods and fields that stopped being final.
func NoLongerFinal() ModifierChanged {
	return ModifierChanged{
		name: "no-longer-final", added: false, modifier: forest.Final,
		kinds: forest.KindsOf(forest.Type, forest.Method, forest.Field),
		classify: map[forest.Kind]changespec.Classification{
			forest.Type:   safe,
			forest.Method: safe,
			// Constant values are inlined by compilers.
			forest.Field: changespec.Classification{
				changespec.CompatibilityBinary:   changespec.SeverityNonBreaking,
				changespec.CompatibilitySource:   changespec.SeverityNonBreaking,
				changespec.CompatibilitySemantic: changespec.SeverityPotentiallyBreaking,
			},
		},
	}
}

// NowAbstract reports classes and methods that became abstract.
func NowAbstract() ModifierChanged {
	return ModifierChanged{
		name: "now-abstract", added: true, modifier: forest.Abstract,
		kinds: forest.KindsOf(forest.Type, forest.Method),
		classify: map[forest.Kind]changespec.Classification{
			forest.Type:   breaking,
			forest.Method: breaking,
		},
	}
}

// NoLongerAbstract reports classes and methods that stopped being abstract.
func NoLongerAbstract() ModifierChanged {
	return ModifierChanged{
		name: "no-longer-abstract", added: false, modifier: forest.Abstract,
		kinds: forest.KindsOf(forest.Type, forest.Method),
		classify: map[forest.Kind]changespec.Classification{
			forest.Type:   safe,
			forest.Method: safe,
		},
	}
}

func (c ModifierChanged) Name() string { return c.name }

func (c ModifierChanged) Interest() forest.KindSet { return c.kinds }

// Visit only looks at matched pairs.
func (c ModifierChanged) Visit(ctx *check.Context, old, new *forest.Element) ([]changespec.Difference, error) {
	if old == nil || new == nil {
		return nil, nil
	}
	had, has := old.Modifiers.Has(c.modifier), new.Modifiers.Has(c.modifier)
	if had == has || has != c.added {
		return nil, nil
	}

	mod := c.modifier.String()
	change := "now" + capitalize(mod)
	verb := "became"
	if !c.added {
		change = "noLonger" + capitalize(mod)
		verb = "is no longer"
	}
	cat := category(ctx.Dialect(), new.Kind)
	return one(changespec.Difference{
		Code:           changespec.Code(cat + "." + change),
		Name:           fmt.Sprintf("%s %s %s", cat, verb, mod),
		Description:    fmt.Sprintf("%s %s %s %s", cat, new.Name, verb, mod),
		Classification: c.classify[new.Kind],
		Attachments: attach(
			changespec.AttachModifier, mod,
			changespec.AttachOldValue, old.Modifiers.String(),
			changespec.AttachNewValue, new.Modifiers.String(),
		),
		Old: old,
		New: new,
	}), nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
