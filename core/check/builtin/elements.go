package builtin

import (
	"fmt"

	"github.com/emenda-labs/apidelta/core/changespec"
	"github.com/emenda-labs/apidelta/core/check"
	"github.com/emenda-labs/apidelta/core/forest"
)

// ElementPresence reports elements that exist on one side only.
type ElementPresence struct{}

func (ElementPresence) Name() string { return "element-presence" }

func (ElementPresence) Interest() forest.KindSet {
	return forest.KindsOf(forest.Package, forest.Type, forest.Method, forest.Field)
}

func (ElementPresence) Visit(ctx *check.Context, old, new *forest.Element) ([]changespec.Difference, error) {
	switch {
	case old == nil && new != nil:
		cat := category(ctx.Dialect(), new.Kind)
		if new.Kind == forest.Method && addedToInterface(ctx, new) {
			return one(changespec.Difference{
				Code:           changespec.Code("method.addedToInterface"),
				Name:           "method added to interface",
				Description:    fmt.Sprintf("abstract method %s was added to an interface; implementations no longer compile", new.Name),
				Classification: changespec.Classify(changespec.SeverityNonBreaking, changespec.SeverityBreaking),
				New:            new,
			}), nil
		}
		return one(changespec.Difference{
			Code:           changespec.Code(cat + ".added"),
			Name:           cat + " added",
			Description:    fmt.Sprintf("%s %s was added", cat, new.Name),
			Classification: safe,
			Attachments:    attach(changespec.AttachElement, new.Kind.String()),
			New:            new,
		}), nil
	case new == nil && old != nil:
		cat := category(ctx.Dialect(), old.Kind)
		return one(changespec.Difference{
			Code:           changespec.Code(cat + ".removed"),
			Name:           cat + " removed",
			Description:    fmt.Sprintf("%s %s was removed", cat, old.Name),
			Classification: breaking,
			Attachments:    attach(changespec.AttachElement, old.Kind.String()),
			Old:            old,
		}), nil
	}
	return nil, nil
}

// addedToInterface reports whether an added method is abstract and owned by
// an interface that existed before.
func addedToInterface(ctx *check.Context, m *forest.Element) bool {
	owner := ctx.NewParent(m)
	if owner == nil || owner.Type() == nil || owner.Type().Flavor != forest.FlavorInterface {
		return false
	}
	if m.Modifiers.Has(forest.Static) || m.Modifiers.Has(forest.Default) || m.Modifiers.Has(forest.Private) {
		return false
	}
	prev := ctx.OldElement("type " + owner.Name)
	return prev != nil && prev.Kind == forest.Type
}
