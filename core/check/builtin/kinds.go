package builtin

import (
	"fmt"

	"github.com/emenda-labs/apidelta/core/changespec"
	"github.com/emenda-labs/apidelta/core/check"
	"github.com/emenda-labs/apidelta/core/forest"
)

// TypeKind reports types that changed their declaration form (a class that
// became an interface) or, for named types and aliases, their underlying
// type.
type TypeKind struct{}

func (TypeKind) Name() string { return "type-kind" }

func (TypeKind) Interest() forest.KindSet { return forest.KindsOf(forest.Type) }

func (TypeKind) Visit(ctx *check.Context, old, new *forest.Element) ([]changespec.Difference, error) {
	if old == nil || new == nil {
		return nil, nil
	}
	oldInfo, newInfo := old.Type(), new.Type()
	if oldInfo == nil || newInfo == nil {
		return nil, nil
	}
	cat := category(ctx.Dialect(), forest.Type)

	if oldInfo.Flavor != newInfo.Flavor {
		return one(changespec.Difference{
			Code:           changespec.Code(cat + ".kindChanged"),
			Name:           "kind of type changed",
			Description:    fmt.Sprintf("%s %s changed from %s to %s", cat, new.Name, oldInfo.Flavor, newInfo.Flavor),
			Classification: breaking,
			Attachments:    attach(changespec.AttachOldValue, string(oldInfo.Flavor), changespec.AttachNewValue, string(newInfo.Flavor)),
			Old:            old,
			New:            new,
		}), nil
	}

	if oldInfo.Underlying == "" && newInfo.Underlying == "" {
		return nil, nil
	}
	oldT, newT := forest.TypeRef{Name: oldInfo.Underlying}, forest.TypeRef{Name: newInfo.Underlying}
	if ctx.OldCanonical(old, oldT) == ctx.NewCanonical(new, newT) {
		return nil, nil
	}
	return one(changespec.Difference{
		Code:           changespec.Code(cat + ".underlyingTypeChanged"),
		Name:           "underlying type changed",
		Description:    fmt.Sprintf("%s %s is now defined as %s instead of %s", cat, new.Name, newInfo.Underlying, oldInfo.Underlying),
		Classification: breaking,
		Attachments:    attach(changespec.AttachOldValue, oldInfo.Underlying, changespec.AttachNewValue, newInfo.Underlying),
		Old:            old,
		New:            new,
	}), nil
}

// ConstantValue reports compile time constants whose value changed. Clients
// compiled against the old value keep using it.
type ConstantValue struct{}

func (ConstantValue) Name() string { return "constant-value" }

func (ConstantValue) Interest() forest.KindSet { return forest.KindsOf(forest.Field) }

func (ConstantValue) Visit(ctx *check.Context, old, new *forest.Element) ([]changespec.Difference, error) {
	if old == nil || new == nil || !isConstant(old) || !isConstant(new) {
		return nil, nil
	}
	oldV, newV := old.Field().Value, new.Field().Value
	if forest.NormalizeValue(oldV) == forest.NormalizeValue(newV) {
		return nil, nil
	}
	return one(changespec.Difference{
		Code:           "field.constantValueChanged",
		Name:           "constant value changed",
		Description:    fmt.Sprintf("constant %s changed from %s to %s", new.Name, oldV, newV),
		Classification: semantic(changespec.SeverityPotentiallyBreaking),
		Attachments:    attach(changespec.AttachOldValue, oldV, changespec.AttachNewValue, newV),
		Old:            old,
		New:            new,
	}), nil
}

func isConstant(e *forest.Element) bool {
	info := e.Field()
	return info != nil && info.Value != "" && e.Modifiers.Has(forest.Static) && e.Modifiers.Has(forest.Final)
}
