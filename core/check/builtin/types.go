package builtin

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/emenda-labs/apidelta/core/changespec"
	"github.com/emenda-labs/apidelta/core/check"
	"github.com/emenda-labs/apidelta/core/forest"
	"github.com/emenda-labs/apidelta/core/match"
)

// typeChange classifies a change between two type references. Erasure
// preserving changes only affect source compatibility.
func typeChange(ctx *check.Context, old, new *forest.Element, oldT, newT forest.TypeRef) (changed bool, c changespec.Classification) {
	if ctx.OldCanonical(old, oldT) == ctx.NewCanonical(new, newT) {
		return false, nil
	}
	oldErased := match.Erase(ctx.Old.Dialect(), oldT, match.TypeVariables(ctx.Old, old))
	newErased := match.Erase(ctx.New.Dialect(), newT, match.TypeVariables(ctx.New, new))
	if oldErased == newErased {
		return true, changespec.Classify(changespec.SeverityNonBreaking, changespec.SeverityBreaking)
	}
	return true, breaking
}

// ReturnType reports changed method results.
type ReturnType struct{}

func (ReturnType) Name() string { return "return-type" }

func (ReturnType) Interest() forest.KindSet { return forest.KindsOf(forest.Method) }

func (ReturnType) Visit(ctx *check.Context, old, new *forest.Element) ([]changespec.Difference, error) {
	if old == nil || new == nil {
		return nil, nil
	}
	oldInfo, newInfo := old.Method(), new.Method()
	if oldInfo == nil || newInfo == nil || oldInfo.Constructor || newInfo.Constructor {
		return nil, nil
	}

	oldT, newT := resultRef(oldInfo.Results), resultRef(newInfo.Results)
	changed, class := typeChange(ctx, old, new, oldT, newT)
	if !changed {
		return nil, nil
	}
	return one(changespec.Difference{
		Code:           "method.returnTypeChanged",
		Name:           "return type changed",
		Description:    fmt.Sprintf("method %s now returns %s instead of %s", new.Name, newT, oldT),
		Classification: class,
		Attachments:    attach(changespec.AttachOldValue, oldT.String(), changespec.AttachNewValue, newT.String()),
		Old:            old,
		New:            new,
	}), nil
}

// resultRef folds multiple results, as Go functions have, into one
// reference so they compare as a tuple.
func resultRef(results []forest.TypeRef) forest.TypeRef {
	switch len(results) {
	case 0:
		return forest.TypeRef{}
	case 1:
		return results[0]
	}
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Name
	}
	return forest.TypeRef{Name: "(" + strings.Join(parts, ", ") + ")"}
}

// ParameterType reports parameters whose type changed at the same index.
type ParameterType struct{}

func (ParameterType) Name() string { return "parameter-type" }

func (ParameterType) Interest() forest.KindSet { return forest.KindsOf(forest.Parameter) }

func (ParameterType) Visit(ctx *check.Context, old, new *forest.Element) ([]changespec.Difference, error) {
	if old == nil || new == nil {
		return nil, nil
	}
	oldT, newT := old.Parameter().Type, new.Parameter().Type
	changed, class := typeChange(ctx, old, new, oldT, newT)
	if !changed {
		return nil, nil
	}
	idx := new.Parameter().Index
	return one(changespec.Difference{
		Code:           "method.parameterTypeChanged",
		Name:           "parameter type changed",
		Description:    fmt.Sprintf("parameter #%d of %s changed from %s to %s", idx, ctx.NewParent(new).Name, oldT, newT),
		Classification: class,
		Attachments: attach(
			changespec.AttachIndex, strconv.Itoa(idx),
			changespec.AttachOldValue, oldT.String(),
			changespec.AttachNewValue, newT.String(),
		),
		Old: old,
		New: new,
	}), nil
}

// FieldType reports fields whose declared type changed.
type FieldType struct{}

func (FieldType) Name() string { return "field-type" }

func (FieldType) Interest() forest.KindSet { return forest.KindsOf(forest.Field) }

func (FieldType) Visit(ctx *check.Context, old, new *forest.Element) ([]changespec.Difference, error) {
	if old == nil || new == nil {
		return nil, nil
	}
	oldT, newT := old.Field().Type, new.Field().Type
	changed, class := typeChange(ctx, old, new, oldT, newT)
	if !changed {
		return nil, nil
	}
	return one(changespec.Difference{
		Code:           "field.typeChanged",
		Name:           "field type changed",
		Description:    fmt.Sprintf("field %s changed type from %s to %s", new.Name, oldT, newT),
		Classification: class,
		Attachments:    attach(changespec.AttachOldValue, oldT.String(), changespec.AttachNewValue, newT.String()),
		Old:            old,
		New:            new,
	}), nil
}
