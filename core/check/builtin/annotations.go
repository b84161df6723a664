package builtin

import (
	"fmt"

	"github.com/emenda-labs/apidelta/core/changespec"
	"github.com/emenda-labs/apidelta/core/check"
	"github.com/emenda-labs/apidelta/core/filter"
	"github.com/emenda-labs/apidelta/core/forest"
)

var annotations = forest.KindsOf(forest.Annotation)

// AnnotationPresence reports annotations added to or removed from an element.
type AnnotationPresence struct{}

func (AnnotationPresence) Name() string { return "annotation-presence" }

func (AnnotationPresence) Interest() forest.KindSet { return annotations }

func (AnnotationPresence) Visit(ctx *check.Context, old, new *forest.Element) ([]changespec.Difference, error) {
	switch {
	case old == nil && new != nil:
		ann := new.Annotation()
		return one(changespec.Difference{
			Code:           "annotation.added",
			Name:           "annotation added",
			Description:    fmt.Sprintf("%s was added to %s", ann.Canonical(), ownerName(ctx.NewOwner)),
			Classification: semantic(changespec.SeverityPotentiallyBreaking),
			Attachments:    attach(changespec.AttachAnnotation, ann.Type, changespec.AttachNewValue, ann.Canonical()),
			Old:            ctx.OldOwner,
			New:            ctx.NewOwner,
		}), nil
	case new == nil && old != nil:
		ann := old.Annotation()
		return one(changespec.Difference{
			Code:           "annotation.removed",
			Name:           "annotation removed",
			Description:    fmt.Sprintf("%s was removed from %s", ann.Canonical(), ownerName(ctx.OldOwner)),
			Classification: semantic(changespec.SeverityPotentiallyBreaking),
			Attachments:    attach(changespec.AttachAnnotation, ann.Type, changespec.AttachOldValue, ann.Canonical()),
			Old:            ctx.OldOwner,
			New:            ctx.NewOwner,
		}), nil
	}
	return nil, nil
}

// AnnotationAttributes compares the attributes of matched annotations.
type AnnotationAttributes struct{}

func (AnnotationAttributes) Name() string { return "annotation-attributes" }

func (AnnotationAttributes) Interest() forest.KindSet { return annotations }

func (AnnotationAttributes) Visit(ctx *check.Context, old, new *forest.Element) ([]changespec.Difference, error) {
	if old == nil || new == nil {
		return nil, nil
	}
	oldAnn, newAnn := old.Annotation(), new.Annotation()
	class := semantic(changespec.SeverityPotentiallyBreaking)

	var out []changespec.Difference
	for _, attr := range oldAnn.Attributes {
		now, ok := newAnn.Attribute(attr.Name)
		switch {
		case !ok:
			out = append(out, changespec.Difference{
				Code:           "annotation.attributeRemoved",
				Name:           "annotation attribute removed",
				Description:    fmt.Sprintf("attribute %s of @%s was removed", attr.Name, oldAnn.Type),
				Classification: class,
				Attachments: attach(
					changespec.AttachAnnotation, oldAnn.Type,
					changespec.AttachAttribute, attr.Name,
					changespec.AttachOldValue, attr.Value,
				),
				Old: ctx.OldOwner,
				New: ctx.NewOwner,
			})
		case forest.NormalizeValue(now) != forest.NormalizeValue(attr.Value):
			out = append(out, changespec.Difference{
				Code:           "annotation.attributeValueChanged",
				Name:           "annotation attribute value changed",
				Description:    fmt.Sprintf("attribute %s of @%s changed from %s to %s", attr.Name, oldAnn.Type, attr.Value, now),
				Classification: class,
				Attachments: attach(
					changespec.AttachAnnotation, oldAnn.Type,
					changespec.AttachAttribute, attr.Name,
					changespec.AttachOldValue, attr.Value,
					changespec.AttachNewValue, now,
				),
				Old: ctx.OldOwner,
				New: ctx.NewOwner,
			})
		}
	}
	for _, attr := range newAnn.Attributes {
		if _, ok := oldAnn.Attribute(attr.Name); ok {
			continue
		}
		out = append(out, changespec.Difference{
			Code:           "annotation.attributeAdded",
			Name:           "annotation attribute added",
			Description:    fmt.Sprintf("attribute %s was added to @%s", attr.Name, newAnn.Type),
			Classification: class,
			Attachments: attach(
				changespec.AttachAnnotation, newAnn.Type,
				changespec.AttachAttribute, attr.Name,
				changespec.AttachNewValue, attr.Value,
			),
			Old: ctx.OldOwner,
			New: ctx.NewOwner,
		})
	}
	return out, nil
}

// Deprecation reports elements gaining or losing @Deprecated. The difference
// is attributed to the annotated element.
type Deprecation struct{}

func (Deprecation) Name() string { return "deprecation" }

func (Deprecation) Interest() forest.KindSet { return annotations }

func (Deprecation) Visit(ctx *check.Context, old, new *forest.Element) ([]changespec.Difference, error) {
	switch {
	case old == nil && new != nil && isDeprecated(new):
		return one(changespec.Difference{
			Code:           "element.nowDeprecated",
			Name:           "element now deprecated",
			Description:    fmt.Sprintf("%s is now deprecated", ownerName(ctx.NewOwner)),
			Classification: semantic(changespec.SeverityNonBreaking),
			Old:            ctx.OldOwner,
			New:            ctx.NewOwner,
		}), nil
	case new == nil && old != nil && isDeprecated(old):
		return one(changespec.Difference{
			Code:           "element.noLongerDeprecated",
			Name:           "element no longer deprecated",
			Description:    fmt.Sprintf("%s is no longer deprecated", ownerName(ctx.OldOwner)),
			Classification: semantic(changespec.SeverityNonBreaking),
			Old:            ctx.OldOwner,
			New:            ctx.NewOwner,
		}), nil
	}
	return nil, nil
}

func isDeprecated(e *forest.Element) bool {
	return filter.TypeNamesMatch(e.Annotation().Type, "java.lang.Deprecated")
}

func ownerName(e *forest.Element) string {
	if e == nil {
		return "element"
	}
	return e.Kind.String() + " " + e.Name
}
