package builtin

import (
	"fmt"

	"github.com/emenda-labs/apidelta/core/changespec"
	"github.com/emenda-labs/apidelta/core/check"
	"github.com/emenda-labs/apidelta/core/forest"
)

// Visibility reports access level changes of matched elements.
type Visibility struct{}

func (Visibility) Name() string { return "visibility" }

func (Visibility) Interest() forest.KindSet {
	return forest.KindsOf(forest.Type, forest.Method, forest.Field)
}

func (Visibility) Visit(_ *check.Context, old, new *forest.Element) ([]changespec.Difference, error) {
	if old == nil || new == nil {
		return nil, nil
	}
	was, is := old.Modifiers.Visibility(), new.Modifiers.Visibility()
	if was == is {
		return nil, nil
	}

	d := changespec.Difference{
		Attachments: attach(changespec.AttachOldValue, was.String(), changespec.AttachNewValue, is.String()),
		Old:         old,
		New:         new,
	}
	if is < was {
		d.Code = "element.visibilityReduced"
		d.Name = "visibility reduced"
		d.Description = fmt.Sprintf("%s %s went from %s to %s", new.Kind, new.Name, was, is)
		d.Classification = breaking
	} else {
		d.Code = "element.visibilityIncreased"
		d.Name = "visibility increased"
		d.Description = fmt.Sprintf("%s %s went from %s to %s", new.Kind, new.Name, was, is)
		d.Classification = safe
	}
	return one(d), nil
}
