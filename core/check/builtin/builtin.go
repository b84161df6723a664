// Package builtin holds the checks every analysis runs unless configured
// otherwise.
package builtin

import (
	"github.com/emenda-labs/apidelta/core/changespec"
	"github.com/emenda-labs/apidelta/core/check"
	"github.com/emenda-labs/apidelta/core/forest"
)

// Default returns the built-in checks in reporting order.
func Default() *check.Registry {
	return check.NewRegistry(
		ElementPresence{},
		NowStatic(), NoLongerStatic(),
		NowFinal(), NoLongerFinal(),
		NowAbstract(), NoLongerAbstract(),
		Visibility{},
		TypeKind{},
		ReturnType{},
		ParameterType{},
		FieldType{},
		ConstantValue{},
		AnnotationPresence{},
		AnnotationAttributes{},
		Deprecation{},
	)
}

// category names the element kind in difference codes.
func category(d forest.Dialect, k forest.Kind) string {
	switch k {
	case forest.Type:
		if d == forest.DialectGo {
			return "type"
		}
		return "class"
	default:
		return k.String()
	}
}

var (
	breaking = changespec.Classify(changespec.SeverityBreaking, changespec.SeverityBreaking)
	safe     = changespec.Classify(changespec.SeverityNonBreaking, changespec.SeverityNonBreaking)
)

func semantic(s changespec.Severity) changespec.Classification {
	return changespec.Classification{
		changespec.CompatibilityBinary:   changespec.SeverityEquivalent,
		changespec.CompatibilitySource:   changespec.SeverityEquivalent,
		changespec.CompatibilitySemantic: s,
	}
}

func attach(pairs ...string) []changespec.Attachment {
	out := make([]changespec.Attachment, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, changespec.Attachment{Name: pairs[i], Value: pairs[i+1]})
	}
	return out
}

func one(d changespec.Difference) []changespec.Difference {
	return []changespec.Difference{d}
}
