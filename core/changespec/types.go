package changespec

import (
	"strings"

	"github.com/emenda-labs/apidelta/core/forest"
)

// Code identifies a kind of difference. Codes are dotted strings of the form
// namespace.category.change and are a compatibility contract: downstream
// tooling filters and suppresses on them.
type Code string

// Qualify prefixes an unqualified category.change code with a namespace.
// Codes that already carry a namespace are returned unchanged.
func (c Code) Qualify(namespace string) Code {
	if namespace == "" || strings.Count(string(c), ".") >= 2 {
		return c
	}
	return Code(namespace + "." + string(c))
}

// Compatibility is an axis along which a difference is classified.
type Compatibility string

const (
	CompatibilityBinary   Compatibility = "binary"
	CompatibilitySource   Compatibility = "source"
	CompatibilitySemantic Compatibility = "semantic"
	CompatibilityOther    Compatibility = "other"
)

// Compatibilities lists the axes in reporting order.
var Compatibilities = []Compatibility{CompatibilityBinary, CompatibilitySource, CompatibilitySemantic, CompatibilityOther}

// Severity is the impact of a difference on one compatibility axis.
type Severity int

const (
	SeverityEquivalent Severity = iota
	SeverityNonBreaking
	SeverityPotentiallyBreaking
	SeverityBreaking
)

var severityNames = [...]string{"equivalent", "non_breaking", "potentially_breaking", "breaking"}

func (s Severity) String() string {
	if s >= 0 && int(s) < len(severityNames) {
		return severityNames[s]
	}
	return "unknown"
}

// ParseSeverity resolves a severity name as used in configuration and flags.
func ParseSeverity(name string) (Severity, bool) {
	n := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	for i, s := range severityNames {
		if s == n {
			return Severity(i), true
		}
	}
	return SeverityEquivalent, false
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Classification maps compatibility axes to severities.
type Classification map[Compatibility]Severity

// Classify builds a classification with the same severity on binary and
// source compatibility, the common case for signature level changes.
func Classify(binary, source Severity) Classification {
	return Classification{CompatibilityBinary: binary, CompatibilitySource: source}
}

// Max returns the highest severity across all axes.
func (c Classification) Max() Severity {
	max := SeverityEquivalent
	for _, s := range c {
		if s > max {
			max = s
		}
	}
	return max
}

// Attachment is a named value carried by a difference (old value, new value, ...).
type Attachment struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Well-known attachment names.
const (
	AttachOldValue   = "oldValue"
	AttachNewValue   = "newValue"
	AttachModifier   = "modifier"
	AttachAnnotation = "annotationType"
	AttachAttribute  = "attribute"
	AttachIndex      = "parameterIndex"
	AttachElement    = "elementKind"

	// AttachRenamedTo and AttachRenamedFrom carry the matching key of the
	// likely counterpart of a removed or added member.
	AttachRenamedTo   = "renamedTo"
	AttachRenamedFrom = "renamedFrom"
	AttachConfidence  = "renameConfidence"
)

// Difference is one detected, classified change. It is immutable once emitted.
type Difference struct {
	Code           Code
	Name           string
	Description    string
	Classification Classification
	Attachments    []Attachment

	// Old and New reference the elements the difference concerns. Either may be nil.
	Old *forest.Element
	New *forest.Element
}

// Attachment returns the value of a named attachment.
func (d Difference) Attachment(name string) (string, bool) {
	for _, a := range d.Attachments {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Report groups the differences found for one correspondence entry.
type Report struct {
	// Key is the matching key of the entry the report was produced for.
	Key string
	Old *forest.Element
	New *forest.Element

	// OldForest and NewForest let reporters render element paths.
	OldForest *forest.Forest
	NewForest *forest.Forest

	Differences []Difference

	// Problems holds the check failures isolated while evaluating this entry.
	Problems []error
}

// Element returns the new element if present, otherwise the old one, with its forest.
func (r Report) Element() (*forest.Element, *forest.Forest) {
	if r.New != nil {
		return r.New, r.NewForest
	}
	return r.Old, r.OldForest
}

// Path renders the path of the reported element.
func (r Report) Path() string {
	e, f := r.Element()
	if e == nil || f == nil {
		return r.Key
	}
	return f.Path(e).String()
}

// MaxSeverity returns the highest severity of any difference in the report.
func (r Report) MaxSeverity() Severity {
	max := SeverityEquivalent
	for _, d := range r.Differences {
		if s := d.Classification.Max(); s > max {
			max = s
		}
	}
	return max
}
