package forest

import (
	"fmt"
	"strings"
)

// Kind tags an element with the API construct it represents.
type Kind uint8

const (
	// AnyKind matches every kind in searches. It is never stored on an element.
	AnyKind Kind = iota
	Package
	Type
	Method
	Field
	Parameter
	Annotation
)

var kindNames = [...]string{
	AnyKind:    "any",
	Package:    "package",
	Type:       "type",
	Method:     "method",
	Field:      "field",
	Parameter:  "parameter",
	Annotation: "annotation",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// ParseKind resolves a kind from its lowercase name.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == strings.ToLower(strings.TrimSpace(s)) {
			return Kind(k), nil
		}
	}
	return AnyKind, fmt.Errorf("unknown element kind %q", s)
}

// KindSet is a set of element kinds. The zero value is empty.
type KindSet uint16

// KindsOf returns the set holding the given kinds. AnyKind expands to every kind.
func KindsOf(kinds ...Kind) KindSet {
	var s KindSet
	for _, k := range kinds {
		if k == AnyKind {
			return AllKinds
		}
		s |= 1 << k
	}
	return s
}

// AllKinds contains every concrete kind.
const AllKinds = KindSet(1<<Package | 1<<Type | 1<<Method | 1<<Field | 1<<Parameter | 1<<Annotation)

// Has reports whether k is in the set.
func (s KindSet) Has(k Kind) bool {
	return k != AnyKind && s&(1<<k) != 0
}

func (s KindSet) String() string {
	var names []string
	for k := Package; k <= Annotation; k++ {
		if s.Has(k) {
			names = append(names, k.String())
		}
	}
	return "{" + strings.Join(names, ", ") + "}"
}

// Modifiers is a bit set of declaration modifiers.
type Modifiers uint16

const (
	Public Modifiers = 1 << iota
	Protected
	Private
	Static
	Final
	Abstract
	Default
	Synchronized
	Native
	Transient
	Volatile
	Sealed
)

var modifierNames = []struct {
	mod  Modifiers
	name string
}{
	{Public, "public"},
	{Protected, "protected"},
	{Private, "private"},
	{Abstract, "abstract"},
	{Default, "default"},
	{Static, "static"},
	{Sealed, "sealed"},
	{Final, "final"},
	{Transient, "transient"},
	{Volatile, "volatile"},
	{Synchronized, "synchronized"},
	{Native, "native"},
}

// ParseModifier maps a source keyword to its modifier bit.
func ParseModifier(s string) (Modifiers, bool) {
	for _, m := range modifierNames {
		if m.name == s {
			return m.mod, true
		}
	}
	return 0, false
}

// Has reports whether every bit of m is set.
func (ms Modifiers) Has(m Modifiers) bool {
	return m != 0 && ms&m == m
}

// String renders the modifiers in conventional source order.
func (ms Modifiers) String() string {
	var parts []string
	for _, m := range modifierNames {
		if ms.Has(m.mod) {
			parts = append(parts, m.name)
		}
	}
	return strings.Join(parts, " ")
}

// Visibility is an ordered accessibility level, higher is more visible.
type Visibility uint8

const (
	VisibilityPrivate Visibility = iota
	VisibilityPackage
	VisibilityProtected
	VisibilityPublic
)

func (v Visibility) String() string {
	switch v {
	case VisibilityPublic:
		return "public"
	case VisibilityProtected:
		return "protected"
	case VisibilityPackage:
		return "package"
	default:
		return "private"
	}
}

// Visibility derives the access level from the modifier set.
func (ms Modifiers) Visibility() Visibility {
	switch {
	case ms.Has(Public):
		return VisibilityPublic
	case ms.Has(Protected):
		return VisibilityProtected
	case ms.Has(Private):
		return VisibilityPrivate
	default:
		return VisibilityPackage
	}
}
