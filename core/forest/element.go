package forest

import (
	"strconv"
	"strings"
)

// ID is a handle into a forest's element arena. IDs are 1-based so that the
// zero value, NoID, can stand for an absent element.
type ID uint32

// NoID is the absent element.
const NoID ID = 0

// Element is one node of an API forest. Kind-specific data lives in Payload.
type Element struct {
	ID       ID
	Kind     Kind
	Name     string // fully qualified for packages and types, simple otherwise
	Parent   ID
	Children []ID

	Modifiers Modifiers
	Payload   Payload

	// Declaring is an opaque handle back into the loader's source of truth.
	Declaring any
}

// SimpleName returns the part of Name after the last dot.
func (e *Element) SimpleName() string {
	if i := strings.LastIndexByte(e.Name, '.'); i >= 0 {
		return e.Name[i+1:]
	}
	return e.Name
}

// Type returns the type payload, or nil for other kinds.
func (e *Element) Type() *TypeInfo {
	p, _ := e.Payload.(*TypeInfo)
	return p
}

// Method returns the method payload, or nil for other kinds.
func (e *Element) Method() *MethodInfo {
	p, _ := e.Payload.(*MethodInfo)
	return p
}

// Field returns the field payload, or nil for other kinds.
func (e *Element) Field() *FieldInfo {
	p, _ := e.Payload.(*FieldInfo)
	return p
}

// Parameter returns the parameter payload, or nil for other kinds.
func (e *Element) Parameter() *ParameterInfo {
	p, _ := e.Payload.(*ParameterInfo)
	return p
}

// Annotation returns the annotation payload, or nil for other kinds.
func (e *Element) Annotation() *AnnotationInfo {
	p, _ := e.Payload.(*AnnotationInfo)
	return p
}

// Payload is the kind-specific part of an element.
type Payload interface {
	payload()
}

// TypeFlavor distinguishes the declaration forms of a Type element.
type TypeFlavor string

const (
	FlavorClass      TypeFlavor = "class"
	FlavorInterface  TypeFlavor = "interface"
	FlavorEnum       TypeFlavor = "enum"
	FlavorRecord     TypeFlavor = "record"
	FlavorAnnotation TypeFlavor = "@interface"
	FlavorStruct     TypeFlavor = "struct"
	FlavorAlias      TypeFlavor = "alias"
	FlavorNamed      TypeFlavor = "named"
)

// TypeInfo describes a Type element.
type TypeInfo struct {
	Flavor     TypeFlavor
	TypeParams []TypeParam
	Supertypes []TypeRef
	// Underlying is a rendered definition for types that have one (Go named types, aliases).
	Underlying string
}

// MethodInfo describes a Method element. Parameters are child elements.
type MethodInfo struct {
	Results     []TypeRef
	TypeParams  []TypeParam
	Throws      []TypeRef
	Constructor bool
}

// FieldInfo describes a Field element.
type FieldInfo struct {
	Type         TypeRef
	EnumConstant bool
	// Value is the rendered constant initializer, if known.
	Value string
}

// ParameterInfo describes a Parameter element.
type ParameterInfo struct {
	Index int
	Type  TypeRef
}

// AnnotationInfo describes an Annotation element.
type AnnotationInfo struct {
	Type       string
	Attributes []Attribute
}

// Attribute is one annotation attribute with its rendered value.
type Attribute struct {
	Name  string
	Value string
}

func (*TypeInfo) payload()       {}
func (*MethodInfo) payload()     {}
func (*FieldInfo) payload()      {}
func (*ParameterInfo) payload()  {}
func (*AnnotationInfo) payload() {}

// Attribute returns the named attribute value.
func (a *AnnotationInfo) Attribute(name string) (string, bool) {
	for _, attr := range a.Attributes {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return "", false
}

// Canonical renders the annotation as @Type or @Type(a = v, b = w).
func (a *AnnotationInfo) Canonical() string {
	if len(a.Attributes) == 0 {
		return "@" + a.Type
	}
	parts := make([]string, len(a.Attributes))
	for i, attr := range a.Attributes {
		parts[i] = attr.Name + " = " + attr.Value
	}
	return "@" + a.Type + "(" + strings.Join(parts, ", ") + ")"
}

// TypeParam is a declared type variable with its bounds.
type TypeParam struct {
	Name   string
	Bounds []TypeRef
}

// TypeRef is a structural reference to a type.
//
// Dialects that have no structured form for a type (Go composite types) store
// the rendered text in Name and leave Args empty.
type TypeRef struct {
	Name     string
	Args     []TypeRef
	Dims     int
	Variadic bool
}

// IsZero reports whether t references no type (void).
func (t TypeRef) IsZero() bool {
	return t.Name == "" && len(t.Args) == 0 && t.Dims == 0
}

// Equal compares two references structurally.
func (t TypeRef) Equal(o TypeRef) bool {
	if t.Name != o.Name || t.Dims != o.Dims || t.Variadic != o.Variadic || len(t.Args) != len(o.Args) {
		return false
	}
	for i := range t.Args {
		if !t.Args[i].Equal(o.Args[i]) {
			return false
		}
	}
	return true
}

// Wildcard bounds are "? extends" or "? super" with the bound as the single
// argument; the unbounded wildcard is "?".
const (
	WildcardExtends = "? extends"
	WildcardSuper   = "? super"
)

// IsBoundedWildcard reports whether t is "? extends B" or "? super B".
func (t TypeRef) IsBoundedWildcard() bool {
	return (t.Name == WildcardExtends || t.Name == WildcardSuper) && len(t.Args) == 1
}

func (t TypeRef) String() string {
	if t.IsZero() {
		return "void"
	}
	if t.IsBoundedWildcard() {
		return t.Name + " " + t.Args[0].String()
	}
	var sb strings.Builder
	sb.WriteString(t.Name)
	if len(t.Args) > 0 {
		sb.WriteByte('<')
		for i, a := range t.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(a.String())
		}
		sb.WriteByte('>')
	}
	dims := t.Dims
	if t.Variadic && dims > 0 {
		dims--
	}
	for range dims {
		sb.WriteString("[]")
	}
	if t.Variadic {
		sb.WriteString("...")
	}
	return sb.String()
}

// Segment is one kind-qualified step of an element path.
type Segment struct {
	Kind Kind
	Name string
}

// Path is the sequence of segments from a forest root to an element.
type Path []Segment

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.Kind.String() + " " + s.Name
	}
	return strings.Join(parts, "/")
}

// Slash renders the path as a slash separated name list suited to glob
// matching: package dots become slashes and nested names are unqualified.
func (p Path) Slash() string {
	parts := make([]string, 0, len(p))
	prefix := ""
	for _, s := range p {
		name := s.Name
		switch s.Kind {
		case Package:
			prefix = name + "."
			name = strings.ReplaceAll(name, ".", "/")
		case Type:
			name = strings.TrimPrefix(name, prefix)
			prefix = s.Name + "."
			name = strings.ReplaceAll(name, ".", "/")
		case Annotation:
			name = "@" + name
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, "/")
}

func parameterSegmentName(index int) string {
	return "#" + strconv.Itoa(index)
}

// NormalizeValue canonicalises rendered annotation attribute values by
// dropping whitespace outside string and character literals, so that
// `{ 1, 2 }` and `{1,2}` compare equal.
func NormalizeValue(v string) string {
	var sb strings.Builder
	var quote byte
	escaped := false
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case quote != 0:
			sb.WriteByte(c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
			sb.WriteByte(c)
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
