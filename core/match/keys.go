package match

import (
	"strconv"
	"strings"

	"github.com/emenda-labs/apidelta/core/forest"
)

// Keys computes the matching key of every element of f, indexed by id-1.
// Parents are keyed before their children, which the method, field and
// parameter keys build on.
func Keys(f *forest.Forest) []string {
	keys := make([]string, f.Len())
	for _, root := range f.Roots() {
		keyTree(f, root, "", keys)
	}
	return keys
}

func keyTree(f *forest.Forest, e *forest.Element, parentKey string, keys []string) {
	keys[e.ID-1] = elementKey(f, e, parentKey)

	occurrences := map[string]int{}
	for _, c := range f.Children(e) {
		if c.Kind == forest.Annotation {
			typ := c.Annotation().Type
			keys[c.ID-1] = annotationKey(keys[e.ID-1], typ, occurrences[typ])
			occurrences[typ]++
			continue
		}
		keyTree(f, c, keys[e.ID-1], keys)
	}
}

func elementKey(f *forest.Forest, e *forest.Element, parentKey string) string {
	switch e.Kind {
	case forest.Package:
		return "package " + e.Name
	case forest.Type:
		return "type " + e.Name
	case forest.Method:
		return parentKey + "::" + e.Name + "(" + strings.Join(ErasedSignature(f, e), ",") + ")"
	case forest.Field:
		return parentKey + "#" + e.Name
	case forest.Parameter:
		return parentKey + "[" + strconv.Itoa(e.Parameter().Index) + "]"
	default:
		return parentKey + "/" + e.Kind.String() + " " + e.Name
	}
}

func annotationKey(ownerKey, typ string, occurrence int) string {
	return ownerKey + "@" + typ + "#" + strconv.Itoa(occurrence)
}

// ErasedSignature returns the erased parameter types of a method in
// declaration order. Renaming type variables or changing their bounds does
// not change the result.
func ErasedSignature(f *forest.Forest, method *forest.Element) []string {
	vars := TypeVariables(f, method)
	var out []string
	for _, c := range f.Children(method) {
		if c.Kind != forest.Parameter {
			continue
		}
		out = append(out, Erase(f.Dialect(), c.Parameter().Type, vars))
	}
	return out
}

// TypeVariables collects the type variables visible at e: those declared by
// e itself when it is a method or type, then those of its enclosing methods
// and types. The value is the position used by dialects that keep type
// variables distinct.
func TypeVariables(f *forest.Forest, e *forest.Element) map[string]int {
	vars := map[string]int{}
	add := func(params []forest.TypeParam) {
		for _, p := range params {
			if _, ok := vars[p.Name]; !ok {
				vars[p.Name] = len(vars)
			}
		}
	}
	for cur := e; cur != nil; cur = f.Parent(cur) {
		switch cur.Kind {
		case forest.Method:
			if info := cur.Method(); info != nil {
				add(info.TypeParams)
			}
		case forest.Type:
			if info := cur.Type(); info != nil {
				add(info.TypeParams)
			}
		}
	}
	return vars
}

// Erase renders a type reference in the matching form of the dialect.
//
// Java drops type arguments, replaces type variables with Object and
// compares simple names, since source loaders cannot resolve imports. Go
// keeps the rendered type and replaces type variables with their position.
func Erase(d forest.Dialect, t forest.TypeRef, vars map[string]int) string {
	if d == forest.DialectGo {
		return eraseGo(t.Name, vars)
	}

	name := t.Name
	if _, ok := vars[name]; ok {
		name = "Object"
	} else if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		name = "void"
	}
	return name + strings.Repeat("[]", t.Dims)
}

// eraseGo replaces identifiers naming type variables with $index, leaving
// qualified selectors (pkg.T) untouched.
func eraseGo(s string, vars map[string]int) string {
	if len(vars) == 0 {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); {
		if !isIdentStart(s[i]) {
			sb.WriteByte(s[i])
			i++
			continue
		}
		j := i
		for j < len(s) && isIdentPart(s[j]) {
			j++
		}
		ident := s[i:j]
		if idx, ok := vars[ident]; ok && (i == 0 || s[i-1] != '.') {
			sb.WriteString("$" + strconv.Itoa(idx))
		} else {
			sb.WriteString(ident)
		}
		i = j
	}
	return sb.String()
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// Canonical renders a type reference with its type variables replaced by
// position and Java type names reduced to simple names. Two references with
// the same canonical form denote the same type up to type variable renaming.
func Canonical(d forest.Dialect, t forest.TypeRef, vars map[string]int) string {
	if d == forest.DialectGo {
		return eraseGo(t.Name, vars)
	}
	var sb strings.Builder
	canonicalJava(&sb, t, vars)
	return sb.String()
}

func canonicalJava(sb *strings.Builder, t forest.TypeRef, vars map[string]int) {
	if t.IsZero() {
		sb.WriteString("void")
		return
	}
	if t.IsBoundedWildcard() {
		sb.WriteString(t.Name + " ")
		canonicalJava(sb, t.Args[0], vars)
		return
	}
	if idx, ok := vars[t.Name]; ok {
		sb.WriteString("$" + strconv.Itoa(idx))
	} else if i := strings.LastIndexByte(t.Name, '.'); i >= 0 {
		sb.WriteString(t.Name[i+1:])
	} else {
		sb.WriteString(t.Name)
	}
	if len(t.Args) > 0 {
		sb.WriteByte('<')
		for i, a := range t.Args {
			if i > 0 {
				sb.WriteByte(',')
			}
			canonicalJava(sb, a, vars)
		}
		sb.WriteByte('>')
	}
	sb.WriteString(strings.Repeat("[]", t.Dims))
}
