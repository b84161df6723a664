package java

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/emenda-labs/apidelta/core/forest"
)

// text returns the source of a node with runs of whitespace collapsed.
func text(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return strings.Join(strings.Fields(n.Content(src)), " ")
}

// namedChildren returns the named children of n.
func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		out = append(out, n.NamedChild(i))
	}
	return out
}

// childOfType returns the first child of n with the given node type.
func childOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c.Type() == typ {
			return c
		}
	}
	return nil
}

func isAnnotation(n *sitter.Node) bool {
	return n.Type() == "marker_annotation" || n.Type() == "annotation"
}

// declModifiers collects the modifier keywords and annotations of a
// declaration.
func declModifiers(n *sitter.Node) (mods forest.Modifiers, anns []*sitter.Node) {
	m := childOfType(n, "modifiers")
	if m == nil {
		return 0, nil
	}
	for i := 0; i < int(m.ChildCount()); i++ {
		c := m.Child(i)
		if isAnnotation(c) {
			anns = append(anns, c)
			continue
		}
		if mod, ok := forest.ParseModifier(c.Type()); ok {
			mods |= mod
		}
	}
	return mods, anns
}

// annotation converts a marker_annotation or annotation node. A single
// unnamed element value is the "value" attribute.
func annotation(n *sitter.Node, src []byte) (typ string, attrs []forest.Attribute) {
	typ = text(n.ChildByFieldName("name"), src)
	args := n.ChildByFieldName("arguments")
	for _, c := range namedChildren(args) {
		switch c.Type() {
		case "element_value_pair":
			attrs = append(attrs, forest.Attribute{
				Name:  text(c.ChildByFieldName("key"), src),
				Value: text(c.ChildByFieldName("value"), src),
			})
		case "line_comment", "block_comment":
		default:
			attrs = append(attrs, forest.Attribute{Name: "value", Value: text(c, src)})
		}
	}
	return typ, attrs
}

// typeRef converts a type node into a structural reference. Names are kept
// as written since imports are not resolved.
func typeRef(n *sitter.Node, src []byte) forest.TypeRef {
	if n == nil {
		return forest.TypeRef{}
	}
	switch n.Type() {
	case "void_type":
		return forest.TypeRef{}

	case "array_type":
		t := typeRef(n.ChildByFieldName("element"), src)
		t.Dims += dims(n.ChildByFieldName("dimensions"), src)
		return t

	case "generic_type":
		var t forest.TypeRef
		for _, c := range namedChildren(n) {
			switch c.Type() {
			case "type_arguments":
				for _, a := range namedChildren(c) {
					if isAnnotation(a) {
						continue
					}
					t.Args = append(t.Args, typeRef(a, src))
				}
			default:
				if t.Name == "" {
					t.Name = stripTypeArgs(text(c, src))
				}
			}
		}
		return t

	case "annotated_type":
		kids := namedChildren(n)
		if len(kids) == 0 {
			return forest.TypeRef{}
		}
		return typeRef(kids[len(kids)-1], src)

	case "scoped_type_identifier":
		return forest.TypeRef{Name: stripTypeArgs(text(n, src))}

	case "wildcard":
		var bound *sitter.Node
		for _, c := range namedChildren(n) {
			if !isAnnotation(c) {
				bound = c
			}
		}
		if bound == nil {
			return forest.TypeRef{Name: "?"}
		}
		kw := forest.WildcardExtends
		if childOfType(n, "super") != nil {
			kw = forest.WildcardSuper
		}
		return forest.TypeRef{Name: kw, Args: []forest.TypeRef{typeRef(bound, src)}}
	}
	return forest.TypeRef{Name: text(n, src)}
}

// stripTypeArgs removes <...> groups from a scoped name such as
// Outer<T>.Inner and drops inner spaces.
func stripTypeArgs(s string) string {
	var sb strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>':
			depth--
		case depth == 0 && r != ' ':
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// dims counts the brackets of a dimensions node.
func dims(n *sitter.Node, src []byte) int {
	if n == nil {
		return 0
	}
	return strings.Count(n.Content(src), "[")
}

// typeList converts the types of a superclass, super_interfaces,
// extends_interfaces, throws or type_bound node.
func typeList(n *sitter.Node, src []byte) []forest.TypeRef {
	var out []forest.TypeRef
	for _, c := range namedChildren(n) {
		switch {
		case c.Type() == "type_list":
			out = append(out, typeList(c, src)...)
		case isAnnotation(c):
		default:
			out = append(out, typeRef(c, src))
		}
	}
	return out
}

// typeParams converts a type_parameters node.
func typeParams(n *sitter.Node, src []byte) []forest.TypeParam {
	var out []forest.TypeParam
	for _, p := range namedChildren(n) {
		if p.Type() != "type_parameter" {
			continue
		}
		var tp forest.TypeParam
		for _, c := range namedChildren(p) {
			switch c.Type() {
			case "type_identifier", "identifier":
				tp.Name = text(c, src)
			case "type_bound":
				tp.Bounds = typeList(c, src)
			}
		}
		out = append(out, tp)
	}
	return out
}

// literalValue renders a constant initializer when it is a literal,
// possibly negated. Other initializers are not compile time constants the
// source loader can evaluate.
func literalValue(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	switch typ := n.Type(); {
	case strings.HasSuffix(typ, "_literal") && typ != "null_literal", typ == "true", typ == "false":
		return text(n, src)
	case typ == "unary_expression":
		operand := n.ChildByFieldName("operand")
		if operand != nil && strings.HasSuffix(operand.Type(), "_literal") {
			return text(n, src)
		}
	case typ == "parenthesized_expression":
		if kids := namedChildren(n); len(kids) == 1 {
			return literalValue(kids[0], src)
		}
	}
	return ""
}
