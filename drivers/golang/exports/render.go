package exports

import (
	"go/ast"
	"go/types"
	"slices"
	"strings"

	"github.com/emenda-labs/apidelta/core/forest"
)

// param is one expanded function parameter.
type param struct {
	name string
	typ  string
}

// signature holds structured function parameter and result types.
type signature struct {
	params  []param
	results []string
}

// renderType converts any type expression to its canonical string
// representation. This is the single source of truth for type rendering
// across the package.
func renderType(expr ast.Expr) string {
	if expr == nil {
		return ""
	}

	switch e := expr.(type) {
	case *ast.Ident:
		return e.Name

	case *ast.SelectorExpr:
		return renderType(e.X) + "." + e.Sel.Name

	case *ast.StarExpr:
		return "*" + renderType(e.X)

	case *ast.ArrayType:
		if e.Len != nil {
			return "[" + renderType(e.Len) + "]" + renderType(e.Elt)
		}
		return "[]" + renderType(e.Elt)

	case *ast.MapType:
		return "map[" + renderType(e.Key) + "]" + renderType(e.Value)

	case *ast.InterfaceType:
		return renderInterface(e)

	case *ast.StructType:
		return renderStruct(e)

	case *ast.FuncType:
		return "func" + signatureOf(e).String()

	case *ast.Ellipsis:
		return "..." + renderType(e.Elt)

	case *ast.ChanType:
		switch e.Dir {
		case ast.RECV:
			return "<-chan " + renderType(e.Value)
		case ast.SEND:
			return "chan<- " + renderType(e.Value)
		default:
			return "chan " + renderType(e.Value)
		}

	case *ast.IndexExpr:
		return renderType(e.X) + "[" + renderType(e.Index) + "]"

	case *ast.IndexListExpr:
		indices := make([]string, len(e.Indices))
		for i, idx := range e.Indices {
			indices[i] = renderType(idx)
		}
		return renderType(e.X) + "[" + strings.Join(indices, ", ") + "]"

	case *ast.ParenExpr:
		return "(" + renderType(e.X) + ")"

	case *ast.UnaryExpr:
		return e.Op.String() + renderType(e.X)

	case *ast.BinaryExpr:
		return renderType(e.X) + " " + e.Op.String() + " " + renderType(e.Y)

	case *ast.BasicLit:
		return e.Value

	default:
		return types.ExprString(expr)
	}
}

// signatureOf extracts parameter and result types from a function type,
// one entry per declared name (a, b int gives two parameters).
func signatureOf(funcType *ast.FuncType) signature {
	if funcType == nil {
		return signature{}
	}

	var sig signature
	if funcType.Params != nil {
		for _, field := range funcType.Params.List {
			typ := renderType(field.Type)
			if len(field.Names) == 0 {
				// Unnamed parameter (common in interface method signatures).
				sig.params = append(sig.params, param{typ: typ})
				continue
			}
			for _, name := range field.Names {
				sig.params = append(sig.params, param{name: name.Name, typ: typ})
			}
		}
	}

	if funcType.Results != nil {
		for _, field := range funcType.Results.List {
			typ := renderType(field.Type)
			for range max(1, len(field.Names)) {
				sig.results = append(sig.results, typ)
			}
		}
	}

	return sig
}

// String renders the signature as "(Type1, Type2) RetType" or
// "(Type1) (RetType1, RetType2)".
func (s signature) String() string {
	parts := make([]string, len(s.params))
	for i, p := range s.params {
		parts[i] = p.typ
	}
	out := "(" + strings.Join(parts, ", ") + ")"

	switch len(s.results) {
	case 0:
		return out
	case 1:
		return out + " " + s.results[0]
	default:
		return out + " (" + strings.Join(s.results, ", ") + ")"
	}
}

// resultRefs converts the results into forest type references.
func (s signature) resultRefs() []forest.TypeRef {
	if len(s.results) == 0 {
		return nil
	}
	refs := make([]forest.TypeRef, len(s.results))
	for i, r := range s.results {
		refs[i] = forest.TypeRef{Name: r}
	}
	return refs
}

// renderStruct produces "struct{Field1 Type1; Field2 Type2}". Inline struct
// types are part of the identity of the types using them, so unexported
// fields are kept.
func renderStruct(structType *ast.StructType) string {
	if structType.Fields == nil || len(structType.Fields.List) == 0 {
		return "struct{}"
	}

	var fields []string
	for _, field := range structType.Fields.List {
		typ := renderType(field.Type)
		if len(field.Names) == 0 {
			fields = append(fields, typ)
			continue
		}
		for _, name := range field.Names {
			fields = append(fields, name.Name+" "+typ)
		}
	}
	return "struct{" + strings.Join(fields, "; ") + "}"
}

// renderInterface produces "interface{Method1(sig); Method2(sig)}" with the
// entries sorted alphabetically.
func renderInterface(interfaceType *ast.InterfaceType) string {
	if interfaceType.Methods == nil || len(interfaceType.Methods.List) == 0 {
		return "interface{}"
	}

	var entries []string
	for _, method := range interfaceType.Methods.List {
		if len(method.Names) > 0 {
			if funcType, ok := method.Type.(*ast.FuncType); ok {
				entries = append(entries, method.Names[0].Name+signatureOf(funcType).String())
			}
			continue
		}
		// Embedded interface or type constraint.
		entries = append(entries, renderType(method.Type))
	}

	slices.Sort(entries)
	return "interface{" + strings.Join(entries, "; ") + "}"
}

// typeParams converts a type parameter list into forest type parameters.
func typeParams(list *ast.FieldList) []forest.TypeParam {
	if list == nil {
		return nil
	}
	var out []forest.TypeParam
	for _, field := range list.List {
		bound := forest.TypeRef{Name: renderType(field.Type)}
		for _, name := range field.Names {
			out = append(out, forest.TypeParam{Name: name.Name, Bounds: []forest.TypeRef{bound}})
		}
	}
	return out
}

// baseTypeName extracts the base type name from an AST expression,
// stripping pointers, type parameters (generics), and package selectors.
// Examples: *Client -> "Client", Foo[T] -> "Foo", *Bar[T, U] -> "Bar"
func baseTypeName(expr ast.Expr) string {
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	switch idx := expr.(type) {
	case *ast.IndexExpr:
		expr = idx.X
	case *ast.IndexListExpr:
		expr = idx.X
	}

	switch e := expr.(type) {
	case *ast.Ident:
		return e.Name
	case *ast.SelectorExpr:
		return e.Sel.Name
	}
	return ""
}

// receiver returns the base type name of a method receiver and the names
// it gives the receiver type's parameters (T in func (l *List[T]) ...).
func receiver(recv *ast.FieldList) (name string, params []forest.TypeParam) {
	if recv == nil || len(recv.List) == 0 {
		return "", nil
	}
	expr := recv.List[0].Type
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}

	var indices []ast.Expr
	switch idx := expr.(type) {
	case *ast.IndexExpr:
		indices = []ast.Expr{idx.Index}
	case *ast.IndexListExpr:
		indices = idx.Indices
	}
	for _, ix := range indices {
		if id, ok := ix.(*ast.Ident); ok {
			params = append(params, forest.TypeParam{Name: id.Name})
		}
	}
	return baseTypeName(recv.List[0].Type), params
}
