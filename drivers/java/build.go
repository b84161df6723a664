package java

import (
	"log/slog"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/emenda-labs/apidelta/core/forest"
)

// constructorName names constructors in the forest.
const constructorName = "<init>"

var flavors = map[string]forest.TypeFlavor{
	"class_declaration":           forest.FlavorClass,
	"interface_declaration":       forest.FlavorInterface,
	"enum_declaration":            forest.FlavorEnum,
	"record_declaration":          forest.FlavorRecord,
	"annotation_type_declaration": forest.FlavorAnnotation,
}

// assembler adds compilation units to a forest builder in order.
type assembler struct {
	b        *forest.Builder
	logger   *slog.Logger
	packages map[string]forest.ID
}

func newAssembler(b *forest.Builder, logger *slog.Logger) *assembler {
	return &assembler{b: b, logger: logger, packages: map[string]forest.ID{}}
}

// owner is the type whose body is being assembled.
type owner struct {
	id     forest.ID
	fqn    string
	flavor forest.TypeFlavor
	mods   forest.Modifiers
	path   string

	// components are the record header parameters.
	components []paramDecl
	// declared holds name(types) of every method and constructor written in
	// the body, visible or not, to decide on implicit members.
	declared     map[string]bool
	constructors int
}

// memberOfInterface reports whether members are implicitly public.
func (o *owner) memberOfInterface() bool {
	return o.flavor == forest.FlavorInterface || o.flavor == forest.FlavorAnnotation
}

// visible applies implicit modifiers and reports whether a member with the
// given modifiers is part of the API.
func (o *owner) visible(mods forest.Modifiers) (forest.Modifiers, bool) {
	if o.memberOfInterface() {
		if mods.Has(forest.Private) {
			return mods, false
		}
		return mods | forest.Public, true
	}
	return mods, mods.Has(forest.Public) || mods.Has(forest.Protected)
}

type paramDecl struct {
	name string
	typ  forest.TypeRef
	anns []*sitter.Node
}

func signatureKey(name string, params []paramDecl) string {
	types := make([]string, len(params))
	for i, p := range params {
		types[i] = p.typ.String()
	}
	return name + "(" + strings.Join(types, ",") + ")"
}

// compilationUnit adds the package and the accessible top level types of a
// parsed file.
func (a *assembler) compilationUnit(root *sitter.Node, src []byte, path string) {
	pkgName := ""
	var pkgAnns []*sitter.Node
	for _, c := range namedChildren(root) {
		if c.Type() != "package_declaration" {
			continue
		}
		for _, p := range namedChildren(c) {
			switch {
			case isAnnotation(p):
				pkgAnns = append(pkgAnns, p)
			case p.Type() == "scoped_identifier" || p.Type() == "identifier":
				pkgName = text(p, src)
			}
		}
	}

	// Packages without accessible types are not part of the API.
	exported := len(pkgAnns) > 0
	for _, c := range namedChildren(root) {
		if _, ok := flavors[c.Type()]; ok {
			if mods, _ := declModifiers(c); mods.Has(forest.Public) {
				exported = true
			}
		}
	}
	if !exported {
		return
	}

	parent := forest.NoID
	if pkgName != "" {
		id, ok := a.packages[pkgName]
		if !ok {
			id = a.b.AddPackage(pkgName)
			a.b.SetDeclaring(id, path)
			a.packages[pkgName] = id
		}
		parent = id
		a.annotate(id, pkgAnns, src)
	}

	for _, c := range namedChildren(root) {
		if _, ok := flavors[c.Type()]; ok {
			a.typeDecl(parent, pkgName, nil, c, src, path)
		}
	}
}

func (a *assembler) annotate(id forest.ID, anns []*sitter.Node, src []byte) {
	for _, n := range anns {
		typ, attrs := annotation(n, src)
		if typ == "" {
			continue
		}
		a.b.AddAnnotation(id, typ, attrs...)
	}
}

// typeDecl adds a type declaration and its members. enclosing is nil for
// top level types.
func (a *assembler) typeDecl(parent forest.ID, prefix string, enclosing *owner, n *sitter.Node, src []byte, path string) {
	flavor := flavors[n.Type()]
	mods, anns := declModifiers(n)

	if enclosing == nil {
		if !mods.Has(forest.Public) {
			return
		}
	} else {
		var ok bool
		if mods, ok = enclosing.visible(mods); !ok {
			return
		}
		if flavor != forest.FlavorClass || enclosing.memberOfInterface() {
			mods |= forest.Static
		}
	}

	body := n.ChildByFieldName("body")
	switch flavor {
	case forest.FlavorInterface, forest.FlavorAnnotation:
		mods |= forest.Abstract
	case forest.FlavorRecord:
		mods |= forest.Final
	case forest.FlavorEnum:
		if !constantsHaveBodies(body) {
			mods |= forest.Final
		}
	}

	name := text(n.ChildByFieldName("name"), src)
	if name == "" {
		a.logger.Warn("Skipping type declaration without a name", "path", path, "line", n.StartPoint().Row+1)
		return
	}
	fqn := name
	if prefix != "" {
		fqn = prefix + "." + name
	}

	info := &forest.TypeInfo{
		Flavor:     flavor,
		TypeParams: typeParams(n.ChildByFieldName("type_parameters"), src),
	}
	info.Supertypes = append(info.Supertypes, typeList(n.ChildByFieldName("superclass"), src)...)
	info.Supertypes = append(info.Supertypes, typeList(n.ChildByFieldName("interfaces"), src)...)
	if ext := childOfType(n, "extends_interfaces"); ext != nil {
		info.Supertypes = append(info.Supertypes, typeList(ext, src)...)
	}

	id := a.b.AddType(parent, fqn, mods, info)
	a.b.SetDeclaring(id, path)
	a.annotate(id, anns, src)

	o := &owner{id: id, fqn: fqn, flavor: flavor, mods: mods, path: path, declared: map[string]bool{}}
	if flavor == forest.FlavorRecord {
		o.components = params(n.ChildByFieldName("parameters"), src)
	}

	if flavor == forest.FlavorEnum {
		a.enumConstants(o, body, src)
	}
	a.members(o, body, src)
	a.implicitMembers(o, src)
}

// constantsHaveBodies reports whether any enum constant declares a class
// body, which makes the enum type non-final.
func constantsHaveBodies(body *sitter.Node) bool {
	for _, c := range namedChildren(body) {
		if c.Type() == "enum_constant" && c.ChildByFieldName("body") != nil {
			return true
		}
	}
	return false
}

func (a *assembler) enumConstants(o *owner, body *sitter.Node, src []byte) {
	for _, c := range namedChildren(body) {
		if c.Type() != "enum_constant" {
			continue
		}
		_, anns := declModifiers(c)
		id := a.b.AddField(o.id, text(c.ChildByFieldName("name"), src), forest.Public|forest.Static|forest.Final, &forest.FieldInfo{
			Type:         forest.TypeRef{Name: o.fqn},
			EnumConstant: true,
		})
		a.b.SetDeclaring(id, o.path)
		a.annotate(id, anns, src)
	}
}

// members adds the accessible declarations of a class, interface, enum,
// record or annotation type body.
func (a *assembler) members(o *owner, body *sitter.Node, src []byte) {
	for _, c := range namedChildren(body) {
		switch c.Type() {
		case "method_declaration":
			a.method(o, c, src)
		case "constructor_declaration", "compact_constructor_declaration":
			a.constructor(o, c, src)
		case "field_declaration", "constant_declaration":
			a.fields(o, c, src)
		case "annotation_type_element_declaration":
			a.element(o, c, src)
		case "enum_body_declarations":
			a.members(o, c, src)
		default:
			if _, ok := flavors[c.Type()]; ok {
				a.typeDecl(o.id, o.fqn, o, c, src, o.path)
			}
		}
	}
}

func (a *assembler) method(o *owner, n *sitter.Node, src []byte) {
	name := text(n.ChildByFieldName("name"), src)
	ps := params(n.ChildByFieldName("parameters"), src)
	o.declared[signatureKey(name, ps)] = true

	mods, anns := declModifiers(n)
	mods, ok := o.visible(mods)
	if !ok {
		return
	}
	if o.memberOfInterface() && n.ChildByFieldName("body") == nil &&
		!mods.Has(forest.Static) && !mods.Has(forest.Default) {
		mods |= forest.Abstract
	}

	info := &forest.MethodInfo{
		TypeParams: typeParams(n.ChildByFieldName("type_parameters"), src),
		Throws:     typeList(childOfType(n, "throws"), src),
	}
	result := typeRef(n.ChildByFieldName("type"), src)
	result.Dims += dims(n.ChildByFieldName("dimensions"), src)
	if !result.IsZero() {
		info.Results = []forest.TypeRef{result}
	}
	a.addMethod(o, name, mods, info, ps, anns, src)
}

func (a *assembler) constructor(o *owner, n *sitter.Node, src []byte) {
	var ps []paramDecl
	if n.Type() == "compact_constructor_declaration" {
		ps = o.components
	} else {
		ps = params(n.ChildByFieldName("parameters"), src)
	}
	o.declared[signatureKey(constructorName, ps)] = true
	o.constructors++

	mods, anns := declModifiers(n)
	mods, ok := o.visible(mods)
	if !ok {
		return
	}
	info := &forest.MethodInfo{
		TypeParams:  typeParams(n.ChildByFieldName("type_parameters"), src),
		Throws:      typeList(childOfType(n, "throws"), src),
		Constructor: true,
	}
	a.addMethod(o, constructorName, mods, info, ps, anns, src)
}

// element adds an annotation type element as an abstract method.
func (a *assembler) element(o *owner, n *sitter.Node, src []byte) {
	mods, anns := declModifiers(n)
	mods, _ = o.visible(mods)
	result := typeRef(n.ChildByFieldName("type"), src)
	result.Dims += dims(n.ChildByFieldName("dimensions"), src)
	info := &forest.MethodInfo{Results: []forest.TypeRef{result}}
	a.addMethod(o, text(n.ChildByFieldName("name"), src), mods|forest.Abstract, info, nil, anns, src)
}

func (a *assembler) addMethod(o *owner, name string, mods forest.Modifiers, info *forest.MethodInfo, ps []paramDecl, anns []*sitter.Node, src []byte) {
	id := a.b.AddMethod(o.id, name, mods, info)
	a.b.SetDeclaring(id, o.path)
	for _, p := range ps {
		pid := a.b.AddParameter(id, p.name, p.typ)
		a.annotate(pid, p.anns, src)
	}
	a.annotate(id, anns, src)
}

// fields adds every declarator of a field or interface constant
// declaration. Static final fields initialized with a literal keep it as
// their value.
func (a *assembler) fields(o *owner, n *sitter.Node, src []byte) {
	mods, anns := declModifiers(n)
	if o.memberOfInterface() {
		mods |= forest.Static | forest.Final
	}
	mods, ok := o.visible(mods)
	if !ok {
		return
	}
	typ := typeRef(n.ChildByFieldName("type"), src)

	for _, d := range namedChildren(n) {
		if d.Type() != "variable_declarator" {
			continue
		}
		info := &forest.FieldInfo{Type: typ}
		info.Type.Dims += dims(d.ChildByFieldName("dimensions"), src)
		if mods.Has(forest.Static | forest.Final) {
			info.Value = literalValue(d.ChildByFieldName("value"), src)
		}
		id := a.b.AddField(o.id, text(d.ChildByFieldName("name"), src), mods, info)
		a.b.SetDeclaring(id, o.path)
		a.annotate(id, anns, src)
	}
}

// implicitMembers adds what the compiler generates: the default
// constructor of a class without constructors, and the canonical
// constructor and component accessors of a record.
func (a *assembler) implicitMembers(o *owner, src []byte) {
	access := o.mods & (forest.Public | forest.Protected)
	switch o.flavor {
	case forest.FlavorClass:
		if o.constructors == 0 && access != 0 {
			id := a.b.AddMethod(o.id, constructorName, access, &forest.MethodInfo{Constructor: true})
			a.b.SetDeclaring(id, o.path)
		}
	case forest.FlavorRecord:
		if !o.declared[signatureKey(constructorName, o.components)] && access != 0 {
			a.addMethod(o, constructorName, access, &forest.MethodInfo{Constructor: true}, o.components, nil, src)
		}
		for _, c := range o.components {
			if o.declared[signatureKey(c.name, nil)] {
				continue
			}
			id := a.b.AddMethod(o.id, c.name, forest.Public, &forest.MethodInfo{Results: []forest.TypeRef{c.typ}})
			a.b.SetDeclaring(id, o.path)
		}
	}
}

// params converts a formal_parameters node. Varargs get one more dimension
// and the variadic flag.
func params(n *sitter.Node, src []byte) []paramDecl {
	var out []paramDecl
	for _, c := range namedChildren(n) {
		_, anns := declModifiers(c)
		switch c.Type() {
		case "formal_parameter":
			t := typeRef(c.ChildByFieldName("type"), src)
			t.Dims += dims(c.ChildByFieldName("dimensions"), src)
			out = append(out, paramDecl{name: text(c.ChildByFieldName("name"), src), typ: t, anns: anns})

		case "spread_parameter":
			var p paramDecl
			for _, k := range namedChildren(c) {
				switch {
				case k.Type() == "modifiers" || isAnnotation(k):
				case k.Type() == "variable_declarator":
					p.name = text(k.ChildByFieldName("name"), src)
				case p.typ.IsZero():
					p.typ = typeRef(k, src)
				}
			}
			p.typ.Dims++
			p.typ.Variadic = true
			p.anns = anns
			out = append(out, p)
		}
	}
	return out
}
