package forest

import (
	"errors"
	"fmt"

	"fortio.org/safecast"
)

// ErrBuilt is returned when a Builder is used after Build.
var ErrBuilt = errors.New("forest already built")

// Builder assembles a Forest. It is the only way to mutate elements.
//
// Add methods record the first error and turn later calls into no-ops, so
// loaders can add a whole declaration tree and check Build once.
type Builder struct {
	forest *Forest
	err    error
}

// NewBuilder starts an empty forest of the given dialect. The label names
// the API version (for instance "v1.2.0" or a directory) in reports.
func NewBuilder(dialect Dialect, label string) *Builder {
	return &Builder{forest: &Forest{dialect: dialect, label: label}}
}

// Err returns the first error recorded by the builder.
func (b *Builder) Err() error { return b.err }

// Element returns an already added element so loaders can inspect it.
func (b *Builder) Element(id ID) *Element {
	if b.forest == nil {
		return nil
	}
	return b.forest.Element(id)
}

// Add appends e under parent (NoID for a root) and returns its id. The
// element's ID, Parent and Children fields are managed by the builder.
func (b *Builder) Add(parent ID, e Element) ID {
	if b.err != nil {
		return NoID
	}
	if b.forest == nil {
		b.err = ErrBuilt
		return NoID
	}
	if err := b.checkNesting(parent, e.Kind); err != nil {
		b.err = err
		return NoID
	}

	n, err := safecast.Conv[uint32](len(b.forest.store) + 1)
	if err != nil {
		b.err = fmt.Errorf("forest exceeds element capacity: %w", err)
		return NoID
	}
	id := ID(n)

	e.ID = id
	e.Parent = parent
	e.Children = nil
	if e.Kind == Parameter {
		info := e.Parameter()
		if info == nil {
			info = &ParameterInfo{}
			e.Payload = info
		}
		info.Index = b.countChildren(parent, Parameter)
	}

	b.forest.store = append(b.forest.store, e)
	if parent == NoID {
		b.forest.roots = append(b.forest.roots, id)
	} else {
		p := b.forest.Element(parent)
		p.Children = append(p.Children, id)
	}
	return id
}

// AddPackage adds a root package.
func (b *Builder) AddPackage(name string) ID {
	return b.Add(NoID, Element{Kind: Package, Name: name})
}

// AddType adds a type under a package, another type, or as a root. The name
// must be fully qualified.
func (b *Builder) AddType(parent ID, name string, mods Modifiers, info *TypeInfo) ID {
	if info == nil {
		info = &TypeInfo{Flavor: FlavorClass}
	}
	return b.Add(parent, Element{Kind: Type, Name: name, Modifiers: mods, Payload: info})
}

// AddMethod adds a method (or constructor) under its owner.
func (b *Builder) AddMethod(owner ID, name string, mods Modifiers, info *MethodInfo) ID {
	if info == nil {
		info = &MethodInfo{}
	}
	return b.Add(owner, Element{Kind: Method, Name: name, Modifiers: mods, Payload: info})
}

// AddField adds a field under its owner.
func (b *Builder) AddField(owner ID, name string, mods Modifiers, info *FieldInfo) ID {
	if info == nil {
		info = &FieldInfo{}
	}
	return b.Add(owner, Element{Kind: Field, Name: name, Modifiers: mods, Payload: info})
}

// AddParameter appends the next positional parameter of a method.
func (b *Builder) AddParameter(method ID, name string, typ TypeRef) ID {
	return b.Add(method, Element{Kind: Parameter, Name: name, Payload: &ParameterInfo{Type: typ}})
}

// AddAnnotation annotates an element.
func (b *Builder) AddAnnotation(owner ID, typ string, attrs ...Attribute) ID {
	return b.Add(owner, Element{
		Kind:    Annotation,
		Name:    typ,
		Payload: &AnnotationInfo{Type: typ, Attributes: attrs},
	})
}

// SetDeclaring attaches a loader handle to an added element.
func (b *Builder) SetDeclaring(id ID, handle any) {
	if e := b.Element(id); e != nil {
		e.Declaring = handle
	}
}

// Build finishes the forest. The builder cannot be used afterwards.
func (b *Builder) Build() (*Forest, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.forest == nil {
		return nil, ErrBuilt
	}
	f := b.forest
	b.forest = nil
	if err := f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (b *Builder) countChildren(parent ID, kind Kind) int {
	p := b.forest.Element(parent)
	if p == nil {
		return 0
	}
	n := 0
	for _, id := range p.Children {
		if b.forest.Element(id).Kind == kind {
			n++
		}
	}
	return n
}

func (b *Builder) checkNesting(parent ID, kind Kind) error {
	if kind == AnyKind || kind > Annotation {
		return fmt.Errorf("cannot add element of kind %s", kind)
	}
	if parent == NoID {
		if kind == Package || kind == Type {
			return nil
		}
		return fmt.Errorf("%s cannot be a forest root", kind)
	}
	p := b.forest.Element(parent)
	if p == nil {
		return fmt.Errorf("parent %d does not exist", parent)
	}
	ok := false
	switch kind {
	case Package:
		ok = false
	case Type:
		ok = p.Kind == Package || p.Kind == Type
	case Method, Field:
		ok = p.Kind == Package || p.Kind == Type
	case Parameter:
		ok = p.Kind == Method
	case Annotation:
		ok = p.Kind != Annotation
	}
	if !ok {
		return fmt.Errorf("%s cannot be nested in %s %s", kind, p.Kind, p.Name)
	}
	return nil
}

// validate checks the structural invariants of a finished forest.
func (f *Forest) validate() error {
	for i := range f.store {
		e := &f.store[i]
		params := 0
		for _, cid := range e.Children {
			c := f.Element(cid)
			if c == nil || c.Parent != e.ID {
				return fmt.Errorf("element %s: child %d does not point back to its parent", f.Path(e), cid)
			}
			if c.Kind == Parameter {
				if c.Parameter().Index != params {
					return fmt.Errorf("element %s: parameter %d has index %d", f.Path(e), params, c.Parameter().Index)
				}
				params++
			}
		}
	}
	return nil
}
