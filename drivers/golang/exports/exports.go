// Package exports builds the API forest of a Go module from its source:
// exported packages, types, functions, methods, fields, constants and
// variables.
//
// Package-level functions become static methods of their package element;
// constants and variables become static fields. Struct fields and interface
// methods nest under their type, and methods are attached to their receiver
// type wherever in the package they are declared.
package exports

import (
	"cmp"
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/emenda-labs/apidelta/core/forest"
	"github.com/emenda-labs/apidelta/pkg/gomod"
)

// Options tune BuildForest.
type Options struct {
	// Module is the Go module import path (e.g. "github.com/acme/foo").
	// When empty it is read from go.mod.
	Module string
	// Label names the version in reports; defaults to the directory.
	Label string
	// Jobs bounds concurrent file parsing; 0 means GOMAXPROCS.
	Jobs   int
	Logger *slog.Logger
}

// sourceFile is one parsed file of the module.
type sourceFile struct {
	path    string
	pkgPath string
	file    *ast.File
}

// BuildForest walks the Go module source at rootDir and builds the forest
// of its exported API. Files that fail to parse are logged and skipped.
func BuildForest(ctx context.Context, rootDir string, opts Options) (*forest.Forest, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sourceRoot, err := gomod.FindModuleRoot(rootDir)
	if err != nil {
		return nil, fmt.Errorf("finding source root in %s: %w", rootDir, err)
	}
	module := opts.Module
	if module == "" {
		if module, err = gomod.FindModulePath(sourceRoot); err != nil {
			return nil, err
		}
	}
	label := cmp.Or(opts.Label, rootDir)

	paths, err := sourceFiles(ctx, sourceRoot)
	if err != nil {
		return nil, fmt.Errorf("walking source at %s: %w", sourceRoot, err)
	}

	files, err := parseFiles(ctx, paths, opts.Jobs, logger)
	if err != nil {
		return nil, err
	}

	var parsed []sourceFile
	for i, file := range files {
		// Skipped after a parse error, or a command.
		if file == nil || file.Name.Name == "main" {
			continue
		}
		parsed = append(parsed, sourceFile{
			path:    paths[i],
			pkgPath: packagePath(sourceRoot, paths[i], module),
			file:    file,
		})
	}
	slices.SortStableFunc(parsed, func(a, b sourceFile) int {
		return strings.Compare(a.pkgPath, b.pkgPath)
	})

	b := forest.NewBuilder(forest.DialectGo, label)
	for start := 0; start < len(parsed); {
		end := start + 1
		for end < len(parsed) && parsed[end].pkgPath == parsed[start].pkgPath {
			end++
		}
		pb := &packageBuilder{b: b, logger: logger, types: map[string]forest.ID{}}
		pb.build(parsed[start:end])
		start = end
	}

	f, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("building forest for %s: %w", module, err)
	}
	logger.Debug("Built Go forest", "module", module, "files", len(parsed), "elements", f.Len())
	return f, nil
}

// sourceFiles lists the non-test Go files of the module in lexical order,
// skipping internal, testdata, vendor and underscore directories.
func sourceFiles(ctx context.Context, sourceRoot string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(sourceRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Skip symlinks to prevent symlink-based path escapes.
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		if d.IsDir() {
			base := d.Name()
			if path != sourceRoot && (base == "internal" || base == "testdata" || base == "vendor" ||
				strings.HasPrefix(base, "_") || strings.HasPrefix(base, ".")) {
				return fs.SkipDir
			}
			// Nested modules are versioned separately.
			if path != sourceRoot && fileExists(filepath.Join(path, "go.mod")) {
				return fs.SkipDir
			}
			return nil
		}

		if strings.HasSuffix(path, ".go") && !strings.HasSuffix(path, "_test.go") {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

// parseFiles parses every path concurrently. The result is indexed like
// paths; files that fail to parse are nil.
func parseFiles(ctx context.Context, paths []string, jobs int, logger *slog.Logger) ([]*ast.File, error) {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	fset := token.NewFileSet()
	files := make([]*ast.File, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			file, err := parser.ParseFile(fset, path, nil, parser.ParseComments|parser.SkipObjectResolution)
			if err != nil {
				logger.Warn("Skipping unparsable file", "path", path, "error", err)
				return nil
			}
			files[i] = file
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// packagePath derives the full Go import path for the package containing
// the file at filePath, relative to the module source root.
func packagePath(sourceRoot, filePath, module string) string {
	relDir, err := filepath.Rel(sourceRoot, filepath.Dir(filePath))
	if err != nil || relDir == "." || relDir == "" {
		return module
	}
	return module + "/" + filepath.ToSlash(relDir)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// packageBuilder adds one package and its declarations to the forest.
type packageBuilder struct {
	b      *forest.Builder
	logger *slog.Logger
	pkg    forest.ID
	path   string
	// types maps exported type names to their elements for method attachment.
	types map[string]forest.ID
}

func (p *packageBuilder) build(files []sourceFile) {
	p.path = files[0].pkgPath
	p.pkg = p.b.AddPackage(p.path)
	for _, f := range files {
		p.annotate(p.pkg, f.file.Doc, f.path)
	}

	// Types first so that methods find their receiver regardless of file
	// and declaration order.
	for _, f := range files {
		for _, decl := range f.file.Decls {
			if gen, ok := decl.(*ast.GenDecl); ok && gen.Tok == token.TYPE {
				p.addTypes(gen, f.path)
			}
		}
	}

	for _, f := range files {
		for _, decl := range f.file.Decls {
			switch d := decl.(type) {
			case *ast.FuncDecl:
				p.addFunc(d, f.path)
			case *ast.GenDecl:
				switch d.Tok {
				case token.CONST:
					p.addValues(d, f.path, forest.Public|forest.Static|forest.Final)
				case token.VAR:
					p.addValues(d, f.path, forest.Public|forest.Static)
				}
			}
		}
	}
}

// annotate attaches the annotations derived from a doc comment.
func (p *packageBuilder) annotate(owner forest.ID, doc *ast.CommentGroup, path string) {
	anns, bad := docAnnotations(doc)
	for _, text := range bad {
		p.logger.Warn("Ignoring malformed API directive", "path", path, "directive", text)
	}
	for _, ann := range anns {
		p.b.AddAnnotation(owner, ann.Type, ann.Attributes...)
	}
}

func (p *packageBuilder) addTypes(gen *ast.GenDecl, path string) {
	for _, spec := range gen.Specs {
		typeSpec, ok := spec.(*ast.TypeSpec)
		if !ok || typeSpec.Name == nil || !typeSpec.Name.IsExported() {
			continue
		}
		if _, dup := p.types[typeSpec.Name.Name]; dup {
			continue
		}

		info := &forest.TypeInfo{TypeParams: typeParams(typeSpec.TypeParams)}
		mods := forest.Public
		switch t := typeSpec.Type.(type) {
		case *ast.StructType:
			info.Flavor = forest.FlavorStruct
		case *ast.InterfaceType:
			info.Flavor = forest.FlavorInterface
			mods |= forest.Abstract
			info.Supertypes = embedded(t)
		default:
			info.Flavor = forest.FlavorNamed
			info.Underlying = renderType(typeSpec.Type)
		}
		if typeSpec.Assign.IsValid() {
			info.Flavor = forest.FlavorAlias
			info.Underlying = renderType(typeSpec.Type)
		}

		id := p.b.AddType(p.pkg, p.path+"."+typeSpec.Name.Name, mods, info)
		p.b.SetDeclaring(id, path)
		p.types[typeSpec.Name.Name] = id
		p.annotate(id, specDoc(typeSpec.Doc, gen), path)

		if info.Flavor == forest.FlavorAlias {
			continue
		}
		switch t := typeSpec.Type.(type) {
		case *ast.StructType:
			p.addFields(id, t, path)
		case *ast.InterfaceType:
			p.addInterfaceMethods(id, t, path)
		}
	}
}

// embedded lists the interfaces and constraints embedded in an interface.
func embedded(t *ast.InterfaceType) []forest.TypeRef {
	if t.Methods == nil {
		return nil
	}
	var refs []forest.TypeRef
	for _, m := range t.Methods.List {
		if len(m.Names) == 0 {
			refs = append(refs, forest.TypeRef{Name: renderType(m.Type)})
		}
	}
	return refs
}

// addFields adds the exported fields of a struct. Embedded fields are named
// by their base type.
func (p *packageBuilder) addFields(owner forest.ID, t *ast.StructType, path string) {
	if t.Fields == nil {
		return
	}
	for _, field := range t.Fields.List {
		typ := forest.TypeRef{Name: renderType(field.Type)}
		if len(field.Names) == 0 {
			name := baseTypeName(field.Type)
			if name == "" || !ast.IsExported(name) {
				continue
			}
			id := p.b.AddField(owner, name, forest.Public, &forest.FieldInfo{Type: typ})
			p.annotate(id, field.Doc, path)
			continue
		}
		for _, name := range field.Names {
			if !name.IsExported() {
				continue
			}
			id := p.b.AddField(owner, name.Name, forest.Public, &forest.FieldInfo{Type: typ})
			p.annotate(id, field.Doc, path)
		}
	}
}

func (p *packageBuilder) addInterfaceMethods(owner forest.ID, t *ast.InterfaceType, path string) {
	if t.Methods == nil {
		return
	}
	for _, m := range t.Methods.List {
		funcType, ok := m.Type.(*ast.FuncType)
		if !ok || len(m.Names) == 0 {
			continue
		}
		// Unexported methods still make the interface impossible to
		// implement outside the package, so they are part of the API.
		mods := forest.Abstract
		if m.Names[0].IsExported() {
			mods |= forest.Public
		}
		p.addMethod(owner, m.Names[0].Name, mods, funcType, nil, m.Doc, path)
	}
}

// addFunc adds a function to its package or a method to its receiver.
// Methods on unexported receivers are skipped.
func (p *packageBuilder) addFunc(fn *ast.FuncDecl, path string) {
	if fn.Name == nil || !fn.Name.IsExported() {
		return
	}
	if fn.Recv == nil {
		p.addMethod(p.pkg, fn.Name.Name, forest.Public|forest.Static, fn.Type, typeParams(fn.Type.TypeParams), fn.Doc, path)
		return
	}

	recvName, recvParams := receiver(fn.Recv)
	owner, ok := p.types[recvName]
	if !ok {
		return
	}
	p.addMethod(owner, fn.Name.Name, forest.Public, fn.Type, recvParams, fn.Doc, path)
}

func (p *packageBuilder) addMethod(owner forest.ID, name string, mods forest.Modifiers, funcType *ast.FuncType, tparams []forest.TypeParam, doc *ast.CommentGroup, path string) {
	sig := signatureOf(funcType)
	id := p.b.AddMethod(owner, name, mods, &forest.MethodInfo{
		Results:    sig.resultRefs(),
		TypeParams: tparams,
	})
	p.b.SetDeclaring(id, path)
	for _, prm := range sig.params {
		p.b.AddParameter(id, prm.name, forest.TypeRef{Name: prm.typ})
	}
	p.annotate(id, doc, path)
}

// addValues adds exported constants or variables as static fields of the
// package.
func (p *packageBuilder) addValues(gen *ast.GenDecl, path string, mods forest.Modifiers) {
	for _, spec := range gen.Specs {
		valSpec, ok := spec.(*ast.ValueSpec)
		if !ok {
			continue
		}
		doc := specDoc(valSpec.Doc, gen)
		for i, name := range valSpec.Names {
			if !name.IsExported() {
				continue
			}
			info := &forest.FieldInfo{Type: forest.TypeRef{Name: renderType(valSpec.Type)}}
			if gen.Tok == token.CONST && i < len(valSpec.Values) {
				info.Value = renderType(valSpec.Values[i])
			}
			id := p.b.AddField(p.pkg, name.Name, mods, info)
			p.b.SetDeclaring(id, path)
			p.annotate(id, doc, path)
		}
	}
}
