// Package java loads Java sources into API forests using tree-sitter.
//
// An artifact is a directory of .java files or a sources archive
// (-sources.jar or .zip). Only the accessible API is kept: public types,
// their public and protected members, and the members of interfaces.
package java

import (
	"cmp"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
	"golang.org/x/sync/errgroup"

	"github.com/emenda-labs/apidelta/core/driver"
	"github.com/emenda-labs/apidelta/core/forest"
	"github.com/emenda-labs/apidelta/pkg/archive"
)

var _ driver.Loader = (*Driver)(nil)

// Driver implements driver.Loader for Java sources.
type Driver struct {
	jobs   int
	label  string
	logger *slog.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithJobs bounds concurrent file parsing; 0 means GOMAXPROCS.
func WithJobs(n int) Option {
	return func(d *Driver) { d.jobs = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithLabel names the loaded version in reports instead of the artifact path.
func WithLabel(label string) Option {
	return func(d *Driver) { d.label = label }
}

// NewDriver creates a Java Driver.
func NewDriver(opts ...Option) *Driver {
	d := &Driver{logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// sourceFile is a parsed compilation unit.
type sourceFile struct {
	path    string
	content []byte
	tree    *sitter.Tree
}

// BuildForest parses every .java file under the artifact and builds its
// API forest.
func (d *Driver) BuildForest(ctx context.Context, artifact string) (*forest.Forest, error) {
	f, err := d.build(ctx, artifact)
	if err != nil {
		return nil, &driver.LoadError{Artifact: artifact, Err: err}
	}
	return f, nil
}

func (d *Driver) build(ctx context.Context, artifact string) (*forest.Forest, error) {
	root := artifact
	if archive.IsArchive(artifact) {
		dir, cleanup, err := archive.ExtractZipFile(artifact, filepath.Base(artifact))
		if err != nil {
			return nil, err
		}
		defer cleanup()
		root = dir
	} else if info, err := os.Stat(artifact); err != nil {
		return nil, err
	} else if !info.IsDir() {
		return nil, fmt.Errorf("%s is neither a directory nor a sources archive", artifact)
	}

	paths, err := sourceFiles(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	files, err := d.parseFiles(ctx, paths)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, f := range files {
			f.tree.Close()
		}
	}()

	a := newAssembler(forest.NewBuilder(forest.DialectJava, cmp.Or(d.label, artifact)), d.logger)
	for _, f := range files {
		rel, err := filepath.Rel(root, f.path)
		if err != nil {
			rel = f.path
		}
		a.compilationUnit(f.tree.RootNode(), f.content, filepath.ToSlash(rel))
	}

	result, err := a.b.Build()
	if err != nil {
		return nil, fmt.Errorf("building forest: %w", err)
	}
	d.logger.Debug("Built Java forest", "artifact", artifact, "files", len(files), "elements", result.Len())
	return result, nil
}

// sourceFiles lists the .java files under root in lexical order, skipping
// hidden directories and module descriptors.
func sourceFiles(ctx context.Context, root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".java") && d.Name() != "module-info.java" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)
	return paths, nil
}

// parseFiles parses the files concurrently with one tree-sitter parser per
// worker. The result keeps the order of paths.
func (d *Driver) parseFiles(ctx context.Context, paths []string) ([]sourceFile, error) {
	jobs := d.jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	jobs = min(jobs, max(1, len(paths)))

	files := make([]sourceFile, len(paths))
	next := make(chan int)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(next)
		for i := range paths {
			select {
			case next <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for range jobs {
		g.Go(func() error {
			parser := sitter.NewParser()
			defer parser.Close()
			parser.SetLanguage(java.GetLanguage())

			for i := range next {
				content, err := os.ReadFile(paths[i])
				if err != nil {
					return fmt.Errorf("read file: %w", err)
				}
				tree, err := parser.ParseCtx(gctx, nil, content)
				if err != nil {
					return fmt.Errorf("parse %s: %w", paths[i], err)
				}
				if tree.RootNode().HasError() {
					d.logger.Warn("Java source has syntax errors; declarations inside them are skipped", "path", paths[i])
				}
				files[i] = sourceFile{path: paths[i], content: content, tree: tree}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, f := range files {
			if f.tree != nil {
				f.tree.Close()
			}
		}
		return nil, err
	}
	return files, nil
}
