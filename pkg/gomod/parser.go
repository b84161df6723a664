// Package gomod reads go.mod files: module roots, module paths and
// required versions.
package gomod

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
)

// FindModuleVersion reads the go.mod at the given repo path and returns
// the version of the specified module. Returns an error if the module
// is not found in the require directives.
// If the module has a replace directive, a warning is logged but the
// version from the require line is still returned.
func FindModuleVersion(repoPath, module string) (string, error) {
	f, gomodPath, err := parse(repoPath)
	if err != nil {
		return "", err
	}

	for _, rep := range f.Replace {
		if rep.Old.Path == module {
			slog.Warn("Module has a replace directive, proxy version may differ from local source",
				"module", module, "replacement", rep.New.Path)
			break
		}
	}

	for _, req := range f.Require {
		if req.Mod.Path == module {
			return req.Mod.Version, nil
		}
	}

	return "", fmt.Errorf("module %s not found in go.mod at %s", module, gomodPath)
}

// FindModulePath returns the module path declared by the go.mod in dir.
func FindModulePath(dir string) (string, error) {
	f, gomodPath, err := parse(dir)
	if err != nil {
		return "", err
	}
	if f.Module == nil || f.Module.Mod.Path == "" {
		return "", fmt.Errorf("go.mod at %s has no module directive", gomodPath)
	}
	return f.Module.Mod.Path, nil
}

// FindModuleRoot walks from dir looking for go.mod to find the module source root.
// The Go proxy zip extracts to tmpDir/module@version/, so go.mod may be nested.
func FindModuleRoot(dir string) (string, error) {
	if hasGoMod(dir) {
		return dir, nil
	}

	// Walk at most 2 levels deep looking for go.mod.
	var found string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return nil
		}
		if strings.Count(filepath.ToSlash(rel), "/") > 2 {
			return fs.SkipDir
		}

		if hasGoMod(path) {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("searching for go.mod: %w", err)
	}

	if found == "" {
		return "", fmt.Errorf("no go.mod found under %s", dir)
	}
	return found, nil
}

func parse(dir string) (*modfile.File, string, error) {
	gomodPath := filepath.Join(dir, "go.mod")

	data, err := os.ReadFile(gomodPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, gomodPath, fmt.Errorf("no go.mod found at %s", gomodPath)
		}
		return nil, gomodPath, fmt.Errorf("failed to read go.mod: %w", err)
	}

	f, err := modfile.Parse(gomodPath, data, nil)
	if err != nil {
		return nil, gomodPath, fmt.Errorf("failed to parse go.mod: %w", err)
	}
	return f, gomodPath, nil
}

// hasGoMod reports whether the directory contains a go.mod file.
func hasGoMod(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, "go.mod"))
	return err == nil && !info.IsDir()
}
