package golang

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"testing"

	"github.com/emenda-labs/apidelta/core/driver"
	"github.com/emenda-labs/apidelta/core/match"
	"github.com/emenda-labs/apidelta/pkg/forestcache"
	"github.com/emenda-labs/apidelta/pkg/goproxy"
)

// moduleZip builds a proxy zip for module@version with the given files.
func moduleZip(t *testing.T, prefix string, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.Create(prefix + "/" + name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newProxy(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	data := moduleZip(t, "github.com/acme/lib@v1.0.0", map[string]string{
		"go.mod": "module github.com/acme/lib\n\ngo 1.21\n",
		"lib.go": "package lib\n\n// Open opens.\nfunc Open(name string) error { return nil }\n",
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/github.com/acme/lib/@v/v1.0.0.zip" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	t.Setenv("GOPROXY", srv.URL)
	return srv
}

func TestBuildForest_ModuleVersion(t *testing.T) {
	var hits atomic.Int32
	newProxy(t, &hits)

	cache, err := forestcache.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	d := NewDriver(WithCache(cache), WithJobs(2))

	for range 2 {
		f, err := d.BuildForest(context.Background(), "github.com/acme/lib@v1.0.0")
		if err != nil {
			t.Fatalf("BuildForest: %v", err)
		}
		if f.Label() != "github.com/acme/lib@v1.0.0" {
			t.Errorf("label = %q", f.Label())
		}
		if !slices.Contains(match.Keys(f), "package github.com/acme/lib::Open(string)") {
			t.Errorf("keys = %v", match.Keys(f))
		}
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("proxy hits = %d, want 1 (second load from cache)", n)
	}
}

func TestBuildForest_NotFound(t *testing.T) {
	var hits atomic.Int32
	newProxy(t, &hits)

	d := NewDriver(WithProxy(goproxy.NewClient(nil)))
	_, err := d.BuildForest(context.Background(), "github.com/acme/lib@v9.9.9")

	var loadErr *driver.LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("err = %v, want *driver.LoadError", err)
	}
	if loadErr.Artifact != "github.com/acme/lib@v9.9.9" {
		t.Errorf("artifact = %q", loadErr.Artifact)
	}
	if !errors.Is(err, goproxy.ErrNotFound) {
		t.Errorf("err = %v, want goproxy.ErrNotFound in chain", err)
	}
}

func TestBuildForest_Directory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/local\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.go"), []byte("package local\n\ntype Thing struct{ Name string }\n"), 0644); err != nil {
		t.Fatal(err)
	}

	f, err := NewDriver(WithModule("example.com/renamed")).BuildForest(context.Background(), dir)
	if err != nil {
		t.Fatalf("BuildForest: %v", err)
	}
	if !slices.Contains(match.Keys(f), "type example.com/renamed.Thing#Name") {
		t.Errorf("keys = %v", match.Keys(f))
	}

	_, err = NewDriver().BuildForest(context.Background(), filepath.Join(dir, "missing"))
	var loadErr *driver.LoadError
	if !errors.As(err, &loadErr) {
		t.Errorf("err = %v, want *driver.LoadError", err)
	}
}

func TestParseModuleVersion(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "lib@v1.0.0")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		artifact string
		mod      string
		version  string
		ok       bool
	}{
		{"github.com/acme/lib@v1.2.3", "github.com/acme/lib", "v1.2.3", true},
		{"github.com/acme/lib/v2@v2.0.0-rc.1", "github.com/acme/lib/v2", "v2.0.0-rc.1", true},
		{"github.com/acme/lib", "", "", false},
		{"github.com/acme/lib@latest", "", "", false},
		{"./relative@v1.0.0", "", "", false},
		{dir, "", "", false},
	}
	for _, tt := range tests {
		mod, version, ok := ParseModuleVersion(tt.artifact)
		if mod != tt.mod || version != tt.version || ok != tt.ok {
			t.Errorf("ParseModuleVersion(%q) = %q, %q, %v; want %q, %q, %v",
				tt.artifact, mod, version, ok, tt.mod, tt.version, tt.ok)
		}
	}
}
