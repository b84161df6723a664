package goproxy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
)

func TestParseProxies(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{"https://proxy.golang.org", "direct"}},
		{"https://a.example/,https://b.example", []string{"https://a.example", "https://b.example"}},
		{"https://a.example|direct| ", []string{"https://a.example", "direct"}},
		{"off", []string{"off"}},
	}
	for _, tt := range tests {
		if got := parseProxies(tt.in); !slices.Equal(got, tt.want) {
			t.Errorf("parseProxies(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDownloadZip(t *testing.T) {
	var gotPath, gotAgent string
	hit := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAgent = r.Header.Get("User-Agent")
		w.Write([]byte("zipdata"))
	}))
	defer hit.Close()

	miss := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer miss.Close()

	t.Setenv("GOPROXY", miss.URL+","+hit.URL)
	c := NewClient(nil)

	data, err := c.DownloadZip(context.Background(), "github.com/Acme/Lib", "v1.2.0")
	if err != nil {
		t.Fatalf("DownloadZip: %v", err)
	}
	if string(data) != "zipdata" {
		t.Errorf("data = %q", data)
	}
	if gotPath != "/github.com/!acme/!lib/@v/v1.2.0.zip" {
		t.Errorf("path = %q, want escaped module path", gotPath)
	}
	if gotAgent != defaultUserAgent {
		t.Errorf("User-Agent = %q", gotAgent)
	}
}

func TestDownloadZip_NotFound(t *testing.T) {
	miss := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer miss.Close()

	for _, chain := range []string{miss.URL, miss.URL + ",off", "direct"} {
		t.Setenv("GOPROXY", chain)
		_, err := NewClient(nil).DownloadZip(context.Background(), "example.com/m", "v1.0.0")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("GOPROXY=%s: error = %v, want ErrNotFound", chain, err)
		}
	}
}

func TestDownloadZip_ServerError(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer broken.Close()

	t.Setenv("GOPROXY", broken.URL)
	_, err := NewClient(nil).DownloadZip(context.Background(), "example.com/m", "v1.0.0")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want a non-NotFound failure", err)
	}
}
