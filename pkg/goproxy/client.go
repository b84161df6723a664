// Package goproxy downloads module zips from the Go module proxy chain.
package goproxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/mod/module"
)

const (
	defaultProxy      = "https://proxy.golang.org,direct"
	httpClientTimeout = 30 * time.Second
	defaultUserAgent  = "apidelta/0.1.0"
)

// ErrNotFound is returned when no proxy in the chain has the module version.
var ErrNotFound = errors.New("module version not found on any proxy")

// Client downloads module zip files from the Go module proxy.
type Client struct {
	httpClient *http.Client
	userAgent  string
	proxies    []string
	logger     *slog.Logger
}

// NewClient creates a Client that reads the GOPROXY environment variable to
// determine the proxy chain. If GOPROXY is unset, it defaults to
// "https://proxy.golang.org,direct".
func NewClient(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: httpClientTimeout},
		userAgent:  defaultUserAgent,
		proxies:    parseProxies(os.Getenv("GOPROXY")),
		logger:     logger,
	}
}

// Proxies returns the proxy chain in lookup order.
func (c *Client) Proxies() []string { return c.proxies }

// parseProxies splits a GOPROXY value, which is a comma- or pipe-separated
// list of proxy URLs.
func parseProxies(goproxy string) []string {
	if strings.TrimSpace(goproxy) == "" {
		goproxy = defaultProxy
	}
	parts := strings.FieldsFunc(goproxy, func(r rune) bool { return r == ',' || r == '|' })
	proxies := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimRight(strings.TrimSpace(p), "/"); trimmed != "" {
			proxies = append(proxies, trimmed)
		}
	}
	return proxies
}

// DownloadZip fetches the zip archive for the given module and version from the
// proxy chain. It returns the raw zip bytes on success.
func (c *Client) DownloadZip(ctx context.Context, mod, version string) ([]byte, error) {
	escapedMod, err := module.EscapePath(mod)
	if err != nil {
		return nil, fmt.Errorf("escaping module path %q: %w", mod, err)
	}
	escapedVersion, err := module.EscapeVersion(version)
	if err != nil {
		return nil, fmt.Errorf("escaping version %q: %w", version, err)
	}

	for i, proxy := range c.proxies {
		switch proxy {
		case "direct":
			c.logger.Debug("Direct mode not supported, skipping", "module", mod)
			continue
		case "off":
			c.logger.Debug("Proxy chain contains off, stopping", "module", mod)
			return nil, fmt.Errorf("%s@%s: %w", mod, version, ErrNotFound)
		}

		zipURL := fmt.Sprintf("%s/%s/@v/%s.zip", proxy, escapedMod, escapedVersion)
		c.logger.Debug("Downloading module", "url", zipURL)

		data, tryNext, fetchErr := c.fetch(ctx, zipURL)
		if fetchErr == nil {
			return data, nil
		}

		if tryNext && i < len(c.proxies)-1 {
			c.logger.Debug("Proxy failed, trying next", "proxy", proxy, "error", fetchErr)
			continue
		}

		return nil, fetchErr
	}

	return nil, fmt.Errorf("%s@%s: %w", mod, version, ErrNotFound)
}

// fetch performs a single HTTP GET for the given URL.
// It returns (data, tryNext, error).
// tryNext signals that the caller should attempt the next proxy in the chain.
func (c *Client) fetch(ctx context.Context, url string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network-level error; let the caller decide whether to try the next proxy.
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, true, fmt.Errorf("proxy returned %d for %s: %w", resp.StatusCode, url, ErrNotFound)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("reading response body from %s: %w", url, err)
	}

	return data, false, nil
}
