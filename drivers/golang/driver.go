// Package golang loads Go modules into API forests, either from a local
// checkout or by downloading a released version from the module proxy.
package golang

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/mod/module"
	"golang.org/x/mod/semver"

	"github.com/emenda-labs/apidelta/core/driver"
	"github.com/emenda-labs/apidelta/core/forest"
	"github.com/emenda-labs/apidelta/drivers/golang/exports"
	"github.com/emenda-labs/apidelta/pkg/archive"
	"github.com/emenda-labs/apidelta/pkg/forestcache"
	"github.com/emenda-labs/apidelta/pkg/goproxy"
)

var (
	_ driver.Loader        = (*Driver)(nil)
	_ driver.SourceFetcher = (*Driver)(nil)
)

// Driver implements driver.Loader for Go modules. An artifact is either a
// directory containing a module or a module@version reference that is
// downloaded from GOPROXY.
type Driver struct {
	proxy  *goproxy.Client
	cache  *forestcache.Cache
	module string
	jobs   int
	logger *slog.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithCache stores forests of downloaded versions in c.
func WithCache(c *forestcache.Cache) Option {
	return func(d *Driver) { d.cache = c }
}

// WithJobs bounds concurrent file parsing.
func WithJobs(n int) Option {
	return func(d *Driver) { d.jobs = n }
}

// WithLogger sets the logger used by the driver and its proxy client.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithProxy replaces the default GOPROXY client.
func WithProxy(c *goproxy.Client) Option {
	return func(d *Driver) { d.proxy = c }
}

// WithModule overrides the module path read from go.mod for directory
// artifacts.
func WithModule(path string) Option {
	return func(d *Driver) { d.module = path }
}

// NewDriver creates a Driver. Without WithProxy it uses a goproxy.Client
// configured from the environment.
func NewDriver(opts ...Option) *Driver {
	d := &Driver{logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	if d.proxy == nil {
		d.proxy = goproxy.NewClient(d.logger)
	}
	return d
}

// FetchSource downloads the module zip from the proxy and extracts it to a temp directory.
func (d *Driver) FetchSource(ctx context.Context, mod, version string) (string, func(), error) {
	data, err := d.proxy.DownloadZip(ctx, mod, version)
	if err != nil {
		return "", nil, fmt.Errorf("downloading zip for %s@%s: %w", mod, version, err)
	}

	dir, cleanup, err := archive.ExtractZip(data, mod+"@"+version)
	if err != nil {
		return "", nil, fmt.Errorf("extracting zip for %s@%s: %w", mod, version, err)
	}

	return dir, cleanup, nil
}

// BuildForest loads the artifact. Released versions are served from the
// cache when one is configured.
func (d *Driver) BuildForest(ctx context.Context, artifact string) (*forest.Forest, error) {
	f, err := d.build(ctx, artifact)
	if err != nil {
		return nil, &driver.LoadError{Artifact: artifact, Err: err}
	}
	return f, nil
}

func (d *Driver) build(ctx context.Context, artifact string) (*forest.Forest, error) {
	mod, version, ok := ParseModuleVersion(artifact)
	if !ok {
		return exports.BuildForest(ctx, artifact, exports.Options{
			Module: d.module,
			Jobs:   d.jobs,
			Logger: d.logger,
		})
	}

	key := "go:" + artifact
	if f, hit, err := d.cache.Get(key); err != nil {
		d.logger.Warn("Ignoring unreadable cache entry", "artifact", artifact, "error", err)
	} else if hit {
		d.logger.Debug("Forest cache hit", "artifact", artifact)
		return f, nil
	}

	dir, cleanup, err := d.FetchSource(ctx, mod, version)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	f, err := exports.BuildForest(ctx, dir, exports.Options{
		Module: mod,
		Label:  artifact,
		Jobs:   d.jobs,
		Logger: d.logger,
	})
	if err != nil {
		return nil, err
	}
	if err := d.cache.Put(key, f); err != nil {
		d.logger.Warn("Failed to cache forest", "artifact", artifact, "error", err)
	}
	return f, nil
}

// ParseModuleVersion splits a module@version reference. Existing paths are
// never references, so a local directory whose name contains @ still
// loads from disk.
func ParseModuleVersion(artifact string) (mod, version string, ok bool) {
	mod, version, found := strings.Cut(artifact, "@")
	if !found {
		return "", "", false
	}
	if _, err := os.Stat(artifact); err == nil {
		return "", "", false
	}
	if module.CheckPath(mod) != nil || !semver.IsValid(version) {
		return "", "", false
	}
	return mod, version, true
}
