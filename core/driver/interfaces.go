// Package driver defines the contract between the analysis core and the
// language specific loaders that turn source artifacts into forests.
package driver

import (
	"context"
	"fmt"

	"github.com/emenda-labs/apidelta/core/forest"
)

// Loader is the interface each language must implement to take part in an
// analysis.
type Loader interface {
	// BuildForest reads one version of an API from artifact (a directory,
	// an archive, or whatever the driver understands) and returns its
	// element forest. Failures are *LoadError.
	BuildForest(ctx context.Context, artifact string) (*forest.Forest, error)
}

// SourceFetcher is implemented by drivers that can download an API version
// before loading it.
type SourceFetcher interface {
	// FetchSource downloads module source and unpacks it to a local directory.
	// Returns the path to the unpacked source and a cleanup function that
	// removes the temp directory.
	FetchSource(ctx context.Context, module, version string) (path string, cleanup func(), err error)
}

// LoadError reports an artifact that could not be turned into a forest.
type LoadError struct {
	Artifact string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Artifact, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
