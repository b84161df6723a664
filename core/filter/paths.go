package filter

import (
	"errors"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/emenda-labs/apidelta/core/forest"
)

// PathsConfig selects elements by glob patterns over their slash paths, for
// example "com/acme/**" or "**/internal/**".
type PathsConfig struct {
	Include []string `yaml:"include,omitempty" toml:"include" json:"include"`
	Exclude []string `yaml:"exclude,omitempty" toml:"exclude" json:"exclude"`
}

// IsZero reports whether the configuration has no patterns.
func (c PathsConfig) IsZero() bool {
	return len(c.Include) == 0 && len(c.Exclude) == 0
}

// Paths is a glob based element filter. Include patterns win over exclude
// patterns; with a non-empty include list unmatched elements are excluded.
type Paths struct {
	include []string
	exclude []string
}

var _ Filter = (*Paths)(nil)

// NewPaths validates the patterns of cfg.
func NewPaths(cfg PathsConfig) (*Paths, error) {
	for _, list := range [][]string{cfg.Include, cfg.Exclude} {
		for _, p := range list {
			if !doublestar.ValidatePattern(p) {
				return nil, configErr("paths", p, errors.New("malformed glob pattern"))
			}
		}
	}
	return &Paths{include: cfg.Include, exclude: cfg.Exclude}, nil
}

// Name implements Filter.
func (p *Paths) Name() string { return "paths" }

// Test implements Filter.
func (p *Paths) Test(f *forest.Forest, e *forest.Element) Decision {
	if len(p.include) == 0 && len(p.exclude) == 0 {
		return Undecided
	}
	path := f.Path(e).Slash()
	if matchAny(p.include, path) {
		return Include
	}
	if matchAny(p.exclude, path) {
		return Exclude
	}
	if len(p.include) > 0 {
		return Exclude
	}
	return Undecided
}

func matchAny(patterns []string, path string) bool {
	for _, pat := range patterns {
		// Patterns are validated in NewPaths, so Match cannot fail here.
		if ok, _ := doublestar.Match(pat, path); ok {
			return true
		}
	}
	return false
}
