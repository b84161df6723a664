package match

import (
	"fmt"

	"github.com/emenda-labs/apidelta/core/forest"
)

// Side names the forest an element comes from.
type Side string

const (
	SideOld Side = "old"
	SideNew Side = "new"
)

// DuplicateKeyError reports two elements of one forest that produce the same
// matching key. The first declared element keeps the key; the duplicate and
// its subtree take no part in matching.
type DuplicateKeyError struct {
	Side      Side
	Key       string
	First     forest.ID
	Duplicate forest.ID
	Path      string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s API: duplicate element key %q at %s", e.Side, e.Key, e.Path)
}
