package testmod

// List is a generic list.
//
//api:Public
type List[T any] struct {
	items []T
}

// Push appends v.
func (l *List[T]) Push(v T) {}

// Add appends v.
//
// Deprecated: use Push.
func (l *List[T]) Add(v T) {}

// Limits are exported constants.
const (
	MinSize = 1
	MaxSize = 1 << 4
)
