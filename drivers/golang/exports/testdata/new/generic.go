package testmod

// List is a generic list.
//
//api:Public
//api:Since(version = "2")
type List[E any] struct {
	items []E
}

// Push appends v.
func (l *List[E]) Push(v E) {}

// Limits are exported constants.
const (
	MinSize = 1
	MaxSize = 1 << 5
)
