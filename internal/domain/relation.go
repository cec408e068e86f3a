package domain

// Relation distinguishes a relation that was never requested from one that
// was loaded and happens to be empty. The zero value means not requested.
type Relation[T any] struct {
	requested bool
	items     []T
}

// Loaded marks a relation as fetched, preserving an empty (non-nil) list when
// the parent genuinely has no children.
func Loaded[T any](items []T) Relation[T] {
	if items == nil {
		items = []T{}
	}
	return Relation[T]{requested: true, items: items}
}

// Requested reports whether the relation was ever fetched.
func (r Relation[T]) Requested() bool {
	return r.requested
}

// Items returns the loaded children and whether they were fetched at all.
// Callers must not treat (nil, false) as an empty relation.
func (r Relation[T]) Items() ([]T, bool) {
	if !r.requested {
		return nil, false
	}
	return r.items, true
}
