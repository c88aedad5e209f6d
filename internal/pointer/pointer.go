// Package pointer helps with the optional fields of session snapshots.
package pointer

// To returns a pointer to v.
func To[T any](v T) *T {
	return &v
}

// Copy returns a pointer to a copy of *p, or nil if p is nil.
func Copy[T any](p *T) *T {
	if p == nil {
		return nil
	}

	return To(*p)
}
