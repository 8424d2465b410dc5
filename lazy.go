package tether

import "context"

// LazyReference is a placeholder standing in for an association that may
// not have been loaded yet. An uninitialized reference can only point at a
// row that already exists in the store (loading it would have failed
// otherwise), so it is never transient and never nullified.
type LazyReference interface {
	// Uninitialized reports whether the target has not been loaded.
	Uninitialized() bool

	// Resolve returns the referenced object, loading it if necessary.
	Resolve(ctx context.Context) (any, error)
}

// Unfetched is the sentinel standing in for a lazy property value that was
// never read from the store. It compares equal only to itself.
var Unfetched any = unfetchedProperty{}

type unfetchedProperty struct{}

func (unfetchedProperty) String() string {
	return "<unfetched>"
}
