package ports

import "github.com/aretw0/tessera/pkg/domain"

// Adapter abstracts the representation of the state tree.
// The container only touches state through an Adapter and the composite reducer.
type Adapter interface {
	// DefaultState returns an empty tree used when namespaced units need a root.
	DefaultState() any

	// Has reports whether the namespace holds a non-nil slice.
	Has(state any, namespace string) bool

	// Get returns the namespace slice, or nil.
	Get(state any, namespace string) any

	// Set returns a new tree with the namespace slice replaced.
	// The input tree must not be modified.
	Set(state any, namespace string, value any) any

	// IsEqual is the equality predicate used for memoization.
	IsEqual(a, b any) bool

	// WrapReducer decorates the composite reducer before it reaches the store.
	WrapReducer(reducer domain.ReducerFunc) domain.ReducerFunc
}
