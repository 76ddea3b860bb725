package memory

import (
	"reflect"

	"github.com/aretw0/tessera/pkg/domain"
)

// Adapter implements ports.Adapter over plain Go maps.
// The root tree is a map[string]any, replaced (never mutated) on every Set.
// Safe for concurrent use: it holds no state.
type Adapter struct{}

// New creates the plain map adapter.
func New() *Adapter {
	return &Adapter{}
}

// DefaultState returns an empty tree.
func (Adapter) DefaultState() any {
	return map[string]any{}
}

// Has reports whether the namespace holds a non-nil slice.
func (a Adapter) Has(state any, namespace string) bool {
	return a.Get(state, namespace) != nil
}

// Get returns the namespace slice. Trees that are not maps have no slices.
func (Adapter) Get(state any, namespace string) any {
	tree, ok := state.(map[string]any)
	if !ok {
		return nil
	}
	return tree[namespace]
}

// Set copies the tree and replaces one slice.
func (Adapter) Set(state any, namespace string, value any) any {
	tree, _ := state.(map[string]any)
	next := make(map[string]any, len(tree)+1)
	for k, v := range tree {
		next[k] = v
	}
	next[namespace] = value
	return next
}

// IsEqual is a shallow equality check: identical references are equal, and
// maps or slices are equal when their entries are the same references.
func (Adapter) IsEqual(a, b any) bool {
	return ShallowEqual(a, b)
}

// WrapReducer returns the reducer unchanged.
func (Adapter) WrapReducer(reducer domain.ReducerFunc) domain.ReducerFunc {
	return reducer
}

// ShallowEqual compares a and b one level deep using domain.Same on entries.
func ShallowEqual(a, b any) bool {
	return ShallowEqualFunc(a, b, domain.Same)
}

// ShallowEqualFunc is ShallowEqual with a custom entry comparison.
func ShallowEqualFunc(a, b any, same func(x, y any) bool) bool {
	if same(a, b) {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}

	switch va.Kind() {
	case reflect.Map:
		if va.IsNil() || vb.IsNil() || va.Len() != vb.Len() {
			return va.IsNil() == vb.IsNil() && va.Len() == vb.Len()
		}
		iter := va.MapRange()
		for iter.Next() {
			other := vb.MapIndex(iter.Key())
			if !other.IsValid() || !same(iter.Value().Interface(), other.Interface()) {
				return false
			}
		}
		return true
	case reflect.Slice:
		if va.Len() != vb.Len() {
			return false
		}
		for i := 0; i < va.Len(); i++ {
			if !same(va.Index(i).Interface(), vb.Index(i).Interface()) {
				return false
			}
		}
		return true
	}
	return false
}
