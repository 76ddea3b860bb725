// Package collection adapts persistent (structurally shared) collections to
// ports.Adapter. The collection itself is supplied by the host; this package
// only consumes it through the Collection interface.
package collection

import (
	"github.com/aretw0/tessera/pkg/adapters/memory"
	"github.com/aretw0/tessera/pkg/domain"
)

// Collection is a persistent string-keyed map.
// Set must return a new collection and leave the receiver untouched.
type Collection interface {
	Has(key string) bool
	Get(key string) any
	Set(key string, value any) Collection
	// Equal reports value equality with another collection.
	Equal(other Collection) bool
}

// Adapter implements ports.Adapter over a Collection root.
type Adapter struct {
	empty func() Collection
}

// New creates an adapter that builds empty roots with empty.
func New(empty func() Collection) *Adapter {
	return &Adapter{empty: empty}
}

// DefaultState returns a new empty collection.
func (a *Adapter) DefaultState() any {
	return a.empty()
}

// Has reports whether the namespace holds a non-nil slice.
func (a *Adapter) Has(state any, namespace string) bool {
	c, ok := state.(Collection)
	return ok && c.Has(namespace) && c.Get(namespace) != nil
}

// Get returns the namespace slice.
func (a *Adapter) Get(state any, namespace string) any {
	c, ok := state.(Collection)
	if !ok {
		return nil
	}
	return c.Get(namespace)
}

// Set replaces one slice. A root that is not a collection is replaced by an
// empty one first.
func (a *Adapter) Set(state any, namespace string, value any) any {
	c, ok := state.(Collection)
	if !ok {
		c = a.empty()
	}
	return c.Set(namespace, value)
}

// IsEqual uses value equality for collections and shallow equality
// (with value equality on collection entries) for everything else.
func (a *Adapter) IsEqual(x, y any) bool {
	return memory.ShallowEqualFunc(x, y, is)
}

// WrapReducer returns the reducer unchanged.
func (a *Adapter) WrapReducer(reducer domain.ReducerFunc) domain.ReducerFunc {
	return reducer
}

func is(x, y any) bool {
	cx, okx := x.(Collection)
	cy, oky := y.(Collection)
	if okx && oky {
		return domain.Same(x, y) || cx.Equal(cy)
	}
	return domain.Same(x, y)
}
