package actions

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/aretw0/tessera/pkg/domain"
	"github.com/aretw0/tessera/pkg/reducer"
)

// Func is the signature of custom methods and dispatcher overrides.
type Func func(ctx context.Context, b *Bundle, payload, meta any) (any, error)

// Definition declares the methods of a bundle. It is immutable once built
// and identified by pointer.
type Definition struct {
	namespace   string
	dispatchers map[string]string // method -> action type
	overrides   map[string]Func
	methods     map[string]Func
}

// Option configures a Definition.
type Option func(*Definition) error

// Override wraps the dispatcher named method with custom logic.
// It fails with domain.ErrDispatcherOverride when method is not a declared dispatcher.
func Override(method string, fn Func) Option {
	return func(d *Definition) error {
		if _, ok := d.dispatchers[method]; !ok {
			return fmt.Errorf("%w: %q", domain.ErrDispatcherOverride, method)
		}
		d.overrides[method] = fn
		return nil
	}
}

// CustomMethod adds a method that does not dispatch by itself.
func CustomMethod(name string, fn Func) Option {
	return func(d *Definition) error {
		if _, ok := d.dispatchers[name]; ok {
			return fmt.Errorf("method %q is a dispatcher, use Override", name)
		}
		d.methods[name] = fn
		return nil
	}
}

// New declares a bundle from an action type -> method name map.
func New(namespace string, types map[string]string, opts ...Option) (*Definition, error) {
	d := &Definition{
		namespace:   namespace,
		dispatchers: make(map[string]string, len(types)),
		overrides:   make(map[string]Func),
		methods:     make(map[string]Func),
	}
	for actionType, method := range types {
		d.dispatchers[method] = actionType
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// FromUnit declares a bundle exposing one dispatcher per unit handler.
func FromUnit(unit *reducer.Unit, opts ...Option) (*Definition, error) {
	return New(unit.Namespace(), unit.ActionTypes(), opts...)
}

// MustNew is like New but panics on error. Meant for package-level definitions.
func MustNew(namespace string, types map[string]string, opts ...Option) *Definition {
	d, err := New(namespace, types, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// MustFromUnit is like FromUnit but panics on error.
func MustFromUnit(unit *reducer.Unit, opts ...Option) *Definition {
	d, err := FromUnit(unit, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// Namespace returns the namespace the bundle is nested under ("" merges at the root).
func (d *Definition) Namespace() string {
	return d.namespace
}

// Dispatchers returns the sorted names of the dispatching methods.
func (d *Definition) Dispatchers() []string {
	return slices.Sorted(maps.Keys(d.dispatchers))
}
