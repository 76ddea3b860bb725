package actions

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/aretw0/tessera/pkg/domain"
	"github.com/aretw0/tessera/pkg/ports"
)

// Host is what a bundle dispatches to. The container implements it.
type Host interface {
	Dispatch(action domain.Action) error
	State() (any, error)
	Actions() (*Tree, error)
}

// Method is one callable of a bundle.
type Method struct {
	name string
	call func(ctx context.Context, payload, meta any) (any, error)
}

// Name returns the declared method name.
func (m *Method) Name() string {
	return m.name
}

// Call invokes the method. Plain dispatchers return a nil result.
func (m *Method) Call(ctx context.Context, payload, meta any) (any, error) {
	return m.call(ctx, payload, meta)
}

// Bundle is a bound set of methods.
type Bundle struct {
	namespace string
	host      Host
	adapter   ports.Adapter
	methods   map[string]*Method
	base      map[string]*Method // dispatchers without overrides
}

// Bind produces a Bundle dispatching to host. It never calls host, so a
// container can bind bundles while it is still being built.
func (d *Definition) Bind(host Host, adapter ports.Adapter) *Bundle {
	b := &Bundle{
		namespace: d.namespace,
		host:      host,
		adapter:   adapter,
		methods:   make(map[string]*Method, len(d.dispatchers)+len(d.methods)),
		base:      make(map[string]*Method, len(d.dispatchers)),
	}

	for name, actionType := range d.dispatchers {
		base := &Method{name: name, call: b.dispatcher(actionType)}
		b.base[name] = base

		override, ok := d.overrides[name]
		if !ok {
			b.methods[name] = base
			continue
		}
		b.methods[name] = &Method{name: name, call: chain(b, override, base)}
	}

	for name, fn := range d.methods {
		b.methods[name] = &Method{name: name, call: func(ctx context.Context, payload, meta any) (any, error) {
			return fn(ctx, b, payload, meta)
		}}
	}
	return b
}

func (b *Bundle) dispatcher(actionType string) func(context.Context, any, any) (any, error) {
	return func(_ context.Context, payload, meta any) (any, error) {
		return nil, b.host.Dispatch(domain.NewAction(actionType, payload, meta))
	}
}

// chain runs the override first and fires the base dispatch once it returned
// without error. The override result is what the caller gets.
func chain(b *Bundle, override Func, base *Method) func(context.Context, any, any) (any, error) {
	return func(ctx context.Context, payload, meta any) (any, error) {
		result, err := override(ctx, b, payload, meta)
		if err != nil {
			return result, err
		}
		if _, err := base.Call(ctx, payload, meta); err != nil {
			return result, err
		}
		return result, nil
	}
}

// Namespace returns the bundle namespace.
func (b *Bundle) Namespace() string {
	return b.namespace
}

// Method returns the method registered under name.
func (b *Bundle) Method(name string) (*Method, bool) {
	m, ok := b.methods[name]
	return m, ok
}

// Names returns the sorted method names.
func (b *Bundle) Names() []string {
	return slices.Sorted(maps.Keys(b.methods))
}

// Call invokes the named method.
func (b *Bundle) Call(ctx context.Context, name string, payload, meta any) (any, error) {
	m, ok := b.methods[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownMethod, name)
	}
	return m.Call(ctx, payload, meta)
}

// Dispatch fires the plain dispatcher named name, skipping any override.
// Overrides use it to dispatch their own action without recursion.
func (b *Bundle) Dispatch(name string, payload, meta any) error {
	m, ok := b.base[name]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownMethod, name)
	}
	_, err := m.Call(context.Background(), payload, meta)
	return err
}

// State returns the bundle's namespace slice, or the whole tree when the
// bundle is not namespaced.
func (b *Bundle) State() (any, error) {
	state, err := b.host.State()
	if err != nil || b.namespace == "" {
		return state, err
	}
	return b.adapter.Get(state, b.namespace), nil
}

// GlobalState returns the whole tree.
func (b *Bundle) GlobalState() (any, error) {
	return b.host.State()
}

// Actions returns the container's current action tree.
func (b *Bundle) Actions() (*Tree, error) {
	return b.host.Actions()
}
