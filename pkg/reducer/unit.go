package reducer

import (
	"maps"

	"github.com/aretw0/tessera/pkg/domain"
)

// Handler is a pure transition on one slice of state (the whole tree for
// un-namespaced units).
type Handler func(state any, action domain.Action) any

// Unit is a named collection of handlers plus their action-type map.
// It is immutable after New and identified by pointer.
type Unit struct {
	namespace    string
	initialState any
	handlers     map[string]Handler
	types        map[string]string // action type -> handler name
}

// Option configures a Unit at definition time.
type Option func(*unitBuilder)

type handlerDef struct {
	name       string
	actionType string
	fn         Handler
}

type unitBuilder struct {
	initialState any
	defs         []handlerDef
}

// WithInitialState sets the slice installed when the container starts.
func WithInitialState(state any) Option {
	return func(b *unitBuilder) {
		b.initialState = state
	}
}

// Handle registers a handler reachable through the computed action type.
// Registering the same name twice keeps the last handler.
func Handle(name string, fn Handler) Option {
	return HandleType(name, "", fn)
}

// HandleType registers a handler with an explicit action type.
// The namespace prefix is still applied.
func HandleType(name, actionType string, fn Handler) Option {
	return func(b *unitBuilder) {
		b.defs = append(b.defs, handlerDef{name: name, actionType: actionType, fn: fn})
	}
}

// New defines a unit. An empty namespace makes the unit operate on the whole tree.
func New(namespace string, opts ...Option) *Unit {
	b := &unitBuilder{}
	for _, opt := range opts {
		opt(b)
	}

	u := &Unit{
		namespace:    namespace,
		initialState: b.initialState,
		handlers:     make(map[string]Handler, len(b.defs)),
		types:        make(map[string]string, len(b.defs)),
	}

	prefix := ""
	if namespace != "" {
		prefix = namespace + "/"
	}

	for _, def := range b.defs {
		// A redefined handler drops the type it was previously reachable through.
		for t, name := range u.types {
			if name == def.name {
				delete(u.types, t)
			}
		}
		name := def.actionType
		if name == "" {
			name = def.name
		}
		u.handlers[def.name] = def.fn
		u.types[prefix+name] = def.name
	}
	return u
}

// Namespace returns the unit namespace ("" when un-namespaced).
func (u *Unit) Namespace() string {
	return u.namespace
}

// InitialState returns the slice installed at startup, or nil.
func (u *Unit) InitialState() any {
	return u.initialState
}

// ActionTypes returns a copy of the action type -> handler name map.
func (u *Unit) ActionTypes() map[string]string {
	return maps.Clone(u.types)
}

// TypeOf returns the action type routed to the named handler.
func (u *Unit) TypeOf(name string) (string, bool) {
	for t, n := range u.types {
		if n == name {
			return t, true
		}
	}
	return "", false
}

// Handler returns the handler registered under name.
func (u *Unit) Handler(name string) (Handler, bool) {
	h, ok := u.handlers[name]
	return h, ok
}

func (u *Unit) lookup(actionType string) (Handler, bool) {
	name, ok := u.types[actionType]
	if !ok {
		return nil, false
	}
	return u.handlers[name], true
}
