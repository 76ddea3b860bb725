package reducer

import (
	"slices"

	"github.com/aretw0/tessera/pkg/domain"
	"github.com/aretw0/tessera/pkg/ports"
)

// Source is anything Compose can fold: a *Unit or a raw function wrapped by Func.
type Source interface {
	// Namespace returns the slice the source owns ("" for the whole tree).
	Namespace() string

	compose(adapter ports.Adapter, parent domain.ReducerFunc) domain.ReducerFunc
}

// FuncSource wraps a raw transition function so it can be folded and
// deduplicated by identity.
type FuncSource struct {
	fn domain.ReducerFunc
}

// Func wraps a raw transition function.
func Func(fn domain.ReducerFunc) *FuncSource {
	return &FuncSource{fn: fn}
}

// Namespace is always empty: raw functions see the whole tree.
func (f *FuncSource) Namespace() string {
	return ""
}

// Raw functions run on the parent result without short-circuit.
func (f *FuncSource) compose(_ ports.Adapter, parent domain.ReducerFunc) domain.ReducerFunc {
	if parent == nil {
		return f.fn
	}
	return func(state any, action domain.Action) any {
		return f.fn(parent(state, action), action)
	}
}

func (u *Unit) compose(adapter ports.Adapter, parent domain.ReducerFunc) domain.ReducerFunc {
	apply := u.applyRoot
	if u.namespace != "" {
		apply = func(state any, action domain.Action) any {
			return u.applyNamespace(adapter, state, action)
		}
	}

	if parent == nil {
		return apply
	}

	return func(input any, action domain.Action) any {
		state := parent(input, action)

		// The parent already handled the action: it wins.
		if !domain.Same(state, input) {
			return state
		}
		return apply(state, action)
	}
}

func (u *Unit) applyRoot(state any, action domain.Action) any {
	h, ok := u.lookup(action.Type)
	if !ok {
		return state
	}
	return h(state, action)
}

func (u *Unit) applyNamespace(adapter ports.Adapter, state any, action domain.Action) any {
	h, ok := u.lookup(action.Type)
	if !ok {
		return state
	}

	prev := adapter.Get(state, u.namespace)
	next := h(prev, action)
	if domain.Same(prev, next) {
		return state
	}
	return adapter.Set(state, u.namespace, next)
}

// Compose folds sources, in order, on top of parent (which may be nil).
// It returns nil when there is nothing to fold.
func Compose(adapter ports.Adapter, parent domain.ReducerFunc, sources ...Source) domain.ReducerFunc {
	fn := parent
	for _, src := range sources {
		fn = src.compose(adapter, fn)
	}
	return fn
}

// SortSources returns a copy with un-namespaced sources first.
// The relative order within each group is kept.
func SortSources(sources []Source) []Source {
	sorted := slices.Clone(sources)
	slices.SortStableFunc(sorted, func(a, b Source) int {
		return rank(a) - rank(b)
	})
	return sorted
}

func rank(s Source) int {
	if s.Namespace() != "" {
		return 1
	}
	return 0
}

// Identity returns the state unchanged. It is the reducer of a container
// without sources.
func Identity(state any, _ domain.Action) any {
	return state
}
