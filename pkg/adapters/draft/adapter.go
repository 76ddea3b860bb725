// Package draft provides an adapter whose handlers may mutate the state they
// receive. Every dispatch runs on a deep copy of the tree. When the result
// equals the input, the input is returned as is; otherwise namespaces whose
// copy ended up equal keep their previous reference.
//
// Slices are copied with github.com/mohae/deepcopy, so they should hold
// exported data only: unexported struct fields are not carried over.
package draft

import (
	"reflect"

	"github.com/aretw0/tessera/pkg/adapters/memory"
	"github.com/aretw0/tessera/pkg/domain"
	"github.com/mohae/deepcopy"
)

// Adapter is the plain map adapter with drafting reducers.
type Adapter struct {
	memory.Adapter
}

// New creates the draft adapter.
func New() *Adapter {
	return &Adapter{}
}

// WrapReducer runs reducer on a private copy of the state.
func (Adapter) WrapReducer(reducer domain.ReducerFunc) domain.ReducerFunc {
	return func(state any, action domain.Action) any {
		return finalize(state, reducer(deepcopy.Copy(state), action))
	}
}

// finalize restores the references of everything the reducer left as it was.
func finalize(base, out any) any {
	if reflect.DeepEqual(base, out) {
		return base
	}
	prev, ok := base.(map[string]any)
	if !ok {
		return out
	}
	next, ok := out.(map[string]any)
	if !ok {
		return out
	}
	for ns, v := range next {
		if old, found := prev[ns]; found && reflect.DeepEqual(old, v) {
			next[ns] = old
		}
	}
	return next
}
