package ports

import (
	"testing"

	"github.com/aretw0/tessera/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunAdapterContract runs a suite of tests to verify that an Adapter
// implementation adheres to the interface contract.
// value must return a distinct non-nil slice value for each call.
func RunAdapterContract(t *testing.T, adapter Adapter, value func() any) {
	t.Helper()

	t.Run("Default State Is Empty", func(t *testing.T) {
		state := adapter.DefaultState()
		require.NotNil(t, state)
		assert.False(t, adapter.Has(state, "todos"))
		assert.Nil(t, adapter.Get(state, "todos"))
	})

	t.Run("Set Does Not Modify Input", func(t *testing.T) {
		base := adapter.DefaultState()
		v := value()

		next := adapter.Set(base, "todos", v)
		assert.False(t, domain.Same(base, next), "Set must return a new tree")
		assert.False(t, adapter.Has(base, "todos"), "input tree must stay untouched")
		assert.True(t, adapter.Has(next, "todos"))
		assert.True(t, domain.Same(v, adapter.Get(next, "todos")))
	})

	t.Run("Nil Slice Is Absent", func(t *testing.T) {
		state := adapter.Set(adapter.DefaultState(), "todos", nil)
		assert.False(t, adapter.Has(state, "todos"))
	})

	t.Run("Other Namespaces Keep Their Reference", func(t *testing.T) {
		tasks := value()
		state := adapter.Set(adapter.DefaultState(), "tasks", tasks)
		state = adapter.Set(state, "todos", value())
		assert.True(t, domain.Same(tasks, adapter.Get(state, "tasks")))
	})

	t.Run("IsEqual", func(t *testing.T) {
		v := value()
		a := adapter.Set(adapter.DefaultState(), "todos", v)
		b := adapter.Set(adapter.DefaultState(), "todos", v)
		c := adapter.Set(adapter.DefaultState(), "todos", value())

		assert.True(t, adapter.IsEqual(a, a))
		assert.True(t, adapter.IsEqual(a, b), "trees holding the same slices are equal")
		assert.False(t, adapter.IsEqual(a, c))
	})

	t.Run("WrapReducer Keeps No-Op Identity", func(t *testing.T) {
		state := adapter.Set(adapter.DefaultState(), "todos", value())
		reducer := adapter.WrapReducer(func(state any, _ domain.Action) any { return state })
		assert.True(t, domain.Same(state, reducer(state, domain.Action{Type: "nope"})))
	})
}
