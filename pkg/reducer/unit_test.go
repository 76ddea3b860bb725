package reducer_test

import (
	"testing"

	"github.com/aretw0/tessera/pkg/domain"
	"github.com/aretw0/tessera/pkg/reducer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keep(state any, _ domain.Action) any { return state }

func TestNew_ActionTypes(t *testing.T) {
	unit := reducer.New("todos",
		reducer.WithInitialState([]string{}),
		reducer.Handle("addItem", keep),
		reducer.Handle("removeItem", keep),
		reducer.HandleType("reset", "RESET_ALL", keep),
	)

	assert.Equal(t, "todos", unit.Namespace())
	assert.Equal(t, []string{}, unit.InitialState())
	assert.Equal(t, map[string]string{
		"todos/addItem":    "addItem",
		"todos/removeItem": "removeItem",
		"todos/RESET_ALL":  "reset",
	}, unit.ActionTypes())

	actionType, ok := unit.TypeOf("reset")
	require.True(t, ok)
	assert.Equal(t, "todos/RESET_ALL", actionType)

	_, ok = unit.TypeOf("missing")
	assert.False(t, ok)
}

func TestNew_WithoutNamespace(t *testing.T) {
	unit := reducer.New("", reducer.Handle("addItem", keep))
	assert.Equal(t, map[string]string{"addItem": "addItem"}, unit.ActionTypes())
}

func TestNew_DuplicateHandlerLastWins(t *testing.T) {
	first := func(state any, _ domain.Action) any { return "first" }
	second := func(state any, _ domain.Action) any { return "second" }

	unit := reducer.New("todos",
		reducer.HandleType("set", "OLD_SET", first),
		reducer.Handle("set", second),
	)

	assert.Equal(t, map[string]string{"todos/set": "set"}, unit.ActionTypes())

	h, ok := unit.Handler("set")
	require.True(t, ok)
	assert.Equal(t, "second", h(nil, domain.Action{}))
}

func TestActionTypes_ReturnsCopy(t *testing.T) {
	unit := reducer.New("todos", reducer.Handle("addItem", keep))
	types := unit.ActionTypes()
	types["todos/hack"] = "addItem"
	assert.NotContains(t, unit.ActionTypes(), "todos/hack")
}
