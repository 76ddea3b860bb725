package actions_test

import (
	"context"
	"testing"

	"github.com/aretw0/tessera/pkg/actions"
	"github.com/aretw0/tessera/pkg/adapters/memory"
	"github.com/aretw0/tessera/pkg/domain"
	"github.com/aretw0/tessera/pkg/reducer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTree_NestsAndMerges(t *testing.T) {
	host := &recordingHost{}
	adapter := memory.New()

	tasks := reducer.New("tasks", reducer.Handle("addItem", keep))
	rootA := actions.MustNew("", map[string]string{"ping": "ping"}).Bind(host, adapter)
	rootB := actions.MustNew("", map[string]string{"PONG": "pong"}).Bind(host, adapter)

	tree := actions.NewTree(
		actions.MustFromUnit(todos).Bind(host, adapter),
		rootA,
	)
	next := tree.With(actions.MustFromUnit(tasks).Bind(host, adapter), rootB)

	assert.Equal(t, []string{"todos"}, tree.Namespaces())
	assert.Equal(t, []string{"tasks", "todos"}, next.Namespaces())
	assert.Equal(t, []string{"ping"}, tree.Root().Names(), "With must not modify the receiver")
	assert.Equal(t, []string{"ping", "pong"}, next.Root().Names())

	_, ok := next.Namespace("tasks")
	assert.True(t, ok)

	ctx := context.Background()
	_, err := next.Call(ctx, "tasks.addItem", "x", nil)
	require.NoError(t, err)
	_, err = next.Call(ctx, "pong", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"tasks/addItem", "PONG"}, host.types())

	_, err = next.Call(ctx, "missing.addItem", nil, nil)
	assert.ErrorIs(t, err, domain.ErrUnknownMethod)
}

func TestTree_EmptyRoot(t *testing.T) {
	tree := actions.NewTree()
	assert.Empty(t, tree.Root().Names())
	_, ok := tree.Method("ping")
	assert.False(t, ok)
}
