package selector_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/aretw0/tessera/pkg/domain"
	"github.com/aretw0/tessera/pkg/selector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deepEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

type counter struct {
	state, actions, merge int
}

func countingSelector(c *counter, stateDependsOnOwn, actionsDependOnOwn bool) *selector.Selector {
	mapState := selector.MapWithProps(func(in any, own selector.Props) (selector.Props, error) {
		c.state++
		s := in.(map[string]any)
		return selector.Props{"todos": s["todos"]}, nil
	}).DependsOn(stateDependsOnOwn)
	mapActions := selector.MapWithProps(func(in any, own selector.Props) (selector.Props, error) {
		c.actions++
		return selector.Props{"add": in}, nil
	}).DependsOn(actionsDependOnOwn)
	merge := func(sp, ap, own selector.Props) (selector.Props, error) {
		c.merge++
		return selector.DefaultMerge(sp, ap, own)
	}
	return selector.New(deepEqual, mapState, mapActions, merge)
}

func mustProps(t *testing.T, s *selector.Selector) selector.Props {
	t.Helper()
	p, err := s.Props()
	require.NoError(t, err)
	return p
}

func TestSelector_FirstRun(t *testing.T) {
	c := &counter{}
	s := countingSelector(c, false, false)

	updated := s.Run(map[string]any{"todos": []string{"a"}}, "actions", selector.Props{"id": 1})
	assert.True(t, updated)
	assert.Equal(t, counter{1, 1, 1}, *c)
	assert.Equal(t, selector.Props{"todos": []string{"a"}, "add": "actions", "id": 1}, mustProps(t, s))
}

func TestSelector_Stability(t *testing.T) {
	c := &counter{}
	s := countingSelector(c, true, true)

	require.True(t, s.Run(map[string]any{"todos": []string{"a"}}, "actions", selector.Props{"id": 1}))
	first := mustProps(t, s)

	// Deep-equal but distinct inputs.
	updated := s.Run(map[string]any{"todos": []string{"a"}}, "actions", selector.Props{"id": 1})
	assert.False(t, updated)
	assert.False(t, s.ShouldUpdate())
	assert.True(t, domain.Same(first, mustProps(t, s)))
	assert.Equal(t, counter{1, 1, 1}, *c)
}

func TestSelector_MinimalRecompute(t *testing.T) {
	c := &counter{}
	s := countingSelector(c, false, false)
	todos := []string{"a"}

	s.Run(map[string]any{"todos": todos, "filter": "all"}, "actions", nil)
	first := mustProps(t, s)

	// State changed, but not the sub-field mapState reads.
	updated := s.Run(map[string]any{"todos": todos, "filter": "done"}, "actions", nil)
	assert.False(t, updated)
	assert.Equal(t, 2, c.state)
	assert.Equal(t, 1, c.merge, "must not remerge")
	assert.True(t, domain.Same(first, mustProps(t, s)))

	updated = s.Run(map[string]any{"todos": []string{"a", "b"}, "filter": "done"}, "actions", nil)
	assert.True(t, updated)
	assert.Equal(t, 2, c.merge)
	assert.Equal(t, []string{"a", "b"}, mustProps(t, s)["todos"])
}

func TestSelector_ChangeDispatch(t *testing.T) {
	state1 := map[string]any{"todos": []string{"a"}}
	state2 := map[string]any{"todos": []string{"b"}}

	tests := []struct {
		name               string
		stateDependsOnOwn  bool
		actionsDependOnOwn bool
		state              map[string]any
		actions            any
		own                selector.Props
		want               counter // increments after the first run
	}{
		{"nothing changed", true, true, state1, "a1", selector.Props{"p": 1}, counter{0, 0, 0}},
		{"state only", true, true, state2, "a1", selector.Props{"p": 1}, counter{1, 0, 1}},
		{"actions only", true, true, state1, "a2", selector.Props{"p": 1}, counter{0, 1, 1}},
		{"own only, both dependent", true, true, state1, "a1", selector.Props{"p": 2}, counter{1, 1, 1}},
		{"own only, none dependent", false, false, state1, "a1", selector.Props{"p": 2}, counter{0, 0, 1}},
		{"own and state, actions independent", false, false, state2, "a1", selector.Props{"p": 2}, counter{1, 0, 1}},
		{"own and state, actions dependent", false, true, state2, "a1", selector.Props{"p": 2}, counter{1, 1, 1}},
		{"own and actions, state independent", false, false, state1, "a2", selector.Props{"p": 2}, counter{0, 1, 1}},
		{"own and actions, state dependent", true, false, state1, "a2", selector.Props{"p": 2}, counter{1, 1, 1}},
		{"state and actions", false, false, state2, "a2", selector.Props{"p": 1}, counter{1, 1, 1}},
		{"all three", false, false, state2, "a2", selector.Props{"p": 2}, counter{1, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &counter{}
			s := countingSelector(c, tt.stateDependsOnOwn, tt.actionsDependOnOwn)
			s.Run(state1, "a1", selector.Props{"p": 1})

			s.Run(tt.state, tt.actions, tt.own)
			got := counter{c.state - 1, c.actions - 1, c.merge - 1}
			assert.Equal(t, tt.want, got)

			props := mustProps(t, s)
			assert.Equal(t, tt.own["p"], props["p"])
		})
	}
}

func TestSelector_ActionsOnlyWithEqualOutput(t *testing.T) {
	merges := 0
	s := selector.New(deepEqual,
		selector.Mapper{},
		selector.Map(func(any) (selector.Props, error) {
			return selector.Props{"fixed": true}, nil
		}),
		func(sp, ap, own selector.Props) (selector.Props, error) {
			merges++
			return selector.DefaultMerge(sp, ap, own)
		},
	)

	s.Run(nil, "a1", nil)
	assert.False(t, s.Run(nil, "a2", nil))
	assert.Equal(t, 1, merges)
}

func TestSelector_DefaultMergeOrder(t *testing.T) {
	s := selector.New(deepEqual,
		selector.Map(func(any) (selector.Props, error) {
			return selector.Props{"k": "state", "s": 1}, nil
		}),
		selector.Map(func(any) (selector.Props, error) {
			return selector.Props{"k": "actions", "a": 1}, nil
		}),
		nil,
	)

	s.Run(nil, nil, selector.Props{"k": "own"})
	assert.Equal(t, selector.Props{"k": "own", "s": 1, "a": 1}, mustProps(t, s))

	s2 := selector.New(deepEqual,
		selector.Map(func(any) (selector.Props, error) {
			return selector.Props{"k": "state"}, nil
		}),
		selector.Map(func(any) (selector.Props, error) {
			return selector.Props{"k": "actions"}, nil
		}),
		nil,
	)
	s2.Run(nil, nil, nil)
	assert.Equal(t, selector.Props{"k": "actions"}, mustProps(t, s2))
}

func TestSelector_ZeroMappers(t *testing.T) {
	s := selector.New(deepEqual, selector.Mapper{}, selector.Map(nil), nil)
	assert.True(t, s.Run("state", "actions", nil))
	assert.Equal(t, selector.Props{}, mustProps(t, s))
}

func TestSelector_Errors(t *testing.T) {
	boom := errors.New("boom")

	t.Run("returned error is deferred to Props", func(t *testing.T) {
		fail := true
		s := selector.New(deepEqual,
			selector.Map(func(in any) (selector.Props, error) {
				if fail {
					return nil, boom
				}
				return selector.Props{"v": in}, nil
			}),
			selector.Mapper{},
			nil,
		)

		assert.True(t, s.Run(1, nil, nil))
		_, err := s.Props()
		assert.ErrorIs(t, err, boom)

		var ce *domain.ComputeError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, selector.StageMapState, ce.Stage)

		fail = false
		assert.True(t, s.Run(2, nil, nil))
		assert.Equal(t, selector.Props{"v": 2}, mustProps(t, s))
	})

	t.Run("panic is captured", func(t *testing.T) {
		s := selector.New(deepEqual,
			selector.Mapper{},
			selector.Mapper{},
			func(selector.Props, selector.Props, selector.Props) (selector.Props, error) {
				panic("merge exploded")
			},
		)

		assert.NotPanics(t, func() {
			assert.True(t, s.Run(nil, nil, nil))
		})
		_, err := s.Props()
		var ce *domain.ComputeError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, selector.StageMerge, ce.Stage)
		assert.Contains(t, err.Error(), "merge exploded")
	})

	t.Run("flag is forced after an error even without changes", func(t *testing.T) {
		fail := false
		s := selector.New(deepEqual,
			selector.Map(func(in any) (selector.Props, error) {
				if fail {
					return nil, boom
				}
				return selector.Props{"v": in}, nil
			}),
			selector.Mapper{},
			nil,
		)
		require.True(t, s.Run(1, nil, nil))
		fail = true
		assert.True(t, s.Run(2, nil, nil))

		// The next run recovers with unchanged inputs and still signals.
		fail = false
		assert.True(t, s.Run(2, nil, nil))
		_, err := s.Props()
		assert.NoError(t, err)
		assert.False(t, s.Run(2, nil, nil))
	})
}

func TestSelector_Destroy(t *testing.T) {
	c := &counter{}
	s := countingSelector(c, false, false)
	s.Run(map[string]any{"todos": []string{"a"}}, "a", nil)

	s.Destroy()
	assert.False(t, s.ShouldUpdate())
	assert.False(t, s.Run(map[string]any{"todos": []string{"b"}}, "b", nil))
	assert.Equal(t, counter{1, 1, 1}, *c)
	assert.Empty(t, mustProps(t, s))
}

func TestSelector_NilEqualityUsesShallowEqual(t *testing.T) {
	var mapped int
	s := selector.New(nil,
		selector.Map(func(in any) (selector.Props, error) {
			mapped++
			return selector.Props{"todos": in.(map[string]any)["todos"]}, nil
		}),
		selector.Mapper{}, nil)

	todos := []string{"a"}
	assert.True(t, s.Run(map[string]any{"todos": todos}, nil, nil))
	assert.False(t, s.Run(map[string]any{"todos": todos}, nil, nil), "a new tree with the same slices is equal")
	assert.Equal(t, 1, mapped)

	assert.True(t, s.Run(map[string]any{"todos": []string{"b"}}, nil, nil))
	assert.Equal(t, 2, mapped)
	assert.Equal(t, selector.Props{"todos": []string{"b"}}, mustProps(t, s))
}
