/*
Package tessera is a predictable state container with lazily loaded segments.

State lives in a single tree owned by a Container. It changes only when an
action is dispatched through the composite reducer built from reducer units.
Units that are not needed at startup can be registered as segments and loaded
later; loading a segment folds its units onto the running reducer and merges
its action bundles into the live actions tree.

# Concept

A reducer unit is a named set of handlers. A namespaced unit owns one slice
of the tree, read and written through a pluggable ports.Adapter, and its
action types are prefixed with the namespace ("todos/add"). Units compose in
order: when an earlier unit already changed the state for an action, later
units do not see it.

Dispatch bundles are generated from action definitions. Each declared
dispatcher builds an action and forwards it to the container. Overrides run
custom logic first and dispatch afterwards.

# Usage

	todos := reducer.New("todos",
		reducer.WithInitialState([]string{}),
		reducer.Handle("add", func(state any, a domain.Action) any {
			return append(slices.Clone(state.([]string)), a.Payload.(string))
		}),
	)

	c, err := tessera.New(tessera.Config{
		Reducers: []reducer.Source{todos},
		Actions:  []*actions.Definition{actions.MustFromUnit(todos)},
	})
	if err != nil {
		log.Fatal(err)
	}

	tree, _ := c.Actions()
	_, _ = tree.Call(ctx, "todos.add", "write docs", nil)

# Segments

	c.RegisterSegment("tasks", func(ctx context.Context) (segment.Config, error) {
		return segment.Config{Reducers: []reducer.Source{tasks}}, nil
	}, nil)

	_, err = c.LoadSegment(ctx, "tasks")

Concurrent loads of one segment share a single loader call. A loaded segment
is never loaded again.
*/
package tessera
