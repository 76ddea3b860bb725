/*
Package actions generates dispatch methods for reducer units.

A Definition declares which methods dispatch which action types, plus any
custom logic. Binding a Definition to a Host produces a Bundle of callable
Methods. Calling a plain dispatcher builds an Action from (payload, meta)
and forwards it to the host:

	def := actions.MustFromUnit(todos,
		actions.Override("addItem", func(ctx context.Context, b *actions.Bundle, payload, meta any) (any, error) {
			// runs first; the "todos/addItem" dispatch fires after it returns
			return strings.TrimSpace(payload.(string)), nil
		}),
	)

Overrides may block (that is how asynchronous work is expressed); the base
dispatch only fires once the override returns without error. Bundles are
collected in a Tree, which nests namespaced bundles under their namespace
and merges un-namespaced methods at the root.
*/
package actions
