/*
Package reducer builds reducer units and folds them into one composite
transition function.

A Unit is one namespace's set of named handlers. Each handler is reachable
through an action type computed from the namespace and the handler name
("todos/addItem"), unless the handler declares an explicit type.

	todos := reducer.New("todos",
		reducer.WithInitialState([]string{}),
		reducer.Handle("addItem", func(state any, action domain.Action) any {
			return append(state.([]string), action.Payload.(string))
		}),
	)

Compose folds units on top of a parent function. A unit only consults its
own handlers when its parent left the state untouched: the first unit in the
chain that changes the state wins.
*/
package reducer
