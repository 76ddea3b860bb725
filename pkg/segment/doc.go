/*
Package segment implements the registry of lazily loaded segments.

A segment is a bundle of reducer sources and action definitions produced by
an asynchronous loader. Each registered id moves through

	Unloaded -> Loading -> Loaded

and Loaded is terminal. Concurrent Load calls for one id share a single
in-flight loader call, so a loader never runs twice at the same time and
never runs again once its segment is applied.
*/
package segment
