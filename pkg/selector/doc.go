// Package selector derives output props from container state, the actions
// tree and caller props, recomputing only what an input change requires.
//
// A Selector keeps the previous inputs and outputs. Run compares the new
// inputs against them with the injected equality predicate and picks the
// smallest recomputation for the combination of changed inputs. When nothing
// relevant changed, Props returns the very same map as before, so callers can
// use reference identity to skip work downstream.
//
// Failures in any mapping or merge function never escape Run. They are kept
// and returned by the next Props call.
package selector
