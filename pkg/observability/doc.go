/*
Package observability turns container lifecycle events into Prometheus
metrics and structured log records.

Both are exposed as domain.LifecycleHooks and can be combined with
LifecycleHooks.Merge before being passed to tessera.WithLifecycleHooks.
*/
package observability
