/*
Package domain contains the core data model shared by every tessera package.

It defines the Action wire shape, the ReducerFunc signature, reference
identity (Same), the error kinds raised by the container and the selector,
and the lifecycle hooks used for observability. The package has no
dependencies on the rest of the module.

# Key Entities

  - Action: an immutable {type, payload, meta, error} value.
  - ReducerFunc: the (state, action) -> state transition signature.
  - LifecycleHooks: callbacks fired on dispatch and segment loading.
*/
package domain
