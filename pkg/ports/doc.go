/*
Package ports defines the driven ports (interfaces) of tessera.

These interfaces decouple the container from concrete implementations, so the
same core works with different state representations and lock backends.

# Key Interfaces

  - Adapter: abstracts the state tree representation (plain maps, persistent collections).
  - DistributedLocker: coordinates segment loading across several processes.
*/
package ports
