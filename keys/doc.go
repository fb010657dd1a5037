// Package keys holds signing and verification key material and the providers that select it.
//
// A [KeyMaterial] is immutable once constructed. Providers own the key lifecycle: they add keys
// at generation or import time and remove them on revocation, but never mutate a published key.
//
// # Providers
//
//   - [MemoryProvider]: copy-on-write snapshot, lock-free reads, for tests and single instances.
//   - [RedisProvider]: keys stored as JSON records in a Redis hash per tenant scope.
//
// Both implement [Provider]. Lookups honor context cancellation; [Provider.KeyByID] reports an
// unknown identifier as (nil, nil) so callers can treat it as a token failure rather than a
// provider failure.
//
// # Selection
//
// [SelectCurrent] picks the newest key that is valid at the given instant. Keys created at the
// same instant are ordered by key identifier, so the choice is stable for a given key set.
package keys
