// Package revocation records revoked token identifiers (jti) until the tokens they name would
// have expired anyway.
//
// MemoryStore suits single-process deployments and tests. RedisStore shares the deny list across
// instances and lets Redis expire entries.
package revocation
