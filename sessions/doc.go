// Package sessions provides the caller-scoped session identity used to
// correlate related HTTP requests. Session state is minimal on purpose: an
// opaque id plus creation and last-activity timestamps. The Store interface
// lets deployments choose between the in-memory store (with a TTL sweep) and
// the Redis-backed store (TTL via key expiry).
package sessions
