// Package cache provides response caching for content queries.
//
// It defines a Cache interface with in-memory and Redis implementations,
// SHA-256 key derivation over a canonical query and its parameters, and TTL
// policies. Failed fetches are never cached.
package cache
