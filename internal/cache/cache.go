// Package cache defines the small TTL cache contract the gateway's
// ephemeral state lives behind: OAuth state packages and installation token
// slots. Default backend is in-process memory; redis is available when the
// gateway runs with more than one instance.
package cache

import "time"

// Cache is a byte-value TTL cache.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	Delete(key string)

	// GetDel atomically fetches and deletes key. Single-use reads (OAuth
	// state consumption) rely on this being atomic: a second GetDel with
	// the same key must miss.
	GetDel(key string) ([]byte, bool)
}
