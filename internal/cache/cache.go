// Package cache provides the two caching tiers of the building pipeline:
// a persistent bbox-keyed cache (file-backed by default, Redis optional)
// and an in-memory zone cache for interactive map panning.
package cache

import "context"

// Store is the persistent bbox cache. Get reports a miss for absent,
// expired, or unreadable entries. Set is best-effort and never fails the
// caller.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, payload []byte)
}
