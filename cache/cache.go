// Package cache provides an in-process translation cache, a Redis hot tier
// that fronts a durable cache, and JSON export/import of cache contents.
package cache

import (
	"context"

	"github.com/ZaguanLabs/tlcache"
)

// Source is a cache whose entries can be enumerated.
type Source interface {
	Each(ctx context.Context, fn func(tlcache.Entry) error) error
}

// checkScope returns the scope shared by keys, or ErrMixedScope.
func checkScope(keys []tlcache.CacheKey) (tlcache.Scope, error) {
	scope := keys[0].Scope()
	for _, k := range keys[1:] {
		if k.Scope() != scope {
			return tlcache.Scope{}, tlcache.ErrMixedScope
		}
	}
	return scope, nil
}
