package tlcache

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// scopeGroup is the set of unique keys of a request sharing one Scope.
type scopeGroup struct {
	scope Scope
	keys  []CacheKey
}

// itemKey returns the cache key of an item for a canonical target set.
func itemKey(item Item, targetSet string) CacheKey {
	return CacheKey{
		SourceText: item.Content,
		SourceLang: strings.TrimSpace(item.Lang),
		TargetSet:  targetSet,
	}
}

// groupByScope splits items into per-scope key lists, deduplicating texts and
// keeping first-seen order.
func groupByScope(items []Item, targetSet string) []scopeGroup {
	var groups []scopeGroup
	index := make(map[Scope]int)
	seen := make(map[CacheKey]bool, len(items))

	for _, item := range items {
		key := itemKey(item, targetSet)
		if seen[key] {
			continue
		}
		seen[key] = true

		scope := key.Scope()
		i, ok := index[scope]
		if !ok {
			i = len(groups)
			index[scope] = i
			groups = append(groups, scopeGroup{scope: scope})
		}
		groups[i].keys = append(groups[i].keys, key)
	}

	return groups
}

// lookupScopes issues one BatchGet per scope. When a request spans several
// source languages the lookups run concurrently; all of them complete before
// lookupScopes returns.
func lookupScopes(ctx context.Context, cache TranslationCache, groups []scopeGroup) (map[CacheKey]Record, error) {
	hits := make(map[CacheKey]Record)
	if cache == nil || len(groups) == 0 {
		return hits, nil
	}

	if len(groups) == 1 {
		found, err := cache.BatchGet(ctx, groups[0].keys)
		if err != nil {
			return nil, err
		}
		collect(hits, groups[0].scope, found)
		return hits, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, group := range groups {
		g.Go(func() error {
			found, err := cache.BatchGet(gctx, group.keys)
			if err != nil {
				return err
			}
			mu.Lock()
			collect(hits, group.scope, found)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return hits, nil
}

func collect(hits map[CacheKey]Record, scope Scope, found map[string]Record) {
	for text, rec := range found {
		hits[scope.Key(text)] = rec
	}
}
