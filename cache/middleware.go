package cache

import (
	"context"
	"strings"
)

// FetchFunc fetches the raw response for a query.
type FetchFunc func(ctx context.Context) ([]byte, error)

// SkipRule reports whether a query must bypass the cache.
type SkipRule func(source, query string) bool

// DefaultSkipRule bypasses the cache for identifier-only lookups and for
// queries that depend on the current time.
func DefaultSkipRule(_ string, query string) bool {
	q := NormalizeQuery(query)
	if strings.Contains(q, "now()") {
		return true
	}
	// *[...][0]._id
	return strings.HasSuffix(q, "[0]._id")
}

// LookupFunc observes cache lookups (hit or miss).
type LookupFunc func(ctx context.Context, hit bool)

// CacheMiddleware puts a cache in front of a fetch.
type CacheMiddleware struct {
	cache    Cache
	keyer    Keyer
	policy   Policy
	skipRule SkipRule
	onLookup LookupFunc
}

// NewCacheMiddleware creates a new cache middleware.
// If keyer is nil, DefaultKeyer is used. If skipRule is nil, DefaultSkipRule is used.
func NewCacheMiddleware(cache Cache, keyer Keyer, policy Policy, skipRule SkipRule) *CacheMiddleware {
	if keyer == nil {
		keyer = NewDefaultKeyer()
	}
	if skipRule == nil {
		skipRule = DefaultSkipRule
	}
	return &CacheMiddleware{
		cache:    cache,
		keyer:    keyer,
		policy:   policy,
		skipRule: skipRule,
	}
}

// OnLookup registers an observer for hits and misses.
func (m *CacheMiddleware) OnLookup(fn LookupFunc) {
	m.onLookup = fn
}

// Fetch returns the cached response for (source, query, params) or calls
// fetch and caches its result. Errors are never cached.
func (m *CacheMiddleware) Fetch(
	ctx context.Context,
	source, query string,
	params map[string]any,
	fetch FetchFunc,
) ([]byte, error) {
	if m == nil || m.cache == nil || !m.policy.ShouldCache() || m.skipRule(source, query) {
		return fetch(ctx)
	}

	key, err := m.keyer.Key(source, query, params)
	if err != nil {
		return fetch(ctx)
	}

	if cached, ok := m.cache.Get(ctx, key); ok {
		m.observe(ctx, true)
		return cached, nil
	}
	m.observe(ctx, false)

	result, err := fetch(ctx)
	if err != nil {
		return result, err
	}

	_ = m.cache.Set(ctx, key, result, m.policy.EffectiveTTL(0))
	return result, nil
}

// Invalidate removes the entry for (source, query, params).
func (m *CacheMiddleware) Invalidate(ctx context.Context, source, query string, params map[string]any) error {
	key, err := m.keyer.Key(source, query, params)
	if err != nil {
		return err
	}
	return m.cache.Delete(ctx, key)
}

func (m *CacheMiddleware) observe(ctx context.Context, hit bool) {
	if m.onLookup != nil {
		m.onLookup(ctx, hit)
	}
}
