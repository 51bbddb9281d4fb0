package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func BenchmarkMemoryCache_Get(b *testing.B) {
	c := NewMemoryCache(0)
	ctx := context.Background()
	_ = c.Set(ctx, "k", []byte(`[{"_id":"a","title":"Hello"}]`), time.Hour)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get(ctx, "k")
	}
}

func BenchmarkMemoryCache_SetBounded(b *testing.B) {
	c := NewMemoryCache(128)
	ctx := context.Background()
	value := []byte(`[]`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Set(ctx, fmt.Sprintf("k-%d", i%512), value, time.Hour)
	}
}

func BenchmarkDefaultKeyer_Key(b *testing.B) {
	k := NewDefaultKeyer()
	query := `*[_type == "post" && slug.current == $slug][0]{ title, body }`
	params := map[string]any{"slug": "hello-world"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = k.Key("sanity", query, params)
	}
}

func BenchmarkMiddleware_FetchHit(b *testing.B) {
	mw := NewCacheMiddleware(NewMemoryCache(0), nil, DefaultPolicy(), nil)
	ctx := context.Background()
	fetch := func(context.Context) ([]byte, error) { return []byte(`[]`), nil }
	query := `*[_type == "post"]`
	_, _ = mw.Fetch(ctx, "sanity", query, nil, fetch)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = mw.Fetch(ctx, "sanity", query, nil, fetch)
	}
}
