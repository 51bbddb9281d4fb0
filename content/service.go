package content

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/contentops/legacy"
)

// Listing limits.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// LegacySource is the fallback API. *legacy.Client implements it.
type LegacySource interface {
	Posts(ctx context.Context, f legacy.Filters) ([]legacy.Record, error)
	CaseStudies(ctx context.Context, f legacy.Filters) ([]legacy.Record, error)
}

// ListOptions narrows a listing. Limit <= 0 means DefaultLimit; larger values
// are capped at MaxLimit.
type ListOptions struct {
	Category string
	Industry string
	Limit    int
}

func (o ListOptions) limit() int {
	switch {
	case o.Limit <= 0:
		return DefaultLimit
	case o.Limit > MaxLimit:
		return MaxLimit
	default:
		return o.Limit
	}
}

// Service holds the reads the site makes. Identical concurrent reads share
// one fetch, which is cancelled once every caller waiting on it has gone.
type Service struct {
	client   *Client
	legacy   LegacySource
	fallback *Fallback
	group    singleflight.Group

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the context of one shared fetch and the number of callers
// waiting on it.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// NewService creates a service reading from client with legacy as fallback.
func NewService(client *Client, legacy LegacySource, fallback *Fallback) *Service {
	if fallback == nil {
		fallback = NewFallback(nil, nil)
	}
	return &Service{
		client:   client,
		legacy:   legacy,
		fallback: fallback,
		flights:  make(map[string]*flight),
	}
}

// Client returns the primary client.
func (s *Service) Client() *Client {
	return s.client
}

// ListPosts lists posts, newest first.
func (s *Service) ListPosts(ctx context.Context, opts ListOptions) (Envelope[[]Post], error) {
	limit := opts.limit()
	key := fmt.Sprintf("posts|%s|%d", opts.Category, limit)

	return shared(ctx, s, key, func(ctx context.Context) (Envelope[[]Post], error) {
		return ExecuteWithFallback(ctx, s.fallback, "posts",
			func(ctx context.Context) ([]Post, error) {
				posts, err := FetchInto[[]Post](ctx, s.client, "posts", PostsQuery, map[string]any{
					"category": nullable(opts.Category),
					"limit":    limit,
				})
				for i := range posts {
					posts[i].Tags = ensureTags(posts[i].Tags, posts[i].Category)
				}
				return posts, err
			},
			func(ctx context.Context) ([]legacy.Record, error) {
				return s.legacy.Posts(ctx, legacy.Filters{Category: opts.Category, Limit: limit})
			},
			func(records []legacy.Record) ([]Post, error) {
				posts, err := NormalizePosts(records)
				return truncate(posts, limit), err
			},
		)
	})
}

// GetPost fetches one post by slug. When neither source has it the error
// satisfies IsNotFound.
func (s *Service) GetPost(ctx context.Context, slug string) (Envelope[Post], error) {
	return shared(ctx, s, "post|"+slug, func(ctx context.Context) (Envelope[Post], error) {
		return ExecuteWithFallback(ctx, s.fallback, "post",
			func(ctx context.Context) (Post, error) {
				post, err := FetchInto[Post](ctx, s.client, "post", PostBySlugQuery, map[string]any{"slug": slug})
				post.Tags = ensureTags(post.Tags, post.Category)
				return post, err
			},
			func(ctx context.Context) ([]legacy.Record, error) {
				return s.legacy.Posts(ctx, legacy.Filters{Slug: slug})
			},
			func(records []legacy.Record) (Post, error) {
				for _, r := range records {
					if p := NormalizePost(r); p.Slug == slug {
						return p, nil
					}
				}
				return Post{}, notFound("post")
			},
		)
	})
}

// ListCaseStudies lists case studies, newest first.
func (s *Service) ListCaseStudies(ctx context.Context, opts ListOptions) (Envelope[[]CaseStudy], error) {
	limit := opts.limit()
	key := fmt.Sprintf("case-studies|%s|%d", opts.Industry, limit)

	return shared(ctx, s, key, func(ctx context.Context) (Envelope[[]CaseStudy], error) {
		return ExecuteWithFallback(ctx, s.fallback, "case_studies",
			func(ctx context.Context) ([]CaseStudy, error) {
				return FetchInto[[]CaseStudy](ctx, s.client, "case_studies", CaseStudiesQuery, map[string]any{
					"industry": nullable(opts.Industry),
					"limit":    limit,
				})
			},
			func(ctx context.Context) ([]legacy.Record, error) {
				return s.legacy.CaseStudies(ctx, legacy.Filters{Industry: opts.Industry, Limit: limit})
			},
			func(records []legacy.Record) ([]CaseStudy, error) {
				studies, err := NormalizeCaseStudies(records)
				return truncate(studies, limit), err
			},
		)
	})
}

// shared collapses concurrent calls with the same key into one. The shared
// call outlives any single caller but is cancelled when the last waiting
// caller gives up, so an abandoned read stops retrying and leaves the
// breaker alone. Each caller gets its own request ID.
func shared[T any](ctx context.Context, s *Service, key string, fn func(context.Context) (Envelope[T], error)) (Envelope[T], error) {
	requestID := RequestID(ctx)

	s.mu.Lock()
	f := s.flights[key]
	if f == nil {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		s.flights[key] = f
	}
	f.waiters++
	// Only the caller that starts the flight has its closure run, and it
	// holds the entry current at that moment.
	ch := s.group.DoChan(key, func() (any, error) {
		defer s.land(key, f)
		return fn(WithRequestID(f.ctx, requestID))
	})
	s.mu.Unlock()
	defer s.leave(key, f)

	select {
	case <-ctx.Done():
		return Envelope[T]{RequestID: requestID}, ctx.Err()
	case res := <-ch:
		env, _ := res.Val.(Envelope[T])
		env.RequestID = requestID
		return env, res.Err
	}
}

// land retires f once its fetch has returned.
func (s *Service) land(key string, f *flight) {
	s.mu.Lock()
	if s.flights[key] == f {
		delete(s.flights, key)
	}
	s.mu.Unlock()
	f.cancel()
}

// leave drops one waiter from f. The last waiter to leave a running flight
// cancels it and makes the key available to a fresh fetch.
func (s *Service) leave(key string, f *flight) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f.waiters--
	if f.waiters > 0 || s.flights[key] != f {
		return
	}
	delete(s.flights, key)
	s.group.Forget(key)
	f.cancel()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
