package content

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/contentops/resilience"
)

// Source identifies which backend produced an Envelope.
type Source string

const (
	// SourceSanity is the primary CMS.
	SourceSanity Source = "sanity"
	// SourceLegacy is the fallback API.
	SourceLegacy Source = "legacy"
)

// Envelope is the result of one fetch with its provenance.
//
// Source is SourceLegacy exactly when the primary read failed. A legacy
// answer is a successful degraded response, so Error stays nil for both
// sources; the primary failure behind a legacy answer is kept in
// PrimaryFailure, which is not rendered to the UI.
type Envelope[T any] struct {
	Data           T
	Source         Source
	Error          *resilience.ClassifiedError
	PrimaryFailure *resilience.ClassifiedError
	RequestID      string
}

// ErrorSummary is the JSON form of a primary failure.
type ErrorSummary struct {
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode,omitempty"`
}

type envelopeJSON[T any] struct {
	Data      T             `json:"data"`
	Source    Source        `json:"source"`
	Error     *ErrorSummary `json:"error"`
	RequestID string        `json:"requestId,omitempty"`
}

// MarshalJSON renders the envelope for the UI.
func (e Envelope[T]) MarshalJSON() ([]byte, error) {
	out := envelopeJSON[T]{Data: e.Data, Source: e.Source, RequestID: e.RequestID}
	if e.Error != nil {
		out.Error = &ErrorSummary{
			Kind:       e.Error.Kind.String(),
			Message:    e.Error.Message,
			StatusCode: e.Error.StatusCode,
		}
	}
	return json.Marshal(out)
}

// Post is a blog post.
type Post struct {
	ID          string          `json:"_id" validate:"required"`
	Title       string          `json:"title" validate:"required"`
	Slug        string          `json:"slug" validate:"required"`
	Excerpt     string          `json:"excerpt,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
	Author      string          `json:"author"`
	PublishedAt time.Time       `json:"publishedAt"`
	Category    string          `json:"category,omitempty"`
	Tags        []string        `json:"tags" validate:"dive,required"`
	CoverImage  string          `json:"coverImage,omitempty" validate:"omitempty,url"`
}

// CaseStudy is a customer case study.
type CaseStudy struct {
	ID          string    `json:"_id" validate:"required"`
	Title       string    `json:"title" validate:"required"`
	Slug        string    `json:"slug" validate:"required"`
	Client      string    `json:"client,omitempty"`
	Industry    string    `json:"industry"`
	Summary     string    `json:"summary,omitempty"`
	Results     []string  `json:"results,omitempty" validate:"dive,required"`
	PublishedAt time.Time `json:"publishedAt"`
	CoverImage  string    `json:"coverImage,omitempty" validate:"omitempty,url"`
}

type requestIDKey struct{}

// WithRequestID attaches a request ID that envelopes will carry.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID on ctx, generating one when absent.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
