package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Keyer derives deterministic cache keys from a query and its parameters.
//
// Contract:
// - Determinism: same inputs produce the same key regardless of map order or
//   insignificant whitespace in the query.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	Key(source, query string, params map[string]any) (string, error)
}

// DefaultKeyer generates SHA-256 based cache keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Key generates a deterministic cache key.
// Format: content:<source>:<hash>
// where hash is the first 16 hex characters of SHA-256 over the normalized
// query and the JSON-encoded parameters.
func (k *DefaultKeyer) Key(source, query string, params map[string]any) (string, error) {
	if source == "" {
		return "", fmt.Errorf("%w: empty source", ErrInvalidKey)
	}

	// encoding/json writes map keys in sorted order.
	canonical, err := json.Marshal(struct {
		Query  string         `json:"q"`
		Params map[string]any `json:"p,omitempty"`
	}{
		Query:  NormalizeQuery(query),
		Params: params,
	})
	if err != nil {
		return "", fmt.Errorf("cache: failed to canonicalize params: %w", err)
	}

	hash := sha256.Sum256(canonical)
	key := "content:" + source + ":" + hex.EncodeToString(hash[:8])
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// NormalizeQuery collapses runs of whitespace so formatting differences in a
// query do not produce distinct keys.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(q), " ")
}

var _ Keyer = (*DefaultKeyer)(nil)
