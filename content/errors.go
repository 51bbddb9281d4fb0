package content

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonwraymond/contentops/resilience"
)

var (
	// ErrNotFound indicates the requested document does not exist in a source.
	ErrNotFound = errors.New("content: not found")

	// ErrInvalidDocument indicates a primary document failed schema
	// validation.
	ErrInvalidDocument = errors.New("content: invalid document")
)

// notFound is the classified form of ErrNotFound. It is a client fault, so it
// is never retried.
func notFound(what string) *resilience.ClassifiedError {
	return &resilience.ClassifiedError{
		Kind:       resilience.KindClientFault,
		Message:    what + " not found",
		StatusCode: http.StatusNotFound,
		Err:        ErrNotFound,
	}
}

// FallbackError is returned when both the primary and the legacy source
// failed. It unwraps to both failures.
type FallbackError struct {
	Label   string
	Primary *resilience.ClassifiedError
	Legacy  error
}

// Error implements the error interface.
func (e *FallbackError) Error() string {
	return fmt.Sprintf("content: %s: primary failed: %v; legacy failed: %v", e.Label, e.Primary, e.Legacy)
}

// Unwrap returns both failures for errors.Is and errors.As.
func (e *FallbackError) Unwrap() []error {
	return []error{e.Primary, e.Legacy}
}

// IsNotFound reports whether err means the document exists in no source. A
// FallbackError qualifies only when both sides report ErrNotFound.
func IsNotFound(err error) bool {
	var fe *FallbackError
	if errors.As(err, &fe) {
		return errors.Is(fe.Primary, ErrNotFound) && errors.Is(fe.Legacy, ErrNotFound)
	}
	return errors.Is(err, ErrNotFound)
}
