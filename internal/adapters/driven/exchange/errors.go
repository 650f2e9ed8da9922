package exchange

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/exchange-agent/internal/core/domain"
)

// StatusError is an unexpected HTTP status returned by the exchange service.
type StatusError struct {
	Op   string
	Code int
	Body []byte
}

func (e *StatusError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Code, truncate(e.Body, 200))
}

// Retriable reports whether the request may succeed if repeated.
func (e *StatusError) Retriable() bool {
	return e.Code >= http.StatusInternalServerError || e.Code == http.StatusTooManyRequests
}

// Unwrap classifies every status error as a remote error.
func (e *StatusError) Unwrap() error {
	return domain.ErrRemote
}

// TransportError is a failure to reach the exchange service or the token endpoint.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Retriable is always true: the service was not reached.
func (e *TransportError) Retriable() bool {
	return true
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// tokenError classifies a token acquisition failure. A token endpoint
// answering with a 4xx rejects the credentials and is not worth repeating.
func tokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < http.StatusInternalServerError {
		return &StatusError{Op: "token", Code: re.Response.StatusCode, Body: re.Body}
	}
	return &TransportError{Op: "token", Err: err}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
