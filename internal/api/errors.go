package api

import (
	"errors"
	"fmt"
)

// HTTPError is an unexpected non-2xx response. The body is kept so the
// provider's error message survives into the test failure output.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("%s %s returned %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// IsStatus reports whether err is an HTTPError with the given status.
func IsStatus(err error, status int) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == status
}

// ReadOnlyError signals a programming error: a mutating request was
// attempted on a client constructed as read-only. It is never retried.
type ReadOnlyError struct {
	Method string
}

func (e *ReadOnlyError) Error() string {
	return fmt.Sprintf("trying to run %s on a read-only client", e.Method)
}
