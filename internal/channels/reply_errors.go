package channels

import (
	"errors"
	"fmt"
	"net/http"
)

// SendError reports a reply call that reached the LINE API but was not
// accepted.
type SendError struct {
	StatusCode int
	Body       string
}

func (e *SendError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Body
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("line reply failed: status %d: %s", e.StatusCode, msg)
}

// Permanent reports whether resending the same request cannot succeed.
// Reply tokens are single use, so only throttling and server errors are
// transient.
func (e *SendError) Permanent() bool {
	if e == nil {
		return false
	}
	if e.StatusCode == http.StatusRequestTimeout || e.StatusCode == http.StatusTooManyRequests {
		return false
	}
	return e.StatusCode >= http.StatusBadRequest && e.StatusCode < http.StatusInternalServerError
}

// AsSendError extracts a *SendError from err.
func AsSendError(err error) (*SendError, bool) {
	var sendErr *SendError
	if !errors.As(err, &sendErr) {
		return nil, false
	}
	return sendErr, true
}
