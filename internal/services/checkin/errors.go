package checkin

import (
	"errors"
	"fmt"
)

// Sentinel errors for the status outcomes the orchestrator branches on.
var (
	// ErrAuthExpired maps HTTP 401: the session cookies are no longer
	// valid and the attempt must not be retried with the same jar.
	ErrAuthExpired = errors.New("认证已过期 (authentication expired)")

	// ErrForbidden maps HTTP 403: the WAF or the console rejected the
	// request outright.
	ErrForbidden = errors.New("access forbidden")

	// ErrNoCheckinEndpoint maps HTTP 404 on the check-in URL: the
	// provider has no explicit check-in, so a user-info keep-alive call
	// stands in.
	ErrNoCheckinEndpoint = errors.New("check-in endpoint not found")
)

// ResponseFormatError reports a response body that did not decode into
// the expected shape. The excerpt is capped so log lines and notification
// bodies stay readable when the WAF serves an HTML page instead of JSON.
type ResponseFormatError struct {
	Endpoint string
	Excerpt  string
	Err      error
}

const excerptLimit = 200

func newResponseFormatError(endpoint string, body []byte, err error) *ResponseFormatError {
	excerpt := string(body)
	if len(excerpt) > excerptLimit {
		excerpt = excerpt[:excerptLimit]
	}
	return &ResponseFormatError{Endpoint: endpoint, Excerpt: excerpt, Err: err}
}

func (e *ResponseFormatError) Error() string {
	return fmt.Sprintf("unexpected response from %s: %v (body: %s)", e.Endpoint, e.Err, e.Excerpt)
}

func (e *ResponseFormatError) Unwrap() error {
	return e.Err
}
