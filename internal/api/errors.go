package api

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnavailable means the gateway could not be reached after all
	// retries were exhausted.
	ErrUnavailable = errors.New("api: server unavailable")

	// ErrUnauthorized means the gateway rejected the api key (HTTP 401).
	ErrUnauthorized = errors.New("api: unauthorized")

	// Err2FARequired is returned by Login when the account has two-factor
	// authentication enabled and no code was supplied.
	Err2FARequired = errors.New("api: two-factor code required")

	// Err2FAWrong is returned by Login when the supplied two-factor code
	// was rejected.
	Err2FAWrong = errors.New("api: two-factor code wrong")
)

// APIError is a domain error the gateway reported inside a well-formed
// response (status == false). Code is the machine-readable error code, which
// may be empty.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api: %s (%s)", e.Message, e.Code)
	}
	return "api: " + e.Message
}

// Is maps the gateway's 2FA challenge codes onto the exported sentinels so
// callers can use errors.Is without inspecting codes themselves.
func (e *APIError) Is(target error) bool {
	switch target {
	case Err2FARequired:
		return e.Code == "enter_2fa"
	case Err2FAWrong:
		return e.Code == "wrong_2fa"
	}
	return false
}

// HTTPError is a non-2xx HTTP response that carried no decodable domain
// error, e.g. a plain 404 or 409 from the gateway front.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("api: http status %d", e.StatusCode)
}

// IsConflict reports whether an error is the "already exists" hint used by
// directory creation: either an HTTP 409 or a domain error saying so.
func IsConflict(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == 409 {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return strings.Contains(strings.ToLower(apiErr.Message), "exist") ||
			strings.Contains(strings.ToLower(apiErr.Code), "exist")
	}
	return false
}
