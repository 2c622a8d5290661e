package launchpad

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx answer from the web service.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("launchpad %s %s returned status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("launchpad %s %s returned status %d: %s", e.Method, e.URL, e.StatusCode, body)
}

func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized) || hasStatus(err, http.StatusForbidden)
}

func hasStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}
