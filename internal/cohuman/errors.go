package cohuman

import (
	"errors"
	"fmt"
)

// APIError is returned when Cohuman answers with a non-2xx status or a
// body that is not the expected JSON.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
	Err    error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cohuman %s %s: %d: %v", e.Method, e.Path, e.Status, e.Err)
	}
	return fmt.Sprintf("cohuman %s %s: %d: %s", e.Method, e.Path, e.Status, e.Body)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether err is a Cohuman 401, meaning the access
// token was revoked or never granted.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == 401
}
