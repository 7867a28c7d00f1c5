package shortener

import (
	"fmt"
)

// StatusError reports a response whose status is not a success for the
// operation.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

// MissingCodeError reports a successful creation whose body carried no
// short code.
type MissingCodeError struct {
	StatusCode int
	Path       string
}

func (e *MissingCodeError) Error() string {
	return fmt.Sprintf("create: status %d without %q in response", e.StatusCode, e.Path)
}
