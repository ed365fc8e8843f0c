package postgate

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by storage when a record does not exist or is not
// owned by the requesting user.
var ErrNotFound = errors.New("not found")

// MissingEnvError is returned when required configuration is missing.
type MissingEnvError struct {
	Provider  string
	Variables []string
}

func (e MissingEnvError) Error() string {
	if len(e.Variables) == 0 {
		return fmt.Sprintf("%s credentials not configured", e.Provider)
	}
	return fmt.Sprintf("%s credentials not configured (missing %s)", e.Provider, strings.Join(e.Variables, ", "))
}

// ValidationError captures provider-specific validation issues. Publishing
// is not retried when a poster returns one.
type ValidationError struct {
	Provider string
	Reason   string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s validation failed: %s", e.Provider, e.Reason)
}

// IsPermanent reports whether err cannot be fixed by retrying the same request.
func IsPermanent(err error) bool {
	var validation ValidationError
	if errors.As(err, &validation) {
		return true
	}
	var missing MissingEnvError
	return errors.As(err, &missing)
}
