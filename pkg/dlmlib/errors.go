package dlmlib

import (
	"errors"
	"fmt"
)

var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrTaskNotResumable  = errors.New("task is not resumable")
	ErrTaskNotActive     = errors.New("task is not active")
	ErrTaskAlreadyActive = errors.New("task is already active")
	ErrTaskTerminal      = errors.New("task is in a terminal state")

	ErrContentLengthInvalid = errors.New("content length is invalid")
	ErrFileNameNotFound     = errors.New("file name could not be determined")

	ErrInsufficientDiskSpace = errors.New("insufficient disk space")

	// ErrHTMLLandingPage is reported when a direct-download URL served an
	// HTML document instead of file bytes, which indicates an expired or
	// captive session.
	ErrHTMLLandingPage = errors.New("origin returned an HTML page instead of file content")

	ErrShortDownload = errors.New("downloaded bytes do not match expected size")

	ErrWorkspaceMissing = errors.New("workspace data is missing")
	ErrManifestInvalid  = errors.New("task manifest is invalid")

	// ErrInvariantViolated marks a programmer error. It is surfaced and
	// never silently repaired.
	ErrInvariantViolated = errors.New("invariant violated")
)

// AuthError is the session-expired error class (HTTP 401/403/410). It
// terminates worker retry and escalates to a session renewal request
// instead of failing the task.
type AuthError struct {
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authorization expired: server returned status %d", e.StatusCode)
}

// NetworkError wraps transport-level failures and HTML-content probes;
// it is the retryable error class.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s", e.Err.Error())
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError wraps non-auth unexpected HTTP statuses.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server returned unexpected status %d", e.StatusCode)
}

// IsAuthExpired reports whether err belongs to the session-expired class.
func IsAuthExpired(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
