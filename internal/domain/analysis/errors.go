package analysis

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrEmptyReport  = errors.New("report text is required")
	ErrMissingImage = errors.New("report image is required")
	ErrNotImage     = errors.New("file is not an image")

	// ErrQuotaExceeded matches an UpstreamError carrying HTTP 429.
	ErrQuotaExceeded = errors.New("ai quota exceeded")
)

// ValidationError marks input the client must fix. It is never retried and
// never reaches the upstream API.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(err error) error { return &ValidationError{Err: err} }

// UpstreamError reports a failed call to the generative-language API.
// Detail holds the upstream response body when one was received.
type UpstreamError struct {
	StatusCode int
	Detail     string
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Err != nil:
		return e.Err.Error()
	case e.StatusCode != 0:
		return fmt.Sprintf("upstream returned status %d", e.StatusCode)
	default:
		return "upstream request failed"
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool {
	return target == ErrQuotaExceeded && e.StatusCode == http.StatusTooManyRequests
}

// LogDetail is what gets logged: the upstream detail if present, else the
// transport error message.
func (e *UpstreamError) LogDetail() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Error()
}

// IsValidation reports whether err is a client input error.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
