package feed

import (
	"errors"
	"fmt"
	"strings"
)

const (
	KindUpstreamUnavailable     = "upstream_unavailable"
	KindSchemaValidation        = "schema_validation"
	KindUpstreamReportedFailure = "upstream_reported_failure"
	KindUnknown                 = "unknown"
)

// UpstreamUnavailableError covers network failures, non-2xx responses and
// non-JSON bodies. StatusCode is 0 when no response was received.
type UpstreamUnavailableError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UpstreamUnavailableError) Unwrap() error {
	return e.Err
}

func (e *UpstreamUnavailableError) Kind() string {
	return KindUpstreamUnavailable
}

type Violation struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

func (v Violation) String() string {
	return v.Path + ": " + v.Reason
}

// SchemaValidationError lists every structural violation found in one response.
type SchemaValidationError struct {
	Violations []Violation
}

func (e *SchemaValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return "Validation failed: " + strings.Join(parts, "; ")
}

func (e *SchemaValidationError) Kind() string {
	return KindSchemaValidation
}

// Has reports whether a violation was recorded for path.
func (e *SchemaValidationError) Has(path string) bool {
	for _, v := range e.Violations {
		if v.Path == path {
			return true
		}
	}
	return false
}

// UpstreamReportedFailureError is a well-formed envelope whose status is not "ok".
type UpstreamReportedFailureError struct {
	Status string
}

func (e *UpstreamReportedFailureError) Error() string {
	return fmt.Sprintf("Failed to parse RSS feed: upstream status %q", e.Status)
}

func (e *UpstreamReportedFailureError) Kind() string {
	return KindUpstreamReportedFailure
}

// ErrorKind returns the pipeline error kind of err, or KindUnknown.
func ErrorKind(err error) string {
	var kinded interface{ Kind() string }
	if errors.As(err, &kinded) {
		return kinded.Kind()
	}
	return KindUnknown
}
