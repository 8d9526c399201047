package weather

import (
	"errors"
	"fmt"
)

// ErrUpstreamUnavailable marks any failed upstream fetch or parse. It is always
// recovered inside the pipeline and only surfaces as a note.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// ValidationError reports malformed or out-of-range request input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RenderError wraps a document construction failure.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render report: %v", e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}
