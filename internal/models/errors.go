package models

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds surfaced through the tool boundary.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("invalid input")
	ErrTimeout      = errors.New("render timed out")
	ErrRenderFailed = errors.New("renderer exited with an error")
	ErrBusy         = errors.New("a render is already in progress for this project")
)

// RenderError describes a failed renderer invocation. It wraps ErrTimeout or
// ErrRenderFailed.
type RenderError struct {
	Err        error
	ExitCode   int
	Elapsed    time.Duration
	LogExcerpt string
}

func (e *RenderError) Error() string {
	if errors.Is(e.Err, ErrTimeout) {
		return fmt.Sprintf("%v after %s", e.Err, e.Elapsed.Round(time.Millisecond))
	}
	return fmt.Sprintf("%v (exit code %d)", e.Err, e.ExitCode)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Kind names the taxonomy bucket of err, as shown to tool callers.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	case errors.Is(err, ErrTimeout):
		return "Timeout"
	case errors.Is(err, ErrRenderFailed):
		return "RenderFailure"
	case errors.Is(err, ErrBusy):
		return "Busy"
	}
	return "InternalError"
}
