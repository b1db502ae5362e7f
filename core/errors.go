package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the core taxonomy. Agent-level failures are not part
// of this set: they never escape the dispatcher as errors and are carried as
// AgentResult.Err instead.
var (
	// ErrNotFound indicates an unknown session id.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed input, e.g. empty segment text.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized indicates a session/connection ownership mismatch.
	ErrUnauthorized = errors.New("unauthorized")
)

// FatalPipelineError marks a failure in the decision stage itself (entity
// extraction or intent classification). It aborts the whole segment's
// processing: no agents are dispatched and no partial results are emitted.
type FatalPipelineError struct {
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *FatalPipelineError) Error() string {
	return fmt.Sprintf("pipeline stage %s failed: %v", e.Stage, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *FatalPipelineError) Unwrap() error { return e.Err }

// NewFatalPipelineError wraps a stage failure.
func NewFatalPipelineError(stage string, err error) *FatalPipelineError {
	return &FatalPipelineError{Stage: stage, Err: err}
}
