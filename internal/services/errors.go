package services

import (
	"fmt"

	"neuroflash/internal/llm"
)

// ValidationError reports caller input that cannot be accepted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// UpstreamError carries the model client's failure payload unchanged.
type UpstreamError struct {
	Err *llm.Error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("model call failed: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// MalformedOutputError means the model answered but no usable flashcard payload could be read.
type MalformedOutputError struct {
	Reason string
	Raw    string
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("malformed model output: %s", e.Reason)
}

// PersistError reports a failure part way through saving generated cards.
// Cards before the failing item stay committed.
type PersistError struct {
	Created int
	Err     error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist flashcards (%d created): %v", e.Created, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
