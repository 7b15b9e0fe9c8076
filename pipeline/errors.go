package pipeline

import "errors"

var (
	// ErrQueueFull is returned by SendMessage when the
	// bounded outbound queue has no free slot.
	ErrQueueFull = errors.New("pipeline: outbound queue full")
	// ErrNotAContact is returned when a caller targets a recipient who
	// is not (yet) an approved contact.
	ErrNotAContact = errors.New("pipeline: recipient is not a contact")
	// ErrEngineStopped is returned when an operation is submitted after
	// Stop has been called.
	ErrEngineStopped = errors.New("pipeline: engine stopped")
)
