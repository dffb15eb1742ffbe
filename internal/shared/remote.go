package shared

import (
	"errors"
	"fmt"
)

// Error taxonomy for calls to the backend of record. Local validation never
// produces these; they only arise from a request that actually went out.

// TransportError covers network failures, timeouts and 5xx responses.
// Nothing was mutated locally; the same command may be resubmitted as-is.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// StateConflictError indicates the backend refused an operation because the
// entity was changed by another actor (already approved, locked, deleted).
type StateConflictError struct {
	Entity   string
	EntityID int64
	Message  string
}

func (e *StateConflictError) Error() string {
	if e.EntityID != 0 {
		return fmt.Sprintf("%s %d: %s", e.Entity, e.EntityID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Entity, e.Message)
}

// ServerValidationError carries field-level messages from a 422 response.
// Each message is surfaced individually, never collapsed into one string.
type ServerValidationError struct {
	Message string
	Fields  map[string][]string
}

func (e *ServerValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "validation failed"
}

// Messages flattens field errors into display-ready strings.
func (e *ServerValidationError) Messages() []string {
	var out []string
	for field, msgs := range e.Fields {
		for _, m := range msgs {
			out = append(out, fmt.Sprintf("%s: %s", field, m))
		}
	}
	if len(out) == 0 && e.Message != "" {
		out = append(out, e.Message)
	}
	return out
}
