package student

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is wrapped by the AdapterError returned when a local update
// targets an unknown id.
var ErrNotFound = errors.New("Not found")

// ErrDuplicateID is wrapped when a local create names an id already stored.
var ErrDuplicateID = errors.New("Duplicate id")

// AdapterError is the single error kind returned by adapter operations.
type AdapterError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *AdapterError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Op + " failed"
}

func (e *AdapterError) Unwrap() error { return e.Err }

func notFound(op string) *AdapterError {
	return &AdapterError{Op: op, Status: http.StatusNotFound, Message: ErrNotFound.Error(), Err: ErrNotFound}
}

func duplicateID(op, id string) *AdapterError {
	return &AdapterError{Op: op, Status: http.StatusConflict, Message: ErrDuplicateID.Error() + ": " + id, Err: ErrDuplicateID}
}

// statusError builds the error for a non-2xx response. The body text wins
// over the generic message when present.
func statusError(op string, status int, body string) *AdapterError {
	msg := body
	if msg == "" {
		msg = fmt.Sprintf("Request failed: %d", status)
	}
	return &AdapterError{Op: op, Status: status, Message: msg}
}

func wrapError(op string, err error) *AdapterError {
	return &AdapterError{Op: op, Message: fmt.Sprintf("%s: %v", op, err), Err: err}
}
