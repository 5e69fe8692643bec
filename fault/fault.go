package fault

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a missing survey, session or raw key.
	ErrNotFound = errors.New("resource not found")
	// ErrMalformed marks a stored payload that fails the structural shape
	// check. At the survey boundary it is surfaced the same as ErrNotFound.
	ErrMalformed = errors.New("malformed payload")
	// ErrStaleSelection marks an option index or text that is no longer
	// valid against the session's current position.
	ErrStaleSelection = errors.New("stale selection")
	// ErrDelivery marks an outbound message rejected by the channel.
	ErrDelivery = errors.New("delivery rejected")
)

type ErrorType int

const (
	ErrClient ErrorType = iota
	ErrInternal
)

type Fault struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Fault) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.typeString(), e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.typeString(), e.Message)
}

// Unwrap allows errors.Is and errors.As to work.
func (e *Fault) Unwrap() error {
	return e.Err
}

func (e *Fault) typeString() string {
	switch e.Type {
	case ErrClient:
		return "ClientError"
	case ErrInternal:
		return "InternalError"
	default:
		return "UnknownError"
	}
}

// NewClientError creates a new client error.
func NewClientError(msg string, err error) error {
	return &Fault{
		Type:    ErrClient,
		Message: msg,
		Err:     err,
	}
}

// NewInternalError creates a new internal server error.
func NewInternalError(msg string, err error) error {
	return &Fault{
		Type:    ErrInternal,
		Message: msg,
		Err:     err,
	}
}

// IsClientError checks if an error is a client error.
func IsClientError(err error) bool {
	var ce *Fault
	if errors.As(err, &ce) {
		return ce.Type == ErrClient
	}
	return false
}
