// Package dpsimerrors contains the generic errors returned by the simulation lifecycle.
// The HTTP layer looks for the error types defined in this file and sets the response
// status accordingly; see HttpStatusFromError.
//
// Client-caused errors (ErrInvalidArgument, ErrArchive) carry enough detail to fix the request
// and are shown to the caller. Infrastructure errors (ErrStoreUnavailable, ErrCounterCorrupt,
// ErrSerialization, ErrPublishUnavailable) are logged in full but surfaced as opaque failures.
//
// If multiple errors occur in some function (e.g., several invalid form fields), that
// function should return an error of type multierror.Error from package
// github.com/hashicorp/go-multierror that encapsulates those individual errors.
package dpsimerrors

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// ErrNotFound is a generic error to be returned whenever some resource isn't found.
// Type and Message are optional and are omitted from the error message if not provided.
type ErrNotFound struct {
	Type    string // Resource type, e.g., "simulation"
	Value   string // Resource name, e.g., "7"
	Message string // An optional message to include in the error message
}

func (err *ErrNotFound) Error() (s string) {
	if err.Type != "" {
		s = fmt.Sprintf("resource %q of type %q does not exist", err.Value, err.Type)
	} else {
		s = fmt.Sprintf("resource %q does not exist", err.Value)
	}
	if err.Message != "" {
		return s + fmt.Sprintf("; %s", err.Message)
	} else {
		return s
	}
}

// ErrInvalidArgument is returned when untrusted input fails validation.
// Message is optional and is omitted from the error message if not provided.
type ErrInvalidArgument struct {
	Name    string      // Name of the field referred to, e.g., "simulation_type"
	Value   interface{} // The invalid value that was provided
	Message string      // An optional message explaining why the value is invalid
}

func (err *ErrInvalidArgument) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("value %q is invalid for field %q", err.Value, err.Name)
	} else {
		return fmt.Sprintf("value %q is invalid for field %q; %s", err.Value, err.Name, err.Message)
	}
}

// ErrArchive is returned for uploaded archives that are corrupt or hostile.
type ErrArchive struct {
	Entry  string // Archive entry the problem was found in, if any
	Reason string
}

func (err *ErrArchive) Error() string {
	if err.Entry == "" {
		return fmt.Sprintf("invalid archive: %s", err.Reason)
	}
	return fmt.Sprintf("invalid archive entry %q: %s", err.Entry, err.Reason)
}

// ErrStoreUnavailable wraps failures talking to the key-value store.
type ErrStoreUnavailable struct {
	Op  string // Store operation, e.g., "GET Simulation:7"
	Err error
}

func (err *ErrStoreUnavailable) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", err.Op, err.Err)
}

func (err *ErrStoreUnavailable) Unwrap() error {
	return err.Err
}

// ErrCounterCorrupt is returned when a stored counter can't be read as an unsigned integer.
type ErrCounterCorrupt struct {
	Key   string
	Value string
}

func (err *ErrCounterCorrupt) Error() string {
	return fmt.Sprintf("counter %q holds non-integer value %q", err.Key, err.Value)
}

// ErrSerialization is returned when a record can't be encoded or decoded.
type ErrSerialization struct {
	Type string
	Err  error
}

func (err *ErrSerialization) Error() string {
	return fmt.Sprintf("could not serialize %s: %v", err.Type, err.Err)
}

func (err *ErrSerialization) Unwrap() error {
	return err.Err
}

// ErrPublishUnavailable wraps failures handing a job to the execution channel.
type ErrPublishUnavailable struct {
	Channel string // Subject or topic the message was sent to
	Err     error
}

func (err *ErrPublishUnavailable) Error() string {
	return fmt.Sprintf("could not publish to %s: %v", err.Channel, err.Err)
}

func (err *ErrPublishUnavailable) Unwrap() error {
	return err.Err
}

// IsClientError returns true if err was caused by the request rather than by infrastructure.
// The details of client errors may be returned to the caller.
func IsClientError(err error) bool {
	{
		var e *ErrInvalidArgument
		if errors.As(err, &e) {
			return true
		}
	}
	{
		var e *ErrArchive
		if errors.As(err, &e) {
			return true
		}
	}
	{
		var e *ErrNotFound
		if errors.As(err, &e) {
			return true
		}
	}
	return false
}

// HttpStatusFromError maps error types to HTTP status codes.
// Uses errors.As to look through the chain of errors, as opposed to just considering the topmost error in the chain.
func HttpStatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}

	// Using {} scopes just to re-use the "e" variable name for each case.
	{
		var e *ErrInvalidArgument
		if errors.As(err, &e) {
			return http.StatusBadRequest
		}
	}
	{
		var e *ErrArchive
		if errors.As(err, &e) {
			return http.StatusUnprocessableEntity
		}
	}
	{
		var e *ErrNotFound
		if errors.As(err, &e) {
			return http.StatusNotFound
		}
	}
	{
		var e *ErrStoreUnavailable
		if errors.As(err, &e) {
			return http.StatusServiceUnavailable
		}
	}
	{
		var e *ErrPublishUnavailable
		if errors.As(err, &e) {
			return http.StatusBadGateway
		}
	}
	// Submissions cut short by their context are reported as timeouts, whether the
	// deadline passed or the context was cancelled.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
