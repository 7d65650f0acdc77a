package compliance

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error returned by a store or the Monitor matches
// exactly one of these with errors.Is.
var (
	// ErrPersistence is returned when a read or write could not complete.
	ErrPersistence = errors.New("compliance: persistence failure")

	// ErrNotFound is returned when no matching record exists.
	ErrNotFound = errors.New("compliance: not found")

	// ErrConfiguration is returned when a storage connection cannot be acquired.
	ErrConfiguration = errors.New("compliance: storage unavailable")

	// ErrInvalidArgument is returned for negative ids or an empty feature code.
	ErrInvalidArgument = errors.New("compliance: invalid argument")
)

const noID = UnknownID

// Error describes a failed compliance operation.
//
// Unwrap exposes only Kind, so callers can match the failure category
// without depending on driver error types. Cause returns the underlying error.
type Error struct {
	Op       string
	DeviceID int64
	PolicyID int64
	RecordID int64
	Kind     error
	cause    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	b.WriteString(": ")
	b.WriteString(e.Op)
	if e.DeviceID != noID {
		fmt.Fprintf(&b, " device=%d", e.DeviceID)
	}
	if e.PolicyID != noID {
		fmt.Fprintf(&b, " policy=%d", e.PolicyID)
	}
	if e.RecordID != noID {
		fmt.Fprintf(&b, " record=%d", e.RecordID)
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

// Unwrap returns the error kind.
func (e *Error) Unwrap() error {
	return e.Kind
}

// Cause returns the underlying driver or validation error, if any.
func (e *Error) Cause() error {
	return e.cause
}

func deviceError(op string, kind error, deviceID int64, cause error) *Error {
	return &Error{Op: op, DeviceID: deviceID, PolicyID: noID, RecordID: noID, Kind: kind, cause: cause}
}

func pairError(op string, kind error, deviceID, policyID int64, cause error) *Error {
	return &Error{Op: op, DeviceID: deviceID, PolicyID: policyID, RecordID: noID, Kind: kind, cause: cause}
}

func recordError(op string, kind error, recordID int64, cause error) *Error {
	return &Error{Op: op, DeviceID: noID, PolicyID: noID, RecordID: recordID, Kind: kind, cause: cause}
}

func storeError(op string, kind error, cause error) *Error {
	return &Error{Op: op, DeviceID: noID, PolicyID: noID, RecordID: noID, Kind: kind, cause: cause}
}

// errNegativeID is the cause attached to ErrInvalidArgument for ids below zero.
var errNegativeID = errors.New("identifier must not be negative")
