// Package ipaerr defines the error-kind taxonomy shared by every layer of
// the IPA MPC runtime.
package ipaerr

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation failed.
type Kind uint8

const (
	// Network covers lost transport / peer closed connections.
	Network Kind = iota
	// ShuffleValidationFailed is a MAC verification mismatch in the
	// malicious shuffle; fatal for the query, never retried.
	ShuffleValidationFailed
	// Inconsistent is a malicious_reveal disagreement; fatal.
	Inconsistent
	// InvalidConfig covers a bad cap, bad breakdown width, or similar
	// misconfiguration caught before execution.
	InvalidConfig
	// DuplicateRecord is a programmer error: the same (step, peer, rid,
	// direction) slot was written twice.
	DuplicateRecord
	// OutOfBounds is a programmer error: a record id >= total_records.
	OutOfBounds
	// Canceled marks cooperative shutdown; not logged as an error.
	Canceled
	// Serialization covers malformed input.
	Serialization
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Network:
		return "Network"
	case ShuffleValidationFailed:
		return "ShuffleValidationFailed"
	case Inconsistent:
		return "Inconsistent"
	case InvalidConfig:
		return "InvalidConfig"
	case DuplicateRecord:
		return "DuplicateRecord"
	case OutOfBounds:
		return "OutOfBounds"
	case Canceled:
		return "Canceled"
	case Serialization:
		return "Serialization"
	default:
		return "Unknown"
	}
}

// Culprit names a party suspected of causing a fault, using an opaque
// string rather than importing pkg/party so that ipaerr stays leaf-level
// and importable from everywhere (including pkg/party's own tests).
type Culprit = string

// Error is the error type returned by every fallible operation in the
// core. It mirrors a protocol error carrying culprit IDs and a wrapped
// error, generalized to carry a Kind.
type Error struct {
	Kind     Kind
	Culprits []Culprit
	Err      error
}

// New builds an Error of the given kind wrapping err, optionally naming
// culprits.
func New(kind Kind, err error, culprits ...Culprit) *Error {
	return &Error{Kind: kind, Culprits: culprits, Err: err}
}

// Errorf builds an Error of the given kind from a format string.
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Culprits) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s (culprits: %v)", e.Kind, e.Err, e.Culprits)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Kind, so that
// errors.Is(err, ipaerr.New(ipaerr.Network, nil)) style kind checks work,
// as well as direct Kind comparisons via the Of(err, kind) helper below.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// Of reports whether err is an *ipaerr.Error of the given kind.
func Of(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
