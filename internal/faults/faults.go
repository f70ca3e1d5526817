// Package faults classifies errors crossing component boundaries so callers
// can map them to ledger records and HTTP status codes.
package faults

import (
	"errors"
	"fmt"
)

// Kind identifies the failure class of an error.
type Kind string

const (
	// Extraction covers corrupt, encrypted, or text-free PDFs.
	Extraction Kind = "extraction"
	// Embedding covers oversized input and embedding provider errors/timeouts.
	Embedding Kind = "embedding"
	// Index covers vector store failures (unavailable, write conflict).
	Index Kind = "index"
	// Generation covers LLM provider errors and timeouts.
	Generation Kind = "generation"
	// InvalidArgument covers caller mistakes (bad top-k, empty query).
	InvalidArgument Kind = "invalid_argument"
)

// Error wraps an underlying error with a Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a Kind-classified error with a formatted message.
func New(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err under kind. Returns nil if err is nil. If err already
// carries a kind, it is preserved.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the Kind carried by err, or "" when err is unclassified.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
