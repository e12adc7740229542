// Package storeerr defines the error kinds shared across the store and
// update-server packages.
package storeerr

import "errors"

// Kind classifies an error the way the core spec does, independent of the
// underlying Go error chain.
type Kind int

const (
	// KindNotFound covers missing cache files, out-of-range (type, file)
	// requests, and sector chains that run past end of file.
	KindNotFound Kind = iota
	// KindInvalidData covers malformed sectors, unknown compression codes,
	// decompression length mismatches, and unrecognized protocol fields.
	KindInvalidData
	// KindCompressionFailure covers codec-reported failures. No code remaps
	// it to KindInvalidData; a client sees the same disconnect for either.
	KindCompressionFailure
	// KindIO covers OS-level read/seek failures.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidData:
		return "invalid_data"
	case KindCompressionFailure:
		return "compression_failure"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind so callers can branch on it
// with errors.As without string matching.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error. err may be nil.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// NotFound builds a KindNotFound error.
func NotFound(op string, err error) *Error { return New(KindNotFound, op, err) }

// InvalidData builds a KindInvalidData error.
func InvalidData(op string, err error) *Error { return New(KindInvalidData, op, err) }

// CompressionFailure builds a KindCompressionFailure error. The update
// server does not remap error kinds: on any dispatch error it logs the
// error and closes the connection.
func CompressionFailure(op string, err error) *Error { return New(KindCompressionFailure, op, err) }

// IO builds a KindIO error.
func IO(op string, err error) *Error { return New(KindIO, op, err) }

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
