// Package errs classifies the error kinds used across the engine so
// callers can react with errors.Is instead of string matching.
package errs

import "errors"

// Kind identifies the broad category of a failure, as laid out in the
// error handling design: per-file I/O and decode errors are logged and
// skipped, extractor failures truncate a video, DB errors abort a
// single operation, and so on. The policy lives with the caller; Kind
// only lets the caller tell these apart.
type Kind int

const (
	Unknown Kind = iota
	NotFound
	Permission
	DecodeFailed
	ExtractorFailed
	DBFailed
	MalformedBlob
	BadArgument
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "io_not_found"
	case Permission:
		return "io_permission"
	case DecodeFailed:
		return "decode_failed"
	case ExtractorFailed:
		return "extractor_failed"
	case DBFailed:
		return "db_failed"
	case MalformedBlob:
		return "malformed_blob"
	case BadArgument:
		return "bad_argument"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind so it can be matched with
// errors.As regardless of the message text.
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

// New wraps err with a Kind and the operation that produced it. A nil
// err still produces a non-nil *Error, since some Kinds (e.g.
// BadArgument) are raised without an underlying cause.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
