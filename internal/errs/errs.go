// Package errs defines the error kinds surfaced by the block pipeline.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an Error the way spec.md §7 names them.
type Kind int

const (
	// InvalidArgument covers a nil finder, bad spacing, bad mode string,
	// or a non-positive file handle where one is required.
	InvalidArgument Kind = iota
	// OutOfRange is returned by Find for an offset that is neither
	// confirmed nor grid-aligned.
	OutOfRange
	// HeaderInvalid means the gzip header could not be parsed at
	// Block Finder construction.
	HeaderInvalid
	// InvalidCodeLengths is a precode validity failure: overflowing bins.
	InvalidCodeLengths
	// BloatingHuffmanCoding is a precode validity failure: a realizable
	// but non-canonical (bloating) code.
	BloatingHuffmanCoding
	// DecodeFailure is surfaced through the result handle of a decode task.
	DecodeFailure
	// LogicError marks an invariant violation: a programmer error that
	// should abort in debug builds.
	LogicError
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "INVALID_ARGUMENT"
	case OutOfRange:
		return "OUT_OF_RANGE"
	case HeaderInvalid:
		return "HEADER_INVALID"
	case InvalidCodeLengths:
		return "INVALID_CODE_LENGTHS"
	case BloatingHuffmanCoding:
		return "BLOATING_HUFFMAN_CODING"
	case DecodeFailure:
		return "DECODE_FAILURE"
	case LogicError:
		return "LOGIC_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Error is a Kind-tagged error, optionally wrapping a cause.
type Error struct {
	Kind  Kind
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

// Unwrap lets errors.Is/errors.As see through to the cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same Kind.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}

// New builds a Kind-tagged error with a message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

// Newf builds a Kind-tagged error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind and message to an existing cause.
func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, msg: msg, cause: errors.WithStack(cause)}
}

// Wrapf attaches a Kind and formatted message to an existing cause.
func Wrapf(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...), cause: errors.WithStack(cause)}
}

// Debug gates the CondPanic assertion helper. Off by default; this
// package's own CondPanic test is the only test that turns it on.
var Debug = false

// CondPanic panics with a LogicError when condition holds and Debug is
// enabled; otherwise it is a no-op. Mirrors utils.CondPanic in the
// teacher repo, scoped to the LogicError invariant-violation class named
// in spec.md §7.
func CondPanic(condition bool, err *Error) {
	if condition && Debug {
		panic(err)
	}
}
