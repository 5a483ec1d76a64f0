package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessageWithoutCause(t *testing.T) {
	e := New(OutOfRange, "index beyond confirmed range")
	assert.Equal(t, "OUT_OF_RANGE: index beyond confirmed range", e.Error())
}

func TestErrorMessageWithCause(t *testing.T) {
	cause := errors.New("short read")
	e := Wrap(HeaderInvalid, cause, "truncated gzip header")
	assert.Contains(t, e.Error(), "HEADER_INVALID")
	assert.Contains(t, e.Error(), "truncated gzip header")
	assert.Contains(t, e.Error(), "short read")
}

func TestIsMatchesSameKindOnly(t *testing.T) {
	a := New(DecodeFailure, "boom")
	b := New(DecodeFailure, "different message, same kind")
	c := New(LogicError, "wrong kind")
	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestUnwrapReachesCause(t *testing.T) {
	cause := errors.New("root cause")
	e := Wrapf(InvalidCodeLengths, cause, "bad histogram at offset %d", 42)
	assert.ErrorIs(t, e, cause)
}

func TestCondPanicNoopWhenDebugDisabled(t *testing.T) {
	Debug = false
	assert.NotPanics(t, func() {
		CondPanic(true, New(LogicError, "should not fire"))
	})
}

func TestCondPanicFiresWhenDebugEnabled(t *testing.T) {
	Debug = true
	defer func() { Debug = false }()
	assert.Panics(t, func() {
		CondPanic(true, New(LogicError, "invariant violated"))
	})
}
