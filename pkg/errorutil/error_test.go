package errorutil

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsTypedError(t *testing.T) {
	orig := Retriable("mysql unavailable")
	wrapped := fmt.Errorf("load dataset: %w", orig)

	got := Wrap(wrapped)
	assert.Same(t, orig, got)
	assert.True(t, IsRetryable(wrapped))
}

func TestWrapPlainErrorIsNotRetryable(t *testing.T) {
	got := Wrap(errors.New("bad payload"))
	assert.False(t, got.Retryable)
	assert.Equal(t, 500, got.Code)
	assert.Nil(t, Wrap(nil))
	assert.Nil(t, UnWrapResponse(nil))
}

func TestWrapHelpersKeepCause(t *testing.T) {
	cause := errors.New("timeout")
	err := RetriableWrap(cause, "consume")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "consume: timeout", err.Error())

	nr := NonRetriableWrap(cause, "parse")
	assert.False(t, IsRetryable(nr))
	assert.Equal(t, 400, nr.Code)
}
