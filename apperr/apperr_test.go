package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_ThroughWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("saving board: %w", NewNetwork("upload failed", cause))

	assert.True(t, IsKind(err, KindNetwork))
	assert.False(t, IsKind(err, KindDecode))
	assert.ErrorIs(t, err, cause)

	_, ok := KindOf(cause)
	assert.False(t, ok)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(NewNetwork("upload failed", nil)))
	assert.True(t, Retryable(NewStorageUnavailable("no snapshot store configured")))
	assert.False(t, Retryable(NewValidation("file too large")))
	assert.False(t, Retryable(NewDecode("bad png", nil)))
	assert.False(t, Retryable(errors.New("plain")))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "file too large.", UserMessage(NewValidation("file too large")))
	assert.Equal(t, "upload failed. Check your connection and try again.", UserMessage(NewNetwork("upload failed", errors.New("x"))))
	assert.Equal(t, "Something went wrong.", UserMessage(errors.New("boom")))
}

func TestError_String(t *testing.T) {
	assert.Equal(t, "VALIDATION: too big", NewValidation("too big").Error())
	assert.Equal(t, "DECODE: bad: eof", NewDecode("bad", errors.New("eof")).Error())
}
