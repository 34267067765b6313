package rtos

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrnoErrorStrings(t *testing.T) {
	assert.Equal(t, "ok", OK.Error())
	assert.Equal(t, "timed out", ETIMEDOUT.Error())
	assert.Contains(t, Errno(9999).Error(), "errno")
}

func TestErrnoIsMatchesWrappedError(t *testing.T) {
	wrapped := fmt.Errorf("lock failed: %w", ETIMEDOUT)
	assert.True(t, errors.Is(wrapped, ETIMEDOUT))
	assert.False(t, errors.Is(wrapped, EINTR))
}

func TestErrnoZeroValueIsOK(t *testing.T) {
	var e Errno
	assert.Equal(t, OK, e)
}
