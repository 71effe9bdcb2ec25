package apperr_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentserpoul/youtun4-sub001/internal/apperr"
)

func TestWrapPreservesCauseForErrorsIs(t *testing.T) {
	sentinel := errors.New("disk exploded")
	wrapped := apperr.Wrap(apperr.KindReadFailed, sentinel, "reading chunk")

	require.True(t, errors.Is(wrapped, sentinel))
}

func TestKindOf(t *testing.T) {
	err := apperr.New(apperr.KindDeviceNotFound, "no device at /mnt/x")

	kind, ok := apperr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindDeviceNotFound, kind)

	_, ok = apperr.KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestRetryableDefaults(t *testing.T) {
	assert.True(t, apperr.New(apperr.KindRateLimited, "").Retryable)
	assert.False(t, apperr.New(apperr.KindInvalidInput, "").Retryable)
}

func TestWithRetryOverride(t *testing.T) {
	err := apperr.New(apperr.KindInvalidInput, "bad").WithRetry(true, 5*time.Second)
	assert.True(t, err.Retryable)
	assert.Equal(t, 5, err.RetryDelaySecs())
}

func TestToBoundary(t *testing.T) {
	err := apperr.New(apperr.KindInsufficientSpace, "need 250 more bytes")
	b := apperr.ToBoundary(err)
	assert.Equal(t, "InsufficientSpace", b.Kind)
	assert.False(t, b.Retryable)
	assert.Contains(t, b.Message, "250")

	empty := apperr.ToBoundary(nil)
	assert.Equal(t, apperr.Boundary{}, empty)

	plain := apperr.ToBoundary(errors.New("oops"))
	assert.Equal(t, "", plain.Kind)
	assert.Equal(t, "oops", plain.Message)
}
