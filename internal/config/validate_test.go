package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const invalidSizeStr = "not-a-size"

func validConfig() *AppConfig {
	return DefaultConfig()
}

func TestValidate_ValidDefaults(t *testing.T) {
	err := Validate(validConfig())
	assert.NoError(t, err)
}

func TestValidate_ChunkSize_Invalid(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.ChunkSize = invalidSizeStr
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_size")
}

func TestValidate_ChunkSize_TooSmall(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.ChunkSize = "1KiB"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_size")
}

func TestValidate_ChunkSize_TooLarge(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.ChunkSize = "1GiB"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_size")
}

func TestValidate_ChunkSize_Valid(t *testing.T) {
	for _, size := range []string{"64KiB", "1MiB", "10MiB", "256MiB"} {
		cfg := validConfig()
		cfg.Sync.ChunkSize = size
		err := Validate(cfg)
		assert.NoError(t, err, "expected %s to be valid", size)
	}
}

func TestValidate_ProgressMinInterval_Invalid(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.ProgressMinInterval = "not-a-duration"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "progress_min_interval")
}

func TestValidate_QueueMaxConcurrent_BelowMin(t *testing.T) {
	cfg := validConfig()
	cfg.Queue.MaxConcurrent = -1
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrent")
}

func TestValidate_QueueMaxConcurrent_AboveMax(t *testing.T) {
	cfg := validConfig()
	cfg.Queue.MaxConcurrent = 99
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrent")
}

func TestValidate_QueueMaxConcurrent_ZeroMeansUnset(t *testing.T) {
	cfg := validConfig()
	cfg.Queue.MaxConcurrent = 0
	err := Validate(cfg)
	assert.NoError(t, err)
}

func TestValidate_QueueDefaultMaxAttempts_Negative(t *testing.T) {
	cfg := validConfig()
	cfg.Queue.DefaultMaxAttempts = -1
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default_max_attempts")
}

func TestValidate_QueueRetryBackoff_MaxBelowBase(t *testing.T) {
	cfg := validConfig()
	cfg.Queue.RetryBackoffBaseMs = 5000
	cfg.Queue.RetryBackoffMaxMs = 1000
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry_backoff_max_ms")
}

func TestValidate_LogLevel_Invalid(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.LogLevel = "verbose"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
}

func TestValidate_LogLevel_AllValid(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := validConfig()
		cfg.Logging.LogLevel = level
		err := Validate(cfg)
		assert.NoError(t, err, "expected %s to be valid", level)
	}
}

func TestValidate_LogFormat_Invalid(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.LogFormat = "xml"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_format")
}

func TestValidate_LogFormat_AllValid(t *testing.T) {
	for _, format := range []string{"auto", "text", "json"} {
		cfg := validConfig()
		cfg.Logging.LogFormat = format
		err := Validate(cfg)
		assert.NoError(t, err, "expected %s to be valid", format)
	}
}

func TestValidate_DevicePollInterval_TooShort(t *testing.T) {
	cfg := validConfig()
	cfg.Device.PollInterval = "10ms"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll_interval")
}

func TestValidate_DevicePollInterval_InvalidFormat(t *testing.T) {
	cfg := validConfig()
	cfg.Device.PollInterval = "not-a-duration"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll_interval")
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Queue.MaxConcurrent = 99
	cfg.Logging.LogLevel = "verbose"
	cfg.Logging.LogFormat = "xml"

	err := Validate(cfg)
	require.Error(t, err)

	errStr := err.Error()
	assert.Contains(t, errStr, "max_concurrent")
	assert.Contains(t, errStr, "log_level")
	assert.Contains(t, errStr, "log_format")
}
