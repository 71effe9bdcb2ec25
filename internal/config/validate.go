package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/vincentserpoul/youtun4-sub001/internal/queue"
)

// Validation range constants.
const (
	minChunkBytes      = 64 * 1024        // 64 KiB
	maxChunkBytes      = 256 * 1024 * 1024 // 256 MiB
	minPollInterval    = 500 * time.Millisecond
	minDevicePoll      = 250 * time.Millisecond
	minProgressMinIval = 0
)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *AppConfig) error {
	var errs []error

	errs = append(errs, validateSync(&cfg.Sync)...)
	errs = append(errs, validateQueue(&cfg.Queue)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateDevice(&cfg.Device)...)

	return errors.Join(errs...)
}

func validateSync(s *SyncConfig) []error {
	var errs []error

	if _, err := ParseSize(s.ChunkSize); err != nil {
		errs = append(errs, fmt.Errorf("sync.chunk_size: %w", err))
	} else if n, _ := ParseSize(s.ChunkSize); n < minChunkBytes || n > maxChunkBytes {
		errs = append(errs, fmt.Errorf("sync.chunk_size: must be between 64KiB and 256MiB, got %s", s.ChunkSize))
	}

	if _, err := time.ParseDuration(s.ProgressMinInterval); err != nil {
		errs = append(errs, fmt.Errorf("sync.progress_min_interval: invalid duration %q: %w", s.ProgressMinInterval, err))
	}

	return errs
}

func validateQueue(q *QueueConfig) []error {
	var errs []error

	if q.MaxConcurrent != 0 && (q.MaxConcurrent < queue.MinConcurrent || q.MaxConcurrent > queue.MaxConcurrent) {
		errs = append(errs, fmt.Errorf("queue.max_concurrent: must be between %d and %d, got %d",
			queue.MinConcurrent, queue.MaxConcurrent, q.MaxConcurrent))
	}

	if q.DefaultMaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("queue.default_max_attempts: must be >= 0, got %d", q.DefaultMaxAttempts))
	}

	if q.RetryBackoffBaseMs < 0 {
		errs = append(errs, fmt.Errorf("queue.retry_backoff_base_ms: must be >= 0, got %d", q.RetryBackoffBaseMs))
	}

	if q.RetryBackoffMaxMs < q.RetryBackoffBaseMs {
		errs = append(errs, fmt.Errorf("queue.retry_backoff_max_ms: must be >= retry_backoff_base_ms"))
	}

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if !validLogLevels[l.LogLevel] {
		errs = append(errs, fmt.Errorf("logging.log_level: must be one of debug, info, warn, error; got %q", l.LogLevel))
	}

	if !validLogFormats[l.LogFormat] {
		errs = append(errs, fmt.Errorf("logging.log_format: must be one of auto, text, json; got %q", l.LogFormat))
	}

	return errs
}

func validateDevice(d *DeviceConfig) []error {
	var errs []error

	interval, err := time.ParseDuration(d.PollInterval)
	if err != nil {
		errs = append(errs, fmt.Errorf("device.poll_interval: invalid duration %q: %w", d.PollInterval, err))
	} else if interval < minDevicePoll {
		errs = append(errs, fmt.Errorf("device.poll_interval: must be >= %s, got %s", minDevicePoll, interval))
	}

	return errs
}
