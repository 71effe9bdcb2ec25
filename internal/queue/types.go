// Package queue implements the bounded-concurrency download scheduler of
// spec.md §4.7: jobs that fetch external resources and deposit files into a
// playlist directory, persisted across restarts in a SQLite-backed store.
package queue

import (
	"context"
)

// Concurrency bounds for QueueConfig.MaxConcurrent, per spec.md §4.7.
const (
	MinConcurrent = 1
	MaxConcurrent = 8
)

// QueueConfig governs scheduling and retry behavior for a Queue.
type QueueConfig struct {
	MaxConcurrent      int
	DefaultPriority    int
	DefaultMaxAttempts int
	RetryBackoffBaseMs int64
	RetryBackoffMaxMs  int64
}

// DefaultQueueConfig returns the configuration spec.md names as the default:
// two concurrent downloads, priority 0, three attempts before a job is
// abandoned, exponential backoff from 1s capped at 60s.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		MaxConcurrent:      2,
		DefaultPriority:    0,
		DefaultMaxAttempts: 3,
		RetryBackoffBaseMs: 1000,
		RetryBackoffMaxMs:  60_000,
	}
}

// clamp enforces the [MinConcurrent, MaxConcurrent] bound on MaxConcurrent
// and fills in zero-valued fields with DefaultQueueConfig's values.
func (c QueueConfig) clamp() QueueConfig {
	d := DefaultQueueConfig()

	if c.MaxConcurrent < MinConcurrent {
		c.MaxConcurrent = MinConcurrent
	}

	if c.MaxConcurrent > MaxConcurrent {
		c.MaxConcurrent = MaxConcurrent
	}

	if c.DefaultMaxAttempts <= 0 {
		c.DefaultMaxAttempts = d.DefaultMaxAttempts
	}

	if c.RetryBackoffBaseMs <= 0 {
		c.RetryBackoffBaseMs = d.RetryBackoffBaseMs
	}

	if c.RetryBackoffMaxMs <= 0 {
		c.RetryBackoffMaxMs = d.RetryBackoffMaxMs
	}

	return c
}

// Status is a QueueItem's lifecycle state.
type Status string

const (
	StatusPending     Status = "Pending"
	StatusDownloading Status = "Downloading"
	StatusCompleted   Status = "Completed"
	StatusFailed      Status = "Failed"
	StatusCancelled   Status = "Cancelled"
)

// DownloadRequest describes one job to enqueue: fetch URL and write the
// result to Destination. Priority and MaxAttempts of zero fall back to the
// Queue's configured defaults.
type DownloadRequest struct {
	URL         string
	Destination string
	Priority    int
	MaxAttempts int
	TimeoutSecs int
}

// DownloadProgress reports bytes transferred so far for an in-flight job.
// BytesTotal is 0 when the size is not known in advance.
type DownloadProgress struct {
	BytesDone  int64
	BytesTotal int64
}

// DownloadResult is what a Downloader returns on success.
type DownloadResult struct {
	BytesWritten int64
	Checksum     string
}

// Downloader is the external collaborator a Queue dispatches jobs to
// (spec.md §6). SPEC_FULL.md notes the real YouTube-backed implementation is
// out of scope; this module ships only NullDownloader for tests/demos.
type Downloader interface {
	Download(ctx context.Context, req DownloadRequest, progress func(DownloadProgress), cancelled func() bool) (DownloadResult, error)
}

// QueueItem is one job tracked by the queue, persisted across restarts.
type QueueItem struct {
	ID          int64
	Request     DownloadRequest
	Status      Status
	Attempts    int
	ScheduledAt int64
	CreatedAt   int64
	UpdatedAt   int64
	LastError   string
	BytesDone   int64
	BytesTotal  int64
}

// QueueStats is the §4.7 stats() query result.
type QueueStats struct {
	Pending        int
	Downloading    int
	Completed      int
	Failed         int
	Cancelled      int
	TotalBytesDone int64
}

// EventKind names one of the §4.7 event-channel event types.
type EventKind string

const (
	EventEnqueued  EventKind = "Enqueued"
	EventStarted   EventKind = "Started"
	EventProgress  EventKind = "Progress"
	EventCompleted EventKind = "Completed"
	EventFailed    EventKind = "Failed"
	EventCancelled EventKind = "Cancelled"
	EventRetrying  EventKind = "Retrying"
)

// Event is one message on a Queue's event channel.
type Event struct {
	Kind     EventKind
	ID       int64
	Progress DownloadProgress
	Reason   string
	DelayMs  int64
}
