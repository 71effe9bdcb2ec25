package queue

import (
	"context"
	"errors"
	"log/slog"
	stdsync "sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/semaphore"

	"github.com/vincentserpoul/youtun4-sub001/internal/apperr"
)

// Queue is a bounded-concurrency download scheduler backed by a SQLite
// store. Jobs are dispatched to a Downloader; the §4.7 scheduler invariant
// (at most MaxConcurrent items Downloading at once) is enforced with a
// weighted semaphore, matching this pack's golang.org/x/sync usage
// elsewhere for bounded concurrent dispatch.
type Queue struct {
	cfg        QueueConfig
	store      *store
	downloader Downloader
	logger     *slog.Logger
	metrics    *Metrics

	sem *semaphore.Weighted

	events chan Event

	wake chan struct{}

	paused atomic.Bool

	runningMu stdsync.Mutex
	running   map[int64]context.CancelFunc

	cancel context.CancelFunc
	wg     stdsync.WaitGroup
}

// Open creates (or opens an existing) SQLite-backed queue at dbPath and
// applies schema migrations. Call Start to begin dispatching jobs.
func Open(ctx context.Context, dbPath string, cfg QueueConfig, downloader Downloader, logger *slog.Logger) (*Queue, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg = cfg.clamp()

	st, err := openStore(ctx, dbPath, logger)
	if err != nil {
		return nil, err
	}

	return &Queue{
		cfg:        cfg,
		store:      st,
		downloader: downloader,
		logger:     logger,
		metrics:    NewMetrics(),
		sem:        semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		events:     make(chan Event, 256),
		wake:       make(chan struct{}, 1),
		running:    make(map[int64]context.CancelFunc),
	}, nil
}

// Events returns the queue's event channel (§4.7: Enqueued | Started |
// Progress | Completed | Failed | Cancelled | Retrying).
func (q *Queue) Events() <-chan Event {
	return q.events
}

func (q *Queue) emit(e Event) {
	select {
	case q.events <- e:
	default:
		q.logger.Warn("queue: event channel full, dropping event", slog.String("kind", string(e.Kind)), slog.Int64("id", e.ID))
	}
}

func (q *Queue) wakeDispatcher() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Start launches the dispatch loop. Call Close to stop it.
func (q *Queue) Start(ctx context.Context) {
	ctx, q.cancel = context.WithCancel(ctx)

	q.wg.Add(1)

	go q.dispatchLoop(ctx)
}

// Close stops the dispatch loop, waits for in-flight jobs to observe
// cancellation and return, and closes the underlying database.
func (q *Queue) Close() error {
	if q.cancel != nil {
		q.cancel()
	}

	q.wg.Wait()

	return q.store.close()
}

// dispatchLoop is the single goroutine that turns Pending items into
// Downloading ones, respecting the semaphore and the paused flag. It wakes
// on the wake channel (fired by every mutating operation) and on a safety
// timer so retry-scheduled items eventually get picked up without an
// explicit external nudge.
func (q *Queue) dispatchLoop(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		case <-ticker.C:
		}

		q.dispatchEligible(ctx)
	}
}

func (q *Queue) dispatchEligible(ctx context.Context) {
	if q.paused.Load() {
		return
	}

	items, err := q.store.pendingEligible(ctx, nowUnix())
	if err != nil {
		q.logger.Error("queue: listing eligible items failed", slog.String("error", err.Error()))

		return
	}

	for _, item := range items {
		if !q.sem.TryAcquire(1) {
			return
		}

		if err := q.store.setStatus(ctx, item.ID, StatusDownloading, nowUnix()); err != nil {
			q.sem.Release(1)
			q.logger.Error("queue: marking item downloading failed", slog.String("error", err.Error()))

			continue
		}

		jobCtx, jobCancel := context.WithCancel(ctx)
		if item.Request.TimeoutSecs > 0 {
			jobCtx, jobCancel = context.WithTimeout(ctx, time.Duration(item.Request.TimeoutSecs)*time.Second)
		}

		q.runningMu.Lock()
		q.running[item.ID] = jobCancel
		q.runningMu.Unlock()

		q.emit(Event{Kind: EventStarted, ID: item.ID})

		q.wg.Add(1)

		go q.runJob(jobCtx, jobCancel, item)
	}
}

func (q *Queue) runJob(ctx context.Context, jobCancel context.CancelFunc, item QueueItem) {
	defer q.wg.Done()
	defer q.sem.Release(1)
	defer jobCancel()
	defer func() {
		q.runningMu.Lock()
		delete(q.running, item.ID)
		q.runningMu.Unlock()
	}()

	cancelled := func() bool {
		q.runningMu.Lock()
		_, stillRunning := q.running[item.ID]
		q.runningMu.Unlock()

		return !stillRunning || ctx.Err() != nil
	}

	progress := func(p DownloadProgress) {
		if err := q.store.recordProgress(ctx, item.ID, p, nowUnix()); err != nil {
			q.logger.Warn("queue: recording progress failed", slog.String("error", err.Error()))
		}

		q.emit(Event{Kind: EventProgress, ID: item.ID, Progress: p})
	}

	result, err := q.downloader.Download(ctx, item.Request, progress, cancelled)

	// The job context may already be cancelled here (Cancel, Close, or a
	// timeout); the outcome is recorded on a context that outlives it.
	storeCtx := context.WithoutCancel(ctx)
	now := nowUnix()
	kind, _ := apperr.KindOf(err)

	switch {
	case err == nil:
		if mErr := q.store.markCompleted(storeCtx, item.ID, result, now); mErr != nil {
			q.logger.Error("queue: marking completed failed", slog.String("error", mErr.Error()))
		}

		q.metrics.Completed.Inc()
		q.emit(Event{Kind: EventCompleted, ID: item.ID})
	case kind == apperr.KindCancelled || errors.Is(err, context.Canceled):
		if mErr := q.store.setStatus(storeCtx, item.ID, StatusCancelled, now); mErr != nil {
			q.logger.Error("queue: marking cancelled failed", slog.String("error", mErr.Error()))
		}

		q.emit(Event{Kind: EventCancelled, ID: item.ID})
	default:
		q.handleFailure(storeCtx, item, err, now)
	}

	q.wakeDispatcher()
}

// handleFailure applies the §4.7 retry policy: on failure with
// attempts < max_attempts, retry with exponential backoff and increment
// attempts; otherwise terminate Failed with attempts left unchanged, so
// attempts never exceeds max_attempts (spec.md §3's QueueItem invariant).
func (q *Queue) handleFailure(ctx context.Context, item QueueItem, cause error, now int64) {
	maxAttempts := item.Request.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = q.cfg.DefaultMaxAttempts
	}

	retrying := item.Attempts < maxAttempts

	attemptsToStore := item.Attempts
	if retrying {
		attemptsToStore = item.Attempts + 1
	}

	reason := cause.Error()

	var scheduledAt int64

	var delayMs int64

	if retrying {
		delay := computeBackoff(attemptsToStore, q.cfg.RetryBackoffBaseMs, q.cfg.RetryBackoffMaxMs)
		delayMs = delay.Milliseconds()
		scheduledAt = now + int64((delay+time.Second-1)/time.Second)
	} else {
		scheduledAt = now
	}

	if err := q.store.markRetryOrFail(ctx, item.ID, reason, attemptsToStore, scheduledAt, retrying, now); err != nil {
		q.logger.Error("queue: recording failure failed", slog.String("error", err.Error()))

		return
	}

	if retrying {
		q.emit(Event{Kind: EventRetrying, ID: item.ID, DelayMs: delayMs, Reason: reason})
	} else {
		q.metrics.FailedTotal.Inc()
		q.emit(Event{Kind: EventFailed, ID: item.ID, Reason: reason})
	}
}

// computeBackoff implements the §4.7 formula
// min(backoff_base * 2^(attempts-1), backoff_max) using go-retry's
// exponential backoff generator (already in this pack's dependency graph)
// rather than hand-rolling the power-of-two math.
func computeBackoff(attempts int, baseMs, maxMs int64) time.Duration {
	if attempts < 1 {
		attempts = 1
	}

	b := retry.NewExponential(time.Duration(baseMs) * time.Millisecond)
	b = retry.WithCappedDuration(time.Duration(maxMs)*time.Millisecond, b)

	var d time.Duration

	for i := 0; i < attempts; i++ {
		next, stop := b.Next()
		if stop {
			break
		}

		d = next
	}

	capped := time.Duration(maxMs) * time.Millisecond
	if d > capped {
		d = capped
	}

	return d
}

func nowUnix() int64 {
	return time.Now().Unix()
}
