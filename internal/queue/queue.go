package queue

import (
	"context"

	"github.com/vincentserpoul/youtun4-sub001/internal/apperr"
)

// withDefaults fills in priority/max-attempts from cfg when the request
// leaves them at the zero value.
func (q *Queue) withDefaults(req DownloadRequest) DownloadRequest {
	if req.Priority == 0 {
		req.Priority = q.cfg.DefaultPriority
	}

	if req.MaxAttempts <= 0 {
		req.MaxAttempts = q.cfg.DefaultMaxAttempts
	}

	return req
}

// Add enqueues one job with status=Pending, attempts=0, scheduled_at=now
// and returns its id (§4.7 add).
func (q *Queue) Add(ctx context.Context, req DownloadRequest) (int64, error) {
	id, err := q.store.insert(ctx, q.withDefaults(req), nowUnix())
	if err != nil {
		return 0, err
	}

	q.emit(Event{Kind: EventEnqueued, ID: id})
	q.wakeDispatcher()

	return id, nil
}

// AddBatch atomically inserts a contiguous batch of requests and returns
// their ids in request order (§4.7 add_batch).
func (q *Queue) AddBatch(ctx context.Context, reqs []DownloadRequest) ([]int64, error) {
	withDefaults := make([]DownloadRequest, len(reqs))
	for i, r := range reqs {
		withDefaults[i] = q.withDefaults(r)
	}

	ids, err := q.store.insertBatch(ctx, withDefaults, nowUnix())
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		q.emit(Event{Kind: EventEnqueued, ID: id})
	}

	q.wakeDispatcher()

	return ids, nil
}

// Remove removes item id if it is not currently downloading (§4.7 remove).
func (q *Queue) Remove(ctx context.Context, id int64) error {
	return q.store.remove(ctx, id)
}

// Cancel sets the cancellation flag for id. If it is downloading, the
// in-flight job observes cancellation at its next checkpoint and aborts;
// its terminal status becomes Cancelled either way (§4.7 cancel).
func (q *Queue) Cancel(ctx context.Context, id int64) error {
	item, err := q.store.get(ctx, id)
	if err != nil {
		return err
	}

	if item.Status == StatusDownloading {
		q.runningMu.Lock()
		cancel, ok := q.running[id]
		delete(q.running, id)
		q.runningMu.Unlock()

		if ok {
			cancel()
		}

		return nil
	}

	if item.Status == StatusPending {
		if err := q.store.setStatus(ctx, id, StatusCancelled, nowUnix()); err != nil {
			return err
		}

		q.emit(Event{Kind: EventCancelled, ID: id})

		return nil
	}

	return apperr.New(apperr.KindInvalidInput, "item is not pending or downloading")
}

// SetPriority changes a queued item's scheduling priority. Has no effect on
// an item currently downloading (§4.7 set_priority).
func (q *Queue) SetPriority(ctx context.Context, id int64, priority int) error {
	if err := q.store.setPriority(ctx, id, priority, nowUnix()); err != nil {
		return err
	}

	q.wakeDispatcher()

	return nil
}

// MoveToFront gives id the highest priority among Pending items (§4.7
// move_to_front).
func (q *Queue) MoveToFront(ctx context.Context, id int64) error {
	if err := q.store.moveToFront(ctx, id, nowUnix()); err != nil {
		return err
	}

	q.wakeDispatcher()

	return nil
}

// Retry resets a Failed or Cancelled item back to Pending (§4.7 retry).
func (q *Queue) Retry(ctx context.Context, id int64) error {
	if err := q.store.retry(ctx, id, nowUnix()); err != nil {
		return err
	}

	q.wakeDispatcher()

	return nil
}

// Get returns one item by id (§4.7 get).
func (q *Queue) Get(ctx context.Context, id int64) (QueueItem, error) {
	return q.store.get(ctx, id)
}

// GetAll returns every tracked item (§4.7 get_all).
func (q *Queue) GetAll(ctx context.Context) ([]QueueItem, error) {
	return q.store.getAll(ctx)
}

// Pending returns Pending items in selection order (§4.7 pending).
func (q *Queue) Pending(ctx context.Context) ([]QueueItem, error) {
	return q.store.pending(ctx)
}

// Downloading returns items currently in flight (§4.7 downloading).
func (q *Queue) Downloading(ctx context.Context) ([]QueueItem, error) {
	return q.store.downloading(ctx)
}

// Stats summarizes queue depth by status (§4.7 stats).
func (q *Queue) Stats(ctx context.Context) (QueueStats, error) {
	st, err := q.store.stats(ctx)
	if err != nil {
		return QueueStats{}, err
	}

	q.metrics.observe(st)

	return st, nil
}

// Pause stops new jobs from starting; in-flight downloads continue to
// completion (§4.7 pause).
func (q *Queue) Pause() {
	q.paused.Store(true)
}

// Resume allows the dispatcher to start new jobs again (§4.7 resume).
func (q *Queue) Resume() {
	q.paused.Store(false)
	q.wakeDispatcher()
}

// IsPaused reports whether Pause has been called without a matching Resume
// (§4.7 is_paused).
func (q *Queue) IsPaused() bool {
	return q.paused.Load()
}

// ClearFinished removes every Completed, Failed, or Cancelled item (§4.7
// clear_finished).
func (q *Queue) ClearFinished(ctx context.Context) error {
	return q.store.clearFinished(ctx)
}

// ClearAll removes every item regardless of status. Does not cancel
// in-flight downloads; callers should Cancel or Close first if that
// matters (§4.7 clear_all).
func (q *Queue) ClearAll(ctx context.Context) error {
	return q.store.clearAll(ctx)
}
