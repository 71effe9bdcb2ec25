package queue

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/pkg/errors"

	_ "modernc.org/sqlite" // pure Go SQLite driver, registers as "sqlite"

	"github.com/vincentserpoul/youtun4-sub001/internal/apperr"
)

// store is the SQLite-backed persistence layer for QueueItem state. Plain
// database/sql calls are used rather than the teacher's grouped prepared
// statements (internal/sync/state.go): the CRUD surface here is an order of
// magnitude smaller than the delta-reconciliation store that idiom serves.
type store struct {
	db *sql.DB
}

// openStore opens (creating if absent) a SQLite database at path, enables
// WAL mode for concurrent readers during writes, and applies schema
// migrations before returning.
func openStore(ctx context.Context, path string, logger *slog.Logger) (*store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "queue: opening database "+path)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()

		return nil, errors.Wrap(err, "queue: enabling WAL mode")
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()

		return nil, errors.Wrap(err, "queue: enabling foreign keys")
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()

		return nil, err
	}

	return &store{db: db}, nil
}

func (s *store) close() error {
	return s.db.Close()
}

const itemColumns = `id, url, destination, priority, max_attempts, timeout_secs,
	status, attempts, scheduled_at, created_at, updated_at, last_error, bytes_done, bytes_total`

func scanItem(row interface{ Scan(...any) error }) (QueueItem, error) {
	var item QueueItem

	err := row.Scan(
		&item.ID, &item.Request.URL, &item.Request.Destination, &item.Request.Priority,
		&item.Request.MaxAttempts, &item.Request.TimeoutSecs,
		&item.Status, &item.Attempts, &item.ScheduledAt, &item.CreatedAt, &item.UpdatedAt, &item.LastError,
		&item.BytesDone, &item.BytesTotal,
	)

	return item, err
}

// insert adds one pending item and returns its assigned id.
func (s *store) insert(ctx context.Context, req DownloadRequest, now int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO queue_items (url, destination, priority, max_attempts, timeout_secs,
			status, attempts, scheduled_at, created_at, updated_at, last_error, bytes_done, bytes_total)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?, '', 0, 0)`,
		req.URL, req.Destination, req.Priority, req.MaxAttempts, req.TimeoutSecs,
		StatusPending, now, now, now,
	)
	if err != nil {
		return 0, errors.Wrap(err, "queue: inserting item")
	}

	return res.LastInsertId()
}

// insertBatch adds a contiguous batch of pending items inside one
// transaction, returning ids in request order (§4.7 add_batch).
func (s *store) insertBatch(ctx context.Context, reqs []DownloadRequest, now int64) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "queue: beginning batch insert")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO queue_items (url, destination, priority, max_attempts, timeout_secs,
			status, attempts, scheduled_at, created_at, updated_at, last_error, bytes_done, bytes_total)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?, '', 0, 0)`)
	if err != nil {
		return nil, errors.Wrap(err, "queue: preparing batch insert")
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(reqs))

	for _, req := range reqs {
		res, err := stmt.ExecContext(ctx, req.URL, req.Destination, req.Priority, req.MaxAttempts, req.TimeoutSecs,
			StatusPending, now, now, now)
		if err != nil {
			return nil, errors.Wrap(err, "queue: inserting batch item")
		}

		id, err := res.LastInsertId()
		if err != nil {
			return nil, errors.Wrap(err, "queue: reading batch item id")
		}

		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "queue: committing batch insert")
	}

	return ids, nil
}

func (s *store) get(ctx context.Context, id int64) (QueueItem, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM queue_items WHERE id = ?", id)

	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return QueueItem{}, apperr.New(apperr.KindNotFound, "no queue item with that id")
	}

	if err != nil {
		return QueueItem{}, errors.Wrap(err, "queue: reading item")
	}

	return item, nil
}

func (s *store) queryAll(ctx context.Context, whereClause string, args ...any) ([]QueueItem, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+itemColumns+" FROM queue_items "+whereClause, args...)
	if err != nil {
		return nil, errors.Wrap(err, "queue: listing items")
	}
	defer rows.Close()

	var items []QueueItem

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, errors.Wrap(err, "queue: scanning item")
		}

		items = append(items, item)
	}

	return items, rows.Err()
}

func (s *store) getAll(ctx context.Context) ([]QueueItem, error) {
	return s.queryAll(ctx, "ORDER BY id ASC")
}

// pendingEligible returns Pending items whose scheduled_at has arrived,
// ordered by the §4.7 selection rule: priority descending, then FIFO by
// scheduled_at.
func (s *store) pendingEligible(ctx context.Context, now int64) ([]QueueItem, error) {
	return s.queryAll(ctx,
		"WHERE status = ? AND scheduled_at <= ? ORDER BY priority DESC, scheduled_at ASC",
		StatusPending, now)
}

func (s *store) pending(ctx context.Context) ([]QueueItem, error) {
	return s.queryAll(ctx, "WHERE status = ? ORDER BY priority DESC, scheduled_at ASC", StatusPending)
}

func (s *store) downloading(ctx context.Context) ([]QueueItem, error) {
	return s.queryAll(ctx, "WHERE status = ? ORDER BY id ASC", StatusDownloading)
}

func (s *store) remove(ctx context.Context, id int64) error {
	item, err := s.get(ctx, id)
	if err != nil {
		return err
	}

	if item.Status == StatusDownloading {
		return apperr.New(apperr.KindInvalidInput, "cannot remove an item currently downloading")
	}

	_, err = s.db.ExecContext(ctx, "DELETE FROM queue_items WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "queue: deleting item")
	}

	return nil
}

func (s *store) setStatus(ctx context.Context, id int64, status Status, now int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE queue_items SET status = ?, updated_at = ? WHERE id = ?", status, now, id)
	if err != nil {
		return errors.Wrap(err, "queue: updating status")
	}

	return nil
}

func (s *store) setPriority(ctx context.Context, id int64, priority int, now int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE queue_items SET priority = ?, updated_at = ? WHERE id = ?", priority, now, id)
	if err != nil {
		return errors.Wrap(err, "queue: setting priority")
	}

	return nil
}

// moveToFront gives id a priority strictly higher than every other item
// currently queued, so it is the next Pending item selected.
func (s *store) moveToFront(ctx context.Context, id int64, now int64) error {
	var maxPriority sql.NullInt64

	row := s.db.QueryRowContext(ctx, "SELECT MAX(priority) FROM queue_items WHERE status = ?", StatusPending)
	if err := row.Scan(&maxPriority); err != nil {
		return errors.Wrap(err, "queue: reading max priority")
	}

	return s.setPriority(ctx, id, int(maxPriority.Int64)+1, now)
}

func (s *store) recordProgress(ctx context.Context, id int64, p DownloadProgress, now int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE queue_items SET bytes_done = ?, bytes_total = ?, updated_at = ? WHERE id = ?",
		p.BytesDone, p.BytesTotal, now, id)
	if err != nil {
		return errors.Wrap(err, "queue: recording progress")
	}

	return nil
}

func (s *store) markCompleted(ctx context.Context, id int64, result DownloadResult, now int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE queue_items SET status = ?, bytes_done = ?, bytes_total = ?, updated_at = ? WHERE id = ?",
		StatusCompleted, result.BytesWritten, result.BytesWritten, now, id)
	if err != nil {
		return errors.Wrap(err, "queue: marking item completed")
	}

	return nil
}

// markRetryOrFail applies the §4.7 retry policy: if attempts remain, the
// item returns to Pending with an incremented attempt count and a
// backoff-delayed scheduled_at; otherwise it becomes terminal Failed.
func (s *store) markRetryOrFail(ctx context.Context, id int64, reason string, nextAttempts int, scheduledAt int64, retrying bool, now int64) error {
	status := StatusFailed
	if retrying {
		status = StatusPending
	}

	_, err := s.db.ExecContext(ctx,
		"UPDATE queue_items SET status = ?, attempts = ?, scheduled_at = ?, last_error = ?, updated_at = ? WHERE id = ?",
		status, nextAttempts, scheduledAt, reason, now, id)
	if err != nil {
		return errors.Wrap(err, "queue: recording failure")
	}

	return nil
}

func (s *store) retry(ctx context.Context, id int64, now int64) error {
	item, err := s.get(ctx, id)
	if err != nil {
		return err
	}

	if item.Status != StatusFailed && item.Status != StatusCancelled {
		return apperr.New(apperr.KindInvalidInput, "retry is only valid for Failed or Cancelled items")
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE queue_items SET status = ?, scheduled_at = ?, updated_at = ? WHERE id = ?",
		StatusPending, now, now, id)
	if err != nil {
		return errors.Wrap(err, "queue: resetting item for retry")
	}

	return nil
}

func (s *store) stats(ctx context.Context) (QueueStats, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*), COALESCE(SUM(bytes_done), 0) FROM queue_items GROUP BY status")
	if err != nil {
		return QueueStats{}, errors.Wrap(err, "queue: computing stats")
	}
	defer rows.Close()

	var st QueueStats

	for rows.Next() {
		var (
			status Status
			count  int
			bytes  int64
		)

		if err := rows.Scan(&status, &count, &bytes); err != nil {
			return QueueStats{}, errors.Wrap(err, "queue: scanning stats row")
		}

		st.TotalBytesDone += bytes

		switch status {
		case StatusPending:
			st.Pending = count
		case StatusDownloading:
			st.Downloading = count
		case StatusCompleted:
			st.Completed = count
		case StatusFailed:
			st.Failed = count
		case StatusCancelled:
			st.Cancelled = count
		}
	}

	return st, rows.Err()
}

func (s *store) clearFinished(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM queue_items WHERE status IN (?, ?, ?)",
		StatusCompleted, StatusFailed, StatusCancelled)
	if err != nil {
		return errors.Wrap(err, "queue: clearing finished items")
	}

	return nil
}

func (s *store) clearAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM queue_items")
	if err != nil {
		return errors.Wrap(err, "queue: clearing all items")
	}

	return nil
}
