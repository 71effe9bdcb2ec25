// Package syncengine composes the Integrity, Cleanup, and Transfer engines
// into the single cancellable sync() state machine described in
// spec.md §4.5.
package syncengine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vincentserpoul/youtun4-sub001/internal/apperr"
	"github.com/vincentserpoul/youtun4-sub001/internal/cleanup"
	"github.com/vincentserpoul/youtun4-sub001/internal/device"
	"github.com/vincentserpoul/youtun4-sub001/internal/integrity"
	"github.com/vincentserpoul/youtun4-sub001/internal/playlist"
	"github.com/vincentserpoul/youtun4-sub001/internal/transfer"
)

// Phase names one state of the sync() state machine (spec.md §4.5).
type Phase string

const (
	PhaseInit       Phase = "Init"
	PhaseVerifying  Phase = "Verifying"
	PhaseCapacity   Phase = "Capacity"
	PhaseCleanup    Phase = "Cleanup"
	PhaseTransfer   Phase = "Transfer"
	PhaseFinalizing Phase = "Finalizing"
	PhaseCompleted  Phase = "Completed"
	PhaseCancelling Phase = "Cancelling"
	PhaseCancelled  Phase = "Cancelled"
	PhaseFailed     Phase = "Failed"
)

// CapacityStatus classifies projected post-sync device usage.
type CapacityStatus string

const (
	CapacityOk       CapacityStatus = "Ok"
	CapacityWarning  CapacityStatus = "Warning"
	CapacityCritical CapacityStatus = "Critical"
)

const (
	capacityWarningThresholdPct  = 85.0
	capacityCriticalThresholdPct = 95.0
)

// DefaultProgressMinInterval matches transfer.DefaultProgressInterval and
// is used when Options.ProgressMinInterval is zero.
const DefaultProgressMinInterval = 100 * time.Millisecond

// PlaylistProvider is the subset of playlist.Manager the orchestrator
// borrows for the duration of one sync call (spec.md §3's ownership note).
type PlaylistProvider interface {
	ListTracks(name string) ([]playlist.Track, error)
	GetFolderStatistics(name string) (playlist.FolderStatistics, error)
	BasePath() string
}

// Request names what to sync and where.
type Request struct {
	Playlists       []string
	DeviceMountPath string
}

// Options configures one sync() call (spec.md's SyncOptions).
type Options struct {
	CleanupEnabled      bool
	SkipExisting        bool
	VerifyIntegrity     bool
	ChunkSize           int
	ProgressMinInterval time.Duration
	ProtectedPatterns   []string
	// StrictCleanup makes a nonzero cleanup files_failed count fail the
	// Cleanup phase (spec.md §4.5 step 3's "unless strict cleanup is
	// configured").
	StrictCleanup bool
}

// DefaultOptions is the baseline preset.
func DefaultOptions() Options {
	return Options{VerifyIntegrity: false, SkipExisting: false, CleanupEnabled: false}
}

// FastOptions trades integrity for speed: skip_existing, no verification,
// no cleanup.
func FastOptions() Options {
	return Options{SkipExisting: true, VerifyIntegrity: false, CleanupEnabled: false}
}

// ReliableOptions favors correctness over speed: always re-transfer,
// verify every file, and clean the device first.
func ReliableOptions() Options {
	return Options{SkipExisting: false, VerifyIntegrity: true, CleanupEnabled: true}
}

// PlaylistTransferResult is one playlist's outcome within a sync.
type PlaylistTransferResult struct {
	Playlist string
	Result   transfer.Result
}

// Result is the aggregate outcome of one sync() call (spec.md's SyncResult).
type Result struct {
	Success           bool
	WasCancelled      bool
	FinalPhase        Phase
	Cleanup           *cleanup.Result
	PlaylistTransfers []PlaylistTransferResult
	TotalFilesFailed  int
	TotalBytes        int64
	DurationMs        int64
	AverageSpeedBps   float64
	ErrorMessage      string
	CapacityCheck     *DeviceCapacityCheck
}

// DeviceCapacityCheck is the Capacity phase's structured result (spec.md's
// DeviceCapacityCheck), reported to the caller rather than used only to
// gate the phase internally.
type DeviceCapacityCheck struct {
	RequiredBytes     uint64
	AvailableBytes    uint64
	ProjectedUsagePct float64
	Classification    CapacityStatus
	DeficitBytes      uint64
}

// Progress wraps phase-level information plus whichever inner progress is
// currently active (spec.md's SyncProgress).
type Progress struct {
	Phase           Phase
	CurrentPlaylist string
	PlaylistIndex   int
	PlaylistTotal   int
	Transfer        *transfer.Progress
	CorrelationID   string
}

// ProgressFunc receives Progress updates, throttled to
// Options.ProgressMinInterval except for terminal events.
type ProgressFunc func(Progress)

// CancelFlag is polled between phases, between playlists, and between
// files inside the transfer engine (spec.md §4.5 step 6). A concurrency-
// safe implementation is provided by NewCancelFlag.
type CancelFlag interface {
	Cancelled() bool
}

// Flag is the production CancelFlag: a single atomic bool settable from
// any goroutine (e.g. a "cancel_sync" IPC handler).
type Flag struct {
	flag atomic.Bool
}

// NewCancelFlag creates a fresh, unset Flag.
func NewCancelFlag() *Flag {
	return &Flag{}
}

func (f *Flag) Cancel()         { f.flag.Store(true) }
func (f *Flag) Cancelled() bool { return f.flag.Load() }

var _ CancelFlag = (*Flag)(nil)

// Orchestrator composes the Cleanup, Transfer, and Integrity engines into
// spec.md §4.5's state machine.
type Orchestrator struct {
	detector device.Detector
	playlist PlaylistProvider
	logger   *slog.Logger
}

// New creates an Orchestrator borrowing detector and playlists for the
// duration of each Sync call.
func New(detector device.Detector, playlists PlaylistProvider, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{detector: detector, playlist: playlists, logger: logger}
}

func progressInterval(opts Options) time.Duration {
	if opts.ProgressMinInterval <= 0 {
		return DefaultProgressMinInterval
	}

	return opts.ProgressMinInterval
}

// Sync runs the full state machine against request/options (spec.md §4.5).
func (o *Orchestrator) Sync(ctx context.Context, request Request, opts Options, cancel CancelFlag, progress ProgressFunc) (*Result, error) {
	start := time.Now()
	correlationID := uuid.NewString()

	result := &Result{FinalPhase: PhaseInit}

	emit := newThrottledEmitter(progress, progressInterval(opts))

	emit.force(Progress{Phase: PhaseInit, CorrelationID: correlationID})

	if cancelledNow(ctx, cancel) {
		return o.cancelled(result, emit, correlationID, start)
	}

	// Verifying
	emit.force(Progress{Phase: PhaseVerifying, CorrelationID: correlationID})

	info, err := o.detector.GetByMountPoint(request.DeviceMountPath)
	if err != nil {
		return o.failed(result, PhaseVerifying, err, start)
	}

	if !o.detector.IsConnected(request.DeviceMountPath) {
		return o.failed(result, PhaseVerifying, apperr.New(apperr.KindDeviceDisconnected, "device disconnected during sync"), start)
	}

	if cancelledNow(ctx, cancel) {
		return o.cancelled(result, emit, correlationID, start)
	}

	// Capacity
	emit.force(Progress{Phase: PhaseCapacity, CorrelationID: correlationID})

	check, err := o.classifyCapacity(request, info)
	if err != nil {
		return o.failed(result, PhaseCapacity, err, start)
	}

	result.CapacityCheck = check

	if check.Classification == CapacityCritical {
		return o.failed(result, PhaseCapacity, apperr.New(apperr.KindInsufficientSpace,
			fmt.Sprintf("Insufficient space: required %d bytes, available %d bytes, deficit %d bytes",
				check.RequiredBytes, check.AvailableBytes, check.DeficitBytes)), start)
	}

	o.logger.Info("sync: capacity check passed",
		"correlation_id", correlationID, "status", check.Classification, "projected_usage_pct", check.ProjectedUsagePct)

	if cancelledNow(ctx, cancel) {
		return o.cancelled(result, emit, correlationID, start)
	}

	// Cleanup
	if opts.CleanupEnabled {
		emit.force(Progress{Phase: PhaseCleanup, CorrelationID: correlationID})

		cleanupResult, cleanupErr := cleanup.RunVerified(request.DeviceMountPath, cleanup.Options{
			ProtectedPatterns: opts.ProtectedPatterns,
			Strict:            opts.StrictCleanup,
		}, o.detector)
		if cleanupErr != nil && opts.StrictCleanup {
			return o.failed(result, PhaseCleanup, cleanupErr, start)
		}

		result.Cleanup = cleanupResult
	}

	if cancelledNow(ctx, cancel) {
		return o.cancelled(result, emit, correlationID, start)
	}

	// Transfer
	emit.force(Progress{Phase: PhaseTransfer, CorrelationID: correlationID})

	for i, name := range request.Playlists {
		if cancelledNow(ctx, cancel) {
			return o.cancelled(result, emit, correlationID, start)
		}

		tracks, err := o.playlist.ListTracks(name)
		if err != nil {
			result.PlaylistTransfers = append(result.PlaylistTransfers, PlaylistTransferResult{
				Playlist: name,
				Result:   transfer.Result{Status: transfer.StatusFailed},
			})
			result.TotalFilesFailed++

			continue
		}

		sources := make([]string, len(tracks))
		for j, t := range tracks {
			sources[j] = t.Path
		}

		dest := filepath.Join(request.DeviceMountPath, name)

		if mkErr := os.MkdirAll(dest, 0o755); mkErr != nil {
			return o.failed(result, PhaseTransfer, apperr.Wrap(apperr.KindWriteFailed, mkErr, "creating destination directory "+dest), start)
		}

		tr, transferErr := transfer.TransferFiles(ctx, sources, dest, transfer.Options{
			ChunkSize:           opts.ChunkSize,
			SkipExisting:        opts.SkipExisting,
			VerifyIntegrity:     opts.VerifyIntegrity,
			ProgressMinInterval: progressInterval(opts),
			Cancel:              func() bool { return cancel != nil && cancel.Cancelled() },
			Logger:              o.logger,
		}, func(p transfer.Progress) {
			emit.maybe(Progress{
				Phase: PhaseTransfer, CurrentPlaylist: name,
				PlaylistIndex: i, PlaylistTotal: len(request.Playlists),
				Transfer: &p, CorrelationID: correlationID,
			})
		})
		if transferErr != nil {
			return o.failed(result, PhaseTransfer, transferErr, start)
		}

		result.PlaylistTransfers = append(result.PlaylistTransfers, PlaylistTransferResult{Playlist: name, Result: *tr})
		result.TotalFilesFailed += len(tr.FilesFailed)
		result.TotalBytes += tr.BytesTransferred

		if tr.Status == transfer.StatusCancelled {
			return o.cancelled(result, emit, correlationID, start)
		}
	}

	// Finalizing
	emit.force(Progress{Phase: PhaseFinalizing, CorrelationID: correlationID})

	anySucceeded := false

	for _, pt := range result.PlaylistTransfers {
		if pt.Result.FilesTransferred > 0 || pt.Result.FilesSkipped > 0 {
			anySucceeded = true

			break
		}
	}

	if anySucceeded {
		for _, name := range request.Playlists {
			dir := filepath.Join(request.DeviceMountPath, name)

			manifest, manifestErr := integrity.CreateManifestFromDirectory(dir, nowUnix(), nil)
			if manifestErr != nil {
				o.logger.Warn("sync: failed to build manifest", "playlist", name, "error", manifestErr.Error())

				continue
			}

			if saveErr := manifest.SaveToDirectory(dir); saveErr != nil {
				o.logger.Warn("sync: failed to save manifest", "playlist", name, "error", saveErr.Error())
			}
		}
	}

	result.DurationMs = time.Since(start).Milliseconds()
	if result.DurationMs > 0 {
		result.AverageSpeedBps = float64(result.TotalBytes) / (float64(result.DurationMs) / 1000.0)
	}

	result.FinalPhase = PhaseCompleted
	result.Success = result.TotalFilesFailed == 0

	emit.force(Progress{Phase: PhaseCompleted, CorrelationID: correlationID})

	return result, nil
}

func cancelledNow(ctx context.Context, cancel CancelFlag) bool {
	return ctx.Err() != nil || (cancel != nil && cancel.Cancelled())
}

func (o *Orchestrator) cancelled(result *Result, emit *throttledEmitter, correlationID string, start time.Time) (*Result, error) {
	emit.force(Progress{Phase: PhaseCancelling, CorrelationID: correlationID})

	result.FinalPhase = PhaseCancelled
	result.WasCancelled = true
	result.Success = false
	result.DurationMs = time.Since(start).Milliseconds()

	emit.force(Progress{Phase: PhaseCancelled, CorrelationID: correlationID})

	return result, nil
}

func (o *Orchestrator) failed(result *Result, phase Phase, err error, start time.Time) (*Result, error) {
	result.FinalPhase = PhaseFailed
	result.Success = false
	result.ErrorMessage = err.Error()
	result.DurationMs = time.Since(start).Milliseconds()

	o.logger.Error("sync: phase failed", "phase", phase, "error", err.Error())

	return result, err
}

// classifyCapacity sums the byte size of every requested playlist and
// compares projected post-sync usage against info's total capacity
// (spec.md §4.5 step 2). Per the conservative-implementation choice
// documented in DESIGN.md, sizes are summed unconditionally even when
// skip_existing is set. deficit_bytes is max(0, required - available),
// matching spec.md §8 Scenario C's requirement that InsufficientSpace
// carry the deficit.
func (o *Orchestrator) classifyCapacity(request Request, info device.Info) (*DeviceCapacityCheck, error) {
	var totalNeeded uint64

	for _, name := range request.Playlists {
		stats, err := o.playlist.GetFolderStatistics(name)
		if err != nil {
			return nil, err
		}

		totalNeeded += uint64(stats.TotalSizeBytes)
	}

	check := &DeviceCapacityCheck{RequiredBytes: totalNeeded, AvailableBytes: info.AvailableBytes}

	if totalNeeded > info.AvailableBytes {
		check.DeficitBytes = totalNeeded - info.AvailableBytes
	}

	projectedUsed := info.UsedBytes() + totalNeeded

	if info.TotalBytes > 0 {
		check.ProjectedUsagePct = float64(projectedUsed) / float64(info.TotalBytes) * 100
	}

	switch {
	case check.DeficitBytes > 0, info.TotalBytes == 0, check.ProjectedUsagePct > capacityCriticalThresholdPct:
		check.Classification = CapacityCritical
	case check.ProjectedUsagePct >= capacityWarningThresholdPct:
		check.Classification = CapacityWarning
	default:
		check.Classification = CapacityOk
	}

	return check, nil
}

func nowUnix() int64 {
	return time.Now().Unix()
}

// throttledEmitter gates non-terminal progress events to at most one per
// interval (spec.md §4.5 step 7), while force always emits.
type throttledEmitter struct {
	fn       ProgressFunc
	interval time.Duration

	mu       sync.Mutex
	lastSent time.Time
}

func newThrottledEmitter(fn ProgressFunc, interval time.Duration) *throttledEmitter {
	return &throttledEmitter{fn: fn, interval: interval}
}

func (e *throttledEmitter) maybe(p Progress) {
	if e.fn == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if time.Since(e.lastSent) < e.interval {
		return
	}

	e.lastSent = time.Now()
	e.fn(p)
}

func (e *throttledEmitter) force(p Progress) {
	if e.fn == nil {
		return
	}

	e.mu.Lock()
	e.lastSent = time.Now()
	e.mu.Unlock()

	e.fn(p)
}
