// Package transfer implements the chunked copy-with-hashing engine
// described in spec.md §4.6: stream a set of source files into a
// destination directory, verifying and throttling progress along the way.
package transfer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/vincentserpoul/youtun4-sub001/internal/apperr"
)

// DefaultChunkSize is the per-chunk read/write/hash size used when
// Options.ChunkSize is zero.
const DefaultChunkSize = 1 << 20 // 1 MiB

// MinChunkSize and MaxChunkSize bound Options.ChunkSize (spec.md §3).
const (
	MinChunkSize = 4 << 10  // 4 KiB
	MaxChunkSize = 64 << 20 // 64 MiB
)

// DefaultProgressInterval is the minimum spacing between progress events
// absent an explicit Options.ProgressMinInterval.
const DefaultProgressInterval = 100 * time.Millisecond

// Options configures one transfer_files call.
type Options struct {
	ChunkSize           int
	SkipExisting        bool
	VerifyIntegrity     bool
	ProgressMinInterval time.Duration
	// Cancel, if non-nil, is polled between chunks and between files. A
	// true value aborts the in-flight file, deleting its partial output.
	Cancel func() bool
	Logger *slog.Logger
}

func (o Options) chunkSize() int {
	switch {
	case o.ChunkSize <= 0:
		return DefaultChunkSize
	case o.ChunkSize < MinChunkSize:
		return MinChunkSize
	case o.ChunkSize > MaxChunkSize:
		return MaxChunkSize
	default:
		return o.ChunkSize
	}
}

func (o Options) progressInterval() time.Duration {
	if o.ProgressMinInterval <= 0 {
		return DefaultProgressInterval
	}

	return o.ProgressMinInterval
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}

	return o.Logger
}

// Status is the terminal outcome of a transfer_files call.
type Status string

const (
	StatusCompleted      Status = "Completed"
	StatusPartialSuccess Status = "PartialSuccess"
	StatusFailed         Status = "Failed"
	StatusCancelled      Status = "Cancelled"
)

// TransferredFile records one file successfully copied (or skipped).
type TransferredFile struct {
	Source      string
	Destination string
	SizeBytes   int64
	Checksum    string // empty unless integrity enabled or verification ran
	ElapsedMs   int64
	Skipped     bool
}

// FailedTransfer records one file that could not be copied.
type FailedTransfer struct {
	Source      string
	Destination string
	Reason      string
}

// Result is the aggregate outcome of transferring a batch of files.
type Result struct {
	FilesTransferred int
	FilesSkipped     int
	FilesFailed      []FailedTransfer
	BytesTransferred int64
	BytesTotal       int64
	DurationMs       int64
	AverageSpeedBps  float64
	Transferred      []TransferredFile
	Failed           []FailedTransfer
	Status           Status
}

// Phase describes what a TransferProgress event reports mid-file.
type Phase string

const (
	PhaseCopying    Phase = "copying"
	PhaseVerifying  Phase = "verifying"
	PhaseSkipped    Phase = "skipped"
	PhaseCancelling Phase = "cancelling"
)

// Progress is emitted during a transfer, throttled to Options.ProgressMinInterval.
type Progress struct {
	CurrentIndex      int
	Total             int
	CurrentFile       string
	BytesDoneCurrent  int64
	BytesTotalCurrent int64
	BytesDoneTotal    int64
	BytesTotalAll     int64
	Status            Phase
	ElapsedMs         int64
}

// ProgressFunc receives Progress updates. May be nil.
type ProgressFunc func(Progress)

// errOutOfSpace is a sentinel recognized by TransferFiles to abort the
// whole batch rather than record a per-file failure.
var errOutOfSpace = errors.New("no space left on destination")

// isCancelledErr reports whether err is transferOne's mid-file cancellation
// error. Per spec.md §4.6 step 5, cancellation during a file must not be
// recorded as a failure.
func isCancelledErr(err error) bool {
	kind, ok := apperr.KindOf(err)

	return ok && kind == apperr.KindCancelled
}

// TransferFiles copies each entry of sources into destinationRoot, chunk by
// chunk, hashing on the fly per spec.md §4.6.
func TransferFiles(ctx context.Context, sources []string, destinationRoot string, opts Options, progress ProgressFunc) (*Result, error) {
	start := time.Now()
	result := &Result{}

	var bytesTotalAll int64

	sizes := make([]int64, len(sources))
	statFailed := make([]bool, len(sources))

	for i, src := range sources {
		info, err := os.Stat(src)
		if err != nil {
			fe := FailedTransfer{Source: src, Reason: "stat failed: " + err.Error()}
			result.FilesFailed = append(result.FilesFailed, fe)
			result.Failed = append(result.Failed, fe)
			statFailed[i] = true

			continue
		}

		sizes[i] = info.Size()
		bytesTotalAll += info.Size()
	}

	result.BytesTotal = bytesTotalAll

	limiter := newProgressGate(opts.progressInterval())

	var bytesDoneTotal int64

	for i, src := range sources {
		if ctx.Err() != nil || (opts.Cancel != nil && opts.Cancel()) {
			result.Status = StatusCancelled

			result.DurationMs = time.Since(start).Milliseconds()

			return result, nil
		}

		if statFailed[i] {
			continue
		}

		name := filepath.Base(src)
		dest := filepath.Join(destinationRoot, name)

		if info, statErr := os.Stat(dest); statErr == nil && info.IsDir() {
			result.Failed = append(result.Failed, FailedTransfer{Source: src, Destination: dest, Reason: "destination is a directory"})

			continue
		}

		tf, failErr := transferOne(ctx, src, dest, sizes[i], i, len(sources), &bytesDoneTotal, bytesTotalAll, opts, limiter, progress)

		switch {
		case errors.Is(failErr, errOutOfSpace):
			fe := FailedTransfer{Source: src, Destination: dest, Reason: "no space left on device"}
			result.FilesFailed = append(result.FilesFailed, fe)
			result.Failed = append(result.Failed, fe)
			result.Status = StatusFailed
			result.DurationMs = time.Since(start).Milliseconds()

			return result, apperr.New(apperr.KindNoSpaceLeft, "destination ran out of space during transfer")
		case isCancelledErr(failErr):
			result.Status = StatusCancelled
			result.DurationMs = time.Since(start).Milliseconds()

			return result, nil
		case failErr != nil:
			fe := FailedTransfer{Source: src, Destination: dest, Reason: failErr.Error()}
			result.FilesFailed = append(result.FilesFailed, fe)
			result.Failed = append(result.Failed, fe)

			continue
		default:
			result.Transferred = append(result.Transferred, tf)

			if tf.Skipped {
				result.FilesSkipped++
			} else {
				result.FilesTransferred++
				result.BytesTransferred += tf.SizeBytes
			}
		}
	}

	result.DurationMs = time.Since(start).Milliseconds()

	if result.DurationMs > 0 {
		result.AverageSpeedBps = float64(result.BytesTransferred) / (float64(result.DurationMs) / 1000.0)
	}

	switch {
	case len(result.FilesFailed) == 0:
		result.Status = StatusCompleted
	case result.FilesTransferred > 0 || result.FilesSkipped > 0:
		result.Status = StatusPartialSuccess
	default:
		result.Status = StatusFailed
	}

	if progress != nil {
		progress(Progress{
			CurrentIndex: len(sources), Total: len(sources),
			BytesDoneTotal: bytesDoneTotal, BytesTotalAll: bytesTotalAll,
			Status: PhaseCopying, ElapsedMs: result.DurationMs,
		})
	}

	return result, nil
}

// progressGate throttles progress emission to at most once per interval,
// via golang.org/x/time/rate, plus always allowing the first event.
type progressGate struct {
	limiter *rate.Limiter
}

func newProgressGate(interval time.Duration) *progressGate {
	return &progressGate{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

func (g *progressGate) allow() bool {
	return g.limiter.Allow()
}

// transferOne executes the per-file algorithm of spec.md §4.6 step 1-8.
func transferOne(
	ctx context.Context, src, dest string, size int64, index, total int,
	bytesDoneTotal *int64, bytesTotalAll int64,
	opts Options, gate *progressGate, progress ProgressFunc,
) (TransferredFile, error) {
	start := time.Now()

	if opts.SkipExisting {
		if checksum, ok := checkSkipExisting(src, dest, size, opts.VerifyIntegrity); ok {
			if progress != nil {
				progress(Progress{
					CurrentIndex: index, Total: total, CurrentFile: filepath.Base(src),
					BytesDoneCurrent: size, BytesTotalCurrent: size,
					BytesDoneTotal: *bytesDoneTotal, BytesTotalAll: bytesTotalAll,
					Status: PhaseSkipped, ElapsedMs: time.Since(start).Milliseconds(),
				})
			}

			*bytesDoneTotal += size

			return TransferredFile{
				Source: src, Destination: dest, SizeBytes: size,
				Checksum: checksum, Skipped: true, ElapsedMs: time.Since(start).Milliseconds(),
			}, nil
		}
	}

	in, err := os.Open(src)
	if err != nil {
		return TransferredFile{}, apperr.Wrap(apperr.KindReadFailed, err, "opening source "+src)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return TransferredFile{}, apperr.Wrap(apperr.KindWriteFailed, err, "creating destination "+dest)
	}

	hasher := sha256.New()
	buf := make([]byte, opts.chunkSize())

	var bytesDoneCurrent int64

	for {
		cancelled := ctx.Err() != nil || (opts.Cancel != nil && opts.Cancel())
		if cancelled {
			out.Close()
			os.Remove(dest)

			if progress != nil {
				progress(Progress{
					CurrentIndex: index, Total: total, CurrentFile: filepath.Base(src),
					BytesDoneCurrent: bytesDoneCurrent, BytesTotalCurrent: size,
					BytesDoneTotal: *bytesDoneTotal, BytesTotalAll: bytesTotalAll,
					Status: PhaseCancelling, ElapsedMs: time.Since(start).Milliseconds(),
				})
			}

			return TransferredFile{}, apperr.New(apperr.KindCancelled, "transfer cancelled mid-file: "+src)
		}

		n, readErr := in.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				out.Close()
				os.Remove(dest)

				if isNoSpaceErr(writeErr) {
					return TransferredFile{}, errOutOfSpace
				}

				return TransferredFile{}, apperr.Wrap(apperr.KindWriteFailed, writeErr, "writing "+dest)
			}

			hasher.Write(buf[:n])
			bytesDoneCurrent += int64(n)
			*bytesDoneTotal += int64(n)

			if gate.allow() && progress != nil {
				progress(Progress{
					CurrentIndex: index, Total: total, CurrentFile: filepath.Base(src),
					BytesDoneCurrent: bytesDoneCurrent, BytesTotalCurrent: size,
					BytesDoneTotal: *bytesDoneTotal, BytesTotalAll: bytesTotalAll,
					Status: PhaseCopying, ElapsedMs: time.Since(start).Milliseconds(),
				})
			}
		}

		if readErr == io.EOF {
			break
		}

		if readErr != nil {
			out.Close()
			os.Remove(dest)

			return TransferredFile{}, apperr.Wrap(apperr.KindReadFailed, readErr, "reading "+src)
		}
	}

	// Best-effort fsync; a failure here is logged, never fatal.
	if syncErr := out.Sync(); syncErr != nil {
		opts.logger().Warn("fsync failed after transfer", "path", dest, "error", syncErr.Error())
	}

	if closeErr := out.Close(); closeErr != nil {
		return TransferredFile{}, apperr.Wrap(apperr.KindWriteFailed, closeErr, "closing "+dest)
	}

	checksum := hex.EncodeToString(hasher.Sum(nil))

	if opts.VerifyIntegrity {
		actual, verifyErr := hashFile(dest, opts.chunkSize())
		if verifyErr != nil {
			os.Remove(dest)

			return TransferredFile{}, apperr.Wrap(apperr.KindReadFailed, verifyErr, "re-reading "+dest+" for verification")
		}

		if actual != checksum {
			os.Remove(dest)

			return TransferredFile{}, apperr.New(apperr.KindChecksumMismatch, "checksum mismatch for "+dest)
		}
	}

	if progress != nil {
		progress(Progress{
			CurrentIndex: index, Total: total, CurrentFile: filepath.Base(src),
			BytesDoneCurrent: size, BytesTotalCurrent: size,
			BytesDoneTotal: *bytesDoneTotal, BytesTotalAll: bytesTotalAll,
			Status: PhaseCopying, ElapsedMs: time.Since(start).Milliseconds(),
		})
	}

	return TransferredFile{
		Source: src, Destination: dest, SizeBytes: size,
		Checksum: checksum, ElapsedMs: time.Since(start).Milliseconds(),
	}, nil
}

// checkSkipExisting implements spec.md §4.6 step 3: destination exists with
// matching size (and matching hash against the source, if verifyIntegrity)
// means skip. Size alone cannot catch a destination corrupted to the same
// length as its source, so under verifyIntegrity both files are hashed and
// compared.
func checkSkipExisting(src, dest string, expectedSize int64, verifyIntegrity bool) (checksum string, ok bool) {
	info, err := os.Stat(dest)
	if err != nil || info.Size() != expectedSize {
		return "", false
	}

	if !verifyIntegrity {
		return "", true
	}

	destSum, err := hashFile(dest, DefaultChunkSize)
	if err != nil {
		return "", false
	}

	srcSum, err := hashFile(src, DefaultChunkSize)
	if err != nil || srcSum != destSum {
		return "", false
	}

	return destSum, true
}

func hashFile(path string, chunkSize int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, chunkSize)

	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func isNoSpaceErr(err error) bool {
	return errors.Is(err, syscall.ENOSPC)
}
