package queue

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"time"

	"github.com/vincentserpoul/youtun4-sub001/internal/apperr"
)

// NullDownloader is a Downloader that never reaches the network. It writes
// BytesToWrite zero bytes (default 1 MiB) to Destination in small
// simulated chunks, reporting progress and honoring cancellation exactly
// like a real network download would, for use in tests and demos where the
// real YouTube-backed Downloader (out of scope per spec.md §6) is absent.
type NullDownloader struct {
	// BytesToWrite is how many bytes each job writes. Zero uses 1 MiB.
	BytesToWrite int64
	// ChunkDelay is slept between simulated chunks to emit intermediate
	// progress events. Zero disables the delay (chunks are written back to
	// back).
	ChunkDelay time.Duration
}

const nullDownloaderDefaultBytes = 1 << 20

const nullDownloaderChunkSize = 64 << 10

// Download implements Downloader.
func (d NullDownloader) Download(
	ctx context.Context, req DownloadRequest, progress func(DownloadProgress), cancelled func() bool,
) (DownloadResult, error) {
	total := d.BytesToWrite
	if total <= 0 {
		total = nullDownloaderDefaultBytes
	}

	out, err := os.Create(req.Destination)
	if err != nil {
		return DownloadResult{}, apperr.Wrap(apperr.KindWriteFailed, err, "creating destination "+req.Destination)
	}
	defer out.Close()

	hasher := sha256.New()
	chunk := make([]byte, nullDownloaderChunkSize)

	var written int64

	for written < total {
		n := int64(len(chunk))
		if remaining := total - written; remaining < n {
			n = remaining
		}

		if ctx.Err() != nil || (cancelled != nil && cancelled()) {
			os.Remove(req.Destination)

			return DownloadResult{}, apperr.New(apperr.KindCancelled, "download cancelled")
		}

		if _, err := out.Write(chunk[:n]); err != nil {
			os.Remove(req.Destination)

			return DownloadResult{}, apperr.Wrap(apperr.KindWriteFailed, err, "writing "+req.Destination)
		}

		hasher.Write(chunk[:n])
		written += n

		if progress != nil {
			progress(DownloadProgress{BytesDone: written, BytesTotal: total})
		}

		if d.ChunkDelay > 0 && written < total {
			time.Sleep(d.ChunkDelay)
		}
	}

	return DownloadResult{BytesWritten: written, Checksum: hex.EncodeToString(hasher.Sum(nil))}, nil
}
