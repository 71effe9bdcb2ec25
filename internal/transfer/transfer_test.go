package transfer_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentserpoul/youtun4-sub001/internal/apperr"
	"github.com/vincentserpoul/youtun4-sub001/internal/transfer"
)

func writeSrc(t *testing.T, dir, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	return path
}

func TestTransferFilesCopiesAllSources(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()

	a := writeSrc(t, srcDir, "a.mp3", []byte("hello world"))
	b := writeSrc(t, srcDir, "b.mp3", []byte("goodbye"))

	var events []transfer.Progress
	result, err := transfer.TransferFiles(context.Background(), []string{a, b}, destDir, transfer.Options{}, func(p transfer.Progress) {
		events = append(events, p)
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.FilesTransferred)
	assert.Empty(t, result.FilesFailed)
	assert.Equal(t, transfer.StatusCompleted, result.Status)
	assert.NotEmpty(t, events)

	content, err := os.ReadFile(filepath.Join(destDir, "a.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(content))
}

func TestTransferFilesSkipExistingMatchingSize(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()

	src := writeSrc(t, srcDir, "a.mp3", []byte("content"))
	writeSrc(t, destDir, "a.mp3", []byte("content"))

	result, err := transfer.TransferFiles(context.Background(), []string{src}, destDir, transfer.Options{SkipExisting: true}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesSkipped)
	assert.Equal(t, 0, result.FilesTransferred)
}

func TestTransferFilesSkipExistingDifferentSizeRecopies(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()

	src := writeSrc(t, srcDir, "a.mp3", []byte("new content, longer"))
	writeSrc(t, destDir, "a.mp3", []byte("old"))

	result, err := transfer.TransferFiles(context.Background(), []string{src}, destDir, transfer.Options{SkipExisting: true}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesTransferred)
	assert.Equal(t, 0, result.FilesSkipped)

	content, err := os.ReadFile(filepath.Join(destDir, "a.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "new content, longer", string(content))
}

// TestTransferFilesSkipExistingVerifyIntegrityRecopiesCorruptedDestination
// grounds spec.md §4.6 step 3: skip_existing must not trust a same-size
// destination when verify_integrity is set — a content mismatch must be
// re-transferred, not skipped.
func TestTransferFilesSkipExistingVerifyIntegrityRecopiesCorruptedDestination(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()

	src := writeSrc(t, srcDir, "a.mp3", []byte("good content"))
	// Same size as the source, different bytes: a hash-only check catches
	// this where a size-only check would wrongly skip it.
	writeSrc(t, destDir, "a.mp3", []byte("bad!!content"))

	result, err := transfer.TransferFiles(context.Background(), []string{src}, destDir,
		transfer.Options{SkipExisting: true, VerifyIntegrity: true}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesTransferred)
	assert.Equal(t, 0, result.FilesSkipped)

	content, err := os.ReadFile(filepath.Join(destDir, "a.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "good content", string(content))
}

func TestTransferFilesVerifyIntegrityRecordsChecksum(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()

	src := writeSrc(t, srcDir, "a.mp3", []byte("verify me"))

	result, err := transfer.TransferFiles(context.Background(), []string{src}, destDir, transfer.Options{VerifyIntegrity: true}, nil)
	require.NoError(t, err)

	require.Len(t, result.Transferred, 1)
	assert.Len(t, result.Transferred[0].Checksum, 64)
}

func TestTransferFilesDestinationIsDirectoryFails(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()

	src := writeSrc(t, srcDir, "a.mp3", []byte("x"))
	require.NoError(t, os.Mkdir(filepath.Join(destDir, "a.mp3"), 0o755))

	result, err := transfer.TransferFiles(context.Background(), []string{src}, destDir, transfer.Options{}, nil)
	require.NoError(t, err)

	require.Len(t, result.Failed, 1)
	assert.Contains(t, result.Failed[0].Reason, "directory")
}

// TestTransferFilesOneFailureDoesNotAbortBatch grounds spec.md §4.6's
// partial-failure policy: a missing source file fails only that entry.
func TestTransferFilesOneFailureDoesNotAbortBatch(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()

	good := writeSrc(t, srcDir, "good.mp3", []byte("ok"))
	missing := filepath.Join(srcDir, "missing.mp3")

	result, err := transfer.TransferFiles(context.Background(), []string{missing, good}, destDir, transfer.Options{}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesTransferred)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, transfer.StatusPartialSuccess, result.Status)
}

func TestTransferFilesCancellationDeletesPartialOutput(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()

	src := writeSrc(t, srcDir, "a.mp3", []byte("some content to copy"))

	cancelled := false
	opts := transfer.Options{
		ChunkSize: transfer.MinChunkSize,
		Cancel:    func() bool { return cancelled },
	}

	// Cancel immediately, before any chunk is copied.
	cancelled = true

	ctx := context.Background()
	_, err := transfer.TransferFiles(ctx, []string{src}, destDir, opts, nil)
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(destDir, "a.mp3"))
}

// TestTransferFilesMidFileCancellationRecordsNoFailure grounds spec.md
// §4.6 step 5 / Scenario D: cancelling after some chunks of a file have
// already been copied must not append a FailedTransfer, only delete the
// partial and mark the batch StatusCancelled.
func TestTransferFilesMidFileCancellationRecordsNoFailure(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()

	content := make([]byte, transfer.MinChunkSize*3)
	src := writeSrc(t, srcDir, "a.mp3", content)

	var chunksRead int

	opts := transfer.Options{
		ChunkSize: transfer.MinChunkSize,
		Cancel: func() bool {
			chunksRead++

			return chunksRead > 2
		},
	}

	result, err := transfer.TransferFiles(context.Background(), []string{src}, destDir, opts, nil)
	require.NoError(t, err)

	assert.Equal(t, transfer.StatusCancelled, result.Status)
	assert.Empty(t, result.Failed)
	assert.Empty(t, result.FilesFailed)
	assert.Empty(t, result.Transferred)
	assert.Equal(t, 0, result.FilesTransferred)
	assert.Equal(t, 0, result.FilesSkipped)
	assert.NoFileExists(t, filepath.Join(destDir, "a.mp3"))
}

func TestTransferFilesContextCancellationStopsBatch(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()

	src := writeSrc(t, srcDir, "a.mp3", []byte("x"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := transfer.TransferFiles(ctx, []string{src}, destDir, transfer.Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, transfer.StatusCancelled, result.Status)
}

func TestTransferFilesStatFailedSourceRecordedAsFailure(t *testing.T) {
	destDir := t.TempDir()

	result, err := transfer.TransferFiles(context.Background(), []string{"/nonexistent/path/x.mp3"}, destDir, transfer.Options{}, nil)
	require.NoError(t, err)
	require.Len(t, result.Failed, 1)
}

func TestApperrKindsSurfaceThroughFailures(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()

	src := writeSrc(t, srcDir, "a.mp3", []byte("x"))
	require.NoError(t, os.Mkdir(filepath.Join(destDir, "blocked"), 0o755))
	blockedDest := filepath.Join(destDir, "blocked")

	// Force a write failure by making the destination directory read-only
	// after creation, so os.Create of a file inside it fails.
	require.NoError(t, os.Chmod(blockedDest, 0o500))
	t.Cleanup(func() { _ = os.Chmod(blockedDest, 0o755) })

	result, err := transfer.TransferFiles(context.Background(), []string{src}, blockedDest, transfer.Options{}, nil)
	require.NoError(t, err)
	require.Len(t, result.Failed, 1)

	assert.Contains(t, result.Failed[0].Reason, string(apperr.KindWriteFailed))
}
