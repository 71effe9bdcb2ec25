package cleanup_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentserpoul/youtun4-sub001/internal/apperr"
	"github.com/vincentserpoul/youtun4-sub001/internal/cleanup"
	"github.com/vincentserpoul/youtun4-sub001/internal/device"
)

func mkfile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

// TestRunDeletesEligibleFiles grounds spec.md §8 Scenario E: a protected
// pattern must survive a destructive pass while ordinary files are removed.
func TestRunDeletesEligibleFiles(t *testing.T) {
	root := t.TempDir()
	mkfile(t, filepath.Join(root, "track1.mp3"), 100)
	mkfile(t, filepath.Join(root, "track2.mp3"), 200)
	mkfile(t, filepath.Join(root, "keep.m3u"), 10)

	result, err := cleanup.Run(root, cleanup.Options{ProtectedPatterns: []string{"*.m3u"}})
	require.NoError(t, err)

	assert.Equal(t, 2, result.FilesDeleted)
	assert.Equal(t, int64(300), result.BytesFreed)
	assert.Empty(t, result.FilesFailed)

	assert.NoFileExists(t, filepath.Join(root, "track1.mp3"))
	assert.NoFileExists(t, filepath.Join(root, "track2.mp3"))
	assert.FileExists(t, filepath.Join(root, "keep.m3u"))
}

func TestRunDryRunLeavesFilesystemUntouched(t *testing.T) {
	root := t.TempDir()
	mkfile(t, filepath.Join(root, "track1.mp3"), 100)

	result, err := cleanup.Preview(root, cleanup.Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesDeleted)
	assert.True(t, result.DryRun)
	assert.FileExists(t, filepath.Join(root, "track1.mp3"), "dry-run must not delete anything")
}

func TestRunSkipsHiddenFiles(t *testing.T) {
	root := t.TempDir()
	mkfile(t, filepath.Join(root, ".hidden"), 5)
	mkfile(t, filepath.Join(root, "visible.mp3"), 5)

	result, err := cleanup.Run(root, cleanup.Options{SkipHidden: true})
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesDeleted)
	assert.FileExists(t, filepath.Join(root, ".hidden"))
}

func TestRunSkipsSystemFiles(t *testing.T) {
	root := t.TempDir()
	mkfile(t, filepath.Join(root, ".DS_Store"), 1)
	mkfile(t, filepath.Join(root, "song.mp3"), 1)

	result, err := cleanup.Run(root, cleanup.Options{SkipSystemFiles: true})
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesDeleted)
	assert.FileExists(t, filepath.Join(root, ".DS_Store"))
}

func TestRunAudioOnlyModeProtectsNonAudio(t *testing.T) {
	root := t.TempDir()
	mkfile(t, filepath.Join(root, "song.flac"), 1)
	mkfile(t, filepath.Join(root, "notes.txt"), 1)

	result, err := cleanup.Run(root, cleanup.Options{AudioOnly: true})
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesDeleted)
	assert.FileExists(t, filepath.Join(root, "notes.txt"))
	assert.NoFileExists(t, filepath.Join(root, "song.flac"))
}

// TestRunRemovesEmptiedDirectories grounds the depth-first post-order
// requirement: a directory containing only deleted files is itself removed.
func TestRunRemovesEmptiedDirectories(t *testing.T) {
	root := t.TempDir()
	mkfile(t, filepath.Join(root, "album", "track1.mp3"), 1)

	result, err := cleanup.Run(root, cleanup.Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesDeleted)
	assert.Equal(t, 1, result.DirectoriesDeleted)
	assert.NoDirExists(t, filepath.Join(root, "album"))
}

// TestRunNeverDeletesProtectedAncestor grounds invariant 4-5: a directory
// holding a protected child must survive even though the pass is
// destructive, and the protected child itself must survive unmodified.
func TestRunNeverDeletesProtectedAncestor(t *testing.T) {
	root := t.TempDir()
	mkfile(t, filepath.Join(root, "album", "important.m3u"), 7)
	mkfile(t, filepath.Join(root, "album", "track1.mp3"), 1)

	result, err := cleanup.Run(root, cleanup.Options{ProtectedPatterns: []string{"**/*.m3u"}})
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesDeleted)
	assert.Equal(t, 0, result.DirectoriesDeleted, "album must survive because important.m3u still lives in it")
	assert.FileExists(t, filepath.Join(root, "album", "important.m3u"))
	assert.DirExists(t, filepath.Join(root, "album"))
}

func TestRunStrictFailsOnAnyFailure(t *testing.T) {
	root := t.TempDir()
	mkfile(t, filepath.Join(root, "locked"), 1)
	require.NoError(t, os.Chmod(root, 0o500))

	t.Cleanup(func() { _ = os.Chmod(root, 0o755) })

	result, err := cleanup.Run(root, cleanup.Options{Strict: true})
	require.Error(t, err)

	kind, ok := apperr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindWriteFailed, kind)
	assert.NotEmpty(t, result.FilesFailed)
}

func TestRunVerifiedAbortsWhenDeviceDisconnected(t *testing.T) {
	root := t.TempDir()
	mkfile(t, filepath.Join(root, "track.mp3"), 1)

	fd := device.NewFakeDetector()
	fd.Set(nil) // nothing connected at root

	_, err := cleanup.RunVerified(root, cleanup.Options{}, fd)
	require.Error(t, err)

	kind, ok := apperr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindDeviceDisconnected, kind)
	assert.FileExists(t, filepath.Join(root, "track.mp3"))
}

func TestRunVerifiedProceedsWhenConnected(t *testing.T) {
	root := t.TempDir()
	mkfile(t, filepath.Join(root, "track.mp3"), 1)

	fd := device.NewFakeDetector()
	fd.Set([]device.Info{{MountPath: root, TotalBytes: 1000}})

	result, err := cleanup.RunVerified(root, cleanup.Options{}, fd)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesDeleted)
}
