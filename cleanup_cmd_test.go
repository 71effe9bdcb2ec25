package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentserpoul/youtun4-sub001/internal/cleanup"
)

func TestRunCleanup_DryRunReportsWithoutDeleting(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "stale.mp3")
	require.NoError(t, os.WriteFile(stale, []byte("data"), 0o644))

	_, ctx := testCLIContext(t, nil, "")

	cmd := newCleanupCmd()
	cmd.SetContext(ctx)
	cmd.SetArgs([]string{dir, "--dry-run"})

	var out bytes.Buffer
	cmd.SetOut(&out)

	require.NoError(t, cmd.Execute())

	_, err := os.Stat(stale)
	require.NoError(t, err, "dry-run must not delete files")
	assert.Contains(t, out.String(), "Would delete")
}

func TestPrintCleanupResult_ReportsFailures(t *testing.T) {
	cmd := newCleanupCmd()

	var out bytes.Buffer
	cmd.SetOut(&out)

	result := &cleanup.Result{
		FilesDeleted: 1,
		BytesFreed:   512,
		FilesFailed:  []cleanup.FailedEntry{{Path: "locked.mp3", Reason: "permission denied"}},
	}

	printCleanupResult(cmd, result, false)

	text := out.String()
	assert.Contains(t, text, "Deleted")
	assert.Contains(t, text, "locked.mp3")
	assert.Contains(t, text, "permission denied")
}
