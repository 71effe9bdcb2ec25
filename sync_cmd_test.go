package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentserpoul/youtun4-sub001/internal/cleanup"
	"github.com/vincentserpoul/youtun4-sub001/internal/config"
	"github.com/vincentserpoul/youtun4-sub001/internal/syncengine"
	"github.com/vincentserpoul/youtun4-sub001/internal/transfer"
)

func TestResolveMountPath_FlagWins(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Device.MountRoots = []string{"/media/fallback"}

	cmd := newSyncCmd()
	require.NoError(t, cmd.Flags().Set("mount", "/media/explicit"))

	mount, err := resolveMountPath(cmd, cfg)
	require.NoError(t, err)
	assert.Equal(t, "/media/explicit", mount)
}

func TestResolveMountPath_FallsBackToConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Device.MountRoots = []string{"/media/fallback"}

	cmd := newSyncCmd()

	mount, err := resolveMountPath(cmd, cfg)
	require.NoError(t, err)
	assert.Equal(t, "/media/fallback", mount)
}

func TestResolveMountPath_ErrorsWithNothingConfigured(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Device.MountRoots = nil

	cmd := newSyncCmd()

	_, err := resolveMountPath(cmd, cfg)
	assert.Error(t, err)
}

func TestPrintSyncResult_Summarizes(t *testing.T) {
	cmd := newSyncCmd()

	var out bytes.Buffer
	cmd.SetOut(&out)

	result := &syncengine.Result{
		FinalPhase:      syncengine.PhaseCompleted,
		TotalBytes:      2048,
		AverageSpeedBps: 1024,
		PlaylistTransfers: []syncengine.PlaylistTransferResult{
			{Playlist: "road-trip", Result: transfer.Result{FilesTransferred: 3, FilesSkipped: 1}},
		},
		Cleanup: &cleanup.Result{FilesDeleted: 2, BytesFreed: 4096},
	}

	printSyncResult(cmd, result)

	text := out.String()
	assert.Contains(t, text, "Completed")
	assert.Contains(t, text, "road-trip")
	assert.Contains(t, text, "Cleanup")
}

func TestPrintSyncProgress_WithoutTransfer(t *testing.T) {
	cc, _ := testCLIContext(t, nil, "")

	// Statusf writes to stderr gated on flagQuiet; just assert it doesn't panic.
	printSyncProgress(cc, syncengine.Progress{Phase: syncengine.PhaseCapacity})
}
