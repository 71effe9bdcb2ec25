package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vincentserpoul/youtun4-sub001/internal/config"
	"github.com/vincentserpoul/youtun4-sub001/internal/device"
	"github.com/vincentserpoul/youtun4-sub001/internal/playlist"
	"github.com/vincentserpoul/youtun4-sub001/internal/syncengine"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync <playlist>...",
		Short: "Sync one or more playlists onto the mounted device",
		Long: `Runs the full sync state machine: verify the device is connected,
check projected capacity, optionally clean stale files, transfer tracks,
and write a fresh integrity manifest.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSync,
	}

	cmd.Flags().String("mount", "", "device mount path (overrides --mount / device.mount_roots[0])")

	return cmd
}

func runSync(cmd *cobra.Command, playlists []string) error {
	cc := mustCLIContext(cmd.Context())
	cfg := cc.Holder.Config()

	mount, err := resolveMountPath(cmd, cfg)
	if err != nil {
		return err
	}

	chunkBytes, err := config.ParseSize(cfg.Sync.ChunkSize)
	if err != nil {
		return fmt.Errorf("sync.chunk_size: %w", err)
	}

	progressInterval, err := time.ParseDuration(cfg.Sync.ProgressMinInterval)
	if err != nil {
		return fmt.Errorf("sync.progress_min_interval: %w", err)
	}

	opts := syncengine.Options{
		CleanupEnabled:      cfg.Sync.CleanupEnabled,
		SkipExisting:        cfg.Sync.SkipExisting,
		VerifyIntegrity:     cfg.Sync.VerifyIntegrity,
		ChunkSize:           int(chunkBytes),
		ProgressMinInterval: progressInterval,
		ProtectedPatterns:   cfg.Sync.ProtectedPatterns,
		StrictCleanup:       cfg.Sync.StrictCleanup,
	}

	detector := device.NewRealDetector()
	if err := detector.Refresh(); err != nil {
		return fmt.Errorf("refreshing device list: %w", err)
	}

	manager := playlist.NewManager(cfg.Playlists.BasePath)
	orch := syncengine.New(detector, manager, cc.Logger)

	cancel := syncengine.NewCancelFlag()
	taskID := cc.Tasks.Start("sync", fmt.Sprintf("sync %v -> %s", playlists, mount), cancel.Cancel)
	defer cc.Tasks.Finish(taskID)

	ctx := shutdownContext(cmd.Context(), cc.Logger)

	result, err := orch.Sync(ctx, syncengine.Request{Playlists: playlists, DeviceMountPath: mount}, opts, cancel, func(p syncengine.Progress) {
		printSyncProgress(cc, p)
	})
	if err != nil && result == nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	if cc.Flags.JSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
	}

	printSyncResult(cmd, result)

	if !result.Success {
		return fmt.Errorf("sync finished with %d failed file(s)", result.TotalFilesFailed)
	}

	return nil
}

// resolveMountPath picks the mount path from --mount, the persistent
// --mount flag, or the first configured device.mount_roots entry.
func resolveMountPath(cmd *cobra.Command, cfg *config.AppConfig) (string, error) {
	if mount, _ := cmd.Flags().GetString("mount"); mount != "" {
		return mount, nil
	}

	if flagMountRoot != "" {
		return flagMountRoot, nil
	}

	if len(cfg.Device.MountRoots) > 0 {
		return cfg.Device.MountRoots[0], nil
	}

	return "", fmt.Errorf("no device mount path configured: pass --mount or set device.mount_roots")
}

func printSyncProgress(cc *CLIContext, p syncengine.Progress) {
	if p.Transfer != nil {
		cc.Statusf("[%s] %s: %s (%d/%d)\n", p.Phase, p.CurrentPlaylist, p.Transfer.CurrentFile, p.Transfer.CurrentIndex+1, p.Transfer.Total)

		return
	}

	cc.Statusf("[%s]\n", p.Phase)
}

func printSyncResult(cmd *cobra.Command, r *syncengine.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Phase: %s\n", r.FinalPhase)
	fmt.Fprintf(out, "Transferred: %s in %dms (%s/s)\n", formatSize(r.TotalBytes), r.DurationMs, formatSize(int64(r.AverageSpeedBps)))

	for _, pt := range r.PlaylistTransfers {
		fmt.Fprintf(out, "  %s: %d transferred, %d skipped, %d failed\n",
			pt.Playlist, pt.Result.FilesTransferred, pt.Result.FilesSkipped, len(pt.Result.FilesFailed))
	}

	if r.Cleanup != nil {
		fmt.Fprintf(out, "Cleanup: %d file(s), %s freed\n", r.Cleanup.FilesDeleted, formatSize(r.Cleanup.BytesFreed))
	}
}
