package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vincentserpoul/youtun4-sub001/internal/cleanup"
	"github.com/vincentserpoul/youtun4-sub001/internal/device"
)

func newCleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup <mount-path>",
		Short: "Remove stale, non-protected files from a mounted device",
		Args:  cobra.ExactArgs(1),
		RunE:  runCleanup,
	}

	cmd.Flags().Bool("dry-run", false, "report what would be deleted without deleting")

	return cmd
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	cfg := cc.Holder.Config()
	root := args[0]

	dryRun, _ := cmd.Flags().GetBool("dry-run")

	opts := cleanup.Options{
		SkipHidden:        cfg.Cleanup.SkipHidden,
		SkipSystemFiles:   cfg.Cleanup.SkipSystemFiles,
		ProtectedPatterns: cfg.Cleanup.ProtectedPatterns,
		VerifyDeletions:   cfg.Cleanup.VerifyDeletions,
		DryRun:            dryRun,
		AudioOnly:         cfg.Cleanup.AudioOnly,
		Strict:            cfg.Cleanup.Strict,
	}

	var (
		result *cleanup.Result
		err    error
	)

	if dryRun {
		result, err = cleanup.Preview(root, opts)
	} else {
		detector := device.NewRealDetector()
		if refreshErr := detector.Refresh(); refreshErr != nil {
			return fmt.Errorf("refreshing device list: %w", refreshErr)
		}

		result, err = cleanup.RunVerified(root, opts, detector)
	}

	if err != nil && result == nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	if cc.Flags.JSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
	}

	printCleanupResult(cmd, result, dryRun)

	return err
}

func printCleanupResult(cmd *cobra.Command, r *cleanup.Result, dryRun bool) {
	out := cmd.OutOrStdout()

	verb := "Deleted"
	if dryRun {
		verb = "Would delete"
	}

	fmt.Fprintf(out, "%s %d file(s) and %d director(y/ies), freeing %s\n",
		verb, r.FilesDeleted, r.DirectoriesDeleted, formatSize(r.BytesFreed))

	for _, f := range r.FilesFailed {
		fmt.Fprintf(out, "  failed: %s (%s)\n", f.Path, f.Reason)
	}
}
