package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vincentserpoul/youtun4-sub001/internal/integrity"
)

func newIntegrityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integrity",
		Short: "Build and check checksum manifests for a playlist directory",
	}

	cmd.AddCommand(newIntegrityManifestCmd())
	cmd.AddCommand(newIntegrityVerifyCmd())

	return cmd
}

func newIntegrityManifestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "manifest <dir>",
		Short: "Create and save a checksum manifest for dir",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]

			manifest, err := integrity.CreateManifestFromDirectory(dir, time.Now().Unix(), nil)
			if err != nil {
				return fmt.Errorf("building manifest: %w", err)
			}

			if err := manifest.SaveToDirectory(dir); err != nil {
				return fmt.Errorf("saving manifest: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote manifest for %d file(s) in %s\n", len(manifest.Files), dir)

			return nil
		},
	}
}

func newIntegrityVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <dir>",
		Short: "Verify dir's files against its saved manifest",
		Args:  cobra.ExactArgs(1),
		RunE:  runIntegrityVerify,
	}

	cmd.Flags().Bool("quick", false, "skip rehashing; size comparison only")

	return cmd
}

func runIntegrityVerify(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	dir := args[0]

	manifest, err := integrity.LoadFromDirectory(dir)
	if err != nil {
		return fmt.Errorf("loading manifest: %w", err)
	}

	quick, _ := cmd.Flags().GetBool("quick")

	opts := integrity.QuickOptions()
	if !quick {
		opts = integrity.StrictOptions()
	}

	result, err := integrity.Verify(dir, manifest, opts, nil)
	if err != nil {
		return fmt.Errorf("verifying: %w", err)
	}

	if cc.Flags.JSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
	}

	printIntegrityResult(cmd, result)

	return nil
}

func printIntegrityResult(cmd *cobra.Command, r *integrity.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Passed: %d, Failed: %d, Missing: %d, Extra: %d (%dms)\n",
		r.Passed, len(r.Failed), len(r.Missing), len(r.ExtraFiles), r.DurationMs)

	for _, f := range r.Failed {
		fmt.Fprintf(out, "  failed: %s (%s)\n", f.Name, f.Reason)
	}
}
