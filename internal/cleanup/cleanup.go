// Package cleanup implements the protected-pattern-aware recursive device
// cleanup described in spec.md §4.4.
package cleanup

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/multierr"

	"github.com/vincentserpoul/youtun4-sub001/internal/apperr"
	"github.com/vincentserpoul/youtun4-sub001/internal/device"
)

// audioExtensions is the extension set used by "audio-only" cleanup mode.
var audioExtensions = map[string]bool{
	".mp3": true, ".m4a": true, ".aac": true, ".ogg": true, ".opus": true, ".flac": true, ".wav": true,
}

// systemFilePatterns are basename patterns treated as OS-reserved when
// SkipSystemFiles is set.
var systemFilePatterns = []string{
	"System Volume Information", ".Spotlight-*", ".Trashes", "$RECYCLE.BIN", ".DS_Store",
}

// Options configures one cleanup pass (spec.md §4.4's CleanupOptions).
type Options struct {
	SkipHidden       bool
	SkipSystemFiles  bool
	ProtectedPatterns []string
	VerifyDeletions  bool
	DryRun           bool
	MaxDepth         int // 0 = unlimited
	AudioOnly        bool
	// Strict makes any nonzero FilesFailed fail the whole pass (an
	// implementation option spec.md leaves open — see DESIGN.md Open
	// Question 2).
	Strict bool
}

// EntryKind distinguishes files from directories in the walk.
type EntryKind int

const (
	KindFile EntryKind = iota
	KindDirectory
)

// Entry is one walked filesystem node, classified but not yet acted on.
type Entry struct {
	Path            string
	Kind            EntryKind
	SizeBytes       int64
	ProtectedReason string // empty iff eligible for deletion
}

// Protected reports whether the entry was classified as protected.
func (e Entry) Protected() bool {
	return e.ProtectedReason != ""
}

// FailedEntry records one deletion failure.
type FailedEntry struct {
	Path   string
	Reason string
}

// Result is the outcome of one cleanup pass (spec.md §3's CleanupResult).
type Result struct {
	FilesDeleted      int
	DirectoriesDeleted int
	BytesFreed        int64
	FilesFailed       []FailedEntry
	DryRun            bool
	ElapsedMs         int64
}

// classify determines whether relPath/basename is protected under opts.
// relPath is slash-separated, relative to the cleanup root, for glob
// matching against ProtectedPatterns.
func classify(relPath string, isDir bool, opts Options) (protectedReason string) {
	base := filepath.Base(relPath)

	if opts.SkipHidden && strings.HasPrefix(base, ".") {
		return "hidden"
	}

	if opts.SkipSystemFiles {
		for _, pat := range systemFilePatterns {
			if ok, _ := filepath.Match(pat, base); ok {
				return "system file"
			}
		}
	}

	for _, pat := range opts.ProtectedPatterns {
		if ok, _ := doublestar.Match(pat, relPath); ok {
			return "protected pattern: " + pat
		}
	}

	if !isDir && opts.AudioOnly && !isAudioFile(base) {
		return "not an audio file"
	}

	return ""
}

func isAudioFile(name string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(name))]
}

// walk performs the depth-first post-order traversal spec.md §4.4 requires
// (deepest files first, so directories are removed only after emptying),
// classifying every entry. A directory with any non-protected descendant
// still surviving is itself left eligible only once it is actually empty —
// callers delete in the returned order and stop deleting a directory's
// parent if the directory's own deletion failed.
func walk(root string, opts Options) ([]Entry, error) {
	var entries []Entry

	var recurse func(dir string, relDir string, depth int) error

	recurse = func(dir string, relDir string, depth int) error {
		if opts.MaxDepth > 0 && depth > opts.MaxDepth {
			return nil
		}

		items, err := os.ReadDir(dir)
		if err != nil {
			return apperr.Wrap(apperr.KindReadFailed, err, "reading "+dir)
		}

		var subdirs []os.DirEntry

		for _, item := range items {
			rel := item.Name()
			if relDir != "" {
				rel = relDir + "/" + item.Name()
			}

			full := filepath.Join(dir, item.Name())

			if item.IsDir() {
				subdirs = append(subdirs, item)

				continue
			}

			info, statErr := item.Info()
			var size int64
			if statErr == nil {
				size = info.Size()
			}

			reason := classify(rel, false, opts)
			entries = append(entries, Entry{Path: full, Kind: KindFile, SizeBytes: size, ProtectedReason: reason})
		}

		for _, sd := range subdirs {
			rel := sd.Name()
			if relDir != "" {
				rel = relDir + "/" + sd.Name()
			}

			full := filepath.Join(dir, sd.Name())

			if err := recurse(full, rel, depth+1); err != nil {
				return err
			}

			reason := classify(rel, true, opts)
			entries = append(entries, Entry{Path: full, Kind: KindDirectory, ProtectedReason: reason})
		}

		return nil
	}

	if err := recurse(root, "", 1); err != nil {
		return nil, err
	}

	return entries, nil
}

// Run executes one cleanup pass over root. If opts.DryRun, no filesystem
// mutation occurs and counters report what would have been deleted.
func Run(root string, opts Options) (*Result, error) {
	start := time.Now()

	entries, err := walk(root, opts)
	if err != nil {
		return nil, err
	}

	result := &Result{DryRun: opts.DryRun}

	var errs error

	// A directory whose removal fails because it is not empty (e.g. a
	// protected child remains) is skipped below and never counted as deleted.
	for _, e := range entries {
		if e.Protected() {
			continue
		}

		if opts.DryRun {
			if e.Kind == KindFile {
				result.FilesDeleted++
				result.BytesFreed += e.SizeBytes
			} else {
				result.DirectoriesDeleted++
			}

			continue
		}

		removeErr := os.Remove(e.Path)
		if removeErr != nil {
			if e.Kind == KindDirectory && isNotEmptyErr(removeErr) {
				// Expected when a directory still has protected children;
				// not a failure worth recording.
				continue
			}

			result.FilesFailed = append(result.FilesFailed, FailedEntry{Path: e.Path, Reason: removeErr.Error()})
			errs = multierr.Append(errs, removeErr)

			continue
		}

		if opts.VerifyDeletions {
			if _, statErr := os.Stat(e.Path); statErr == nil {
				result.FilesFailed = append(result.FilesFailed, FailedEntry{Path: e.Path, Reason: "path still exists after deletion"})

				continue
			}
		}

		if e.Kind == KindFile {
			result.FilesDeleted++
			result.BytesFreed += e.SizeBytes
		} else {
			result.DirectoriesDeleted++
		}
	}

	result.ElapsedMs = time.Since(start).Milliseconds()

	if opts.Strict && len(result.FilesFailed) > 0 {
		return result, apperr.Wrap(apperr.KindWriteFailed, errs, "cleanup had failures under strict mode")
	}

	return result, nil
}

func isNotEmptyErr(err error) bool {
	return strings.Contains(err.Error(), "directory not empty") || strings.Contains(err.Error(), "not empty")
}

// RunVerified performs the same pass as Run but first confirms the device
// is still connected and accessible via detector, aborting with
// KindDeviceDisconnected otherwise (spec.md §4.4 "verified cleanup").
func RunVerified(root string, opts Options, detector device.Detector) (*Result, error) {
	if !detector.IsConnected(root) {
		return nil, apperr.New(apperr.KindDeviceDisconnected, "device at "+root+" is no longer connected")
	}

	return Run(root, opts)
}

// Preview runs a dry-run pass, a convenience wrapper used by the CLI and
// orchestrator to show what would be deleted without mutating anything.
func Preview(root string, opts Options) (*Result, error) {
	opts.DryRun = true

	return Run(root, opts)
}
