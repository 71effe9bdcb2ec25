package integrity

import (
	"os"
	"path/filepath"
	"time"

	"github.com/vincentserpoul/youtun4-sub001/internal/apperr"
)

// VerificationPhase describes what CreateManifestFromDirectory / Verify are
// currently doing, for progress reporting.
type VerificationPhase string

const (
	PhaseHashing    VerificationPhase = "hashing"
	PhaseComparing  VerificationPhase = "comparing"
	PhaseFinalizing VerificationPhase = "finalizing"
)

// Progress is emitted while scanning or verifying a directory.
type Progress struct {
	Index       int
	Total       int
	CurrentName string
	Phase       VerificationPhase
}

// ProgressFunc receives Progress updates. May be nil.
type ProgressFunc func(Progress)

// CreateManifestFromDirectory scans dir non-recursively, hashing every
// regular file, and returns a fresh Manifest (not yet saved).
func CreateManifestFromDirectory(dir string, nowUnix int64, progress ProgressFunc) (*Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindReadFailed, err, "reading directory "+dir)
	}

	var names []string

	for _, e := range entries {
		if e.Type().IsRegular() && e.Name() != DefaultManifestFile {
			names = append(names, e.Name())
		}
	}

	m := NewManifest(nowUnix)

	for i, name := range names {
		if progress != nil {
			progress(Progress{Index: i, Total: len(names), CurrentName: name, Phase: PhaseHashing})
		}

		full := filepath.Join(dir, name)

		info, statErr := os.Stat(full)
		if statErr != nil {
			return nil, apperr.Wrap(apperr.KindReadFailed, statErr, "stat "+full)
		}

		sum, hashErr := ComputeFileChecksum(full, 0)
		if hashErr != nil {
			return nil, hashErr
		}

		m.AddFile(FileChecksum{Name: name, SHA256: sum, Size: info.Size()})
	}

	if progress != nil {
		progress(Progress{Total: len(names), Phase: PhaseFinalizing})
	}

	return m, nil
}

// Options configures Verify's strictness.
type Options struct {
	CheckExtraFiles bool
	// Strict makes extras and missing entries count as failures (the
	// "Strict preset" of spec.md §4.3). Quick does size-only comparison,
	// skipping hashing entirely.
	Strict bool
	Quick  bool
}

// StrictOptions returns the "strict" preset: hash+size verification, and
// extras/missing both count as failures.
func StrictOptions() Options {
	return Options{CheckExtraFiles: true, Strict: true}
}

// QuickOptions returns the "quick" preset: size-only equality, no hashing.
func QuickOptions() Options {
	return Options{Quick: true}
}

// FailedEntry describes one manifest entry that failed verification.
type FailedEntry struct {
	Name     string
	Expected string
	Actual   string
	Reason   string
}

// Result is the outcome of a batch verification run.
type Result struct {
	Passed     int
	Failed     []FailedEntry
	ExtraFiles []string
	Missing    []string
	DurationMs int64
}

// Verify recomputes checksums for every file named in manifest and
// compares them against dir's actual contents, per the policy in
// spec.md §4.3.
func Verify(dir string, manifest *Manifest, opts Options, progress ProgressFunc) (*Result, error) {
	start := time.Now()
	result := &Result{}

	names := make([]string, 0, len(manifest.Files))
	for name := range manifest.Files {
		names = append(names, name)
	}

	for i, name := range names {
		if progress != nil {
			progress(Progress{Index: i, Total: len(names), CurrentName: name, Phase: PhaseComparing})
		}

		expected := manifest.Files[name]
		full := filepath.Join(dir, name)

		info, statErr := os.Stat(full)
		if statErr != nil {
			result.Missing = append(result.Missing, name)

			continue
		}

		if info.Size() != expected.Size {
			result.Failed = append(result.Failed, FailedEntry{
				Name: name, Expected: expected.SHA256, Reason: "size mismatch",
			})

			continue
		}

		if opts.Quick {
			result.Passed++

			continue
		}

		actual, hashErr := ComputeFileChecksum(full, 0)
		if hashErr != nil {
			result.Failed = append(result.Failed, FailedEntry{
				Name: name, Expected: expected.SHA256, Reason: "read failed: " + hashErr.Error(),
			})

			continue
		}

		if actual != expected.SHA256 {
			result.Failed = append(result.Failed, FailedEntry{
				Name: name, Expected: expected.SHA256, Actual: actual, Reason: "hash mismatch",
			})

			continue
		}

		result.Passed++
	}

	if opts.CheckExtraFiles {
		extras, err := extraFiles(dir, manifest)
		if err != nil {
			return nil, err
		}

		result.ExtraFiles = extras
	}

	if opts.Strict {
		for _, extra := range result.ExtraFiles {
			result.Failed = append(result.Failed, FailedEntry{Name: extra, Reason: "unexpected extra file (strict mode)"})
		}

		for _, missing := range result.Missing {
			result.Failed = append(result.Failed, FailedEntry{Name: missing, Reason: "missing (strict mode)"})
		}
	}

	result.DurationMs = time.Since(start).Milliseconds()

	return result, nil
}

// extraFiles lists regular files in dir not named in manifest and not the
// manifest file itself.
func extraFiles(dir string, manifest *Manifest) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindReadFailed, err, "reading directory "+dir)
	}

	var extras []string

	for _, e := range entries {
		if !e.Type().IsRegular() || e.Name() == DefaultManifestFile {
			continue
		}

		if _, ok := manifest.Files[e.Name()]; !ok {
			extras = append(extras, e.Name())
		}
	}

	return extras, nil
}
