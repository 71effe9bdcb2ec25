// Package integrity implements the checksum manifest format and batch
// verification described in spec.md §4.3.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	gojson "github.com/goccy/go-json"

	"github.com/vincentserpoul/youtun4-sub001/internal/apperr"
)

// DefaultManifestFile is the well-known manifest filename stored at a
// directory's root.
const DefaultManifestFile = "checksums.json"

// ManifestVersion is the current manifest format version this package
// writes and the highest version it will read.
const ManifestVersion = 1

// DefaultChunkSize is the read chunk size used by ComputeFileChecksum.
const DefaultChunkSize = 64 * 1024

// FileChecksum is one manifest entry.
type FileChecksum struct {
	Name   string `json:"name"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// Manifest is the persisted checksum manifest for one directory.
type Manifest struct {
	Version   int                     `json:"version"`
	CreatedAt int64                   `json:"created_at"`
	Files     map[string]FileChecksum `json:"files"`
}

// wireManifest mirrors Manifest's JSON shape for decode-time version
// gating (we must inspect Version before trusting the rest of the
// payload's shape).
type wireManifest struct {
	Version   int                     `json:"version"`
	CreatedAt int64                   `json:"created_at"`
	Files     map[string]FileChecksum `json:"files"`
}

// NewManifest creates an empty manifest stamped with createdAtUnix and the
// current manifest version.
func NewManifest(createdAtUnix int64) *Manifest {
	return &Manifest{
		Version:   ManifestVersion,
		CreatedAt: createdAtUnix,
		Files:     make(map[string]FileChecksum),
	}
}

// AddFile inserts or replaces a manifest entry in memory. Persistence is
// explicit via SaveToDirectory.
func (m *Manifest) AddFile(fc FileChecksum) {
	m.Files[fc.Name] = fc
}

// RemoveFile deletes a manifest entry in memory, if present.
func (m *Manifest) RemoveFile(name string) {
	delete(m.Files, name)
}

// ComputeFileChecksum hashes path's contents with SHA-256, reading in
// chunkSize chunks (DefaultChunkSize if chunkSize <= 0), and returns the
// lowercase hex digest.
func ComputeFileChecksum(path string, chunkSize int) (string, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	f, err := os.Open(path)
	if err != nil {
		return "", apperr.Wrap(apperr.KindReadFailed, err, "opening "+path)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, chunkSize)

	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", apperr.Wrap(apperr.KindReadFailed, err, "reading "+path)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// manifestPath returns the canonical manifest file path inside dir.
func manifestPath(dir string) string {
	return filepath.Join(dir, DefaultManifestFile)
}

// SaveToDirectory writes the manifest to dir's canonical manifest file
// using a temp-file-plus-rename for atomicity (spec.md §5).
func (m *Manifest) SaveToDirectory(dir string) error {
	data, err := gojson.MarshalIndent(m, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.KindWriteFailed, err, "encoding manifest")
	}

	target := manifestPath(dir)
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:mnd // standard file perms
		return apperr.Wrap(apperr.KindWriteFailed, err, "writing manifest temp file")
	}

	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)

		return apperr.Wrap(apperr.KindRenameFailed, err, "renaming manifest into place")
	}

	return nil
}

// LoadFromDirectory reads and parses dir's canonical manifest file.
// Returns KindNotFound if absent, KindManifestCorrupt on invalid JSON, or
// KindUnsupportedManifest if the file's version exceeds ManifestVersion.
func LoadFromDirectory(dir string) (*Manifest, error) {
	data, err := os.ReadFile(manifestPath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.New(apperr.KindNotFound, "no manifest in "+dir)
		}

		return nil, apperr.Wrap(apperr.KindReadFailed, err, "reading manifest")
	}

	var wire wireManifest
	if err := gojson.Unmarshal(data, &wire); err != nil {
		return nil, apperr.Wrap(apperr.KindManifestCorrupt, err, "parsing manifest JSON")
	}

	if wire.Version > ManifestVersion {
		return nil, apperr.New(apperr.KindUnsupportedManifest,
			"manifest version is newer than this build supports")
	}

	files := wire.Files
	if files == nil {
		files = make(map[string]FileChecksum)
	}

	return &Manifest{Version: wire.Version, CreatedAt: wire.CreatedAt, Files: files}, nil
}

// HasManifest reports whether dir contains a manifest file.
func HasManifest(dir string) bool {
	_, err := os.Stat(manifestPath(dir))

	return err == nil
}
