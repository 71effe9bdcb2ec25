// Package playlist provides a minimal filesystem-backed PlaylistManager:
// playlists are immediate subdirectories of a configured base path. See
// spec.md §6 and its explicit non-goal scoping playlist folder conventions
// down to exactly what the transfer engine needs.
package playlist

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/vincentserpoul/youtun4-sub001/internal/apperr"
)

// audioExtensions mirrors the cleanup engine's audio-file classification
// (spec.md §4.4's audio-only mode) so both packages agree on what counts
// as a track.
var audioExtensions = map[string]bool{
	".mp3": true, ".m4a": true, ".aac": true, ".ogg": true, ".opus": true, ".flac": true, ".wav": true,
}

func isAudioFile(name string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(name))]
}

// Track is one file inside a playlist folder.
type Track struct {
	FileName  string
	Path      string
	SizeBytes int64
}

// FolderStatistics summarizes a playlist folder's contents.
type FolderStatistics struct {
	AudioFiles     int
	AudioSizeBytes int64
	OtherFiles     int
	TotalSizeBytes int64
}

// Manager implements the PlaylistManager collaborator interface (spec.md
// §6) over a directory tree: each immediate subdirectory of basePath is one
// playlist.
type Manager struct {
	basePath string
}

// NewManager creates a Manager rooted at basePath. basePath is not created
// or validated here; callers must ensure it exists before use.
func NewManager(basePath string) *Manager {
	return &Manager{basePath: basePath}
}

// BasePath returns the root directory containing playlist subfolders.
func (m *Manager) BasePath() string {
	return m.basePath
}

func (m *Manager) playlistDir(name string) string {
	return filepath.Join(m.basePath, name)
}

// ListTracks returns every regular file directly inside the named
// playlist's directory, non-recursively, in directory order.
func (m *Manager) ListTracks(name string) ([]Track, error) {
	dir := m.playlistDir(name)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.New(apperr.KindNotFound, "no playlist named "+name)
		}

		return nil, apperr.Wrap(apperr.KindReadFailed, err, "reading playlist directory "+dir)
	}

	var tracks []Track

	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}

		info, statErr := e.Info()
		if statErr != nil {
			continue
		}

		tracks = append(tracks, Track{
			FileName:  e.Name(),
			Path:      filepath.Join(dir, e.Name()),
			SizeBytes: info.Size(),
		})
	}

	return tracks, nil
}

// GetFolderStatistics summarizes a playlist folder's contents by
// audio/non-audio classification.
func (m *Manager) GetFolderStatistics(name string) (FolderStatistics, error) {
	tracks, err := m.ListTracks(name)
	if err != nil {
		return FolderStatistics{}, err
	}

	var stats FolderStatistics

	for _, t := range tracks {
		stats.TotalSizeBytes += t.SizeBytes

		if isAudioFile(t.FileName) {
			stats.AudioFiles++
			stats.AudioSizeBytes += t.SizeBytes
		} else {
			stats.OtherFiles++
		}
	}

	return stats, nil
}

// ListPlaylists returns the names of every immediate subdirectory of
// basePath.
func (m *Manager) ListPlaylists() ([]string, error) {
	entries, err := os.ReadDir(m.basePath)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindReadFailed, err, "reading playlists base path "+m.basePath)
	}

	var names []string

	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}

	return names, nil
}
