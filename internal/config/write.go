package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// configFilePermissions is the standard permission mode for config files.
// Owner read/write, group and others read-only.
const configFilePermissions = 0o644

// configDirPermissions is the standard permission mode for config directories.
const configDirPermissions = 0o755

// configTemplate is the default config file content written on first run.
// All settings are present as commented-out defaults so users can discover
// every option without reading docs. This template is written once and
// never regenerated — user modifications are preserved by subsequent
// text-level edits.
const configTemplate = `# youtun4 configuration

# ── Playlists ──
# base_path = "/home/user/Music/Playlists"

# ── Sync ──
# cleanup_enabled       = true
# skip_existing         = true
# verify_integrity      = true
# chunk_size            = "10MiB"
# progress_min_interval = "500ms"
# protected_patterns    = [".youtun4_protect"]
# strict_cleanup        = false

# ── Cleanup ──
# skip_hidden        = true
# skip_system_files  = true
# protected_patterns = [".youtun4_protect"]
# verify_deletions   = true
# audio_only         = false
# strict             = false

# ── Queue ──
# max_concurrent        = 2
# default_priority       = 0
# default_max_attempts   = 3
# retry_backoff_base_ms  = 1000
# retry_backoff_max_ms   = 60000

# ── Logging ──
# log_level  = "info"
# log_file   = ""
# log_format = "auto"

# ── Device ──
# poll_interval = "2s"
# mount_roots   = []
`

// WriteDefault creates a new config file from the default template at path.
// The write is atomic (temp file + rename) and parent directories are
// created as needed. Fails if a file already exists at path.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	return atomicWriteFile(path, []byte(configTemplate))
}

// SetKey finds a top-level key in the config file and sets its value. If
// the key already exists, its line is replaced; otherwise the key is
// appended at the end of the file.
//
// Value formatting: booleans ("true"/"false") are written without quotes;
// all other values are written as quoted strings.
func SetKey(path, key, value string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	newLine := fmt.Sprintf("%s = %s", key, formatTOMLValue(value))

	keyPrefix := key + " "
	keyPrefixEq := key + "="

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, keyPrefix) || strings.HasPrefix(trimmed, keyPrefixEq) {
			lines[i] = newLine

			return atomicWriteFile(path, []byte(strings.Join(lines, "\n")))
		}
	}

	lines = append(lines, newLine)

	return atomicWriteFile(path, []byte(strings.Join(lines, "\n")))
}

// formatTOMLValue formats a value for TOML output. Booleans are written
// bare (true/false); all other values are quoted strings.
func formatTOMLValue(value string) string {
	if value == "true" || value == "false" {
		return value
	}

	return fmt.Sprintf("%q", value)
}

// atomicWriteFile writes data to a temporary file in the same directory as
// path, then renames it to the target path. This prevents partial writes
// from corrupting the config file on crash. Parent directories are created
// as needed. Files are created with configFilePermissions (0644).
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPermissions); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tempPath := f.Name()

	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()

		return fmt.Errorf("writing temp file: %w", err)
	}

	// Flush data to disk before rename. Without fsync, a power loss after
	// rename could leave the file empty (rename is metadata-only on POSIX).
	if err := f.Sync(); err != nil {
		f.Close()

		return fmt.Errorf("syncing temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tempPath, configFilePermissions); err != nil {
		return fmt.Errorf("setting file permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	succeeded = true

	return nil
}
