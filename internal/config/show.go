package config

import (
	"fmt"
	"io"
	"strings"
)

// RenderEffective writes the resolved configuration as a human-readable
// annotated summary to w. This powers the "config show" command, giving
// users visibility into the effective values after the override chain
// (defaults -> file -> env) has been applied.
func RenderEffective(cfg *AppConfig, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration\n\n")

	renderPlaylistsSection(ew, &cfg.Playlists)
	renderSyncSection(ew, &cfg.Sync)
	renderCleanupSection(ew, &cfg.Cleanup)
	renderQueueSection(ew, &cfg.Queue)
	renderLoggingSection(ew, &cfg.Logging)
	renderDeviceSection(ew, &cfg.Device)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops, so callers can chain
// printf calls without checking each one individually.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func renderPlaylistsSection(ew *errWriter, p *PlaylistsConfig) {
	ew.printf("[playlists]\n")
	ew.printf("  base_path = %q\n", p.BasePath)
	ew.printf("\n")
}

func renderSyncSection(ew *errWriter, s *SyncConfig) {
	ew.printf("[sync]\n")
	ew.printf("  cleanup_enabled       = %t\n", s.CleanupEnabled)
	ew.printf("  skip_existing         = %t\n", s.SkipExisting)
	ew.printf("  verify_integrity      = %t\n", s.VerifyIntegrity)
	ew.printf("  chunk_size            = %q\n", s.ChunkSize)
	ew.printf("  progress_min_interval = %q\n", s.ProgressMinInterval)
	ew.printf("  strict_cleanup        = %t\n", s.StrictCleanup)

	if len(s.ProtectedPatterns) > 0 {
		ew.printf("  protected_patterns    = [%s]\n", joinQuoted(s.ProtectedPatterns))
	}

	ew.printf("\n")
}

func renderCleanupSection(ew *errWriter, c *CleanupConfig) {
	ew.printf("[cleanup]\n")
	ew.printf("  skip_hidden       = %t\n", c.SkipHidden)
	ew.printf("  skip_system_files = %t\n", c.SkipSystemFiles)
	ew.printf("  verify_deletions  = %t\n", c.VerifyDeletions)
	ew.printf("  audio_only        = %t\n", c.AudioOnly)
	ew.printf("  strict            = %t\n", c.Strict)

	if len(c.ProtectedPatterns) > 0 {
		ew.printf("  protected_patterns = [%s]\n", joinQuoted(c.ProtectedPatterns))
	}

	ew.printf("\n")
}

func renderQueueSection(ew *errWriter, q *QueueConfig) {
	ew.printf("[queue]\n")
	ew.printf("  max_concurrent        = %d\n", q.MaxConcurrent)
	ew.printf("  default_priority      = %d\n", q.DefaultPriority)
	ew.printf("  default_max_attempts  = %d\n", q.DefaultMaxAttempts)
	ew.printf("  retry_backoff_base_ms = %d\n", q.RetryBackoffBaseMs)
	ew.printf("  retry_backoff_max_ms  = %d\n", q.RetryBackoffMaxMs)
	ew.printf("\n")
}

func renderLoggingSection(ew *errWriter, l *LoggingConfig) {
	ew.printf("[logging]\n")
	ew.printf("  log_level  = %q\n", l.LogLevel)

	if l.LogFile != "" {
		ew.printf("  log_file   = %q\n", l.LogFile)
	}

	ew.printf("  log_format = %q\n", l.LogFormat)
	ew.printf("\n")
}

func renderDeviceSection(ew *errWriter, d *DeviceConfig) {
	ew.printf("[device]\n")
	ew.printf("  poll_interval = %q\n", d.PollInterval)

	if len(d.MountRoots) > 0 {
		ew.printf("  mount_roots   = [%s]\n", joinQuoted(d.MountRoots))
	}
}

// joinQuoted formats a string slice as comma-separated quoted values.
func joinQuoted(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}

	return strings.Join(quoted, ", ")
}
