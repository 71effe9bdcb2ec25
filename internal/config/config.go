// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for the USB sync tool.
package config

// AppConfig is the top-level configuration structure: defaults for every
// operation exposed by the CLI (sync, cleanup, the download queue) plus the
// ambient logging/playlist settings spec.md's "ConfigManager" collaborator
// is expected to hold (see spec.md §5's mention of a shared ConfigManager).
type AppConfig struct {
	Playlists PlaylistsConfig `toml:"playlists"`
	Sync      SyncConfig      `toml:"sync"`
	Cleanup   CleanupConfig   `toml:"cleanup"`
	Queue     QueueConfig     `toml:"queue"`
	Logging   LoggingConfig   `toml:"logging"`
	Device    DeviceConfig    `toml:"device"`
}

// PlaylistsConfig locates the filesystem-backed PlaylistManager's root.
type PlaylistsConfig struct {
	BasePath string `toml:"base_path"`
}

// SyncConfig seeds internal/syncengine.Options.
type SyncConfig struct {
	CleanupEnabled      bool     `toml:"cleanup_enabled"`
	SkipExisting        bool     `toml:"skip_existing"`
	VerifyIntegrity     bool     `toml:"verify_integrity"`
	ChunkSize           string   `toml:"chunk_size"`
	ProgressMinInterval string   `toml:"progress_min_interval"`
	ProtectedPatterns   []string `toml:"protected_patterns"`
	StrictCleanup       bool     `toml:"strict_cleanup"`
}

// CleanupConfig seeds internal/cleanup.Options for standalone cleanup
// invocations (outside a full sync).
type CleanupConfig struct {
	SkipHidden        bool     `toml:"skip_hidden"`
	SkipSystemFiles   bool     `toml:"skip_system_files"`
	ProtectedPatterns []string `toml:"protected_patterns"`
	VerifyDeletions   bool     `toml:"verify_deletions"`
	AudioOnly         bool     `toml:"audio_only"`
	Strict            bool     `toml:"strict"`
}

// QueueConfig seeds internal/queue.QueueConfig.
type QueueConfig struct {
	MaxConcurrent      int   `toml:"max_concurrent"`
	DefaultPriority    int   `toml:"default_priority"`
	DefaultMaxAttempts int   `toml:"default_max_attempts"`
	RetryBackoffBaseMs int64 `toml:"retry_backoff_base_ms"`
	RetryBackoffMaxMs  int64 `toml:"retry_backoff_max_ms"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFile   string `toml:"log_file"`
	LogFormat string `toml:"log_format"`
}

// DeviceConfig controls the device watcher's polling and mount-root
// discovery (spec.md §4.2).
type DeviceConfig struct {
	PollInterval string   `toml:"poll_interval"`
	MountRoots   []string `toml:"mount_roots"`
}
