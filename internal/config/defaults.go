package config

// Default values for configuration options. These represent the "layer 0"
// of the four-layer override chain and are chosen to be safe, reasonable
// starting points that work for most users without any config file.
const (
	defaultPlaylistsBasePath    = ""
	defaultChunkSize            = "10MiB"
	defaultProgressMinInterval  = "500ms"
	defaultSyncProtectedPattern = ".youtun4_protect"
	defaultQueueMaxConcurrent   = 2
	defaultQueuePriority        = 0
	defaultQueueMaxAttempts     = 3
	defaultRetryBackoffBaseMs   = 1000
	defaultRetryBackoffMaxMs    = 60_000
	defaultLogLevel             = "info"
	defaultLogFormat            = "auto"
	defaultDevicePollInterval   = "2s"
)

// DefaultConfig returns an AppConfig populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Playlists: defaultPlaylistsConfig(),
		Sync:      defaultSyncConfig(),
		Cleanup:   defaultCleanupConfig(),
		Queue:     defaultQueueConfig(),
		Logging:   defaultLoggingConfig(),
		Device:    defaultDeviceConfig(),
	}
}

func defaultPlaylistsConfig() PlaylistsConfig {
	return PlaylistsConfig{
		BasePath: defaultPlaylistsBasePath,
	}
}

func defaultSyncConfig() SyncConfig {
	return SyncConfig{
		CleanupEnabled:      true,
		SkipExisting:        true,
		VerifyIntegrity:     true,
		ChunkSize:           defaultChunkSize,
		ProgressMinInterval: defaultProgressMinInterval,
		ProtectedPatterns:   []string{defaultSyncProtectedPattern},
		StrictCleanup:       false,
	}
}

func defaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		SkipHidden:        true,
		SkipSystemFiles:   true,
		ProtectedPatterns: []string{defaultSyncProtectedPattern},
		VerifyDeletions:   true,
		AudioOnly:         false,
		Strict:            false,
	}
}

func defaultQueueConfig() QueueConfig {
	return QueueConfig{
		MaxConcurrent:      defaultQueueMaxConcurrent,
		DefaultPriority:    defaultQueuePriority,
		DefaultMaxAttempts: defaultQueueMaxAttempts,
		RetryBackoffBaseMs: defaultRetryBackoffBaseMs,
		RetryBackoffMaxMs:  defaultRetryBackoffMaxMs,
	}
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
	}
}

func defaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		PollInterval: defaultDevicePollInterval,
		MountRoots:   nil,
	}
}
