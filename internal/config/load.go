package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file as a flat, single-pass decode,
// validates it, and returns the resulting AppConfig. Unknown keys are
// treated as fatal errors with "did you mean?" suggestions.
func Load(path string, logger *slog.Logger) (*AppConfig, error) {
	logger.Debug("loading config file", "path", path)

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	// Each flat key lands in the section struct that declares it; the
	// shared protected_patterns key is applied to both sync and cleanup.
	flat := struct {
		*PlaylistsConfig
		*SyncConfig
		*CleanupConfig
		*QueueConfig
		*LoggingConfig
		*DeviceConfig
		ProtectedPatterns []string `toml:"protected_patterns"`
	}{&cfg.Playlists, &cfg.Sync, &cfg.Cleanup, &cfg.Queue, &cfg.Logging, &cfg.Device, nil}

	md, err := toml.Decode(string(data), &flat)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if flat.ProtectedPatterns != nil {
		cfg.Sync.ProtectedPatterns = flat.ProtectedPatterns
		cfg.Cleanup.ProtectedPatterns = flat.ProtectedPatterns
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	logger.Debug("config file parsed successfully", "path", path)

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// an AppConfig populated with all default values. This supports the
// zero-config first-run experience: users can start without creating a
// config file.
func LoadOrDefault(path string, logger *slog.Logger) (*AppConfig, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Debug("config file not found, using defaults", "path", path)

		return DefaultConfig(), nil
	}

	return Load(path, logger)
}

// ResolveConfigPath determines the config file path using the three-layer
// priority: CLI flag > environment variable > platform default.
func ResolveConfigPath(env EnvOverrides, cliConfigPath string, logger *slog.Logger) string {
	cfgPath := DefaultConfigPath()
	source := "default"

	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
		source = "env"
	}

	if cliConfigPath != "" {
		cfgPath = cliConfigPath
		source = "cli"
	}

	logger.Debug("config path resolved", "path", cfgPath, "source", source)

	return cfgPath
}
