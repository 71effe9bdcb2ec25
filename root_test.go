package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentserpoul/youtun4-sub001/internal/config"
)

// --- buildLogger tests ---

func resetFlags(t *testing.T) {
	t.Helper()

	oldV, oldD, oldQ := flagVerbose, flagDebug, flagQuiet
	t.Cleanup(func() { flagVerbose, flagDebug, flagQuiet = oldV, oldD, oldQ })
	flagVerbose, flagDebug, flagQuiet = false, false, false
}

func TestBuildLogger_Default(t *testing.T) {
	resetFlags(t)

	logger := buildLogger(nil)

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelWarn))
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelInfo))
}

func TestBuildLogger_Verbose(t *testing.T) {
	resetFlags(t)
	flagVerbose = true

	logger := buildLogger(nil)

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestBuildLogger_Debug(t *testing.T) {
	resetFlags(t)
	flagDebug = true

	logger := buildLogger(nil)

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestBuildLogger_ConfigDebug(t *testing.T) {
	resetFlags(t)

	cfg := config.DefaultConfig()
	cfg.Logging.LogLevel = "debug"

	logger := buildLogger(cfg)

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestBuildLogger_VerboseOverrides(t *testing.T) {
	resetFlags(t)
	flagVerbose = true

	cfg := config.DefaultConfig()
	cfg.Logging.LogLevel = "error"

	logger := buildLogger(cfg)

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestBuildLogger_QuietOverrides(t *testing.T) {
	resetFlags(t)
	flagQuiet = true

	logger := buildLogger(nil)

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelError))
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelWarn))
}

func TestBuildLogger_JSONFormat(t *testing.T) {
	resetFlags(t)

	cfg := config.DefaultConfig()
	cfg.Logging.LogFormat = "json"

	logger := buildLogger(cfg)
	require.NotNil(t, logger)

	_, ok := logger.Handler().(*slog.JSONHandler)
	assert.True(t, ok)
}

// --- CLIContext tests ---

func TestCliContextFrom_Missing(t *testing.T) {
	cc := cliContextFrom(context.Background())
	assert.Nil(t, cc)
}

func TestCliContextFrom_Present(t *testing.T) {
	want := &CLIContext{Logger: slog.Default()}
	ctx := context.WithValue(context.Background(), cliContextKey{}, want)

	got := cliContextFrom(ctx)
	assert.Same(t, want, got)
}

func TestMustCLIContext_PanicsWhenMissing(t *testing.T) {
	assert.Panics(t, func() {
		mustCLIContext(context.Background())
	})
}

func TestMustCLIContext_ReturnsWhenPresent(t *testing.T) {
	want := &CLIContext{Logger: slog.Default()}
	ctx := context.WithValue(context.Background(), cliContextKey{}, want)

	got := mustCLIContext(ctx)
	assert.Same(t, want, got)
}

// --- newRootCmd tests ---

func TestNewRootCmd_RegistersSubcommands(t *testing.T) {
	cmd := newRootCmd()

	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"config", "device", "sync", "cleanup", "integrity", "queue"} {
		assert.True(t, names[want], "expected subcommand %q to be registered", want)
	}
}
