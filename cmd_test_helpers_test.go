package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/vincentserpoul/youtun4-sub001/internal/config"
	"github.com/vincentserpoul/youtun4-sub001/internal/taskrun"
)

// testCLIContext builds a CLIContext backed by cfg (or config.DefaultConfig()
// when nil) for exercising command RunE functions directly.
func testCLIContext(t *testing.T, cfg *config.AppConfig, configPath string) (*CLIContext, context.Context) {
	t.Helper()

	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	cc := &CLIContext{
		Holder: config.NewHolder(cfg, configPath),
		Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 100})),
		Flags:  Flags{},
		Tasks:  taskrun.New(),
	}

	return cc, context.WithValue(context.Background(), cliContextKey{}, cc)
}
