package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vincentserpoul/youtun4-sub001/internal/config"
	"github.com/vincentserpoul/youtun4-sub001/internal/taskrun"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagMountRoot  string
	flagJSON       bool
	flagVerbose    bool
	flagDebug      bool
	flagQuiet      bool
)

// skipConfigAnnotation marks commands that handle config loading themselves.
const skipConfigAnnotation = "skipConfig"

// Flags snapshots the persistent flag values current when a command ran.
type Flags struct {
	ConfigPath string
	MountRoot  string
	JSON       bool
	Verbose    bool
	Debug      bool
	Quiet      bool
}

// CLIContext bundles resolved config, logger, and the process-wide task
// registry. Created once in PersistentPreRunE.
type CLIContext struct {
	Holder *config.Holder
	Logger *slog.Logger
	Flags  Flags
	Tasks  *taskrun.Registry
}

// cliContextKey is the context key for CLIContext.
type cliContextKey struct{}

// cliContextFrom extracts the CLIContext from the command's context.
func cliContextFrom(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		return nil
	}

	return cc
}

// mustCLIContext extracts the CLIContext or panics with an actionable message.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc := cliContextFrom(ctx)
	if cc == nil {
		panic("BUG: CLIContext not found in context — ensure the command " +
			"does not skip config loading (no skipConfigAnnotation) or " +
			"explicitly loads config in its RunE")
	}

	return cc
}

// taskRegistry is the process-wide task registry, created once at package
// initialization.
var taskRegistry = taskrun.New()

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "youtun4",
		Short:   "Sync music playlists onto a USB MP3 player",
		Long:    "A fast, safe CLI that syncs playlist folders onto a removable USB MP3 player, tracking integrity and pruning stale files.",
		Version: version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipConfigAnnotation] == "true" {
				return nil
			}

			return loadConfig(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagMountRoot, "mount", "", "device mount path (overrides device.mount_roots[0])")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "show detailed output")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.MarkFlagsMutuallyExclusive("verbose", "debug", "quiet")

	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newDeviceCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newCleanupCmd())
	cmd.AddCommand(newIntegrityCmd())
	cmd.AddCommand(newQueueCmd())

	return cmd
}

// loadConfig resolves the effective configuration and stores it, along with
// a request-scoped logger, in the command's context for use by subcommands.
func loadConfig(cmd *cobra.Command) error {
	logger := buildLogger(nil)

	env := config.ReadEnvOverrides()

	logger.Debug("resolving config",
		slog.String("cli_config_path", flagConfigPath),
		slog.String("env_config_path", env.ConfigPath),
	)

	path := config.ResolveConfigPath(env, flagConfigPath, logger)

	cfg, err := config.LoadOrDefault(path, logger)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cmd.Flags().Changed("mount") {
		cfg.Device.MountRoots = append([]string{flagMountRoot}, cfg.Device.MountRoots...)
	} else if env.MountRoot != "" {
		cfg.Device.MountRoots = append([]string{env.MountRoot}, cfg.Device.MountRoots...)
	}

	finalLogger := buildLogger(cfg)

	cc := &CLIContext{
		Holder: config.NewHolder(cfg, path),
		Logger: finalLogger,
		Flags: Flags{
			ConfigPath: path,
			MountRoot:  flagMountRoot,
			JSON:       flagJSON,
			Verbose:    flagVerbose,
			Debug:      flagDebug,
			Quiet:      flagQuiet,
		},
		Tasks: taskRegistry,
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))

	return nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Pass nil for pre-config bootstrap. Config-file log level and
// format provide the baseline; --verbose, --debug, and --quiet override the
// level because CLI flags always win (mutually exclusive, enforced by Cobra).
func buildLogger(cfg *config.AppConfig) *slog.Logger {
	level := slog.LevelWarn
	format := "auto"

	if cfg != nil {
		switch cfg.Logging.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}

		format = cfg.Logging.LogFormat
	}

	if flagVerbose {
		level = slog.LevelInfo
	}

	if flagDebug {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler

	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
