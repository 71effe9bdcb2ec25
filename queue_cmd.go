package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vincentserpoul/youtun4-sub001/internal/config"
	"github.com/vincentserpoul/youtun4-sub001/internal/queue"
)

const (
	queueDBFileName  = "queue.db"
	queuePIDFileName = "queue-run.pid"
)

// newQueueCmd groups download-queue inspection and control. There is no
// real network-backed Downloader shipped (spec.md §6 leaves that out of
// scope), so every subcommand opens the store with queue.NullDownloader,
// which is enough to exercise scheduling, persistence, and retries.
func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and control the download queue",
	}

	cmd.AddCommand(newQueueAddCmd())
	cmd.AddCommand(newQueueListCmd())
	cmd.AddCommand(newQueueCancelCmd())
	cmd.AddCommand(newQueueRemoveCmd())
	cmd.AddCommand(newQueueRetryCmd())
	cmd.AddCommand(newQueuePauseCmd())
	cmd.AddCommand(newQueueResumeCmd())
	cmd.AddCommand(newQueueStatsCmd())
	cmd.AddCommand(newQueueRunCmd())
	cmd.AddCommand(newQueueReloadCmd())

	return cmd
}

// openQueue opens the SQLite-backed store at the configured data directory.
// Callers must Close the returned Queue.
func openQueue(ctx context.Context, cc *CLIContext) (*queue.Queue, error) {
	cfg := cc.Holder.Config()
	dbPath := filepath.Join(config.DefaultDataDir(), queueDBFileName)

	qcfg := queue.QueueConfig{
		MaxConcurrent:      cfg.Queue.MaxConcurrent,
		DefaultPriority:    cfg.Queue.DefaultPriority,
		DefaultMaxAttempts: cfg.Queue.DefaultMaxAttempts,
		RetryBackoffBaseMs: cfg.Queue.RetryBackoffBaseMs,
		RetryBackoffMaxMs:  cfg.Queue.RetryBackoffMaxMs,
	}

	q, err := queue.Open(ctx, dbPath, qcfg, queue.NullDownloader{}, cc.Logger)
	if err != nil {
		return nil, fmt.Errorf("opening queue store at %s: %w", dbPath, err)
	}

	return q, nil
}

func parseQueueID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid item id %q: %w", arg, err)
	}

	return id, nil
}

func newQueueAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <url> <destination>",
		Short: "Enqueue one download job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			priority, _ := cmd.Flags().GetInt("priority")

			q, err := openQueue(cmd.Context(), cc)
			if err != nil {
				return err
			}
			defer q.Close()

			id, err := q.Add(cmd.Context(), queue.DownloadRequest{
				URL: args[0], Destination: args[1], Priority: priority,
			})
			if err != nil {
				return fmt.Errorf("enqueueing: %w", err)
			}

			statusf("Enqueued item %d\n", id)

			return nil
		},
	}

	cmd.Flags().Int("priority", 0, "scheduling priority (higher runs first)")

	return cmd
}

func newQueueListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every tracked item",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			q, err := openQueue(cmd.Context(), cc)
			if err != nil {
				return err
			}
			defer q.Close()

			items, err := q.GetAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing queue items: %w", err)
			}

			if cc.Flags.JSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(items)
			}

			printQueueTable(cmd, items)

			return nil
		},
	}
}

func printQueueTable(cmd *cobra.Command, items []queue.QueueItem) {
	if len(items) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty.")

		return
	}

	headers := []string{"ID", "STATUS", "ATTEMPTS", "DESTINATION", "PROGRESS"}

	rows := make([][]string, len(items))
	for i, it := range items {
		rows[i] = []string{
			strconv.FormatInt(it.ID, 10),
			string(it.Status),
			strconv.Itoa(it.Attempts),
			it.Request.Destination,
			fmt.Sprintf("%s / %s", formatSize(it.BytesDone), formatSize(it.BytesTotal)),
		}
	}

	printTable(cmd.OutOrStdout(), headers, rows)
}

func newQueueCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a pending or in-flight item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueIDCommand(cmd, args[0], (*queue.Queue).Cancel, "cancelled")
		},
	}
}

func newQueueRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove an item not currently downloading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueIDCommand(cmd, args[0], (*queue.Queue).Remove, "removed")
		},
	}
}

func newQueueRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Reset a failed or cancelled item back to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueIDCommand(cmd, args[0], (*queue.Queue).Retry, "queued for retry")
		},
	}
}

// runQueueIDCommand is the common shape shared by cancel/remove/retry:
// parse an id, open the store, call action, report the verb.
func runQueueIDCommand(cmd *cobra.Command, arg string, action func(*queue.Queue, context.Context, int64) error, verb string) error {
	cc := mustCLIContext(cmd.Context())

	id, err := parseQueueID(arg)
	if err != nil {
		return err
	}

	q, err := openQueue(cmd.Context(), cc)
	if err != nil {
		return err
	}
	defer q.Close()

	if err := action(q, cmd.Context(), id); err != nil {
		return fmt.Errorf("item %d: %w", id, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Item %d %s\n", id, verb)

	return nil
}

func newQueuePauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Stop new jobs from starting; in-flight jobs finish",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			q, err := openQueue(cmd.Context(), cc)
			if err != nil {
				return err
			}
			defer q.Close()

			q.Pause()
			statusf("Queue paused\n")

			return nil
		},
	}
}

func newQueueResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Allow the dispatcher to start new jobs again",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			q, err := openQueue(cmd.Context(), cc)
			if err != nil {
				return err
			}
			defer q.Close()

			q.Resume()
			statusf("Queue resumed\n")

			return nil
		},
	}
}

func newQueueStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize queue depth by status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			q, err := openQueue(cmd.Context(), cc)
			if err != nil {
				return err
			}
			defer q.Close()

			stats, err := q.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("computing stats: %w", err)
			}

			if cc.Flags.JSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(stats)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Pending: %d, Downloading: %d, Completed: %d, Failed: %d, Cancelled: %d, Total done: %s\n",
				stats.Pending, stats.Downloading, stats.Completed, stats.Failed, stats.Cancelled, formatSize(stats.TotalBytesDone))

			return nil
		},
	}
}

func newQueueRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the dispatcher and stream job events until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			// Only one dispatcher may own the queue store at a time; a second
			// "queue run" against the same data directory would race the
			// first over in-flight downloads.
			pidPath := filepath.Join(config.DefaultDataDir(), queuePIDFileName)

			releasePID, err := writePIDFile(pidPath)
			if err != nil {
				return fmt.Errorf("acquiring dispatcher lock: %w", err)
			}
			defer releasePID()

			// A shutdown already requested is handled by the loop below as a
			// clean stop, so opening the store does not depend on it.
			q, err := openQueue(context.WithoutCancel(cmd.Context()), cc)
			if err != nil {
				return err
			}
			defer q.Close()

			ctx := shutdownContext(cmd.Context(), cc.Logger)
			q.Start(ctx)

			reloadCh := make(chan os.Signal, 1)
			signal.Notify(reloadCh, syscall.SIGHUP)
			defer signal.Stop(reloadCh)

			events := q.Events()

			for {
				select {
				case ev, ok := <-events:
					if !ok {
						return nil
					}

					printQueueEvent(cmd, ev)
				case <-reloadCh:
					// queue reload sends SIGHUP to unstick a paused dispatcher
					// without restarting it and losing in-flight jobs.
					cc.Logger.Info("queue run: reload requested, resuming dispatcher")
					q.Resume()
				case <-ctx.Done():
					return nil
				}
			}
		},
	}
}

func newQueueReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Signal a running \"queue run\" dispatcher to resume",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pidPath := filepath.Join(config.DefaultDataDir(), queuePIDFileName)

			if err := sendSIGHUP(pidPath); err != nil {
				return fmt.Errorf("reloading dispatcher: %w", err)
			}

			statusf("Reload signal sent\n")

			return nil
		},
	}
}

func printQueueEvent(cmd *cobra.Command, ev queue.Event) {
	out := cmd.OutOrStdout()

	switch ev.Kind {
	case queue.EventProgress:
		fmt.Fprintf(out, "[%d] progress: %s / %s\n", ev.ID, formatSize(ev.Progress.BytesDone), formatSize(ev.Progress.BytesTotal))
	case queue.EventRetrying:
		fmt.Fprintf(out, "[%d] retrying in %dms: %s\n", ev.ID, ev.DelayMs, ev.Reason)
	case queue.EventFailed:
		fmt.Fprintf(out, "[%d] failed: %s\n", ev.ID, ev.Reason)
	default:
		fmt.Fprintf(out, "[%d] %s\n", ev.ID, ev.Kind)
	}
}
