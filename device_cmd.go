package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vincentserpoul/youtun4-sub001/internal/device"
)

// newDeviceCmd groups device detection and watching.
func newDeviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Detect and watch removable USB volumes",
	}

	cmd.AddCommand(newDeviceListCmd())
	cmd.AddCommand(newDeviceWatchCmd())

	return cmd
}

func newDeviceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List currently eligible removable volumes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			det := device.NewRealDetector()
			if err := det.Refresh(); err != nil {
				return fmt.Errorf("refreshing device list: %w", err)
			}

			infos, err := det.List()
			if err != nil {
				return fmt.Errorf("listing devices: %w", err)
			}

			if cc.Flags.JSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(infos)
			}

			printDeviceTable(cmd, infos)

			return nil
		},
	}
}

func printDeviceTable(cmd *cobra.Command, infos []device.Info) {
	if len(infos) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No removable volumes detected.")

		return
	}

	headers := []string{"NAME", "MOUNT", "USED", "TOTAL", "USAGE"}

	rows := make([][]string, len(infos))
	for i, info := range infos {
		rows[i] = []string{
			info.Name,
			info.MountPath,
			formatSize(int64(info.UsedBytes())),
			formatSize(int64(info.TotalBytes)),
			fmt.Sprintf("%.1f%%", info.UsagePercent()),
		}
	}

	printTable(cmd.OutOrStdout(), headers, rows)
}

func newDeviceWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream connect/disconnect events until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			pollInterval, err := pollIntervalFromConfig(cc.Holder.Config().Device.PollInterval)
			if err != nil {
				return err
			}

			det := device.NewRealDetector()
			if err := det.Refresh(); err != nil {
				return fmt.Errorf("refreshing device list: %w", err)
			}

			watcher := device.NewWatcher(det, cc.Logger).WithPollInterval(pollInterval)
			events, handle := watcher.Start()

			ctx := shutdownContext(cmd.Context(), cc.Logger)
			defer handle.Stop()

			for {
				select {
				case ev, ok := <-events:
					if !ok {
						return nil
					}

					printDeviceEvent(cmd, ev)
				case <-ctx.Done():
					return nil
				}
			}
		},
	}
}

func printDeviceEvent(cmd *cobra.Command, ev device.Event) {
	switch ev.Kind {
	case device.EventConnected:
		fmt.Fprintf(cmd.OutOrStdout(), "+ connected %s (%s)\n", ev.Device.Name, ev.Device.MountPath)
	case device.EventDisconnected:
		fmt.Fprintf(cmd.OutOrStdout(), "- disconnected %s (%s)\n", ev.Device.Name, ev.Device.MountPath)
	case device.EventRefreshed:
		fmt.Fprintf(cmd.OutOrStdout(), "= refreshed: %d volume(s)\n", len(ev.Snapshot))
	}
}

// pollIntervalFromConfig parses the configured device poll interval,
// falling back to device.DefaultPollInterval on an empty value.
func pollIntervalFromConfig(s string) (time.Duration, error) {
	if s == "" {
		return device.DefaultPollInterval, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("device.poll_interval: %w", err)
	}

	return d, nil
}
