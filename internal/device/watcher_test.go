package device_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentserpoul/youtun4-sub001/internal/device"
)

func drainUntilRefreshed(t *testing.T, events <-chan device.Event, timeout time.Duration) []device.Event {
	t.Helper()

	var got []device.Event
	deadline := time.After(timeout)

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return got
			}

			got = append(got, ev)

			if ev.Kind == device.EventRefreshed {
				return got
			}
		case <-deadline:
			t.Fatal("timed out waiting for Refreshed event")

			return nil
		}
	}
}

func TestWatcherEmitsConnectedThenDisconnectedThenRefreshed(t *testing.T) {
	fd := device.NewFakeDetector()
	w := device.NewWatcher(fd, nil).WithPollInterval(10 * time.Millisecond)

	events, handle := w.Start()
	defer handle.Stop()

	// First tick: nothing connected yet, but a Refreshed should still fire.
	first := drainUntilRefreshed(t, events, time.Second)
	require.Len(t, first, 1)
	assert.Equal(t, device.EventRefreshed, first[0].Kind)

	// Now a device appears.
	fd.Set([]device.Info{{MountPath: "/media/usb0", TotalBytes: 1000}})

	second := drainUntilRefreshed(t, events, time.Second)
	require.GreaterOrEqual(t, len(second), 2)
	assert.Equal(t, device.EventConnected, second[0].Kind)
	assert.Equal(t, "/media/usb0", second[0].Device.MountPath)
	assert.Equal(t, device.EventRefreshed, second[len(second)-1].Kind)

	// And disappears.
	fd.Set(nil)

	third := drainUntilRefreshed(t, events, time.Second)
	require.GreaterOrEqual(t, len(third), 2)
	assert.Equal(t, device.EventDisconnected, third[0].Kind)
}

func TestWatcherStopIsIdempotentAndDrains(t *testing.T) {
	fd := device.NewFakeDetector()
	w := device.NewWatcher(fd, nil).WithPollInterval(5 * time.Millisecond)

	_, handle := w.Start()

	time.Sleep(20 * time.Millisecond)

	handle.Stop()
	handle.Stop() // must not panic or block
}
