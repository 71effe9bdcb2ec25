package device

import (
	"log/slog"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is the watcher's fixed tick interval (spec.md §4.2).
const DefaultPollInterval = 2 * time.Second

// candidateWatchRoots are the parent directories under which removable
// volumes typically appear; the fsnotify side-channel watches these so a
// mount/unmount can trigger an out-of-band refresh faster than the next
// poll tick. Purely a latency optimization — see SPEC_FULL.md §4.2.
var candidateWatchRoots = []string{"/Volumes", "/media", "/mnt", "/run/media"}

// EventKind tags the variant of a DeviceEvent.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventRefreshed
)

// Event is the tagged union spec.md §3 describes as
// Connected(DeviceInfo) | Disconnected(DeviceInfo) | Refreshed([]DeviceInfo).
// Exactly one of Device/Snapshot is meaningful, selected by Kind.
type Event struct {
	Kind     EventKind
	Device   Info   // valid when Kind is EventConnected or EventDisconnected
	Snapshot []Info // valid when Kind is EventRefreshed
}

// Handle lets a caller stop a running Watcher.
type Handle struct {
	stop chan struct{}
	done chan struct{}
}

// Stop signals the watcher to terminate and blocks until the worker has
// observed the signal and exited. Stop does not drain the event channel;
// events already buffered stay readable after the channel is closed.
// Idempotent.
func (h *Handle) Stop() {
	select {
	case <-h.stop:
		// already stopped
	default:
		close(h.stop)
	}

	<-h.done
}

// Watcher converts periodic Detector snapshots into a stream of Events.
type Watcher struct {
	detector     Detector
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewWatcher creates a Watcher over detector with the default poll
// interval. Use WithPollInterval to override for tests.
func NewWatcher(detector Detector, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{detector: detector, pollInterval: DefaultPollInterval, logger: logger}
}

// WithPollInterval overrides the tick interval (tests use a short one).
func (w *Watcher) WithPollInterval(d time.Duration) *Watcher {
	w.pollInterval = d

	return w
}

// Start launches the background worker and returns a buffered event
// channel plus a Handle to stop it. The channel is closed once the worker
// has fully exited after Stop.
func (w *Watcher) Start() (<-chan Event, *Handle) {
	events := make(chan Event, 32)
	handle := &Handle{stop: make(chan struct{}), done: make(chan struct{})}

	fsHint := make(chan struct{}, 1)
	fsWatcher, err := fsnotify.NewWatcher()
	if err == nil {
		for _, root := range candidateWatchRoots {
			_ = fsWatcher.Add(root) // best-effort; root may not exist on this OS
		}

		go func() {
			for {
				select {
				case _, ok := <-fsWatcher.Events:
					if !ok {
						return
					}

					select {
					case fsHint <- struct{}{}:
					default:
					}
				case _, ok := <-fsWatcher.Errors:
					if !ok {
						return
					}
				case <-handle.stop:
					return
				}
			}
		}()
	} else {
		w.logger.Debug("fsnotify unavailable, relying on polling only", slog.String("error", err.Error()))
	}

	go w.run(events, handle, fsHint, fsWatcher)

	return events, handle
}

func (w *Watcher) run(events chan Event, handle *Handle, fsHint <-chan struct{}, fsWatcher *fsnotify.Watcher) {
	defer close(events)

	if fsWatcher != nil {
		defer fsWatcher.Close()
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	var previous []Info

	for {
		select {
		case <-handle.stop:
			close(handle.done)

			return
		case <-ticker.C:
			previous = w.tick(events, previous)
		case <-fsHint:
			previous = w.tick(events, previous)
		}
	}
}

// tick refreshes the detector, diffs against previous, and emits events in
// the order spec.md §4.2 requires: all Connected, then all Disconnected,
// then one Refreshed. Returns the new snapshot for the next tick's diff.
func (w *Watcher) tick(events chan<- Event, previous []Info) []Info {
	if err := w.detector.Refresh(); err != nil {
		w.logger.Warn("device refresh failed", slog.String("error", err.Error()))

		return previous
	}

	current, err := w.detector.List()
	if err != nil {
		w.logger.Warn("device list failed", slog.String("error", err.Error()))

		return previous
	}

	added, removed := diff(previous, current)

	for _, info := range added {
		events <- Event{Kind: EventConnected, Device: info}
	}

	for _, info := range removed {
		events <- Event{Kind: EventDisconnected, Device: info}
	}

	// Refreshed may be coalesced under backpressure; never block on it.
	select {
	case events <- Event{Kind: EventRefreshed, Snapshot: current}:
	default:
	}

	return current
}

// diffKey identifies a device by (mount_path, total_bytes), matching
// spec.md §4.2's diff identity: a changed total_bytes at the same mount
// path is treated as a disconnect of the old identity plus a connect of
// the new one, not an in-place update.
func diffKey(i Info) [2]any {
	return [2]any{i.MountPath, i.TotalBytes}
}

func diff(previous, current []Info) (added, removed []Info) {
	prevByKey := make(map[[2]any]Info, len(previous))
	for _, i := range previous {
		prevByKey[diffKey(i)] = i
	}

	currByKey := make(map[[2]any]Info, len(current))
	for _, i := range current {
		currByKey[diffKey(i)] = i
	}

	for k, i := range currByKey {
		if _, existed := prevByKey[k]; !existed {
			added = append(added, i)
		}
	}

	for k, i := range prevByKey {
		if _, stillThere := currByKey[k]; !stillThere {
			removed = append(removed, i)
		}
	}

	sort.Slice(added, func(a, b int) bool { return added[a].MountPath < added[b].MountPath })
	sort.Slice(removed, func(a, b int) bool { return removed[a].MountPath < removed[b].MountPath })

	return added, removed
}
