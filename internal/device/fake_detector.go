package device

import "sync"

// FakeDetector is a test double implementing Detector over an
// in-memory, explicitly-set snapshot. Production code never constructs
// one; it exists so tests (in this package and consumers like
// internal/syncengine) can simulate connect/disconnect/capacity scenarios
// without touching real hardware.
type FakeDetector struct {
	mu   sync.Mutex
	snap []Info
}

// NewFakeDetector creates a FakeDetector with an initial snapshot.
func NewFakeDetector(initial ...Info) *FakeDetector {
	return &FakeDetector{snap: append([]Info(nil), initial...)}
}

// Set replaces the snapshot the fake reports on the next List/Refresh.
func (f *FakeDetector) Set(snap []Info) {
	f.mu.Lock()
	f.snap = append([]Info(nil), snap...)
	f.mu.Unlock()
}

func (f *FakeDetector) List() ([]Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Info, len(f.snap))
	copy(out, f.snap)

	return out, nil
}

func (f *FakeDetector) IsConnected(mountPath string) bool {
	target := normalizeMountPath(mountPath)

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, info := range f.snap {
		if info.MountPath == target {
			return true
		}
	}

	return false
}

func (f *FakeDetector) Refresh() error {
	return nil
}

func (f *FakeDetector) GetByMountPoint(mountPath string) (Info, error) {
	target := normalizeMountPath(mountPath)

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, info := range f.snap {
		if info.MountPath == target {
			return info, nil
		}
	}

	return Info{}, errDeviceNotFound(mountPath)
}

var _ Detector = (*FakeDetector)(nil)
