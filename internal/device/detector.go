package device

import (
	"path/filepath"
	"sync"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/vincentserpoul/youtun4-sub001/internal/apperr"
)

// RealDetector is the production Detector, backed by gopsutil's
// cross-platform disk partition/usage APIs (the Go analogue of the
// original Rust implementation's sysinfo::Disks).
type RealDetector struct {
	mu   sync.RWMutex
	snap []Info
}

// NewRealDetector creates a RealDetector with an empty snapshot; call
// Refresh before the first List/IsConnected to populate it.
func NewRealDetector() *RealDetector {
	return &RealDetector{}
}

// Refresh replaces the internal snapshot by re-enumerating all mounted
// partitions and filtering to spec.md §4.1-eligible removable volumes.
func (d *RealDetector) Refresh() error {
	partitions, err := disk.Partitions(true)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, err, "enumerating disk partitions")
	}

	snap := make([]Info, 0, len(partitions))

	for _, p := range partitions {
		mountPath := normalizeMountPath(p.Mountpoint)

		// gopsutil does not expose a reliable cross-platform "removable"
		// flag (the underlying OS APIs disagree on semantics), so we rely
		// on the mount-path-prefix heuristic exactly as spec.md's
		// rationale anticipates: "removable-flag is unreliable across
		// OSes, hence the mount-prefix fallback."
		const removableFlag = false

		if !isEligible(mountPath, p.Fstype, removableFlag) {
			continue
		}

		usage, usageErr := disk.Usage(p.Mountpoint)
		if usageErr != nil {
			continue
		}

		snap = append(snap, Info{
			Name:            filepath.Base(p.Device),
			MountPath:       mountPath,
			TotalBytes:      usage.Total,
			AvailableBytes:  usage.Free,
			FilesystemLabel: p.Fstype,
			Removable:       removableFlag,
		})
	}

	d.mu.Lock()
	d.snap = snap
	d.mu.Unlock()

	return nil
}

// List returns the current snapshot, ordered stably (enumeration order
// from the last Refresh).
func (d *RealDetector) List() ([]Info, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Info, len(d.snap))
	copy(out, d.snap)

	return out, nil
}

// IsConnected reports whether mountPath is present in the current
// snapshot, comparing byte-exact after normalization.
func (d *RealDetector) IsConnected(mountPath string) bool {
	target := normalizeMountPath(mountPath)

	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, info := range d.snap {
		if info.MountPath == target {
			return true
		}
	}

	return false
}

// GetByMountPoint returns the Info for mountPath from the current
// snapshot, or a KindDeviceNotFound error if absent.
func (d *RealDetector) GetByMountPoint(mountPath string) (Info, error) {
	target := normalizeMountPath(mountPath)

	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, info := range d.snap {
		if info.MountPath == target {
			return info, nil
		}
	}

	return Info{}, errDeviceNotFound(mountPath)
}

var _ Detector = (*RealDetector)(nil)
