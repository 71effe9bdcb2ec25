// Package device detects removable USB volumes that look like MP3 players
// and watches for connect/disconnect transitions. See spec.md §4.1-4.2.
package device

import (
	"path/filepath"
	"strings"

	"github.com/vincentserpoul/youtun4-sub001/internal/apperr"
)

// Info is an immutable snapshot of one attached removable volume.
// New snapshots replace old ones; Info values themselves are never mutated.
type Info struct {
	Name           string
	MountPath      string
	TotalBytes     uint64
	AvailableBytes uint64
	FilesystemLabel string
	Removable      bool
}

// UsedBytes returns total-minus-available, saturating at zero so a
// transiently inconsistent total/available pair never underflows.
func (i Info) UsedBytes() uint64 {
	avail := i.AvailableBytes
	if avail > i.TotalBytes {
		avail = i.TotalBytes
	}

	return i.TotalBytes - avail
}

// UsagePercent returns 0-100 describing how full the volume is. Returns 0
// for a zero-capacity volume rather than dividing by zero.
func (i Info) UsagePercent() float64 {
	if i.TotalBytes == 0 {
		return 0
	}

	return float64(i.UsedBytes()) / float64(i.TotalBytes) * 100
}

// externalMountPrefixes are the Unix-like mount roots that indicate a
// removable volume even when the OS does not report a removable flag.
var externalMountPrefixes = []string{"/Volumes/", "/media/", "/mnt/", "/run/media/"}

// systemVolumeSubstrings and systemVolumeExact exclude obvious
// boot/recovery volumes that might otherwise slip through the mount-prefix
// heuristic.
var systemVolumeSubstrings = []string{"Recovery", "Preboot"}

var systemVolumeExact = map[string]bool{
	"/Volumes/Macintosh HD": true,
}

// fatFamilyLabels are the lowercased filesystem-label substrings MP3
// players overwhelmingly expose.
var fatFamilyLabels = []string{"fat32", "fat", "vfat", "msdosfs", "msdos", "exfat"}

// isEligible implements spec.md §4.1's three-part filter rule.
func isEligible(mountPath, filesystemLabel string, removableFlag bool) bool {
	isExternalMount := hasAnyPrefix(mountPath, externalMountPrefixes)

	if !removableFlag && !isExternalMount {
		return false
	}

	if systemVolumeExact[mountPath] {
		return false
	}

	for _, sub := range systemVolumeSubstrings {
		if strings.Contains(mountPath, sub) {
			return false
		}
	}

	label := strings.ToLower(filesystemLabel)
	for _, fam := range fatFamilyLabels {
		if strings.Contains(label, fam) {
			return true
		}
	}

	return false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}

	return false
}

// normalizeMountPath applies OS-level normalization (Clean) so mount-path
// comparisons in IsConnected are byte-exact after normalization, per
// spec.md §4.1.
func normalizeMountPath(p string) string {
	return filepath.Clean(p)
}

// Detector produces a filtered snapshot of attached removable volumes and
// answers point queries against it. Implemented as an interface solely to
// allow mock detectors in tests (spec.md §9); RealDetector is the one
// production implementation.
type Detector interface {
	List() ([]Info, error)
	IsConnected(mountPath string) bool
	Refresh() error
	GetByMountPoint(mountPath string) (Info, error)
}

// errDeviceNotFound constructs the taxonomy error for GetByMountPoint.
func errDeviceNotFound(mountPath string) error {
	return apperr.New(apperr.KindDeviceNotFound, "no device mounted at "+mountPath)
}
