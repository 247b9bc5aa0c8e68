//go:build linux

package proc

import (
	"fmt"

	"github.com/prometheus/procfs"

	"github.com/ja7ad/userstat/pkg/types"
)

type procLister struct {
	fs    procfs.FS
	users *userCache
}

// NewLister returns a Lister backed by the proc filesystem at
// mountPoint. An empty mountPoint selects the default /proc.
func NewLister(mountPoint string) (Lister, error) {
	if mountPoint == "" {
		mountPoint = procfs.DefaultMountPoint
	}
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("proc: open %s: %w", mountPoint, err)
	}
	return &procLister{fs: fs, users: newUserCache()}, nil
}

// List walks every visible process and reads its owner, cumulative CPU
// time and resident memory. Per-process read failures are skipped
// silently; they are the normal race of a live process table.
func (l *procLister) List() ([]ProcessSample, error) {
	procs, err := l.fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoProcTable, err)
	}

	samples := make([]ProcessSample, 0, len(procs))
	for _, p := range procs {
		stat, err := p.Stat()
		if err != nil {
			continue
		}
		status, err := p.NewStatus()
		if err != nil {
			continue
		}
		// Uid line order is real, effective, saved, fs; attribution
		// follows the real uid.
		uid := uint32(status.UIDs[0])

		samples = append(samples, ProcessSample{
			PID:           p.PID,
			UID:           uid,
			User:          l.users.Name(uid),
			CPUSeconds:    stat.CPUTime(),
			ResidentBytes: types.Bytes(stat.ResidentMemory()),
		})
	}
	return samples, nil
}
