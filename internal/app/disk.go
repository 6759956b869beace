package app

import "syscall"

// minFreeBytes is the free space below which the data root is reported
// unhealthy.
const minFreeBytes = 64 << 20

type diskStats struct {
	TotalBytes     uint64 `json:"total_bytes"`
	UsedBytes      uint64 `json:"used_bytes"`
	AvailableBytes uint64 `json:"available_bytes"`
}

func (d diskStats) low() bool { return d.AvailableBytes < minFreeBytes }

// diskUsage reports the filesystem holding path. Available counts only
// blocks usable by unprivileged processes.
func diskUsage(path string) (diskStats, bool) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return diskStats{}, false
	}
	bs := uint64(st.Bsize)
	total := st.Blocks * bs
	return diskStats{
		TotalBytes:     total,
		UsedBytes:      total - st.Bfree*bs,
		AvailableBytes: st.Bavail * bs,
	}, true
}
