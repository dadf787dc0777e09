package preflight

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// MinDiskSpaceBytes is the free space floor for indexing (100 MB).
const MinDiskSpaceBytes = 100 * 1024 * 1024

// MinMemoryBytes is the recommended available memory floor (1 GB).
const MinMemoryBytes = 1 * 1024 * 1024 * 1024

// MinFileDescriptors is the open-file limit floor. Each shard holds a
// SQLite handle plus an HNSW sidecar, and bulk indexing reads source
// files concurrently.
const MinFileDescriptors = 1024

// CheckDiskSpace verifies free space on the filesystem holding path.
func (c *Checker) CheckDiskSpace(path string) Result {
	r := Result{Name: "disk_space", Required: true}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		r.Status = StatusFail
		r.Message = fmt.Sprintf("cannot stat filesystem: %v", err)
		return r
	}

	free := stat.Bavail * uint64(stat.Bsize)
	r.Message = fmt.Sprintf("%s free (minimum: %s)", formatBytes(free), formatBytes(MinDiskSpaceBytes))
	if free < MinDiskSpaceBytes {
		r.Status = StatusFail
		return r
	}
	r.Status = StatusPass
	return r
}

// CheckMemory verifies available memory via /proc/meminfo. Systems
// where that is unreadable get a warning, not a failure.
func (c *Checker) CheckMemory() Result {
	r := Result{Name: "memory", Required: true}

	avail, err := readMemAvailable("/proc/meminfo")
	if err != nil {
		r.Status = StatusWarn
		r.Message = fmt.Sprintf("cannot determine available memory: %v", err)
		return r
	}

	r.Message = fmt.Sprintf("%s available (minimum: %s)", formatBytes(avail), formatBytes(MinMemoryBytes))
	if avail < MinMemoryBytes {
		r.Status = StatusFail
		r.Details = "close other applications or index with a smaller shard count"
		return r
	}
	r.Status = StatusPass
	return r
}

// CheckFileDescriptors verifies the soft open-file limit.
func (c *Checker) CheckFileDescriptors() Result {
	r := Result{Name: "file_descriptors", Required: true}

	var lim syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &lim); err != nil {
		r.Status = StatusFail
		r.Message = fmt.Sprintf("cannot read file descriptor limit: %v", err)
		return r
	}

	r.Message = fmt.Sprintf("%d (minimum: %d)", lim.Cur, MinFileDescriptors)
	if lim.Cur < MinFileDescriptors {
		r.Status = StatusFail
		r.Details = "raise the limit, e.g. 'ulimit -n 10240'"
		return r
	}
	r.Status = StatusPass
	return r
}

// readMemAvailable parses the MemAvailable line (kB) from a meminfo
// file.
func readMemAvailable(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "MemAvailable:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse MemAvailable: %w", err)
		}
		return kb * 1024, nil
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("no MemAvailable line in %s", path)
}

func formatBytes(n uint64) string {
	const (
		kb = 1 << 10
		mb = 1 << 20
		gb = 1 << 30
		tb = 1 << 40
	)
	switch {
	case n >= tb:
		return fmt.Sprintf("%.1f TB", float64(n)/tb)
	case n >= gb:
		return fmt.Sprintf("%.1f GB", float64(n)/gb)
	case n >= mb:
		return fmt.Sprintf("%.1f MB", float64(n)/mb)
	case n >= kb:
		return fmt.Sprintf("%.1f KB", float64(n)/kb)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
