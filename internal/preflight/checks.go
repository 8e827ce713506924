package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

const (
	// MinDiskSpaceBytes is the free space required under the data root.
	MinDiskSpaceBytes = 100 * 1024 * 1024

	// MinFileDescriptors covers a handful of projects with open segments.
	MinFileDescriptors = 1024
)

// CheckDataRoot creates the data root if needed and writes a probe file.
func (c *Checker) CheckDataRoot() CheckResult {
	result := CheckResult{Name: "data_root", Required: true}
	root := c.cfg.DataRoot

	if err := os.MkdirAll(root, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", root, err)
		return result
	}

	probe := filepath.Join(root, ".preflight-probe")
	f, err := os.Create(probe)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(probe)

	result.Status = StatusPass
	result.Message = root
	return result
}

// CheckDiskSpace checks the free space on the data root's filesystem.
func (c *Checker) CheckDiskSpace() CheckResult {
	result := CheckResult{Name: "disk_space", Required: true}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(existingParent(c.cfg.DataRoot), &stat); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check disk space: %v", err)
		return result
	}

	available := stat.Bavail * uint64(stat.Bsize)
	result.Message = fmt.Sprintf("%s free (minimum: 100 MB)", formatBytes(available))
	if available < MinDiskSpaceBytes {
		result.Status = StatusFail
		return result
	}
	result.Status = StatusPass
	return result
}

// existingParent walks up until it finds a path that exists.
func existingParent(path string) string {
	for {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}

// CheckFileDescriptors checks the soft RLIMIT_NOFILE.
func (c *Checker) CheckFileDescriptors() CheckResult {
	result := CheckResult{Name: "file_descriptors", Required: true}

	var limit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check file descriptor limit: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("%d (minimum: %d)", limit.Cur, MinFileDescriptors)
	if limit.Cur < MinFileDescriptors {
		result.Status = StatusFail
		result.Details = "Run 'ulimit -n 10240' to increase the limit"
		return result
	}
	result.Status = StatusPass
	return result
}

// CheckProjectIndexes warns about indexed projects whose index directory
// is missing. Such projects are skipped by suggester builds.
func (c *Checker) CheckProjectIndexes() []CheckResult {
	var projects []string
	if c.cfg.ProjectsEnabled {
		projects = c.cfg.IndexedProjects()
	} else {
		projects = []string{""}
	}

	results := make([]CheckResult, 0, len(projects))
	for _, p := range projects {
		name := "index"
		if p != "" {
			name = "index:" + p
		}
		dir := c.cfg.IndexDir(p)
		result := CheckResult{Name: name, Message: dir}

		if _, err := os.Stat(dir); err != nil {
			result.Status = StatusWarn
			result.Message = "no index at " + dir
			result.Details = fmt.Sprintf("Run 'amansuggest index %s <dir>'", displayProject(p))
		} else {
			result.Status = StatusPass
		}
		results = append(results, result)
	}
	return results
}

func displayProject(p string) string {
	if p == "" {
		return "default"
	}
	return p
}

func formatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
		TB = 1024 * GB
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/TB)
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
