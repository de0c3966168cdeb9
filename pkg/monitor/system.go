// Package monitor reads system telemetry straight from procfs, sysfs and
// statvfs. Readers return defaults on malformed content rather than
// failing; the HTTP layer reports what it gets.
package monitor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
)

// MemoryInfo is the /proc/meminfo snapshot in bytes.
type MemoryInfo struct {
	TotalBytes     uint64  `json:"total_bytes"`
	AvailableBytes uint64  `json:"available_bytes"`
	UsedBytes      uint64  `json:"used_bytes"`
	UsedPercent    float64 `json:"used_percent"`
	CachedBytes    uint64  `json:"cached_bytes"`
	BuffersBytes   uint64  `json:"buffers_bytes"`
}

// ReadMemoryInfo parses /proc/meminfo.
func ReadMemoryInfo() (MemoryInfo, error) {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return MemoryInfo{}, fmt.Errorf("failed to read /proc/meminfo: %w", err)
	}
	return parseMemInfo(string(data)), nil
}

func parseMemInfo(content string) MemoryInfo {
	var info MemoryInfo
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		value, _ := strconv.ParseUint(fields[1], 10, 64)
		value *= 1024 // meminfo reports KB

		switch fields[0] {
		case "MemTotal:":
			info.TotalBytes = value
		case "MemAvailable:":
			info.AvailableBytes = value
		case "Cached:":
			info.CachedBytes = value
		case "Buffers:":
			info.BuffersBytes = value
		}
	}

	if info.TotalBytes > 0 {
		info.UsedBytes = info.TotalBytes - info.AvailableBytes
		info.UsedPercent = float64(info.UsedBytes) / float64(info.TotalBytes) * 100.0
	}
	return info
}

// UptimeInfo is the /proc/uptime snapshot.
type UptimeInfo struct {
	UptimeSeconds   uint64 `json:"uptime_seconds"`
	IdleSeconds     uint64 `json:"idle_seconds"`
	UptimeFormatted string `json:"uptime_formatted"`
}

// ReadUptime parses /proc/uptime.
func ReadUptime() (UptimeInfo, error) {
	data, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return UptimeInfo{}, fmt.Errorf("failed to read /proc/uptime: %w", err)
	}

	fields := strings.Fields(strings.TrimSpace(string(data)))
	if len(fields) < 2 {
		return UptimeInfo{}, fmt.Errorf("invalid /proc/uptime format")
	}

	uptime, _ := strconv.ParseFloat(fields[0], 64)
	idle, _ := strconv.ParseFloat(fields[1], 64)

	info := UptimeInfo{
		UptimeSeconds: uint64(uptime),
		IdleSeconds:   uint64(idle),
	}
	info.UptimeFormatted = FormatUptime(info.UptimeSeconds)
	return info, nil
}

// FormatUptime renders seconds as "2天 3小时 45分钟".
func FormatUptime(seconds uint64) string {
	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60

	parts := []string{}
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%d天", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%d小时", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%d分钟", minutes))
	}
	if len(parts) == 0 || secs > 0 {
		parts = append(parts, fmt.Sprintf("%d秒", secs))
	}
	return strings.Join(parts, " ")
}

// SystemInfo is the uname snapshot.
type SystemInfo struct {
	Sysname  string `json:"sysname"`
	Nodename string `json:"nodename"`
	Release  string `json:"release"`
	Version  string `json:"version"`
	Machine  string `json:"machine"`
	FullInfo string `json:"full_info"`
}

// ReadSystemInfo calls uname.
func ReadSystemInfo() (SystemInfo, error) {
	var uts syscall.Utsname
	if err := syscall.Uname(&uts); err != nil {
		return SystemInfo{}, fmt.Errorf("uname: %w", err)
	}

	info := SystemInfo{
		Sysname:  utsString(uts.Sysname),
		Nodename: utsString(uts.Nodename),
		Release:  utsString(uts.Release),
		Version:  utsString(uts.Version),
		Machine:  utsString(uts.Machine),
	}
	info.FullInfo = fmt.Sprintf("%s %s %s %s %s",
		info.Sysname, info.Nodename, info.Release, info.Version, info.Machine)
	return info, nil
}

func utsString(field [65]int8) string {
	buf := make([]byte, 0, len(field))
	for _, c := range field {
		if c == 0 {
			break
		}
		buf = append(buf, byte(c))
	}
	return string(buf)
}

// DiskInfo is one mounted filesystem.
type DiskInfo struct {
	MountPoint     string  `json:"mount_point"`
	FsType         string  `json:"fs_type"`
	TotalBytes     uint64  `json:"total_bytes"`
	UsedBytes      uint64  `json:"used_bytes"`
	AvailableBytes uint64  `json:"available_bytes"`
	UsedPercent    float64 `json:"used_percent"`
}

// Virtual filesystems and mounts excluded from the disk listing.
var skipFsTypes = map[string]bool{
	"proc": true, "sysfs": true, "devtmpfs": true, "devpts": true,
	"cgroup": true, "cgroup2": true, "pstore": true, "bpf": true,
	"tracefs": true, "debugfs": true, "securityfs": true, "configfs": true,
	"fusectl": true, "hugetlbfs": true, "mqueue": true, "rpc_pipefs": true,
	"autofs": true, "functionfs": true,
}

var skipMounts = map[string]bool{
	"/dev": true, "/dev/pts": true, "/sys": true, "/proc": true,
	"/sys/kernel/config": true, "/dev/usb-ffs/adb": true,
}

// mountPriority ranks mount points for per-device dedup; lower wins.
func mountPriority(mount string) int {
	switch mount {
	case "/":
		return 0
	case "/home":
		return 1
	case "/mnt/userdata":
		return 2
	case "/var":
		return 3
	case "/run":
		return 4
	case "/tmp":
		return 5
	}
	if strings.HasPrefix(mount, "/mnt/") {
		return 10
	}
	if strings.HasPrefix(mount, "/var/") {
		return 15
	}
	return 20
}

// ReadDiskInfo walks /proc/mounts, deduplicates devices by priority, and
// sizes each survivor with statvfs. Partitions under 1 MB are dropped.
func ReadDiskInfo() []DiskInfo {
	data, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return []DiskInfo{}
	}

	type mountEntry struct {
		mountPoint string
		fsType     string
		priority   int
	}
	deviceMap := map[string]mountEntry{}

	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		device, mountPoint, fsType := fields[0], fields[1], fields[2]

		if skipFsTypes[fsType] || skipMounts[mountPoint] {
			continue
		}

		priority := mountPriority(mountPoint)
		if existing, ok := deviceMap[device]; ok && priority >= existing.priority {
			continue
		}
		deviceMap[device] = mountEntry{mountPoint, fsType, priority}
	}

	disks := []DiskInfo{}
	for _, entry := range deviceMap {
		var stat syscall.Statfs_t
		if err := syscall.Statfs(entry.mountPoint, &stat); err != nil {
			continue
		}

		blockSize := uint64(stat.Frsize)
		total := stat.Blocks * blockSize
		free := stat.Bfree * blockSize
		available := stat.Bavail * blockSize
		used := total - free

		if total < 1024*1024 {
			continue
		}

		disks = append(disks, DiskInfo{
			MountPoint:     entry.mountPoint,
			FsType:         entry.fsType,
			TotalBytes:     total,
			UsedBytes:      used,
			AvailableBytes: available,
			UsedPercent:    float64(used) / float64(total) * 100.0,
		})
	}

	sort.Slice(disks, func(i, j int) bool {
		pi, pj := mountPriority(disks[i].MountPoint), mountPriority(disks[j].MountPoint)
		if pi != pj {
			return pi < pj
		}
		return disks[i].MountPoint < disks[j].MountPoint
	})
	return disks
}

// ThermalZone is one /sys/class/thermal sensor.
type ThermalZone struct {
	Zone        string  `json:"zone"`
	SensorType  string  `json:"type"`
	Temperature float64 `json:"temperature"` // celsius
}

// ReadThermalZones lists every thermal zone with a readable temperature.
func ReadThermalZones() []ThermalZone {
	zones := []ThermalZone{}

	entries, err := os.ReadDir("/sys/class/thermal")
	if err != nil {
		return zones
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "thermal_zone") {
			continue
		}

		base := filepath.Join("/sys/class/thermal", name)
		tempData, err := os.ReadFile(filepath.Join(base, "temp"))
		if err != nil {
			continue
		}
		milli, err := strconv.ParseInt(strings.TrimSpace(string(tempData)), 10, 64)
		if err != nil {
			continue
		}

		sensorType := ""
		if typeData, err := os.ReadFile(filepath.Join(base, "type")); err == nil {
			sensorType = strings.TrimSpace(string(typeData))
		}

		zones = append(zones, ThermalZone{
			Zone:        name,
			SensorType:  sensorType,
			Temperature: float64(milli) / 1000.0,
		})
	}
	return zones
}
