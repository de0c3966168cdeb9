package monitor

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// CpuLoadInfo is the loadavg snapshot plus a sampled usage percentage.
type CpuLoadInfo struct {
	Load1Min    float64 `json:"load_1min"`
	Load5Min    float64 `json:"load_5min"`
	Load15Min   float64 `json:"load_15min"`
	CoreCount   uint32  `json:"core_count"`
	LoadPercent float64 `json:"load_percent"`
}

// ReadCpuLoad parses /proc/loadavg; LoadPercent is filled separately by
// SampleCpuUsage.
func ReadCpuLoad() (CpuLoadInfo, error) {
	data, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return CpuLoadInfo{}, fmt.Errorf("failed to read /proc/loadavg: %w", err)
	}

	fields := strings.Fields(string(data))
	info := CpuLoadInfo{CoreCount: uint32(runtime.NumCPU())}
	if len(fields) > 0 {
		info.Load1Min, _ = strconv.ParseFloat(fields[0], 64)
	}
	if len(fields) > 1 {
		info.Load5Min, _ = strconv.ParseFloat(fields[1], 64)
	}
	if len(fields) > 2 {
		info.Load15Min, _ = strconv.ParseFloat(fields[2], 64)
	}
	return info, nil
}

// parseCpuStat extracts (total, idle) jiffies from /proc/stat content.
func parseCpuStat(content string) (uint64, uint64, error) {
	for _, line := range strings.Split(content, "\n") {
		if !strings.HasPrefix(line, "cpu ") {
			continue
		}
		fields := strings.Fields(line)[1:]
		values := make([]uint64, 0, len(fields))
		for _, f := range fields {
			n, err := strconv.ParseUint(f, 10, 64)
			if err != nil {
				continue
			}
			values = append(values, n)
		}
		if len(values) < 4 {
			break
		}

		at := func(i int) uint64 {
			if i < len(values) {
				return values[i]
			}
			return 0
		}
		total := at(0) + at(1) + at(2) + at(3) + at(4) + at(5) + at(6) + at(7)
		idle := at(3) + at(4)
		return total, idle, nil
	}
	return 0, 0, fmt.Errorf("failed to parse /proc/stat")
}

func readCpuStat() (uint64, uint64, error) {
	data, err := os.ReadFile("/proc/stat")
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read /proc/stat: %w", err)
	}
	return parseCpuStat(string(data))
}

// SampleCpuUsage measures CPU usage over a short two-sample window and
// returns a 0..100 percentage.
func SampleCpuUsage() (float64, error) {
	total1, idle1, err := readCpuStat()
	if err != nil {
		return 0, err
	}

	time.Sleep(200 * time.Millisecond)

	total2, idle2, err := readCpuStat()
	if err != nil {
		return 0, err
	}

	totalDiff := total2 - total1
	idleDiff := idle2 - idle1
	if totalDiff == 0 {
		return 0, nil
	}

	usage := float64(totalDiff-idleDiff) / float64(totalDiff) * 100.0
	if usage < 0 {
		usage = 0
	}
	if usage > 100 {
		usage = 100
	}
	return usage, nil
}

// CpuCore is one processor block from /proc/cpuinfo.
type CpuCore struct {
	Processor    uint32   `json:"processor"`
	BogoMIPS     string   `json:"bogomips"`
	Features     []string `json:"features"`
	Implementer  string   `json:"implementer"`
	Architecture string   `json:"architecture"`
	Variant      string   `json:"variant"`
	Part         string   `json:"part"`
	Revision     string   `json:"revision"`
}

// CpuInfo is the parsed /proc/cpuinfo.
type CpuInfo struct {
	CoreCount uint32    `json:"core_count"`
	Cores     []CpuCore `json:"cores"`
	Hardware  string    `json:"hardware"`
	Serial    string    `json:"serial"`
	ModelName string    `json:"model_name"`
}

// ReadCpuInfo parses /proc/cpuinfo.
func ReadCpuInfo() (CpuInfo, error) {
	data, err := os.ReadFile("/proc/cpuinfo")
	if err != nil {
		return CpuInfo{}, fmt.Errorf("failed to read /proc/cpuinfo: %w", err)
	}
	return parseCpuInfo(string(data)), nil
}

func parseCpuInfo(content string) CpuInfo {
	info := CpuInfo{Cores: []CpuCore{}}
	var current CpuCore
	haveCore := false

	flush := func() {
		if haveCore {
			info.Cores = append(info.Cores, current)
			current = CpuCore{}
			haveCore = false
		}
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "processor":
			if n, err := strconv.ParseUint(value, 10, 32); err == nil {
				current.Processor = uint32(n)
				haveCore = true
			}
		case "BogoMIPS":
			current.BogoMIPS = value
			haveCore = true
		case "Features":
			current.Features = strings.Fields(value)
		case "CPU implementer":
			current.Implementer = value
		case "CPU architecture":
			current.Architecture = value
		case "CPU variant":
			current.Variant = value
		case "CPU part":
			current.Part = value
		case "CPU revision":
			current.Revision = value
		case "Hardware":
			info.Hardware = value
		case "Serial":
			info.Serial = value
		}
	}
	flush()

	info.CoreCount = uint32(len(info.Cores))
	if len(info.Cores) > 0 {
		info.ModelName = identifyCpuModel(info.Cores[0].Implementer, info.Cores[0].Part)
	} else {
		info.ModelName = "Unknown"
	}
	return info
}

// armParts maps ARM part numbers to core names.
var armParts = map[string]string{
	"0xd05": "ARM Cortex-A55",
	"0xd0a": "ARM Cortex-A75",
	"0xd0b": "ARM Cortex-A76",
	"0xd0c": "ARM Neoverse N1",
	"0xd0d": "ARM Cortex-A77",
	"0xd0e": "ARM Cortex-A76AE",
	"0xd40": "ARM Neoverse V1",
	"0xd41": "ARM Cortex-A78",
	"0xd44": "ARM Cortex-X1",
	"0xd46": "ARM Cortex-A510",
	"0xd47": "ARM Cortex-A710",
	"0xd48": "ARM Cortex-X2",
	"0xd49": "ARM Neoverse N2",
	"0xd4a": "ARM Neoverse E1",
	"0xd4b": "ARM Cortex-A78AE",
	"0xd4c": "ARM Cortex-X1C",
	"0xd4d": "ARM Cortex-A715",
	"0xd4e": "ARM Cortex-X3",
}

func identifyCpuModel(implementer, part string) string {
	if implementer == "0x41" {
		if name, ok := armParts[part]; ok {
			return name
		}
		return fmt.Sprintf("ARM CPU (part: %s)", part)
	}
	return fmt.Sprintf("CPU (implementer: %s, part: %s)", implementer, part)
}
