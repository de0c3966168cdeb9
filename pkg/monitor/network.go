package monitor

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/soyea/cpe-manager/pkg/shell"
)

// IpAddress is one address on an interface.
type IpAddress struct {
	Address   string `json:"address"`
	PrefixLen uint8  `json:"prefix_len"`
	IpType    string `json:"ip_type"` // ipv4 / ipv6
	Scope     string `json:"scope"`   // private / public / loopback / link-local
}

// NetworkInterfaceInfo is one /sys/class/net entry with addresses and
// counters.
type NetworkInterfaceInfo struct {
	Name        string      `json:"name"`
	Status      string      `json:"status"`
	MacAddress  string      `json:"mac_address,omitempty"`
	MTU         uint32      `json:"mtu"`
	IpAddresses []IpAddress `json:"ip_addresses"`
	RxBytes     uint64      `json:"rx_bytes"`
	TxBytes     uint64      `json:"tx_bytes"`
	RxPackets   uint64      `json:"rx_packets"`
	TxPackets   uint64      `json:"tx_packets"`
	RxErrors    uint64      `json:"rx_errors"`
	TxErrors    uint64      `json:"tx_errors"`
}

// NetworkSpeed is the measured throughput of one interface.
type NetworkSpeed struct {
	Interface     string `json:"interface"`
	RxBytesPerSec uint64 `json:"rx_bytes_per_sec"`
	TxBytesPerSec uint64 `json:"tx_bytes_per_sec"`
	TotalRxBytes  uint64 `json:"total_rx_bytes"`
	TotalTxBytes  uint64 `json:"total_tx_bytes"`
}

// NetworkSpeedResult is all interfaces' throughput over one window.
type NetworkSpeedResult struct {
	Interfaces      []NetworkSpeed `json:"interfaces"`
	IntervalSeconds float64        `json:"interval_seconds"`
}

func readStatFile(path string) uint64 {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	n, _ := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	return n
}

// InterfaceStats reads the rx/tx byte counters of one interface.
func InterfaceStats(name string) (uint64, uint64) {
	base := filepath.Join("/sys/class/net", name, "statistics")
	return readStatFile(filepath.Join(base, "rx_bytes")), readStatFile(filepath.Join(base, "tx_bytes"))
}

// ActiveInterfaces lists non-loopback interfaces that are up (or report an
// unknown operstate, which virtual interfaces do).
func ActiveInterfaces() ([]string, error) {
	entries, err := os.ReadDir("/sys/class/net")
	if err != nil {
		return nil, fmt.Errorf("failed to read /sys/class/net: %w", err)
	}

	names := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if name == "lo" {
			continue
		}
		data, err := os.ReadFile(filepath.Join("/sys/class/net", name, "operstate"))
		if err != nil {
			continue
		}
		state := strings.TrimSpace(string(data))
		if state == "up" || state == "unknown" {
			names = append(names, name)
		}
	}
	return names, nil
}

// MeasureNetworkSpeed samples every active interface's counters over the
// window and reports per-second rates.
func MeasureNetworkSpeed(window time.Duration) (NetworkSpeedResult, error) {
	names, err := ActiveInterfaces()
	if err != nil {
		return NetworkSpeedResult{}, err
	}

	type sample struct{ rx, tx uint64 }
	before := map[string]sample{}
	for _, name := range names {
		rx, tx := InterfaceStats(name)
		before[name] = sample{rx, tx}
	}

	time.Sleep(window)
	seconds := window.Seconds()

	result := NetworkSpeedResult{
		Interfaces:      []NetworkSpeed{},
		IntervalSeconds: seconds,
	}
	for _, name := range names {
		rx, tx := InterfaceStats(name)
		first := before[name]
		result.Interfaces = append(result.Interfaces, NetworkSpeed{
			Interface:     name,
			RxBytesPerSec: uint64(float64(rx-first.rx) / seconds),
			TxBytesPerSec: uint64(float64(tx-first.tx) / seconds),
			TotalRxBytes:  rx,
			TotalTxBytes:  tx,
		})
	}
	return result, nil
}

// ipScope classifies an address range.
func ipScope(ip net.IP) string {
	switch {
	case ip.IsLoopback():
		return "loopback"
	case ip.IsLinkLocalUnicast():
		return "link-local"
	case ip.IsPrivate():
		return "private"
	}
	return "public"
}

// parseIpAddrOutput extracts inet/inet6 lines from `ip addr show` output.
func parseIpAddrOutput(output string) []IpAddress {
	addresses := []IpAddress{}
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "inet ") && !strings.HasPrefix(line, "inet6 ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		ipType := "ipv4"
		if fields[0] == "inet6" {
			ipType = "ipv6"
		}

		addr, prefix, found := strings.Cut(fields[1], "/")
		if !found {
			continue
		}
		ip := net.ParseIP(addr)
		if ip == nil {
			continue
		}
		prefixLen, _ := strconv.ParseUint(prefix, 10, 8)

		addresses = append(addresses, IpAddress{
			Address:   addr,
			PrefixLen: uint8(prefixLen),
			IpType:    ipType,
			Scope:     ipScope(ip),
		})
	}
	return addresses
}

func interfaceAddresses(name string) []IpAddress {
	res, err := shell.Run("ip", "addr", "show", "dev", name)
	if err != nil || !res.Ok() {
		return []IpAddress{}
	}
	return parseIpAddrOutput(res.Stdout)
}

// ReadNetworkInterfaces inventories every interface under /sys/class/net.
func ReadNetworkInterfaces() ([]NetworkInterfaceInfo, error) {
	entries, err := os.ReadDir("/sys/class/net")
	if err != nil {
		return nil, fmt.Errorf("failed to read network interfaces: %w", err)
	}

	interfaces := []NetworkInterfaceInfo{}
	for _, entry := range entries {
		name := entry.Name()
		base := filepath.Join("/sys/class/net", name)

		status := "unknown"
		if data, err := os.ReadFile(filepath.Join(base, "operstate")); err == nil {
			status = strings.ToLower(strings.TrimSpace(string(data)))
		}

		mac := ""
		if data, err := os.ReadFile(filepath.Join(base, "address")); err == nil {
			addr := strings.TrimSpace(string(data))
			if addr != "" && addr != "00:00:00:00:00:00" {
				mac = addr
			}
		}

		stats := filepath.Join(base, "statistics")
		interfaces = append(interfaces, NetworkInterfaceInfo{
			Name:        name,
			Status:      status,
			MacAddress:  mac,
			MTU:         uint32(readStatFile(filepath.Join(base, "mtu"))),
			IpAddresses: interfaceAddresses(name),
			RxBytes:     readStatFile(filepath.Join(stats, "rx_bytes")),
			TxBytes:     readStatFile(filepath.Join(stats, "tx_bytes")),
			RxPackets:   readStatFile(filepath.Join(stats, "rx_packets")),
			TxPackets:   readStatFile(filepath.Join(stats, "tx_packets")),
			RxErrors:    readStatFile(filepath.Join(stats, "rx_errors")),
			TxErrors:    readStatFile(filepath.Join(stats, "tx_errors")),
		})
	}

	sort.Slice(interfaces, func(i, j int) bool { return interfaces[i].Name < interfaces[j].Name })
	return interfaces, nil
}

// PingResult is one connectivity probe.
type PingResult struct {
	Success   bool     `json:"success"`
	LatencyMs *float64 `json:"latency_ms"`
	Target    string   `json:"target"`
	Error     string   `json:"error,omitempty"`
}

// ConnectivityResult is the dual-stack probe outcome.
type ConnectivityResult struct {
	IPv4 PingResult `json:"ipv4"`
	IPv6 PingResult `json:"ipv6"`
}

// Anycast DNS targets reachable from CN carrier networks.
const (
	pingTargetV4 = "223.5.5.5"
	pingTargetV6 = "2400:3200::1"
)

// CheckConnectivity pings one IPv4 and one IPv6 target.
func CheckConnectivity() ConnectivityResult {
	return ConnectivityResult{
		IPv4: ping("ping", pingTargetV4),
		IPv6: ping("ping6", pingTargetV6),
	}
}

func ping(binary, target string) PingResult {
	result := PingResult{Target: target}

	res, err := shell.Run(binary, "-c", "1", "-W", "3", target)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if !res.Ok() {
		result.Error = strings.TrimSpace(res.Stderr)
		if result.Error == "" {
			result.Error = "ping failed"
		}
		return result
	}

	if latency, ok := parsePingLatency(res.Stdout); ok {
		result.Success = true
		result.LatencyMs = &latency
	} else {
		result.Success = true
	}
	return result
}

// parsePingLatency pulls "time=12.3 ms" out of ping output.
func parsePingLatency(output string) (float64, bool) {
	for _, line := range strings.Split(output, "\n") {
		idx := strings.Index(line, "time=")
		if idx < 0 {
			continue
		}
		rest := line[idx+len("time="):]
		if end := strings.IndexByte(rest, ' '); end > 0 {
			rest = rest[:end]
		}
		if latency, err := strconv.ParseFloat(rest, 64); err == nil {
			return latency, true
		}
	}
	return 0, false
}
