// Package usbgadget reconfigures the device's USB personality at runtime
// through the Linux configfs gadget framework. A switch is a strict
// teardown/rebuild sequence: unbind the UDC, drop every function, rewrite
// identity and acceleration hints, rebuild the function set, rebind, and
// recover the usb0 network path.
//
// The composer is not re-entrant; a second switch while one is in flight is
// rejected by the busy latch.
package usbgadget

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/soyea/cpe-manager/internal/logger"
	"github.com/soyea/cpe-manager/pkg/shell"
)

// Mode is the USB gadget personality.
type Mode uint8

const (
	ModeNCM   Mode = 1
	ModeECM   Mode = 2
	ModeRNDIS Mode = 3
)

// Name returns the personality name.
func (m Mode) Name() string {
	switch m {
	case ModeNCM:
		return "NCM"
	case ModeECM:
		return "ECM"
	case ModeRNDIS:
		return "RNDIS"
	}
	return "unknown"
}

// modeConfig is the fixed per-mode gadget identity.
type modeConfig struct {
	vid            string
	pid            string
	configuration  string
	pamu3Protocol  string // empty: no hardware-acceleration hint
	function       string // primary network function directory
	bcdDevice      string
	usbShareEnable bool
}

// modeConfigFor returns the gadget identity for a mode. NCM and RNDIS need
// the IPA protocol hint; only RNDIS enables USB share.
func modeConfigFor(mode Mode) (modeConfig, bool) {
	switch mode {
	case ModeNCM:
		return modeConfig{
			vid:           "0x1782",
			pid:           "0x4040",
			configuration: "ncm",
			pamu3Protocol: "NCM",
			function:      "ncm.gs0",
			bcdDevice:     "0x0404",
		}, true
	case ModeECM:
		return modeConfig{
			vid:           "0x1782",
			pid:           "0x4039",
			configuration: "ecm",
			function:      "ecm.gs0",
			bcdDevice:     "0x0404",
		}, true
	case ModeRNDIS:
		return modeConfig{
			vid:            "0x1782",
			pid:            "0x4038",
			configuration:  "rndis",
			pamu3Protocol:  "RNDIS",
			function:       "rndis.gs4",
			bcdDevice:      "0x0404",
			usbShareEnable: true,
		}, true
	}
	return modeConfig{}, false
}

// pidModes maps observed idProduct values back to modes; firmware boot
// scripts program several PID variants per personality.
var pidModes = map[string]Mode{
	"0x4040": ModeNCM,
	"0x4039": ModeECM,
	"0x4038": ModeRNDIS,
	"0x4107": ModeNCM,
	"0x4105": ModeNCM,
	"0x4103": ModeNCM,
	"0x4101": ModeNCM,
	"0x4106": ModeECM,
	"0x4104": ModeECM,
	"0x4102": ModeECM,
	"0x4100": ModeECM,
}

// Filesystem anchor points.
const (
	gadgetPath    = "/sys/kernel/config/usb_gadget/g1"
	configPath    = gadgetPath + "/configs/b.1"
	functionsPath = gadgetPath + "/functions"
	udcNodePath   = gadgetPath + "/UDC"

	pamu3ProtocolPath = "/sys/devices/platform/soc/soc:ipa/2b300000.pamu3/pamu3_protocol"
	pamu3MaxDlPath    = "/sys/devices/platform/soc/soc:ipa/2b300000.pamu3/max_dl_pkts"

	slogTransportPath = "/sys/module/slog_bridge/parameters/log_transport"
	atDevicePath      = "/dev/stty_lte30"

	permanentModeFile = "/mnt/data/mode.cfg"
	temporaryModeFile = "/mnt/data/mode_tmp.cfg"

	defaultUDC = "29100000.dwc3"
)

// Composer owns the gadget tree. Only one switch runs at a time.
type Composer struct {
	log  *logger.Logger
	busy atomic.Bool
}

// New creates the composer.
func New(log *logger.Logger) *Composer {
	return &Composer{log: log.WithComponent("usbgadget")}
}

func writeFile(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeFileIfPresent(path, content string) {
	if _, err := os.Stat(path); err == nil {
		_ = writeFile(path, content)
	}
}

// sendATDirect writes an AT command to the modem's raw character device.
// This path does not share the ofono channel, so it bypasses the
// serialization gate. Silently skipped when the device node is absent.
func sendATDirect(cmd string) error {
	if _, err := os.Stat(atDevicePath); err != nil {
		return nil
	}
	f, err := os.OpenFile(atDevicePath, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", atDevicePath, err)
	}
	defer f.Close()
	if _, err := f.WriteString(cmd + "\r\n"); err != nil {
		return fmt.Errorf("write %s: %w", atDevicePath, err)
	}
	return nil
}

// setUsbShareMode toggles the modem-side USB sharing needed by RNDIS.
func setUsbShareMode(enable bool) error {
	value := "0"
	if enable {
		value = "1"
	}
	return sendATDirect(fmt.Sprintf("AT+SPASENGMD=\"#dsm_usb_share_enable\",%s", value))
}

// udcName snapshots the controller name from /sys/class/udc. Must run
// before teardown: once the UDC is unbound the listing is empty.
func udcName() string {
	entries, err := os.ReadDir("/sys/class/udc")
	if err != nil || len(entries) == 0 {
		return defaultUDC
	}
	return entries[0].Name()
}

// removeAllLinks drops the f0..f15 symlinks under configs/b.1.
func removeAllLinks() {
	for i := 0; i <= 15; i++ {
		link := fmt.Sprintf("%s/f%d", configPath, i)
		if _, err := os.Lstat(link); err == nil {
			_ = os.Remove(link)
		}
	}
}

// cdcFunctions is every network-function directory a previous mode may have
// left behind.
var cdcFunctions = []string{
	"rndis.gs4",
	"ecm.gs0", "ecm.gs1", "ecm.gs2", "ecm.gs3",
	"ncm.gs0", "ncm.gs1", "ncm.gs2", "ncm.gs3",
	"mbim.gs0",
}

func removeAllCdcFunctions() {
	for _, fn := range cdcFunctions {
		path := filepath.Join(functionsPath, fn)
		if _, err := os.Stat(path); err == nil {
			_ = os.Remove(path)
		}
	}
}

// helperFunctions are the serial/debug channels present in every mode.
var helperFunctions = []string{
	"vser.gs0", "ffs.adb",
	"gser.gs0", "gser.gs1", "gser.gs2", "gser.gs3",
	"gser.gs4", "gser.gs5", "gser.gs6", "gser.gs7",
}

func createHelperFunctions() error {
	for _, fn := range helperFunctions {
		path := filepath.Join(functionsPath, fn)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("create function %s: %w", fn, err)
		}
		_ = os.Chmod(path, 0755)
	}
	return nil
}

// functionLinks is the fixed symlink order of the composite configuration.
// f1 is replaced by the mode's primary network function.
var functionLinks = []string{
	"", // f1: primary
	"gser.gs2",
	"gser.gs0",
	"vser.gs0",
	"gser.gs3",
	"ffs.adb",
	"gser.gs4",
	"gser.gs5",
	"gser.gs6",
}

func createFunctionLinks(primary string) error {
	for i, fn := range functionLinks {
		if i == 0 {
			fn = primary
		}
		target := filepath.Join(functionsPath, fn)
		link := fmt.Sprintf("%s/f%d", configPath, i+1)
		if err := os.Symlink(target, link); err != nil {
			return fmt.Errorf("link %s -> f%d: %w", fn, i+1, err)
		}
	}
	return nil
}

// serialNumber derives the descriptor serial from the first usable MAC.
func serialNumber() string {
	for _, iface := range []string{"eth0", "wlan0", "usb0", "enp0s3"} {
		data, err := os.ReadFile(fmt.Sprintf("/sys/class/net/%s/address", iface))
		if err != nil {
			continue
		}
		mac := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(string(data)), ":", ""))
		if len(mac) >= 12 {
			return "UDX" + mac[:12] + "1"
		}
	}
	return "UDXDEFAULT000000"
}

// hardwareID extracts the board model from the device tree, e.g.
// "Spreadtrum UDX710_4h10 Board" -> "UDX710".
func hardwareID() string {
	data, err := os.ReadFile("/proc/device-tree/model")
	if err == nil {
		model := strings.ToUpper(strings.TrimSpace(string(data)))
		if pos := strings.Index(model, "UDX"); pos >= 0 {
			rest := model[pos:]
			if len(rest) >= 7 {
				return strings.ReplaceAll(rest[:7], "_", "")
			}
			if len(rest) >= 6 {
				return rest[:6]
			}
		}
		if strings.Contains(model, "710") {
			return "U710"
		}
	}
	return "UDX7"
}

// productName builds the descriptor product string from the board model and
// the serial suffix.
func productName(serial, modelID string) string {
	suffix := serial
	if len(serial) >= 4 {
		suffix = serial[len(serial)-4:]
	} else {
		suffix = (serial + "0000")[:4]
	}
	return fmt.Sprintf("unisoc-5g-modem-%s00%s", modelID, suffix)
}

// hostAddrFromDevAddr derives the host-side MAC: device MAC with the last
// octet replaced by 01.
func hostAddrFromDevAddr(devAddr string) string {
	parts := strings.Split(devAddr, ":")
	if len(parts) > 0 {
		parts[len(parts)-1] = "01"
	}
	return strings.ToLower(strings.Join(parts, ":"))
}

func stopAdbd() {
	shell.RunQuiet("/bin/sh", "/etc/init.d/adbd-init", "stop")
}

func startAdbd() {
	shell.RunQuiet("/bin/sh", "/etc/init.d/adbd-init", "start")
}

// waitForFunctionfs polls for functionfs to be mounted at
// /dev/usb-ffs/adb. adbd-init mounts it in the background and the UDC bind
// can fail if it is not there yet. Timing out is not fatal; the bind may
// still succeed without adb.
func (c *Composer) waitForFunctionfs() {
	const ffsEp0 = "/dev/usb-ffs/adb/ep0"
	const maxRetries = 50
	const retryInterval = 100 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		if _, err := os.Stat(ffsEp0); err == nil {
			// Give adbd a moment to open ep0 before the UDC binds.
			time.Sleep(200 * time.Millisecond)
			return
		}
		if i < maxRetries-1 {
			time.Sleep(retryInterval)
		}
	}
	c.log.Warn("functionfs mount timeout, continuing anyway")
}

// SwitchMode performs the live personality switch. Long-running; the modem
// serialization gate is deliberately NOT held, this path never touches the
// ofono channel.
func (c *Composer) SwitchMode(mode Mode) error {
	cfg, ok := modeConfigFor(mode)
	if !ok {
		return fmt.Errorf("invalid USB mode: %d (valid: 1=NCM, 2=ECM, 3=RNDIS)", mode)
	}

	if !c.busy.CompareAndSwap(false, true) {
		return fmt.Errorf("USB mode switch already in progress")
	}
	defer c.busy.Store(false)

	c.log.Info("switching USB mode", "mode", uint8(mode), "name", mode.Name())

	// Snapshot the controller name before teardown empties the listing.
	udc := udcName()

	stopAdbd()

	if err := writeFile(udcNodePath, "none"); err != nil {
		return fmt.Errorf("failed to disable UDC: %w", err)
	}
	time.Sleep(100 * time.Millisecond)

	removeAllLinks()
	removeAllCdcFunctions()

	if cfg.pamu3Protocol != "" {
		writeFileIfPresent(pamu3ProtocolPath, cfg.pamu3Protocol)
	}
	writeFileIfPresent(pamu3MaxDlPath, "7")

	if err := setUsbShareMode(cfg.usbShareEnable); err != nil {
		c.log.Warn("usb share toggle failed", "error", err.Error())
	}

	// Ensure configfs is there; mount is a no-op when already mounted.
	shell.RunQuiet("mount", "-t", "configfs", "none", "/sys/kernel/config")
	if err := os.MkdirAll(gadgetPath, 0755); err != nil {
		return fmt.Errorf("failed to create gadget directory: %w", err)
	}

	if err := writeFile(gadgetPath+"/idVendor", cfg.vid); err != nil {
		return err
	}
	if err := writeFile(gadgetPath+"/idProduct", cfg.pid); err != nil {
		return err
	}
	if err := writeFile(gadgetPath+"/bcdDevice", cfg.bcdDevice); err != nil {
		return err
	}
	if err := writeFile(gadgetPath+"/bDeviceClass", "0"); err != nil {
		return err
	}

	stringsPath := gadgetPath + "/strings/0x409"
	if err := os.MkdirAll(stringsPath, 0755); err != nil {
		return fmt.Errorf("failed to create strings directory: %w", err)
	}

	serial := serialNumber()
	if err := writeFile(stringsPath+"/serialnumber", serial); err != nil {
		return err
	}
	if err := writeFile(stringsPath+"/manufacturer", "SOYEA"); err != nil {
		return err
	}
	if err := writeFile(stringsPath+"/product", productName(serial, hardwareID())); err != nil {
		return err
	}

	configStringsPath := configPath + "/strings/0x409"
	if err := os.MkdirAll(configStringsPath, 0755); err != nil {
		return fmt.Errorf("failed to create config strings directory: %w", err)
	}
	if err := writeFile(configStringsPath+"/configuration", cfg.configuration); err != nil {
		return err
	}
	if err := writeFile(configPath+"/MaxPower", "500"); err != nil {
		return err
	}
	if err := writeFile(configPath+"/bmAttributes", "0xc0"); err != nil {
		return err
	}

	functionPath := filepath.Join(functionsPath, cfg.function)
	if err := os.MkdirAll(functionPath, 0755); err != nil {
		return fmt.Errorf("failed to create function %s: %w", cfg.function, err)
	}
	_ = os.Chmod(functionPath, 0755)

	writeFileIfPresent(functionPath+"/dev_addr", strings.ToLower(usbInterfaceMAC))
	writeFileIfPresent(functionPath+"/host_addr", hostAddrFromDevAddr(usbInterfaceMAC))

	if err := createHelperFunctions(); err != nil {
		return err
	}

	if err := createFunctionLinks(cfg.function); err != nil {
		return err
	}

	// adbd-init mounts functionfs at /dev/usb-ffs/adb in the background.
	startAdbd()
	c.waitForFunctionfs()

	writeFileIfPresent(slogTransportPath, "1")

	if err := writeFile(udcNodePath, udc); err != nil {
		return fmt.Errorf("failed to enable UDC: %w", err)
	}

	// Let the host enumerate before reworking the network side.
	time.Sleep(1 * time.Second)

	c.configureUsbNetwork()

	c.log.Info("USB mode switch complete", "mode", uint8(mode), "udc", udc)
	return nil
}

// SetModeConfig persists the preferred mode to the permanent or temporary
// file; boot logic applies it. Does not touch the live gadget. The file
// carries a single digit plus newline, matching the firmware's echo.
func SetModeConfig(mode Mode, permanent bool) error {
	if mode < ModeNCM || mode > ModeRNDIS {
		return fmt.Errorf("invalid USB mode: %d (valid: 1=NCM, 2=ECM, 3=RNDIS)", mode)
	}
	file := temporaryModeFile
	if permanent {
		file = permanentModeFile
	}
	if err := os.WriteFile(file, []byte(fmt.Sprintf("%d\n", mode)), 0644); err != nil {
		return fmt.Errorf("failed to write USB mode config to %s: %w", file, err)
	}
	return nil
}

// ModeStatus is the combined live + persisted mode view.
type ModeStatus struct {
	CurrentMode     *uint8 `json:"current_mode"`
	CurrentModeName string `json:"current_mode_name"`
	PermanentMode   *uint8 `json:"permanent_mode"`
	TemporaryMode   *uint8 `json:"temporary_mode"`
	NeedsReboot     bool   `json:"needs_reboot"`
	ReadMode        string `json:"read_mode"`
}

// readModeFile parses a persisted mode digit, rejecting out-of-range
// values.
func readModeFile(path string) *uint8 {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	n, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 8)
	if err != nil || n < 1 || n > 3 {
		return nil
	}
	v := uint8(n)
	return &v
}

// modeFromVidPid maps the live gadget identity back to a mode.
func modeFromVidPid(vid, pid string) (Mode, bool) {
	switch vid {
	case "0x1782":
		if mode, ok := pidModes[pid]; ok {
			return mode, true
		}
	case "0x3426":
		if pid == "0x2999" {
			return ModeNCM, true
		}
	}
	return 0, false
}

// CurrentMode reads the live gadget identity from configfs and maps it to a
// mode, falling back to the permanent mode file when the VID/PID pair is
// unknown.
func CurrentMode() (Mode, string, error) {
	vidData, err := os.ReadFile(gadgetPath + "/idVendor")
	if err != nil {
		return 0, "", fmt.Errorf("failed to read VID: %w", err)
	}
	pidData, err := os.ReadFile(gadgetPath + "/idProduct")
	if err != nil {
		return 0, "", fmt.Errorf("failed to read PID: %w", err)
	}

	vid := strings.ToLower(strings.TrimSpace(string(vidData)))
	pid := strings.ToLower(strings.TrimSpace(string(pidData)))

	if mode, ok := modeFromVidPid(vid, pid); ok {
		return mode, "hardware", nil
	}

	if mode := readModeFile(permanentModeFile); mode != nil {
		return Mode(*mode), "file", nil
	}
	return 0, "", fmt.Errorf("unknown USB mode (VID=%s, PID=%s)", vid, pid)
}

// ModeConfig reads the full persisted + live mode state.
func ModeConfig() ModeStatus {
	status := ModeStatus{
		PermanentMode: readModeFile(permanentModeFile),
		TemporaryMode: readModeFile(temporaryModeFile),
		NeedsReboot:   true,
	}
	if mode, source, err := CurrentMode(); err == nil {
		v := uint8(mode)
		status.CurrentMode = &v
		status.CurrentModeName = mode.Name()
		status.ReadMode = source
	}
	return status
}
