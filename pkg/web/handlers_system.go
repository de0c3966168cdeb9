package web

import (
	"net/http"
	"time"

	"github.com/soyea/cpe-manager/pkg/config"
	"github.com/soyea/cpe-manager/pkg/monitor"
	"github.com/soyea/cpe-manager/pkg/shell"
	"github.com/soyea/cpe-manager/pkg/usbgadget"
)

// GET /api/usb-mode
func (s *Server) handleUsbMode(w http.ResponseWriter, r *http.Request) {
	respondOK(w, "usb mode", usbgadget.ModeConfig())
}

// POST /api/usb-mode {mode, permanent}
//
// Writes the persisted preference only; the running gadget is untouched
// until reboot. Use /api/usb-advance for the live switch.
func (s *Server) handleSetUsbMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode      uint8 `json:"mode"`
		Permanent bool  `json:"permanent"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := usbgadget.SetModeConfig(usbgadget.Mode(req.Mode), req.Permanent); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondOK(w, "usb mode config saved", usbgadget.ModeConfig())
}

// POST /api/usb-advance {mode}
//
// Live hot-switch. Takes seconds; the USB link drops and re-enumerates.
func (s *Server) handleUsbAdvance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode uint8 `json:"mode"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.usb.SwitchMode(usbgadget.Mode(req.Mode)); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondOK(w, "usb mode switched", usbgadget.ModeConfig())
}

// GET /api/stats
func (s *Server) handleSystemStats(w http.ResponseWriter, r *http.Request) {
	speed, err := monitor.MeasureNetworkSpeed(500 * time.Millisecond)
	if err != nil {
		speed = monitor.NetworkSpeedResult{Interfaces: []monitor.NetworkSpeed{}}
	}

	memory, _ := monitor.ReadMemoryInfo()
	uptime, _ := monitor.ReadUptime()
	sysInfo, _ := monitor.ReadSystemInfo()

	cpuLoad, _ := monitor.ReadCpuLoad()
	if usage, err := monitor.SampleCpuUsage(); err == nil {
		cpuLoad.LoadPercent = usage
	}

	respondOK(w, "system stats", map[string]interface{}{
		"network_speed": speed,
		"memory":        memory,
		"disk":          monitor.ReadDiskInfo(),
		"cpu_load":      cpuLoad,
		"uptime":        uptime,
		"system_info":   sysInfo,
		"temperature":   monitor.ReadThermalZones(),
		"usb_mode":      usbgadget.ModeConfig(),
	})
}

// GET /api/stats/cpu
func (s *Server) handleCpuInfo(w http.ResponseWriter, r *http.Request) {
	info, err := monitor.ReadCpuInfo()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "cpu info", info)
}

// GET /api/connectivity
func (s *Server) handleConnectivity(w http.ResponseWriter, r *http.Request) {
	respondOK(w, "connectivity check", monitor.CheckConnectivity())
}

// GET /api/network/interfaces
func (s *Server) handleNetworkInterfaces(w http.ResponseWriter, r *http.Request) {
	interfaces, err := monitor.ReadNetworkInterfaces()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "network interfaces", map[string]interface{}{
		"interfaces":  interfaces,
		"total_count": len(interfaces),
	})
}

// POST /api/system/reboot {delay_seconds?}
func (s *Server) handleReboot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DelaySeconds uint32 `json:"delay_seconds"`
	}
	_ = decodeBody(r, &req)

	s.log.Warn("system reboot requested", "delay_seconds", req.DelaySeconds)
	respondOK(w, "rebooting", map[string]uint32{"delay_seconds": req.DelaySeconds})

	go func() {
		if req.DelaySeconds > 0 {
			time.Sleep(time.Duration(req.DelaySeconds) * time.Second)
		}
		shell.RunQuiet("reboot")
	}()
}

// GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondOK(w, "healthy", map[string]string{
		"version": s.version,
		"status":  "up",
	})
}

// GET /api/webhook/config
func (s *Server) handleWebhookConfig(w http.ResponseWriter, r *http.Request) {
	respondOK(w, "webhook config", s.config.Webhook())
}

// POST /api/webhook/config
func (s *Server) handleSetWebhookConfig(w http.ResponseWriter, r *http.Request) {
	var cfg config.WebhookConfig
	if err := decodeBody(r, &cfg); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.config.SetWebhook(cfg); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "webhook config saved", s.config.Webhook())
}

// POST /api/webhook/test
func (s *Server) handleTestWebhook(w http.ResponseWriter, r *http.Request) {
	result, err := s.webhook.Test()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, result, nil)
}

// GET /api/ota/status
func (s *Server) handleOtaStatus(w http.ResponseWriter, r *http.Request) {
	respondOK(w, "ota status", s.ota.Status())
}

// maxOtaUpload bounds the multipart package size (50 MB).
const maxOtaUpload = 50 << 20

// POST /api/ota/upload (multipart: package, md5)
func (s *Server) handleOtaUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxOtaUpload)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, _, err := r.FormFile("package")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing package file")
		return
	}
	defer file.Close()

	status, err := s.ota.Upload(file, r.FormValue("md5"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondOK(w, "package uploaded", status)
}

// POST /api/ota/apply
func (s *Server) handleOtaApply(w http.ResponseWriter, r *http.Request) {
	if err := s.ota.Apply(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondOK(w, "ota apply started", s.ota.Status())
}

// POST /api/ota/cancel
func (s *Server) handleOtaCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.ota.Cancel(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondOK(w, "ota cancelled", s.ota.Status())
}
