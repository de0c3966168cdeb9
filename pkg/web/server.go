// Package web is the HTTP facade: a JSON API over the modem, store, USB
// composer and telemetry readers, plus SPA static serving and a websocket
// event stream. Handlers are thin; everything interesting happens in the
// packages they call.
package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/soyea/cpe-manager/internal/logger"
	"github.com/soyea/cpe-manager/pkg/config"
	"github.com/soyea/cpe-manager/pkg/modem"
	"github.com/soyea/cpe-manager/pkg/ota"
	"github.com/soyea/cpe-manager/pkg/storage"
	"github.com/soyea/cpe-manager/pkg/usbgadget"
	"github.com/soyea/cpe-manager/pkg/webhook"
)

// Server hosts the API and static frontend.
type Server struct {
	modem   *modem.Client
	store   *storage.Store
	config  *config.Manager
	webhook *webhook.Sender
	usb     *usbgadget.Composer
	ota     *ota.Manager
	hub     *Hub
	log     *logger.Logger
	version string
	wwwDir  string
	server  *http.Server
}

// Config wires the server's collaborators.
type Config struct {
	Modem   *modem.Client
	Store   *storage.Store
	Config  *config.Manager
	Webhook *webhook.Sender
	USB     *usbgadget.Composer
	OTA     *ota.Manager
	Hub     *Hub
	Logger  *logger.Logger
	Version string
}

// New creates the server. The SPA lives in ./www next to the binary.
func New(cfg Config) *Server {
	wwwDir := "www"
	if exe, err := os.Executable(); err == nil {
		wwwDir = filepath.Join(filepath.Dir(exe), "www")
	}

	return &Server{
		modem:   cfg.Modem,
		store:   cfg.Store,
		config:  cfg.Config,
		webhook: cfg.Webhook,
		usb:     cfg.USB,
		ota:     cfg.OTA,
		hub:     cfg.Hub,
		log:     cfg.Logger.WithComponent("web"),
		version: cfg.Version,
		wwwDir:  wwwDir,
	}
}

// router assembles every endpoint family.
func (s *Server) router() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	// AT passthrough
	api.HandleFunc("/at", s.handleAtCommand).Methods(http.MethodPost)

	// Device
	api.HandleFunc("/device", s.handleDeviceInfo).Methods(http.MethodGet)
	api.HandleFunc("/device/imeisv", s.handleImeisv).Methods(http.MethodGet)

	// SIM
	api.HandleFunc("/sim", s.handleSimInfo).Methods(http.MethodGet)
	api.HandleFunc("/sim/slot", s.handleSimSlot).Methods(http.MethodGet)
	api.HandleFunc("/sim/slot/switch", s.handleSwitchSimSlot).Methods(http.MethodPost)

	// Network
	api.HandleFunc("/network", s.handleNetworkInfo).Methods(http.MethodGet)
	api.HandleFunc("/network/interfaces", s.handleNetworkInterfaces).Methods(http.MethodGet)
	api.HandleFunc("/network/signal-strength", s.handleSignalStrength).Methods(http.MethodGet)
	api.HandleFunc("/network/nitz", s.handleNitz).Methods(http.MethodGet)
	api.HandleFunc("/network/operators", s.handleOperators).Methods(http.MethodGet)
	api.HandleFunc("/network/operators/scan", s.handleScanOperators).Methods(http.MethodGet)
	api.HandleFunc("/network/register-manual", s.handleRegisterManual).Methods(http.MethodPost)
	api.HandleFunc("/network/register-auto", s.handleRegisterAuto).Methods(http.MethodPost)

	// Cells
	api.HandleFunc("/cells", s.handleCells).Methods(http.MethodGet)
	api.HandleFunc("/location/cell-info", s.handleCellLocation).Methods(http.MethodGet)

	// QoS
	api.HandleFunc("/qos", s.handleQos).Methods(http.MethodGet)

	// Data plane
	api.HandleFunc("/data", s.handleDataStatus).Methods(http.MethodGet)
	api.HandleFunc("/data", s.handleSetDataStatus).Methods(http.MethodPost)
	api.HandleFunc("/roaming", s.handleRoamingStatus).Methods(http.MethodGet)
	api.HandleFunc("/roaming", s.handleSetRoaming).Methods(http.MethodPost)
	api.HandleFunc("/airplane-mode", s.handleAirplaneMode).Methods(http.MethodGet)
	api.HandleFunc("/airplane-mode", s.handleSetAirplaneMode).Methods(http.MethodPost)

	// Radio
	api.HandleFunc("/radio-mode", s.handleRadioMode).Methods(http.MethodGet)
	api.HandleFunc("/radio-mode", s.handleSetRadioMode).Methods(http.MethodPost)
	api.HandleFunc("/band-lock", s.handleBandLock).Methods(http.MethodGet)
	api.HandleFunc("/band-lock", s.handleSetBandLock).Methods(http.MethodPost)
	api.HandleFunc("/cell-lock", s.handleCellLock).Methods(http.MethodGet)
	api.HandleFunc("/cell-lock", s.handleSetCellLock).Methods(http.MethodPost)
	api.HandleFunc("/cell-lock/unlock-all", s.handleUnlockAllCells).Methods(http.MethodPost)

	// APN
	api.HandleFunc("/apn", s.handleApnList).Methods(http.MethodGet)
	api.HandleFunc("/apn", s.handleSetApn).Methods(http.MethodPost)

	// Calls
	api.HandleFunc("/calls", s.handleCalls).Methods(http.MethodGet)
	api.HandleFunc("/call/dial", s.handleDial).Methods(http.MethodPost)
	api.HandleFunc("/call/hangup", s.handleHangup).Methods(http.MethodPost)
	api.HandleFunc("/call/hangup-all", s.handleHangupAll).Methods(http.MethodPost)
	api.HandleFunc("/call/answer", s.handleAnswer).Methods(http.MethodPost)
	api.HandleFunc("/call/volume", s.handleCallVolume).Methods(http.MethodGet)
	api.HandleFunc("/call/volume", s.handleSetCallVolume).Methods(http.MethodPost)
	api.HandleFunc("/call/forwarding", s.handleCallForwarding).Methods(http.MethodGet)
	api.HandleFunc("/call/forwarding", s.handleSetCallForwarding).Methods(http.MethodPost)
	api.HandleFunc("/call/settings", s.handleCallSettings).Methods(http.MethodGet)
	api.HandleFunc("/call/settings", s.handleSetCallSettings).Methods(http.MethodPost)
	api.HandleFunc("/call/history", s.handleCallHistory).Methods(http.MethodGet)
	api.HandleFunc("/call/history/clear", s.handleClearCallHistory).Methods(http.MethodPost)
	api.HandleFunc("/call/history/{id:[0-9]+}", s.handleDeleteCallHistory).Methods(http.MethodDelete)

	// SMS
	api.HandleFunc("/sms/send", s.handleSendSms).Methods(http.MethodPost)
	api.HandleFunc("/sms/list", s.handleSmsList).Methods(http.MethodGet)
	api.HandleFunc("/sms/conversation", s.handleSmsConversation).Methods(http.MethodGet)
	api.HandleFunc("/sms/stats", s.handleSmsStats).Methods(http.MethodGet)
	api.HandleFunc("/sms/clear", s.handleClearSms).Methods(http.MethodPost)

	// IMS / voicemail
	api.HandleFunc("/ims/status", s.handleImsStatus).Methods(http.MethodGet)
	api.HandleFunc("/voicemail/status", s.handleVoicemailStatus).Methods(http.MethodGet)

	// USB
	api.HandleFunc("/usb-mode", s.handleUsbMode).Methods(http.MethodGet)
	api.HandleFunc("/usb-mode", s.handleSetUsbMode).Methods(http.MethodPost)
	api.HandleFunc("/usb-advance", s.handleUsbAdvance).Methods(http.MethodPost)

	// System
	api.HandleFunc("/stats", s.handleSystemStats).Methods(http.MethodGet)
	api.HandleFunc("/stats/cpu", s.handleCpuInfo).Methods(http.MethodGet)
	api.HandleFunc("/connectivity", s.handleConnectivity).Methods(http.MethodGet)
	api.HandleFunc("/system/reboot", s.handleReboot).Methods(http.MethodPost)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	// Webhook
	api.HandleFunc("/webhook/config", s.handleWebhookConfig).Methods(http.MethodGet)
	api.HandleFunc("/webhook/config", s.handleSetWebhookConfig).Methods(http.MethodPost)
	api.HandleFunc("/webhook/test", s.handleTestWebhook).Methods(http.MethodPost)

	// OTA
	api.HandleFunc("/ota/status", s.handleOtaStatus).Methods(http.MethodGet)
	api.HandleFunc("/ota/upload", s.handleOtaUpload).Methods(http.MethodPost)
	api.HandleFunc("/ota/apply", s.handleOtaApply).Methods(http.MethodPost)
	api.HandleFunc("/ota/cancel", s.handleOtaCancel).Methods(http.MethodPost)

	// Live event stream
	r.HandleFunc("/ws", s.hub.handleWebSocket)

	// Everything else is the SPA.
	r.PathPrefix("/").HandlerFunc(s.spaFallback)

	return corsMiddleware(r)
}

// corsMiddleware opens the API wide; the device has no origin policy.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "*")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// contentTypes maps frontend asset extensions.
var contentTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "application/javascript; charset=utf-8",
	".json": "application/json",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
}

// spaFallback serves files from the www directory, falling back to
// index.html for frontend routes.
func (s *Server) spaFallback(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if strings.HasPrefix(path, "/api/") {
		http.Error(w, "API endpoint not found", http.StatusNotFound)
		return
	}

	requested := path
	if requested == "/" {
		requested = "/index.html"
	}
	filePath := filepath.Join(s.wwwDir, filepath.Clean(strings.TrimPrefix(requested, "/")))

	if data, err := os.ReadFile(filePath); err == nil {
		contentType, ok := contentTypes[strings.ToLower(filepath.Ext(filePath))]
		if !ok {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.Write(data)
		return
	}

	indexPath := filepath.Join(s.wwwDir, "index.html")
	data, err := os.ReadFile(indexPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("index.html not found at %s. Please build the frontend first.", indexPath),
			http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// Start binds the listen socket, retrying while the port drains, and
// serves until Shutdown. The retry covers restarts where the previous
// instance still owns the port.
func (s *Server) Start(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)

	var listener net.Listener
	var err error
	const maxRetries = 30
	for i := 0; i < maxRetries; i++ {
		listener, err = net.Listen("tcp", addr)
		if err == nil {
			break
		}
		if i == 0 {
			s.log.Warn("port busy, waiting for release", "addr", addr)
		}
		if i+1 < maxRetries {
			time.Sleep(1 * time.Second)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to bind to %s: %w", addr, err)
	}

	s.server = &http.Server{Handler: s.router()}
	s.log.Info("server listening", "addr", addr)

	if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
