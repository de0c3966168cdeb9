package web

import (
	"net/http"

	"github.com/soyea/cpe-manager/pkg/modem"
)

// POST /api/at {cmd}
func (s *Server) handleAtCommand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Cmd string `json:"cmd"`
	}
	if err := decodeBody(r, &req); err != nil || req.Cmd == "" {
		respondError(w, http.StatusBadRequest, "missing AT command")
		return
	}

	result, err := s.modem.SendAT(req.Cmd)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "AT command executed", map[string]string{"response": result})
}

// GET /api/device
func (s *Server) handleDeviceInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.modem.DeviceInfo()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "device info", info)
}

// GET /api/device/imeisv
func (s *Server) handleImeisv(w http.ResponseWriter, r *http.Request) {
	info, err := s.modem.IMEISV()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "imeisv", info)
}

// GET /api/sim
func (s *Server) handleSimInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.modem.SimInfo()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "sim info", info)
}

// GET /api/sim/slot
func (s *Server) handleSimSlot(w http.ResponseWriter, r *http.Request) {
	info, err := s.modem.SimSlot()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "sim slot", info)
}

// POST /api/sim/slot/switch {slot}
func (s *Server) handleSwitchSimSlot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Slot uint8 `json:"slot"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Slot != 1 && req.Slot != 2 {
		respondError(w, http.StatusBadRequest, "slot must be 1 or 2")
		return
	}

	if err := s.modem.SwitchSimSlot(req.Slot); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "sim slot switched", map[string]uint8{"slot": req.Slot})
}

// GET /api/network
func (s *Server) handleNetworkInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.modem.NetworkInfo()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "network info", info)
}

// GET /api/network/signal-strength
func (s *Server) handleSignalStrength(w http.ResponseWriter, r *http.Request) {
	strength, err := s.modem.SignalStrength()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "signal strength", map[string]uint8{"signal_strength": strength})
}

// GET /api/network/nitz
func (s *Server) handleNitz(w http.ResponseWriter, r *http.Request) {
	info, err := s.modem.NITZ()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "nitz", info)
}

// GET /api/network/operators
func (s *Server) handleOperators(w http.ResponseWriter, r *http.Request) {
	ops, err := s.modem.Operators()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "operators", ops)
}

// GET /api/network/operators/scan
func (s *Server) handleScanOperators(w http.ResponseWriter, r *http.Request) {
	ops, err := s.modem.ScanOperators()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "operator scan complete", ops)
}

// POST /api/network/register-manual {path}
func (s *Server) handleRegisterManual(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := decodeBody(r, &req); err != nil || req.Path == "" {
		respondError(w, http.StatusBadRequest, "missing operator path")
		return
	}

	if err := s.modem.RegisterManual(req.Path); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "manual registration requested", nil)
}

// POST /api/network/register-auto
func (s *Server) handleRegisterAuto(w http.ResponseWriter, r *http.Request) {
	if err := s.modem.RegisterAuto(); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "automatic registration requested", nil)
}

// GET /api/cells
func (s *Server) handleCells(w http.ResponseWriter, r *http.Request) {
	result, err := s.modem.CellInfo()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "cell info", result)
}

// GET /api/location/cell-info
func (s *Server) handleCellLocation(w http.ResponseWriter, r *http.Request) {
	result, err := s.modem.CellLocation()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "cell location info", result)
}

// GET /api/qos
func (s *Server) handleQos(w http.ResponseWriter, r *http.Request) {
	info, err := s.modem.QoS()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "qos info", info)
}

// GET /api/data
func (s *Server) handleDataStatus(w http.ResponseWriter, r *http.Request) {
	active, err := s.modem.DataConnectionStatus()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "data status", map[string]bool{"active": active})
}

// POST /api/data {active}
func (s *Server) handleSetDataStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active bool `json:"active"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.modem.SetDataConnection(req.Active); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "data connection updated", map[string]bool{"active": req.Active})
}

// GET /api/roaming
func (s *Server) handleRoamingStatus(w http.ResponseWriter, r *http.Request) {
	allowed, roaming, err := s.modem.RoamingStatus()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "roaming status", map[string]bool{
		"roaming_allowed": allowed,
		"is_roaming":      roaming,
	})
}

// POST /api/roaming {allowed}
func (s *Server) handleSetRoaming(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Allowed bool `json:"allowed"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.modem.SetRoamingAllowed(req.Allowed); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "roaming updated", map[string]bool{"roaming_allowed": req.Allowed})
}

// GET /api/airplane-mode
func (s *Server) handleAirplaneMode(w http.ResponseWriter, r *http.Request) {
	info, err := s.modem.AirplaneMode()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "airplane mode", info)
}

// POST /api/airplane-mode {enabled}
func (s *Server) handleSetAirplaneMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.modem.SetAirplaneMode(req.Enabled); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "airplane mode updated", map[string]bool{"enabled": req.Enabled})
}

// GET /api/radio-mode
func (s *Server) handleRadioMode(w http.ResponseWriter, r *http.Request) {
	info, err := s.modem.RadioMode()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "radio mode", info)
}

// POST /api/radio-mode {mode}
func (s *Server) handleSetRadioMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mode := modem.RadioMode(req.Mode)
	if err := s.modem.SetRadioMode(mode); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondOK(w, "radio mode updated", map[string]string{"mode": req.Mode})
}

// GET /api/band-lock
func (s *Server) handleBandLock(w http.ResponseWriter, r *http.Request) {
	status, err := s.modem.BandLock()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "band lock status", status)
}

// POST /api/band-lock {lte_fdd_bands, lte_tdd_bands, nr_fdd_bands, nr_tdd_bands}
func (s *Server) handleSetBandLock(w http.ResponseWriter, r *http.Request) {
	var req modem.BandLockRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.modem.SetBandLock(req); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "band lock applied", nil)
}

// GET /api/cell-lock
func (s *Server) handleCellLock(w http.ResponseWriter, r *http.Request) {
	status, err := s.modem.CellLock()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "cell lock status", status)
}

// POST /api/cell-lock {tech, arfcn, pci?}
func (s *Server) handleSetCellLock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tech  string  `json:"tech"`
		ARFCN uint32  `json:"arfcn"`
		PCI   *uint32 `json:"pci"`
	}
	if err := decodeBody(r, &req); err != nil || req.ARFCN == 0 {
		respondError(w, http.StatusBadRequest, "missing tech/arfcn")
		return
	}

	if err := s.modem.SetCellLock(req.Tech, req.ARFCN, req.PCI); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondOK(w, "cell lock applied", nil)
}

// POST /api/cell-lock/unlock-all
func (s *Server) handleUnlockAllCells(w http.ResponseWriter, r *http.Request) {
	if err := s.modem.UnlockAllCells(); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "all cell locks cleared", nil)
}

// GET /api/apn
func (s *Server) handleApnList(w http.ResponseWriter, r *http.Request) {
	contexts, err := s.modem.ApnContexts()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "apn contexts", contexts)
}

// POST /api/apn {path?, apn?, protocol?, username?, password?, auth_method?}
func (s *Server) handleSetApn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path       string  `json:"path"`
		APN        *string `json:"apn"`
		Protocol   *string `json:"protocol"`
		Username   *string `json:"username"`
		Password   *string `json:"password"`
		AuthMethod *string `json:"auth_method"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	path := req.Path
	if path == "" {
		var err error
		path, err = s.modem.FindInternetContext()
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	update := modem.ApnUpdate{
		APN:        req.APN,
		Protocol:   req.Protocol,
		Username:   req.Username,
		Password:   req.Password,
		AuthMethod: req.AuthMethod,
	}
	if err := s.modem.SetApnProperties(path, update); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "apn updated", map[string]string{"path": path})
}
