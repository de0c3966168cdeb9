package web

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// GET /api/calls
func (s *Server) handleCalls(w http.ResponseWriter, r *http.Request) {
	calls, err := s.modem.ListCalls()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "active calls", calls)
}

// POST /api/call/dial {number}
func (s *Server) handleDial(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Number string `json:"number"`
	}
	if err := decodeBody(r, &req); err != nil || req.Number == "" {
		respondError(w, http.StatusBadRequest, "missing phone number")
		return
	}

	call, err := s.modem.Dial(req.Number)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "dialing", call)
}

// POST /api/call/hangup {path}
func (s *Server) handleHangup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := decodeBody(r, &req); err != nil || req.Path == "" {
		respondError(w, http.StatusBadRequest, "missing call path")
		return
	}

	if err := s.modem.Hangup(req.Path); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "call hung up", nil)
}

// POST /api/call/hangup-all
func (s *Server) handleHangupAll(w http.ResponseWriter, r *http.Request) {
	count, err := s.modem.HangupAll()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "all calls hung up", map[string]int{"count": count})
}

// POST /api/call/answer {path}
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := decodeBody(r, &req); err != nil || req.Path == "" {
		respondError(w, http.StatusBadRequest, "missing call path")
		return
	}

	if err := s.modem.Answer(req.Path); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "call answered", nil)
}

// GET /api/call/volume
func (s *Server) handleCallVolume(w http.ResponseWriter, r *http.Request) {
	info, err := s.modem.CallVolume()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "call volume", info)
}

// POST /api/call/volume {muted?, speaker_volume?, microphone_volume?}
func (s *Server) handleSetCallVolume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Muted            *bool  `json:"muted"`
		SpeakerVolume    *uint8 `json:"speaker_volume"`
		MicrophoneVolume *uint8 `json:"microphone_volume"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Muted != nil {
		if err := s.modem.SetCallVolume("Muted", *req.Muted); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if req.SpeakerVolume != nil {
		if err := s.modem.SetCallVolume("SpeakerVolume", *req.SpeakerVolume); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if req.MicrophoneVolume != nil {
		if err := s.modem.SetCallVolume("MicrophoneVolume", *req.MicrophoneVolume); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	respondOK(w, "call volume updated", nil)
}

// GET /api/call/forwarding
func (s *Server) handleCallForwarding(w http.ResponseWriter, r *http.Request) {
	info, err := s.modem.CallForwarding()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "call forwarding", info)
}

// POST /api/call/forwarding {type, number}
func (s *Server) handleSetCallForwarding(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type   string `json:"type"`
		Number string `json:"number"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.modem.SetCallForwarding(req.Type, req.Number); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondOK(w, "call forwarding updated", nil)
}

// GET /api/call/settings
func (s *Server) handleCallSettings(w http.ResponseWriter, r *http.Request) {
	info, err := s.modem.CallSettings()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "call settings", info)
}

// POST /api/call/settings {call_waiting}
func (s *Server) handleSetCallSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CallWaiting *bool `json:"call_waiting"`
	}
	if err := decodeBody(r, &req); err != nil || req.CallWaiting == nil {
		respondError(w, http.StatusBadRequest, "missing call_waiting")
		return
	}

	if err := s.modem.SetCallWaiting(*req.CallWaiting); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "call settings updated", nil)
}

// GET /api/call/history?limit=&offset=
func (s *Server) handleCallHistory(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 50)
	records, err := s.store.CallHistory(limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	stats, err := s.store.CallStats()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "call history", map[string]interface{}{
		"records": records,
		"stats":   stats,
	})
}

// DELETE /api/call/history/{id}
func (s *Server) handleDeleteCallHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid record id")
		return
	}

	if err := s.store.DeleteCall(id); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "call record deleted", nil)
}

// POST /api/call/history/clear
func (s *Server) handleClearCallHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ClearCalls(); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "call history cleared", nil)
}

// POST /api/sms/send {to, content}
func (s *Server) handleSendSms(w http.ResponseWriter, r *http.Request) {
	var req struct {
		To      string `json:"to"`
		Content string `json:"content"`
	}
	if err := decodeBody(r, &req); err != nil || req.To == "" || req.Content == "" {
		respondError(w, http.StatusBadRequest, "missing to/content")
		return
	}

	path, err := s.modem.SendSMS(req.To, req.Content)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Outbound sends are persisted as sent; delivery tracking is the
	// network's problem.
	if _, err := s.store.InsertSms("outgoing", req.To, req.Content, "sent", nil); err != nil {
		s.log.Warn("failed to store outgoing sms", "error", err.Error())
	}

	respondOK(w, "sms sent", map[string]string{"message_path": path})
}

// GET /api/sms/list?limit=&offset=
func (s *Server) handleSmsList(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 50)
	messages, err := s.store.SmsMessages(limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "sms list", messages)
}

// GET /api/sms/conversation?number=&limit=
func (s *Server) handleSmsConversation(w http.ResponseWriter, r *http.Request) {
	number := r.URL.Query().Get("number")
	if number == "" {
		respondError(w, http.StatusBadRequest, "missing number")
		return
	}
	limit, _ := pagination(r, 100)

	messages, err := s.store.SmsConversation(number, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "sms conversation", messages)
}

// GET /api/sms/stats
func (s *Server) handleSmsStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.SmsStats()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "sms stats", stats)
}

// POST /api/sms/clear
func (s *Server) handleClearSms(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ClearSms(); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "sms cleared", nil)
}

// GET /api/ims/status
func (s *Server) handleImsStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.modem.IMSStatus()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "ims status", status)
}

// GET /api/voicemail/status
func (s *Server) handleVoicemailStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.modem.VoicemailStatus()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "voicemail status", status)
}

// pagination parses limit/offset query params with a default page size.
func pagination(r *http.Request, defaultLimit int64) (int64, int64) {
	limit := defaultLimit
	offset := int64(0)
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
