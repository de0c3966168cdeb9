package web

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/soyea/cpe-manager/internal/logger"
	"github.com/soyea/cpe-manager/pkg/storage"
)

// eventFrame is what the hub pushes to UI clients.
type eventFrame struct {
	Type string      `json:"type"` // sms / call
	Data interface{} `json:"data"`
}

// Hub broadcasts normalized SMS/call events to connected websocket clients.
// It satisfies the event sink interface, so the ingestor feeds it directly.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*websocket.Conn]bool
	upgrader websocket.Upgrader
	log      *logger.Logger
}

// NewHub creates the hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log.WithComponent("ws-hub"),
	}
}

// handleWebSocket upgrades the connection and parks it in the client set.
// Client reads are drained and discarded; the stream is push-only.
func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err.Error())
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

// broadcast sends one frame to every client, dropping the ones that fail.
func (h *Hub) broadcast(frame eventFrame) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteJSON(frame); err != nil {
			h.drop(conn)
		}
	}
}

// ForwardSms pushes a stored message to connected clients.
func (h *Hub) ForwardSms(msg *storage.SmsMessage) error {
	h.broadcast(eventFrame{Type: "sms", Data: msg})
	return nil
}

// ForwardCall pushes a finalized call record to connected clients.
func (h *Hub) ForwardCall(call *storage.CallRecord) error {
	h.broadcast(eventFrame{Type: "call", Data: call})
	return nil
}
