package events

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/soyea/cpe-manager/internal/logger"
	"github.com/soyea/cpe-manager/pkg/storage"
)

const (
	ifaceMessageManager  = "org.ofono.MessageManager"
	ifaceVoiceCallMgr    = "org.ofono.VoiceCallManager"
	ifaceVoiceCall       = "org.ofono.VoiceCall"
	signalIncomingMsg    = ifaceMessageManager + ".IncomingMessage"
	signalCallAdded      = ifaceVoiceCallMgr + ".CallAdded"
	signalCallRemoved    = ifaceVoiceCallMgr + ".CallRemoved"
	signalPropertyChange = ifaceVoiceCall + ".PropertyChanged"
)

// SmsListener subscribes to incoming-message signals on its own bus
// connection.
type SmsListener struct {
	conn  *dbus.Conn
	store *storage.Store
	sink  Sink
	log   *logger.Logger
}

// NewSmsListener wires the listener; conn must be a dedicated connection.
func NewSmsListener(conn *dbus.Conn, store *storage.Store, sink Sink, log *logger.Logger) *SmsListener {
	return &SmsListener{
		conn:  conn,
		store: store,
		sink:  sink,
		log:   log.WithComponent("sms-listener"),
	}
}

// Run subscribes and processes signals until the connection closes. Call in
// its own goroutine.
func (l *SmsListener) Run() error {
	if err := l.conn.AddMatchSignal(
		dbus.WithMatchInterface(ifaceMessageManager),
		dbus.WithMatchMember("IncomingMessage"),
	); err != nil {
		return fmt.Errorf("failed to subscribe to IncomingMessage: %w", err)
	}

	signals := make(chan *dbus.Signal, 32)
	l.conn.Signal(signals)

	l.log.Info("sms listener started")
	for sig := range signals {
		if sig.Name != signalIncomingMsg {
			continue
		}
		l.handleIncoming(sig)
	}
	return nil
}

// handleIncoming persists one IncomingMessage signal and fans it out.
// Body: (text string, info dict) with Sender and SentTime keys.
func (l *SmsListener) handleIncoming(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	text, _ := sig.Body[0].(string)
	info, _ := sig.Body[1].(map[string]dbus.Variant)

	sender := ""
	if v, ok := info["Sender"]; ok {
		sender, _ = v.Value().(string)
	}

	id, err := l.store.InsertSms("incoming", sender, text, "received", nil)
	if err != nil {
		l.log.Error("failed to store incoming sms", err, "sender", sender)
		return
	}

	msg, err := l.store.GetSms(id)
	if err != nil {
		l.log.Error("failed to reload stored sms", err, "id", id)
		return
	}

	l.log.Info("incoming sms", "sender", sender, "id", id)
	if err := l.sink.ForwardSms(&msg); err != nil {
		l.log.Warn("sms fan-out failed", "error", err.Error())
	}
}
