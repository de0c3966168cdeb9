package events

import (
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/soyea/cpe-manager/internal/logger"
	"github.com/soyea/cpe-manager/pkg/storage"
)

// activeCall is the in-flight state of one tracked call between CallAdded
// and CallRemoved.
type activeCall struct {
	rowID      int64
	direction  string // incoming / outgoing
	answered   bool
	answerTime time.Time
}

// callTracker drives the per-call state machine against the store. It is
// separate from the D-Bus plumbing so the transitions are testable.
type callTracker struct {
	store *storage.Store
	sink  Sink
	log   *logger.Logger
	calls map[string]*activeCall
	now   func() time.Time
}

func newCallTracker(store *storage.Store, sink Sink, log *logger.Logger) *callTracker {
	return &callTracker{
		store: store,
		sink:  sink,
		log:   log,
		calls: make(map[string]*activeCall),
		now:   time.Now,
	}
}

// callAdded opens a history row at ring/dial time.
func (t *callTracker) callAdded(path, state, number string) {
	direction := "outgoing"
	if state == "incoming" || state == "waiting" {
		direction = "incoming"
	}

	id, err := t.store.InsertCall(direction, number, false)
	if err != nil {
		t.log.Error("failed to store call", err, "path", path)
		return
	}

	t.calls[path] = &activeCall{rowID: id, direction: direction}
	t.log.Info("call added", "path", path, "direction", direction, "number", number)
}

// stateChanged records the answer transition.
func (t *callTracker) stateChanged(path, state string) {
	call, ok := t.calls[path]
	if !ok {
		return
	}
	if state == "active" && !call.answered {
		call.answered = true
		call.answerTime = t.now()
		t.log.Info("call answered", "path", path)
	}
}

// callRemoved finalizes the row: answered calls get their duration,
// unanswered incoming calls become missed, unanswered outgoing calls close
// with zero duration. The finalized row goes to the sink.
func (t *callTracker) callRemoved(path string) {
	call, ok := t.calls[path]
	if !ok {
		return
	}
	delete(t.calls, path)

	var err error
	switch {
	case call.answered:
		duration := int64(t.now().Sub(call.answerTime).Seconds())
		if duration < 0 {
			duration = 0
		}
		err = t.store.UpdateCallEnd(call.rowID, duration, true)
	case call.direction == "incoming":
		err = t.store.MarkCallMissed(call.rowID)
	default:
		err = t.store.UpdateCallEnd(call.rowID, 0, false)
	}
	if err != nil {
		t.log.Error("failed to finalize call", err, "path", path)
		return
	}

	record, err := t.store.GetCall(call.rowID)
	if err != nil {
		t.log.Error("failed to reload call record", err, "id", call.rowID)
		return
	}

	t.log.Info("call ended", "path", path, "direction", record.Direction,
		"duration", record.Duration, "answered", record.Answered)
	if err := t.sink.ForwardCall(&record); err != nil {
		t.log.Warn("call fan-out failed", "error", err.Error())
	}
}

// CallListener subscribes to voice-call lifecycle signals on its own bus
// connection.
type CallListener struct {
	conn    *dbus.Conn
	tracker *callTracker
	log     *logger.Logger
}

// NewCallListener wires the listener; conn must be a dedicated connection.
func NewCallListener(conn *dbus.Conn, store *storage.Store, sink Sink, log *logger.Logger) *CallListener {
	clog := log.WithComponent("call-listener")
	return &CallListener{
		conn:    conn,
		tracker: newCallTracker(store, sink, clog),
		log:     clog,
	}
}

// Run subscribes and processes signals until the connection closes. Call in
// its own goroutine. Store writes happen in signal delivery order; this
// loop is the only writer for call rows.
func (l *CallListener) Run() error {
	if err := l.conn.AddMatchSignal(
		dbus.WithMatchInterface(ifaceVoiceCallMgr),
	); err != nil {
		return fmt.Errorf("failed to subscribe to VoiceCallManager: %w", err)
	}
	if err := l.conn.AddMatchSignal(
		dbus.WithMatchInterface(ifaceVoiceCall),
		dbus.WithMatchMember("PropertyChanged"),
	); err != nil {
		return fmt.Errorf("failed to subscribe to VoiceCall: %w", err)
	}

	signals := make(chan *dbus.Signal, 32)
	l.conn.Signal(signals)

	l.log.Info("call listener started")
	for sig := range signals {
		switch sig.Name {
		case signalCallAdded:
			l.handleCallAdded(sig)
		case signalCallRemoved:
			l.handleCallRemoved(sig)
		case signalPropertyChange:
			l.handlePropertyChanged(sig)
		}
	}
	return nil
}

// handleCallAdded unpacks (path, props) and opens the row.
func (l *CallListener) handleCallAdded(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	path, _ := sig.Body[0].(dbus.ObjectPath)
	props, _ := sig.Body[1].(map[string]dbus.Variant)

	state := ""
	number := ""
	if v, ok := props["State"]; ok {
		state, _ = v.Value().(string)
	}
	if v, ok := props["LineIdentification"]; ok {
		number, _ = v.Value().(string)
	}

	l.tracker.callAdded(string(path), state, number)
}

// handleCallRemoved unpacks (path) and finalizes the row.
func (l *CallListener) handleCallRemoved(sig *dbus.Signal) {
	if len(sig.Body) < 1 {
		return
	}
	path, _ := sig.Body[0].(dbus.ObjectPath)
	l.tracker.callRemoved(string(path))
}

// handlePropertyChanged watches per-call State transitions; the signal path
// is the call object path.
func (l *CallListener) handlePropertyChanged(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	name, _ := sig.Body[0].(string)
	if name != "State" {
		return
	}
	value, _ := sig.Body[1].(dbus.Variant)
	state, _ := value.Value().(string)
	l.tracker.stateChanged(string(sig.Path), state)
}
