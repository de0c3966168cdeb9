package events

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/soyea/cpe-manager/internal/logger"
	"github.com/soyea/cpe-manager/pkg/storage"
)

type recordingSink struct {
	sms   []*storage.SmsMessage
	calls []*storage.CallRecord
}

func (r *recordingSink) ForwardSms(msg *storage.SmsMessage) error {
	r.sms = append(r.sms, msg)
	return nil
}

func (r *recordingSink) ForwardCall(call *storage.CallRecord) error {
	r.calls = append(r.calls, call)
	return nil
}

func newTestTracker(t *testing.T) (*callTracker, *storage.Store, *recordingSink) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	log, err := logger.New(logger.Config{Path: filepath.Join(t.TempDir(), "test.log")})
	if err != nil {
		t.Fatal(err)
	}

	sink := &recordingSink{}
	return newCallTracker(store, sink, log), store, sink
}

func TestIncomingCallMissed(t *testing.T) {
	tracker, store, sink := newTestTracker(t)

	tracker.callAdded("/ril_0/voicecall01", "incoming", "+12025550123")
	tracker.callRemoved("/ril_0/voicecall01")

	records, err := store.CallHistory(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("history length = %d", len(records))
	}
	rec := records[0]
	if rec.Direction != "missed" || rec.Answered || rec.Duration != 0 {
		t.Errorf("record = %+v, want missed/unanswered/0", rec)
	}
	if rec.EndTime == nil {
		t.Error("end_time not set")
	}
	if len(sink.calls) != 1 {
		t.Fatalf("sink received %d calls, want 1", len(sink.calls))
	}
	if sink.calls[0].Direction != "missed" {
		t.Errorf("forwarded direction = %s", sink.calls[0].Direction)
	}
}

func TestIncomingCallAnswered(t *testing.T) {
	tracker, store, _ := newTestTracker(t)

	base := time.Now()
	tracker.now = func() time.Time { return base }

	tracker.callAdded("/ril_0/voicecall01", "incoming", "+1")
	tracker.stateChanged("/ril_0/voicecall01", "active")

	tracker.now = func() time.Time { return base.Add(42 * time.Second) }
	tracker.callRemoved("/ril_0/voicecall01")

	records, _ := store.CallHistory(10, 0)
	if len(records) != 1 {
		t.Fatalf("history length = %d", len(records))
	}
	rec := records[0]
	if rec.Direction != "incoming" || !rec.Answered || rec.Duration != 42 {
		t.Errorf("record = %+v, want incoming/answered/42s", rec)
	}
}

func TestOutgoingCallCancelled(t *testing.T) {
	tracker, store, _ := newTestTracker(t)

	tracker.callAdded("/ril_0/voicecall01", "dialing", "+1")
	tracker.callRemoved("/ril_0/voicecall01")

	records, _ := store.CallHistory(10, 0)
	rec := records[0]
	// Unanswered outgoing stays outgoing with zero duration.
	if rec.Direction != "outgoing" || rec.Answered || rec.Duration != 0 {
		t.Errorf("record = %+v", rec)
	}
}

func TestUnknownPathIgnored(t *testing.T) {
	tracker, store, sink := newTestTracker(t)

	tracker.stateChanged("/ril_0/voicecall99", "active")
	tracker.callRemoved("/ril_0/voicecall99")

	records, _ := store.CallHistory(10, 0)
	if len(records) != 0 || len(sink.calls) != 0 {
		t.Error("untracked call should produce nothing")
	}
}

func TestRepeatedActiveDoesNotResetAnswerTime(t *testing.T) {
	tracker, store, _ := newTestTracker(t)

	base := time.Now()
	tracker.now = func() time.Time { return base }
	tracker.callAdded("/c", "incoming", "+1")
	tracker.stateChanged("/c", "active")

	tracker.now = func() time.Time { return base.Add(10 * time.Second) }
	tracker.stateChanged("/c", "active") // duplicate signal

	tracker.now = func() time.Time { return base.Add(20 * time.Second) }
	tracker.callRemoved("/c")

	records, _ := store.CallHistory(10, 0)
	if records[0].Duration != 20 {
		t.Errorf("duration = %d, want 20 (from first answer)", records[0].Duration)
	}
}
