package storage

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSmsRoundTrip(t *testing.T) {
	store := openTestStore(t)

	id, err := store.InsertSms("incoming", "+12025550123", "hello", "received", nil)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}

	msg, err := store.GetSms(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if msg.Direction != "incoming" || msg.PhoneNumber != "+12025550123" ||
		msg.Content != "hello" || msg.Status != "received" || msg.PDU != nil {
		t.Errorf("unexpected row: %+v", msg)
	}
	if msg.Timestamp == "" {
		t.Error("timestamp not set")
	}
}

func TestSmsListAndConversation(t *testing.T) {
	store := openTestStore(t)

	for i := 0; i < 3; i++ {
		if _, err := store.InsertSms("incoming", "+1", "a", "received", nil); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := store.InsertSms("outgoing", "+2", "b", "sent", nil); err != nil {
		t.Fatal(err)
	}

	all, err := store.SmsMessages(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Errorf("list length = %d, want 4", len(all))
	}

	conv, err := store.SmsConversation("+1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(conv) != 3 {
		t.Errorf("conversation length = %d, want 3", len(conv))
	}

	paged, err := store.SmsMessages(2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(paged) != 2 {
		t.Errorf("paged length = %d, want 2", len(paged))
	}
}

func TestSmsStatsAndClear(t *testing.T) {
	store := openTestStore(t)

	store.InsertSms("incoming", "+1", "a", "received", nil)
	store.InsertSms("incoming", "+1", "b", "received", nil)
	store.InsertSms("outgoing", "+2", "c", "sent", nil)

	stats, err := store.SmsStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 3 || stats.Incoming != 2 || stats.Outgoing != 1 {
		t.Errorf("stats = %+v", stats)
	}

	if err := store.ClearSms(); err != nil {
		t.Fatal(err)
	}
	stats, _ = store.SmsStats()
	if stats.Total != 0 {
		t.Errorf("total after clear = %d", stats.Total)
	}
}

func TestCallLifecycleAnswered(t *testing.T) {
	store := openTestStore(t)

	id, err := store.InsertCall("incoming", "+12025550123", false)
	if err != nil {
		t.Fatal(err)
	}

	if err := store.UpdateCallEnd(id, 42, true); err != nil {
		t.Fatal(err)
	}

	rec, err := store.GetCall(id)
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Answered || rec.Duration != 42 || rec.Direction != "incoming" {
		t.Errorf("record = %+v", rec)
	}
	if rec.EndTime == nil {
		t.Error("end_time not set")
	}
}

func TestCallMissedInvariant(t *testing.T) {
	store := openTestStore(t)

	id, _ := store.InsertCall("incoming", "+1", false)
	if err := store.MarkCallMissed(id); err != nil {
		t.Fatal(err)
	}

	rec, err := store.GetCall(id)
	if err != nil {
		t.Fatal(err)
	}
	// missed => answered=false and duration stays 0
	if rec.Direction != "missed" || rec.Answered || rec.Duration != 0 {
		t.Errorf("record = %+v", rec)
	}
	if rec.EndTime == nil {
		t.Error("end_time not set on missed call")
	}
}

func TestCallStatsAnsweredOnlyDuration(t *testing.T) {
	store := openTestStore(t)

	id1, _ := store.InsertCall("incoming", "+1", false)
	store.UpdateCallEnd(id1, 30, true)

	id2, _ := store.InsertCall("outgoing", "+2", false)
	store.UpdateCallEnd(id2, 0, false) // rejected, unanswered

	id3, _ := store.InsertCall("incoming", "+3", false)
	store.MarkCallMissed(id3)

	stats, err := store.CallStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 3 || stats.Incoming != 1 || stats.Outgoing != 1 || stats.Missed != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.TotalDuration != 30 {
		t.Errorf("total duration = %d, want 30 (answered rows only)", stats.TotalDuration)
	}
}

func TestDeleteAndClearCalls(t *testing.T) {
	store := openTestStore(t)

	id, _ := store.InsertCall("incoming", "+1", false)
	store.InsertCall("outgoing", "+2", false)

	if err := store.DeleteCall(id); err != nil {
		t.Fatal(err)
	}
	records, _ := store.CallHistory(10, 0)
	if len(records) != 1 {
		t.Errorf("history length = %d, want 1", len(records))
	}

	if err := store.ClearCalls(); err != nil {
		t.Fatal(err)
	}
	records, _ = store.CallHistory(10, 0)
	if len(records) != 0 {
		t.Errorf("history length after clear = %d", len(records))
	}
}
