package webhook

import (
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/soyea/cpe-manager/internal/logger"
	"github.com/soyea/cpe-manager/pkg/config"
	"github.com/soyea/cpe-manager/pkg/storage"
)

func TestRenderSmsTemplateEscaping(t *testing.T) {
	template := `{"text":"from {{sender}}: {{message}}"}`
	msg := &storage.SmsMessage{
		PhoneNumber: "+1",
		Content:     "hi\n\"you\"",
	}

	got := RenderSmsTemplate(template, msg)
	want := `{"text":"from +1: hi\n\"you\""}`
	if got != want {
		t.Errorf("rendered = %s, want %s", got, want)
	}
}

func TestRenderSmsTemplateIdempotent(t *testing.T) {
	template := `{"id":{{id}},"dir":"{{direction}}","at":"{{timestamp}}","st":"{{status}}"}`
	msg := &storage.SmsMessage{
		ID: 7, Direction: "incoming", PhoneNumber: "+1",
		Content: "x", Timestamp: "2024-01-01T00:00:00Z", Status: "received",
	}
	first := RenderSmsTemplate(template, msg)
	second := RenderSmsTemplate(template, msg)
	if first != second {
		t.Errorf("rendering not deterministic: %q vs %q", first, second)
	}
	if first != `{"id":7,"dir":"incoming","at":"2024-01-01T00:00:00Z","st":"received"}` {
		t.Errorf("rendered = %s", first)
	}
}

func TestRenderCallTemplate(t *testing.T) {
	end := "2024-01-01T00:01:00Z"
	call := &storage.CallRecord{
		ID: 3, Direction: "incoming", PhoneNumber: "+86138",
		Duration: 60, StartTime: "2024-01-01T00:00:00Z", EndTime: &end, Answered: true,
	}

	template := `{{caller}}|{{direction_cn}}|{{duration}}|{{answered}}|{{answered_bool}}|{{end_time}}|{{time}}`
	got := RenderCallTemplate(template, call)
	want := `+86138|来电|60|是|true|2024-01-01T00:01:00Z|2024-01-01T00:00:00Z`
	if got != want {
		t.Errorf("rendered = %s, want %s", got, want)
	}

	call.Direction = "outgoing"
	call.Answered = false
	call.EndTime = nil
	got = RenderCallTemplate(`{{direction_cn}}|{{answered}}|{{end_time}}`, call)
	if got != "去电|否|" {
		t.Errorf("rendered = %s", got)
	}
}

func TestSignatureShape(t *testing.T) {
	sig := Signature("secret", `{"a":1}`)
	if len(sig) != 16 {
		t.Fatalf("signature length = %d, want 16", len(sig))
	}
	for _, r := range sig {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			t.Fatalf("signature %q not lowercase hex", sig)
		}
	}
	// Deterministic, and sensitive to both inputs.
	if sig != Signature("secret", `{"a":1}`) {
		t.Error("signature not deterministic")
	}
	if sig == Signature("other", `{"a":1}`) || sig == Signature("secret", `{"a":2}`) {
		t.Error("signature ignores input")
	}
}

func newTestSender(t *testing.T, cfg config.WebhookConfig) *Sender {
	t.Helper()
	log, err := logger.New(logger.Config{Path: filepath.Join(t.TempDir(), "test.log")})
	if err != nil {
		t.Fatal(err)
	}
	manager := config.NewManager(filepath.Join(t.TempDir(), "config.json"), log)
	if err := manager.SetWebhook(cfg); err != nil {
		t.Fatal(err)
	}
	return New(manager)
}

func TestForwardSmsPostsRenderedBody(t *testing.T) {
	var gotBody string
	var gotSig string
	var gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotSig = r.Header.Get("X-Webhook-Signature")
		gotHeader = r.Header.Get("X-Custom")
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s", ct)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := newTestSender(t, config.WebhookConfig{
		Enabled:      true,
		URL:          server.URL,
		ForwardSms:   true,
		ForwardCalls: true,
		Headers:      map[string]string{"X-Custom": "v1"},
		Secret:       "k",
		SmsTemplate:  `{"text":"{{content}}"}`,
		CallTemplate: `{}`,
	})

	msg := &storage.SmsMessage{Content: "hello", PhoneNumber: "+1"}
	if err := sender.ForwardSms(msg); err != nil {
		t.Fatal(err)
	}

	if gotBody != `{"text":"hello"}` {
		t.Errorf("body = %s", gotBody)
	}
	if gotSig != Signature("k", gotBody) {
		t.Errorf("signature = %s", gotSig)
	}
	if gotHeader != "v1" {
		t.Errorf("custom header = %s", gotHeader)
	}
}

func TestForwardDropsWhenDisabled(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	sender := newTestSender(t, config.WebhookConfig{
		Enabled:    false,
		URL:        server.URL,
		ForwardSms: true,
	})
	if err := sender.ForwardSms(&storage.SmsMessage{}); err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("disabled webhook must not fire")
	}
}

func TestForwardErrorOnNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	sender := newTestSender(t, config.WebhookConfig{
		Enabled:     true,
		URL:         server.URL,
		ForwardSms:  true,
		SmsTemplate: `{}`,
	})
	if err := sender.ForwardSms(&storage.SmsMessage{}); err == nil {
		t.Error("expected error on 502")
	}
}

func TestTestModeIgnoresEnabledFlag(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	sender := newTestSender(t, config.WebhookConfig{
		Enabled:     false,
		URL:         server.URL,
		SmsTemplate: `{"text":"{{content}}"}`,
	})
	if _, err := sender.Test(); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Error("test mode must fire even when disabled")
	}
}
