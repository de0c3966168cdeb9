package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/soyea/cpe-manager/internal/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Path: filepath.Join(t.TempDir(), "test.log")})
	if err != nil {
		t.Fatal(err)
	}
	return log
}

func TestDefaultsWrittenOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	m := NewManager(path, testLogger(t))

	cfg := m.Webhook()
	if cfg.Enabled {
		t.Error("webhook should default to disabled")
	}
	if !cfg.ForwardSms || !cfg.ForwardCalls {
		t.Error("forwarding should default to enabled for both")
	}
	if cfg.SmsTemplate == "" || cfg.CallTemplate == "" {
		t.Error("default templates missing")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	var onDisk AppConfig
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("written config not valid JSON: %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	log := testLogger(t)

	m := NewManager(path, log)
	want := WebhookConfig{
		Enabled:      true,
		URL:          "https://example.com/hook",
		ForwardSms:   true,
		ForwardCalls: false,
		Headers:      map[string]string{"X-Token": "abc"},
		Secret:       "s3cret",
		SmsTemplate:  `{"text":"{{content}}"}`,
		CallTemplate: `{"text":"{{phone_number}}"}`,
	}
	if err := m.SetWebhook(want); err != nil {
		t.Fatal(err)
	}

	// A fresh manager over the same file sees the saved config.
	m2 := NewManager(path, log)
	got := m2.Webhook()
	if got.URL != want.URL || !got.Enabled || got.ForwardCalls ||
		got.Headers["X-Token"] != "abc" || got.Secret != "s3cret" {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestCorruptFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(path, testLogger(t))
	cfg := m.Webhook()
	if cfg.Enabled || cfg.URL != "" {
		t.Errorf("expected defaults after parse failure, got %+v", cfg)
	}
}

func TestWebhookReturnsCopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	m := NewManager(path, testLogger(t))

	cfg := m.Webhook()
	cfg.Headers["mutated"] = "yes"

	if _, ok := m.Webhook().Headers["mutated"]; ok {
		t.Error("header map mutation leaked into the snapshot")
	}
}

func TestEmptyTemplatesRestoredOnLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{"webhook":{"enabled":true,"url":"http://x","forward_sms":true,"forward_calls":true}}`
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(path, testLogger(t))
	cfg := m.Webhook()
	if cfg.SmsTemplate == "" || cfg.CallTemplate == "" || cfg.Headers == nil {
		t.Errorf("defaults not applied to sparse file: %+v", cfg)
	}
}
