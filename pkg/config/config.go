// Package config persists user configuration as pretty JSON with an
// in-memory snapshot behind a read-write lock. Readers never touch disk.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/soyea/cpe-manager/internal/logger"
)

// WebhookConfig controls SMS/call forwarding to an external endpoint.
type WebhookConfig struct {
	Enabled      bool              `json:"enabled"`
	URL          string            `json:"url"`
	ForwardSms   bool              `json:"forward_sms"`
	ForwardCalls bool              `json:"forward_calls"`
	Headers      map[string]string `json:"headers"`
	Secret       string            `json:"secret"`
	SmsTemplate  string            `json:"sms_template"`
	CallTemplate string            `json:"call_template"`
}

// Default payload templates target the Feishu bot text format.
const defaultSmsTemplate = `{
  "msg_type": "text",
  "content": {
    "text": "📱 短信通知\n发送方: {{phone_number}}\n内容: {{content}}\n时间: {{timestamp}}"
  }
}`

const defaultCallTemplate = `{
  "msg_type": "text",
  "content": {
    "text": "📞 来电通知\n号码: {{phone_number}}\n类型: {{direction}}\n时间: {{start_time}}\n时长: {{duration}}秒\n已接听: {{answered}}"
  }
}`

// DefaultWebhookConfig returns the disabled-but-forwarding-both default.
func DefaultWebhookConfig() WebhookConfig {
	return WebhookConfig{
		ForwardSms:   true,
		ForwardCalls: true,
		Headers:      map[string]string{},
		SmsTemplate:  defaultSmsTemplate,
		CallTemplate: defaultCallTemplate,
	}
}

// AppConfig is everything the user can persist.
type AppConfig struct {
	Webhook WebhookConfig `json:"webhook"`
}

// Manager holds the config snapshot and its backing file.
type Manager struct {
	mu     sync.RWMutex
	config AppConfig
	path   string
}

// NewManager loads the config file, falling back to defaults on a missing
// or unparsable file. Defaults are written out when no file existed.
func NewManager(path string, log *logger.Logger) *Manager {
	m := &Manager{
		config: AppConfig{Webhook: DefaultWebhookConfig()},
		path:   path,
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var cfg AppConfig
		if jsonErr := json.Unmarshal(data, &cfg); jsonErr != nil {
			log.Warn("failed to parse config file, using defaults", "error", jsonErr.Error())
		} else {
			applyTemplateDefaults(&cfg.Webhook)
			m.config = cfg
		}
	case os.IsNotExist(err):
		log.Info("no config file found, using defaults", "path", path)
		if saveErr := m.Save(); saveErr != nil {
			log.Warn("failed to write default config", "error", saveErr.Error())
		}
	default:
		log.Warn("failed to read config file, using defaults", "error", err.Error())
	}

	return m
}

// applyTemplateDefaults restores embedded defaults for fields the file left
// empty, matching the serde default behavior of older config files.
func applyTemplateDefaults(w *WebhookConfig) {
	if w.Headers == nil {
		w.Headers = map[string]string{}
	}
	if w.SmsTemplate == "" {
		w.SmsTemplate = defaultSmsTemplate
	}
	if w.CallTemplate == "" {
		w.CallTemplate = defaultCallTemplate
	}
}

// Webhook returns a copy of the current webhook configuration.
func (m *Manager) Webhook() WebhookConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg := m.config.Webhook
	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	cfg.Headers = headers
	return cfg
}

// SetWebhook swaps the webhook config and persists. Readers see the new
// value before the file write completes.
func (m *Manager) SetWebhook(cfg WebhookConfig) error {
	applyTemplateDefaults(&cfg)
	m.mu.Lock()
	m.config.Webhook = cfg
	m.mu.Unlock()
	return m.Save()
}

// Save writes the current snapshot as pretty JSON.
func (m *Manager) Save() error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m.config, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if dir := filepath.Dir(m.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// DefaultPath prefers the device persistent directory, else the binary's
// directory.
func DefaultPath() string {
	devicePath := "/data/config.json"
	if info, err := os.Stat(filepath.Dir(devicePath)); err == nil && info.IsDir() {
		return devicePath
	}

	exe, err := os.Executable()
	if err != nil {
		return "config.json"
	}
	return filepath.Join(filepath.Dir(exe), "config.json")
}
