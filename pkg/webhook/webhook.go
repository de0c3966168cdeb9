// Package webhook forwards SMS and call events to a user-configured HTTP
// endpoint with {{name}}-templated JSON payloads. The sender is stateless
// between events and re-reads the configuration on every dispatch.
package webhook

import (
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/soyea/cpe-manager/pkg/config"
	"github.com/soyea/cpe-manager/pkg/storage"
)

// Sender posts rendered payloads to the configured endpoint.
type Sender struct {
	client *http.Client
	config *config.Manager
}

// New creates a sender over the config manager.
func New(cfg *config.Manager) *Sender {
	return &Sender{
		client: &http.Client{Timeout: 10 * time.Second},
		config: cfg,
	}
}

// ForwardSms dispatches one stored message. Disabled or filtered configs
// drop silently; delivery failures are returned and never retried.
func (s *Sender) ForwardSms(msg *storage.SmsMessage) error {
	cfg := s.config.Webhook()
	if !cfg.Enabled || !cfg.ForwardSms || cfg.URL == "" {
		return nil
	}
	return s.send(&cfg, RenderSmsTemplate(cfg.SmsTemplate, msg))
}

// ForwardCall dispatches one finalized call record.
func (s *Sender) ForwardCall(call *storage.CallRecord) error {
	cfg := s.config.Webhook()
	if !cfg.Enabled || !cfg.ForwardCalls || cfg.URL == "" {
		return nil
	}
	return s.send(&cfg, RenderCallTemplate(cfg.CallTemplate, call))
}

// Test renders the SMS template with a synthetic message and sends once,
// regardless of the enabled flag.
func (s *Sender) Test() (string, error) {
	cfg := s.config.Webhook()
	if cfg.URL == "" {
		return "", fmt.Errorf("webhook URL is not configured")
	}

	msg := &storage.SmsMessage{
		Direction:   "incoming",
		PhoneNumber: "+8613800138000",
		Content:     "这是一条测试短信 (Webhook Test)",
		Timestamp:   time.Now().UTC().Format("2006-01-02 15:04:05"),
		Status:      "received",
	}

	if err := s.send(&cfg, RenderSmsTemplate(cfg.SmsTemplate, msg)); err != nil {
		return "", err
	}
	return "webhook test successful", nil
}

// send posts the payload with configured headers and, when a secret is set,
// the signature header.
func (s *Sender) send(cfg *config.WebhookConfig, payload string) error {
	req, err := http.NewRequest(http.MethodPost, cfg.URL, strings.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}

	for key, value := range cfg.Headers {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/json")

	if cfg.Secret != "" {
		req.Header.Set("X-Webhook-Signature", Signature(cfg.Secret, payload))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// RenderSmsTemplate substitutes message fields into {{name}} placeholders.
// Aliases: sender->phone_number, message->content, time->timestamp.
func RenderSmsTemplate(template string, msg *storage.SmsMessage) string {
	content := escapeJSONString(msg.Content)
	r := strings.NewReplacer(
		"{{id}}", strconv.FormatInt(msg.ID, 10),
		"{{phone_number}}", msg.PhoneNumber,
		"{{content}}", content,
		"{{direction}}", msg.Direction,
		"{{timestamp}}", msg.Timestamp,
		"{{status}}", msg.Status,
		"{{sender}}", msg.PhoneNumber,
		"{{message}}", content,
		"{{time}}", msg.Timestamp,
	)
	return r.Replace(template)
}

// RenderCallTemplate substitutes call fields into {{name}} placeholders.
// Aliases: caller->phone_number, time->start_time.
func RenderCallTemplate(template string, call *storage.CallRecord) string {
	endTime := ""
	if call.EndTime != nil {
		endTime = *call.EndTime
	}
	answered := "否"
	if call.Answered {
		answered = "是"
	}
	directionCN := "去电"
	if call.Direction == "incoming" {
		directionCN = "来电"
	}

	r := strings.NewReplacer(
		"{{id}}", strconv.FormatInt(call.ID, 10),
		"{{phone_number}}", call.PhoneNumber,
		"{{direction}}", call.Direction,
		"{{direction_cn}}", directionCN,
		"{{duration}}", strconv.FormatInt(call.Duration, 10),
		"{{start_time}}", call.StartTime,
		"{{end_time}}", endTime,
		"{{answered}}", answered,
		"{{answered_bool}}", strconv.FormatBool(call.Answered),
		"{{caller}}", call.PhoneNumber,
		"{{time}}", call.StartTime,
	)
	return r.Replace(template)
}

// escapeJSONString escapes the characters that would break a JSON string
// literal; everything else passes through untouched.
func escapeJSONString(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\r", `\r`,
		"\t", `\t`,
	)
	return r.Replace(s)
}

// Signature derives the tamper-hint header value: a 64-bit FNV-1a hash of
// secret∥body, 16 lowercase hex chars. This is NOT an HMAC and provides no
// real integrity guarantee; receivers treat it as advisory only.
func Signature(secret, body string) string {
	h := fnv.New64a()
	h.Write([]byte(secret))
	h.Write([]byte(body))
	return fmt.Sprintf("%016x", h.Sum64())
}
