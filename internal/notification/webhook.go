package notification

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"backend/internal/metrics"
)

// WebhookConfig Webhook 投递配置
type WebhookConfig struct {
	URL     string
	Secret  string
	Timeout time.Duration
	Headers map[string]string
}

// WebhookSender posts approval events to an external endpoint. Requests are
// signed with HMAC-SHA256 over the body when a secret is configured.
type WebhookSender struct {
	config *WebhookConfig
	client *http.Client
}

// NewWebhookSender 创建 Webhook 投递器
func NewWebhookSender(config *WebhookConfig) *WebhookSender {
	if config == nil {
		config = &WebhookConfig{}
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSender{
		config: config,
		client: &http.Client{Timeout: timeout},
	}
}

// Deliver posts one event. The body carries the event type, the payload and a
// delivery timestamp.
func (w *WebhookSender) Deliver(ctx context.Context, eventType string, payload map[string]any) error {
	if w.config.URL == "" {
		return fmt.Errorf("notification: webhook URL 未配置")
	}

	body, err := json.Marshal(map[string]any{
		"event":     eventType,
		"payload":   payload,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("notification: 序列化 Webhook 负载失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notification: 创建 Webhook 请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Bookkeep-Notifier/1.0")
	if w.config.Secret != "" {
		req.Header.Set("X-Bookkeep-Signature", sign(w.config.Secret, body))
	}
	for key, value := range w.config.Headers {
		req.Header.Set(key, value)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("webhook", "error").Inc()
		return fmt.Errorf("notification: 发送 Webhook 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.NotificationsTotal.WithLabelValues("webhook", "error").Inc()
		return fmt.Errorf("notification: Webhook 返回错误状态: %d", resp.StatusCode)
	}
	metrics.NotificationsTotal.WithLabelValues("webhook", "ok").Inc()
	return nil
}

// sign computes the hex HMAC-SHA256 of the body.
func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a received signature against the body. For endpoint
// implementers and tests.
func VerifySignature(secret string, body []byte, signature string) bool {
	expected := sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
