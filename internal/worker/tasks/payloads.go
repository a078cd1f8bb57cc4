package tasks

// Task Types
const (
	TypeDeliverWebhook = "notify:deliver_webhook"
)

// DeliverWebhookPayload 审批事件 Webhook 投递任务载荷
type DeliverWebhookPayload struct {
	EventType string         `json:"event_type"`
	Payload   map[string]any `json:"payload"`
}
