package notification

import (
	"context"
	"fmt"

	"backend/internal/metrics"
	"backend/internal/workflow"
)

// WebhookNotifier delivers approval events synchronously over the configured
// webhook. Satisfies workflow.Notifier.
type WebhookNotifier struct {
	sender *WebhookSender
}

// NewWebhookNotifier 创建 Webhook 通知器
func NewWebhookNotifier(sender *WebhookSender) *WebhookNotifier {
	return &WebhookNotifier{sender: sender}
}

// Notify 投递事件
func (n *WebhookNotifier) Notify(ctx context.Context, eventType string, payload map[string]any) error {
	return n.sender.Deliver(ctx, eventType, payload)
}

// Enqueuer hands webhook deliveries to the background queue.
type Enqueuer interface {
	EnqueueWebhookDelivery(eventType string, payload map[string]any) error
}

// QueueNotifier pushes events onto the task queue instead of delivering in the
// request path. The worker retries failed deliveries.
type QueueNotifier struct {
	queue Enqueuer
}

// NewQueueNotifier 创建队列通知器
func NewQueueNotifier(queue Enqueuer) *QueueNotifier {
	return &QueueNotifier{queue: queue}
}

// Notify 入队
func (n *QueueNotifier) Notify(_ context.Context, eventType string, payload map[string]any) error {
	if err := n.queue.EnqueueWebhookDelivery(eventType, payload); err != nil {
		metrics.NotificationsTotal.WithLabelValues("queue", "error").Inc()
		return fmt.Errorf("notification: 通知任务入队失败: %w", err)
	}
	metrics.NotificationsTotal.WithLabelValues("queue", "ok").Inc()
	return nil
}

// HubNotifier pushes approval events to connected approvers over WebSocket.
// Pending journals go to the members of the current step's organization;
// terminal outcomes go back to the submitter.
type HubNotifier struct {
	hub       *Hub
	routes    workflow.RouteLoader
	directory workflow.Directory
}

// NewHubNotifier 创建 WebSocket 通知器
func NewHubNotifier(hub *Hub, routes workflow.RouteLoader, directory workflow.Directory) *HubNotifier {
	return &HubNotifier{hub: hub, routes: routes, directory: directory}
}

// Notify 推送事件
func (n *HubNotifier) Notify(ctx context.Context, eventType string, payload map[string]any) error {
	users, err := n.audience(ctx, payload)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("websocket", "error").Inc()
		return err
	}
	if len(users) == 0 {
		return nil
	}
	message := map[string]any{"event": eventType, "payload": payload}
	if err := n.hub.SendToUsers(users, message); err != nil {
		metrics.NotificationsTotal.WithLabelValues("websocket", "error").Inc()
		return err
	}
	metrics.NotificationsTotal.WithLabelValues("websocket", "ok").Inc()
	return nil
}

func (n *HubNotifier) audience(ctx context.Context, payload map[string]any) ([]string, error) {
	status, _ := payload["status"].(string)
	switch status {
	case workflow.StatusPending:
		routeCode, _ := payload["route_code"].(string)
		// JSON 反序列化后数字会变成 float64
		step := 0
		switch v := payload["current_step"].(type) {
		case int:
			step = v
		case float64:
			step = int(v)
		}
		if routeCode == "" || step == 0 {
			return nil, nil
		}
		graph, err := n.routes.Graph(ctx, routeCode)
		if err != nil {
			return nil, fmt.Errorf("notification: resolve route %s: %w", routeCode, err)
		}
		routeStep, err := graph.StepAt(step)
		if err != nil {
			return nil, nil
		}
		members, err := n.directory.MembersOf(ctx, routeStep.OrganizationCode)
		if err != nil {
			return nil, fmt.Errorf("notification: resolve members of %s: %w", routeStep.OrganizationCode, err)
		}
		return members, nil
	case workflow.StatusApproved, workflow.StatusRejected, workflow.StatusDraft:
		submitter, _ := payload["submitted_by"].(string)
		if submitter == "" {
			return nil, nil
		}
		return []string{submitter}, nil
	default:
		return nil, nil
	}
}

// MultiNotifier fans one event out to several channels. Every channel gets a
// chance; the first failure is reported.
type MultiNotifier struct {
	notifiers []workflow.Notifier
}

// NewMultiNotifier 创建多通道通知器
func NewMultiNotifier(notifiers ...workflow.Notifier) *MultiNotifier {
	valid := make([]workflow.Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			valid = append(valid, n)
		}
	}
	return &MultiNotifier{notifiers: valid}
}

// Notify 逐个通道投递
func (m *MultiNotifier) Notify(ctx context.Context, eventType string, payload map[string]any) error {
	var firstErr error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, eventType, payload); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
