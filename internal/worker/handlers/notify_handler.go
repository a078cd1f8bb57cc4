package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"backend/internal/notification"
	"backend/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// NotifyHandler 执行队列中的 Webhook 投递任务
type NotifyHandler struct {
	sender *notification.WebhookSender
	logger *zap.Logger
}

// NewNotifyHandler 创建处理器
func NewNotifyHandler(sender *notification.WebhookSender, logger *zap.Logger) *NotifyHandler {
	return &NotifyHandler{sender: sender, logger: logger}
}

// HandleDeliverWebhook 投递一条审批事件。失败时返回错误交给 asynq 重试。
func (h *NotifyHandler) HandleDeliverWebhook(ctx context.Context, task *asynq.Task) error {
	var payload tasks.DeliverWebhookPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		// 载荷损坏无法重试，直接跳过
		return fmt.Errorf("unmarshal payload: %w: %w", asynq.SkipRetry, err)
	}

	if err := h.sender.Deliver(ctx, payload.EventType, payload.Payload); err != nil {
		h.logger.Warn("Webhook 投递失败，等待重试",
			zap.String("event", payload.EventType),
			zap.Error(err),
		)
		return err
	}

	h.logger.Debug("Webhook 投递成功", zap.String("event", payload.EventType))
	return nil
}
