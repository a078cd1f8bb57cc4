package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"backend/internal/config"
	"backend/internal/worker/tasks"

	"github.com/hibiken/asynq"
)

// Client 任务队列客户端接口
type Client interface {
	EnqueueWebhookDelivery(eventType string, payload map[string]any) error
	Close() error
}

type asynqClient struct {
	client   *asynq.Client
	maxRetry int
}

// NewClient 创建任务队列客户端
func NewClient(cfg config.RedisConfig, maxRetry int) Client {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if maxRetry <= 0 {
		maxRetry = 5
	}
	return &asynqClient{client: client, maxRetry: maxRetry}
}

func (c *asynqClient) EnqueueWebhookDelivery(eventType string, payload map[string]any) error {
	data, err := json.Marshal(tasks.DeliverWebhookPayload{
		EventType: eventType,
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("marshal payload failed: %w", err)
	}

	task := asynq.NewTask(tasks.TypeDeliverWebhook, data)
	_, err = c.client.Enqueue(task,
		asynq.MaxRetry(c.maxRetry),
		asynq.Timeout(time.Minute),
		asynq.Queue("notify"),
	)
	if err != nil {
		return fmt.Errorf("enqueue task failed: %w", err)
	}
	return nil
}

func (c *asynqClient) Close() error {
	return c.client.Close()
}
