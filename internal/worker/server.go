package worker

import (
	"context"
	"fmt"

	"backend/internal/config"
	"backend/internal/notification"
	"backend/internal/worker/handlers"
	"backend/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Server runs the background task queue: webhook deliveries and any future
// deferred work live here instead of the request path.
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

// NewServer 创建后台任务服务
func NewServer(
	cfg config.RedisConfig,
	concurrency int,
	sender *notification.WebhookSender,
	logger *zap.Logger,
) *Server {
	if concurrency <= 0 {
		concurrency = 5
	}
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password: cfg.Password,
			DB:       cfg.DB,
		},
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"notify":  5,
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("任务执行失败",
					zap.String("type", task.Type()),
					zap.Error(err),
				)
			}),
		},
	)

	mux := asynq.NewServeMux()
	notifyHandler := handlers.NewNotifyHandler(sender, logger)
	mux.HandleFunc(tasks.TypeDeliverWebhook, notifyHandler.HandleDeliverWebhook)

	return &Server{server: srv, mux: mux, logger: logger}
}

// Start 启动 worker（非阻塞）
func (s *Server) Start() error {
	s.logger.Info("后台任务服务启动")
	return s.server.Start(s.mux)
}

// Shutdown 优雅停止
func (s *Server) Shutdown() {
	s.logger.Info("后台任务服务停止")
	s.server.Shutdown()
}
