package api

import (
	"time"

	journalHandlers "backend/api/handlers/journals"
	masterdataHandlers "backend/api/handlers/masterdata"
	notificationHandlers "backend/api/handlers/notifications"
	routeHandlers "backend/api/handlers/routes"
	"backend/internal/config"
	"backend/internal/infra"
	"backend/internal/infra/queue"
	"backend/internal/journal"
	"backend/internal/logger"
	"backend/internal/masterdata"
	"backend/internal/notification"
	"backend/internal/worker"
	"backend/internal/workflow"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handlers 所有 HTTP 处理器
type Handlers struct {
	Journal    *journalHandlers.JournalHandler
	Approval   *journalHandlers.ApprovalHandler
	Route      *routeHandlers.RouteHandler
	Rule       *routeHandlers.RuleHandler
	MasterData *masterdataHandlers.Handler
	WebSocket  *notificationHandlers.WebSocketHandler
}

// SetupRouter 组装服务依赖，返回 Gin 路由和 Worker 服务器。
// Redis 不可用时降级运行：路由图不走缓存，离线通知存内存，
// Webhook 改为同步投递，Worker 返回 nil。
func SetupRouter(db *gorm.DB, cfg *config.Config) (*gin.Engine, *worker.Server) {
	router := gin.New()

	// 统一归一化 Redis 配置，优先使用 cfg.Redis，再回退到环境变量
	redisCfg := normalizeRedisConfig(cfg.Redis)
	cfg.Redis = redisCfg

	redisClient, err := infra.InitRedis(&redisCfg)
	if err != nil {
		logger.Warn("Redis 不可用，路由缓存与异步通知退回内存实现", zap.Error(err))
		redisClient = nil
	}

	// 主数据与审批路由
	masterdataSvc := masterdata.NewService(db)
	directory := masterdata.NewDirectory(masterdataSvc)
	validator := workflow.NewValidator(directory)

	routeOpts := []workflow.ServiceOption{}
	if redisClient != nil {
		routeOpts = append(routeOpts,
			workflow.WithRouteCache(redisClient, cfg.Workflow.RouteCacheTTLDuration()))
	}
	routeSvc := workflow.NewService(db, validator, routeOpts...)
	selector := workflow.NewRouteSelector(db)

	// 仕訳サービス
	journalSvc := journal.NewService(db)

	// 通知链路: WebSocket 实时推送 + Webhook 回调
	webhookSender := notification.NewWebhookSender(&notification.WebhookConfig{
		URL:     cfg.Notify.WebhookURL,
		Secret:  cfg.Notify.WebhookSecret,
		Timeout: time.Duration(cfg.Notify.TimeoutSeconds) * time.Second,
	})

	var offlineStore notification.OfflineStore
	if redisClient != nil {
		offlineStore = notification.NewRedisOfflineStore(redisClient, 100, 7*24*time.Hour)
	} else {
		offlineStore = notification.NewMemoryOfflineStore(100)
	}
	hub := notification.NewHub(notification.WithOfflineStore(offlineStore))

	notifiers := []workflow.Notifier{
		notification.NewHubNotifier(hub, routeSvc, directory),
	}
	if cfg.Notify.WebhookURL != "" {
		if redisClient != nil {
			queueClient := queue.NewClient(redisCfg, cfg.Notify.MaxRetry)
			notifiers = append(notifiers, notification.NewQueueNotifier(queueClient))
		} else {
			notifiers = append(notifiers, notification.NewWebhookNotifier(webhookSender))
		}
	}

	bus := workflow.NewJournalEventBus(&workflow.EventBusConfig{
		BufferSize: cfg.Workflow.EventBufferSize,
	})

	coordinator := workflow.NewCoordinator(db, routeSvc, directory,
		workflow.WithNotifier(notification.NewMultiNotifier(notifiers...)),
		workflow.WithEventBus(bus),
		workflow.WithAutoSkip(cfg.Workflow.AutoSkip),
	)

	handlers := &Handlers{
		Journal:    journalHandlers.NewJournalHandler(journalSvc),
		Approval:   journalHandlers.NewApprovalHandler(coordinator, selector, journalSvc),
		Route:      routeHandlers.NewRouteHandler(routeSvc),
		Rule:       routeHandlers.NewRuleHandler(db, routeSvc),
		MasterData: masterdataHandlers.NewHandler(masterdataSvc),
		WebSocket:  notificationHandlers.NewWebSocketHandler(hub),
	}

	RegisterRoutes(router, db, handlers)

	// Webhook 异步投递 Worker，依赖 Redis 队列
	var workerServer *worker.Server
	if redisClient != nil && cfg.Notify.WebhookURL != "" {
		workerServer = worker.NewServer(redisCfg, cfg.Notify.QueueConcurrency, webhookSender, logger.Get())
	}

	return router, workerServer
}
