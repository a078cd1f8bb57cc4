package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API 指标
var (
	// APIRequestsTotal API 请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookkeep_api_requests_total",
			Help: "API 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration API 请求延迟（秒）
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookkeep_api_request_duration_seconds",
			Help:    "API 请求延迟分布",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// 审批工作流指标
var (
	// ApprovalDecisionsTotal 审批决定总数，按动作和结果状态分类
	ApprovalDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookkeep_approval_decisions_total",
			Help: "审批动作总数",
		},
		[]string{"decision", "status"},
	)

	// ApprovalPendingGauge 当前待审批的日记账数量
	ApprovalPendingGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookkeep_approval_pending_journals",
			Help: "待审批日记账数量",
		},
	)

	// ApprovalConflictsTotal 乐观锁冲突次数
	ApprovalConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookkeep_approval_conflicts_total",
			Help: "审批乐观锁冲突总数",
		},
	)

	// RouteCacheHitsTotal 路由图缓存命中/未命中
	RouteCacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookkeep_route_cache_hits_total",
			Help: "路由图缓存查询结果",
		},
		[]string{"result"}, // hit, miss
	)

	// NotificationsTotal 通知投递结果
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookkeep_notifications_total",
			Help: "审批通知投递总数",
		},
		[]string{"channel", "result"},
	)

	// WebSocketConnectionsGauge 当前 WebSocket 连接数
	WebSocketConnectionsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookkeep_websocket_connections",
			Help: "当前 WebSocket 连接数",
		},
	)
)
