package api

import (
	"backend/internal/metrics"
	middlewarepkg "backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// RegisterRoutes 注册所有 API 路由
func RegisterRoutes(router *gin.Engine, db *gorm.DB, h *Handlers) {
	// 全局中间件
	router.Use(gin.Recovery())
	router.Use(middlewarepkg.RequestIDMiddleware())
	router.Use(RequestLogger())
	router.Use(CORS())
	router.Use(metrics.PrometheusMiddleware())

	// 公开端点
	router.GET("/health", HealthCheck(db))
	router.GET("/ready", ReadinessCheck(db))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limiter := middlewarepkg.NewRateLimiter(nil)

	// WebSocket 不强制要求头（浏览器限制），由处理器自行校验操作人
	router.GET("/api/v1/ws/notifications",
		middlewarepkg.ActorContext(false), h.WebSocket.Connect)

	apiV1 := router.Group("/api/v1")
	apiV1.Use(
		middlewarepkg.ActorContext(true),
		middlewarepkg.RateLimitMiddleware(limiter),
	)
	registerAPIRoutes(apiV1, h)
}

func registerAPIRoutes(apiGroup *gin.RouterGroup, h *Handlers) {
	// 仕訳（日记账）
	journalsGroup := apiGroup.Group("/journals")
	{
		journalsGroup.POST("", h.Journal.Create)
		journalsGroup.GET("", h.Journal.List)
		journalsGroup.GET("/:id", h.Journal.Get)
		journalsGroup.PUT("/:id", h.Journal.Update)
		journalsGroup.DELETE("/:id", h.Journal.Delete)

		// 审批流转
		journalsGroup.POST("/:id/submit", h.Approval.Submit)
		journalsGroup.POST("/:id/approve", h.Approval.Approve)
		journalsGroup.POST("/:id/reject", h.Approval.Reject)
		journalsGroup.POST("/:id/recall", h.Approval.Recall)
		journalsGroup.GET("/:id/history", h.Approval.History)
		journalsGroup.GET("/:id/state", h.Approval.State)
	}

	// 当前操作人的待办
	apiGroup.GET("/approvals/pending", h.Approval.Pending)

	// 试算表
	apiGroup.GET("/reports/trial-balance", h.Journal.TrialBalance)

	// 审批路由定义
	routesGroup := apiGroup.Group("/routes")
	{
		routesGroup.POST("", h.Route.Save)
		routesGroup.GET("", h.Route.List)
		routesGroup.GET("/:code", h.Route.Get)
		routesGroup.DELETE("/:code", h.Route.Delete)
		routesGroup.POST("/:code/validate", h.Route.Validate)
		routesGroup.POST("/:code/activate", h.Route.Activate)
		routesGroup.POST("/:code/deactivate", h.Route.Deactivate)
	}

	// 路由选择规则
	rulesGroup := apiGroup.Group("/route-rules")
	{
		rulesGroup.GET("", h.Rule.List)
		rulesGroup.POST("", h.Rule.Create)
		rulesGroup.PUT("/:id", h.Rule.Update)
		rulesGroup.DELETE("/:id", h.Rule.Delete)
	}

	// 承認組織与担当者
	orgsGroup := apiGroup.Group("/organizations")
	{
		orgsGroup.POST("", h.MasterData.CreateOrganization)
		orgsGroup.GET("", h.MasterData.ListOrganizations)
		orgsGroup.GET("/:code", h.MasterData.GetOrganization)
		orgsGroup.PUT("/:code", h.MasterData.UpdateOrganization)
		orgsGroup.DELETE("/:code", h.MasterData.DeleteOrganization)
		orgsGroup.POST("/:code/members", h.MasterData.AddMember)
		orgsGroup.DELETE("/:code/members/:userId", h.MasterData.RemoveMember)
	}

	// 勘定科目
	accountsGroup := apiGroup.Group("/accounts")
	{
		accountsGroup.POST("", h.MasterData.CreateAccount)
		accountsGroup.GET("", h.MasterData.ListAccounts)
		accountsGroup.PUT("/:code", h.MasterData.UpdateAccount)
	}
}
