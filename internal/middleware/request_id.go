package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"backend/internal/logger"
)

// HeaderRequestID 请求 ID 头，上游网关可传入
const HeaderRequestID = "X-Request-ID"

// RequestIDKey Gin 上下文中请求 ID 的键
const RequestIDKey = "request_id"

// RequestIDMiddleware 为每个请求分配唯一 ID。
// 上游传入的 X-Request-ID 原样沿用，便于跨服务关联同一笔审批操作的日志。
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(RequestIDKey, requestID)
		// 注入 request context，服务层经 logger.WithContext 取用
		c.Request = c.Request.WithContext(logger.WithTraceID(c.Request.Context(), requestID))
		c.Header(HeaderRequestID, requestID)

		c.Next()
	}
}

// RequestID 从 Gin 上下文取请求 ID
func RequestID(c *gin.Context) string {
	if v, ok := c.Get(RequestIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
