package middleware

import (
	"github.com/gin-gonic/gin"

	"backend/internal/common"
)

// HeaderActorID 操作人请求头。认证网关完成身份校验后注入。
const HeaderActorID = "X-Actor-ID"

// ActorKey Gin 上下文中操作人 ID 的键
const ActorKey = "actor_id"

// ActorContext extracts the acting user from the request. Identity is
// established upstream; this layer only needs to know who acts.
func ActorContext(required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := c.GetHeader(HeaderActorID)
		if actorID == "" && required {
			common.AbortWithError(c, common.CodeUnauthorized, "缺少操作人标识")
			return
		}
		c.Set(ActorKey, actorID)
		c.Next()
	}
}

// ActorID 从 Gin 上下文取操作人 ID
func ActorID(c *gin.Context) string {
	if v, ok := c.Get(ActorKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
