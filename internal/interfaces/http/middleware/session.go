// Package middleware 提供 HTTP 中间件
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bookforge-ai-api/pkg/logger"
)

const (
	// SessionIDHeader 写作会话 ID 头。
	// 同一浏览器标签页的编辑共享一个会话，防抖与备份快照都以它为维度。
	SessionIDHeader = "X-Session-ID"
)

// Session 写作会话注入中间件。
// 客户端未携带会话 ID 时生成新的，响应头回传以便客户端后续复用。
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader(SessionIDHeader)
		if sessionID == "" {
			sessionID = uuid.New().String()
		}

		c.Set("session_id", sessionID)

		ctx := logger.WithContext(c.Request.Context(), logger.SessionIDKey, sessionID)
		c.Request = c.Request.WithContext(ctx)

		c.Header(SessionIDHeader, sessionID)
		c.Next()
	}
}
