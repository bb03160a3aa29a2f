package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"sermon-publisher/pkg/logger"
)

// RequestContextMiddleware 注入 operator 和 request_id，并把它们放入 request context 供下游日志使用。
func RequestContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		operator := c.GetHeader("X-Operator")
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		fields := map[string]interface{}{"request_id": reqID}
		if operator != "" {
			c.Set("operator", operator)
			fields["operator"] = operator
		}
		c.Set("request_id", reqID)
		c.Writer.Header().Set("X-Request-ID", reqID)
		c.Request = c.Request.WithContext(logger.WithFields(c.Request.Context(), fields))
		c.Next()
	}
}

// AccessLogMiddleware 记录请求耗时和状态码
func AccessLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.FromContext(c.Request.Context()).WithFields(map[string]interface{}{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("HTTP request served")
	}
}
