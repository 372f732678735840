package api

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lingowing/lingowing/pkg/logger"
)

// TraceIDMiddleware 沿用请求头中的 X-Trace-ID，没有时生成新的
func TraceIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.New().String()
		}

		ctx := logger.WithTraceID(c.Request.Context(), traceID)
		ctx = logger.WithComponent(ctx, "api")
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Trace-ID", traceID)

		c.Next()
	}
}
