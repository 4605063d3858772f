package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pffigueiredo/daily-step-tracker/internal/util"
	"github.com/pffigueiredo/daily-step-tracker/pkg/logger"
	"go.uber.org/zap"
)

// RequestID 沿用客户端传入的 X-Request-ID，否则生成新的
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(util.HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.New().String()
		}
		c.Set(util.ContextRequestID, id)
		c.Header(util.HeaderRequestID, id)
		c.Next()
	}
}

// AccessLog 使用 zap 记录每个请求
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetString(util.ContextRequestID)),
		}

		if len(c.Errors) > 0 {
			logger.Log.Warn(c.Errors.String(), fields...)
			return
		}
		if c.Writer.Status() >= 500 {
			logger.Log.Error("request failed", fields...)
			return
		}
		logger.Log.Debug("request", fields...)
	}
}
