package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-media-service/infra"
)

func RequestLogger(logger *infra.LoggerClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ctx := c.Request.Context()
		status := c.Writer.Status()
		latency := time.Since(start)
		switch {
		case status >= 500:
			var err error
			if last := c.Errors.Last(); last != nil {
				err = last
			}
			logger.ErrorWithContextf(ctx, err, "[HTTP] %s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, status, latency)
		case status >= 400:
			logger.WarningWithContextf(ctx, "[HTTP] %s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, status, latency)
		default:
			logger.InfoWithContextf(ctx, "[HTTP] %s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, status, latency)
		}
	}
}
