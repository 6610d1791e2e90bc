package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"eventhub/api/logger"
	"eventhub/api/metrics"
)

// RequestLogger logs each request and records HTTP metrics. Unmatched
// routes are recorded under "unmatched" to bound label cardinality.
func RequestLogger(log *logger.Logger, m *metrics.Metrics) gin.HandlerFunc {
	log = log.With("component", "HTTP")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		if m != nil {
			m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
			m.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(elapsed.Seconds())
		}

		kv := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"user_id", c.GetString(CtxUserID),
		}
		switch {
		case status >= 500:
			log.Error("Request failed", append(kv, "errors", c.Errors.String())...)
		case status >= 400:
			log.Warn("Request rejected", kv...)
		default:
			log.Info("Request handled", kv...)
		}
	}
}
