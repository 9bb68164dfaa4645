package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/campusride/internal/observ"
)

// Metrics records rate, errors and duration per route template. Unmatched
// paths are folded into a single label to keep cardinality bounded.
func Metrics(m *observ.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		statusStr := strconv.Itoa(status)
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		m.HTTPRequests.WithLabelValues(method, path, statusStr).Inc()
		switch {
		case status >= 500:
			m.HTTPRequestErrors.WithLabelValues(method, path, statusStr, "server").Inc()
		case status >= 400:
			m.HTTPRequestErrors.WithLabelValues(method, path, statusStr, "client").Inc()
		}
		m.HTTPDuration.WithLabelValues(method, path, statusStr).Observe(time.Since(start).Seconds())
	}
}
