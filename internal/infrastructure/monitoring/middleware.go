package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		c.Next()

		// Route templates keep label cardinality bounded
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		metrics.RecordHTTPRequest(method, path, status, time.Since(start))
	}
}

// Timer measures a bundle activator's start hook.
type Timer struct {
	start   time.Time
	metrics *Metrics
	bundle  string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, bundle string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		bundle:  bundle,
	}
}

// Stop stops the timer and records the duration and outcome.
func (t *Timer) Stop(err error) time.Duration {
	duration := time.Since(t.start)
	t.metrics.RecordBundleStart(t.bundle, duration, err)
	return duration
}
