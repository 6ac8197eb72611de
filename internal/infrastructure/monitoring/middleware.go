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

		// Get request size
		reqSize := c.Request.ContentLength
		if reqSize < 0 {
			reqSize = 0
		}

		c.Next()

		// Label by route template so /procs/:pid stays one series
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		respSize := int64(c.Writer.Size())
		if respSize < 0 {
			respSize = 0
		}

		metrics.RecordHTTPRequest(method, path, status, time.Since(start), reqSize, respSize)
	}
}

// Timer measures one system call
type Timer struct {
	start   time.Time
	metrics *Metrics
	call    string
}

// NewTimer starts timing call
func NewTimer(metrics *Metrics, call string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		call:    call,
	}
}

// Stop records the call with its result. A nil metrics set is ignored.
func (t *Timer) Stop(result string) time.Duration {
	d := time.Since(t.start)
	if t.metrics != nil {
		t.metrics.RecordSyscall(t.call, result, d)
	}
	return d
}
