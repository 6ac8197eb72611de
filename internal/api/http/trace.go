package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/tracing"
)

const defaultTraceLimit = 100

// Trace returns the most recent spans, newest first. ?limit= caps the count
// and ?trace= keeps only one trace, e.g. one process incarnation.
func (h *Handlers) Trace(c *gin.Context) {
	if h.tracer == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tracing disabled"})
		return
	}

	limit := defaultTraceLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	spans := h.tracer.Recent(0)
	if trace := c.Query("trace"); trace != "" {
		kept := spans[:0]
		for _, s := range spans {
			if s.TraceID == tracing.TraceID(trace) {
				kept = append(kept, s)
			}
		}
		spans = kept
	}
	if limit > 0 && len(spans) > limit {
		spans = spans[:limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"spans": spans,
		"count": len(spans),
	})
}
