package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/kernel"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/proc"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/tracing"
)

// Version is reported by the root endpoint.
const Version = "0.3.0"

// Kernel is the part of the kernel the API reads and drives.
type Kernel interface {
	Processes() []proc.Info
	Process(pid proc.Pid) (proc.Info, bool)
	Spawn(path string, argv []string) (proc.Pid, error)
	Stats() kernel.Stats
}

// Handlers contains all HTTP handlers
type Handlers struct {
	kernel  Kernel
	tracer  *tracing.Tracer
	metrics *monitoring.Metrics
}

// NewHandlers creates a new handler set. tracer and metrics may be nil.
func NewHandlers(k Kernel, tracer *tracing.Tracer, metrics *monitoring.Metrics) *Handlers {
	return &Handlers{
		kernel:  k,
		tracer:  tracer,
		metrics: metrics,
	}
}

// Root handles the liveness check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "kernel",
		"version": Version,
		"boot_id": h.kernel.Stats().BootID,
	})
}

// Health reports resource usage against the kernel's limits
func (h *Handlers) Health(c *gin.Context) {
	stats := h.kernel.Stats()
	status := "healthy"
	if stats.Processes >= stats.ProcMax || stats.Threads >= stats.ThreadMax {
		status = "saturated"
	}
	c.JSON(http.StatusOK, gin.H{
		"status": status,
		"kernel": stats,
		"uptime": stats.Uptime.Round(time.Second).String(),
	})
}
