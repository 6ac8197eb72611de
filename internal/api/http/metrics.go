package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/kernel"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/monitoring"
)

// MetricsSnapshot combines live kernel usage with the recorded counters.
type MetricsSnapshot struct {
	Timestamp time.Time                   `json:"timestamp"`
	Kernel    kernel.Stats                `json:"kernel"`
	Counters  *monitoring.MetricsSnapshot `json:"counters,omitempty"`
	Summary   MetricsSummary              `json:"summary"`
}

// MetricsSummary provides high-level metrics
type MetricsSummary struct {
	TotalSyscalls      int64   `json:"total_syscalls"`
	SyscallErrorRate   float64 `json:"syscall_error_rate"`
	ProcessUtilization float64 `json:"process_utilization"`
	PageUtilization    float64 `json:"page_utilization"`
	UptimeSeconds      float64 `json:"uptime_seconds"`
}

// Metrics returns the JSON metrics snapshot
func (h *Handlers) Metrics(c *gin.Context) {
	stats := h.kernel.Stats()
	snap := MetricsSnapshot{
		Timestamp: time.Now(),
		Kernel:    stats,
		Summary: MetricsSummary{
			ProcessUtilization: ratio(int64(stats.Processes), int64(stats.ProcMax)),
			PageUtilization:    ratio(int64(stats.PagesUsed), int64(stats.PagesTotal)),
			UptimeSeconds:      stats.Uptime.Seconds(),
		},
	}
	if h.metrics != nil {
		counters := h.metrics.GetSnapshot()
		snap.Counters = &counters
		for _, n := range counters.Syscalls {
			snap.Summary.TotalSyscalls += n
		}
		snap.Summary.SyscallErrorRate = ratio(counters.SyscallErrors, snap.Summary.TotalSyscalls)
	}
	c.JSON(http.StatusOK, snap)
}

func ratio(n, d int64) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
