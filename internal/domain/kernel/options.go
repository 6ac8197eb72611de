package kernel

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/shared/abi"
)

// Limits sizes the kernel's fixed tables.
type Limits struct {
	PidMin      int32
	ProcMax     int
	ThreadMax   int
	MemPages    int
	ArgCountMax int
	ArgBytesMax int
	PathMax     int
}

// DefaultLimits returns the stock configuration.
func DefaultLimits() Limits {
	return Limits{
		PidMin:      abi.PidMin,
		ProcMax:     128,
		ThreadMax:   128,
		MemPages:    4096,
		ArgCountMax: abi.ArgCountMax,
		ArgBytesMax: abi.ArgBytesMax,
		PathMax:     abi.PathMax,
	}
}

// Validate checks that the limits describe a usable kernel.
func (l Limits) Validate() error {
	switch {
	case l.PidMin <= 0:
		return fmt.Errorf("kernel: pid_min must be positive, got %d", l.PidMin)
	case l.ProcMax <= 0 || int64(l.PidMin)+int64(l.ProcMax)-1 > abi.PidMax:
		return fmt.Errorf("kernel: proc_max %d does not fit pids %d..%d", l.ProcMax, l.PidMin, abi.PidMax)
	case l.ThreadMax <= 0:
		return fmt.Errorf("kernel: thread_max must be positive, got %d", l.ThreadMax)
	case l.MemPages <= 0:
		return fmt.Errorf("kernel: mem_pages must be positive, got %d", l.MemPages)
	case l.ArgCountMax <= 0 || l.ArgBytesMax <= 0 || l.PathMax <= 0:
		return fmt.Errorf("kernel: exec limits must be positive")
	}
	return nil
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(k *Kernel) {
		if logger != nil {
			k.logger = logger
		}
	}
}

// WithMetrics records kernel activity in metrics.
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(k *Kernel) { k.metrics = metrics }
}

// WithTracer records a span per system call.
func WithTracer(tracer *tracing.Tracer) Option {
	return func(k *Kernel) { k.tracer = tracer }
}

// WithLimits replaces DefaultLimits.
func WithLimits(limits Limits) Option {
	return func(k *Kernel) { k.limits = limits }
}
