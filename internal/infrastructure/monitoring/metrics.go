package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Destruction paths of a process descriptor.
const (
	DestroyHarvested = "harvested" // collected by the parent's waitpid
	DestroyReaped    = "reaped"    // already exited when its parent exited
	DestroyOrphan    = "orphan"    // parentless at its own exit
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// System call metrics
	SyscallsTotal   *prometheus.CounterVec
	SyscallDuration *prometheus.HistogramVec

	// Process metrics
	ProcessesLive      prometheus.Gauge
	ProcessesCreated   prometheus.Counter
	ProcessesDestroyed *prometheus.CounterVec
	ThreadsLive        prometheus.Gauge

	// Memory metrics
	PagesUsed  prometheus.Gauge
	PagesTotal prometheus.Gauge

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests      int64            `json:"total_requests"`
	TotalErrors        int64            `json:"total_errors"`
	Syscalls           map[string]int64 `json:"syscalls"`
	SyscallErrors      int64            `json:"syscall_errors"`
	ProcessesLive      int64            `json:"processes_live"`
	ProcessesCreated   int64            `json:"processes_created"`
	ProcessesDestroyed map[string]int64 `json:"processes_destroyed"`
	ThreadsLive        int64            `json:"threads_live"`
	PagesUsed          int64            `json:"pages_used"`
	UptimeSeconds      float64          `json:"uptime_seconds"`
}

// NewMetrics creates the kernel's metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		startTime: time.Now(),
		snapshot: MetricsSnapshot{
			Syscalls:           make(map[string]int64),
			ProcessesDestroyed: make(map[string]int64),
		},

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kernel_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kernel_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kernel_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kernel_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),

		// System call metrics
		SyscallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kernel_syscalls_total",
				Help: "Total number of system calls by call and result",
			},
			[]string{"call", "result"},
		),
		SyscallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kernel_syscall_duration_seconds",
				Help:    "System call duration in seconds",
				Buckets: []float64{.00001, .0001, .001, .01, .1, 1, 10},
			},
			[]string{"call"},
		),

		// Process metrics
		ProcessesLive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "kernel_processes_live",
				Help: "Number of occupied process table slots",
			},
		),
		ProcessesCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "kernel_processes_created_total",
				Help: "Total number of processes created",
			},
		),
		ProcessesDestroyed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kernel_processes_destroyed_total",
				Help: "Total number of process descriptors destroyed by destruction path",
			},
			[]string{"path"},
		),
		ThreadsLive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "kernel_threads_live",
				Help: "Number of running threads",
			},
		),

		// Memory metrics
		PagesUsed: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "kernel_pages_used",
				Help: "Physical pages backing address spaces",
			},
		),
		PagesTotal: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "kernel_pages_total",
				Help: "Size of the physical page pool",
			},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "kernel_uptime_seconds",
			Help: "Kernel uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordSyscall records one completed system call. result is "ok" or the
// error name.
func (m *Metrics) RecordSyscall(call, result string, duration time.Duration) {
	m.SyscallsTotal.WithLabelValues(call, result).Inc()
	m.SyscallDuration.WithLabelValues(call).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.Syscalls[call]++
	if result != "ok" {
		m.snapshot.SyscallErrors++
	}
	m.mu.Unlock()
}

// SetProcessesLive sets the number of live processes
func (m *Metrics) SetProcessesLive(count int) {
	m.ProcessesLive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ProcessesLive = int64(count)
	m.mu.Unlock()
}

// IncProcessesCreated increments the created processes counter
func (m *Metrics) IncProcessesCreated() {
	m.ProcessesCreated.Inc()
	m.mu.Lock()
	m.snapshot.ProcessesCreated++
	m.mu.Unlock()
}

// AddProcessesDestroyed counts n descriptors destroyed along path.
func (m *Metrics) AddProcessesDestroyed(path string, n int) {
	if n <= 0 {
		return
	}
	m.ProcessesDestroyed.WithLabelValues(path).Add(float64(n))
	m.mu.Lock()
	m.snapshot.ProcessesDestroyed[path] += int64(n)
	m.mu.Unlock()
}

// SetThreadsLive sets the number of running threads
func (m *Metrics) SetThreadsLive(count int) {
	m.ThreadsLive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ThreadsLive = int64(count)
	m.mu.Unlock()
}

// SetPages records page pool usage
func (m *Metrics) SetPages(used, total int) {
	m.PagesUsed.Set(float64(used))
	m.PagesTotal.Set(float64(total))
	m.mu.Lock()
	m.snapshot.PagesUsed = int64(used)
	m.mu.Unlock()
}

// GetSnapshot returns a copy of the current values
func (m *Metrics) GetSnapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	s.Syscalls = make(map[string]int64, len(m.snapshot.Syscalls))
	for k, v := range m.snapshot.Syscalls {
		s.Syscalls[k] = v
	}
	s.ProcessesDestroyed = make(map[string]int64, len(m.snapshot.ProcessesDestroyed))
	for k, v := range m.snapshot.ProcessesDestroyed {
		s.ProcessesDestroyed[k] = v
	}
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
