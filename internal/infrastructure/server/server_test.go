package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/bin"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/kernel"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/loader"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/tracing"
)

func bootKernel(t *testing.T, opts ...kernel.Option) *kernel.Kernel {
	t.Helper()
	store := loader.NewMemStore()
	reg := loader.NewRegistry()
	bin.Register(reg)
	require.NoError(t, bin.Install(store))
	k, err := kernel.New(store, reg, opts...)
	require.NoError(t, err)
	return k
}

func request(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "10.1.1.1:5555"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestServerRoutes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	tracer := tracing.New("kernel", nil, 64)
	k := bootKernel(t, kernel.WithMetrics(metrics), kernel.WithTracer(tracer))

	cfg := config.Default()
	cfg.RateLimit.Enabled = false
	s := NewServer(cfg, Deps{Kernel: k, Metrics: metrics, Gatherer: reg, Tracer: tracer})

	w := request(s, "POST", "/procs", `{"path":"/sbin/init","argv":["init","/bin/true","/bin/exit"]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(tracing.HeaderTraceID))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, k.Idle(ctx))

	w = request(s, "GET", "/procs", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)

	w = request(s, "POST", "/procs", `{"path":"/no/such"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "ENOENT")

	w = request(s, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = request(s, "GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "kernel_processes_created_total 3")
	assert.Contains(t, w.Body.String(), `kernel_http_requests_total{method="POST",path="/procs"`)

	w = request(s, "GET", "/metrics/json", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = request(s, "GET", "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServerWithoutGatherer(t *testing.T) {
	cfg := config.Default()
	cfg.RateLimit.Enabled = false
	s := NewServer(cfg, Deps{Kernel: bootKernel(t)})

	assert.Equal(t, http.StatusNotFound, request(s, "GET", "/metrics", "").Code)
	assert.Equal(t, http.StatusNotFound, request(s, "GET", "/trace", "").Code)
	assert.Equal(t, http.StatusOK, request(s, "GET", "/metrics/json", "").Code)
}

func TestServerRateLimit(t *testing.T) {
	cfg := config.Default()
	cfg.RateLimit.RequestsPerSecond = 1
	cfg.RateLimit.Burst = 1
	s := NewServer(cfg, Deps{Kernel: bootKernel(t)})

	assert.Equal(t, http.StatusOK, request(s, "GET", "/health", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, request(s, "GET", "/health", "").Code)
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = "0"
	s := NewServer(cfg, Deps{Kernel: bootKernel(t)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
