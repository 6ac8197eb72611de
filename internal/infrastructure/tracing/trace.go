package tracing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/shared/id"
)

// TraceID groups related spans. System call spans use the calling
// process's incarnation id.
type TraceID string

// SpanID represents a unique span identifier
type SpanID = id.SpanID

// DefaultCapacity is the number of finished spans a tracer keeps.
const DefaultCapacity = 1024

// Span represents a single operation in a trace
type Span struct {
	TraceID    TraceID           `json:"trace_id"`
	SpanID     SpanID            `json:"span_id"`
	ParentID   SpanID            `json:"parent_id,omitempty"`
	Name       string            `json:"name"`
	Service    string            `json:"service"`
	StartTime  time.Time         `json:"start_time"`
	EndTime    time.Time         `json:"end_time"`
	Duration   time.Duration     `json:"duration_ns"`
	Tags       map[string]string `json:"tags,omitempty"`
	Error      string            `json:"error,omitempty"`
	StatusCode int               `json:"status_code,omitempty"`
}

// Tracer collects finished spans into a bounded ring.
type Tracer struct {
	service string
	logger  *zap.Logger
	spans   chan *Span
	done    chan struct{}
	once    sync.Once

	mu   sync.RWMutex
	ring []Span
	next int
	full bool
}

// New creates a tracer keeping the last capacity spans.
func New(service string, logger *zap.Logger, capacity int) *Tracer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracer{
		service: service,
		logger:  logger,
		spans:   make(chan *Span, DefaultCapacity),
		done:    make(chan struct{}),
		ring:    make([]Span, capacity),
	}

	go t.collectSpans()

	return t
}

// Start opens a span in trace.
func (t *Tracer) Start(trace TraceID, name string) *Span {
	return &Span{
		TraceID:   trace,
		SpanID:    id.NewSpanID(),
		Name:      name,
		Service:   t.service,
		StartTime: time.Now(),
		Tags:      make(map[string]string),
	}
}

// StartSpan creates a new span, continuing the trace carried by ctx.
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	traceID, _ := ctx.Value(traceIDKey).(TraceID)
	if traceID == "" {
		traceID = TraceID(id.New())
	}

	span := t.Start(traceID, name)
	span.ParentID, _ = ctx.Value(spanIDKey).(SpanID)

	newCtx := context.WithValue(ctx, traceIDKey, traceID)
	newCtx = context.WithValue(newCtx, spanIDKey, span.SpanID)

	return span, newCtx
}

// Finish marks the span as complete
func (s *Span) Finish() {
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
}

// SetTag adds a tag to the span
func (s *Span) SetTag(key, value string) {
	s.Tags[key] = value
}

// SetError records an error in the span
func (s *Span) SetError(err error) {
	if err != nil {
		s.Error = err.Error()
	}
}

// SetStatus sets the HTTP status code
func (s *Span) SetStatus(code int) {
	s.StatusCode = code
}

// collectSpans processes completed spans
func (t *Tracer) collectSpans() {
	defer close(t.done)
	for span := range t.spans {
		t.processSpan(span)
	}
}

func (t *Tracer) processSpan(span *Span) {
	t.mu.Lock()
	t.ring[t.next] = *span
	t.next = (t.next + 1) % len(t.ring)
	if t.next == 0 {
		t.full = true
	}
	t.mu.Unlock()

	if ce := t.logger.Check(zap.DebugLevel, "span completed"); ce != nil {
		fields := []zap.Field{
			zap.String("trace_id", string(span.TraceID)),
			zap.String("span_id", span.SpanID.String()),
			zap.String("operation", span.Name),
			zap.Duration("duration", span.Duration),
		}
		if span.Error != "" {
			fields = append(fields, zap.String("error", span.Error))
		}
		ce.Write(fields...)
	}
}

// Submit sends a span to the collector. It never blocks.
func (t *Tracer) Submit(span *Span) {
	defer func() {
		// Submit after Close is a no-op.
		_ = recover()
	}()
	select {
	case t.spans <- span:
	default:
		t.logger.Warn("span buffer full, dropping span",
			zap.String("trace_id", string(span.TraceID)),
			zap.String("span_id", span.SpanID.String()),
		)
	}
}

// Recent returns up to limit finished spans, newest first. limit <= 0
// returns everything retained.
func (t *Tracer) Recent(limit int) []Span {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := t.next
	if t.full {
		n = len(t.ring)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Span, 0, limit)
	for i := 0; i < limit; i++ {
		j := (t.next - 1 - i + len(t.ring)) % len(t.ring)
		out = append(out, t.ring[j])
	}
	return out
}

// Close stops the collector after draining submitted spans.
func (t *Tracer) Close() {
	t.once.Do(func() { close(t.spans) })
	<-t.done
}

// Context keys for trace propagation
type contextKey string

const (
	traceIDKey contextKey = "trace_id"
	spanIDKey  contextKey = "span_id"
)

// GetTraceID retrieves the trace ID from context
func GetTraceID(ctx context.Context) TraceID {
	if traceID, ok := ctx.Value(traceIDKey).(TraceID); ok {
		return traceID
	}
	return ""
}

// FormatTrace returns a formatted trace string for logging
func FormatTrace(traceID TraceID, spanID SpanID) string {
	return fmt.Sprintf("[trace:%s span:%s]", traceID, spanID)
}
