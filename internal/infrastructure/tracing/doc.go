/*
Package tracing records spans for system calls and introspection requests.

Every system call produces one span whose trace id is the calling process's
incarnation id, so all calls made by one process group together even after
its pid is reused. Finished spans are kept in a fixed-size ring served by the
/trace endpoint and logged at debug level.

# Usage

	tracer := tracing.New("kernel", logger, tracing.DefaultCapacity)
	defer tracer.Close()

	span := tracer.Start(tracing.TraceID(p.ID), "fork")
	span.SetTag("pid", "2")
	span.Finish()
	tracer.Submit(span)

	router.Use(tracing.HTTPMiddleware(tracer))
*/
package tracing
