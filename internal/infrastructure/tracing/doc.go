/*
Package tracing provides lightweight request tracing.

Spans are created for control API requests and for outbound config fetches.
Trace context travels in the X-Trace-ID and X-Span-ID headers, so a config
fetch triggered by a control API call shares its trace ID.

# Usage

	tracer := tracing.New("bubblegate", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "config.fetch")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

	headers := map[string]string{}
	tracing.InjectTraceContext(ctx, headers)

Finished spans are buffered (1000) and logged by a single collector
goroutine; spans are dropped rather than blocking when the buffer is full.
*/
package tracing
