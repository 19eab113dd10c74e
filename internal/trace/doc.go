// Package trace records spans of the collection pipeline.
//
// Tracers travel through the pipeline in a context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	sp := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "collect", trace.CurrentSpan(ctx).SpanID)
//	defer sp.End("")
//
// Scopes from coarse to fine: driver, pass, item, query. The level decides
// which scopes are emitted.
package trace
