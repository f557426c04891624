// Package observability wires OpenTelemetry tracing and metrics into relay.
//
// Both signals are exported over OTLP/HTTP and are off unless enabled in
// configuration. When disabled, the global no-op providers stay in place,
// so StartSpan and Metrics calls remain valid and cost nothing.
//
//	comp := observability.NewComponent(cfg.Observability, cfg.Name, cfg.Version, cfg.Environment, log)
//	registry.Register(comp)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanDispatch)
//	defer span.End()
package observability
