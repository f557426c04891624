package dispatch

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/relay/discovery"
	"github.com/kbukum/relay/discovery/testutil"
	"github.com/kbukum/relay/observability"
)

func dispatchCounts(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != observability.MetricDispatchTotal {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("unexpected data type %T", m.Data)
			}
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value(attribute.Key("outcome"))
				out[v.AsString()] += dp.Value
			}
		}
	}
	return out
}

func TestMetricsPerOutcome(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())
	metrics, err := observability.NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}

	resolver := testutil.NewResolver()
	d := newDispatcher(t, resolver, &recordingDoer{status: 500}, WithMetrics(metrics))

	_, _ = d.Handle(context.Background(), "provider", "a")
	resolver.Set("provider", discovery.Endpoint{ID: "p1", Address: "h"})
	_, _ = d.Handle(context.Background(), "provider", "a")
	resolver.Fail("provider", context.DeadlineExceeded)
	_, _ = d.Handle(context.Background(), "provider", "a")

	counts := dispatchCounts(t, reader)
	for _, outcome := range []string{"no_provider", "forward_failed", "registry_unavailable"} {
		if counts[outcome] != 1 {
			t.Errorf("expected one %s sample, got %d (all: %v)", outcome, counts[outcome], counts)
		}
	}
}

func TestSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	}()

	resolver := testutil.NewResolver()
	resolver.Set("provider", discovery.Endpoint{ID: "p1", Address: "h"})
	d := newDispatcher(t, resolver, &recordingDoer{body: "ok"})
	if _, err := d.Handle(context.Background(), "provider", "a"); err != nil {
		t.Fatal(err)
	}

	names := map[string]bool{}
	for _, s := range exporter.GetSpans() {
		names[s.Name] = true
		if s.Name == observability.SpanDispatch {
			found := false
			for _, a := range s.Attributes {
				if string(a.Key) == observability.AttrOutcome && a.Value.AsString() == "forwarded" {
					found = true
				}
			}
			if !found {
				t.Errorf("expected outcome attribute on dispatch span, got %v", s.Attributes)
			}
		}
	}
	for _, want := range []string{observability.SpanDispatch, observability.SpanResolve, observability.SpanForward} {
		if !names[want] {
			t.Errorf("missing span %s (have %v)", want, names)
		}
	}
}
