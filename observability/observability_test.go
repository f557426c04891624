package observability

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/relay/component"
	"github.com/kbukum/relay/logger"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("expected endpoint 'localhost:4318', got %s", cfg.Endpoint)
	}
	if !cfg.Insecure {
		t.Error("expected insecure for default local endpoint")
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected sample rate 1.0, got %f", cfg.SampleRate)
	}
	if cfg.MetricInterval != 15*time.Second {
		t.Errorf("expected interval 15s, got %v", cfg.MetricInterval)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled ignores fields", Config{SampleRate: 5}, false},
		{"enabled valid", Config{Enabled: true, Endpoint: "otel:4318", SampleRate: 0.5}, false},
		{"enabled no endpoint", Config{Enabled: true, SampleRate: 1}, true},
		{"enabled bad rate", Config{Enabled: true, Endpoint: "otel:4318", SampleRate: 1.5}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestNewResource(t *testing.T) {
	res, err := newResource("consumer", "1.0.0", "test")
	if err != nil {
		t.Fatalf("newResource failed: %v", err)
	}
	v, ok := res.Set().Value(attribute.Key("service.name"))
	if !ok || v.AsString() != "consumer" {
		t.Errorf("expected service.name=consumer, got %v", v.AsString())
	}
}

func TestSampler(t *testing.T) {
	if sampler(1.0).Description() != sdktrace.AlwaysSample().Description() {
		t.Error("expected AlwaysSample for rate 1")
	}
	if sampler(0).Description() != sdktrace.NeverSample().Description() {
		t.Error("expected NeverSample for rate 0")
	}
	if sampler(0.5).Description() == sdktrace.AlwaysSample().Description() {
		t.Error("expected ratio sampler for rate 0.5")
	}
}

func TestStartSpanRecords(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	}()

	_, span := StartSpan(context.Background(), SpanDispatch)
	span.SetAttributes(attribute.String(AttrService, "provider"))
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != SpanDispatch {
		t.Errorf("expected span %q, got %q", SpanDispatch, spans[0].Name)
	}
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestMetricsRecordDispatch(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	ctx := context.Background()
	m.RecordDispatch(ctx, "provider", "forwarded", 20*time.Millisecond)
	m.RecordDispatch(ctx, "provider", "forwarded", 30*time.Millisecond)
	m.RecordDispatch(ctx, "provider", "no_provider", time.Millisecond)
	m.RecordResolve(ctx, "provider", "ok", time.Millisecond)
	m.RecordError(ctx, "registry_unavailable", "dispatch")

	data := collect(t, reader)

	sum, ok := data[MetricDispatchTotal].(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected int64 sum for %s, got %T", MetricDispatchTotal, data[MetricDispatchTotal])
	}
	counts := map[string]int64{}
	for _, dp := range sum.DataPoints {
		outcome, _ := dp.Attributes.Value("outcome")
		counts[outcome.AsString()] = dp.Value
	}
	if counts["forwarded"] != 2 || counts["no_provider"] != 1 {
		t.Errorf("unexpected dispatch counts: %v", counts)
	}

	if _, ok := data[MetricDispatchDuration].(metricdata.Histogram[float64]); !ok {
		t.Errorf("expected histogram for %s", MetricDispatchDuration)
	}
	if _, ok := data[MetricResolveDuration].(metricdata.Histogram[float64]); !ok {
		t.Errorf("expected histogram for %s", MetricResolveDuration)
	}
	if _, ok := data[MetricErrorTotal].(metricdata.Sum[int64]); !ok {
		t.Errorf("expected sum for %s", MetricErrorTotal)
	}
}

func TestNewDefaultMetrics(t *testing.T) {
	if _, err := NewDefaultMetrics(); err != nil {
		t.Fatalf("NewDefaultMetrics failed: %v", err)
	}
}

func TestComponentDisabled(t *testing.T) {
	c := NewComponent(Config{}, "consumer", "1.0.0", "test", logger.NewNop())
	ctx := context.Background()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	h := c.Health(ctx)
	if h.Status != component.StatusHealthy || h.Message != "disabled" {
		t.Errorf("unexpected health: %+v", h)
	}
	if c.Describe().Details != "disabled" {
		t.Errorf("unexpected description: %+v", c.Describe())
	}
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestComponentEnabled(t *testing.T) {
	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	defer func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	}()

	c := NewComponent(Config{Enabled: true, Endpoint: "127.0.0.1:1", Insecure: true}, "consumer", "1.0.0", "test", logger.NewNop())
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if c.Name() != "observability" {
		t.Errorf("unexpected name %q", c.Name())
	}

	// Export to the unreachable endpoint fails; only the shutdown path matters.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = c.Stop(ctx)
	if err := c.Stop(ctx); err != nil {
		t.Errorf("second Stop should be a no-op, got %v", err)
	}
}
