package observability

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/tbourn/go-responder-bot/internal/config"
)

// withExporter restores the OTel globals after the test and routes exports to
// exp (or to err when set).
func withExporter(t *testing.T, exp sdktrace.SpanExporter, err error) *int {
	t.Helper()
	prevTP, prevProp, prevNew := otel.GetTracerProvider(), otel.GetTextMapPropagator(), newExporter
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
		newExporter = prevNew
	})
	var nOpts int
	newExporter = func(_ context.Context, opts ...otlptracegrpc.Option) (sdktrace.SpanExporter, error) {
		nOpts = len(opts)
		if err != nil {
			return nil, err
		}
		return exp, nil
	}
	return &nOpts
}

func enabled(ratio float64) config.OTELConfig {
	return config.OTELConfig{Enabled: true, Insecure: true, Endpoint: "collector:4317", ServiceName: "responderbot-test", SampleRatio: ratio}
}

func TestSetupOTel_Disabled(t *testing.T) {
	withExporter(t, nil, errors.New("must not be called"))
	before := otel.GetTracerProvider()

	shutdown, err := SetupOTel(context.Background(), config.OTELConfig{Endpoint: "ignored:4317"}, "v0")
	if err != nil {
		t.Fatalf("SetupOTel: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown: %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Fatal("disabled tracing replaced the global provider")
	}
}

func TestSetupOTel_ExportsWithServiceResource(t *testing.T) {
	mem := tracetest.NewInMemoryExporter()
	withExporter(t, mem, nil)

	shutdown, err := SetupOTel(context.Background(), enabled(1), "v1.4.0")
	if err != nil {
		t.Fatalf("SetupOTel: %v", err)
	}
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	tp, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	if !ok {
		t.Fatalf("global provider is %T", otel.GetTracerProvider())
	}
	ctx, span := otel.Tracer("services/dispatcher").Start(context.Background(), "Dispatcher.Handle")
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	span.End()

	if carrier.Get("traceparent") == "" {
		t.Fatalf("trace context not propagated: %v", carrier)
	}
	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	spans := mem.GetSpans()
	if len(spans) != 1 || spans[0].Name != "Dispatcher.Handle" {
		t.Fatalf("exported spans = %+v", spans)
	}
	attrs := spans[0].Resource.Attributes()
	want := map[string]string{
		string(semconv.ServiceNameKey):    "responderbot-test",
		string(semconv.ServiceVersionKey): "v1.4.0",
	}
	for _, kv := range attrs {
		if v, ok := want[string(kv.Key)]; ok {
			if kv.Value.AsString() != v {
				t.Fatalf("%s = %q, want %q", kv.Key, kv.Value.AsString(), v)
			}
			delete(want, string(kv.Key))
		}
	}
	if len(want) != 0 {
		t.Fatalf("resource missing %v", want)
	}
}

func TestSetupOTel_ZeroRatioDropsRootSpans(t *testing.T) {
	mem := tracetest.NewInMemoryExporter()
	withExporter(t, mem, nil)

	shutdown, err := SetupOTel(context.Background(), enabled(0), "v1")
	if err != nil {
		t.Fatalf("SetupOTel: %v", err)
	}
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	_, span := otel.Tracer("test").Start(context.Background(), "dropped")
	span.End()
	_ = otel.GetTracerProvider().(*sdktrace.TracerProvider).ForceFlush(context.Background())
	if n := len(mem.GetSpans()); n != 0 {
		t.Fatalf("exported %d spans with ratio 0", n)
	}
}

func TestSetupOTel_ExporterErrorKeepsGlobals(t *testing.T) {
	withExporter(t, nil, errors.New("dial collector"))
	before := otel.GetTracerProvider()

	if _, err := SetupOTel(context.Background(), enabled(1), "v1"); err == nil || !strings.Contains(err.Error(), "dial collector") {
		t.Fatalf("err = %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Fatal("global provider replaced after a failed setup")
	}
}

func TestExporterOptions(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.OTELConfig
		want int
	}{
		{"endpoint insecure", config.OTELConfig{Endpoint: "collector:4317", Insecure: true}, 2},
		{"endpoint tls", config.OTELConfig{Endpoint: "collector:4317"}, 2},
		{"exporter defaults", config.OTELConfig{Insecure: true}, 1},
	}
	for _, tc := range cases {
		if got := len(exporterOptions(tc.cfg)); got != tc.want {
			t.Errorf("%s: %d options, want %d", tc.name, got, tc.want)
		}
	}

	n := withExporter(t, tracetest.NewInMemoryExporter(), nil)
	shutdown, err := SetupOTel(context.Background(), enabled(1), "v1")
	if err != nil {
		t.Fatalf("SetupOTel: %v", err)
	}
	_ = shutdown(context.Background())
	if *n != 2 {
		t.Fatalf("exporter got %d options, want 2", *n)
	}
}

func TestSampler(t *testing.T) {
	cases := []struct {
		ratio float64
		want  string
	}{
		{1, "ParentBased{root:AlwaysOnSampler"},
		{2.5, "ParentBased{root:AlwaysOnSampler"},
		{0, "ParentBased{root:AlwaysOffSampler"},
		{-1, "ParentBased{root:AlwaysOffSampler"},
		{0.25, "ParentBased{root:TraceIDRatioBased{0.25}"},
	}
	for _, tc := range cases {
		if got := Sampler(tc.ratio).Description(); !strings.HasPrefix(got, tc.want) {
			t.Errorf("Sampler(%v) = %q, want prefix %q", tc.ratio, got, tc.want)
		}
	}
}
