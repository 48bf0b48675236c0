package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/campushub/portal-support/internal/config"
)

func preserveGlobals(t *testing.T) {
	t.Helper()
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
}

func tracingConfig(enabled, insecure bool) config.OTELConfig {
	return config.OTELConfig{
		Enabled:     enabled,
		Insecure:    insecure,
		Endpoint:    "localhost:4317",
		ServiceName: "portal-test",
		SampleRatio: 1.0,
	}
}

func TestSetupOTel_DisabledIsNoOp(t *testing.T) {
	preserveGlobals(t)
	before := otel.GetTracerProvider()

	shutdown, err := SetupOTel(context.Background(), tracingConfig(false, true), "v0")
	if err != nil {
		t.Fatalf("SetupOTel: %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Fatalf("disabled setup must not touch the global provider")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown: %v", err)
	}
}

func TestSetupOTel_InstallsProviderAndPropagator(t *testing.T) {
	for name, insecure := range map[string]bool{"insecure": true, "tls": false} {
		t.Run(name, func(t *testing.T) {
			preserveGlobals(t)

			shutdown, err := SetupOTel(context.Background(), tracingConfig(true, insecure), "v1.2.3")
			if err != nil {
				t.Fatalf("SetupOTel: %v", err)
			}
			defer func() { _ = shutdown(context.Background()) }()

			if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
				t.Fatalf("global provider is %T", otel.GetTracerProvider())
			}

			// Trace context should round-trip through the propagator.
			ctx, span := otel.Tracer("t").Start(context.Background(), "root")
			span.End()
			carrier := propagation.MapCarrier{}
			otel.GetTextMapPropagator().Inject(ctx, carrier)
			if len(carrier) == 0 {
				t.Fatalf("propagator injected nothing")
			}
		})
	}
}

func TestSetupOTel_ConstructionErrorsLeaveGlobalsAlone(t *testing.T) {
	cases := map[string]func(){
		"exporter": func() {
			newExporter = func(context.Context, otlptrace.Client) (*otlptrace.Exporter, error) {
				return nil, errors.New("exporter down")
			}
		},
		"resource": func() {
			newResource = func(context.Context, string, string) (*resource.Resource, error) {
				return nil, errors.New("resource down")
			}
		},
	}
	for name, breakSeam := range cases {
		t.Run(name, func(t *testing.T) {
			preserveGlobals(t)
			origExp, origRes := newExporter, newResource
			t.Cleanup(func() { newExporter, newResource = origExp, origRes })
			breakSeam()

			before := otel.GetTracerProvider()
			if _, err := SetupOTel(context.Background(), tracingConfig(true, true), "v0"); err == nil {
				t.Fatalf("expected construction error")
			}
			if otel.GetTracerProvider() != before {
				t.Fatalf("provider replaced despite failed setup")
			}
		})
	}
}

func TestSetupOTel_ShutdownHonorsDeadline(t *testing.T) {
	preserveGlobals(t)

	shutdown, err := SetupOTel(context.Background(), tracingConfig(true, true), "v1")
	if err != nil {
		t.Fatalf("SetupOTel: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
