package tracer

import (
	"context"
	"testing"

	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"

	"hearing-intake/internal/config"
)

func TestInit_DisabledKeepsServiceResource(t *testing.T) {
	tp, err := Init(config.AppConfig{Name: "hearing-intake", Environment: "test"}, config.TracingConfig{})
	if err != nil {
		t.Fatalf("Init error: %v", err)
	}
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer("test").Start(context.Background(), "turn")
	defer span.End()
	if span.SpanContext().IsSampled() {
		t.Fatalf("disabled tracing should not sample")
	}
}

func TestServiceResource_NameFallback(t *testing.T) {
	tests := []struct {
		name string
		app  config.AppConfig
		cfg  config.TracingConfig
		want string
	}{
		{name: "tracing name wins", app: config.AppConfig{Name: "app"}, cfg: config.TracingConfig{ServiceName: "intake-api"}, want: "intake-api"},
		{name: "app name", app: config.AppConfig{Name: "app"}, want: "app"},
		{name: "default", want: defaultServiceName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := serviceResource(tt.app, tt.cfg)
			if err != nil {
				t.Fatalf("serviceResource error: %v", err)
			}
			v, ok := res.Set().Value(semconv.ServiceNameKey)
			if !ok || v.AsString() != tt.want {
				t.Fatalf("service.name = %q, want %q", v.AsString(), tt.want)
			}
		})
	}
}

func TestSampleRate(t *testing.T) {
	prod := config.AppConfig{Environment: "production"}
	tests := []struct {
		name string
		app  config.AppConfig
		rate float64
		want float64
	}{
		{name: "development samples everything", app: config.AppConfig{Environment: "development"}, rate: 0.1, want: 1},
		{name: "production ratio", app: prod, rate: 0.25, want: 0.25},
		{name: "negative clamps", app: prod, rate: -2, want: 0},
		{name: "above one clamps", app: prod, rate: 3, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sampleRate(tt.app, config.TracingConfig{SampleRate: tt.rate}); got != tt.want {
				t.Fatalf("sampleRate = %v, want %v", got, tt.want)
			}
		})
	}
}
