package tracing

import (
	"context"
	"testing"
	"time"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	provider, err := NewTracerProvider(ctx, TracerConfig{ServiceName: "tutorhub", Enabled: false})
	if err != nil {
		t.Fatalf("expected no error for disabled tracing, got: %v", err)
	}

	_, span := provider.Tracer("test").Start(ctx, "noop")
	span.End()

	flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := provider.ForceFlush(flushCtx); err != nil {
		t.Fatalf("ForceFlush() error = %v", err)
	}
	if err := provider.Shutdown(flushCtx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func TestNewTracerProvider_ValidationErrors(t *testing.T) {
	tests := []struct {
		name        string
		config      TracerConfig
		expectedErr string
	}{
		{
			name:        "missing service name",
			config:      TracerConfig{Enabled: true, Endpoint: "localhost:4317"},
			expectedErr: "service name is required",
		},
		{
			name:        "missing endpoint",
			config:      TracerConfig{Enabled: true, ServiceName: "tutorhub"},
			expectedErr: "OTLP endpoint is required",
		},
		{
			name:        "negative sample rate",
			config:      TracerConfig{Enabled: true, ServiceName: "tutorhub", Endpoint: "localhost:4317", SampleRate: -0.1},
			expectedErr: "sample rate must be between 0 and 1",
		},
		{
			name:        "sample rate above one",
			config:      TracerConfig{Enabled: true, ServiceName: "tutorhub", Endpoint: "localhost:4317", SampleRate: 1.5},
			expectedErr: "sample rate must be between 0 and 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTracerProvider(context.Background(), tt.config)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if err.Error() != tt.expectedErr {
				t.Errorf("expected error %q, got %q", tt.expectedErr, err.Error())
			}
		})
	}
}

func TestNewTracerProvider_EnabledExporterIsLazy(t *testing.T) {
	ctx := context.Background()
	provider, err := NewTracerProvider(ctx, TracerConfig{
		ServiceName: "tutorhub",
		Endpoint:    "127.0.0.1:4317",
		SampleRate:  1,
		Enabled:     true,
	})
	if err != nil {
		t.Fatalf("NewTracerProvider() error = %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_ = provider.Shutdown(shutdownCtx)
}
