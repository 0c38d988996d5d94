package observe

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	m.RecordResolution(ctx, "call", "ok")
	m.RecordDenial(ctx, "low_confidence")
	m.RecordTransition(ctx, "call", "connected")
	m.ActiveRecords.Add(ctx, 1)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	names := make(map[string]bool)
	for _, scope := range rm.ScopeMetrics {
		for _, metric := range scope.Metrics {
			names[metric.Name] = true
		}
	}

	for _, want := range []string{
		"voxdial.resolutions",
		"voxdial.denials",
		"voxdial.lifecycle.transitions",
		"voxdial.active_records",
	} {
		if !names[want] {
			t.Errorf("metric %q not collected; got %v", want, names)
		}
	}
}
