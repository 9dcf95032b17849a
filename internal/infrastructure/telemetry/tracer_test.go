package telemetry

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	before := otel.GetTracerProvider()

	tp, err := NewTracerProvider(ctx, Config{ServiceName: "gl-posting"}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	tp.EnableSpanProfiles()
	assert.False(t, tp.SpanProfilesEnabled())
	assert.Same(t, before, otel.GetTracerProvider())
	assert.NoError(t, tp.ForceFlush(ctx))
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestSamplerFor(t *testing.T) {
	assert.True(t, strings.Contains(samplerFor(1).Description(), "AlwaysOnSampler"))
	assert.True(t, strings.Contains(samplerFor(0).Description(), "AlwaysOffSampler"))
	assert.True(t, strings.Contains(samplerFor(0.25).Description(), "TraceIDRatioBased{0.25}"))
}

func TestNewResource(t *testing.T) {
	res, err := newResource("gl-posting", "")
	require.NoError(t, err)

	attrs := map[string]string{}
	for _, kv := range res.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "gl-posting", attrs["service.name"])
	assert.Equal(t, "dev", attrs["service.version"])
}

func TestMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	mp, err := NewMeterProvider(ctx, MetricsConfig{}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	_, err = NewCounter(mp.Meter("gl"), "noop_total", "noop", "1")
	assert.NoError(t, err)
	assert.NoError(t, mp.ForceFlush(ctx))
	assert.NoError(t, mp.Shutdown(ctx))
}
