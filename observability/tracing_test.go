package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/campaignmesh/config"
)

func TestNewTracing_Disabled(t *testing.T) {
	tr, err := NewTracing(config.TracingConfig{Exporter: "stdout"}, nil)
	require.NoError(t, err)
	assert.False(t, tr.Enabled())

	_, span := tr.Tracer.Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	assert.NoError(t, tr.Shutdown(context.Background()))
}

func TestNewTracing_Stdout(t *testing.T) {
	var buf bytes.Buffer

	tr, err := NewTracing(config.TracingConfig{Enabled: true, Exporter: "stdout"}, &buf)
	require.NoError(t, err)
	assert.True(t, tr.Enabled())

	_, span := tr.Tracer.Start(context.Background(), "agent.run")
	span.End()

	require.NoError(t, tr.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), `"Name": "agent.run"`)
	assert.Contains(t, buf.String(), ServiceName)
}

func TestNewTracing_UnknownExporter(t *testing.T) {
	_, err := NewTracing(config.TracingConfig{Enabled: true, Exporter: "jaeger"}, nil)
	assert.Error(t, err)
}
