package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledProviderIsNoop(t *testing.T) {
	p, err := New(Config{Enabled: false})
	require.NoError(t, err)

	ctx, span := p.Start(context.Background(), "scan")
	span.End()
	assert.Empty(t, TraceID(ctx))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestEnabledProviderExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(Config{Enabled: true, ServiceName: "signalgate-test", SampleRatio: 1, Writer: &buf})
	require.NoError(t, err)

	ctx, span := p.Start(context.Background(), "scan_cycle")
	id := TraceID(ctx)
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))

	assert.Len(t, id, 32)
	assert.Contains(t, buf.String(), "scan_cycle")
	assert.Contains(t, buf.String(), id)
}
