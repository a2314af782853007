package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestRecordSpan_Success(t *testing.T) {
	t.Parallel()

	tracer := noop.NewTracerProvider().Tracer("test")
	result, err := RecordSpan(context.Background(), tracer, SpanOptions{Name: "op", EndWhenDone: true},
		func(ctx context.Context, span trace.Span) (int, error) {
			return 42, nil
		})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestRecordSpan_PropagatesError(t *testing.T) {
	t.Parallel()

	tracer := noop.NewTracerProvider().Tracer("test")
	wantErr := errors.New("boom")
	result, err := RecordSpan(context.Background(), tracer, SpanOptions{Name: "op"},
		func(ctx context.Context, span trace.Span) (string, error) {
			return "unused", wantErr
		})
	require.ErrorIs(t, err, wantErr)
	assert.Empty(t, result)
}

func TestToolCallAttributes_IncludesToolName(t *testing.T) {
	t.Parallel()

	attrs := ToolCallAttributes("echo", nil)
	require.NotEmpty(t, attrs)
	assert.Equal(t, "mcp.tool.name", string(attrs[0].Key))
	assert.Equal(t, "echo", attrs[0].Value.AsString())
}

func TestToolCallAttributes_IncludesServerIDAndMetadata(t *testing.T) {
	t.Parallel()

	settings := DefaultSettings().WithServerID("srv-7")
	attrs := ToolCallAttributes("bulk_list", settings)

	found := false
	for _, a := range attrs {
		if string(a.Key) == "mcp.server.id" {
			found = true
			assert.Equal(t, "srv-7", a.Value.AsString())
		}
	}
	assert.True(t, found)
}
