package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestEnsureRequestMetaGeneratesID(t *testing.T) {
	ctx, meta := EnsureRequestMeta(context.Background(), "")
	require.NotEmpty(t, meta.RequestID)

	got, ok := RequestMetaFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, meta.RequestID, got.RequestID)
}

func TestEnsureRequestMetaKeepsExistingID(t *testing.T) {
	ctx, _ := EnsureRequestMeta(context.Background(), "req-123")
	_, meta := EnsureRequestMeta(ctx, "")
	require.Equal(t, "req-123", meta.RequestID)
}

func TestEnsureRequestMetaCapturesSpan(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("0123456789abcdef")
	require.NoError(t, err)
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	_, meta := EnsureRequestMeta(ctx, "req-1")
	require.Equal(t, traceID.String(), meta.TraceID)
	require.Equal(t, spanID.String(), meta.SpanID)
	require.Len(t, RequestFields(meta), 3)
}

func TestRequestFieldsEmpty(t *testing.T) {
	require.Nil(t, RequestFields(RequestMeta{}))
}
