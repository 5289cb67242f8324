package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, want := range cases {
		assert.Equal(t, want, ParseLevel(input), input)
	}
}

func TestStartSpanInheritsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "debug")

	ctx := WithLogger(context.Background(), logger)
	ctx = WithRequestID(ctx, "req-1")

	spanCtx, span := StartSpan(ctx, "social.toggle", slog.String("kind", "like"))
	assert.Equal(t, "req-1", TraceIDFromContext(spanCtx))
	assert.NotEmpty(t, SpanIDFromContext(spanCtx))

	span.End()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "span completed", entry["msg"])
	assert.Equal(t, "social.toggle", entry["span_name"])
	assert.Equal(t, "like", entry["kind"])
	assert.Equal(t, "req-1", entry["trace_id"])
}

func TestSpanRecordError(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, "info"))

	_, span := StartSpan(ctx, "auth.refresh")
	span.RecordError(errors.New("boom"))
	span.End()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "span failed", entry["msg"])
	assert.Equal(t, "boom", entry["error"])

	var nilSpan *Span
	nilSpan.RecordError(errors.New("ignored"))
	nilSpan.End()
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Equal(t, slog.Default(), FromContext(context.Background()))
}
