package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/angelmondragon/kitstock-backend/pkg/config"
)

func entries(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestErrorCarriesContextFieldsAndStack(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Output: buf})

	ctx := log.WithUserID(context.Background(), "u-1")
	ctx = log.WithField(ctx, "order_id", "o-9")
	log.Error(ctx, "checkout failed", errors.New("lock timeout"))

	got := entries(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "api", got[0]["service"])
	assert.Equal(t, "u-1", got[0]["user_id"])
	assert.Equal(t, "o-9", got[0]["order_id"])
	assert.Equal(t, "lock timeout", got[0]["error"])
	assert.NotEmpty(t, got[0]["stack"])
}

func TestChildFieldsStayOnChild(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{Output: buf})

	parent := log.WithField(context.Background(), "customer_id", "c-1")
	child := log.WithFields(parent, map[string]any{"released": 3, "customer_id": "c-2"})
	log.Info(parent, "parent")
	log.Info(child, "child")

	got := entries(t, buf)
	require.Len(t, got, 2)
	assert.Equal(t, "c-1", got[0]["customer_id"])
	assert.NotContains(t, got[0], "released")
	assert.Equal(t, "c-2", got[1]["customer_id"])
	assert.EqualValues(t, 3, got[1]["released"])
}

func TestEntriesCarryTraceIDs(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{Output: buf})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))
	log.Info(ctx, "traced")

	got := entries(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", got[0]["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", got[0]["span_id"])
}

func TestWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{Output: buf, WarnStack: true}).Warn(context.Background(), "low stock")
	assert.Contains(t, buf.String(), `"stack"`)

	buf.Reset()
	New(Options{Output: buf}).Warn(context.Background(), "low stock")
	assert.NotContains(t, buf.String(), `"stack"`)
}

func TestLevelFilters(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{Level: ParseLevel("warn"), Output: buf})
	log.Info(log.WithField(context.Background(), "k", "v"), "hidden")
	log.Debug(context.Background(), "hidden")
	assert.Zero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("chatty"))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
}

func TestFromConfigHonoursLevel(t *testing.T) {
	log := FromConfig("cron-worker", config.AppConfig{LogLevel: "error", LogFormat: "json"})
	assert.Equal(t, zerolog.ErrorLevel, log.base.GetLevel())
}
