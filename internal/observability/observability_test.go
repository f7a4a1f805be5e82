package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/davidbz/pixelcredit/internal/observability"
)

func TestEventBus_Publish(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	bus := observability.NewEventBus(zap.New(core))

	ctx := observability.WithRequestID(context.Background(), "req-1")
	bus.Publish(ctx, "ledger.reserved", map[string]interface{}{
		"user_id":  "u1",
		"credits":  int64(16),
		"provider": "replicate_flux",
	})

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "ledger.reserved", entries[0].Message)

	fields := entries[0].ContextMap()
	require.Equal(t, "ledger.reserved", fields["event"])
	require.Equal(t, "u1", fields["user_id"])
	require.Equal(t, int64(16), fields["credits"])
	require.Equal(t, "req-1", fields["request_id"])

	keys := make([]string, 0, len(entries[0].Context))
	for _, f := range entries[0].Context {
		keys = append(keys, f.Key)
	}
	require.Equal(t, []string{"event", "credits", "provider", "user_id", "request_id"}, keys)
}

func TestEventBus_NilIsNoop(t *testing.T) {
	var bus *observability.EventBus
	require.NotPanics(t, func() {
		bus.Publish(context.Background(), "pricing.cache_refreshed", nil)
	})
}

func TestFromContext_AttachesFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	observability.SetLogger(zap.New(core))
	t.Cleanup(func() { observability.SetLogger(zap.NewNop()) })

	ctx := context.Background()
	ctx = observability.WithTraceID(ctx, "trace-1")
	ctx = observability.WithProvider(ctx, "openai_dalle3")
	ctx = observability.WithServiceID(ctx, "dalle3_hd_wide")
	ctx = observability.WithReservationID(ctx, "res-9")

	observability.FromContext(ctx).Info("quoted")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "trace-1", fields["trace_id"])
	require.Equal(t, "openai_dalle3", fields["provider"])
	require.Equal(t, "dalle3_hd_wide", fields["service_id"])
	require.Equal(t, "res-9", fields["reservation_id"])
	require.NotContains(t, fields, "span_id")
}

func TestGenerateIDs_AreUnique(t *testing.T) {
	require.NotEqual(t, observability.GenerateTraceID(), observability.GenerateTraceID())
	require.NotEqual(t, observability.GenerateRequestID(), observability.GenerateRequestID())
	require.NotEmpty(t, observability.GenerateSpanID())
}
