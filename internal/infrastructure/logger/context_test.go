package logger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext_DefaultsToNop(t *testing.T) {
	log := FromContext(context.Background())
	require.NotNil(t, log)
	assert.False(t, log.Core().Enabled(zapcore.ErrorLevel))
}

func TestContextValues(t *testing.T) {
	tenant := uuid.New()
	actor := uuid.New()

	ctx := WithRequestID(context.Background(), "req-42")
	ctx = WithTenant(ctx, tenant)
	ctx = WithActor(ctx, actor)

	assert.Equal(t, "req-42", RequestID(ctx))
	assert.Equal(t, tenant, TenantID(ctx))
	assert.Equal(t, actor, ActorID(ctx))

	empty := context.Background()
	assert.Empty(t, RequestID(empty))
	assert.Equal(t, uuid.Nil, TenantID(empty))
	assert.Equal(t, uuid.Nil, ActorID(empty))
}

func TestL_AddsCorrelationFields(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	tenant := uuid.New()
	actor := uuid.New()

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})

	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = WithContext(ctx, zap.New(core))
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithTenant(ctx, tenant)
	ctx = WithActor(ctx, actor)

	L(ctx).Info("payment applied")

	entries := recorded.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", fields["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", fields["span_id"])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, tenant.String(), fields["tenant_id"])
	assert.Equal(t, actor.String(), fields["actor_id"])
}

func TestL_OmitsMissingFields(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	ctx := WithContext(context.Background(), zap.New(core))

	L(ctx).Info("sweep finished")

	entries := recorded.All()
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].ContextMap())
}

func TestEnrich(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	tenant := uuid.New()

	Enrich(WithTenant(context.Background(), tenant), zap.New(core)).Warn("overdue")

	entries := recorded.All()
	require.Len(t, entries, 1)
	assert.Equal(t, tenant.String(), entries[0].ContextMap()["tenant_id"])
}
