package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"clinic-chat-service/internal/mocks"
	"clinic-chat-service/internal/telemetry"
)

func TestAuditEmitterPublishesEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	publisher.On("Publish", mock.Anything, "audit.chat", mock.MatchedBy(func(event any) bool {
		env, ok := event.(telemetry.AuditEnvelope)
		if !ok {
			return false
		}
		return env.EventType == "audit_log" &&
			env.Service == "clinic-chat-service" &&
			env.Payload.Level == "ERROR" &&
			env.Payload.Text == "message store failed" &&
			env.UserID != nil && *env.UserID == 42
	})).Return(nil).Once()

	emitter := telemetry.NewAuditEmitter(publisher, "audit.chat", "clinic-chat-service", "test")

	userID := int64(42)
	emitter.Emit(context.Background(), "ERROR", "message store failed", "req-1", &userID)

	publisher.AssertExpectations(t)
}

func TestAuditEmitterNilSafe(t *testing.T) {
	var emitter *telemetry.AuditEmitter
	require.NotPanics(t, func() {
		emitter.Emit(context.Background(), "INFO", "noop", "req-2", nil)
	})

	empty := telemetry.NewAuditEmitter(nil, "audit.chat", "svc", "test")
	assert.NotPanics(t, func() {
		empty.Emit(context.Background(), "INFO", "noop", "req-3", nil)
	})
}
