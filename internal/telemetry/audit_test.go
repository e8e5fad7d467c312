package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/mocks"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/telemetry"
)

func TestEmitPublishesEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := telemetry.NewAuditEmitter(publisher, "audit.chat", "telegramm-clone", "test")

	userID := "7"
	publisher.On("Publish", mock.Anything, "audit.chat", mock.MatchedBy(func(event any) bool {
		envelope, ok := event.(telemetry.AuditEnvelope)
		if !ok {
			return false
		}
		return envelope.SchemaVersion == 1 &&
			envelope.EventType == "audit_log" &&
			envelope.Service == "telegramm-clone" &&
			envelope.Environment == "test" &&
			envelope.RequestID == "req-1" &&
			envelope.UserID != nil && *envelope.UserID == "7" &&
			envelope.Payload.Level == "INFO" &&
			envelope.Payload.Text == "Group created"
	})).Return(nil).Once()

	emitter.Emit(context.Background(), "INFO", "Group created", "req-1", &userID)

	publisher.AssertExpectations(t)
}

func TestEmitSwallowsPublishErrors(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := telemetry.NewAuditEmitter(publisher, "audit.chat", "telegramm-clone", "test")

	publisher.On("Publish", mock.Anything, "audit.chat", mock.Anything).
		Return(assert.AnError).Once()

	emitter.Emit(context.Background(), "ERROR", "boom", "req-2", nil)

	publisher.AssertExpectations(t)
}

func TestEmitWithoutPublisherIsNoOp(t *testing.T) {
	emitter := telemetry.NewAuditEmitter(nil, "audit.chat", "telegramm-clone", "test")

	emitter.Emit(context.Background(), "INFO", "ignored", "req-3", nil)
}
