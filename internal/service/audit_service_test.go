package service

import (
	"context"
	"testing"
	"time"

	"internet-banking-core/internal/core/domain"
	"internet-banking-core/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestAuditService_Log_PersistsToRepo(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, newTestLogger())

	employeeID := uuid.New()
	done := make(chan struct{})
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, log *domain.AuditLog) error {
			assert.Equal(t, domain.AuditActionTellerDeposit, log.Action)
			assert.Equal(t, &employeeID, log.ActorID)
			assert.NotEqual(t, uuid.Nil, log.ID)
			assert.False(t, log.CreatedAt.IsZero())
			close(done)
			return nil
		},
	)

	svc.Log(context.Background(), &domain.AuditLog{
		ActorID:      &employeeID,
		ActorRole:    domain.RoleEmployee,
		Action:       domain.AuditActionTellerDeposit,
		ResourceType: "transaction",
		ResourceID:   uuid.New().String(),
		IPAddress:    "127.0.0.1",
	})

	select {
	case <-done:
		// OK
	case <-time.After(2 * time.Second):
		t.Fatal("audit log not persisted in time")
	}
}

func TestAuditService_Log_NilRepo(t *testing.T) {
	svc := NewAuditService(nil, newTestLogger())

	customerID := uuid.New()
	// Should not panic
	svc.Log(context.Background(), &domain.AuditLog{
		ActorID:      &customerID,
		ActorRole:    domain.RoleCustomer,
		Action:       domain.AuditActionLogout,
		ResourceType: "session",
		IPAddress:    "127.0.0.1",
	})

	time.Sleep(50 * time.Millisecond) // let goroutine run
}
