package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"internet-banking-core/internal/core/domain"
	"internet-banking-core/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestNotificationService_Dispatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockPub := mocks.NewMockEventPublisher(ctrl)
	svc := NewNotificationService(mockPub, time.Second, newTestLogger())

	event := domain.InvoicePaid{InvoiceID: uuid.New()}
	mockPub.EXPECT().Publish(gomock.Any(), event).Return(nil).Times(1)

	svc.Dispatch(context.Background(), event)
	svc.Wait()
}

func TestNotificationService_RetriesThenDelivers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockPub := mocks.NewMockEventPublisher(ctrl)
	svc := NewNotificationService(mockPub, 5*time.Second, newTestLogger())

	event := domain.InvoicePaid{InvoiceID: uuid.New()}
	gomock.InOrder(
		mockPub.EXPECT().Publish(gomock.Any(), event).Return(errors.New("connection reset")),
		mockPub.EXPECT().Publish(gomock.Any(), event).Return(nil),
	)

	svc.Dispatch(context.Background(), event)
	svc.Wait()
}

func TestNotificationService_FailureIsDropped(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockPub := mocks.NewMockEventPublisher(ctrl)
	var logs bytes.Buffer
	svc := NewNotificationService(mockPub, 50*time.Millisecond, zerolog.New(&logs))

	mockPub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("down")).MinTimes(1)

	// The caller's context is already gone; delivery must not depend on it.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Dispatch(ctx, domain.InvoicePaid{InvoiceID: uuid.New()})
	svc.Wait()

	assert.Contains(t, logs.String(), "delivery failed")
}

func TestNotificationService_NilPublisher(t *testing.T) {
	svc := NewNotificationService(nil, time.Second, newTestLogger())
	svc.Dispatch(context.Background(), domain.InvoicePaid{InvoiceID: uuid.New()})
	svc.Wait()
}

func TestWebhookPublisher_SignsBody(t *testing.T) {
	secret := "hook-secret"
	var got struct {
		Type       domain.EventType `json:"type"`
		OccurredAt time.Time        `json:"occurred_at"`
		Payload    domain.OTPIssued `json:"payload"`
	}
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, string(domain.EventOTPIssued), r.Header.Get("X-Event-Type"))
		assert.True(t, verifyHMAC([]byte(secret), body, r.Header.Get("X-Signature")))
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	pub := NewWebhookPublisher(srv.URL, secret, srv.Client())
	owner := uuid.New()
	err := pub.Publish(context.Background(), domain.OTPIssued{OwnerID: owner, Kind: domain.TokenKindTransfer, Token: "abc"})
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, domain.EventOTPIssued, got.Type)
	assert.False(t, got.OccurredAt.IsZero())
	assert.Equal(t, owner, got.Payload.OwnerID)
	assert.Equal(t, "abc", got.Payload.Token)
}

func TestWebhookPublisher_UnsignedWithoutSecret(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("X-Signature"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	pub := NewWebhookPublisher(srv.URL, "", srv.Client())
	require.NoError(t, pub.Publish(context.Background(), domain.InvoicePaid{InvoiceID: uuid.New()}))
}

func TestWebhookPublisher_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	pub := NewWebhookPublisher(srv.URL, "s", srv.Client())
	err := pub.Publish(context.Background(), domain.InvoicePaid{InvoiceID: uuid.New()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestLogPublisher(t *testing.T) {
	var logs bytes.Buffer
	pub := NewLogPublisher(zerolog.New(&logs))

	require.NoError(t, pub.Publish(context.Background(), domain.InvoicePaid{InvoiceID: uuid.New()}))
	assert.Contains(t, logs.String(), `"event":"InvoicePaid"`)
}
