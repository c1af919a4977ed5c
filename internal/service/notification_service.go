package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"internet-banking-core/internal/core/domain"
	"internet-banking-core/internal/core/ports"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const (
	notifyMaxRetries      = 3
	notifyInitialInterval = 500 * time.Millisecond
)

// NotificationServiceImpl implements ports.NotificationDispatcher.
// Events are published in the background with bounded retries; a failed
// delivery is logged and dropped.
type NotificationServiceImpl struct {
	publisher ports.EventPublisher
	timeout   time.Duration
	log       zerolog.Logger
	wg        sync.WaitGroup
}

// NewNotificationService creates a new NotificationServiceImpl.
func NewNotificationService(publisher ports.EventPublisher, timeout time.Duration, log zerolog.Logger) *NotificationServiceImpl {
	return &NotificationServiceImpl{
		publisher: publisher,
		timeout:   timeout,
		log:       log,
	}
}

// Dispatch hands event to the publisher. It never fails the caller.
func (s *NotificationServiceImpl) Dispatch(ctx context.Context, event domain.Event) {
	if s.publisher == nil {
		return
	}

	// Delivery outlives the request that produced the event.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		policy := backoff.WithContext(
			backoff.WithMaxRetries(newBackOff(notifyInitialInterval, s.timeout), notifyMaxRetries),
			ctx,
		)
		attempt := 0
		err := backoff.Retry(func() error {
			attempt++
			return s.publisher.Publish(ctx, event)
		}, policy)
		if err != nil {
			s.log.Warn().Err(err).
				Str("event", string(event.EventType())).
				Int("attempts", attempt).
				Msg("notification: delivery failed, dropping event")
			return
		}
		s.log.Debug().Str("event", string(event.EventType())).Int("attempts", attempt).Msg("notification: delivered")
	}()
}

// Wait blocks until in-flight deliveries finish.
func (s *NotificationServiceImpl) Wait() {
	s.wg.Wait()
}

// newBackOff returns an exponential policy that never gives up on elapsed
// time alone; callers bound it by retries and context.
func newBackOff(initial, maxInterval time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	if maxInterval > 0 {
		b.MaxInterval = maxInterval
	}
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// EventEnvelope is the JSON body posted by WebhookPublisher.
type EventEnvelope struct {
	Type       domain.EventType `json:"type"`
	OccurredAt time.Time        `json:"occurred_at"`
	Payload    domain.Event     `json:"payload"`
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookPublisher implements ports.EventPublisher by POSTing each event to
// a fixed URL. With a secret set, the body is signed into X-Signature.
type WebhookPublisher struct {
	url        string
	secret     []byte
	httpClient HTTPClient
}

// NewWebhookPublisher creates a new webhook publisher.
func NewWebhookPublisher(url, secret string, httpClient HTTPClient) *WebhookPublisher {
	return &WebhookPublisher{
		url:        url,
		secret:     []byte(secret),
		httpClient: httpClient,
	}
}

func (p *WebhookPublisher) Publish(ctx context.Context, event domain.Event) error {
	body, err := json.Marshal(EventEnvelope{
		Type:       event.EventType(),
		OccurredAt: time.Now().UTC(),
		Payload:    event,
	})
	if err != nil {
		return backoff.Permanent(fmt.Errorf("marshal %s event: %w", event.EventType(), err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create webhook request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", string(event.EventType()))
	if len(p.secret) > 0 {
		req.Header.Set("X-Signature", signHMAC(p.secret, body))
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook delivery: status %d", resp.StatusCode)
	}
	return nil
}

// LogPublisher implements ports.EventPublisher by writing events to the
// application log. Development only: OTP payloads are logged in clear.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, event domain.Event) error {
	p.log.Info().
		Str("event", string(event.EventType())).
		Interface("payload", event).
		Msg("notification")
	return nil
}
