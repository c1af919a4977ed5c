// Package interbank is the outbound transport to the partner bank. Every
// request and response crosses the wire as a signed envelope.
package interbank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"internet-banking-core/internal/core/domain"
	"internet-banking-core/internal/core/ports"
	"internet-banking-core/pkg/apperror"
)

const (
	depositPath      = "/api/external/deposit"
	queryAccountPath = "/api/external/query-account"

	maxResponseBytes = 1 << 20
)

// Client implements ports.PartnerBankClient over HTTP. It makes exactly one
// attempt per call.
type Client struct {
	baseURL    string
	signer     ports.MessageSigner
	httpClient *http.Client
	messageTTL time.Duration
	now        func() time.Time
}

// NewClient creates a partner bank client. timeout bounds each attempt.
func NewClient(baseURL string, signer ports.MessageSigner, timeout, messageTTL time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		signer:     signer,
		httpClient: &http.Client{Timeout: timeout},
		messageTTL: messageTTL,
		now:        time.Now,
	}
}

// Transfer asks the partner to credit msg.ToAccountNumber.
func (c *Client) Transfer(ctx context.Context, msg domain.TransferMessage) (*domain.TransferReceipt, error) {
	var receipt domain.TransferReceipt
	if err := c.exchange(ctx, depositPath, msg, msg.ExpiredAt, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// QueryAccount asks the partner who owns accountNumber.
func (c *Client) QueryAccount(ctx context.Context, accountNumber string) (*domain.AccountInfo, error) {
	now := c.now().UTC()
	query := domain.AccountQuery{
		AccountNumber: accountNumber,
		CreatedAt:     now,
		ExpiredAt:     now.Add(c.messageTTL),
	}

	var info domain.AccountInfo
	if err := c.exchange(ctx, queryAccountPath, query, query.ExpiredAt, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// exchange seals payload, posts it and opens the signed answer into out.
// An answer that arrives once requestExpiry has passed is not trusted: the
// partner should have refused the request by then.
func (c *Client) exchange(ctx context.Context, path string, payload any, requestExpiry time.Time, out domain.Expiring) error {
	env, err := c.signer.Seal(payload)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("seal request: %w", err))
	}
	body, err := json.Marshal(env)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("marshal envelope: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return apperror.InternalError(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperror.SettlementUnavailable(fmt.Errorf("post %s: %w", path, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apperror.SettlementUnavailable(fmt.Errorf("read %s response: %w", path, err))
	}

	switch {
	case resp.StatusCode >= 500:
		return apperror.SettlementUnavailable(fmt.Errorf("post %s: status %d", path, resp.StatusCode))
	case resp.StatusCode >= 300:
		return apperror.SettlementRejected(fmt.Sprintf("http %d", resp.StatusCode))
	}

	var answer domain.SignedEnvelope
	if err := json.Unmarshal(raw, &answer); err != nil {
		return apperror.UntrustedResponse("response is not an envelope")
	}
	if err := c.signer.Open(&answer, out); err != nil {
		return err
	}
	now := c.now()
	if !now.Before(requestExpiry) {
		return apperror.UntrustedResponse("request expired before the answer arrived")
	}
	if !now.Before(out.Expiry()) {
		return apperror.UntrustedResponse("response expired")
	}
	return nil
}
