package domain

import (
	"time"

	"github.com/google/uuid"
)

// SettlementDirection tells which bank initiated the cross-bank leg.
type SettlementDirection string

const (
	SettlementOutbound SettlementDirection = "OUTBOUND"
	SettlementInbound  SettlementDirection = "INBOUND"
)

// Settlement binds an interbank idempotency key to the local transaction it
// produced, so a replayed request returns the original result.
type Settlement struct {
	IdempotencyKey          string              `json:"idempotency_key"`
	Direction               SettlementDirection `json:"direction"`
	PartnerCode             string              `json:"partner_code"`
	ExternalCounterpartyRef string              `json:"external_counterparty_ref"`
	TransactionID           uuid.UUID           `json:"transaction_id"`
	Amount                  int64               `json:"amount"`
	ResponseJSON            []byte              `json:"response_json"` // Result returned on replay
	CreatedAt               time.Time           `json:"created_at"`
}

// BuildSettlementKey scopes a caller-supplied key by direction and partner.
func BuildSettlementKey(direction SettlementDirection, partnerCode, key string) string {
	return string(direction) + ":" + partnerCode + ":" + key
}
