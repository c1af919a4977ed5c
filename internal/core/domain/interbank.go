package domain

import "time"

// SignedEnvelope is the wire form of every interbank message: the canonical
// JSON payload in base64 plus a detached RSA-SHA256 signature over those bytes.
type SignedEnvelope struct {
	BankCode  string `json:"bankCode"`
	Data      string `json:"data"`
	Signature string `json:"signature"`
}

// Expiring is implemented by all interbank payloads.
type Expiring interface {
	Expiry() time.Time
}

// PayerDesignation is the wire spelling of a fee payer.
type PayerDesignation string

const (
	PayerSender   PayerDesignation = "sender"
	PayerReceiver PayerDesignation = "receiver"
)

// FeePayer maps the wire designation onto the ledger's fee payer.
func (p PayerDesignation) FeePayer() (FeePayer, bool) {
	switch p {
	case PayerSender:
		return FeePayerSender, true
	case PayerReceiver:
		return FeePayerReceiver, true
	}
	return "", false
}

// DesignationFor is the inverse of PayerDesignation.FeePayer.
func DesignationFor(p FeePayer) PayerDesignation {
	if p == FeePayerReceiver {
		return PayerReceiver
	}
	return PayerSender
}

// TransferMessage asks the receiving bank to credit one of its accounts.
type TransferMessage struct {
	IdempotencyKey    string           `json:"idempotencyKey"`
	Amount            int64            `json:"amount"`
	FromAccountNumber string           `json:"fromAccountNumber"`
	ToAccountNumber   string           `json:"toAccountNumber"`
	Message           string           `json:"message"`
	Payer             PayerDesignation `json:"payer"`
	CreatedAt         time.Time        `json:"createdAt"`
	ExpiredAt         time.Time        `json:"expiredAt"`
}

func (m TransferMessage) Expiry() time.Time { return m.ExpiredAt }

// ReceiptStatus is the receiving bank's verdict on a TransferMessage.
type ReceiptStatus string

const (
	ReceiptAccepted ReceiptStatus = "ACCEPTED"
	ReceiptRejected ReceiptStatus = "REJECTED"
)

// Rejection reasons carried in TransferReceipt.Reason.
const (
	RejectAccountNotFound = "account_not_found"
	RejectInvalidAmount   = "invalid_amount"
	RejectInvalidPayer    = "invalid_payer"
)

// TransferReceipt is the signed answer to a TransferMessage.
// Reference is the receiving bank's transaction id.
type TransferReceipt struct {
	IdempotencyKey string        `json:"idempotencyKey"`
	Status         ReceiptStatus `json:"status"`
	Reference      string        `json:"reference,omitempty"`
	CreditedAmount int64         `json:"creditedAmount"`
	Reason         string        `json:"reason,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	ExpiredAt      time.Time     `json:"expiredAt"`
}

func (r TransferReceipt) Expiry() time.Time { return r.ExpiredAt }

// AccountQuery asks the other bank who owns an account number.
type AccountQuery struct {
	AccountNumber string    `json:"accountNumber"`
	CreatedAt     time.Time `json:"createdAt"`
	ExpiredAt     time.Time `json:"expiredAt"`
}

func (q AccountQuery) Expiry() time.Time { return q.ExpiredAt }

// AccountInfo is the signed answer to an AccountQuery. It never carries a balance.
type AccountInfo struct {
	AccountNumber string    `json:"accountNumber"`
	DisplayName   string    `json:"displayName,omitempty"`
	Found         bool      `json:"found"`
	CreatedAt     time.Time `json:"createdAt"`
	ExpiredAt     time.Time `json:"expiredAt"`
}

func (a AccountInfo) Expiry() time.Time { return a.ExpiredAt }
