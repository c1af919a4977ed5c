package service

import (
	"crypto/hmac"
	"crypto/rsa"
	"encoding/base64"
	"testing"
	"time"

	"internet-banking-core/internal/core/domain"
	"internet-banking-core/pkg/apperror"
	"internet-banking-core/pkg/keys"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// verifyHMAC checks signature the way a webhook receiver would.
func verifyHMAC(secret, payload []byte, signature string) bool {
	return hmac.Equal([]byte(signHMAC(secret, payload)), []byte(signature))
}

// signerPair returns the local bank's signer and the partner's signer, each
// trusting the other.
func signerPair(t *testing.T) (local, partner *RSASignatureService) {
	t.Helper()
	localKey := testKey(t)
	partnerKey := testKey(t)
	local = NewRSASignatureService("IBC", localKey, "KARMA", &partnerKey.PublicKey)
	partner = NewRSASignatureService("KARMA", partnerKey, "IBC", &localKey.PublicKey)
	return local, partner
}

var cachedKeys []*rsa.PrivateKey

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	// Key generation dominates test time; the pool is shared across tests.
	for len(cachedKeys) < 3 {
		k, err := keys.Generate(keys.DefaultBits)
		require.NoError(t, err)
		cachedKeys = append(cachedKeys, k)
	}
	k := cachedKeys[0]
	cachedKeys = append(cachedKeys[1:], k)
	return k
}

func TestRSASignatureService_SealOpen(t *testing.T) {
	local, partner := signerPair(t)

	msg := domain.TransferMessage{
		IdempotencyKey:    "key-1",
		Amount:            5000,
		FromAccountNumber: "0000000001",
		ToAccountNumber:   "9000000001",
		Payer:             domain.PayerSender,
		CreatedAt:         time.Now().UTC().Truncate(time.Second),
		ExpiredAt:         time.Now().UTC().Add(time.Minute).Truncate(time.Second),
	}
	env, err := partner.Seal(msg)
	require.NoError(t, err)
	assert.Equal(t, "KARMA", env.BankCode)

	var got domain.TransferMessage
	require.NoError(t, local.Open(env, &got))
	assert.Equal(t, msg, got)
}

func TestRSASignatureService_Open_TamperedData(t *testing.T) {
	local, partner := signerPair(t)

	env, err := partner.Seal(domain.TransferMessage{IdempotencyKey: "k", Amount: 1})
	require.NoError(t, err)
	env.Data = base64.StdEncoding.EncodeToString([]byte(`{"idempotencyKey":"k","amount":1000000}`))

	var got domain.TransferMessage
	err = local.Open(env, &got)
	assert.True(t, apperror.Is(err, apperror.KindUntrustedResponse))
	assert.Zero(t, got.Amount, "payload must not be decoded before verification")
}

func TestRSASignatureService_Open_WrongSigner(t *testing.T) {
	local, _ := signerPair(t)
	impostor := NewRSASignatureService("KARMA", testKey(t), "IBC", nil)

	env, err := impostor.Seal(domain.AccountQuery{AccountNumber: "0000000001"})
	require.NoError(t, err)

	var q domain.AccountQuery
	assert.True(t, apperror.Is(local.Open(env, &q), apperror.KindUntrustedResponse))
}

func TestRSASignatureService_Open_Rejects(t *testing.T) {
	local, partner := signerPair(t)
	good, err := partner.Seal(domain.AccountQuery{AccountNumber: "0000000001"})
	require.NoError(t, err)

	tests := []struct {
		name string
		env  *domain.SignedEnvelope
	}{
		{"nil", nil},
		{"bank code", &domain.SignedEnvelope{BankCode: "OTHER", Data: good.Data, Signature: good.Signature}},
		{"data encoding", &domain.SignedEnvelope{BankCode: "KARMA", Data: "%%%", Signature: good.Signature}},
		{"signature encoding", &domain.SignedEnvelope{BankCode: "KARMA", Data: good.Data, Signature: "%%%"}},
		{"empty signature", &domain.SignedEnvelope{BankCode: "KARMA", Data: good.Data}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q domain.AccountQuery
			err := local.Open(tt.env, &q)
			assert.True(t, apperror.Is(err, apperror.KindUntrustedResponse), "got %v", err)
		})
	}
}

func TestHMAC_SignAndVerify(t *testing.T) {
	secret := []byte("webhook-secret")
	payload := []byte(`{"type":"InvoicePaid"}`)

	signature := signHMAC(secret, payload)
	assert.Regexp(t, `^[0-9a-f]{64}$`, signature)
	assert.True(t, verifyHMAC(secret, payload, signature))
	assert.False(t, verifyHMAC([]byte("other"), payload, signature))
	assert.False(t, verifyHMAC(secret, []byte(`{"type":"InvoiceCreated"}`), signature))
}
