package service

import (
	"crypto"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"internet-banking-core/internal/core/domain"
	"internet-banking-core/pkg/apperror"
)

// RSASignatureService implements ports.MessageSigner with RSA PKCS#1 v1.5
// over SHA-256.
type RSASignatureService struct {
	bankCode      string
	privateKey    *rsa.PrivateKey
	partnerCode   string
	partnerPublic *rsa.PublicKey
}

// NewRSASignatureService creates a signer that seals as bankCode and only
// opens envelopes sealed by partnerCode.
func NewRSASignatureService(bankCode string, privateKey *rsa.PrivateKey, partnerCode string, partnerPublic *rsa.PublicKey) *RSASignatureService {
	return &RSASignatureService{
		bankCode:      bankCode,
		privateKey:    privateKey,
		partnerCode:   partnerCode,
		partnerPublic: partnerPublic,
	}
}

// Seal encodes payload as JSON and signs the exact bytes placed in Data.
func (s *RSASignatureService) Seal(payload any) (*domain.SignedEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	digest := sha256.Sum256(data)
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.privateKey, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("sign payload: %w", err)
	}

	return &domain.SignedEnvelope{
		BankCode:  s.bankCode,
		Data:      base64.StdEncoding.EncodeToString(data),
		Signature: base64.StdEncoding.EncodeToString(sig),
	}, nil
}

// Open verifies env against the partner key and only then decodes the
// payload into out.
func (s *RSASignatureService) Open(env *domain.SignedEnvelope, out any) error {
	if env == nil {
		return apperror.UntrustedResponse("empty envelope")
	}
	if env.BankCode != s.partnerCode {
		return apperror.UntrustedResponse(fmt.Sprintf("unexpected bank code %q", env.BankCode))
	}

	data, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return apperror.UntrustedResponse("malformed data encoding")
	}
	sig, err := base64.StdEncoding.DecodeString(env.Signature)
	if err != nil {
		return apperror.UntrustedResponse("malformed signature encoding")
	}

	digest := sha256.Sum256(data)
	if err := rsa.VerifyPKCS1v15(s.partnerPublic, crypto.SHA256, digest[:], sig); err != nil {
		return apperror.UntrustedResponse("signature mismatch")
	}

	if err := json.Unmarshal(data, out); err != nil {
		return apperror.UntrustedResponse("malformed payload")
	}
	return nil
}

// signHMAC computes HMAC-SHA256 of payload using secret.
// Returns lowercase hex-encoded signature.
func signHMAC(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
