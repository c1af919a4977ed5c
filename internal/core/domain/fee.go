package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// FeePayer designates which party of a transfer absorbs the fee.
type FeePayer string

const (
	FeePayerSender   FeePayer = "SENDER"
	FeePayerReceiver FeePayer = "RECEIVER"
)

// ParseFeePayer accepts SENDER/RECEIVER in any case.
func ParseFeePayer(s string) (FeePayer, error) {
	switch FeePayer(strings.ToUpper(strings.TrimSpace(s))) {
	case FeePayerSender:
		return FeePayerSender, nil
	case FeePayerReceiver:
		return FeePayerReceiver, nil
	}
	return "", fmt.Errorf("unknown fee payer %q", s)
}

// FeeRate is an exact rational fee rate. Fees are computed with integer
// arithmetic and truncated toward zero.
type FeeRate struct {
	Numerator   int64
	Denominator int64
}

// ParseFeeRate converts a decimal string such as "0.01" into an exact FeeRate.
// The rate must be in [0, 1).
func ParseFeeRate(s string) (FeeRate, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return FeeRate{}, fmt.Errorf("parse fee rate: %w", err)
	}
	if d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return FeeRate{}, fmt.Errorf("fee rate %s out of range [0, 1)", s)
	}
	if d.IsZero() {
		return FeeRate{Numerator: 0, Denominator: 1}, nil
	}

	exp := d.Exponent()
	if exp >= 0 || exp < -18 {
		return FeeRate{}, fmt.Errorf("fee rate %s has unsupported precision", s)
	}
	den := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-exp)), nil)
	num := d.Coefficient()

	g := new(big.Int).GCD(nil, nil, num, den)
	num.Quo(num, g)
	den.Quo(den, g)

	return FeeRate{Numerator: num.Int64(), Denominator: den.Int64()}, nil
}

// FeeFor returns floor(amount * rate) for a positive amount.
func (r FeeRate) FeeFor(amount int64) int64 {
	if amount <= 0 || r.Numerator <= 0 || r.Denominator <= 0 {
		return 0
	}
	fee, _ := decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(r.Numerator)).
		QuoRem(decimal.NewFromInt(r.Denominator), 0)
	return fee.IntPart()
}

func (r FeeRate) String() string {
	return fmt.Sprintf("%d/%d", r.Numerator, r.Denominator)
}
