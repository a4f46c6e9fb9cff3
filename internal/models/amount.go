package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CurrencySTX is the only supported payment asset.
const CurrencySTX = "STX"

var microSTXPerSTX = decimal.NewFromInt(1_000_000)

// STXToMicroSTX converts an STX amount to atomic microSTX units as the
// integer string carried in payment requirements.
func STXToMicroSTX(amount decimal.Decimal) string {
	return amount.Mul(microSTXPerSTX).Truncate(0).String()
}

// MicroSTXToSTX converts an atomic-unit integer string back to STX.
func MicroSTXToSTX(micro string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(micro)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid atomic amount %q: %w", micro, err)
	}
	return d.Div(microSTXPerSTX), nil
}
