// internal/pricing/format.go
package pricing

import (
	"github.com/shopspring/decimal"
)

const (
	// LamportsDecimals - количество десятичных знаков у нативной валюты.
	LamportsDecimals uint8 = 9
	// TokenDecimals is the default mint precision.
	TokenDecimals uint8 = 6
)

// AmountToDecimal переводит сырое количество в decimal с учетом точности.
func AmountToDecimal(amount uint64, decimals uint8) decimal.Decimal {
	multiplier := decimal.New(1, int32(decimals))
	return decimal.NewFromUint64(amount).Div(multiplier)
}

// FormatLamports renders a native amount, e.g. 100000000 -> "0.100000000".
func FormatLamports(amount uint64) string {
	return AmountToDecimal(amount, LamportsDecimals).StringFixed(int32(LamportsDecimals))
}

// FormatTokens renders a token amount with the given precision.
func FormatTokens(amount uint64, decimals uint8) string {
	return AmountToDecimal(amount, decimals).StringFixed(int32(decimals))
}

// SpotPrice returns value per token for the given reserves, or zero when
// the token side is empty.
func SpotPrice(value, tokens uint64) decimal.Decimal {
	if tokens == 0 {
		return decimal.Zero
	}
	return decimal.NewFromUint64(value).Div(decimal.NewFromUint64(tokens))
}
