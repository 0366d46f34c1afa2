// internal/pricing/reserves.go
package pricing

import (
	"errors"
	"fmt"
)

// Default reserve approximation used when nothing is configured.
const (
	DefaultValueReserve uint64 = 1_000_000_000
	DefaultTokenReserve uint64 = 1_000_000_000_000
)

// Reserves is the engine's own view of a pool's depth. It is a fixed
// approximation read from configuration, not the live reserves of the
// external AMM, so estimates derived from it can diverge from what the
// AMM actually fills.
type Reserves struct {
	Value  uint64 `mapstructure:"value_reserve"`
	Tokens uint64 `mapstructure:"token_reserve"`
}

// DefaultReserves returns the built-in approximation.
func DefaultReserves() Reserves {
	return Reserves{Value: DefaultValueReserve, Tokens: DefaultTokenReserve}
}

// Validate rejects empty reserves.
func (r Reserves) Validate() error {
	if r.Value == 0 || r.Tokens == 0 {
		return errors.New("reserves must be non-zero")
	}
	return nil
}

// TokensForValue estimates the tokens a buy of valueIn would receive.
func (r Reserves) TokensForValue(valueIn uint64) (uint64, error) {
	out, err := SwapOutput(valueIn, r.Value, r.Tokens)
	if err != nil {
		return 0, fmt.Errorf("tokens for value %d: %w", valueIn, err)
	}
	return out, nil
}

// ValueForTokens estimates the value a sell of tokensIn would return.
func (r Reserves) ValueForTokens(tokensIn uint64) (uint64, error) {
	out, err := SwapOutput(tokensIn, r.Tokens, r.Value)
	if err != nil {
		return 0, fmt.Errorf("value for tokens %d: %w", tokensIn, err)
	}
	return out, nil
}

// BuyImpactBps оценивает влияние покупки на цену в bps.
func (r Reserves) BuyImpactBps(valueIn uint64) (uint64, error) {
	return PriceImpactBps(valueIn, r.Value)
}

// SellImpactBps оценивает влияние продажи на цену в bps.
func (r Reserves) SellImpactBps(tokensIn uint64) (uint64, error) {
	return PriceImpactBps(tokensIn, r.Tokens)
}
