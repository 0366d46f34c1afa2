// internal/guard/limits.go
package guard

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// checkTradeSize applies the regular-path bounds. Monitored buys never call it.
func (p Params) checkTradeSize(value uint64) error {
	if value < p.MinTrade {
		return fmt.Errorf("%w: %d < %d", ErrTradeTooSmall, value, p.MinTrade)
	}
	if value > p.MaxTrade {
		return fmt.Errorf("%w: %d > %d", ErrTradeTooLarge, value, p.MaxTrade)
	}
	return nil
}

// checkImpact compares an estimated impact with the configured cap.
func (p Params) checkImpact(impactBps uint64) error {
	if p.MaxPriceImpactBps == 0 || impactBps <= p.MaxPriceImpactBps {
		return nil
	}
	return fmt.Errorf("%w: impact %d bps above %d", ErrSlippageExceeded, impactBps, p.MaxPriceImpactBps)
}

// checkExternal verifies the request targets the launch's pool through the
// trusted program.
func (p Params) checkExternal(state *LaunchState, pool, program solana.PublicKey) error {
	if !pool.Equals(state.Pool) {
		return fmt.Errorf("%w: got %s, launch uses %s", ErrExternalPoolNotConfigured, pool, state.Pool)
	}
	if !program.Equals(p.AMMProgramID) {
		return fmt.Errorf("%w: %s", ErrUntrustedExternalProgram, program)
	}
	return nil
}
