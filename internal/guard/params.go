// internal/guard/params.go
package guard

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/launchguard/internal/pricing"
)

const (
	DefaultWindowSlots       uint64 = 5
	MinTrade                 uint64 = 100_000
	MaxTrade                 uint64 = 1_000_000_000
	DefaultMaxPriceImpactBps uint64 = 1_000
)

// RaydiumAMMProgramID is the default trusted external AMM (Raydium AMM v4).
var RaydiumAMMProgramID = solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")

// Params are the engine's tunables.
type Params struct {
	// ProgramID is the identity the delegated authority is derived under.
	ProgramID solana.PublicKey
	// AMMProgramID is the only external program trades may target.
	AMMProgramID solana.PublicKey
	WindowSlots  uint64
	MinTrade     uint64
	MaxTrade     uint64
	// MaxPriceImpactBps caps the estimated impact of regular trades; 0 disables.
	MaxPriceImpactBps uint64
	// InitialPairedValue is the value paired with half the reserve at pool creation.
	InitialPairedValue uint64
	Reserves           pricing.Reserves
}

// DefaultParams returns the defaults for programID.
func DefaultParams(programID solana.PublicKey) Params {
	return Params{
		ProgramID:          programID,
		AMMProgramID:       RaydiumAMMProgramID,
		WindowSlots:        DefaultWindowSlots,
		MinTrade:           MinTrade,
		MaxTrade:           MaxTrade,
		MaxPriceImpactBps:  DefaultMaxPriceImpactBps,
		InitialPairedValue: MinTrade,
		Reserves:           pricing.DefaultReserves(),
	}
}

// Validate rejects inconsistent parameters.
func (p Params) Validate() error {
	if p.ProgramID.IsZero() {
		return errors.New("program id is required")
	}
	if p.AMMProgramID.IsZero() {
		return errors.New("amm program id is required")
	}
	if p.MinTrade == 0 || p.MinTrade > p.MaxTrade {
		return fmt.Errorf("invalid trade bounds [%d, %d]", p.MinTrade, p.MaxTrade)
	}
	if p.MaxPriceImpactBps > pricing.BasisPoints {
		return fmt.Errorf("max price impact %d bps exceeds %d", p.MaxPriceImpactBps, pricing.BasisPoints)
	}
	if p.InitialPairedValue == 0 {
		return errors.New("initial paired value must be positive")
	}
	return p.Reserves.Validate()
}
