// internal/guard/state.go
package guard

import (
	"math"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/launchguard/internal/pricing"
)

// Phase of a launch relative to the monitoring window.
type Phase uint8

const (
	PhaseMonitoring Phase = iota
	PhaseOpen
)

func (p Phase) String() string {
	if p == PhaseMonitoring {
		return "MONITORING"
	}
	return "OPEN"
}

// Classify returns PhaseMonitoring while current <= checkpoint+window. The
// boundary slot itself is still monitored.
func Classify(current, checkpoint, window uint64) Phase {
	end := checkpoint + window
	if end < checkpoint {
		end = math.MaxUint64
	}
	if current <= end {
		return PhaseMonitoring
	}
	return PhaseOpen
}

// LaunchState is the persistent record kept for one defended mint.
type LaunchState struct {
	Authority     solana.PublicKey
	Mint          solana.PublicKey
	LaunchSlot    uint64
	IsLaunched    bool
	CapturedValue uint64
	ReserveTokens uint64
	// Bump is the derivation tag of the delegated manager authority.
	Bump              uint8
	LastFlaggedTrader solana.PublicKey
	Pool              solana.PublicKey
	// CounterTradedTokens is the running total sold back by counter-trades.
	CounterTradedTokens uint64
}

// Phase classifies slot against this launch's checkpoint.
func (s *LaunchState) Phase(slot, window uint64) Phase {
	return Classify(slot, s.LaunchSlot, window)
}

// WindowEnd is the last monitored slot.
func (s *LaunchState) WindowEnd(window uint64) uint64 {
	end := s.LaunchSlot + window
	if end < s.LaunchSlot {
		return math.MaxUint64
	}
	return end
}

// PoolLiquidity is the part of the reserve handed to the pool at creation.
func (s *LaunchState) PoolLiquidity() uint64 {
	return s.ReserveTokens / 2
}

// AvailableReserve is what counter-trades may still sell.
func (s *LaunchState) AvailableReserve() uint64 {
	left := s.ReserveTokens - s.PoolLiquidity()
	if s.CounterTradedTokens >= left {
		return 0
	}
	return left - s.CounterTradedTokens
}

// recordCapture adds value to the captured total and flags trader. Nothing
// is modified when the addition overflows.
func (s *LaunchState) recordCapture(trader solana.PublicKey, value uint64) error {
	total, err := pricing.CheckedAdd(s.CapturedValue, value)
	if err != nil {
		return err
	}
	s.CapturedValue = total
	s.LastFlaggedTrader = trader
	return nil
}

// recordCounterTrade accounts tokens sold from the reserve.
func (s *LaunchState) recordCounterTrade(tokens uint64) error {
	if tokens > s.AvailableReserve() {
		return ErrInsufficientReserve
	}
	total, err := pricing.CheckedAdd(s.CounterTradedTokens, tokens)
	if err != nil {
		return err
	}
	s.CounterTradedTokens = total
	return nil
}

// FlaggedTrader is the per-identity history of detected bot purchases.
type FlaggedTrader struct {
	Trader        solana.PublicKey
	Detections    uint64
	CapturedValue uint64
	FirstSlot     uint64
	LastSlot      uint64
}

func (f *FlaggedTrader) observe(value, slot uint64) {
	if f.Detections == 0 {
		f.FirstSlot = slot
	}
	f.Detections++
	// Сумма по одному трейдеру не больше общей суммы, которая уже проверена.
	if total, err := pricing.CheckedAdd(f.CapturedValue, value); err == nil {
		f.CapturedValue = total
	} else {
		f.CapturedValue = math.MaxUint64
	}
	f.LastSlot = slot
}
