// =============================
// File: internal/guard/errors.go
// =============================
package guard

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/launchguard/internal/pricing"
)

var (
	ErrMonitoringPeriodEnded     = errors.New("monitoring period ended")
	ErrTradingNotActive          = errors.New("trading not active")
	ErrTradeTooSmall             = errors.New("trade too small")
	ErrTradeTooLarge             = errors.New("trade too large")
	ErrMathOverflow              = pricing.ErrMathOverflow
	ErrInsufficientReserve       = errors.New("insufficient reserve")
	ErrExternalPoolNotConfigured = errors.New("external pool not configured")
	ErrUntrustedExternalProgram  = errors.New("untrusted external program")
	ErrSlippageExceeded          = errors.New("slippage exceeded")

	ErrAlreadyInitialized = errors.New("launch already initialized")
	ErrLaunchNotFound     = errors.New("launch not found")
	ErrNotLaunched        = errors.New("launch not active")
	ErrInvalidReserve     = errors.New("invalid reserve amount")
	ErrInvalidRequest     = errors.New("invalid request")
)

// TradeError carries the context of a failed engine call.
type TradeError struct {
	Op     string
	Mint   solana.PublicKey
	Trader solana.PublicKey
	Amount uint64
	Err    error
}

func (e *TradeError) Error() string {
	if e.Trader.IsZero() {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Mint, e.Err)
	}
	return fmt.Sprintf("%s %s by %s (amount %d): %v", e.Op, e.Mint, e.Trader, e.Amount, e.Err)
}

func (e *TradeError) Unwrap() error {
	return e.Err
}

// reasons maps sentinel errors to short labels for metrics and journals.
var reasons = []struct {
	err   error
	label string
}{
	{ErrMonitoringPeriodEnded, "monitoring_period_ended"},
	{ErrTradingNotActive, "trading_not_active"},
	{ErrTradeTooSmall, "trade_too_small"},
	{ErrTradeTooLarge, "trade_too_large"},
	{ErrMathOverflow, "math_overflow"},
	{ErrInsufficientReserve, "insufficient_reserve"},
	{ErrExternalPoolNotConfigured, "external_pool_not_configured"},
	{ErrUntrustedExternalProgram, "untrusted_external_program"},
	{ErrSlippageExceeded, "slippage_exceeded"},
	{ErrAlreadyInitialized, "already_initialized"},
	{ErrLaunchNotFound, "launch_not_found"},
	{ErrNotLaunched, "not_launched"},
	{ErrInvalidReserve, "invalid_reserve"},
	{ErrInvalidRequest, "invalid_request"},
}

// Reason returns a stable label for err, "external_call" for anything the
// AMM rejected and "internal" otherwise.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.label
		}
	}
	var ext *externalCallError
	if errors.As(err, &ext) {
		return "external_call"
	}
	return "internal"
}

// externalCallError marks a rejection coming from the AMM.
type externalCallError struct {
	leg string
	err error
}

func (e *externalCallError) Error() string {
	return fmt.Sprintf("%s rejected by amm: %v", e.leg, e.err)
}

func (e *externalCallError) Unwrap() error {
	return e.err
}
