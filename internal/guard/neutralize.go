// internal/guard/neutralize.go
package guard

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchguard/internal/amm"
	"github.com/rovshanmuradov/launchguard/internal/events"
	"github.com/rovshanmuradov/launchguard/internal/pricing"
)

// neutralize lets a monitored buy complete, books the captured value and
// sells the estimated tokens back into the pool from the reserve.
//
// Order matters: the forward leg runs first and nothing is recorded unless
// it was accepted; the reserve is checked before the delegated sell is
// issued. Any failure rolls back the whole unit, forward leg included.
func (e *Engine) neutralize(ctx context.Context, t *txn, state *LaunchState, req TradeRequest) (*TradeResult, error) {
	if state.Phase(t.slot, e.params.WindowSlots) != PhaseMonitoring {
		return nil, ErrMonitoringPeriodEnded
	}
	// Границы размера здесь не действуют, но пустая покупка не имеет смысла.
	if req.Amount == 0 {
		return nil, fmt.Errorf("%w: zero amount", ErrTradeTooSmall)
	}

	// 1. Forward leg: the trader's purchase goes through unchanged.
	forward, err := amm.NewSwapInstruction(e.params.AMMProgramID, req.Trader, amm.SwapParams{
		Amount: req.Amount,
		IsBuy:  true,
		Pool:   state.Pool,
	})
	if err != nil {
		return nil, err
	}
	if err := e.amm.Invoke(ctx, forward); err != nil {
		return nil, &externalCallError{leg: "forward buy", err: err}
	}

	// 2. Capture bookkeeping.
	if err := state.recordCapture(req.Trader, req.Amount); err != nil {
		return nil, fmt.Errorf("captured value: %w", err)
	}
	flagged, err := loadFlagged(ctx, t.uow, state.Mint, req.Trader)
	if err != nil {
		return nil, err
	}
	flagged.observe(req.Amount, t.slot)
	if err := saveFlagged(t.uow, state.Mint, flagged); err != nil {
		return nil, err
	}

	// 3. Estimate what the bot received. Это приближение по нашим резервам,
	// реальный выход пула может отличаться.
	tokensOut, err := e.params.Reserves.TokensForValue(req.Amount)
	if err != nil {
		return nil, err
	}

	// 4. Reserve check before any delegated call.
	if tokensOut > state.AvailableReserve() {
		return nil, fmt.Errorf("%w: need %d, available %d", ErrInsufficientReserve, tokensOut, state.AvailableReserve())
	}

	// 5. Reverse leg under the delegated authority.
	auth, err := amm.RestoreAuthority(e.params.ProgramID, state.Mint, state.Bump)
	if err != nil {
		return nil, err
	}
	reverse, err := amm.NewCounterSwapInstruction(e.params.AMMProgramID, auth, state.Pool, tokensOut)
	if err != nil {
		return nil, err
	}
	if err := e.amm.InvokeSigned(ctx, reverse, auth); err != nil {
		return nil, &externalCallError{leg: "counter sell", err: err}
	}
	if err := state.recordCounterTrade(tokensOut); err != nil {
		return nil, err
	}
	if err := saveLaunch(t.uow, state); err != nil {
		return nil, err
	}

	// 6. Emit.
	t.emit(events.BotPurchaseHandledEvent{
		BaseEvent:       events.NewBase(events.BotPurchaseHandled),
		Mint:            state.Mint,
		Bot:             req.Trader,
		TokensPurchased: tokensOut,
		ValueCaptured:   req.Amount,
		TokensSold:      tokensOut,
		CapturedTotal:   state.CapturedValue,
		Slot:            t.slot,
	})
	e.logger.Info("Bot purchase neutralized",
		zap.String("mint", state.Mint.String()),
		zap.String("bot", req.Trader.String()),
		zap.String("value", pricing.FormatLamports(req.Amount)),
		zap.Uint64("tokens_sold", tokensOut),
		zap.Uint64("captured_total", state.CapturedValue),
		zap.Uint64("detections", flagged.Detections),
		zap.Uint64("slot", t.slot))

	return &TradeResult{ValueAmount: req.Amount, TokenAmount: tokensOut, CounterTokens: tokensOut}, nil
}
