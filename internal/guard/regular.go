// internal/guard/regular.go
package guard

import (
	"context"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchguard/internal/amm"
	"github.com/rovshanmuradov/launchguard/internal/events"
)

// regularBuy executes a bounded buy after the monitoring window.
func (e *Engine) regularBuy(ctx context.Context, t *txn, state *LaunchState, req TradeRequest) (*TradeResult, error) {
	if err := e.params.checkTradeSize(req.Amount); err != nil {
		return nil, err
	}
	// Оценка по сконфигурированным резервам, а не по живому пулу.
	tokensOut, err := e.params.Reserves.TokensForValue(req.Amount)
	if err != nil {
		return nil, err
	}
	impact, err := e.params.Reserves.BuyImpactBps(req.Amount)
	if err != nil {
		return nil, err
	}
	if err := e.params.checkImpact(impact); err != nil {
		return nil, err
	}

	ix, err := amm.NewSwapInstruction(e.params.AMMProgramID, req.Trader, amm.SwapParams{
		Amount: req.Amount,
		IsBuy:  true,
		Pool:   state.Pool,
	})
	if err != nil {
		return nil, err
	}
	if err := e.amm.Invoke(ctx, ix); err != nil {
		return nil, &externalCallError{leg: "buy", err: err}
	}

	t.emit(events.TradeExecutedEvent{
		BaseEvent:   events.NewBase(events.TradeExecuted),
		Mint:        state.Mint,
		Trader:      req.Trader,
		IsBuy:       true,
		ValueAmount: req.Amount,
		TokenAmount: tokensOut,
		Slot:        t.slot,
	})
	e.logger.Debug("Regular buy executed",
		zap.String("mint", state.Mint.String()),
		zap.String("trader", req.Trader.String()),
		zap.Uint64("value_in", req.Amount),
		zap.Uint64("tokens_estimate", tokensOut),
		zap.Uint64("impact_bps", impact))

	return &TradeResult{ValueAmount: req.Amount, TokenAmount: tokensOut}, nil
}

// regularSell executes a bounded sell; bounds apply to the estimated value out.
func (e *Engine) regularSell(ctx context.Context, t *txn, state *LaunchState, req TradeRequest) (*TradeResult, error) {
	valueOut, err := e.params.Reserves.ValueForTokens(req.Amount)
	if err != nil {
		return nil, err
	}
	if err := e.params.checkTradeSize(valueOut); err != nil {
		return nil, err
	}
	impact, err := e.params.Reserves.SellImpactBps(req.Amount)
	if err != nil {
		return nil, err
	}
	if err := e.params.checkImpact(impact); err != nil {
		return nil, err
	}

	ix, err := amm.NewSwapInstruction(e.params.AMMProgramID, req.Trader, amm.SwapParams{
		Amount: req.Amount,
		IsBuy:  false,
		Pool:   state.Pool,
	})
	if err != nil {
		return nil, err
	}
	if err := e.amm.Invoke(ctx, ix); err != nil {
		return nil, &externalCallError{leg: "sell", err: err}
	}

	t.emit(events.TradeExecutedEvent{
		BaseEvent:   events.NewBase(events.TradeExecuted),
		Mint:        state.Mint,
		Trader:      req.Trader,
		IsBuy:       false,
		ValueAmount: valueOut,
		TokenAmount: req.Amount,
		Slot:        t.slot,
	})
	e.logger.Debug("Regular sell executed",
		zap.String("mint", state.Mint.String()),
		zap.String("trader", req.Trader.String()),
		zap.Uint64("tokens_in", req.Amount),
		zap.Uint64("value_estimate", valueOut))

	return &TradeResult{ValueAmount: valueOut, TokenAmount: req.Amount}, nil
}
