// =============================
// File: internal/guard/router.go
// =============================
package guard

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchguard/internal/events"
)

// Side of a trade request.
type Side uint8

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	if s == SideBuy {
		return "buy"
	}
	return "sell"
}

// TradeKind is the execution path chosen for a request.
type TradeKind uint8

const (
	KindRegularBuy TradeKind = iota + 1
	KindMonitoredBuy
	KindSell
)

func (k TradeKind) String() string {
	switch k {
	case KindRegularBuy:
		return "regular_buy"
	case KindMonitoredBuy:
		return "monitored_buy"
	case KindSell:
		return "sell"
	default:
		return "unknown"
	}
}

// TradeRequest is a buy (Amount in value units) or sell (Amount in tokens).
type TradeRequest struct {
	Mint    solana.PublicKey
	Trader  solana.PublicKey
	Amount  uint64
	Pool    solana.PublicKey
	Program solana.PublicKey
}

// TradeResult describes an executed trade.
type TradeResult struct {
	Kind  TradeKind
	Phase Phase
	Slot  uint64
	// ValueAmount is the value paid (buys) or the estimated value out (sells).
	ValueAmount uint64
	// TokenAmount is the estimated tokens out (buys) or the tokens sold.
	TokenAmount uint64
	// CounterTokens is what the reserve sold back; zero off the bot path.
	CounterTokens uint64
}

// plan maps a side and phase to an execution path.
func plan(side Side, phase Phase) (TradeKind, error) {
	switch {
	case side == SideBuy && phase == PhaseMonitoring:
		return KindMonitoredBuy, nil
	case side == SideBuy:
		return KindRegularBuy, nil
	case phase == PhaseMonitoring:
		return 0, ErrTradingNotActive
	default:
		return KindSell, nil
	}
}

// Buy routes a purchase of req.Amount value. Inside the monitoring window
// the purchase is neutralized; afterwards it is a regular bounded trade.
func (e *Engine) Buy(ctx context.Context, req TradeRequest) (*TradeResult, error) {
	return e.trade(ctx, SideBuy, req)
}

// Sell routes a sale of req.Amount tokens. Selling is refused during the
// monitoring window.
func (e *Engine) Sell(ctx context.Context, req TradeRequest) (*TradeResult, error) {
	return e.trade(ctx, SideSell, req)
}

func (e *Engine) trade(ctx context.Context, side Side, req TradeRequest) (*TradeResult, error) {
	var (
		result *TradeResult
		slot   uint64
	)
	err := e.withLaunch(ctx, req.Mint, func(t *txn) error {
		slot = t.slot
		state, err := loadLaunch(ctx, t.uow, req.Mint)
		if err != nil {
			return err
		}
		if !state.IsLaunched {
			return ErrNotLaunched
		}
		if err := e.params.checkExternal(state, req.Pool, req.Program); err != nil {
			return err
		}
		phase := state.Phase(t.slot, e.params.WindowSlots)
		kind, err := plan(side, phase)
		if err != nil {
			return err
		}

		e.guardPool(t, state.Pool)
		switch kind {
		case KindMonitoredBuy:
			result, err = e.neutralize(ctx, t, state, req)
		case KindRegularBuy:
			result, err = e.regularBuy(ctx, t, state, req)
		case KindSell:
			result, err = e.regularSell(ctx, t, state, req)
		}
		if err != nil {
			return err
		}
		result.Kind = kind
		result.Phase = phase
		result.Slot = t.slot
		return nil
	})
	if err != nil {
		return nil, e.rejected(ctx, side, req, slot, err)
	}
	return result, nil
}

func (e *Engine) rejected(ctx context.Context, side Side, req TradeRequest, slot uint64, err error) error {
	reason := Reason(err)
	e.logger.Warn("Trade rejected",
		zap.String("mint", req.Mint.String()),
		zap.String("trader", req.Trader.String()),
		zap.String("side", side.String()),
		zap.Uint64("amount", req.Amount),
		zap.String("reason", reason),
		zap.Error(err))

	e.publish(ctx, events.TradeRejectedEvent{
		BaseEvent: events.NewBase(events.TradeRejected),
		Mint:      req.Mint,
		Trader:    req.Trader,
		Side:      side.String(),
		Amount:    req.Amount,
		Reason:    reason,
		Slot:      slot,
	})
	return &TradeError{Op: side.String(), Mint: req.Mint, Trader: req.Trader, Amount: req.Amount, Err: err}
}
