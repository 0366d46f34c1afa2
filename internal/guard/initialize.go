// internal/guard/initialize.go
package guard

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchguard/internal/amm"
	"github.com/rovshanmuradov/launchguard/internal/events"
)

// InitRequest configures defense for a new mint.
type InitRequest struct {
	Authority     solana.PublicKey
	Mint          solana.PublicKey
	Pool          solana.PublicKey
	ReserveAmount uint64
}

// Initialize creates the launch record, derives the delegated authority and
// seeds the external pool with half of the reserve. The current slot
// becomes the start of the monitoring window.
func (e *Engine) Initialize(ctx context.Context, req InitRequest) (*LaunchState, error) {
	if req.Authority.IsZero() || req.Mint.IsZero() || req.Pool.IsZero() {
		return nil, e.initFailed(req, fmt.Errorf("%w: authority, mint and pool are required", ErrInvalidRequest))
	}
	// Половина резерва уходит в пул, поэтому меньше двух токенов не имеет смысла.
	if req.ReserveAmount < 2 {
		return nil, e.initFailed(req, fmt.Errorf("%w: %d", ErrInvalidReserve, req.ReserveAmount))
	}

	var created *LaunchState
	err := e.withLaunch(ctx, req.Mint, func(t *txn) error {
		if _, err := loadLaunch(ctx, t.uow, req.Mint); err == nil {
			return ErrAlreadyInitialized
		} else if !errors.Is(err, ErrLaunchNotFound) {
			return err
		}

		auth, err := amm.DeriveAuthority(e.params.ProgramID, req.Mint)
		if err != nil {
			return err
		}

		state := &LaunchState{
			Authority:     req.Authority,
			Mint:          req.Mint,
			LaunchSlot:    t.slot,
			IsLaunched:    true,
			ReserveTokens: req.ReserveAmount,
			Bump:          auth.Bump,
			Pool:          req.Pool,
		}
		if err := saveLaunch(t.uow, state); err != nil {
			return err
		}

		e.guardPool(t, req.Pool)
		ix, err := amm.NewInitPoolInstruction(e.params.AMMProgramID, req.Authority, req.Pool, amm.InitPoolParams{
			TokenAmount: state.PoolLiquidity(),
			ValueAmount: e.params.InitialPairedValue,
			Mint:        req.Mint,
		})
		if err != nil {
			return err
		}
		if err := e.amm.Invoke(ctx, ix); err != nil {
			return &externalCallError{leg: "pool init", err: err}
		}

		t.emit(events.ProgramInitializedEvent{
			BaseEvent:     events.NewBase(events.ProgramInitialized),
			Mint:          req.Mint,
			Authority:     req.Authority,
			Pool:          req.Pool,
			LaunchSlot:    t.slot,
			ReserveAmount: req.ReserveAmount,
		})
		created = state
		return nil
	})
	if err != nil {
		return nil, e.initFailed(req, err)
	}

	e.logger.Info("Launch initialized",
		zap.String("mint", req.Mint.String()),
		zap.String("pool", req.Pool.String()),
		zap.Uint64("launch_slot", created.LaunchSlot),
		zap.Uint64("window_end", created.WindowEnd(e.params.WindowSlots)),
		zap.Uint64("reserve", req.ReserveAmount))
	return created, nil
}

func (e *Engine) initFailed(req InitRequest, err error) error {
	e.logger.Warn("Launch initialization failed",
		zap.String("mint", req.Mint.String()),
		zap.String("reason", Reason(err)),
		zap.Error(err))
	return &TradeError{Op: "initialize", Mint: req.Mint, Amount: req.ReserveAmount, Err: err}
}
