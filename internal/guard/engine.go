// =============================
// File: internal/guard/engine.go
// =============================
package guard

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchguard/internal/amm"
	"github.com/rovshanmuradov/launchguard/internal/events"
	"github.com/rovshanmuradov/launchguard/internal/ledger"
)

// Publisher receives emitted records after a unit of work commits.
type Publisher interface {
	PublishSync(ctx context.Context, event events.Event) error
}

// Engine routes trades on defended launches. Calls on the same mint are
// serialized; each call is one all-or-nothing unit of work.
type Engine struct {
	params Params
	kv     ledger.KV
	locks  *ledger.Locker
	clock  ledger.SlotSource
	amm    amm.Invoker
	bus    Publisher
	logger *zap.Logger
}

// NewEngine wires an engine. bus may be nil.
func NewEngine(params Params, kv ledger.KV, clock ledger.SlotSource, invoker amm.Invoker, bus Publisher, logger *zap.Logger) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine params: %w", err)
	}
	if kv == nil || clock == nil || invoker == nil {
		return nil, errors.New("engine requires a store, a slot source and an invoker")
	}
	return &Engine{
		params: params,
		kv:     kv,
		locks:  ledger.NewLocker(),
		clock:  clock,
		amm:    invoker,
		bus:    bus,
		logger: logger.Named("guard"),
	}, nil
}

// Params returns the engine configuration.
func (e *Engine) Params() Params {
	return e.params
}

// txn is the per-call context handed to workflows.
type txn struct {
	uow     *ledger.UnitOfWork
	slot    uint64
	emitted []events.Event
}

func (t *txn) emit(ev events.Event) {
	t.emitted = append(t.emitted, ev)
}

// guardPool makes the AMM pool part of the rollback when the invoker supports it.
func (e *Engine) guardPool(t *txn, pool solana.PublicKey) {
	if cp, ok := e.amm.(amm.Checkpointer); ok {
		restore, release := cp.Checkpoint(pool)
		t.uow.OnRollback(restore)
		t.uow.OnCommit(release)
	}
}

// withLaunch runs fn under the mint's lock inside a unit of work, commits
// and then publishes whatever fn emitted.
func (e *Engine) withLaunch(ctx context.Context, mint solana.PublicKey, fn func(*txn) error) error {
	unlock := e.locks.Lock(mint.String())
	defer unlock()

	slot, err := e.clock.CurrentSlot(ctx)
	if err != nil {
		return fmt.Errorf("failed to read current slot: %w", err)
	}

	t := &txn{uow: ledger.Begin(e.kv), slot: slot}
	defer t.uow.Rollback()

	if err := fn(t); err != nil {
		return err
	}
	if err := t.uow.Commit(ctx); err != nil {
		return err
	}
	e.publish(ctx, t.emitted...)
	return nil
}

func (e *Engine) publish(ctx context.Context, evs ...events.Event) {
	if e.bus == nil {
		return
	}
	for _, ev := range evs {
		if err := e.bus.PublishSync(ctx, ev); err != nil {
			e.logger.Warn("Event delivery failed",
				zap.String("event_type", string(ev.Type())),
				zap.Error(err))
		}
	}
}

// State returns the stored record for mint.
func (e *Engine) State(ctx context.Context, mint solana.PublicKey) (*LaunchState, error) {
	return loadLaunch(ctx, e.kv, mint)
}

// Launches returns all stored records.
func (e *Engine) Launches(ctx context.Context) ([]LaunchState, error) {
	return listLaunches(ctx, e.kv)
}

// FlaggedTraders returns the detection history for mint ordered by address.
func (e *Engine) FlaggedTraders(ctx context.Context, mint solana.PublicKey) ([]FlaggedTrader, error) {
	if _, err := loadLaunch(ctx, e.kv, mint); err != nil {
		return nil, err
	}
	return listFlagged(ctx, e.kv, mint)
}

// Authority returns the delegated authority capability of mint's launch.
func (e *Engine) Authority(ctx context.Context, mint solana.PublicKey) (*amm.Authority, error) {
	s, err := loadLaunch(ctx, e.kv, mint)
	if err != nil {
		return nil, err
	}
	return amm.RestoreAuthority(e.params.ProgramID, s.Mint, s.Bump)
}

// Snapshot is a read-only view of a launch at a given slot.
type Snapshot struct {
	State            LaunchState
	Phase            Phase
	CurrentSlot      uint64
	WindowEndsAt     uint64
	AvailableReserve uint64
	Flagged          int
}

// Status classifies mint's launch at the current slot.
func (e *Engine) Status(ctx context.Context, mint solana.PublicKey) (*Snapshot, error) {
	s, err := loadLaunch(ctx, e.kv, mint)
	if err != nil {
		return nil, err
	}
	slot, err := e.clock.CurrentSlot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read current slot: %w", err)
	}
	flagged, err := listFlagged(ctx, e.kv, mint)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		State:            *s,
		Phase:            s.Phase(slot, e.params.WindowSlots),
		CurrentSlot:      slot,
		WindowEndsAt:     s.WindowEnd(e.params.WindowSlots),
		AvailableReserve: s.AvailableReserve(),
		Flagged:          len(flagged),
	}, nil
}
