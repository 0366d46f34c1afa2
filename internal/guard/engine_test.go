package guard

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/launchguard/internal/amm"
	"github.com/rovshanmuradov/launchguard/internal/events"
	"github.com/rovshanmuradov/launchguard/internal/ledger"
)

const launchSlot uint64 = 1000

type harness struct {
	t        *testing.T
	ctx      context.Context
	engine   *Engine
	sim      *amm.SimulatedAMM
	clock    *ledger.ManualClock
	kv       *ledger.MemoryKV
	recorder *events.Recorder
	params   Params

	authority solana.PublicKey
	mint      solana.PublicKey
	pool      solana.PublicKey
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)

	params := DefaultParams(solana.NewWallet().PublicKey())
	params.AMMProgramID = solana.NewWallet().PublicKey()

	bus := events.NewBus(logger, 16)
	t.Cleanup(func() { _ = bus.Shutdown(context.Background()) })
	recorder := events.NewRecorder()
	bus.SubscribeAll(recorder)

	h := &harness{
		t:         t,
		ctx:       context.Background(),
		sim:       amm.NewSimulatedAMM(params.AMMProgramID, amm.DefaultFeeBps, logger),
		clock:     ledger.NewManualClock(launchSlot),
		kv:        ledger.NewMemoryKV(),
		recorder:  recorder,
		params:    params,
		authority: solana.NewWallet().PublicKey(),
		mint:      solana.NewWallet().PublicKey(),
		pool:      solana.NewWallet().PublicKey(),
	}
	engine, err := NewEngine(params, h.kv, h.clock, h.sim, bus, logger)
	require.NoError(t, err)
	h.engine = engine
	return h
}

// launch initializes the default mint and funds the manager's reserve account.
func (h *harness) launch(reserve uint64) *LaunchState {
	h.t.Helper()
	state, err := h.engine.Initialize(h.ctx, InitRequest{
		Authority:     h.authority,
		Mint:          h.mint,
		Pool:          h.pool,
		ReserveAmount: reserve,
	})
	require.NoError(h.t, err)

	auth, err := h.engine.Authority(h.ctx, h.mint)
	require.NoError(h.t, err)
	require.NoError(h.t, h.sim.Fund(h.pool, auth.Address, amm.Balance{Tokens: state.AvailableReserve()}))
	return state
}

func (h *harness) trader(value, tokens uint64) solana.PublicKey {
	h.t.Helper()
	trader := solana.NewWallet().PublicKey()
	require.NoError(h.t, h.sim.Fund(h.pool, trader, amm.Balance{Value: value, Tokens: tokens}))
	return trader
}

func (h *harness) request(trader solana.PublicKey, amount uint64) TradeRequest {
	return TradeRequest{
		Mint:    h.mint,
		Trader:  trader,
		Amount:  amount,
		Pool:    h.pool,
		Program: h.params.AMMProgramID,
	}
}

func (h *harness) state() *LaunchState {
	h.t.Helper()
	s, err := h.engine.State(h.ctx, h.mint)
	require.NoError(h.t, err)
	return s
}

// overwrite replaces the stored launch record directly.
func (h *harness) overwrite(s *LaunchState) {
	h.t.Helper()
	u := ledger.Begin(h.kv)
	require.NoError(h.t, saveLaunch(u, s))
	require.NoError(h.t, u.Commit(h.ctx))
}

func TestInitialize(t *testing.T) {
	h := newHarness(t)
	state := h.launch(1_000_000_000_000)

	assert.Equal(t, h.authority, state.Authority)
	assert.Equal(t, h.mint, state.Mint)
	assert.Equal(t, launchSlot, state.LaunchSlot)
	assert.True(t, state.IsLaunched)
	assert.Zero(t, state.CapturedValue)
	assert.Equal(t, uint64(1_000_000_000_000), state.ReserveTokens)
	assert.True(t, state.LastFlaggedTrader.IsZero())

	auth, err := amm.DeriveAuthority(h.params.ProgramID, h.mint)
	require.NoError(t, err)
	assert.Equal(t, auth.Bump, state.Bump)

	pool, ok := h.sim.Pool(h.pool)
	require.True(t, ok)
	assert.Equal(t, uint64(500_000_000_000), pool.TokenReserve)
	assert.Equal(t, h.params.InitialPairedValue, pool.ValueReserve)
	assert.Equal(t, h.mint, pool.Mint)

	inits := h.recorder.OfType(events.ProgramInitialized)
	require.Len(t, inits, 1)
	ev := inits[0].(events.ProgramInitializedEvent)
	assert.Equal(t, h.mint, ev.Mint)
	assert.Equal(t, launchSlot, ev.LaunchSlot)
}

func TestInitializeRejects(t *testing.T) {
	h := newHarness(t)
	h.launch(1_000_000_000_000)

	_, err := h.engine.Initialize(h.ctx, InitRequest{Authority: h.authority, Mint: h.mint, Pool: h.pool, ReserveAmount: 10})
	assert.ErrorIs(t, err, ErrAlreadyInitialized)

	other := solana.NewWallet().PublicKey()
	_, err = h.engine.Initialize(h.ctx, InitRequest{Authority: h.authority, Mint: other, Pool: solana.NewWallet().PublicKey(), ReserveAmount: 1})
	assert.ErrorIs(t, err, ErrInvalidReserve)

	_, err = h.engine.Initialize(h.ctx, InitRequest{Authority: h.authority, Mint: other, ReserveAmount: 100})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	var tradeErr *TradeError
	require.ErrorAs(t, err, &tradeErr)
	assert.Equal(t, "initialize", tradeErr.Op)
}

func TestInitializePoolRejectionLeavesNoRecord(t *testing.T) {
	h := newHarness(t)
	h.launch(1_000_000_000_000)
	before, _ := h.sim.Pool(h.pool)

	// Тот же пул уже существует, AMM отказывает.
	other := solana.NewWallet().PublicKey()
	_, err := h.engine.Initialize(h.ctx, InitRequest{Authority: h.authority, Mint: other, Pool: h.pool, ReserveAmount: 1_000})
	require.Error(t, err)
	assert.ErrorIs(t, err, amm.ErrPoolExists)
	assert.Equal(t, "external_call", Reason(err))

	_, err = h.engine.State(h.ctx, other)
	assert.ErrorIs(t, err, ErrLaunchNotFound)
	after, _ := h.sim.Pool(h.pool)
	assert.Equal(t, before, after)
	assert.Len(t, h.recorder.OfType(events.ProgramInitialized), 1)
}

func TestMonitoredBuyIsNeutralized(t *testing.T) {
	h := newHarness(t)
	h.launch(1_000_000_000_000)
	bot := h.trader(100_000_000, 0)

	h.clock.Set(launchSlot + 1)
	result, err := h.engine.Buy(h.ctx, h.request(bot, 100_000_000))
	require.NoError(t, err)

	assert.Equal(t, KindMonitoredBuy, result.Kind)
	assert.Equal(t, PhaseMonitoring, result.Phase)
	assert.Equal(t, uint64(90_909_090_910), result.CounterTokens)

	state := h.state()
	assert.Equal(t, uint64(100_000_000), state.CapturedValue)
	assert.Equal(t, bot, state.LastFlaggedTrader)
	assert.Equal(t, uint64(90_909_090_910), state.CounterTradedTokens)

	// Прямая нога прошла: бот заплатил и получил токены.
	bal := h.sim.BalanceOf(h.pool, bot)
	assert.Zero(t, bal.Value)
	assert.Greater(t, bal.Tokens, uint64(0))

	// Обратная нога: резерв продал оценку в пул.
	auth, err := h.engine.Authority(h.ctx, h.mint)
	require.NoError(t, err)
	reserve := h.sim.BalanceOf(h.pool, auth.Address)
	assert.Equal(t, uint64(500_000_000_000-90_909_090_910), reserve.Tokens)
	assert.Greater(t, reserve.Value, uint64(0))

	handled := h.recorder.OfType(events.BotPurchaseHandled)
	require.Len(t, handled, 1)
	ev := handled[0].(events.BotPurchaseHandledEvent)
	assert.Equal(t, bot, ev.Bot)
	assert.Equal(t, uint64(100_000_000), ev.ValueCaptured)
	assert.Equal(t, uint64(90_909_090_910), ev.TokensPurchased)
	assert.Equal(t, uint64(90_909_090_910), ev.TokensSold)
	assert.Empty(t, h.recorder.OfType(events.TradeExecuted))

	flagged, err := h.engine.FlaggedTraders(h.ctx, h.mint)
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, bot, flagged[0].Trader)
	assert.Equal(t, uint64(1), flagged[0].Detections)
	assert.Equal(t, launchSlot+1, flagged[0].FirstSlot)
}

func TestMonitoredBuyIgnoresTradeBounds(t *testing.T) {
	h := newHarness(t)
	h.launch(1_000_000_000_000)

	// Ниже MinTrade, но в окне мониторинга границы не действуют.
	bot := h.trader(1_000, 0)
	result, err := h.engine.Buy(h.ctx, h.request(bot, 1_000))
	require.NoError(t, err)
	assert.Equal(t, KindMonitoredBuy, result.Kind)
	assert.Equal(t, uint64(1_000), h.state().CapturedValue)

	_, err = h.engine.Buy(h.ctx, h.request(bot, 0))
	assert.ErrorIs(t, err, ErrTradeTooSmall)
}

func TestWindowBoundary(t *testing.T) {
	h := newHarness(t)
	h.launch(1_000_000_000_000)
	trader := h.trader(1_000_000_000, 0)

	h.clock.Set(launchSlot + DefaultWindowSlots)
	result, err := h.engine.Buy(h.ctx, h.request(trader, 100_000_000))
	require.NoError(t, err)
	assert.Equal(t, KindMonitoredBuy, result.Kind)

	h.clock.Set(launchSlot + DefaultWindowSlots + 1)
	result, err = h.engine.Buy(h.ctx, h.request(trader, 100_000_000))
	require.NoError(t, err)
	assert.Equal(t, KindRegularBuy, result.Kind)
	assert.Equal(t, PhaseOpen, result.Phase)
	assert.Zero(t, result.CounterTokens)

	// Вторая покупка не меняет счётчик захвата.
	assert.Equal(t, uint64(100_000_000), h.state().CapturedValue)
	require.Len(t, h.recorder.OfType(events.TradeExecuted), 1)
}

func TestRegularBuyBounds(t *testing.T) {
	h := newHarness(t)
	h.launch(1_000_000_000_000)
	trader := h.trader(2_000_000_000, 0)
	h.clock.Set(launchSlot + 100)

	tests := []struct {
		name   string
		amount uint64
		want   error
	}{
		{"below minimum", MinTrade - 1, ErrTradeTooSmall},
		{"above maximum", MaxTrade + 1, ErrTradeTooLarge},
		{"impact above cap", 500_000_000, ErrSlippageExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.Buy(h.ctx, h.request(trader, tt.amount))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	result, err := h.engine.Buy(h.ctx, h.request(trader, MinTrade))
	require.NoError(t, err)
	assert.Equal(t, KindRegularBuy, result.Kind)

	assert.Len(t, h.recorder.OfType(events.TradeRejected), len(tests))
	assert.Equal(t, uint64(2_000_000_000-MinTrade), h.sim.BalanceOf(h.pool, trader).Value)
}

func TestImpactCapDisabled(t *testing.T) {
	h := newHarness(t)
	h.params.MaxPriceImpactBps = 0
	engine, err := NewEngine(h.params, h.kv, h.clock, h.sim, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	h.engine = engine
	h.launch(1_000_000_000_000)
	trader := h.trader(1_000_000_000, 0)
	h.clock.Set(launchSlot + 100)

	_, err = h.engine.Buy(h.ctx, h.request(trader, 500_000_000))
	assert.NoError(t, err)
}

func TestSellDuringMonitoringRejected(t *testing.T) {
	h := newHarness(t)
	h.launch(1_000_000_000_000)
	trader := h.trader(0, 5_000_000_000)

	for _, amount := range []uint64{0, 1, 5_000_000_000} {
		_, err := h.engine.Sell(h.ctx, h.request(trader, amount))
		assert.ErrorIs(t, err, ErrTradingNotActive)
	}

	rejected := h.recorder.OfType(events.TradeRejected)
	require.Len(t, rejected, 3)
	assert.Equal(t, "trading_not_active", rejected[0].(events.TradeRejectedEvent).Reason)
	assert.Equal(t, uint64(5_000_000_000), h.sim.BalanceOf(h.pool, trader).Tokens)
}

func TestRegularSell(t *testing.T) {
	h := newHarness(t)
	h.launch(1_000_000_000_000)
	trader := h.trader(0, 5_000_000_000)
	h.clock.Set(launchSlot + DefaultWindowSlots + 1)

	result, err := h.engine.Sell(h.ctx, h.request(trader, 1_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, KindSell, result.Kind)
	assert.Equal(t, uint64(1_000_000_000), result.TokenAmount)
	// 1e9 - floor(1e21 / (1e12 + 1e9))
	assert.Equal(t, uint64(999_001), result.ValueAmount)

	bal := h.sim.BalanceOf(h.pool, trader)
	assert.Equal(t, uint64(4_000_000_000), bal.Tokens)
	assert.Greater(t, bal.Value, uint64(0))

	// Оценка выручки ниже MinTrade.
	_, err = h.engine.Sell(h.ctx, h.request(trader, 1_000))
	assert.ErrorIs(t, err, ErrTradeTooSmall)
}

func TestCapturedValueOverflowLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t)
	h.launch(1_000_000_000_000)

	s := h.state()
	s.CapturedValue = math.MaxUint64 - 1
	h.overwrite(s)

	bot := h.trader(10, 0)
	poolBefore, _ := h.sim.Pool(h.pool)
	before := h.state()

	_, err := h.engine.Buy(h.ctx, h.request(bot, 2))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMathOverflow)
	assert.Equal(t, "math_overflow", Reason(err))

	assert.Equal(t, before, h.state())
	poolAfter, _ := h.sim.Pool(h.pool)
	assert.Equal(t, poolBefore, poolAfter)
	assert.Equal(t, uint64(10), h.sim.BalanceOf(h.pool, bot).Value)
	assert.Empty(t, h.recorder.OfType(events.BotPurchaseHandled))

	flagged, err := h.engine.FlaggedTraders(h.ctx, h.mint)
	require.NoError(t, err)
	assert.Empty(t, flagged)
}

func TestInsufficientReserveRollsBack(t *testing.T) {
	h := newHarness(t)
	h.launch(2_000_000)
	bot := h.trader(100_000_000, 0)
	poolBefore, _ := h.sim.Pool(h.pool)

	_, err := h.engine.Buy(h.ctx, h.request(bot, 100_000_000))
	assert.ErrorIs(t, err, ErrInsufficientReserve)

	state := h.state()
	assert.Zero(t, state.CapturedValue)
	assert.True(t, state.LastFlaggedTrader.IsZero())
	poolAfter, _ := h.sim.Pool(h.pool)
	assert.Equal(t, poolBefore, poolAfter)
	assert.Equal(t, uint64(100_000_000), h.sim.BalanceOf(h.pool, bot).Value)
}

func TestForwardLegRejectedByAMM(t *testing.T) {
	h := newHarness(t)
	h.launch(1_000_000_000_000)
	broke := h.trader(0, 0)

	_, err := h.engine.Buy(h.ctx, h.request(broke, 100_000_000))
	require.Error(t, err)
	assert.ErrorIs(t, err, amm.ErrInsufficientFunds)
	assert.Equal(t, "external_call", Reason(err))
	assert.Zero(t, h.state().CapturedValue)
}

func TestCounterLegFailureRevertsForwardLeg(t *testing.T) {
	h := newHarness(t)
	// Резерв менеджера не пополнен, обратная продажа упадёт в AMM.
	_, err := h.engine.Initialize(h.ctx, InitRequest{
		Authority: h.authority, Mint: h.mint, Pool: h.pool, ReserveAmount: 1_000_000_000_000,
	})
	require.NoError(t, err)
	bot := h.trader(100_000_000, 0)
	poolBefore, _ := h.sim.Pool(h.pool)

	_, err = h.engine.Buy(h.ctx, h.request(bot, 100_000_000))
	require.Error(t, err)
	assert.ErrorIs(t, err, amm.ErrInsufficientFunds)

	poolAfter, _ := h.sim.Pool(h.pool)
	assert.Equal(t, poolBefore, poolAfter)
	assert.Equal(t, amm.Balance{Value: 100_000_000}, h.sim.BalanceOf(h.pool, bot))
	assert.Zero(t, h.state().CapturedValue)
	assert.Zero(t, h.state().CounterTradedTokens)
}

func TestExternalTargetChecks(t *testing.T) {
	h := newHarness(t)
	h.launch(1_000_000_000_000)
	trader := h.trader(100_000_000, 0)

	req := h.request(trader, 100_000_000)
	req.Pool = solana.NewWallet().PublicKey()
	_, err := h.engine.Buy(h.ctx, req)
	assert.ErrorIs(t, err, ErrExternalPoolNotConfigured)

	req = h.request(trader, 100_000_000)
	req.Program = solana.NewWallet().PublicKey()
	_, err = h.engine.Buy(h.ctx, req)
	assert.ErrorIs(t, err, ErrUntrustedExternalProgram)

	req.Mint = solana.NewWallet().PublicKey()
	_, err = h.engine.Buy(h.ctx, req)
	assert.ErrorIs(t, err, ErrLaunchNotFound)

	assert.Zero(t, h.state().CapturedValue)
}

func TestCapturedValueAccumulates(t *testing.T) {
	h := newHarness(t)
	h.launch(1_000_000_000_000)
	first := h.trader(100_000_000, 0)
	second := h.trader(100_000_000, 0)

	var previous uint64
	for i, bot := range []solana.PublicKey{first, second, first} {
		h.clock.Set(launchSlot + uint64(i))
		_, err := h.engine.Buy(h.ctx, h.request(bot, 30_000_000))
		require.NoError(t, err)

		state := h.state()
		assert.GreaterOrEqual(t, state.CapturedValue, previous)
		assert.Equal(t, bot, state.LastFlaggedTrader)
		previous = state.CapturedValue
	}
	assert.Equal(t, uint64(90_000_000), previous)

	flagged, err := h.engine.FlaggedTraders(h.ctx, h.mint)
	require.NoError(t, err)
	require.Len(t, flagged, 2)
	byTrader := map[solana.PublicKey]FlaggedTrader{}
	for _, f := range flagged {
		byTrader[f.Trader] = f
	}
	assert.Equal(t, uint64(2), byTrader[first].Detections)
	assert.Equal(t, uint64(60_000_000), byTrader[first].CapturedValue)
	assert.Equal(t, launchSlot+2, byTrader[first].LastSlot)
	assert.Equal(t, uint64(1), byTrader[second].Detections)
}

func TestStatus(t *testing.T) {
	h := newHarness(t)
	h.launch(1_000_000_000_000)

	snap, err := h.engine.Status(h.ctx, h.mint)
	require.NoError(t, err)
	assert.Equal(t, PhaseMonitoring, snap.Phase)
	assert.Equal(t, launchSlot+DefaultWindowSlots, snap.WindowEndsAt)
	assert.Equal(t, uint64(500_000_000_000), snap.AvailableReserve)
	assert.Zero(t, snap.Flagged)

	h.clock.Advance(DefaultWindowSlots + 1)
	snap, err = h.engine.Status(h.ctx, h.mint)
	require.NoError(t, err)
	assert.Equal(t, PhaseOpen, snap.Phase)

	launches, err := h.engine.Launches(h.ctx)
	require.NoError(t, err)
	require.Len(t, launches, 1)
	assert.Equal(t, h.mint, launches[0].Mint)

	_, err = h.engine.Status(h.ctx, solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, ErrLaunchNotFound)
}

func TestNotLaunched(t *testing.T) {
	h := newHarness(t)
	h.launch(1_000_000_000_000)
	s := h.state()
	s.IsLaunched = false
	h.overwrite(s)

	_, err := h.engine.Buy(h.ctx, h.request(h.trader(100_000_000, 0), 100_000_000))
	assert.ErrorIs(t, err, ErrNotLaunched)
}

func TestReasonLabels(t *testing.T) {
	assert.Equal(t, "", Reason(nil))
	assert.Equal(t, "insufficient_reserve", Reason(&TradeError{Err: ErrInsufficientReserve}))
	assert.Equal(t, "internal", Reason(errors.New("boom")))
}
