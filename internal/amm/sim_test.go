package amm

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type simFixture struct {
	sim     *SimulatedAMM
	program solana.PublicKey
	pool    solana.PublicKey
	mint    solana.PublicKey
}

func newSimFixture(t *testing.T) *simFixture {
	t.Helper()
	f := &simFixture{
		program: solana.NewWallet().PublicKey(),
		pool:    solana.NewWallet().PublicKey(),
		mint:    solana.NewWallet().PublicKey(),
	}
	f.sim = NewSimulatedAMM(f.program, DefaultFeeBps, zaptest.NewLogger(t))

	ix, err := NewInitPoolInstruction(f.program, solana.NewWallet().PublicKey(), f.pool,
		InitPoolParams{TokenAmount: 1_000_000_000_000, ValueAmount: 1_000_000_000, Mint: f.mint})
	require.NoError(t, err)
	require.NoError(t, f.sim.Invoke(context.Background(), ix))
	return f
}

func TestSimulatedAMMBuyAndSell(t *testing.T) {
	f := newSimFixture(t)
	ctx := context.Background()
	trader := solana.NewWallet().PublicKey()
	require.NoError(t, f.sim.Fund(f.pool, trader, Balance{Value: 200_000_000}))

	buy, err := NewSwapInstruction(f.program, trader, SwapParams{Amount: 100_000_000, IsBuy: true, Pool: f.pool})
	require.NoError(t, err)
	require.NoError(t, f.sim.Invoke(ctx, buy))

	bal := f.sim.BalanceOf(f.pool, trader)
	assert.Equal(t, uint64(100_000_000), bal.Value)
	assert.Greater(t, bal.Tokens, uint64(0))
	// Комиссия уменьшает выход по сравнению с чистой формулой.
	assert.Less(t, bal.Tokens, uint64(90_909_090_910))

	state, ok := f.sim.Pool(f.pool)
	require.True(t, ok)
	assert.Equal(t, uint64(1_100_000_000), state.ValueReserve)

	sell, err := NewSwapInstruction(f.program, trader, SwapParams{Amount: bal.Tokens, IsBuy: false, Pool: f.pool})
	require.NoError(t, err)
	require.NoError(t, f.sim.Invoke(ctx, sell))
	assert.Zero(t, f.sim.BalanceOf(f.pool, trader).Tokens)
}

func TestSimulatedAMMRejects(t *testing.T) {
	f := newSimFixture(t)
	ctx := context.Background()
	trader := solana.NewWallet().PublicKey()

	buy, err := NewSwapInstruction(f.program, trader, SwapParams{Amount: 1_000, IsBuy: true, Pool: f.pool})
	require.NoError(t, err)
	assert.ErrorIs(t, f.sim.Invoke(ctx, buy), ErrInsufficientFunds)

	other, err := NewSwapInstruction(solana.NewWallet().PublicKey(), trader, SwapParams{Amount: 1_000, IsBuy: true, Pool: f.pool})
	require.NoError(t, err)
	assert.ErrorIs(t, f.sim.Invoke(ctx, other), ErrWrongProgram)

	missing, err := NewSwapInstruction(f.program, trader, SwapParams{Amount: 1_000, IsBuy: true, Pool: solana.NewWallet().PublicKey()})
	require.NoError(t, err)
	assert.ErrorIs(t, f.sim.Invoke(ctx, missing), ErrPoolNotFound)

	again, err := NewInitPoolInstruction(f.program, trader, f.pool, InitPoolParams{TokenAmount: 1, ValueAmount: 1, Mint: f.mint})
	require.NoError(t, err)
	assert.ErrorIs(t, f.sim.Invoke(ctx, again), ErrPoolExists)
}

func TestSimulatedAMMDelegatedSell(t *testing.T) {
	f := newSimFixture(t)
	ctx := context.Background()
	engine := solana.NewWallet().PublicKey()

	auth, err := DeriveAuthority(engine, f.mint)
	require.NoError(t, err)
	require.NoError(t, f.sim.Fund(f.pool, auth.Address, Balance{Tokens: 5_000}))

	ix, err := NewCounterSwapInstruction(f.program, auth, f.pool, 5_000)
	require.NoError(t, err)

	// Без делегирования подпись PDA не принимается.
	forged := *auth
	forged.Bump++
	assert.Error(t, f.sim.InvokeSigned(ctx, ix, &forged))

	require.NoError(t, f.sim.InvokeSigned(ctx, ix, auth))
	bal := f.sim.BalanceOf(f.pool, auth.Address)
	assert.Zero(t, bal.Tokens)
	assert.Greater(t, bal.Value, uint64(0))
}

func TestSimulatedAMMCheckpoint(t *testing.T) {
	f := newSimFixture(t)
	ctx := context.Background()
	trader := solana.NewWallet().PublicKey()
	require.NoError(t, f.sim.Fund(f.pool, trader, Balance{Value: 1_000_000}))
	before, _ := f.sim.Pool(f.pool)

	restore, _ := f.sim.Checkpoint(f.pool)
	buy, err := NewSwapInstruction(f.program, trader, SwapParams{Amount: 1_000_000, IsBuy: true, Pool: f.pool})
	require.NoError(t, err)
	require.NoError(t, f.sim.Invoke(ctx, buy))
	restore()

	after, _ := f.sim.Pool(f.pool)
	assert.Equal(t, before, after)

	fresh := solana.NewWallet().PublicKey()
	restoreFresh, _ := f.sim.Checkpoint(fresh)
	initIx, err := NewInitPoolInstruction(f.program, trader, fresh, InitPoolParams{TokenAmount: 1, ValueAmount: 1, Mint: f.mint})
	require.NoError(t, err)
	require.NoError(t, f.sim.Invoke(ctx, initIx))
	restoreFresh()
	_, ok := f.sim.Pool(fresh)
	assert.False(t, ok)
}

func TestSimulatedAMMRestoreKeepsConcurrentFunding(t *testing.T) {
	f := newSimFixture(t)
	ctx := context.Background()
	trader := solana.NewWallet().PublicKey()
	other := solana.NewWallet().PublicKey()
	require.NoError(t, f.sim.Fund(f.pool, trader, Balance{Value: 1_000_000}))
	before, _ := f.sim.Pool(f.pool)

	restore, _ := f.sim.Checkpoint(f.pool)
	buy, err := NewSwapInstruction(f.program, trader, SwapParams{Amount: 1_000_000, IsBuy: true, Pool: f.pool})
	require.NoError(t, err)
	require.NoError(t, f.sim.Invoke(ctx, buy))
	require.NoError(t, f.sim.Fund(f.pool, other, Balance{Value: 500}))
	restore()

	after, _ := f.sim.Pool(f.pool)
	assert.Equal(t, Balance{Value: 500}, after.Balances[other])
	assert.Equal(t, Balance{Value: 1_000_000}, after.Balances[trader])
	assert.Equal(t, before.ValueReserve, after.ValueReserve)
	assert.Equal(t, before.TokenReserve, after.TokenReserve)
}

func TestSimulatedAMMCheckpointRelease(t *testing.T) {
	f := newSimFixture(t)
	ctx := context.Background()
	trader := solana.NewWallet().PublicKey()
	require.NoError(t, f.sim.Fund(f.pool, trader, Balance{Value: 1_000_000}))
	before, _ := f.sim.Pool(f.pool)

	outerRestore, _ := f.sim.Checkpoint(f.pool)
	restore, release := f.sim.Checkpoint(f.pool)
	buy, err := NewSwapInstruction(f.program, trader, SwapParams{Amount: 1_000_000, IsBuy: true, Pool: f.pool})
	require.NoError(t, err)
	require.NoError(t, f.sim.Invoke(ctx, buy))
	release()
	restore()

	kept, _ := f.sim.Pool(f.pool)
	assert.Zero(t, kept.Balances[trader].Value)
	assert.NotZero(t, kept.Balances[trader].Tokens)

	// Отпущенные операции переходят во внешний чекпоинт.
	outerRestore()
	after, _ := f.sim.Pool(f.pool)
	assert.Equal(t, before, after)
}

func TestSimulatedAMMPersistence(t *testing.T) {
	f := newSimFixture(t)
	trader := solana.NewWallet().PublicKey()
	require.NoError(t, f.sim.Fund(f.pool, trader, Balance{Value: 42}))

	data, err := f.sim.MarshalPool(f.pool)
	require.NoError(t, err)

	restored := NewSimulatedAMM(f.program, DefaultFeeBps, zaptest.NewLogger(t))
	require.NoError(t, restored.LoadPool(data))
	assert.Equal(t, uint64(42), restored.BalanceOf(f.pool, trader).Value)
	assert.Len(t, restored.Pools(), 1)
}
