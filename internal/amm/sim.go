// =============================
// File: internal/amm/sim.go
// =============================
package amm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchguard/internal/pricing"
)

// DefaultFeeBps - комиссия симулятора, как у стандартного пула Raydium (0.25%).
const DefaultFeeBps uint64 = 25

var (
	ErrWrongProgram      = errors.New("instruction addressed to another program")
	ErrMissingSigner     = errors.New("first account must sign")
	ErrPoolExists        = errors.New("pool already exists")
	ErrPoolNotFound      = errors.New("pool not found")
	ErrPoolMismatch      = errors.New("payload pool does not match pool account")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Balance is an actor's holdings inside one simulated pool.
type Balance struct {
	Value  uint64 `json:"value"`
	Tokens uint64 `json:"tokens"`
}

// PoolState is a snapshot of one simulated pool.
type PoolState struct {
	Pool         solana.PublicKey             `json:"pool"`
	Mint         solana.PublicKey             `json:"mint"`
	ValueReserve uint64                       `json:"value_reserve"`
	TokenReserve uint64                       `json:"token_reserve"`
	Balances     map[solana.PublicKey]Balance `json:"balances"`
}

// Price returns value per token.
func (p PoolState) Price() string {
	return pricing.SpotPrice(p.ValueReserve, p.TokenReserve).String()
}

func (p PoolState) clone() PoolState {
	out := p
	out.Balances = make(map[solana.PublicKey]Balance, len(p.Balances))
	for k, v := range p.Balances {
		out.Balances[k] = v
	}
	return out
}

// SimulatedAMM is an in-memory constant-product AMM that executes the
// encoded pool-init and swap payloads. It stands in for the external
// program in tests and in the CLI simulator.
type SimulatedAMM struct {
	mu        sync.Mutex
	programID solana.PublicKey
	feeBps    uint64
	pools     map[solana.PublicKey]*PoolState
	// Открытые журналы отката по пулу, последний получает новые операции.
	journals map[solana.PublicKey][]*undoJournal
	logger   *zap.Logger
}

// undoJournal holds inverse operations for the calls executed on one pool
// since a checkpoint. Fund is not journaled, so money credited by other
// callers survives a rollback.
type undoJournal struct {
	ops []func()
}

// NewSimulatedAMM creates an empty simulator answering for programID.
func NewSimulatedAMM(programID solana.PublicKey, feeBps uint64, logger *zap.Logger) *SimulatedAMM {
	return &SimulatedAMM{
		programID: programID,
		feeBps:    feeBps,
		pools:     make(map[solana.PublicKey]*PoolState),
		journals:  make(map[solana.PublicKey][]*undoJournal),
		logger:    logger.Named("sim_amm"),
	}
}

// ProgramID returns the program the simulator answers for.
func (s *SimulatedAMM) ProgramID() solana.PublicKey {
	return s.programID
}

// Invoke implements Invoker.
func (s *SimulatedAMM) Invoke(ctx context.Context, ix solana.Instruction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	accounts := ix.Accounts()
	if len(accounts) == 0 || !accounts[0].IsSigner {
		return ErrMissingSigner
	}
	return s.execute(ix)
}

// InvokeSigned implements Invoker. The delegated signer must match the
// address re-derived from the capability's seeds.
func (s *SimulatedAMM) InvokeSigned(ctx context.Context, ix solana.Instruction, auth *Authority) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := auth.Verify(); err != nil {
		return err
	}
	accounts := ix.Accounts()
	if len(accounts) == 0 || !accounts[0].IsSigner {
		return ErrMissingSigner
	}
	if !accounts[0].PublicKey.Equals(auth.Address) {
		return fmt.Errorf("%w: signer %s, authority %s", ErrAuthorityMismatch, accounts[0].PublicKey, auth.Address)
	}
	return s.execute(ix)
}

func (s *SimulatedAMM) execute(ix solana.Instruction) error {
	if !ix.ProgramID().Equals(s.programID) {
		return fmt.Errorf("%w: %s", ErrWrongProgram, ix.ProgramID())
	}
	data, err := ix.Data()
	if err != nil {
		return fmt.Errorf("failed to read instruction data: %w", err)
	}
	accounts := ix.Accounts()

	s.mu.Lock()
	defer s.mu.Unlock()

	switch Kind(data) {
	case KindInitPool:
		p, err := DecodeInitPool(data)
		if err != nil {
			return err
		}
		if len(accounts) < 2 {
			return fmt.Errorf("%w: init pool needs pool account", ErrMalformedPayload)
		}
		return s.initPool(accounts[1].PublicKey, p)
	case KindSwap:
		p, err := DecodeSwap(data)
		if err != nil {
			return err
		}
		if len(accounts) < 2 || !accounts[1].PublicKey.Equals(p.Pool) {
			return ErrPoolMismatch
		}
		return s.swap(accounts[0].PublicKey, p)
	default:
		return ErrUnknownInstruction
	}
}

func (s *SimulatedAMM) initPool(pool solana.PublicKey, p InitPoolParams) error {
	if _, ok := s.pools[pool]; ok {
		return fmt.Errorf("%w: %s", ErrPoolExists, pool)
	}
	s.pools[pool] = &PoolState{
		Pool:         pool,
		Mint:         p.Mint,
		ValueReserve: p.ValueAmount,
		TokenReserve: p.TokenAmount,
		Balances:     make(map[solana.PublicKey]Balance),
	}
	s.journal(pool, func() { delete(s.pools, pool) })
	s.logger.Debug("Pool created",
		zap.String("pool", pool.String()),
		zap.Uint64("token_reserve", p.TokenAmount),
		zap.Uint64("value_reserve", p.ValueAmount))
	return nil
}

func (s *SimulatedAMM) swap(actor solana.PublicKey, p SwapParams) error {
	pool, ok := s.pools[p.Pool]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPoolNotFound, p.Pool)
	}
	bal := pool.Balances[actor]
	net := pricing.NetOfFee(p.Amount, s.feeBps)

	if p.IsBuy {
		if bal.Value < p.Amount {
			return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, actor, bal.Value, p.Amount)
		}
		out, err := pricing.SwapOutput(net, pool.ValueReserve, pool.TokenReserve)
		if err != nil {
			return err
		}
		newValue, err := pricing.CheckedAdd(pool.ValueReserve, p.Amount)
		if err != nil {
			return err
		}
		pool.ValueReserve = newValue
		pool.TokenReserve -= out
		bal.Value -= p.Amount
		bal.Tokens += out
		s.journal(p.Pool, func() {
			s.unswap(p.Pool, actor, Balance{Value: p.Amount}, Balance{Tokens: out})
		})
	} else {
		if bal.Tokens < p.Amount {
			return fmt.Errorf("%w: %s holds %d tokens, sells %d", ErrInsufficientFunds, actor, bal.Tokens, p.Amount)
		}
		out, err := pricing.SwapOutput(net, pool.TokenReserve, pool.ValueReserve)
		if err != nil {
			return err
		}
		newTokens, err := pricing.CheckedAdd(pool.TokenReserve, p.Amount)
		if err != nil {
			return err
		}
		pool.TokenReserve = newTokens
		pool.ValueReserve -= out
		bal.Tokens -= p.Amount
		bal.Value += out
		s.journal(p.Pool, func() {
			s.unswap(p.Pool, actor, Balance{Tokens: p.Amount}, Balance{Value: out})
		})
	}
	pool.Balances[actor] = bal
	return nil
}

// Fund credits an actor inside a pool. Used to give traders spendable
// value and to seed the engine's reserve account with tokens.
func (s *SimulatedAMM) Fund(pool, actor solana.PublicKey, add Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pools[pool]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPoolNotFound, pool)
	}
	bal := p.Balances[actor]
	var err error
	if bal.Value, err = pricing.CheckedAdd(bal.Value, add.Value); err != nil {
		return err
	}
	if bal.Tokens, err = pricing.CheckedAdd(bal.Tokens, add.Tokens); err != nil {
		return err
	}
	p.Balances[actor] = bal
	return nil
}

// BalanceOf returns an actor's holdings in pool.
func (s *SimulatedAMM) BalanceOf(pool, actor solana.PublicKey) Balance {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.pools[pool]; ok {
		return p.Balances[actor]
	}
	return Balance{}
}

// Pool returns a copy of the pool state.
func (s *SimulatedAMM) Pool(pool solana.PublicKey) (PoolState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pools[pool]
	if !ok {
		return PoolState{}, false
	}
	return p.clone(), true
}

// Pools returns copies of all pools ordered by address.
func (s *SimulatedAMM) Pools() []PoolState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]PoolState, 0, len(s.pools))
	for _, p := range s.pools {
		out = append(out, p.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pool.String() < out[j].Pool.String() })
	return out
}

// Checkpoint implements Checkpointer. Only the effects of calls executed on
// pool after the checkpoint are undone by restore.
func (s *SimulatedAMM) Checkpoint(pool solana.PublicKey) (restore, release func()) {
	s.mu.Lock()
	j := &undoJournal{}
	s.journals[pool] = append(s.journals[pool], j)
	s.mu.Unlock()

	var once sync.Once
	restore = func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.detach(pool, j, false)
			for i := len(j.ops) - 1; i >= 0; i-- {
				j.ops[i]()
			}
		})
	}
	release = func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.detach(pool, j, true)
		})
	}
	return restore, release
}

// journal records op on the innermost open checkpoint of pool. Caller holds s.mu.
func (s *SimulatedAMM) journal(pool solana.PublicKey, op func()) {
	stack := s.journals[pool]
	if len(stack) == 0 {
		return
	}
	top := stack[len(stack)-1]
	top.ops = append(top.ops, op)
}

// detach closes j. A released journal hands its operations to the enclosing
// checkpoint so an outer rollback still undoes them. Caller holds s.mu.
func (s *SimulatedAMM) detach(pool solana.PublicKey, j *undoJournal, keep bool) {
	stack := s.journals[pool]
	for i, cur := range stack {
		if cur != j {
			continue
		}
		if keep && i > 0 {
			stack[i-1].ops = append(stack[i-1].ops, j.ops...)
		}
		stack = append(stack[:i], stack[i+1:]...)
		break
	}
	if len(stack) == 0 {
		delete(s.journals, pool)
		return
	}
	s.journals[pool] = stack
}

// unswap reverses one swap: the pool takes back out and returns in to actor.
// Caller holds s.mu.
func (s *SimulatedAMM) unswap(pool, actor solana.PublicKey, in, out Balance) {
	p, ok := s.pools[pool]
	if !ok {
		return
	}
	bal := p.Balances[actor]
	p.ValueReserve = p.ValueReserve - in.Value + out.Value
	p.TokenReserve = p.TokenReserve - in.Tokens + out.Tokens
	bal.Value = bal.Value + in.Value - out.Value
	bal.Tokens = bal.Tokens + in.Tokens - out.Tokens
	p.Balances[actor] = bal
}

// MarshalPool serializes one pool so it can be persisted between runs.
func (s *SimulatedAMM) MarshalPool(pool solana.PublicKey) ([]byte, error) {
	p, ok := s.Pool(pool)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, pool)
	}
	return json.Marshal(p)
}

// LoadPool restores a pool written by MarshalPool, replacing any existing one.
func (s *SimulatedAMM) LoadPool(data []byte) error {
	var p PoolState
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("failed to decode pool state: %w", err)
	}
	if p.Balances == nil {
		p.Balances = make(map[solana.PublicKey]Balance)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools[p.Pool] = &p
	return nil
}
