// =============================
// File: internal/ledger/clock.go
// =============================
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// SlotSource reports the host's current sequence counter.
type SlotSource interface {
	CurrentSlot(ctx context.Context) (uint64, error)
}

// ManualClock is a SlotSource advanced explicitly. Used by tests and the
// simulator, where "time" is a slot counter we drive ourselves.
type ManualClock struct {
	slot atomic.Uint64
}

func NewManualClock(start uint64) *ManualClock {
	c := &ManualClock{}
	c.slot.Store(start)
	return c
}

func (c *ManualClock) CurrentSlot(context.Context) (uint64, error) {
	return c.slot.Load(), nil
}

// Advance moves the clock forward by n slots and returns the new slot.
func (c *ManualClock) Advance(n uint64) uint64 {
	return c.slot.Add(n)
}

// Set jumps to slot.
func (c *ManualClock) Set(slot uint64) {
	c.slot.Store(slot)
}

// SlotGetter is the subset of *rpc.Client used by RPCClock.
type SlotGetter interface {
	GetSlot(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
}

// RPCClock reads the slot from a Solana RPC node with retries.
type RPCClock struct {
	client     SlotGetter
	commitment rpc.CommitmentType
	maxTries   uint
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewRPCClock creates a clock over client. retries <= 0 means one attempt.
func NewRPCClock(client SlotGetter, retries int, retryDelay time.Duration, logger *zap.Logger) *RPCClock {
	if retries < 1 {
		retries = 1
	}
	if retryDelay <= 0 {
		retryDelay = 200 * time.Millisecond
	}
	return &RPCClock{
		client:     client,
		commitment: rpc.CommitmentConfirmed,
		maxTries:   uint(retries),
		retryDelay: retryDelay,
		logger:     logger.Named("rpc_clock"),
	}
}

// NewRPCClockFromURL dials endpoint.
func NewRPCClockFromURL(endpoint string, retries int, logger *zap.Logger) *RPCClock {
	return NewRPCClock(rpc.New(endpoint), retries, 0, logger)
}

func (c *RPCClock) CurrentSlot(ctx context.Context) (uint64, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryDelay
	policy.MaxInterval = c.retryDelay * 10

	notify := func(err error, d time.Duration) {
		c.logger.Warn("Повтор запроса слота", zap.Error(err), zap.Duration("backoff", d))
	}

	op := func() (uint64, error) {
		slot, err := c.client.GetSlot(ctx, c.commitment)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return 0, backoff.Permanent(err)
			}
			return 0, err
		}
		return slot, nil
	}

	slot, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(notify))
	if err != nil {
		return 0, fmt.Errorf("failed to get current slot: %w", err)
	}
	return slot, nil
}
