// internal/metrics/invoker.go
package metrics

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/launchguard/internal/amm"
)

// Invoker measures the latency of every external call made through next.
type Invoker struct {
	next      amm.Invoker
	collector *Collector
}

func NewInvoker(next amm.Invoker, collector *Collector) *Invoker {
	return &Invoker{next: next, collector: collector}
}

func (i *Invoker) Invoke(ctx context.Context, ix solana.Instruction) error {
	start := time.Now()
	err := i.next.Invoke(ctx, ix)
	i.collector.RecordAMMCall(opName(ix, false), time.Since(start), err)
	return err
}

func (i *Invoker) InvokeSigned(ctx context.Context, ix solana.Instruction, auth *amm.Authority) error {
	start := time.Now()
	err := i.next.InvokeSigned(ctx, ix, auth)
	i.collector.RecordAMMCall(opName(ix, true), time.Since(start), err)
	return err
}

// Checkpoint forwards to next so pool rollback keeps working when wrapped.
func (i *Invoker) Checkpoint(pool solana.PublicKey) (restore, release func()) {
	if cp, ok := i.next.(amm.Checkpointer); ok {
		return cp.Checkpoint(pool)
	}
	nop := func() {}
	return nop, nop
}

func opName(ix solana.Instruction, signed bool) string {
	data, err := ix.Data()
	if err != nil {
		return "unknown"
	}
	name := amm.Kind(data).String()
	if signed {
		name += "_signed"
	}
	return name
}
