// internal/amm/invoker.go
package amm

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// Invoker dispatches calls to the external AMM program. A returned error
// means the call was rejected and the caller must abort its unit of work.
type Invoker interface {
	// Invoke executes ix under the signatures already present on it.
	Invoke(ctx context.Context, ix solana.Instruction) error
	// InvokeSigned executes ix with auth's derived account as an additional signer.
	InvokeSigned(ctx context.Context, ix solana.Instruction, auth *Authority) error
}

// Checkpointer is implemented by invokers whose state can take part in a
// rollback. restore undoes the calls executed on pool since the checkpoint;
// release keeps them. Exactly one of the two takes effect.
type Checkpointer interface {
	Checkpoint(pool solana.PublicKey) (restore, release func())
}

func noop() {}

// LoggingInvoker оборачивает Invoker и пишет каждую инструкцию в лог.
type LoggingInvoker struct {
	next   Invoker
	logger *zap.Logger
}

// NewLoggingInvoker wraps next.
func NewLoggingInvoker(next Invoker, logger *zap.Logger) *LoggingInvoker {
	return &LoggingInvoker{next: next, logger: logger.Named("amm")}
}

// Invoke implements Invoker.
func (l *LoggingInvoker) Invoke(ctx context.Context, ix solana.Instruction) error {
	start := time.Now()
	err := l.next.Invoke(ctx, ix)
	l.log("invoke", ix, start, err)
	return err
}

// InvokeSigned implements Invoker.
func (l *LoggingInvoker) InvokeSigned(ctx context.Context, ix solana.Instruction, auth *Authority) error {
	start := time.Now()
	err := l.next.InvokeSigned(ctx, ix, auth)
	l.log("invoke_signed", ix, start, err)
	return err
}

// Checkpoint forwards to the wrapped invoker when it supports rollback.
func (l *LoggingInvoker) Checkpoint(pool solana.PublicKey) (restore, release func()) {
	if cp, ok := l.next.(Checkpointer); ok {
		return cp.Checkpoint(pool)
	}
	return noop, noop
}

func (l *LoggingInvoker) log(op string, ix solana.Instruction, start time.Time, err error) {
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("instruction", DescribeInstruction(ix)),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		l.logger.Warn("AMM call rejected", append(fields, zap.Error(err))...)
		return
	}
	l.logger.Debug("AMM call executed", fields...)
}
