// internal/ledger/unit.go
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnitClosed is returned when a committed or rolled back unit is reused.
var ErrUnitClosed = errors.New("unit of work already finished")

// UnitOfWork stages record writes and collects rollback hooks so that a
// trade either takes full effect or none at all. Reads see staged writes.
// A UnitOfWork is not safe for concurrent use; callers hold the record
// lock for its whole lifetime.
type UnitOfWork struct {
	kv     KV
	staged map[string][]byte
	undo   []func()
	after  []func()
	done   bool
}

// Begin opens a unit of work over kv.
func Begin(kv KV) *UnitOfWork {
	return &UnitOfWork{kv: kv, staged: make(map[string][]byte)}
}

// Get reads key, preferring a staged value.
func (u *UnitOfWork) Get(ctx context.Context, key string) ([]byte, error) {
	if u.done {
		return nil, ErrUnitClosed
	}
	if v, ok := u.staged[key]; ok {
		if v == nil {
			return nil, ErrNotFound
		}
		return append([]byte(nil), v...), nil
	}
	return u.kv.Get(ctx, key)
}

// Put stages a write.
func (u *UnitOfWork) Put(key string, value []byte) error {
	if u.done {
		return ErrUnitClosed
	}
	if value == nil {
		value = []byte{}
	}
	u.staged[key] = append([]byte(nil), value...)
	return nil
}

// Delete stages a removal.
func (u *UnitOfWork) Delete(key string) error {
	if u.done {
		return ErrUnitClosed
	}
	u.staged[key] = nil
	return nil
}

// Scan merges staged writes over the store's keys with prefix.
func (u *UnitOfWork) Scan(ctx context.Context, prefix string, fn func(string, []byte) error) error {
	if u.done {
		return ErrUnitClosed
	}
	merged := make(map[string][]byte)
	err := u.kv.Scan(ctx, prefix, func(k string, v []byte) error {
		merged[k] = v
		return nil
	})
	if err != nil {
		return err
	}
	for k, v := range u.staged {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn(k, append([]byte(nil), merged[k]...)); err != nil {
			return err
		}
	}
	return nil
}

// OnRollback registers fn to run if the unit is rolled back. Hooks run in
// reverse registration order.
func (u *UnitOfWork) OnRollback(fn func()) {
	if fn != nil {
		u.undo = append(u.undo, fn)
	}
}

// OnCommit registers fn to run after a successful commit.
func (u *UnitOfWork) OnCommit(fn func()) {
	if fn != nil {
		u.after = append(u.after, fn)
	}
}

// Commit writes all staged records in one batch. If the batch fails the
// rollback hooks run and the error is returned.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	if u.done {
		return ErrUnitClosed
	}
	keys := make([]string, 0, len(u.staged))
	for k := range u.staged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	writes := make([]Write, 0, len(keys))
	for _, k := range keys {
		writes = append(writes, Write{Key: k, Value: u.staged[k]})
	}
	if len(writes) > 0 {
		if err := u.kv.Apply(ctx, writes); err != nil {
			u.Rollback()
			return fmt.Errorf("failed to commit unit of work: %w", err)
		}
	}
	u.done = true
	u.undo = nil
	for _, fn := range u.after {
		fn()
	}
	u.after = nil
	return nil
}

// Rollback discards staged writes and runs the rollback hooks. Calling it
// after Commit is a no-op, so it is safe to defer.
func (u *UnitOfWork) Rollback() {
	if u.done {
		return
	}
	u.done = true
	u.staged = nil
	u.after = nil
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.undo[i]()
	}
	u.undo = nil
}
