// internal/ledger/pebble.go
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// DefaultCacheSize - сколько последних записей держать в памяти.
const DefaultCacheSize = 1024

// PebbleOptions configures the on-disk ledger.
type PebbleOptions struct {
	Path      string
	CacheSize int
	// InMemory opens the database on a memory filesystem.
	InMemory bool
}

// PebbleKV is a KV backed by pebble with an LRU of recently read values.
type PebbleKV struct {
	// mu: читатели под RLock, Apply и Close под Lock. Промах кэша читает
	// базу и кладёт значение в кэш под тем же RLock, поэтому Apply не
	// может вклиниться между чтением и Add.
	mu     sync.RWMutex
	db     *pebble.DB
	cache  *lru.Cache[string, []byte]
	logger *zap.Logger
}

// OpenPebble opens or creates the ledger database.
func OpenPebble(opts PebbleOptions, logger *zap.Logger) (*PebbleKV, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	pebbleOpts := &pebble.Options{}
	if opts.InMemory {
		pebbleOpts.FS = vfs.NewMem()
	}

	db, err := pebble.Open(opts.Path, pebbleOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger at %q: %w", opts.Path, err)
	}
	cache, err := lru.New[string, []byte](opts.CacheSize)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create ledger cache: %w", err)
	}

	logger.Named("ledger").Info("Ledger opened",
		zap.String("path", opts.Path),
		zap.Bool("in_memory", opts.InMemory),
		zap.Int("cache_size", opts.CacheSize))

	return &PebbleKV{db: db, cache: cache, logger: logger.Named("ledger")}, nil
}

func (p *PebbleKV) Get(_ context.Context, key string) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.db == nil {
		return nil, ErrClosed
	}
	if v, ok := p.cache.Get(key); ok {
		return append([]byte(nil), v...), nil
	}

	val, closer, err := p.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()

	valCopy := make([]byte, len(val))
	copy(valCopy, val)
	p.cache.Add(key, valCopy)
	return append([]byte(nil), valCopy...), nil
}

func (p *PebbleKV) Apply(_ context.Context, writes []Write) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return ErrClosed
	}
	batch := p.db.NewBatch()
	defer batch.Close()

	for _, w := range writes {
		if w.Value == nil {
			if err := batch.Delete([]byte(w.Key), nil); err != nil {
				return err
			}
			continue
		}
		if err := batch.Set([]byte(w.Key), w.Value, nil); err != nil {
			return err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	// Кэш обновляем только после успешного коммита.
	for _, w := range writes {
		if w.Value == nil {
			p.cache.Remove(w.Key)
			continue
		}
		p.cache.Add(w.Key, append([]byte(nil), w.Value...))
	}
	return nil
}

func (p *PebbleKV) Scan(_ context.Context, prefix string, fn func(string, []byte) error) error {
	p.mu.RLock()
	db := p.db
	p.mu.RUnlock()
	if db == nil {
		return ErrClosed
	}
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: prefixEnd([]byte(prefix)),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for valid := iter.First(); valid; valid = iter.Next() {
		key := string(iter.Key())
		val := append([]byte(nil), iter.Value()...)
		if err := fn(key, val); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (p *PebbleKV) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	p.cache.Purge()
	return err
}

// prefixEnd returns the smallest key greater than every key with prefix,
// or nil when there is none.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
