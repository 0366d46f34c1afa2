// internal/app/app.go
package app

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchguard/internal/amm"
	"github.com/rovshanmuradov/launchguard/internal/config"
	"github.com/rovshanmuradov/launchguard/internal/events"
	"github.com/rovshanmuradov/launchguard/internal/guard"
	"github.com/rovshanmuradov/launchguard/internal/ledger"
	"github.com/rovshanmuradov/launchguard/internal/metrics"
	"github.com/rovshanmuradov/launchguard/internal/storage"
	"github.com/rovshanmuradov/launchguard/internal/storage/csvjournal"
	"github.com/rovshanmuradov/launchguard/internal/storage/postgres"
)

const (
	simPoolPrefix = "sim/pool/"
	simSlotKey    = "sim/slot"
	eventBuffer   = 256
)

var ErrNotManualClock = errors.New("slot source is not a manual clock")

// Options tune how the App is assembled.
type Options struct {
	// InMemory keeps the ledger in memory and skips persistence.
	InMemory bool
	// StartSlot seeds a manual clock that has no stored slot.
	StartSlot uint64
}

// App wires the engine with its ledger, simulated AMM, event sinks and metrics.
type App struct {
	Config   *config.Config
	Params   guard.Params
	Engine   *guard.Engine
	Sim      *amm.SimulatedAMM
	Bus      *events.Bus
	Metrics  *metrics.Collector
	Recorder *events.Recorder

	kv       ledger.KV
	clock    ledger.SlotSource
	manual   *ledger.ManualClock
	sink     *storage.Sink
	inMemory bool
	logger   *zap.Logger
}

// New assembles an App from configuration.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	params, err := cfg.GuardParams()
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		Params:   params,
		Sim:      amm.NewSimulatedAMM(params.AMMProgramID, cfg.Sim.FeeBps, logger),
		Bus:      events.NewBus(logger, eventBuffer),
		Metrics:  metrics.NewCollector(),
		Recorder: events.NewRecorder(),
		inMemory: opts.InMemory,
		logger:   logger.Named("app"),
	}

	if opts.InMemory {
		a.kv = ledger.NewMemoryKV()
	} else {
		db, err := ledger.OpenPebble(ledger.PebbleOptions{
			Path:      cfg.Ledger.Path,
			CacheSize: cfg.Ledger.CacheSize,
		}, logger)
		if err != nil {
			a.closeQuietly()
			return nil, err
		}
		a.kv = db
	}

	if err := a.restoreSim(ctx); err != nil {
		a.closeQuietly()
		return nil, err
	}
	if err := a.setupClock(ctx, opts.StartSlot, logger); err != nil {
		a.closeQuietly()
		return nil, err
	}
	if err := a.setupSinks(logger); err != nil {
		a.closeQuietly()
		return nil, err
	}

	a.Metrics.Attach(a.Bus)
	a.Bus.SubscribeAll(a.Recorder)

	invoker := amm.NewLoggingInvoker(metrics.NewInvoker(a.Sim, a.Metrics), logger)
	a.Engine, err = guard.NewEngine(params, a.kv, a.clock, invoker, a.Bus, logger)
	if err != nil {
		a.closeQuietly()
		return nil, err
	}
	return a, nil
}

func (a *App) restoreSim(ctx context.Context) error {
	return a.kv.Scan(ctx, simPoolPrefix, func(key string, value []byte) error {
		if err := a.Sim.LoadPool(value); err != nil {
			return fmt.Errorf("restore %s: %w", key, err)
		}
		return nil
	})
}

func (a *App) setupClock(ctx context.Context, start uint64, logger *zap.Logger) error {
	if a.Config.Clock.Source == config.ClockRPC {
		a.clock = ledger.NewRPCClockFromURL(a.Config.RPCURL, a.Config.RPCRetries, logger)
		return nil
	}

	raw, err := a.kv.Get(ctx, simSlotKey)
	switch {
	case err == nil && len(raw) == 8:
		start = binary.LittleEndian.Uint64(raw)
	case err != nil && !errors.Is(err, ledger.ErrNotFound):
		return fmt.Errorf("failed to read stored slot: %w", err)
	}
	a.manual = ledger.NewManualClock(start)
	a.clock = a.manual
	return nil
}

func (a *App) setupSinks(logger *zap.Logger) error {
	var journals []storage.Journal
	if a.Config.JournalCSV != "" {
		j, err := csvjournal.New(a.Config.JournalCSV, 0, logger)
		if err != nil {
			return err
		}
		journals = append(journals, j)
	}
	if a.Config.PostgresURL != "" {
		store, err := postgres.NewStorage(a.Config.PostgresURL, logger)
		if err != nil {
			closeJournals(journals)
			return err
		}
		if err := store.RunMigrations(); err != nil {
			_ = store.Close()
			closeJournals(journals)
			return err
		}
		journals = append(journals, store)
	}
	if len(journals) > 0 {
		a.sink = storage.NewSink(logger, journals...)
		a.sink.Attach(a.Bus)
	}
	return nil
}

// closeJournals releases journals opened before a later sink failed.
func closeJournals(journals []storage.Journal) {
	for _, j := range journals {
		_ = j.Close()
	}
}

// Launch initializes defense for a mint and seeds the manager's reserve
// account in the simulated pool with the tokens counter-trades may sell.
func (a *App) Launch(ctx context.Context, req guard.InitRequest) (*guard.LaunchState, error) {
	state, err := a.Engine.Initialize(ctx, req)
	if err != nil {
		return nil, err
	}
	auth, err := a.Engine.Authority(ctx, req.Mint)
	if err != nil {
		return nil, err
	}
	if err := a.Sim.Fund(req.Pool, auth.Address, amm.Balance{Tokens: state.AvailableReserve()}); err != nil {
		return nil, fmt.Errorf("failed to seed reserve account: %w", err)
	}
	return state, nil
}

// Fund credits a trader inside pool.
func (a *App) Fund(pool, trader solana.PublicKey, bal amm.Balance) error {
	return a.Sim.Fund(pool, trader, bal)
}

// Advance moves a manual clock forward.
func (a *App) Advance(n uint64) (uint64, error) {
	if a.manual == nil {
		return 0, ErrNotManualClock
	}
	return a.manual.Advance(n), nil
}

// CurrentSlot reads the configured slot source.
func (a *App) CurrentSlot(ctx context.Context) (uint64, error) {
	return a.clock.CurrentSlot(ctx)
}

// Save persists simulated pools and the manual slot next to the ledger.
func (a *App) Save(ctx context.Context) error {
	if a.inMemory {
		return nil
	}
	var writes []ledger.Write
	for _, p := range a.Sim.Pools() {
		data, err := a.Sim.MarshalPool(p.Pool)
		if err != nil {
			return err
		}
		writes = append(writes, ledger.Write{Key: simPoolPrefix + p.Pool.String(), Value: data})
	}
	if a.manual != nil {
		slot, _ := a.manual.CurrentSlot(ctx)
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, slot)
		writes = append(writes, ledger.Write{Key: simSlotKey, Value: buf})
	}
	if len(writes) == 0 {
		return nil
	}
	return a.kv.Apply(ctx, writes)
}

// Close saves state and releases every resource.
func (a *App) Close(ctx context.Context) error {
	errs := []error{a.Save(ctx)}
	errs = append(errs, a.Bus.Shutdown(ctx))
	if a.sink != nil {
		errs = append(errs, a.sink.Close())
	}
	errs = append(errs, a.kv.Close())
	return errors.Join(errs...)
}

func (a *App) closeQuietly() {
	if a.sink != nil {
		_ = a.sink.Close()
	}
	_ = a.Bus.Shutdown(context.Background())
	if a.kv != nil {
		_ = a.kv.Close()
	}
}
