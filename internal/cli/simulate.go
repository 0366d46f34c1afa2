package cli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/launchguard/internal/amm"
	"github.com/rovshanmuradov/launchguard/internal/app"
	"github.com/rovshanmuradov/launchguard/internal/events"
	"github.com/rovshanmuradov/launchguard/internal/guard"
)

type simulateOptions struct {
	bots        int
	botAmount   uint64
	traders     int
	tradeAmount uint64
	reserve     uint64
	metricsAddr string
	hold        time.Duration
}

// simulationReport is what a simulated launch produced.
type simulationReport struct {
	Mint        solana.PublicKey
	BotTrades   int
	Regular     int
	Rejected    int
	CounterSold uint64
}

func newSimulateCmd(g *globals) *cobra.Command {
	opts := &simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run an in-memory launch with a bot burst and regular traders",
		Long: `simulate launches a fresh mint on an in-memory ledger, fires a concurrent
burst of bot buys inside the monitoring window, advances past the window and
lets regular traders buy and sell. Nothing is written to the ledger on disk.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.metricsAddr == "" {
				opts.metricsAddr = g.cfg.MetricsAddr
			}
			return withApp(cmd, g, app.Options{InMemory: true, StartSlot: 1}, func(a *app.App) error {
				ctx, cancel := context.WithCancel(cmd.Context())
				defer cancel()

				if opts.metricsAddr != "" {
					go func() {
						if err := a.Metrics.Serve(ctx, opts.metricsAddr, g.log.Logger); err != nil {
							g.log.Error("Metrics server failed", zap.Error(err))
						}
					}()
				}

				report, err := runSimulation(ctx, a, opts, g.log.Logger)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				snap, err := a.Engine.Status(ctx, report.Mint)
				if err != nil {
					return err
				}
				pool, _ := a.Sim.Pool(snap.State.Pool)
				fmt.Fprintln(out, renderStatus(snap, &pool))
				flagged, err := a.Engine.FlaggedTraders(ctx, report.Mint)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, renderFlagged(flagged))
				fmt.Fprintf(out, "bot buys: %d  regular trades: %d  rejected: %d  counter-sold: %d\n",
					report.BotTrades, report.Regular, report.Rejected, report.CounterSold)

				if opts.hold > 0 && opts.metricsAddr != "" {
					g.log.Info("Holding metrics endpoint", zap.Duration("for", opts.hold))
					select {
					case <-time.After(opts.hold):
					case <-ctx.Done():
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&opts.bots, "bots", 8, "bot buyers inside the monitoring window")
	cmd.Flags().Uint64Var(&opts.botAmount, "bot-amount", 1_000_000, "value each bot spends")
	cmd.Flags().IntVar(&opts.traders, "traders", 4, "regular traders after the window")
	cmd.Flags().Uint64Var(&opts.tradeAmount, "trade-amount", 500_000, "value each regular trader spends")
	cmd.Flags().Uint64Var(&opts.reserve, "reserve", 1_000_000_000_000, "launch reserve tokens")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics on this address")
	cmd.Flags().DurationVar(&opts.hold, "hold", 0, "keep the metrics endpoint up after the run")
	return cmd
}

func runSimulation(ctx context.Context, a *app.App, opts *simulateOptions, logger *zap.Logger) (*simulationReport, error) {
	req := guard.InitRequest{
		Authority:     solana.NewWallet().PublicKey(),
		Mint:          solana.NewWallet().PublicKey(),
		Pool:          solana.NewWallet().PublicKey(),
		ReserveAmount: opts.reserve,
	}
	if _, err := a.Launch(ctx, req); err != nil {
		return nil, err
	}
	report := &simulationReport{Mint: req.Mint}

	var mu sync.Mutex
	trade := func(ctx context.Context, side guard.Side, trader solana.PublicKey, amount uint64) (*guard.TradeResult, error) {
		tr := guard.TradeRequest{
			Mint:    req.Mint,
			Trader:  trader,
			Amount:  amount,
			Pool:    req.Pool,
			Program: a.Params.AMMProgramID,
		}
		var (
			res *guard.TradeResult
			err error
		)
		if side == guard.SideBuy {
			res, err = a.Engine.Buy(ctx, tr)
		} else {
			res, err = a.Engine.Sell(ctx, tr)
		}

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			// Отказ это нормальный исход для симуляции, а не сбой.
			report.Rejected++
			logger.Debug("Simulated trade rejected",
				zap.String("side", side.String()),
				zap.String("reason", guard.Reason(err)))
			return nil, nil
		}
		if res.Kind == guard.KindMonitoredBuy {
			report.BotTrades++
			report.CounterSold += res.CounterTokens
		} else {
			report.Regular++
		}
		return res, nil
	}

	// Всплеск ботов внутри окна.
	eg, egCtx := errgroup.WithContext(ctx)
	for i := 0; i < opts.bots; i++ {
		eg.Go(func() error {
			bot := solana.NewWallet().PublicKey()
			if err := a.Fund(req.Pool, bot, amm.Balance{Value: opts.botAmount}); err != nil {
				return err
			}
			_, err := trade(egCtx, guard.SideBuy, bot, opts.botAmount)
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if _, err := a.Advance(a.Params.WindowSlots + 1); err != nil {
		return nil, err
	}

	eg, egCtx = errgroup.WithContext(ctx)
	for i := 0; i < opts.traders; i++ {
		eg.Go(func() error {
			trader := solana.NewWallet().PublicKey()
			if err := a.Fund(req.Pool, trader, amm.Balance{Value: opts.tradeAmount}); err != nil {
				return err
			}
			res, err := trade(egCtx, guard.SideBuy, trader, opts.tradeAmount)
			if err != nil || res == nil {
				return err
			}
			// Продаем половину оценки, фактически купленного в пуле больше.
			_, err = trade(egCtx, guard.SideSell, trader, res.TokenAmount/2)
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	logger.Info("Simulation finished",
		zap.String("mint", req.Mint.String()),
		zap.Int("bot_buys", report.BotTrades),
		zap.Int("regular", report.Regular),
		zap.Int("rejected", report.Rejected),
		zap.Int("events", len(a.Recorder.Events())),
		zap.Int("bot_events", len(a.Recorder.OfType(events.BotPurchaseHandled))))
	return report, nil
}
