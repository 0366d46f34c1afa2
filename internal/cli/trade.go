package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/launchguard/internal/amm"
	"github.com/rovshanmuradov/launchguard/internal/app"
	"github.com/rovshanmuradov/launchguard/internal/guard"
)

type tradeFlags struct {
	mint, trader, pool, program string
	amount                      uint64
	fund                        bool
}

func (f *tradeFlags) register(cmd *cobra.Command, amountHelp string) {
	cmd.Flags().StringVar(&f.mint, "mint", "", "token mint")
	cmd.Flags().StringVar(&f.trader, "trader", "", "trader key (generated when empty)")
	cmd.Flags().StringVar(&f.pool, "pool", "", "target pool (defaults to the launch pool)")
	cmd.Flags().StringVar(&f.program, "program", "", "target AMM program (defaults to the trusted one)")
	cmd.Flags().Uint64Var(&f.amount, "amount", 0, amountHelp)
	cmd.Flags().BoolVar(&f.fund, "fund", false, "credit the trader in the simulated pool before trading")
	_ = cmd.MarkFlagRequired("mint")
	_ = cmd.MarkFlagRequired("amount")
}

func newBuyCmd(g *globals) *cobra.Command {
	f := &tradeFlags{}
	cmd := &cobra.Command{
		Use:   "buy",
		Short: "Buy tokens with value",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrade(cmd, g, f, guard.SideBuy)
		},
	}
	f.register(cmd, "value to spend")
	return cmd
}

func newSellCmd(g *globals) *cobra.Command {
	f := &tradeFlags{}
	cmd := &cobra.Command{
		Use:   "sell",
		Short: "Sell tokens for value",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrade(cmd, g, f, guard.SideSell)
		},
	}
	f.register(cmd, "tokens to sell")
	return cmd
}

func runTrade(cmd *cobra.Command, g *globals, f *tradeFlags, side guard.Side) error {
	mint, err := parseKey("mint", f.mint)
	if err != nil {
		return err
	}
	trader, err := parseKeyOrNew("trader", f.trader)
	if err != nil {
		return err
	}

	return withApp(cmd, g, app.Options{}, func(a *app.App) error {
		ctx := cmd.Context()
		state, err := a.Engine.State(ctx, mint)
		if err != nil {
			return err
		}
		req := guard.TradeRequest{
			Mint:    mint,
			Trader:  trader,
			Amount:  f.amount,
			Pool:    state.Pool,
			Program: a.Params.AMMProgramID,
		}
		if f.pool != "" {
			if req.Pool, err = parseKey("pool", f.pool); err != nil {
				return err
			}
		}
		if f.program != "" {
			if req.Program, err = parseKey("program", f.program); err != nil {
				return err
			}
		}

		if f.fund {
			bal := amm.Balance{Value: f.amount}
			if side == guard.SideSell {
				bal = amm.Balance{Tokens: f.amount}
			}
			if err := a.Fund(state.Pool, trader, bal); err != nil {
				return err
			}
		}

		var res *guard.TradeResult
		if side == guard.SideBuy {
			res, err = a.Engine.Buy(ctx, req)
		} else {
			res, err = a.Engine.Sell(ctx, req)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTrade(side, res))
		return nil
	})
}
