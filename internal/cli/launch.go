package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/launchguard/internal/app"
	"github.com/rovshanmuradov/launchguard/internal/guard"
)

func newInitCmd(g *globals) *cobra.Command {
	var (
		mint, pool, authority string
		reserve               uint64
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize defense for a new mint",
		Long: `Create the launch record, derive the manager authority and seed the pool
with half of the reserve. The current slot starts the monitoring window.
Keys that are not given are generated and printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := guard.InitRequest{ReserveAmount: reserve}
			var err error
			if req.Mint, err = parseKeyOrNew("mint", mint); err != nil {
				return err
			}
			if req.Pool, err = parseKeyOrNew("pool", pool); err != nil {
				return err
			}
			if req.Authority, err = parseKeyOrNew("authority", authority); err != nil {
				return err
			}

			return withApp(cmd, g, app.Options{}, func(a *app.App) error {
				state, err := a.Launch(cmd.Context(), req)
				if err != nil {
					return err
				}
				auth, err := a.Engine.Authority(cmd.Context(), req.Mint)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderLaunch(state, auth))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&mint, "mint", "", "token mint (generated when empty)")
	cmd.Flags().StringVar(&pool, "pool", "", "AMM pool account (generated when empty)")
	cmd.Flags().StringVar(&authority, "authority", "", "launch authority (generated when empty)")
	cmd.Flags().Uint64Var(&reserve, "reserve", 0, "reserve token amount")
	_ = cmd.MarkFlagRequired("reserve")
	return cmd
}
