package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/launchguard/internal/app"
)

func newStatusCmd(g *globals) *cobra.Command {
	var mint string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show phase, captured value and reserve of a launch",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey("mint", mint)
			if err != nil {
				return err
			}
			return withApp(cmd, g, app.Options{}, func(a *app.App) error {
				snap, err := a.Engine.Status(cmd.Context(), key)
				if err != nil {
					return err
				}
				pool, ok := a.Sim.Pool(snap.State.Pool)
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), renderStatus(snap, nil))
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderStatus(snap, &pool))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&mint, "mint", "", "token mint")
	_ = cmd.MarkFlagRequired("mint")
	return cmd
}

func newFlaggedCmd(g *globals) *cobra.Command {
	var mint string
	cmd := &cobra.Command{
		Use:   "flagged",
		Short: "List traders detected as bots",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey("mint", mint)
			if err != nil {
				return err
			}
			return withApp(cmd, g, app.Options{}, func(a *app.App) error {
				flagged, err := a.Engine.FlaggedTraders(cmd.Context(), key)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderFlagged(flagged))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&mint, "mint", "", "token mint")
	_ = cmd.MarkFlagRequired("mint")
	return cmd
}

func newAdvanceCmd(g *globals) *cobra.Command {
	var slots uint64
	cmd := &cobra.Command{
		Use:   "advance",
		Short: "Move the manual slot clock forward",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, app.Options{}, func(a *app.App) error {
				slot, err := a.Advance(slots)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "current slot: %d\n", slot)
				return nil
			})
		},
	}
	cmd.Flags().Uint64Var(&slots, "slots", 1, "number of slots to advance")
	return cmd
}
