package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/launchguard/internal/app"
	"github.com/rovshanmuradov/launchguard/internal/config"
	"github.com/rovshanmuradov/launchguard/internal/logger"
)

// Version is stamped at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "0.1.0-dev"

// globals holds what every subcommand shares after PersistentPreRunE.
type globals struct {
	configFile string
	debug      bool

	cfg *config.Config
	log *logger.Logger
}

func (g *globals) load() error {
	cfg, err := config.LoadConfig(g.configFile)
	if err != nil {
		return err
	}
	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.Log.File
	logCfg.Development = g.debug || cfg.Log.Debug
	logCfg.Pretty = true

	log, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	g.cfg = cfg
	g.log = log
	return nil
}

func (g *globals) openApp(ctx context.Context, opts app.Options) (*app.App, error) {
	return app.New(ctx, g.cfg, g.log.Logger, opts)
}

// NewRootCmd builds the launchguard command tree.
func NewRootCmd() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:   "launchguard",
		Short: "launchguard - sniper defense and pricing for AMM token launches",
		Long: `launchguard seeds a constant-product pool for a new token and watches the
first slots after launch. Buys inside the monitoring window are treated as bot
purchases: they are forwarded and immediately answered with a counter-sale
from the launch reserve. After the window, trades are checked against size and
price-impact bounds and forwarded to the AMM.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if g.log != nil {
				_ = g.log.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&g.configFile, "config", "", "configuration file path")
	rootCmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(
		newInitCmd(g),
		newBuyCmd(g),
		newSellCmd(g),
		newStatusCmd(g),
		newFlaggedCmd(g),
		newAdvanceCmd(g),
		newSimulateCmd(g),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the root command until it finishes or SIGINT/SIGTERM arrives.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseKeyOrNew parses a base58 key, generating a fresh one when empty.
func parseKeyOrNew(name, value string) (solana.PublicKey, error) {
	if value == "" {
		return solana.NewWallet().PublicKey(), nil
	}
	return parseKey(name, value)
}

func parseKey(name, value string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return key, nil
}

// withApp opens the app, runs fn and always closes it, keeping the first error.
func withApp(cmd *cobra.Command, g *globals, opts app.Options, fn func(*app.App) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := g.openApp(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(context.Background()); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(a)
}
