// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rovshanmuradov/launchguard/internal/amm"
	"github.com/rovshanmuradov/launchguard/internal/guard"
	"github.com/rovshanmuradov/launchguard/internal/ledger"
	"github.com/rovshanmuradov/launchguard/internal/pricing"
)

// EnvPrefix is the prefix of environment overrides, e.g. LAUNCHGUARD_GUARD_WINDOW_SLOTS.
const EnvPrefix = "LAUNCHGUARD"

// DefaultProgramID is the identity the manager authority is derived under
// when nothing is configured.
const DefaultProgramID = "BHbYVDLiSDuVPCs8DGkiJjcZMwDK6EBFQuPVD1wAD9jQ"

const (
	DefaultLedgerPath  = "data/ledger"
	DefaultRPCURL      = "https://api.mainnet-beta.solana.com"
	DefaultRPCRetries  = 3
	DefaultLogFile     = "logs/launchguard.log"
	DefaultMetricsAddr = ""
)

type GuardConfig struct {
	ProgramID          string `mapstructure:"program_id"`
	AMMProgramID       string `mapstructure:"amm_program_id"`
	WindowSlots        uint64 `mapstructure:"window_slots"`
	MinTrade           uint64 `mapstructure:"min_trade"`
	MaxTrade           uint64 `mapstructure:"max_trade"`
	MaxPriceImpactBps  uint64 `mapstructure:"max_price_impact_bps"`
	InitialPairedValue uint64 `mapstructure:"initial_paired_value"`
}

type LedgerConfig struct {
	Path      string `mapstructure:"path"`
	CacheSize int    `mapstructure:"cache_size"`
}

// Slot sources.
const (
	ClockManual = "manual"
	ClockRPC    = "rpc"
)

type ClockConfig struct {
	// Source is "manual" (slot kept in the ledger) or "rpc".
	Source string `mapstructure:"source"`
}

type SimConfig struct {
	FeeBps uint64 `mapstructure:"fee_bps"`
}

type LogConfig struct {
	File  string `mapstructure:"file"`
	Debug bool   `mapstructure:"debug"`
}

type Config struct {
	Guard       GuardConfig      `mapstructure:"guard"`
	Pricing     pricing.Reserves `mapstructure:"pricing"`
	Ledger      LedgerConfig     `mapstructure:"ledger"`
	Sim         SimConfig        `mapstructure:"sim"`
	Clock       ClockConfig      `mapstructure:"clock"`
	Log         LogConfig        `mapstructure:"log"`
	RPCURL      string           `mapstructure:"rpc_url"`
	RPCRetries  int              `mapstructure:"rpc_retries"`
	PostgresURL string           `mapstructure:"postgres_url"`
	JournalCSV  string           `mapstructure:"journal_csv"`
	MetricsAddr string           `mapstructure:"metrics_addr"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"guard.program_id":           DefaultProgramID,
		"guard.amm_program_id":       guard.RaydiumAMMProgramID.String(),
		"guard.window_slots":         guard.DefaultWindowSlots,
		"guard.min_trade":            guard.MinTrade,
		"guard.max_trade":            guard.MaxTrade,
		"guard.max_price_impact_bps": guard.DefaultMaxPriceImpactBps,
		"guard.initial_paired_value": guard.MinTrade,
		"pricing.value_reserve":      pricing.DefaultValueReserve,
		"pricing.token_reserve":      pricing.DefaultTokenReserve,
		"ledger.path":                DefaultLedgerPath,
		"ledger.cache_size":          ledger.DefaultCacheSize,
		"sim.fee_bps":                amm.DefaultFeeBps,
		"clock.source":               ClockManual,
		"log.file":                   DefaultLogFile,
		"log.debug":                  false,
		"rpc_url":                    DefaultRPCURL,
		"rpc_retries":                DefaultRPCRetries,
		"postgres_url":               "",
		"journal_csv":                "",
		"metrics_addr":               DefaultMetricsAddr,
	}
}

// LoadConfig reads path (optional), applies .env and LAUNCHGUARD_* overrides
// and validates the result.
func LoadConfig(path string) (*Config, error) {
	// .env необязателен, отсутствие файла не ошибка.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
	loadEnvironmentVariables(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, cfg.Validate()
}

func loadEnvironmentVariables(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Validate rejects inconsistent values.
func (c *Config) Validate() error {
	if _, err := c.GuardParams(); err != nil {
		return err
	}
	if c.Ledger.Path == "" {
		return errors.New("ledger.path is empty")
	}
	if c.Ledger.CacheSize < 0 {
		return errors.New("invalid ledger.cache_size")
	}
	if c.Sim.FeeBps >= pricing.BasisPoints {
		return fmt.Errorf("sim.fee_bps must be below %d", pricing.BasisPoints)
	}
	if c.Clock.Source != ClockManual && c.Clock.Source != ClockRPC {
		return fmt.Errorf("unknown clock.source %q", c.Clock.Source)
	}
	if c.Clock.Source == ClockRPC && c.RPCURL == "" {
		return errors.New("clock.source rpc requires rpc_url")
	}
	if c.RPCRetries < 0 {
		return errors.New("invalid rpc_retries count")
	}
	if c.RPCURL != "" {
		if err := validateURLWithCache(c.RPCURL, "http"); err != nil {
			return fmt.Errorf("invalid rpc_url: %w", err)
		}
	}
	if c.PostgresURL != "" {
		if err := validateURLWithCache(c.PostgresURL, "postgres"); err != nil {
			return fmt.Errorf("invalid postgres_url: %w", err)
		}
	}
	return nil
}

// GuardParams converts the guard and pricing sections into engine params.
func (c *Config) GuardParams() (guard.Params, error) {
	programID, err := solana.PublicKeyFromBase58(c.Guard.ProgramID)
	if err != nil {
		return guard.Params{}, fmt.Errorf("invalid guard.program_id: %w", err)
	}
	ammProgramID, err := solana.PublicKeyFromBase58(c.Guard.AMMProgramID)
	if err != nil {
		return guard.Params{}, fmt.Errorf("invalid guard.amm_program_id: %w", err)
	}

	params := guard.Params{
		ProgramID:          programID,
		AMMProgramID:       ammProgramID,
		WindowSlots:        c.Guard.WindowSlots,
		MinTrade:           c.Guard.MinTrade,
		MaxTrade:           c.Guard.MaxTrade,
		MaxPriceImpactBps:  c.Guard.MaxPriceImpactBps,
		InitialPairedValue: c.Guard.InitialPairedValue,
		Reserves:           c.Pricing,
	}
	if err := params.Validate(); err != nil {
		return guard.Params{}, err
	}
	return params, nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}
