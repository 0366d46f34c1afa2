// internal/guard/repository.go
package guard

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/launchguard/internal/ledger"
)

const (
	launchPrefix  = "launch/"
	flaggedPrefix = "flagged/"
)

// reader is satisfied by both ledger.KV and *ledger.UnitOfWork.
type reader interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Scan(ctx context.Context, prefix string, fn func(string, []byte) error) error
}

func launchKey(mint solana.PublicKey) string {
	return launchPrefix + mint.String()
}

func flaggedMintPrefix(mint solana.PublicKey) string {
	return flaggedPrefix + mint.String() + "/"
}

func flaggedKey(mint, trader solana.PublicKey) string {
	return flaggedMintPrefix(mint) + trader.String()
}

func loadLaunch(ctx context.Context, r reader, mint solana.PublicKey) (*LaunchState, error) {
	data, err := r.Get(ctx, launchKey(mint))
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrLaunchNotFound
		}
		return nil, fmt.Errorf("failed to read launch %s: %w", mint, err)
	}
	var s LaunchState
	if err := s.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("failed to decode launch %s: %w", mint, err)
	}
	return &s, nil
}

func saveLaunch(u *ledger.UnitOfWork, s *LaunchState) error {
	data, err := s.MarshalBinary()
	if err != nil {
		return err
	}
	return u.Put(launchKey(s.Mint), data)
}

func loadFlagged(ctx context.Context, r reader, mint, trader solana.PublicKey) (*FlaggedTrader, error) {
	data, err := r.Get(ctx, flaggedKey(mint, trader))
	if errors.Is(err, ledger.ErrNotFound) {
		return &FlaggedTrader{Trader: trader}, nil
	}
	if err != nil {
		return nil, err
	}
	var f FlaggedTrader
	if err := f.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return &f, nil
}

func saveFlagged(u *ledger.UnitOfWork, mint solana.PublicKey, f *FlaggedTrader) error {
	data, err := f.MarshalBinary()
	if err != nil {
		return err
	}
	return u.Put(flaggedKey(mint, f.Trader), data)
}

func listFlagged(ctx context.Context, r reader, mint solana.PublicKey) ([]FlaggedTrader, error) {
	var out []FlaggedTrader
	err := r.Scan(ctx, flaggedMintPrefix(mint), func(_ string, v []byte) error {
		var f FlaggedTrader
		if err := f.UnmarshalBinary(v); err != nil {
			return err
		}
		out = append(out, f)
		return nil
	})
	return out, err
}

// listLaunches returns every stored launch.
func listLaunches(ctx context.Context, r reader) ([]LaunchState, error) {
	var out []LaunchState
	err := r.Scan(ctx, launchPrefix, func(_ string, v []byte) error {
		var s LaunchState
		if err := s.UnmarshalBinary(v); err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}
