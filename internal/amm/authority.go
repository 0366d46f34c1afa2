// internal/amm/authority.go
package amm

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// PDA seeds. Формат сидов: <seed> + mint.
var (
	ManagerSeed  = []byte("launch_manager")
	ReserveSeed  = []byte("reserve")
	TreasurySeed = []byte("treasury")
)

var (
	ErrNoAuthority       = errors.New("delegated authority not provided")
	ErrAuthorityMismatch = errors.New("delegated authority does not match derivation")
)

// Authority is the capability to sign on behalf of the engine's derived
// manager account for one mint. It is created once at initialization by
// DeriveAuthority and rebuilt from the stored bump by RestoreAuthority.
type Authority struct {
	ProgramID solana.PublicKey
	Mint      solana.PublicKey
	Address   solana.PublicKey
	Bump      uint8
	Reserve   solana.PublicKey
}

// DeriveAuthority ищет canonical bump и адрес резерва для mint.
func DeriveAuthority(programID, mint solana.PublicKey) (*Authority, error) {
	addr, bump, err := solana.FindProgramAddress([][]byte{ManagerSeed, mint.Bytes()}, programID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive manager address: %w", err)
	}
	reserve, _, err := solana.FindProgramAddress([][]byte{ReserveSeed, mint.Bytes()}, programID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive reserve address: %w", err)
	}
	return &Authority{
		ProgramID: programID,
		Mint:      mint,
		Address:   addr,
		Bump:      bump,
		Reserve:   reserve,
	}, nil
}

// RestoreAuthority rebuilds the capability from a persisted bump.
func RestoreAuthority(programID, mint solana.PublicKey, bump uint8) (*Authority, error) {
	addr, err := solana.CreateProgramAddress(signerSeeds(mint, bump), programID)
	if err != nil {
		return nil, fmt.Errorf("failed to restore manager address: %w", err)
	}
	reserve, _, err := solana.FindProgramAddress([][]byte{ReserveSeed, mint.Bytes()}, programID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive reserve address: %w", err)
	}
	return &Authority{
		ProgramID: programID,
		Mint:      mint,
		Address:   addr,
		Bump:      bump,
		Reserve:   reserve,
	}, nil
}

// TreasuryAddress returns the treasury account derived for mint.
func TreasuryAddress(programID, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{TreasurySeed, mint.Bytes()}, programID)
	return addr, err
}

// SignerSeeds returns the seeds that, with ProgramID, produce Address.
func (a *Authority) SignerSeeds() [][]byte {
	return signerSeeds(a.Mint, a.Bump)
}

// Verify re-derives the address from the seeds and checks it.
func (a *Authority) Verify() error {
	if a == nil {
		return ErrNoAuthority
	}
	addr, err := solana.CreateProgramAddress(a.SignerSeeds(), a.ProgramID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthorityMismatch, err)
	}
	if !addr.Equals(a.Address) {
		return ErrAuthorityMismatch
	}
	return nil
}

func signerSeeds(mint solana.PublicKey, bump uint8) [][]byte {
	return [][]byte{ManagerSeed, mint.Bytes(), {bump}}
}
