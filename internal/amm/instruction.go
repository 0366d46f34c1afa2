// =============================
// File: internal/amm/instruction.go
// =============================
package amm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// Дискриминаторы инструкций внешнего AMM. Формат зафиксирован и не меняется.
var (
	initPoolDiscriminator = [8]byte{1, 0, 0, 0, 0, 0, 0, 0}
	swapDiscriminator     = [8]byte{2, 0, 0, 0, 0, 0, 0, 0}
)

const (
	// InitPoolDataSize: discriminator + token amount + value amount + mint.
	InitPoolDataSize = 8 + 8 + 8 + solana.PublicKeyLength
	// SwapDataSize: discriminator + amount + direction flag + pool.
	SwapDataSize = 8 + 8 + 1 + solana.PublicKeyLength
)

var (
	ErrUnknownInstruction = errors.New("unknown amm instruction")
	ErrMalformedPayload   = errors.New("malformed amm payload")
)

// InitPoolParams is the payload of the pool-creation call.
type InitPoolParams struct {
	TokenAmount uint64
	ValueAmount uint64
	Mint        solana.PublicKey
}

// SwapParams is the payload of a swap call. IsBuy means value in, tokens out.
type SwapParams struct {
	Amount uint64
	IsBuy  bool
	Pool   solana.PublicKey
}

// EncodeInitPool сериализует параметры создания пула.
func EncodeInitPool(p InitPoolParams) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)

	if err := enc.WriteBytes(initPoolDiscriminator[:], false); err != nil {
		return nil, fmt.Errorf("failed to write discriminator: %w", err)
	}
	if err := enc.WriteUint64(p.TokenAmount, binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("failed to write token amount: %w", err)
	}
	if err := enc.WriteUint64(p.ValueAmount, binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("failed to write value amount: %w", err)
	}
	if err := enc.WriteBytes(p.Mint.Bytes(), false); err != nil {
		return nil, fmt.Errorf("failed to write mint: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeSwap сериализует параметры свапа.
func EncodeSwap(p SwapParams) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)

	if err := enc.WriteBytes(swapDiscriminator[:], false); err != nil {
		return nil, fmt.Errorf("failed to write discriminator: %w", err)
	}
	if err := enc.WriteUint64(p.Amount, binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("failed to write amount: %w", err)
	}
	if err := enc.WriteBool(p.IsBuy); err != nil {
		return nil, fmt.Errorf("failed to write direction: %w", err)
	}
	if err := enc.WriteBytes(p.Pool.Bytes(), false); err != nil {
		return nil, fmt.Errorf("failed to write pool: %w", err)
	}
	return buf.Bytes(), nil
}

// InstructionKind identifies a payload by its discriminator.
type InstructionKind uint8

const (
	KindUnknown InstructionKind = iota
	KindInitPool
	KindSwap
)

func (k InstructionKind) String() string {
	switch k {
	case KindInitPool:
		return "init_pool"
	case KindSwap:
		return "swap"
	default:
		return "unknown"
	}
}

// Kind returns the payload kind without decoding the rest.
func Kind(data []byte) InstructionKind {
	if len(data) < 8 {
		return KindUnknown
	}
	switch {
	case bytes.Equal(data[:8], initPoolDiscriminator[:]):
		return KindInitPool
	case bytes.Equal(data[:8], swapDiscriminator[:]):
		return KindSwap
	default:
		return KindUnknown
	}
}

// DecodeInitPool разбирает payload создания пула.
func DecodeInitPool(data []byte) (InitPoolParams, error) {
	var p InitPoolParams
	if Kind(data) != KindInitPool {
		return p, ErrUnknownInstruction
	}
	if len(data) != InitPoolDataSize {
		return p, fmt.Errorf("%w: init pool payload is %d bytes, want %d", ErrMalformedPayload, len(data), InitPoolDataSize)
	}

	dec := bin.NewBinDecoder(data[8:])
	var err error
	if p.TokenAmount, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return p, fmt.Errorf("failed to read token amount: %w", err)
	}
	if p.ValueAmount, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return p, fmt.Errorf("failed to read value amount: %w", err)
	}
	mint, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return p, fmt.Errorf("failed to read mint: %w", err)
	}
	p.Mint = solana.PublicKeyFromBytes(mint)
	return p, nil
}

// DecodeSwap разбирает payload свапа.
func DecodeSwap(data []byte) (SwapParams, error) {
	var p SwapParams
	if Kind(data) != KindSwap {
		return p, ErrUnknownInstruction
	}
	if len(data) != SwapDataSize {
		return p, fmt.Errorf("%w: swap payload is %d bytes, want %d", ErrMalformedPayload, len(data), SwapDataSize)
	}

	dec := bin.NewBinDecoder(data[8:])
	var err error
	if p.Amount, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return p, fmt.Errorf("failed to read amount: %w", err)
	}
	if p.IsBuy, err = dec.ReadBool(); err != nil {
		return p, fmt.Errorf("failed to read direction: %w", err)
	}
	pool, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return p, fmt.Errorf("failed to read pool: %w", err)
	}
	p.Pool = solana.PublicKeyFromBytes(pool)
	return p, nil
}

// NewInitPoolInstruction builds the pool-creation call signed by creator.
func NewInitPoolInstruction(programID, creator, pool solana.PublicKey, p InitPoolParams) (solana.Instruction, error) {
	data, err := EncodeInitPool(p)
	if err != nil {
		return nil, err
	}
	accounts := []*solana.AccountMeta{
		solana.NewAccountMeta(creator, true, true),
		solana.NewAccountMeta(pool, true, false),
		solana.NewAccountMeta(p.Mint, false, false),
	}
	return solana.NewInstruction(programID, accounts, data), nil
}

// NewSwapInstruction builds a swap authorized by the trader's own signature.
func NewSwapInstruction(programID, trader solana.PublicKey, p SwapParams) (solana.Instruction, error) {
	data, err := EncodeSwap(p)
	if err != nil {
		return nil, err
	}
	accounts := []*solana.AccountMeta{
		solana.NewAccountMeta(trader, true, true),
		solana.NewAccountMeta(p.Pool, true, false),
	}
	return solana.NewInstruction(programID, accounts, data), nil
}

// NewCounterSwapInstruction builds a sell of reserve tokens signed by the
// delegated authority. Only the counter-trade path uses it.
func NewCounterSwapInstruction(programID solana.PublicKey, auth *Authority, pool solana.PublicKey, amount uint64) (solana.Instruction, error) {
	if auth == nil {
		return nil, ErrNoAuthority
	}
	data, err := EncodeSwap(SwapParams{Amount: amount, IsBuy: false, Pool: pool})
	if err != nil {
		return nil, err
	}
	accounts := []*solana.AccountMeta{
		solana.NewAccountMeta(auth.Address, true, true),
		solana.NewAccountMeta(pool, true, false),
		solana.NewAccountMeta(auth.Reserve, true, false),
	}
	return solana.NewInstruction(programID, accounts, data), nil
}

// DescribeInstruction возвращает короткое описание для логов: тип, программа
// и данные в base58, как их показывают эксплореры.
func DescribeInstruction(ix solana.Instruction) string {
	data, err := ix.Data()
	if err != nil {
		return fmt.Sprintf("program=%s data=<%v>", ix.ProgramID(), err)
	}
	return fmt.Sprintf("%s program=%s accounts=%d data=%s",
		Kind(data), ix.ProgramID(), len(ix.Accounts()), base58.Encode(data))
}
