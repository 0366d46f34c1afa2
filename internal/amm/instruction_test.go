package amm

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeInitPoolLayout(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	data, err := EncodeInitPool(InitPoolParams{TokenAmount: 500_000, ValueAmount: 100_000, Mint: mint})
	require.NoError(t, err)
	require.Len(t, data, InitPoolDataSize)

	assert.Equal(t, []byte{1, 0, 0, 0, 0, 0, 0, 0}, data[:8])
	assert.Equal(t, uint64(500_000), binary.LittleEndian.Uint64(data[8:16]))
	assert.Equal(t, uint64(100_000), binary.LittleEndian.Uint64(data[16:24]))
	assert.Equal(t, mint.Bytes(), data[24:56])

	decoded, err := DecodeInitPool(data)
	require.NoError(t, err)
	assert.Equal(t, mint, decoded.Mint)
	assert.Equal(t, uint64(500_000), decoded.TokenAmount)
}

func TestEncodeSwapLayout(t *testing.T) {
	pool := solana.NewWallet().PublicKey()

	buy, err := EncodeSwap(SwapParams{Amount: 100_000_000, IsBuy: true, Pool: pool})
	require.NoError(t, err)
	require.Len(t, buy, SwapDataSize)
	assert.Equal(t, []byte{2, 0, 0, 0, 0, 0, 0, 0}, buy[:8])
	assert.Equal(t, uint64(100_000_000), binary.LittleEndian.Uint64(buy[8:16]))
	assert.Equal(t, byte(1), buy[16])
	assert.Equal(t, pool.Bytes(), buy[17:49])

	sell, err := EncodeSwap(SwapParams{Amount: 7, IsBuy: false, Pool: pool})
	require.NoError(t, err)
	assert.Equal(t, byte(0), sell[16])

	decoded, err := DecodeSwap(sell)
	require.NoError(t, err)
	assert.False(t, decoded.IsBuy)
	assert.Equal(t, uint64(7), decoded.Amount)
	assert.Equal(t, pool, decoded.Pool)
}

func TestDecodeRejectsBadPayloads(t *testing.T) {
	pool := solana.NewWallet().PublicKey()
	swap, err := EncodeSwap(SwapParams{Amount: 1, IsBuy: true, Pool: pool})
	require.NoError(t, err)

	_, err = DecodeInitPool(swap)
	assert.ErrorIs(t, err, ErrUnknownInstruction)

	_, err = DecodeSwap(swap[:20])
	assert.ErrorIs(t, err, ErrMalformedPayload)

	assert.Equal(t, KindUnknown, Kind([]byte{9, 9}))
	assert.Equal(t, "swap", Kind(swap).String())
}

func TestInstructionBuilders(t *testing.T) {
	program := solana.NewWallet().PublicKey()
	trader := solana.NewWallet().PublicKey()
	pool := solana.NewWallet().PublicKey()

	ix, err := NewSwapInstruction(program, trader, SwapParams{Amount: 10, IsBuy: true, Pool: pool})
	require.NoError(t, err)
	assert.Equal(t, program, ix.ProgramID())
	require.Len(t, ix.Accounts(), 2)
	assert.True(t, ix.Accounts()[0].IsSigner)
	assert.Equal(t, trader, ix.Accounts()[0].PublicKey)

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Contains(t, DescribeInstruction(ix), base58.Encode(data))

	auth, err := DeriveAuthority(solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	counter, err := NewCounterSwapInstruction(program, auth, pool, 99)
	require.NoError(t, err)
	require.Len(t, counter.Accounts(), 3)
	assert.Equal(t, auth.Address, counter.Accounts()[0].PublicKey)
	assert.Equal(t, auth.Reserve, counter.Accounts()[2].PublicKey)

	_, err = NewCounterSwapInstruction(program, nil, pool, 99)
	assert.ErrorIs(t, err, ErrNoAuthority)
}
