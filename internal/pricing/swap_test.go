package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwapOutput(t *testing.T) {
	tests := []struct {
		name       string
		amountIn   uint64
		reserveIn  uint64
		reserveOut uint64
		want       uint64
	}{
		{"default reserves buy", 100_000_000, 1_000_000_000, 1_000_000_000_000, 90_909_090_910},
		{"zero input", 0, 1_000, 1_000, 0},
		{"empty output side", 500, 1_000, 0, 0},
		{"small pool", 10, 100, 100, 10},
		{"max inputs", math.MaxUint64, math.MaxUint64, math.MaxUint64, 1 << 63},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SwapOutput(tt.amountIn, tt.reserveIn, tt.reserveOut)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, got, tt.reserveOut)
		})
	}
}

func TestSwapOutputZeroReserve(t *testing.T) {
	_, err := SwapOutput(0, 0, 1_000)
	assert.ErrorIs(t, err, ErrZeroReserve)
}

func TestSwapOutputNeverDrainsPool(t *testing.T) {
	reserveIn, reserveOut := uint64(1_000_000_000), uint64(1_000_000_000_000)
	for _, amount := range []uint64{1, 1_000, 1 << 40, math.MaxUint64} {
		out, err := SwapOutput(amount, reserveIn, reserveOut)
		require.NoError(t, err)
		assert.Less(t, out, reserveOut, "amount %d", amount)
	}
}

func TestReservesEstimates(t *testing.T) {
	r := DefaultReserves()
	require.NoError(t, r.Validate())

	tokens, err := r.TokensForValue(100_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(90_909_090_910), tokens)

	// Продажа тех же токенов возвращает меньше, чем было потрачено.
	value, err := r.ValueForTokens(tokens)
	require.NoError(t, err)
	assert.Less(t, value, uint64(100_000_000))
	assert.Greater(t, value, uint64(0))

	assert.Error(t, Reserves{Value: 0, Tokens: 1}.Validate())
}

func TestPriceImpactBps(t *testing.T) {
	impact, err := PriceImpactBps(100_000_000, 1_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(909), impact)

	impact, err = PriceImpactBps(0, 0)
	require.NoError(t, err)
	assert.Zero(t, impact)

	impact, err = PriceImpactBps(math.MaxUint64, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(BasisPoints), impact)
}

func TestCheckedArithmetic(t *testing.T) {
	sum, err := CheckedAdd(math.MaxUint64-1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), sum)

	_, err = CheckedAdd(math.MaxUint64-1, 2)
	assert.ErrorIs(t, err, ErrMathOverflow)

	_, err = CheckedSub(1, 2)
	assert.ErrorIs(t, err, ErrMathOverflow)
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "0.100000000", FormatLamports(100_000_000))
	assert.Equal(t, "1.500000", FormatTokens(1_500_000, TokenDecimals))
	assert.Equal(t, "0.001", SpotPrice(1_000_000_000, 1_000_000_000_000).String())
	assert.True(t, SpotPrice(1, 0).IsZero())
}

func TestNetOfFee(t *testing.T) {
	assert.Equal(t, uint64(9_975), NetOfFee(10_000, 25))
	assert.Equal(t, uint64(10_000), NetOfFee(10_000, 0))
	assert.Zero(t, NetOfFee(10_000, BasisPoints))
	assert.Equal(t, uint64(math.MaxUint64)-uint64(math.MaxUint64)/400, NetOfFee(math.MaxUint64, 25))
}
