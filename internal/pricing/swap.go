// =============================
// File: internal/pricing/swap.go
// =============================
package pricing

import (
	"errors"
	"fmt"

	"lukechampine.com/uint128"
)

var (
	// ErrMathOverflow возвращается, когда результат не помещается в 64 бита
	// или промежуточное значение выходит за допустимый диапазон.
	ErrMathOverflow = errors.New("math overflow")
	// ErrZeroReserve возвращается при делении на нулевой резерв.
	ErrZeroReserve = errors.New("zero reserve")
)

// BasisPoints is the denominator for bps values.
const BasisPoints = 10_000

// SwapOutput вычисляет выход свапа по формуле постоянного произведения:
//
//	k = reserveIn * reserveOut
//	newReserveIn = reserveIn + amountIn
//	newReserveOut = k / newReserveIn
//	out = reserveOut - newReserveOut
//
// Все промежуточные значения считаются в 128 битах. Произведение двух uint64
// и сумма двух uint64 всегда помещаются в uint128, поэтому паник внутри
// uint128 здесь не бывает.
func SwapOutput(amountIn, reserveIn, reserveOut uint64) (uint64, error) {
	k := uint128.From64(reserveIn).Mul64(reserveOut)
	newReserveIn := uint128.From64(reserveIn).Add64(amountIn)
	if newReserveIn.IsZero() {
		return 0, fmt.Errorf("swap %d against empty reserve: %w", amountIn, ErrZeroReserve)
	}

	newReserveOut := k.Div(newReserveIn)
	if newReserveOut.Cmp64(reserveOut) > 0 {
		return 0, fmt.Errorf("reserve out underflow: %w", ErrMathOverflow)
	}

	out := uint128.From64(reserveOut).Sub(newReserveOut)
	if out.Hi != 0 {
		return 0, ErrMathOverflow
	}
	return out.Lo, nil
}

// PriceImpactBps returns amountIn / (reserveIn + amountIn) in basis points.
// Это та же оценка, что и в CalculatePriceImpact рейдиума, но в целых числах.
func PriceImpactBps(amountIn, reserveIn uint64) (uint64, error) {
	denom := uint128.From64(reserveIn).Add64(amountIn)
	if denom.IsZero() {
		return 0, nil
	}
	impact := uint128.From64(amountIn).Mul64(BasisPoints).Div(denom)
	if impact.Hi != 0 {
		return 0, ErrMathOverflow
	}
	return impact.Lo, nil
}

// CheckedAdd returns a+b or ErrMathOverflow.
func CheckedAdd(a, b uint64) (uint64, error) {
	sum := uint128.From64(a).Add64(b)
	if sum.Hi != 0 {
		return 0, fmt.Errorf("%d + %d: %w", a, b, ErrMathOverflow)
	}
	return sum.Lo, nil
}

// CheckedSub returns a-b or ErrMathOverflow when b > a.
func CheckedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, fmt.Errorf("%d - %d: %w", a, b, ErrMathOverflow)
	}
	return a - b, nil
}

// NetOfFee returns amount minus feeBps of it, rounding the fee down.
// feeBps above BasisPoints is treated as a full fee.
func NetOfFee(amount, feeBps uint64) uint64 {
	if feeBps >= BasisPoints {
		return 0
	}
	fee := uint128.From64(amount).Mul64(feeBps).Div64(BasisPoints)
	return amount - fee.Lo
}
