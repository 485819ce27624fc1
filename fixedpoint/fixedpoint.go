// Package fixedpoint holds the bounded integer and 18-decimal ratio helpers
// every accrual computation goes through.
//
// Amounts are cosmossdk.io/math Int values (256-bit). Ratios are LegacyDec
// values with 18 fractional digits and always truncate toward zero.
// Overflow, underflow and zero divisors surface as ErrArithmetic; nothing
// saturates.
package fixedpoint

import (
	"math/big"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
)

// Codespace is shared by every registered streamswap error.
const Codespace = "streamswap"

// ErrArithmetic reports overflow, underflow or division by zero.
var ErrArithmetic = errorsmod.Register(Codespace, 1100, "arithmetic error")

// Zero returns a zero amount.
func Zero() math.Int { return math.ZeroInt() }

// ZeroDec returns a zero ratio.
func ZeroDec() math.LegacyDec { return math.LegacyZeroDec() }

// Add returns a + b, failing past 256 bits.
func Add(a, b math.Int) (math.Int, error) {
	sum, err := a.SafeAdd(b)
	if err != nil {
		return math.Int{}, errorsmod.Wrapf(ErrArithmetic, "%s + %s: %v", a, b, err)
	}
	return sum, nil
}

// Sub returns a - b. Amounts are unsigned, so b > a is an underflow.
func Sub(a, b math.Int) (math.Int, error) {
	if b.GT(a) {
		return math.Int{}, errorsmod.Wrapf(ErrArithmetic, "%s - %s: underflow", a, b)
	}
	return a.Sub(b), nil
}

// MulDiv returns floor(a * b / c). The product is computed at full width so
// only the quotient has to fit in 256 bits.
func MulDiv(a, b, c math.Int) (math.Int, error) {
	if c.IsZero() {
		return math.Int{}, errorsmod.Wrapf(ErrArithmetic, "%s * %s / 0: division by zero", a, b)
	}
	q := new(big.Int).Mul(a.BigInt(), b.BigInt())
	q.Quo(q, c.BigInt())
	if q.BitLen() > math.MaxBitLen {
		return math.Int{}, errorsmod.Wrapf(ErrArithmetic, "%s * %s / %s: overflow", a, b, c)
	}
	return math.NewIntFromBigInt(q), nil
}

// Ratio returns num/den truncated to 18 decimals, or zero when either side
// is not positive.
func Ratio(num, den time.Duration) math.LegacyDec {
	if num <= 0 || den <= 0 {
		return math.LegacyZeroDec()
	}
	return math.LegacyNewDec(int64(num)).QuoTruncate(math.LegacyNewDec(int64(den)))
}

// MulFloor returns floor(amount * ratio).
func MulFloor(amount math.Int, ratio math.LegacyDec) math.Int {
	return math.LegacyNewDecFromInt(amount).MulTruncate(ratio).TruncateInt()
}

// QuoDec returns num/den as a truncated ratio. den must be non-zero.
func QuoDec(num, den math.Int) (math.LegacyDec, error) {
	if den.IsZero() {
		return math.LegacyDec{}, errorsmod.Wrapf(ErrArithmetic, "%s / 0: division by zero", num)
	}
	return math.LegacyNewDecFromInt(num).QuoTruncate(math.LegacyNewDecFromInt(den)), nil
}

// CeilMul returns ceil(amount * ratio).
func CeilMul(amount math.Int, ratio math.LegacyDec) math.Int {
	return math.LegacyNewDecFromInt(amount).MulTruncate(ratio).Ceil().TruncateInt()
}

// Recover turns a math panic raised during the deferred scope into
// ErrArithmetic on *err. LegacyDec panics on overflow instead of returning
// an error.
func Recover(err *error) {
	if r := recover(); r != nil {
		*err = errorsmod.Wrapf(ErrArithmetic, "%v", r)
	}
}
