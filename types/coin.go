// Package types provides common value types used across streamswap.
package types

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"cosmossdk.io/math"
)

// Coin is an amount of a single denomination. Amounts are 256-bit
// unsigned integers in the smallest unit of the denom.
//
// Examples:
//   - NewCoin("uosmo", math.NewInt(1_000_000))
//   - ParseCoin("1500ustake")
type Coin struct {
	Denom  string   `json:"denom"`
	Amount math.Int `json:"amount"`
}

var (
	denomRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9/:._-]{2,127}$`)
	coinRegex  = regexp.MustCompile(`^([0-9]+)\s*([a-zA-Z][a-zA-Z0-9/:._-]{2,127})$`)

	errInvalidDenom  = errors.New("types: invalid denom")
	errInvalidAmount = errors.New("types: invalid amount")
)

// NewCoin creates a Coin. A nil amount is treated as zero.
func NewCoin(denom string, amount math.Int) Coin {
	if amount.IsNil() {
		amount = math.ZeroInt()
	}
	return Coin{Denom: denom, Amount: amount}
}

// NewInt64Coin is a shorthand for NewCoin(denom, math.NewInt(amount)).
func NewInt64Coin(denom string, amount int64) Coin {
	return NewCoin(denom, math.NewInt(amount))
}

// ZeroCoin returns a zero amount of denom.
func ZeroCoin(denom string) Coin { return NewCoin(denom, math.ZeroInt()) }

// ValidateDenom reports whether denom is a well-formed denomination.
func ValidateDenom(denom string) error {
	if !denomRegex.MatchString(denom) {
		return fmt.Errorf("%w: %q", errInvalidDenom, denom)
	}
	return nil
}

// Validate checks the denom and that the amount is non-negative.
func (c Coin) Validate() error {
	if err := ValidateDenom(c.Denom); err != nil {
		return err
	}
	if c.Amount.IsNil() || c.Amount.IsNegative() {
		return fmt.Errorf("%w: %s", errInvalidAmount, c.Amount)
	}
	return nil
}

// IsZero returns true if the amount is zero or unset.
func (c Coin) IsZero() bool { return c.Amount.IsNil() || c.Amount.IsZero() }

// IsPositive returns true if the amount is greater than zero.
func (c Coin) IsPositive() bool { return !c.Amount.IsNil() && c.Amount.IsPositive() }

// Equal returns true if both coins carry the same denom and amount.
func (c Coin) Equal(other Coin) bool {
	if c.Denom != other.Denom {
		return false
	}
	if c.Amount.IsNil() || other.Amount.IsNil() {
		return c.IsZero() && other.IsZero()
	}
	return c.Amount.Equal(other.Amount)
}

// String renders the coin as "<amount><denom>", e.g. "1500ustake".
func (c Coin) String() string {
	amount := "0"
	if !c.Amount.IsNil() {
		amount = c.Amount.String()
	}
	return amount + c.Denom
}

// ParseCoin parses the "<amount><denom>" form produced by String.
func ParseCoin(s string) (Coin, error) {
	m := coinRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Coin{}, fmt.Errorf("types: invalid coin expression %q", s)
	}
	amount, ok := math.NewIntFromString(m[1])
	if !ok {
		return Coin{}, fmt.Errorf("%w: %q", errInvalidAmount, m[1])
	}
	return NewCoin(m[2], amount), nil
}
