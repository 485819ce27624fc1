package stream

import (
	"cosmossdk.io/math"

	"github.com/xraph/streamswap/fixedpoint"
)

// MintShares returns the shares issued for depositing amount. The first
// deposit into an empty pool is issued one share per unit.
func MintShares(s *Stream, amount math.Int) (math.Int, error) {
	if s.InSupply.IsZero() || s.Shares.IsZero() {
		return amount, nil
	}
	return fixedpoint.MulDiv(amount, s.Shares, s.InSupply)
}

// BurnShares returns the shares removed when a position holding balance
// and held shares withdraws amount. Withdrawing the whole balance burns every
// share the position owns so none are left stranded by rounding.
func BurnShares(s *Stream, balance, held, amount math.Int) (math.Int, error) {
	if amount.Equal(balance) {
		return held, nil
	}
	return fixedpoint.MulDiv(amount, s.Shares, s.InSupply)
}
