package position

import (
	"time"

	"cosmossdk.io/math"

	"github.com/xraph/streamswap/fixedpoint"
)

// Settle brings p up to date with its stream's accumulators and returns the
// out amount purchased and the in amount spent since the last settlement.
//
// The sub-unit remainder of each purchase is carried in PendingPurchase so
// that many small settlements credit the same total as one large one.
func (p *Position) Settle(distIndex math.LegacyDec, shares math.Int, lastUpdated time.Time, inSupply math.Int) (purchased, spent math.Int, err error) {
	defer fixedpoint.Recover(&err)

	purchased, spent = math.ZeroInt(), math.ZeroInt()

	if !shares.IsZero() {
		indexDiff := distIndex.Sub(p.Index)
		raw := math.LegacyNewDecFromInt(p.Shares).MulTruncate(indexDiff).Add(p.PendingPurchase)
		purchased = raw.TruncateInt()
		pending := raw.Sub(raw.TruncateDec())

		inRemaining, err := fixedpoint.MulDiv(inSupply, p.Shares, shares)
		if err != nil {
			return math.ZeroInt(), math.ZeroInt(), err
		}
		// Rounding can leave the pro-rata remainder a unit above the
		// recorded balance; the balance never grows through settlement.
		if inRemaining.GT(p.InBalance) {
			inRemaining = p.InBalance
		}
		spent = p.InBalance.Sub(inRemaining)

		totalPurchased, err := fixedpoint.Add(p.Purchased, purchased)
		if err != nil {
			return math.ZeroInt(), math.ZeroInt(), err
		}
		totalSpent, err := fixedpoint.Add(p.Spent, spent)
		if err != nil {
			return math.ZeroInt(), math.ZeroInt(), err
		}

		p.PendingPurchase = pending
		p.Purchased = totalPurchased
		p.Spent = totalSpent
		p.InBalance = inRemaining
	}

	p.Index = distIndex
	p.LastUpdated = lastUpdated

	return purchased, spent, nil
}
