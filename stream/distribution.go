package stream

import (
	"time"

	"cosmossdk.io/math"

	"github.com/xraph/streamswap/fixedpoint"
)

// Sync accrues the stream up to now and returns the fraction of the
// remaining window that was applied.
//
// A fraction diff of the remaining out pool is released and the same
// fraction of the unspent in supply is committed. Released out is spread
// over the current shares through DistIndex. Nothing accrues while paused
// or after a terminal transition, and nothing accrues before StartTime
// because LastUpdated never precedes it.
func (s *Stream) Sync(now time.Time) (diff math.LegacyDec, err error) {
	defer fixedpoint.Recover(&err)

	diff = math.LegacyZeroDec()
	if s.Status.IsSticky() {
		return diff, nil
	}

	clamped := now
	if clamped.After(s.EndTime) {
		clamped = s.EndTime
	}
	diff = fixedpoint.Ratio(clamped.Sub(s.LastUpdated), s.EndTime.Sub(s.LastUpdated))

	if !s.Shares.IsZero() && !diff.IsZero() {
		released := fixedpoint.MulFloor(s.OutRemaining, diff)
		committed := fixedpoint.MulFloor(s.InSupply, diff)

		spentIn, err := fixedpoint.Add(s.SpentIn, committed)
		if err != nil {
			return diff, err
		}
		inSupply, err := fixedpoint.Sub(s.InSupply, committed)
		if err != nil {
			return diff, err
		}
		s.SpentIn, s.InSupply = spentIn, inSupply

		if !released.IsZero() {
			outRemaining, err := fixedpoint.Sub(s.OutRemaining, released)
			if err != nil {
				return diff, err
			}
			perShare, err := fixedpoint.QuoDec(released, s.Shares)
			if err != nil {
				return diff, err
			}
			price, err := fixedpoint.QuoDec(committed, released)
			if err != nil {
				return diff, err
			}
			s.OutRemaining = outRemaining
			s.DistIndex = s.DistIndex.Add(perShare)
			s.CurrentStreamedPrice = price
		}
	}

	if next := clamp(now, s.StartTime, s.EndTime); next.After(s.LastUpdated) {
		s.LastUpdated = next
	}

	return diff, nil
}

func clamp(t, lo, hi time.Time) time.Time {
	if t.Before(lo) {
		return lo
	}
	if t.After(hi) {
		return hi
	}
	return t
}
