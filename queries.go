package streamswap

import (
	"context"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"

	"github.com/xraph/streamswap/fixedpoint"
	"github.com/xraph/streamswap/id"
	"github.com/xraph/streamswap/position"
	"github.com/xraph/streamswap/stream"
)

// Queries never persist. The plain variants return state as of the
// stream's LastUpdated; the ...At variants sync a private copy to now.

// GetStream returns the persisted stream as of its LastUpdated.
func (e *Engine) GetStream(ctx context.Context, streamID id.StreamID) (*stream.Stream, error) {
	return e.store.GetStream(ctx, streamID)
}

// GetStreamAt returns the stream as it would be after a sync at now.
func (e *Engine) GetStreamAt(ctx context.Context, streamID id.StreamID, now time.Time) (*stream.Stream, error) {
	s, err := e.store.GetStream(ctx, streamID)
	if err != nil {
		return nil, err
	}
	if err := syncView(s, now); err != nil {
		return nil, err
	}
	return s, nil
}

// GetPosition returns owner's persisted position.
func (e *Engine) GetPosition(ctx context.Context, streamID id.StreamID, owner string) (*position.Position, error) {
	return e.store.GetPosition(ctx, streamID, owner)
}

// GetPositionAt returns owner's position settled against the stream as it
// would be at now.
func (e *Engine) GetPositionAt(ctx context.Context, streamID id.StreamID, owner string, now time.Time) (*position.Position, error) {
	s, err := e.GetStreamAt(ctx, streamID, now)
	if err != nil {
		return nil, err
	}
	p, err := e.store.GetPosition(ctx, streamID, owner)
	if err != nil {
		return nil, err
	}
	if p.IsExited() {
		return p, nil
	}
	if _, _, err := p.Settle(s.DistIndex, s.Shares, s.LastUpdated, s.InSupply); err != nil {
		return nil, err
	}
	return p, nil
}

// CurrentPrice returns the price of the most recent distribution step, in
// in denom per unit of out denom, as of now.
func (e *Engine) CurrentPrice(ctx context.Context, streamID id.StreamID, now time.Time) (math.LegacyDec, error) {
	s, err := e.GetStreamAt(ctx, streamID, now)
	if err != nil {
		return math.LegacyDec{}, err
	}
	return s.CurrentStreamedPrice, nil
}

// AveragePrice returns SpentIn divided by the out amount released so far,
// as of now. It is zero before anything has been released.
func (e *Engine) AveragePrice(ctx context.Context, streamID id.StreamID, now time.Time) (math.LegacyDec, error) {
	s, err := e.GetStreamAt(ctx, streamID, now)
	if err != nil {
		return math.LegacyDec{}, err
	}
	released := s.Released()
	if released.IsZero() {
		return math.LegacyZeroDec(), nil
	}
	return fixedpoint.QuoDec(s.SpentIn, released)
}

// Threshold returns the threshold state as of now.
func (e *Engine) Threshold(ctx context.Context, streamID id.StreamID, now time.Time) (stream.ThresholdState, error) {
	s, err := e.GetStreamAt(ctx, streamID, now)
	if err != nil {
		return stream.ThresholdState{}, err
	}
	return s.ThresholdState(), nil
}

// ListStreams lists streams synced to now. A status filter matches the
// status derived at now, so a stream whose window closed without a write is
// listed as ended.
func (e *Engine) ListStreams(ctx context.Context, now time.Time, opts stream.ListOpts) ([]*stream.Stream, error) {
	if opts.Status != "" && !opts.Status.Valid() {
		return nil, errorsmod.Wrapf(ErrInvalidInput, "unknown status %q", opts.Status)
	}

	// Sticky statuses never change with time, so storage can filter and page.
	if opts.Status == "" || opts.Status.IsSticky() {
		streams, err := e.store.ListStreams(ctx, opts)
		if err != nil {
			return nil, err
		}
		for _, s := range streams {
			if err := syncView(s, now); err != nil {
				return nil, err
			}
		}
		return streams, nil
	}

	all, err := e.store.ListStreams(ctx, stream.ListOpts{Creator: opts.Creator})
	if err != nil {
		return nil, err
	}
	matched := make([]*stream.Stream, 0, len(all))
	for _, s := range all {
		if err := syncView(s, now); err != nil {
			return nil, err
		}
		if s.Status == opts.Status {
			matched = append(matched, s)
		}
	}

	start := min(opts.Offset, len(matched))
	end := len(matched)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return matched[start:end], nil
}

// ListPositions lists a stream's persisted positions.
func (e *Engine) ListPositions(ctx context.Context, streamID id.StreamID, opts position.ListOpts) ([]*position.Position, error) {
	return e.store.ListPositions(ctx, streamID, opts)
}

// syncView refreshes the status of a private copy and syncs it.
func syncView(s *stream.Stream, now time.Time) (err error) {
	defer fixedpoint.Recover(&err)

	s.Status = stream.DeriveStatus(s, now)
	_, err = s.Sync(now)
	return err
}

// ──────────────────────────────────────────────────
// Invariant audit
// ──────────────────────────────────────────────────

// InvariantReport is the result of CheckInvariants.
type InvariantReport struct {
	StreamID        id.StreamID `json:"stream_id"`
	Positions       int         `json:"positions"`
	StreamShares    math.Int    `json:"stream_shares"`
	PositionShares  math.Int    `json:"position_shares"`
	StreamInSupply  math.Int    `json:"stream_in_supply"`
	PositionBalance math.Int    `json:"position_balance"`
	Released        math.Int    `json:"released"`
	Purchased       math.Int    `json:"purchased"`
	Drift           math.Int    `json:"drift"`
	Violations      []string    `json:"violations,omitempty"`
}

// OK reports whether no invariant was violated.
func (r *InvariantReport) OK() bool { return len(r.Violations) == 0 }

// CheckInvariants audits a persisted stream against all of its positions.
// Open positions must hold exactly the stream's shares and no more than its
// in supply. Settled purchases, including those of exited positions, may
// trail the released out amount only by floor rounding, at most one unit
// per position plus one for index truncation.
func (e *Engine) CheckInvariants(ctx context.Context, streamID id.StreamID) (*InvariantReport, error) {
	s, err := e.store.GetStream(ctx, streamID)
	if err != nil {
		return nil, err
	}
	positions, err := e.store.ListPositions(ctx, streamID, position.ListOpts{IncludeExited: true})
	if err != nil {
		return nil, err
	}

	r := &InvariantReport{
		StreamID:        s.ID,
		Positions:       len(positions),
		StreamShares:    s.Shares,
		PositionShares:  math.ZeroInt(),
		StreamInSupply:  s.InSupply,
		PositionBalance: math.ZeroInt(),
		Released:        s.Released(),
		Purchased:       math.ZeroInt(),
	}

	for _, p := range positions {
		if !p.IsExited() {
			if _, _, err := p.Settle(s.DistIndex, s.Shares, s.LastUpdated, s.InSupply); err != nil {
				return nil, err
			}
			r.PositionShares = r.PositionShares.Add(p.Shares)
			r.PositionBalance = r.PositionBalance.Add(p.InBalance)
		}
		r.Purchased = r.Purchased.Add(p.Purchased)
	}

	if !r.PositionShares.Equal(r.StreamShares) {
		r.Violations = append(r.Violations, "share conservation: positions hold "+r.PositionShares.String()+", stream "+r.StreamShares.String())
	}
	if r.PositionBalance.GT(r.StreamInSupply) {
		r.Violations = append(r.Violations, "in supply: positions hold "+r.PositionBalance.String()+", stream "+r.StreamInSupply.String())
	}

	r.Drift = r.Released.Sub(r.Purchased)
	tolerance := math.NewInt(int64(len(positions)) + 1)
	switch {
	case r.Drift.IsNegative():
		r.Violations = append(r.Violations, "out conservation: purchased "+r.Purchased.String()+" exceeds released "+r.Released.String())
	case r.Drift.GT(tolerance):
		r.Violations = append(r.Violations, "out conservation: drift "+r.Drift.String()+" exceeds tolerance "+tolerance.String())
	}

	return r, nil
}
