package stream_test

import (
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/streamswap/stream"
	"github.com/xraph/streamswap/types"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newStream(t *testing.T, mutate ...func(*stream.Params)) *stream.Stream {
	t.Helper()
	p := stream.Params{
		Name:      "test stream",
		Creator:   "creator",
		OutAsset:  types.NewInt64Coin("uout", 1_000_000),
		InDenom:   "uin",
		StartTime: t0,
		EndTime:   t0.Add(100 * time.Second),
	}
	for _, m := range mutate {
		m(&p)
	}
	s, err := stream.New(t0, p)
	require.NoError(t, err)
	return s
}

// deposit mimics a subscription without a position record.
func deposit(t *testing.T, s *stream.Stream, amount int64) math.Int {
	t.Helper()
	in := math.NewInt(amount)
	minted, err := stream.MintShares(s, in)
	require.NoError(t, err)
	s.InSupply = s.InSupply.Add(in)
	s.Shares = s.Shares.Add(minted)
	return minted
}

func TestNewValidation(t *testing.T) {
	boot := t0.Add(-time.Second)
	zero := math.ZeroInt()

	tests := []struct {
		name   string
		mutate func(*stream.Params)
		err    error
	}{
		{"missing creator", func(p *stream.Params) { p.Creator = "" }, stream.ErrInvalidInput},
		{"zero out asset", func(p *stream.Params) { p.OutAsset = types.ZeroCoin("uout") }, stream.ErrInvalidInput},
		{"bad in denom", func(p *stream.Params) { p.InDenom = "x" }, stream.ErrInvalidInput},
		{"same denoms", func(p *stream.Params) { p.InDenom = "uout" }, stream.ErrInvalidInput},
		{"start in past", func(p *stream.Params) { p.StartTime = t0.Add(-time.Second) }, stream.ErrInvalidInput},
		{"end before start", func(p *stream.Params) { p.EndTime = t0 }, stream.ErrInvalidInput},
		{"bootstrapping in past", func(p *stream.Params) { p.BootstrappingStartTime = &boot }, stream.ErrInvalidInput},
		{"zero threshold", func(p *stream.Params) { p.Threshold = &zero }, stream.ErrZeroThreshold},
		{"fee too high", func(p *stream.Params) { p.ExitFeePercent = math.LegacyOneDec() }, stream.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := stream.Params{
				Name:      "test stream",
				Creator:   "creator",
				OutAsset:  types.NewInt64Coin("uout", 1_000_000),
				InDenom:   "uin",
				StartTime: t0,
				EndTime:   t0.Add(100 * time.Second),
			}
			tt.mutate(&p)
			_, err := stream.New(t0, p)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestNewInitialState(t *testing.T) {
	s := newStream(t)
	assert.False(t, s.ID.IsNil())
	assert.Equal(t, s.OutAsset.Amount.String(), s.OutRemaining.String())
	assert.True(t, s.DistIndex.IsZero())
	assert.Equal(t, t0, s.LastUpdated)
	assert.Equal(t, stream.StatusActive, s.Status)
	assert.True(t, s.ExitFeePercent.IsZero())
}

func TestDeriveStatus(t *testing.T) {
	start := t0.Add(time.Hour)
	boot := t0.Add(30 * time.Minute)
	s := newStream(t, func(p *stream.Params) {
		p.StartTime = start
		p.EndTime = start.Add(time.Hour)
		p.BootstrappingStartTime = &boot
	})

	assert.Equal(t, stream.StatusWaiting, stream.DeriveStatus(s, t0))
	assert.Equal(t, stream.StatusBootstrapping, stream.DeriveStatus(s, boot))
	assert.Equal(t, stream.StatusActive, stream.DeriveStatus(s, start))
	assert.Equal(t, stream.StatusEnded, stream.DeriveStatus(s, start.Add(time.Hour)))

	s.Status = stream.StatusPaused
	assert.Equal(t, stream.StatusPaused, stream.DeriveStatus(s, start.Add(2*time.Hour)))
	s.Status = stream.StatusCancelled
	assert.Equal(t, stream.StatusCancelled, stream.DeriveStatus(s, t0))
}

func TestDeriveStatusWithoutBootstrapping(t *testing.T) {
	s := newStream(t, func(p *stream.Params) {
		p.StartTime = t0.Add(time.Hour)
		p.EndTime = t0.Add(2 * time.Hour)
	})
	assert.Equal(t, stream.StatusWaiting, stream.DeriveStatus(s, t0.Add(59*time.Minute)))
}

func TestSyncScenario(t *testing.T) {
	s := newStream(t)
	deposit(t, s, 150)

	diff, err := s.Sync(t0.Add(20 * time.Second))
	require.NoError(t, err)

	assert.Equal(t, "0.200000000000000000", diff.String())
	assert.Equal(t, "1333.333333333333333333", s.DistIndex.String())
	assert.Equal(t, "120", s.InSupply.String())
	assert.Equal(t, "30", s.SpentIn.String())
	assert.Equal(t, "800000", s.OutRemaining.String())
	assert.Equal(t, "0.000150000000000000", s.CurrentStreamedPrice.String())
	assert.Equal(t, t0.Add(20*time.Second), s.LastUpdated)
}

func TestSyncIdempotent(t *testing.T) {
	s := newStream(t)
	deposit(t, s, 1_000)
	now := t0.Add(37 * time.Second)

	_, err := s.Sync(now)
	require.NoError(t, err)
	before := s.Clone()

	diff, err := s.Sync(now)
	require.NoError(t, err)
	assert.True(t, diff.IsZero())
	assert.Equal(t, before.DistIndex.String(), s.DistIndex.String())
	assert.Equal(t, before.InSupply.String(), s.InSupply.String())
	assert.Equal(t, before.OutRemaining.String(), s.OutRemaining.String())
	assert.Equal(t, before.SpentIn.String(), s.SpentIn.String())
}

func TestSyncMonotonic(t *testing.T) {
	s := newStream(t)
	deposit(t, s, 7_777)

	prev := s.DistIndex
	for _, sec := range []int{1, 1, 3, 10, 10, 55, 99, 100, 140} {
		_, err := s.Sync(t0.Add(time.Duration(sec) * time.Second))
		require.NoError(t, err)
		assert.True(t, s.DistIndex.GTE(prev), "dist index decreased at %ds", sec)
		prev = s.DistIndex
	}
	assert.True(t, s.OutRemaining.IsZero())
	assert.True(t, s.InSupply.IsZero())
	assert.Equal(t, t0.Add(100*time.Second), s.LastUpdated)
}

func TestSyncNoSharesNoLoss(t *testing.T) {
	s := newStream(t)

	_, err := s.Sync(t0.Add(40 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, "1000000", s.OutRemaining.String())
	assert.True(t, s.DistIndex.IsZero())
	assert.Equal(t, t0.Add(40*time.Second), s.LastUpdated)

	// a late subscriber receives the whole pool over the remaining window
	deposit(t, s, 60)
	_, err = s.Sync(t0.Add(100 * time.Second))
	require.NoError(t, err)
	assert.True(t, s.OutRemaining.IsZero())
	assert.Equal(t, "60", s.SpentIn.String())
}

func TestSyncBeforeStartIsNoop(t *testing.T) {
	boot := t0
	s := newStream(t, func(p *stream.Params) {
		p.StartTime = t0.Add(time.Hour)
		p.EndTime = t0.Add(2 * time.Hour)
		p.BootstrappingStartTime = &boot
	})
	deposit(t, s, 500)

	diff, err := s.Sync(t0.Add(30 * time.Minute))
	require.NoError(t, err)
	assert.True(t, diff.IsZero())
	assert.True(t, s.DistIndex.IsZero())
	assert.Equal(t, "500", s.InSupply.String())
	assert.Equal(t, t0.Add(time.Hour), s.LastUpdated)
}

func TestSyncPathIndependentTotals(t *testing.T) {
	one := newStream(t)
	many := newStream(t)
	deposit(t, one, 999)
	deposit(t, many, 999)

	_, err := one.Sync(t0.Add(100 * time.Second))
	require.NoError(t, err)
	for sec := 1; sec <= 100; sec++ {
		_, err := many.Sync(t0.Add(time.Duration(sec) * time.Second))
		require.NoError(t, err)
	}

	assert.Equal(t, one.OutRemaining.String(), many.OutRemaining.String())
	assert.Equal(t, one.SpentIn.String(), many.SpentIn.String())
}

func TestMintShares(t *testing.T) {
	s := newStream(t)
	first, err := stream.MintShares(s, math.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, "100", first.String())

	s.InSupply = math.NewInt(300)
	s.Shares = math.NewInt(100)
	got, err := stream.MintShares(s, math.NewInt(10))
	require.NoError(t, err)
	assert.Equal(t, "3", got.String())
}

func TestBurnShares(t *testing.T) {
	s := newStream(t)
	s.InSupply = math.NewInt(300)
	s.Shares = math.NewInt(100)

	all, err := stream.BurnShares(s, math.NewInt(30), math.NewInt(11), math.NewInt(30))
	require.NoError(t, err)
	assert.Equal(t, "11", all.String())

	part, err := stream.BurnShares(s, math.NewInt(30), math.NewInt(11), math.NewInt(10))
	require.NoError(t, err)
	assert.Equal(t, "3", part.String())

	s.InSupply = math.ZeroInt()
	_, err = stream.BurnShares(s, math.NewInt(30), math.NewInt(11), math.NewInt(10))
	assert.ErrorIs(t, err, stream.ErrArithmetic)
}

func TestThresholdGate(t *testing.T) {
	s := newStream(t)
	assert.NoError(t, stream.ErrorIfNotReached(s))
	assert.NoError(t, stream.ErrorIfReached(s))
	assert.False(t, s.ThresholdState().Set)

	assert.ErrorIs(t, s.SetThreshold(math.ZeroInt()), stream.ErrZeroThreshold)
	require.NoError(t, s.SetThreshold(math.NewInt(500)))

	s.SpentIn = math.NewInt(499)
	assert.ErrorIs(t, stream.ErrorIfNotReached(s), stream.ErrThresholdNotReached)
	assert.NoError(t, stream.ErrorIfReached(s))
	assert.False(t, s.ThresholdState().Reached)

	s.SpentIn = math.NewInt(500)
	assert.NoError(t, stream.ErrorIfNotReached(s))
	assert.ErrorIs(t, stream.ErrorIfReached(s), stream.ErrThresholdReached)
	assert.True(t, s.ThresholdState().Reached)
}

func TestPauseResume(t *testing.T) {
	s := newStream(t)
	deposit(t, s, 1_000)

	pauseAt := t0.Add(30 * time.Second)
	require.NoError(t, s.Pause(pauseAt))
	assert.Equal(t, stream.StatusPaused, s.Status)
	frozen := s.Clone()

	// no accrual while paused
	_, err := s.Sync(t0.Add(60 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, frozen.DistIndex.String(), s.DistIndex.String())

	resumeAt := t0.Add(80 * time.Second)
	require.NoError(t, s.Resume(resumeAt))
	assert.Equal(t, stream.StatusActive, s.Status)
	assert.Nil(t, s.PauseDate)
	assert.Equal(t, frozen.EndTime.Add(50*time.Second), s.EndTime)
	assert.Equal(t, frozen.DistIndex.String(), s.DistIndex.String())
	assert.Equal(t, frozen.OutRemaining.String(), s.OutRemaining.String())
	assert.Equal(t, frozen.InSupply.String(), s.InSupply.String())
	assert.Equal(t, resumeAt, s.LastUpdated)
}

func TestPauseRequiresActive(t *testing.T) {
	s := newStream(t)
	err := s.Pause(t0.Add(200 * time.Second))
	require.ErrorIs(t, err, stream.ErrOperationNotAllowed)
	assert.Contains(t, err.Error(), "ended")

	assert.ErrorIs(t, s.Resume(t0), stream.ErrOperationNotAllowed)
	assert.ErrorIs(t, s.Cancel(), stream.ErrOperationNotAllowed)
}

func TestCancelFromPaused(t *testing.T) {
	s := newStream(t)
	require.NoError(t, s.Pause(t0.Add(time.Second)))
	require.NoError(t, s.Cancel())
	assert.Equal(t, stream.StatusCancelled, s.Status)
	assert.ErrorIs(t, s.Cancel(), stream.ErrOperationNotAllowed)
}

func TestFinalizeThreshold(t *testing.T) {
	tests := []struct {
		name    string
		deposit int64
		want    stream.Status
	}{
		{"499 misses", 499, stream.StatusFinalizedThresholdNotReached},
		{"500 reaches", 500, stream.StatusFinalizedThresholdReached},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			threshold := math.NewInt(500)
			s := newStream(t, func(p *stream.Params) { p.Threshold = &threshold })
			deposit(t, s, tt.deposit)

			assert.ErrorIs(t, s.Finalize(t0.Add(50*time.Second)), stream.ErrOperationNotAllowed)
			require.NoError(t, s.Finalize(t0.Add(100*time.Second)))
			assert.Equal(t, tt.want, s.Status)
			assert.Equal(t, tt.deposit, s.SpentIn.Int64())

			err := s.Finalize(t0.Add(101 * time.Second))
			require.ErrorIs(t, err, stream.ErrOperationNotAllowed)
			assert.Contains(t, err.Error(), string(tt.want))
		})
	}
}

func TestCancelWithThreshold(t *testing.T) {
	end := t0.Add(100 * time.Second)

	noThreshold := newStream(t)
	assert.ErrorIs(t, noThreshold.CancelWithThreshold(end), stream.ErrThresholdNotSet)

	threshold := math.NewInt(500)
	reached := newStream(t, func(p *stream.Params) { p.Threshold = &threshold })
	deposit(t, reached, 500)
	assert.ErrorIs(t, reached.CancelWithThreshold(end), stream.ErrThresholdReached)

	missed := newStream(t, func(p *stream.Params) { p.Threshold = &threshold })
	deposit(t, missed, 10)
	assert.ErrorIs(t, missed.CancelWithThreshold(t0.Add(time.Second)), stream.ErrOperationNotAllowed)
	require.NoError(t, missed.CancelWithThreshold(end))
	assert.Equal(t, stream.StatusCancelled, missed.Status)
}

func TestCloneIsDeep(t *testing.T) {
	threshold := math.NewInt(5)
	s := newStream(t, func(p *stream.Params) { p.Threshold = &threshold })
	c := s.Clone()
	*c.Threshold = math.NewInt(9)
	assert.Equal(t, "5", s.Threshold.String())
}
