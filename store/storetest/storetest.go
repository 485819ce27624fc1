// Package storetest is a behavioural suite every store backend must pass.
package storetest

import (
	"context"
	"math/big"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/streamswap"
	"github.com/xraph/streamswap/position"
	"github.com/xraph/streamswap/store"
	"github.com/xraph/streamswap/stream"
	"github.com/xraph/streamswap/types"
)

// Factory opens a fresh, migrated store for one subtest.
type Factory func(t *testing.T) store.Store

var base = time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)

// NewStream builds a valid stream for creator starting at base.
func NewStream(t *testing.T, creator string) *stream.Stream {
	t.Helper()
	s, err := stream.New(base, stream.Params{
		Name:      "fixture",
		Creator:   creator,
		OutAsset:  types.NewInt64Coin("uout", 1_000_000),
		InDenom:   "uin",
		StartTime: base,
		EndTime:   base.Add(time.Hour),
	})
	require.NoError(t, err)
	return s
}

// Run executes the suite against stores produced by open.
func Run(t *testing.T, open Factory) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, open(t)) })
	t.Run("CreateDuplicate", func(t *testing.T) { testCreateDuplicate(t, open(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, open(t)) })
	t.Run("UpdateStream", func(t *testing.T) { testUpdateStream(t, open(t)) })
	t.Run("ListStreams", func(t *testing.T) { testListStreams(t, open(t)) })
	t.Run("SaveState", func(t *testing.T) { testSaveState(t, open(t)) })
	t.Run("SaveStateMissingStream", func(t *testing.T) { testSaveStateMissingStream(t, open(t)) })
	t.Run("SaveStateDuplicateOwner", func(t *testing.T) { testSaveStateDuplicateOwner(t, open(t)) })
	t.Run("ListPositions", func(t *testing.T) { testListPositions(t, open(t)) })
	t.Run("WideValues", func(t *testing.T) { testWideValues(t, open(t)) })
	t.Run("Close", func(t *testing.T) { testClose(t, open(t)) })
}

func testCreateAndGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	want := NewStream(t, "creator")
	require.NoError(t, s.CreateStream(ctx, want))

	got, err := s.GetStream(ctx, want.ID)
	require.NoError(t, err)
	AssertStreamEqual(t, want, got)
	assert.Nil(t, got.Threshold)
	assert.Nil(t, got.PauseDate)
	assert.Nil(t, got.BootstrappingStartTime)
}

func testCreateDuplicate(t *testing.T, s store.Store) {
	ctx := context.Background()
	st := NewStream(t, "creator")
	require.NoError(t, s.CreateStream(ctx, st))
	err := s.CreateStream(ctx, st)
	assert.ErrorIs(t, err, streamswap.ErrAlreadyExists)
}

func testGetMissing(t *testing.T, s store.Store) {
	ctx := context.Background()
	st := NewStream(t, "creator")

	_, err := s.GetStream(ctx, st.ID)
	assert.True(t, streamswap.IsNotFound(err), "got %v", err)

	_, err = s.GetPosition(ctx, st.ID, "alice")
	assert.True(t, streamswap.IsNotFound(err), "got %v", err)

	assert.Error(t, s.UpdateStream(ctx, st))
}

func testUpdateStream(t *testing.T, s store.Store) {
	ctx := context.Background()
	st := NewStream(t, "creator")
	require.NoError(t, s.CreateStream(ctx, st))

	pause := base.Add(10 * time.Minute)
	threshold := math.NewInt(5_000)
	st.Status = stream.StatusPaused
	st.PauseDate = &pause
	st.Threshold = &threshold
	st.DistIndex = math.LegacyMustNewDecFromStr("1333.333333333333333333")
	st.InSupply = math.NewInt(120)
	st.SpentIn = math.NewInt(30)
	st.OutRemaining = math.NewInt(800_000)
	st.LastUpdated = pause
	require.NoError(t, s.UpdateStream(ctx, st))

	got, err := s.GetStream(ctx, st.ID)
	require.NoError(t, err)
	AssertStreamEqual(t, st, got)
}

func testListStreams(t *testing.T, s store.Store) {
	ctx := context.Background()
	var ids []string
	for _, creator := range []string{"alice", "alice", "bob"} {
		st := NewStream(t, creator)
		require.NoError(t, s.CreateStream(ctx, st))
		ids = append(ids, st.ID.String())
	}
	paused := NewStream(t, "bob")
	paused.Status = stream.StatusPaused
	require.NoError(t, s.CreateStream(ctx, paused))

	all, err := s.ListStreams(ctx, stream.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	byCreator, err := s.ListStreams(ctx, stream.ListOpts{Creator: "alice"})
	require.NoError(t, err)
	assert.Len(t, byCreator, 2)

	byStatus, err := s.ListStreams(ctx, stream.ListOpts{Status: stream.StatusPaused})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, paused.ID.String(), byStatus[0].ID.String())

	// time-derived statuses cannot be answered from stored rows
	for _, status := range []stream.Status{stream.StatusWaiting, stream.StatusActive, stream.StatusEnded, "bogus"} {
		_, err := s.ListStreams(ctx, stream.ListOpts{Status: status})
		assert.ErrorIs(t, err, streamswap.ErrInvalidInput, "status %s", status)
	}

	first, err := s.ListStreams(ctx, stream.ListOpts{Limit: 2})
	require.NoError(t, err)
	rest, err := s.ListStreams(ctx, stream.ListOpts{Limit: 10, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, first, 2)
	assert.Len(t, rest, 2)

	seen := map[string]bool{}
	for _, st := range append(first, rest...) {
		seen[st.ID.String()] = true
	}
	for _, id := range ids {
		assert.True(t, seen[id], "stream %s missing from pages", id)
	}
}

func testSaveState(t *testing.T, s store.Store) {
	ctx := context.Background()
	st := NewStream(t, "creator")
	require.NoError(t, s.CreateStream(ctx, st))

	p := position.New(st.ID, "alice", "bot", st.DistIndex, base)
	p.InBalance = math.NewInt(150)
	p.Shares = math.NewInt(150)
	st.InSupply = math.NewInt(150)
	st.Shares = math.NewInt(150)
	require.NoError(t, s.SaveState(ctx, st, p))

	// later writes replace both rows
	p.Purchased = math.NewInt(199_999)
	p.Spent = math.NewInt(30)
	p.InBalance = math.NewInt(120)
	p.Index = math.LegacyMustNewDecFromStr("1333.333333333333333333")
	p.PendingPurchase = math.LegacyMustNewDecFromStr("0.999999999999999950")
	exit := base.Add(2 * time.Hour)
	p.ExitDate = &exit
	st.InSupply = math.NewInt(120)
	require.NoError(t, s.SaveState(ctx, st, p))

	gotStream, err := s.GetStream(ctx, st.ID)
	require.NoError(t, err)
	AssertStreamEqual(t, st, gotStream)

	got, err := s.GetPosition(ctx, st.ID, "alice")
	require.NoError(t, err)
	AssertPositionEqual(t, p, got)

	// a nil position only touches the stream
	st.SpentIn = math.NewInt(31)
	require.NoError(t, s.SaveState(ctx, st, nil))
	gotStream, err = s.GetStream(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, "31", gotStream.SpentIn.String())
}

func testSaveStateMissingStream(t *testing.T, s store.Store) {
	ctx := context.Background()
	st := NewStream(t, "creator")
	p := position.New(st.ID, "alice", "", st.DistIndex, base)

	err := s.SaveState(ctx, st, p)
	assert.True(t, streamswap.IsNotFound(err), "got %v", err)

	_, err = s.GetPosition(ctx, st.ID, "alice")
	assert.True(t, streamswap.IsNotFound(err), "position written without its stream")
}

func testSaveStateDuplicateOwner(t *testing.T, s store.Store) {
	ctx := context.Background()
	st := NewStream(t, "creator")
	require.NoError(t, s.CreateStream(ctx, st))

	first := position.New(st.ID, "alice", "", st.DistIndex, base)
	require.NoError(t, s.SaveState(ctx, st, first))

	// a second position row for the same owner is a conflict, and the
	// stream write in the same call is discarded
	st.SpentIn = math.NewInt(7)
	second := position.New(st.ID, "alice", "", st.DistIndex, base)
	err := s.SaveState(ctx, st, second)
	assert.ErrorIs(t, err, streamswap.ErrAlreadyExists)

	got, err := s.GetPosition(ctx, st.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID.String(), got.ID.String())

	gotStream, err := s.GetStream(ctx, st.ID)
	require.NoError(t, err)
	assert.True(t, gotStream.SpentIn.IsZero(), "stream saved despite conflict: %s", gotStream.SpentIn)
}

func testListPositions(t *testing.T, s store.Store) {
	ctx := context.Background()
	st := NewStream(t, "creator")
	other := NewStream(t, "creator")
	require.NoError(t, s.CreateStream(ctx, st))
	require.NoError(t, s.CreateStream(ctx, other))

	for _, owner := range []string{"alice", "bob", "carol"} {
		p := position.New(st.ID, owner, "", st.DistIndex, base)
		if owner == "carol" {
			exit := base.Add(time.Minute)
			p.ExitDate = &exit
		}
		require.NoError(t, s.SaveState(ctx, st, p))
	}
	require.NoError(t, s.SaveState(ctx, other, position.New(other.ID, "dave", "", other.DistIndex, base)))

	open, err := s.ListPositions(ctx, st.ID, position.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, open, 2)

	all, err := s.ListPositions(ctx, st.ID, position.ListOpts{IncludeExited: true})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	limited, err := s.ListPositions(ctx, st.ID, position.ListOpts{IncludeExited: true, Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func testWideValues(t *testing.T, s store.Store) {
	ctx := context.Background()
	st := NewStream(t, "creator")
	wide := math.NewIntFromBigInt(new(big.Int).Lsh(big.NewInt(1), 200))
	st.OutAsset = types.NewCoin("uout", wide)
	st.OutRemaining = wide
	st.DistIndex = math.LegacyMustNewDecFromStr("123456789012345678901234567890.000000000000000001")
	st.ExitFeePercent = math.LegacyMustNewDecFromStr("0.025")
	require.NoError(t, s.CreateStream(ctx, st))

	got, err := s.GetStream(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, wide.String(), got.OutAsset.Amount.String())
	assert.Equal(t, st.DistIndex.String(), got.DistIndex.String())
	assert.Equal(t, "0.025000000000000000", got.ExitFeePercent.String())
}

func testClose(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())
	assert.Error(t, s.Ping(ctx))
}

// AssertStreamEqual compares every persisted field of two streams.
func AssertStreamEqual(t *testing.T, want, got *stream.Stream) {
	t.Helper()
	assert.Equal(t, want.ID.String(), got.ID.String())
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.URL, got.URL)
	assert.Equal(t, want.Creator, got.Creator)
	assert.Equal(t, want.OutAsset.String(), got.OutAsset.String())
	assert.Equal(t, want.OutRemaining.String(), got.OutRemaining.String())
	assert.Equal(t, want.InDenom, got.InDenom)
	assert.Equal(t, want.InSupply.String(), got.InSupply.String())
	assert.Equal(t, want.SpentIn.String(), got.SpentIn.String())
	assert.Equal(t, want.Shares.String(), got.Shares.String())
	assert.Equal(t, want.DistIndex.String(), got.DistIndex.String())
	assert.Equal(t, want.CurrentStreamedPrice.String(), got.CurrentStreamedPrice.String())
	assert.Equal(t, want.ExitFeePercent.String(), got.ExitFeePercent.String())
	assert.Equal(t, want.Status, got.Status)
	assertTime(t, want.StartTime, got.StartTime)
	assertTime(t, want.EndTime, got.EndTime)
	assertTime(t, want.LastUpdated, got.LastUpdated)
	assertTimePtr(t, want.BootstrappingStartTime, got.BootstrappingStartTime)
	assertTimePtr(t, want.PauseDate, got.PauseDate)
	if want.Threshold == nil {
		assert.Nil(t, got.Threshold)
	} else if assert.NotNil(t, got.Threshold) {
		assert.Equal(t, want.Threshold.String(), got.Threshold.String())
	}
}

// AssertPositionEqual compares every persisted field of two positions.
func AssertPositionEqual(t *testing.T, want, got *position.Position) {
	t.Helper()
	assert.Equal(t, want.ID.String(), got.ID.String())
	assert.Equal(t, want.StreamID.String(), got.StreamID.String())
	assert.Equal(t, want.Owner, got.Owner)
	assert.Equal(t, want.Operator, got.Operator)
	assert.Equal(t, want.InBalance.String(), got.InBalance.String())
	assert.Equal(t, want.Shares.String(), got.Shares.String())
	assert.Equal(t, want.Purchased.String(), got.Purchased.String())
	assert.Equal(t, want.Spent.String(), got.Spent.String())
	assert.Equal(t, want.Index.String(), got.Index.String())
	assert.Equal(t, want.PendingPurchase.String(), got.PendingPurchase.String())
	assertTime(t, want.LastUpdated, got.LastUpdated)
	assertTimePtr(t, want.ExitDate, got.ExitDate)
}

func assertTime(t *testing.T, want, got time.Time) {
	t.Helper()
	assert.True(t, want.Equal(got), "want %s, got %s", want, got)
}

func assertTimePtr(t *testing.T, want, got *time.Time) {
	t.Helper()
	if want == nil {
		assert.Nil(t, got)
		return
	}
	if assert.NotNil(t, got) {
		assertTime(t, *want, *got)
	}
}
