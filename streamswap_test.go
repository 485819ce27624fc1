package streamswap_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/streamswap"
	"github.com/xraph/streamswap/position"
	"github.com/xraph/streamswap/store/memory"
	"github.com/xraph/streamswap/stream"
	"github.com/xraph/streamswap/types"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func at(sec int) time.Time { return t0.Add(time.Duration(sec) * time.Second) }

func newEngine(t *testing.T, opts ...streamswap.Option) *streamswap.Engine {
	t.Helper()
	opts = append([]streamswap.Option{streamswap.WithAdmin("admin")}, opts...)
	eng := streamswap.New(memory.New(), opts...)
	require.NoError(t, eng.Start(context.Background()))
	t.Cleanup(func() { _ = eng.Stop() })
	return eng
}

func createStream(t *testing.T, eng *streamswap.Engine, mutate ...func(*streamswap.CreateStream)) streamswap.StreamID {
	t.Helper()
	cmd := streamswap.CreateStream{
		Name:      "launch",
		Creator:   "creator",
		OutAsset:  types.NewInt64Coin("uout", 1_000_000),
		InDenom:   "uin",
		StartTime: t0,
		EndTime:   at(100),
	}
	for _, m := range mutate {
		m(&cmd)
	}
	rcpt, err := eng.CreateStream(context.Background(), t0, cmd)
	require.NoError(t, err)
	return rcpt.StreamID
}

func subscribe(t *testing.T, eng *streamswap.Engine, sid streamswap.StreamID, now time.Time, who string, amount int64) *streamswap.Receipt {
	t.Helper()
	rcpt, err := eng.Subscribe(context.Background(), now, streamswap.Subscribe{
		StreamID: sid,
		Sender:   who,
		Amount:   math.NewInt(amount),
	})
	require.NoError(t, err)
	return rcpt
}

func withThreshold(v int64) func(*streamswap.CreateStream) {
	return func(c *streamswap.CreateStream) {
		th := math.NewInt(v)
		c.Threshold = &th
	}
}

func TestCreateStreamValidation(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*streamswap.CreateStream)
	}{
		{"short name", func(c *streamswap.CreateStream) { c.Name = "x" }},
		{"bad url", func(c *streamswap.CreateStream) { c.URL = "not a url at all" }},
		{"short url", func(c *streamswap.CreateStream) { c.URL = "http://a.b" }},
		{"missing creator", func(c *streamswap.CreateStream) { c.Creator = "" }},
		{"window reversed", func(c *streamswap.CreateStream) { c.EndTime = t0.Add(-time.Second) }},
		{"same denoms", func(c *streamswap.CreateStream) { c.InDenom = "uout" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := streamswap.CreateStream{
				Name:      "launch",
				Creator:   "creator",
				OutAsset:  types.NewInt64Coin("uout", 1_000_000),
				InDenom:   "uin",
				StartTime: t0,
				EndTime:   at(100),
			}
			tt.mutate(&cmd)
			_, err := eng.CreateStream(ctx, t0, cmd)
			assert.ErrorIs(t, err, streamswap.ErrInvalidInput)
		})
	}

	rcpt, err := eng.CreateStream(ctx, t0, streamswap.CreateStream{
		Name:      "launch",
		URL:       "https://example.com/launch",
		Creator:   "creator",
		OutAsset:  types.NewInt64Coin("uout", 1_000_000),
		InDenom:   "uin",
		StartTime: t0,
		EndTime:   at(100),
	})
	require.NoError(t, err)
	assert.Equal(t, streamswap.OpCreateStream, rcpt.Command)
	assert.Equal(t, stream.StatusActive, rcpt.Status)
}

func TestSubscribeAndSyncScenario(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	sid := createStream(t, eng)

	rcpt := subscribe(t, eng, sid, t0, "alice", 150)
	assert.Equal(t, "150", rcpt.Position.Shares.String())
	assert.Equal(t, "150", rcpt.Stream.InSupply.String())

	_, err := eng.UpdateStream(ctx, at(20), streamswap.UpdateStream{StreamID: sid})
	require.NoError(t, err)

	s, err := eng.GetStream(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "1333.333333333333333333", s.DistIndex.String())
	assert.Equal(t, "120", s.InSupply.String())
	assert.Equal(t, "30", s.SpentIn.String())

	up, err := eng.UpdatePosition(ctx, at(20), streamswap.UpdatePosition{StreamID: sid, Sender: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "199999", up.Purchased.String())
	assert.Equal(t, "30", up.Spent.String())
	assert.Equal(t, "120", up.Position.InBalance.String())
}

func TestQueriesDoNotPersist(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	sid := createStream(t, eng)
	subscribe(t, eng, sid, t0, "alice", 150)

	view, err := eng.GetStreamAt(ctx, sid, at(20))
	require.NoError(t, err)
	assert.Equal(t, "1333.333333333333333333", view.DistIndex.String())

	persisted, err := eng.GetStream(ctx, sid)
	require.NoError(t, err)
	assert.True(t, persisted.DistIndex.IsZero())
	assert.Equal(t, t0, persisted.LastUpdated)

	p, err := eng.GetPositionAt(ctx, sid, "alice", at(20))
	require.NoError(t, err)
	assert.Equal(t, "199999", p.Purchased.String())

	avg, err := eng.AveragePrice(ctx, sid, at(20))
	require.NoError(t, err)
	assert.Equal(t, "0.000150000000000000", avg.String())

	cur, err := eng.CurrentPrice(ctx, sid, at(20))
	require.NoError(t, err)
	assert.Equal(t, avg.String(), cur.String())

	zero, err := eng.AveragePrice(ctx, sid, t0)
	require.NoError(t, err)
	assert.True(t, zero.IsZero())
}

func TestSubscribeRejections(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	waiting := createStream(t, eng, func(c *streamswap.CreateStream) {
		c.StartTime = at(50)
		c.EndTime = at(150)
	})
	_, err := eng.Subscribe(ctx, t0, streamswap.Subscribe{StreamID: waiting, Sender: "alice", Amount: math.NewInt(5)})
	require.ErrorIs(t, err, streamswap.ErrOperationNotAllowed)
	assert.Contains(t, err.Error(), "waiting")
	assert.True(t, streamswap.IsRecoverable(err))

	sid := createStream(t, eng)
	_, err = eng.Subscribe(ctx, t0, streamswap.Subscribe{StreamID: sid, Sender: "alice", Amount: math.ZeroInt()})
	assert.ErrorIs(t, err, streamswap.ErrZeroAmount)

	_, err = eng.Subscribe(ctx, t0, streamswap.Subscribe{StreamID: sid, Sender: "bob", Owner: "carol", Amount: math.NewInt(5)})
	assert.ErrorIs(t, err, streamswap.ErrUnauthorized)

	_, err = eng.Subscribe(ctx, t0, streamswap.Subscribe{StreamID: streamswap.StreamID{}, Sender: "alice", Amount: math.NewInt(5)})
	assert.True(t, streamswap.IsNotFound(err))
}

func TestSubscribeDuringBootstrapping(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	sid := createStream(t, eng, func(c *streamswap.CreateStream) {
		boot := t0
		c.BootstrappingStartTime = &boot
		c.StartTime = at(50)
		c.EndTime = at(150)
	})

	rcpt := subscribe(t, eng, sid, at(10), "alice", 100)
	assert.Equal(t, stream.StatusBootstrapping, rcpt.Status)

	_, err := eng.UpdateStream(ctx, at(40), streamswap.UpdateStream{StreamID: sid})
	require.NoError(t, err)
	s, err := eng.GetStream(ctx, sid)
	require.NoError(t, err)
	assert.True(t, s.DistIndex.IsZero())
	assert.Equal(t, "100", s.InSupply.String())

	w, err := eng.Withdraw(ctx, at(45), streamswap.Withdraw{StreamID: sid, Sender: "alice"})
	require.NoError(t, err)
	assert.True(t, w.Position.Shares.IsZero())
	assert.True(t, w.Stream.Shares.IsZero())
	require.Len(t, w.Transfers, 1)
	assert.Equal(t, "100uin", w.Transfers[0].Coin.String())
}

func TestOperatorDelegation(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	sid := createStream(t, eng)

	_, err := eng.Subscribe(ctx, t0, streamswap.Subscribe{StreamID: sid, Sender: "alice", Operator: "bot", Amount: math.NewInt(100)})
	require.NoError(t, err)

	rcpt, err := eng.Subscribe(ctx, at(1), streamswap.Subscribe{StreamID: sid, Sender: "bot", Owner: "alice", Amount: math.NewInt(50)})
	require.NoError(t, err)
	assert.Equal(t, "alice", rcpt.Position.Owner)

	_, err = eng.Withdraw(ctx, at(2), streamswap.Withdraw{StreamID: sid, Sender: "mallory", Owner: "alice"})
	assert.ErrorIs(t, err, streamswap.ErrUnauthorized)

	_, err = eng.UpdateOperator(ctx, at(3), streamswap.UpdateOperator{StreamID: sid, Sender: "bot", Operator: "mallory"})
	assert.ErrorIs(t, err, streamswap.ErrPositionNotFound)

	_, err = eng.UpdateOperator(ctx, at(3), streamswap.UpdateOperator{StreamID: sid, Sender: "alice"})
	require.NoError(t, err)

	_, err = eng.UpdatePosition(ctx, at(4), streamswap.UpdatePosition{StreamID: sid, Sender: "bot", Owner: "alice"})
	assert.ErrorIs(t, err, streamswap.ErrUnauthorized)
}

func TestWithdrawExceedsBalanceIsAtomic(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	sid := createStream(t, eng)
	subscribe(t, eng, sid, t0, "alice", 150)

	over := math.NewInt(151)
	_, err := eng.Withdraw(ctx, at(10), streamswap.Withdraw{StreamID: sid, Sender: "alice", Cap: &over})
	require.ErrorIs(t, err, streamswap.ErrWithdrawExceedsBalance)
	assert.Contains(t, err.Error(), "withdraw exceeds balance")

	s, err := eng.GetStream(ctx, sid)
	require.NoError(t, err)
	p, err := eng.GetPosition(ctx, sid, "alice")
	require.NoError(t, err)
	assert.Equal(t, "150", s.InSupply.String())
	assert.Equal(t, "150", s.Shares.String())
	assert.Equal(t, t0, s.LastUpdated)
	assert.Equal(t, "150", p.InBalance.String())
	assert.Equal(t, "150", p.Shares.String())

	zero := math.ZeroInt()
	_, err = eng.Withdraw(ctx, at(10), streamswap.Withdraw{StreamID: sid, Sender: "alice", Cap: &zero})
	assert.ErrorIs(t, err, streamswap.ErrInvalidWithdrawAmount)
}

func TestWithdrawPartial(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	sid := createStream(t, eng)
	subscribe(t, eng, sid, t0, "alice", 100)
	subscribe(t, eng, sid, t0, "bob", 100)

	capAmount := math.NewInt(40)
	rcpt, err := eng.Withdraw(ctx, at(50), streamswap.Withdraw{StreamID: sid, Sender: "alice", Cap: &capAmount, Recipient: "alice-cold"})
	require.NoError(t, err)

	// half the window passed: alice holds 50 unspent, withdraws 40
	assert.Equal(t, "10", rcpt.Position.InBalance.String())
	assert.Equal(t, "50", rcpt.Spent.String())
	require.Len(t, rcpt.Transfers, 1)
	assert.Equal(t, types.TransferWithdraw, rcpt.Transfers[0].Kind)
	assert.Equal(t, "alice-cold", rcpt.Transfers[0].Recipient)
	assert.Equal(t, "40uin", rcpt.Transfers[0].Coin.String())

	report, err := eng.CheckInvariants(ctx, sid)
	require.NoError(t, err)
	assert.True(t, report.OK(), report.Violations)
}

func TestPauseResumeCancel(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	sid := createStream(t, eng)
	subscribe(t, eng, sid, t0, "alice", 1_000)

	_, err := eng.Pause(ctx, at(30), streamswap.Pause{StreamID: sid, Sender: "mallory"})
	assert.ErrorIs(t, err, streamswap.ErrUnauthorized)

	paused, err := eng.Pause(ctx, at(30), streamswap.Pause{StreamID: sid, Sender: "admin"})
	require.NoError(t, err)
	assert.Equal(t, stream.StatusPaused, paused.Status)
	assert.Equal(t, "300", paused.Stream.DistIndex.String()[:3])
	assert.Equal(t, "700", paused.Stream.InSupply.String())

	_, err = eng.Subscribe(ctx, at(40), streamswap.Subscribe{StreamID: sid, Sender: "bob", Amount: math.NewInt(1)})
	assert.ErrorIs(t, err, streamswap.ErrOperationNotAllowed)

	resumed, err := eng.Resume(ctx, at(80), streamswap.Resume{StreamID: sid, Sender: "admin"})
	require.NoError(t, err)
	assert.Equal(t, stream.StatusActive, resumed.Status)
	assert.Equal(t, at(150), resumed.Stream.EndTime)
	assert.Equal(t, paused.Stream.DistIndex.String(), resumed.Stream.DistIndex.String())
	assert.Equal(t, paused.Stream.OutRemaining.String(), resumed.Stream.OutRemaining.String())
	assert.Equal(t, paused.Stream.InSupply.String(), resumed.Stream.InSupply.String())

	_, err = eng.Cancel(ctx, at(90), streamswap.Cancel{StreamID: sid, Sender: "admin"})
	assert.ErrorIs(t, err, streamswap.ErrOperationNotAllowed)

	_, err = eng.Pause(ctx, at(90), streamswap.Pause{StreamID: sid, Sender: "admin"})
	require.NoError(t, err)
	cancelled, err := eng.Cancel(ctx, at(95), streamswap.Cancel{StreamID: sid, Sender: "admin"})
	require.NoError(t, err)
	assert.Equal(t, stream.StatusCancelled, cancelled.Status)
	require.Len(t, cancelled.Transfers, 1)
	assert.Equal(t, types.TransferOutRefund, cancelled.Transfers[0].Kind)
	assert.Equal(t, "creator", cancelled.Transfers[0].Recipient)
	assert.Equal(t, "1000000uout", cancelled.Transfers[0].Coin.String())

	exit, err := eng.Exit(ctx, at(96), streamswap.Exit{StreamID: sid, Sender: "alice"})
	require.NoError(t, err)
	require.Len(t, exit.Transfers, 1)
	assert.Equal(t, types.TransferExitRefund, exit.Transfers[0].Kind)
	assert.Equal(t, "1000uin", exit.Transfers[0].Coin.String())
}

func TestFinalizeThreshold(t *testing.T) {
	tests := []struct {
		name      string
		deposit   int64
		status    stream.Status
		finalize  []string
		exitCoins []string
	}{
		{
			name:      "499 refunds",
			deposit:   499,
			status:    stream.StatusFinalizedThresholdNotReached,
			finalize:  []string{"1000000uout"},
			exitCoins: []string{"499uin"},
		},
		{
			name:      "500 succeeds",
			deposit:   500,
			status:    stream.StatusFinalizedThresholdReached,
			finalize:  []string{"500uin"},
			exitCoins: []string{"1000000uout"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := newEngine(t)
			ctx := context.Background()
			sid := createStream(t, eng, withThreshold(500))
			subscribe(t, eng, sid, t0, "alice", tt.deposit)

			_, err := eng.Finalize(ctx, at(50), streamswap.Finalize{StreamID: sid, Sender: "creator"})
			assert.ErrorIs(t, err, streamswap.ErrOperationNotAllowed)
			_, err = eng.Finalize(ctx, at(100), streamswap.Finalize{StreamID: sid, Sender: "alice"})
			assert.ErrorIs(t, err, streamswap.ErrUnauthorized)

			rcpt, err := eng.Finalize(ctx, at(100), streamswap.Finalize{StreamID: sid, Sender: "creator"})
			require.NoError(t, err)
			assert.Equal(t, tt.status, rcpt.Status)
			assert.Equal(t, tt.finalize, coins(rcpt.Transfers))

			_, err = eng.Finalize(ctx, at(101), streamswap.Finalize{StreamID: sid, Sender: "creator"})
			require.ErrorIs(t, err, streamswap.ErrOperationNotAllowed)
			assert.Contains(t, err.Error(), string(tt.status))

			exit, err := eng.Exit(ctx, at(102), streamswap.Exit{StreamID: sid, Sender: "alice"})
			require.NoError(t, err)
			assert.Equal(t, tt.exitCoins, coins(exit.Transfers))
			assert.NotNil(t, exit.Position.ExitDate)

			_, err = eng.Exit(ctx, at(103), streamswap.Exit{StreamID: sid, Sender: "alice"})
			assert.ErrorIs(t, err, streamswap.ErrPositionAlreadyExited)
		})
	}
}

func TestFinalizeWithExitFee(t *testing.T) {
	eng := newEngine(t,
		streamswap.WithFeeCollector("treasury"),
		streamswap.WithExitFee(math.LegacyMustNewDecFromStr("0.01")),
	)
	ctx := context.Background()
	sid := createStream(t, eng)
	subscribe(t, eng, sid, t0, "alice", 999)

	rcpt, err := eng.Finalize(ctx, at(100), streamswap.Finalize{StreamID: sid, Sender: "creator", NewPayoutTarget: "dao"})
	require.NoError(t, err)
	assert.Equal(t, "dao", rcpt.Stream.Creator)
	require.Len(t, rcpt.Transfers, 2)
	assert.Equal(t, types.TransferCreatorRevenue, rcpt.Transfers[0].Kind)
	assert.Equal(t, "dao", rcpt.Transfers[0].Recipient)
	assert.Equal(t, "989uin", rcpt.Transfers[0].Coin.String())
	assert.Equal(t, types.TransferFee, rcpt.Transfers[1].Kind)
	assert.Equal(t, "treasury", rcpt.Transfers[1].Recipient)
	assert.Equal(t, "10uin", rcpt.Transfers[1].Coin.String())
}

func TestFinalizeRefundsUnreleasedOut(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	sid := createStream(t, eng)

	// nobody subscribes for the first 40 seconds
	subscribe(t, eng, sid, at(40), "alice", 60)
	_, err := eng.Withdraw(ctx, at(70), streamswap.Withdraw{StreamID: sid, Sender: "alice"})
	require.NoError(t, err)

	rcpt, err := eng.Finalize(ctx, at(100), streamswap.Finalize{StreamID: sid, Sender: "creator"})
	require.NoError(t, err)
	assert.Equal(t, []string{"30uin", "500000uout"}, coins(rcpt.Transfers))
}

func TestCancelWithThreshold(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	sid := createStream(t, eng, withThreshold(500))
	subscribe(t, eng, sid, t0, "alice", 100)

	_, err := eng.CancelWithThreshold(ctx, at(100), streamswap.CancelWithThreshold{StreamID: sid, Sender: "alice"})
	assert.ErrorIs(t, err, streamswap.ErrUnauthorized)

	rcpt, err := eng.CancelWithThreshold(ctx, at(100), streamswap.CancelWithThreshold{StreamID: sid, Sender: "creator"})
	require.NoError(t, err)
	assert.Equal(t, stream.StatusCancelled, rcpt.Status)
	assert.Equal(t, []string{"1000000uout"}, coins(rcpt.Transfers))

	exit, err := eng.Exit(ctx, at(101), streamswap.Exit{StreamID: sid, Sender: "alice"})
	require.NoError(t, err)
	assert.Equal(t, []string{"100uin"}, coins(exit.Transfers))

	noThreshold := createStream(t, eng)
	_, err = eng.CancelWithThreshold(ctx, at(100), streamswap.CancelWithThreshold{StreamID: noThreshold, Sender: "creator"})
	assert.ErrorIs(t, err, streamswap.ErrThresholdNotSet)
}

func TestInvariantsAcrossLifecycle(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	sid := createStream(t, eng)

	check := func() {
		t.Helper()
		report, err := eng.CheckInvariants(ctx, sid)
		require.NoError(t, err)
		assert.True(t, report.OK(), report.Violations)
	}

	subscribe(t, eng, sid, t0, "alice", 300)
	subscribe(t, eng, sid, at(10), "bob", 700)
	check()

	hundred := math.NewInt(100)
	_, err := eng.Withdraw(ctx, at(35), streamswap.Withdraw{StreamID: sid, Sender: "alice", Cap: &hundred})
	require.NoError(t, err)
	subscribe(t, eng, sid, at(60), "carol", 50)
	check()

	_, err = eng.UpdateStream(ctx, at(77), streamswap.UpdateStream{StreamID: sid})
	require.NoError(t, err)
	_, err = eng.UpdatePosition(ctx, at(90), streamswap.UpdatePosition{StreamID: sid, Sender: "bob"})
	require.NoError(t, err)
	check()

	_, err = eng.Finalize(ctx, at(100), streamswap.Finalize{StreamID: sid, Sender: "creator"})
	require.NoError(t, err)

	purchased := math.ZeroInt()
	for _, who := range []string{"alice", "bob", "carol"} {
		rcpt, err := eng.Exit(ctx, at(101), streamswap.Exit{StreamID: sid, Sender: who})
		require.NoError(t, err)
		purchased = purchased.Add(rcpt.Position.Purchased)
	}
	check()

	s, err := eng.GetStream(ctx, sid)
	require.NoError(t, err)
	assert.True(t, s.Shares.IsZero())
	drift := s.OutAsset.Amount.Sub(s.OutRemaining).Sub(purchased)
	assert.False(t, drift.IsNegative())
	assert.True(t, drift.LTE(math.NewInt(4)), "drift %s", drift)

	open, err := eng.ListPositions(ctx, sid, position.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, open)
	all, err := eng.ListPositions(ctx, sid, position.ListOpts{IncludeExited: true})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestThresholdQuery(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	sid := createStream(t, eng, withThreshold(500))
	subscribe(t, eng, sid, t0, "alice", 1_000)

	st, err := eng.Threshold(ctx, sid, at(49))
	require.NoError(t, err)
	assert.True(t, st.Set)
	assert.False(t, st.Reached)

	st, err = eng.Threshold(ctx, sid, at(50))
	require.NoError(t, err)
	assert.True(t, st.Reached)
	assert.Equal(t, "500", st.SpentIn.String())
}

func TestExecuteAndDecode(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	sid := createStream(t, eng)

	raw := `{"type":"subscribe","stream_id":"` + sid.String() + `","sender":"alice","amount":"150"}`
	cmd, err := streamswap.DecodeCommand([]byte(raw))
	require.NoError(t, err)
	require.IsType(t, streamswap.Subscribe{}, cmd)

	rcpt, err := eng.Execute(ctx, t0, cmd)
	require.NoError(t, err)
	assert.Equal(t, "subscribe", rcpt.Command)
	assert.Equal(t, "150", rcpt.Position.InBalance.String())

	capAmount := math.NewInt(10)
	encoded, err := streamswap.EncodeCommand(streamswap.Withdraw{StreamID: sid, Sender: "alice", Cap: &capAmount})
	require.NoError(t, err)
	decoded, err := streamswap.DecodeCommand(encoded)
	require.NoError(t, err)
	w, ok := decoded.(streamswap.Withdraw)
	require.True(t, ok)
	assert.Equal(t, "10", w.Cap.String())
	assert.Equal(t, sid.String(), w.StreamID.String())

	rcpt, err = eng.Execute(ctx, at(1), decoded)
	require.NoError(t, err)
	assert.Equal(t, "withdraw", rcpt.Command)

	_, err = streamswap.DecodeCommand([]byte(`{"type":"teleport"}`))
	assert.ErrorIs(t, err, streamswap.ErrUnknownCommand)
	_, err = streamswap.DecodeCommand([]byte(`not json`))
	assert.ErrorIs(t, err, streamswap.ErrInvalidInput)
}

type recorder struct {
	mu        sync.Mutex
	finalized []string
	rejected  []string
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnStreamFinalized(_ context.Context, s *stream.Stream, _ []types.Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalized = append(r.finalized, string(s.Status))
	return nil
}

func (r *recorder) OnOperationRejected(_ context.Context, op, _ string, _ error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, op)
	return nil
}

func TestPostFinalizeHook(t *testing.T) {
	rec := &recorder{}
	eng := newEngine(t, streamswap.WithPlugin(rec))
	ctx := context.Background()
	sid := createStream(t, eng)
	subscribe(t, eng, sid, t0, "alice", 10)

	_, err := eng.Finalize(ctx, at(10), streamswap.Finalize{StreamID: sid, Sender: "creator"})
	require.Error(t, err)
	_, err = eng.Finalize(ctx, at(100), streamswap.Finalize{StreamID: sid, Sender: "creator"})
	require.NoError(t, err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{"finalized_threshold_reached"}, rec.finalized)
	assert.Equal(t, []string{"finalize"}, rec.rejected)
}

func TestConcurrentSubscribesSerialize(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	sid := createStream(t, eng)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			who := string(rune('a' + i))
			_, err := eng.Subscribe(ctx, t0, streamswap.Subscribe{StreamID: sid, Sender: who, Amount: math.NewInt(10)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, err := eng.GetStream(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "200", s.InSupply.String())
	assert.Equal(t, "200", s.Shares.String())
}

func coins(transfers []types.Transfer) []string {
	out := make([]string, 0, len(transfers))
	for _, tr := range transfers {
		out = append(out, tr.Coin.String())
	}
	return out
}

func TestListStreamsDerivesStatus(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	ended := createStream(t, eng)
	subscribe(t, eng, ended, t0, "alice", 100)

	waiting := createStream(t, eng, func(c *streamswap.CreateStream) {
		c.StartTime = at(200)
		c.EndTime = at(300)
	})

	paused := createStream(t, eng)
	subscribe(t, eng, paused, t0, "bob", 100)
	_, err := eng.Pause(ctx, at(10), streamswap.Pause{StreamID: paused, Sender: "admin"})
	require.NoError(t, err)

	// no write has touched any stream since; the stored status of the first
	// one still reads active
	now := at(150)
	tests := []struct {
		status stream.Status
		want   []streamswap.StreamID
	}{
		{stream.StatusEnded, []streamswap.StreamID{ended}},
		{stream.StatusActive, nil},
		{stream.StatusWaiting, []streamswap.StreamID{waiting}},
		{stream.StatusPaused, []streamswap.StreamID{paused}},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			got, err := eng.ListStreams(ctx, now, stream.ListOpts{Status: tt.status})
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i, s := range got {
				assert.Equal(t, tt.want[i].String(), s.ID.String())
				assert.Equal(t, tt.status, s.Status)
			}
		})
	}

	all, err := eng.ListStreams(ctx, now, stream.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	for _, s := range all {
		view, err := eng.GetStreamAt(ctx, s.ID, now)
		require.NoError(t, err)
		assert.Equal(t, view.Status, s.Status)
		assert.Equal(t, view.SpentIn.String(), s.SpentIn.String())
	}

	page, err := eng.ListStreams(ctx, now, stream.ListOpts{Status: stream.StatusEnded, Offset: 1})
	require.NoError(t, err)
	assert.Empty(t, page)

	_, err = eng.ListStreams(ctx, now, stream.ListOpts{Status: "finished"})
	assert.ErrorIs(t, err, streamswap.ErrInvalidInput)
}

func TestUpdateOperatorFrozenAfterSettlement(t *testing.T) {
	t.Run("Cancelled", func(t *testing.T) {
		eng := newEngine(t)
		ctx := context.Background()
		sid := createStream(t, eng)
		subscribe(t, eng, sid, t0, "alice", 100)

		_, err := eng.Pause(ctx, at(10), streamswap.Pause{StreamID: sid, Sender: "admin"})
		require.NoError(t, err)
		// paused streams still accept a new operator
		_, err = eng.UpdateOperator(ctx, at(11), streamswap.UpdateOperator{StreamID: sid, Sender: "alice", Operator: "bot"})
		require.NoError(t, err)
		_, err = eng.Cancel(ctx, at(12), streamswap.Cancel{StreamID: sid, Sender: "admin"})
		require.NoError(t, err)

		_, err = eng.UpdateOperator(ctx, at(13), streamswap.UpdateOperator{StreamID: sid, Sender: "alice", Operator: "mallory"})
		assert.ErrorIs(t, err, streamswap.ErrOperationNotAllowed)

		p, err := eng.GetPosition(ctx, sid, "alice")
		require.NoError(t, err)
		assert.Equal(t, "bot", p.Operator)
	})

	t.Run("Finalized", func(t *testing.T) {
		eng := newEngine(t)
		ctx := context.Background()
		sid := createStream(t, eng)
		subscribe(t, eng, sid, t0, "alice", 100)

		// ended but not yet finalized
		_, err := eng.UpdateOperator(ctx, at(100), streamswap.UpdateOperator{StreamID: sid, Sender: "alice", Operator: "bot"})
		require.NoError(t, err)
		_, err = eng.Finalize(ctx, at(101), streamswap.Finalize{StreamID: sid, Sender: "creator"})
		require.NoError(t, err)

		_, err = eng.UpdateOperator(ctx, at(102), streamswap.UpdateOperator{StreamID: sid, Sender: "alice"})
		assert.ErrorIs(t, err, streamswap.ErrOperationNotAllowed)
	})
}

func TestExitClearsBalance(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	sid := createStream(t, eng)
	subscribe(t, eng, sid, t0, "alice", 100)
	capAmount := math.NewInt(10)
	_, err := eng.Withdraw(ctx, at(50), streamswap.Withdraw{StreamID: sid, Sender: "alice", Cap: &capAmount})
	require.NoError(t, err)

	_, err = eng.Finalize(ctx, at(101), streamswap.Finalize{StreamID: sid, Sender: "creator"})
	require.NoError(t, err)
	exit, err := eng.Exit(ctx, at(102), streamswap.Exit{StreamID: sid, Sender: "alice"})
	require.NoError(t, err)

	var purchase types.Transfer
	for _, tr := range exit.Transfers {
		if tr.Kind == types.TransferExitPurchase {
			purchase = tr
		}
	}
	require.Equal(t, types.TransferExitPurchase, purchase.Kind)

	stored, err := eng.GetPosition(ctx, sid, "alice")
	require.NoError(t, err)
	settled, err := eng.GetPositionAt(ctx, sid, "alice", at(200))
	require.NoError(t, err)

	for _, p := range []*position.Position{stored, settled} {
		assert.True(t, p.IsExited())
		assert.True(t, p.InBalance.IsZero(), "in balance %s survived exit", p.InBalance)
		assert.True(t, p.Shares.IsZero())
		// purchase and spend stay as history
		assert.Equal(t, purchase.Coin.Amount.String(), p.Purchased.String())
		assert.Equal(t, "90", p.Spent.String())
	}

	report, err := eng.CheckInvariants(ctx, sid)
	require.NoError(t, err)
	assert.True(t, report.OK(), "%v", report.Violations)
}
