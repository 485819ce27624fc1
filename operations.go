package streamswap

import (
	"context"
	"errors"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"

	"github.com/xraph/streamswap/fixedpoint"
	"github.com/xraph/streamswap/position"
	"github.com/xraph/streamswap/stream"
	"github.com/xraph/streamswap/types"
)

// ──────────────────────────────────────────────────
// Stream creation
// ──────────────────────────────────────────────────

// CreateStream validates and persists a new stream.
func (e *Engine) CreateStream(ctx context.Context, now time.Time, cmd CreateStream) (*Receipt, error) {
	if err := e.validate.Struct(cmd); err != nil {
		e.reject(ctx, OpCreateStream, "", err)
		return nil, errorsmod.Wrap(ErrInvalidInput, err.Error())
	}
	if e.exitFee.IsPositive() && e.feeCollector == "" {
		err := errorsmod.Wrap(ErrInvalidInput, "exit fee configured without a fee collector")
		e.reject(ctx, OpCreateStream, "", err)
		return nil, err
	}

	s, err := stream.New(now, stream.Params{
		Name:                   cmd.Name,
		URL:                    cmd.URL,
		Creator:                cmd.Creator,
		OutAsset:               cmd.OutAsset,
		InDenom:                cmd.InDenom,
		StartTime:              cmd.StartTime,
		EndTime:                cmd.EndTime,
		BootstrappingStartTime: cmd.BootstrappingStartTime,
		Threshold:              cmd.Threshold,
		ExitFeePercent:         e.exitFee,
	})
	if err != nil {
		e.reject(ctx, OpCreateStream, "", err)
		return nil, err
	}

	if err := e.store.CreateStream(ctx, s); err != nil {
		e.reject(ctx, OpCreateStream, s.ID.String(), err)
		return nil, err
	}

	e.logger.Info("stream created",
		"stream_id", s.ID.String(),
		"creator", s.Creator,
		"out_asset", s.OutAsset.String(),
		"in_denom", s.InDenom,
		"start", s.StartTime,
		"end", s.EndTime,
	)
	e.plugins.EmitStreamCreated(ctx, s)

	rcpt := newReceipt()
	rcpt.Command = OpCreateStream
	rcpt.StreamID = s.ID
	rcpt.Status = s.Status
	rcpt.Stream = s
	return rcpt, nil
}

// ──────────────────────────────────────────────────
// Participant operations
// ──────────────────────────────────────────────────

// Subscribe deposits in denom into a position, opening it if needed.
func (e *Engine) Subscribe(ctx context.Context, now time.Time, cmd Subscribe) (*Receipt, error) {
	rcpt, err := e.apply(ctx, stream.OpSubscribe, cmd.StreamID, now, func(s *stream.Stream) (*Receipt, error) {
		if cmd.Amount.IsNil() || !cmd.Amount.IsPositive() {
			return nil, errorsmod.Wrapf(ErrZeroAmount, "subscribe amount %s", cmd.Amount)
		}
		if err := s.Require(stream.OpSubscribe, now, stream.StatusBootstrapping, stream.StatusActive); err != nil {
			return nil, err
		}
		if _, err := s.Sync(now); err != nil {
			return nil, err
		}

		owner := ownerOr(cmd.Owner, cmd.Sender)
		p, err := e.loadPosition(ctx, s, owner, cmd.Sender)
		switch {
		case errors.Is(err, ErrPositionNotFound):
			if cmd.Sender != owner {
				return nil, errorsmod.Wrapf(ErrUnauthorized, "only %s can open their position", owner)
			}
			p = position.New(s.ID, owner, cmd.Operator, s.DistIndex, now)
		case err != nil:
			return nil, err
		}

		rcpt := newReceipt()
		if rcpt.Purchased, rcpt.Spent, err = p.Settle(s.DistIndex, s.Shares, s.LastUpdated, s.InSupply); err != nil {
			return nil, err
		}

		minted, err := stream.MintShares(s, cmd.Amount)
		if err != nil {
			return nil, err
		}
		if minted.IsZero() {
			return nil, errorsmod.Wrapf(ErrInvalidInput, "amount %s too small to mint shares", cmd.Amount)
		}

		if s.InSupply, err = fixedpoint.Add(s.InSupply, cmd.Amount); err != nil {
			return nil, err
		}
		if s.Shares, err = fixedpoint.Add(s.Shares, minted); err != nil {
			return nil, err
		}
		if p.InBalance, err = fixedpoint.Add(p.InBalance, cmd.Amount); err != nil {
			return nil, err
		}
		if p.Shares, err = fixedpoint.Add(p.Shares, minted); err != nil {
			return nil, err
		}

		rcpt.Position = p
		return rcpt, nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Debug("subscribed",
		"stream_id", rcpt.StreamID.String(),
		"owner", rcpt.Position.Owner,
		"amount", cmd.Amount.String(),
	)
	e.plugins.EmitSubscribed(ctx, rcpt.Stream, rcpt.Position, cmd.Amount)
	return rcpt, nil
}

// Withdraw returns unspent in denom from a position.
func (e *Engine) Withdraw(ctx context.Context, now time.Time, cmd Withdraw) (*Receipt, error) {
	var amount math.Int
	rcpt, err := e.apply(ctx, stream.OpWithdraw, cmd.StreamID, now, func(s *stream.Stream) (*Receipt, error) {
		if cmd.Cap != nil && (cmd.Cap.IsNil() || !cmd.Cap.IsPositive()) {
			return nil, errorsmod.Wrapf(ErrInvalidWithdrawAmount, "cap %s", cmd.Cap)
		}
		if err := s.Require(stream.OpWithdraw, now, stream.StatusBootstrapping, stream.StatusActive); err != nil {
			return nil, err
		}

		owner := ownerOr(cmd.Owner, cmd.Sender)
		p, err := e.loadPosition(ctx, s, owner, cmd.Sender)
		if err != nil {
			return nil, err
		}

		rcpt := newReceipt()
		if rcpt.Purchased, rcpt.Spent, err = settle(s, p, now); err != nil {
			return nil, err
		}

		amount = p.InBalance
		if cmd.Cap != nil {
			amount = *cmd.Cap
		}
		if amount.IsZero() {
			return nil, errorsmod.Wrap(ErrInvalidWithdrawAmount, "nothing to withdraw")
		}
		if amount.GT(p.InBalance) {
			return nil, errorsmod.Wrapf(ErrWithdrawExceedsBalance, "requested %s, balance %s", amount, p.InBalance)
		}

		burned, err := stream.BurnShares(s, p.InBalance, p.Shares, amount)
		if err != nil {
			return nil, err
		}
		if s.InSupply, err = fixedpoint.Sub(s.InSupply, amount); err != nil {
			return nil, err
		}
		if s.Shares, err = fixedpoint.Sub(s.Shares, burned); err != nil {
			return nil, err
		}
		if p.InBalance, err = fixedpoint.Sub(p.InBalance, amount); err != nil {
			return nil, err
		}
		if p.Shares, err = fixedpoint.Sub(p.Shares, burned); err != nil {
			return nil, err
		}

		rcpt.Position = p
		rcpt.Transfers = appendTransfer(s, types.TransferWithdraw, ownerOr(cmd.Recipient, owner),
			types.NewCoin(s.InDenom, amount), nil)
		return rcpt, nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Debug("withdrawn",
		"stream_id", rcpt.StreamID.String(),
		"owner", rcpt.Position.Owner,
		"amount", amount.String(),
	)
	e.plugins.EmitWithdrawn(ctx, rcpt.Stream, rcpt.Position, amount)
	return rcpt, nil
}

// UpdatePosition syncs the stream and settles a position.
func (e *Engine) UpdatePosition(ctx context.Context, now time.Time, cmd UpdatePosition) (*Receipt, error) {
	rcpt, err := e.apply(ctx, stream.OpUpdatePosition, cmd.StreamID, now, func(s *stream.Stream) (*Receipt, error) {
		if err := s.Require(stream.OpUpdatePosition, now,
			stream.StatusBootstrapping, stream.StatusActive, stream.StatusEnded,
			stream.StatusFinalizedThresholdReached, stream.StatusFinalizedThresholdNotReached,
		); err != nil {
			return nil, err
		}

		p, err := e.loadPosition(ctx, s, ownerOr(cmd.Owner, cmd.Sender), cmd.Sender)
		if err != nil {
			return nil, err
		}

		rcpt := newReceipt()
		if rcpt.Purchased, rcpt.Spent, err = settle(s, p, now); err != nil {
			return nil, err
		}
		rcpt.Position = p
		return rcpt, nil
	})
	if err != nil {
		return nil, err
	}

	e.plugins.EmitPositionUpdated(ctx, rcpt.Stream, rcpt.Position, rcpt.Purchased, rcpt.Spent)
	return rcpt, nil
}

// UpdateOperator replaces the operator of the sender's own position. The
// delegation is frozen once the stream is cancelled or finalized.
func (e *Engine) UpdateOperator(ctx context.Context, now time.Time, cmd UpdateOperator) (*Receipt, error) {
	rcpt, err := e.apply(ctx, stream.OpUpdateOperator, cmd.StreamID, now, func(s *stream.Stream) (*Receipt, error) {
		if err := s.Require(stream.OpUpdateOperator, now,
			stream.StatusBootstrapping, stream.StatusActive, stream.StatusPaused, stream.StatusEnded,
		); err != nil {
			return nil, err
		}

		p, err := e.loadPosition(ctx, s, cmd.Sender, cmd.Sender)
		if err != nil {
			return nil, err
		}
		p.Operator = cmd.Operator

		rcpt := newReceipt()
		rcpt.Position = p
		return rcpt, nil
	})
	if err != nil {
		return nil, err
	}

	e.plugins.EmitPositionUpdated(ctx, rcpt.Stream, rcpt.Position, rcpt.Purchased, rcpt.Spent)
	return rcpt, nil
}

// Exit settles a position for the last time and pays it out. On a stream
// that failed (cancelled, or ended below its threshold) everything the
// position put in is refunded; otherwise it receives its purchase plus any
// unspent balance.
func (e *Engine) Exit(ctx context.Context, now time.Time, cmd Exit) (*Receipt, error) {
	rcpt, err := e.apply(ctx, stream.OpExit, cmd.StreamID, now, func(s *stream.Stream) (*Receipt, error) {
		if err := s.Require(stream.OpExit, now,
			stream.StatusEnded, stream.StatusCancelled,
			stream.StatusFinalizedThresholdReached, stream.StatusFinalizedThresholdNotReached,
		); err != nil {
			return nil, err
		}

		owner := ownerOr(cmd.Owner, cmd.Sender)
		p, err := e.loadPosition(ctx, s, owner, cmd.Sender)
		if err != nil {
			return nil, err
		}

		rcpt := newReceipt()
		if rcpt.Purchased, rcpt.Spent, err = settle(s, p, now); err != nil {
			return nil, err
		}

		recipient := ownerOr(cmd.Recipient, owner)
		if refundsParticipants(s) {
			refund, err := fixedpoint.Add(p.InBalance, p.Spent)
			if err != nil {
				return nil, err
			}
			rcpt.Transfers = appendTransfer(s, types.TransferExitRefund, recipient, types.NewCoin(s.InDenom, refund), rcpt.Transfers)
		} else {
			rcpt.Transfers = appendTransfer(s, types.TransferExitPurchase, recipient, types.NewCoin(s.OutAsset.Denom, p.Purchased), rcpt.Transfers)
			rcpt.Transfers = appendTransfer(s, types.TransferExitRefund, recipient, types.NewCoin(s.InDenom, p.InBalance), rcpt.Transfers)
		}

		if s.Shares, err = fixedpoint.Sub(s.Shares, p.Shares); err != nil {
			return nil, err
		}
		if s.InSupply, err = fixedpoint.Sub(s.InSupply, p.InBalance); err != nil {
			return nil, err
		}
		p.Shares = math.ZeroInt()
		p.InBalance = math.ZeroInt()
		exitAt := now.UTC()
		p.ExitDate = &exitAt

		rcpt.Position = p
		return rcpt, nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("position exited",
		"stream_id", rcpt.StreamID.String(),
		"owner", rcpt.Position.Owner,
		"status", string(rcpt.Status),
		"transfers", len(rcpt.Transfers),
	)
	e.plugins.EmitPositionExited(ctx, rcpt.Stream, rcpt.Position, rcpt.Transfers)
	return rcpt, nil
}

// refundsParticipants reports whether exiting positions get their in
// denom back instead of their purchase.
func refundsParticipants(s *stream.Stream) bool {
	switch s.Status {
	case stream.StatusCancelled, stream.StatusFinalizedThresholdNotReached:
		return true
	case stream.StatusEnded:
		return !s.ThresholdReached()
	default:
		return false
	}
}

// UpdateStream syncs the stream's accumulators up to now.
func (e *Engine) UpdateStream(ctx context.Context, now time.Time, cmd UpdateStream) (*Receipt, error) {
	var diff math.LegacyDec
	rcpt, err := e.apply(ctx, stream.OpUpdateStream, cmd.StreamID, now, func(s *stream.Stream) (*Receipt, error) {
		if err := s.Require(stream.OpUpdateStream, now,
			stream.StatusWaiting, stream.StatusBootstrapping, stream.StatusActive, stream.StatusEnded,
		); err != nil {
			return nil, err
		}
		var err error
		if diff, err = s.Sync(now); err != nil {
			return nil, err
		}
		return newReceipt(), nil
	})
	if err != nil {
		return nil, err
	}

	e.plugins.EmitStreamUpdated(ctx, rcpt.Stream, diff)
	return rcpt, nil
}

// ──────────────────────────────────────────────────
// Creator operations
// ──────────────────────────────────────────────────

// Finalize closes an ended stream. A successful stream pays the creator its
// revenue net of the exit fee and returns any unreleased out denom; a stream
// below its threshold returns the whole out asset to the creator.
func (e *Engine) Finalize(ctx context.Context, now time.Time, cmd Finalize) (*Receipt, error) {
	rcpt, err := e.apply(ctx, stream.OpFinalize, cmd.StreamID, now, func(s *stream.Stream) (*Receipt, error) {
		if cmd.Sender != s.Creator {
			return nil, errorsmod.Wrapf(ErrUnauthorized, "only the creator can finalize")
		}
		if err := s.Finalize(now); err != nil {
			return nil, err
		}
		if cmd.NewPayoutTarget != "" {
			s.Creator = cmd.NewPayoutTarget
		}

		rcpt := newReceipt()
		if s.Status == stream.StatusFinalizedThresholdNotReached {
			rcpt.Transfers = appendTransfer(s, types.TransferOutRefund, s.Creator, s.OutAsset, nil)
			return rcpt, nil
		}

		fee := math.ZeroInt()
		if e.feeCollector != "" {
			fee = fixedpoint.CeilMul(s.SpentIn, s.ExitFeePercent)
		}
		revenue, err := fixedpoint.Sub(s.SpentIn, fee)
		if err != nil {
			return nil, err
		}
		rcpt.Transfers = appendTransfer(s, types.TransferCreatorRevenue, s.Creator, types.NewCoin(s.InDenom, revenue), rcpt.Transfers)
		rcpt.Transfers = appendTransfer(s, types.TransferFee, e.feeCollector, types.NewCoin(s.InDenom, fee), rcpt.Transfers)
		rcpt.Transfers = appendTransfer(s, types.TransferOutRefund, s.Creator, types.NewCoin(s.OutAsset.Denom, s.OutRemaining), rcpt.Transfers)
		return rcpt, nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("stream finalized",
		"stream_id", rcpt.StreamID.String(),
		"status", string(rcpt.Status),
		"spent_in", rcpt.Stream.SpentIn.String(),
		"out_remaining", rcpt.Stream.OutRemaining.String(),
	)
	e.plugins.EmitStreamFinalized(ctx, rcpt.Stream, rcpt.Transfers)
	return rcpt, nil
}

// CancelWithThreshold cancels an ended stream that missed its threshold and
// returns the out asset to the creator.
func (e *Engine) CancelWithThreshold(ctx context.Context, now time.Time, cmd CancelWithThreshold) (*Receipt, error) {
	rcpt, err := e.apply(ctx, stream.OpCancelWithThreshold, cmd.StreamID, now, func(s *stream.Stream) (*Receipt, error) {
		if cmd.Sender != s.Creator {
			return nil, errorsmod.Wrapf(ErrUnauthorized, "only the creator can cancel below threshold")
		}
		if err := s.CancelWithThreshold(now); err != nil {
			return nil, err
		}
		rcpt := newReceipt()
		rcpt.Transfers = appendTransfer(s, types.TransferOutRefund, s.Creator, s.OutAsset, nil)
		return rcpt, nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("stream cancelled below threshold", "stream_id", rcpt.StreamID.String())
	e.plugins.EmitStreamCanceled(ctx, rcpt.Stream, rcpt.Transfers)
	return rcpt, nil
}

// ──────────────────────────────────────────────────
// Admin operations
// ──────────────────────────────────────────────────

func (e *Engine) requireAdmin(sender string) error {
	if e.admin == "" || sender != e.admin {
		return errorsmod.Wrapf(ErrUnauthorized, "%q is not the admin", sender)
	}
	return nil
}

// Pause freezes an active stream after syncing it.
func (e *Engine) Pause(ctx context.Context, now time.Time, cmd Pause) (*Receipt, error) {
	rcpt, err := e.apply(ctx, stream.OpPause, cmd.StreamID, now, func(s *stream.Stream) (*Receipt, error) {
		if err := e.requireAdmin(cmd.Sender); err != nil {
			return nil, err
		}
		if err := s.Pause(now); err != nil {
			return nil, err
		}
		return newReceipt(), nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("stream paused", "stream_id", rcpt.StreamID.String(), "at", now)
	e.plugins.EmitStreamPaused(ctx, rcpt.Stream)
	return rcpt, nil
}

// Resume unfreezes a paused stream, extending its window by the pause.
func (e *Engine) Resume(ctx context.Context, now time.Time, cmd Resume) (*Receipt, error) {
	rcpt, err := e.apply(ctx, stream.OpResume, cmd.StreamID, now, func(s *stream.Stream) (*Receipt, error) {
		if err := e.requireAdmin(cmd.Sender); err != nil {
			return nil, err
		}
		if err := s.Resume(now); err != nil {
			return nil, err
		}
		return newReceipt(), nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("stream resumed",
		"stream_id", rcpt.StreamID.String(),
		"end", rcpt.Stream.EndTime,
	)
	e.plugins.EmitStreamResumed(ctx, rcpt.Stream)
	return rcpt, nil
}

// Cancel terminates a paused stream and returns the out asset to the creator.
func (e *Engine) Cancel(ctx context.Context, now time.Time, cmd Cancel) (*Receipt, error) {
	rcpt, err := e.apply(ctx, stream.OpCancel, cmd.StreamID, now, func(s *stream.Stream) (*Receipt, error) {
		if err := e.requireAdmin(cmd.Sender); err != nil {
			return nil, err
		}
		if err := s.Cancel(); err != nil {
			return nil, err
		}
		rcpt := newReceipt()
		rcpt.Transfers = appendTransfer(s, types.TransferOutRefund, s.Creator, s.OutAsset, nil)
		return rcpt, nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("stream cancelled", "stream_id", rcpt.StreamID.String())
	e.plugins.EmitStreamCanceled(ctx, rcpt.Stream, rcpt.Transfers)
	return rcpt, nil
}
