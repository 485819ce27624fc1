package stream

import (
	"time"

	errorsmod "cosmossdk.io/errors"
)

// Operation names used in ErrOperationNotAllowed messages.
const (
	OpSubscribe           = "subscribe"
	OpWithdraw            = "withdraw"
	OpUpdateStream        = "update_stream"
	OpUpdatePosition      = "update_position"
	OpUpdateOperator      = "update_operator"
	OpExit                = "exit"
	OpFinalize            = "finalize"
	OpPause               = "pause"
	OpResume              = "resume"
	OpCancel              = "cancel"
	OpCancelWithThreshold = "cancel_with_threshold"
)

// Pause syncs the stream up to now and freezes it.
func (s *Stream) Pause(now time.Time) error {
	if err := s.Require(OpPause, now, StatusActive); err != nil {
		return err
	}
	if _, err := s.Sync(now); err != nil {
		return err
	}
	at := now.UTC()
	s.PauseDate = &at
	s.Status = StatusPaused
	return nil
}

// Resume unfreezes a paused stream. EndTime and LastUpdated shift forward by
// the paused duration so the remaining distribution is unchanged.
func (s *Stream) Resume(now time.Time) error {
	if s.Status != StatusPaused || s.PauseDate == nil {
		return NotAllowed(OpResume, s.Status)
	}
	paused := now.Sub(*s.PauseDate)
	if paused < 0 {
		return errorsmod.Wrapf(ErrInvalidInput, "resume at %s precedes pause at %s", now, s.PauseDate)
	}
	s.EndTime = s.EndTime.Add(paused)
	s.LastUpdated = s.LastUpdated.Add(paused)
	s.PauseDate = nil
	s.Status = StatusActive
	s.Status = DeriveStatus(s, now)
	return nil
}

// Cancel is the admin killswitch. Only a paused stream can be cancelled.
func (s *Stream) Cancel() error {
	if s.Status != StatusPaused {
		return NotAllowed(OpCancel, s.Status)
	}
	s.Status = StatusCancelled
	return nil
}

// CancelWithThreshold cancels an ended stream that missed its threshold.
func (s *Stream) CancelWithThreshold(now time.Time) error {
	if err := s.Require(OpCancelWithThreshold, now, StatusEnded); err != nil {
		return err
	}
	if s.Threshold == nil {
		return errorsmod.Wrap(ErrThresholdNotSet, OpCancelWithThreshold)
	}
	if _, err := s.Sync(now); err != nil {
		return err
	}
	if err := ErrorIfReached(s); err != nil {
		return err
	}
	s.Status = StatusCancelled
	return nil
}

// Finalize closes an ended stream after a final sync. A stream that missed
// its threshold finalizes into the refund path instead of failing.
func (s *Stream) Finalize(now time.Time) error {
	if err := s.Require(OpFinalize, now, StatusEnded); err != nil {
		return err
	}
	if _, err := s.Sync(now); err != nil {
		return err
	}
	if ErrorIfNotReached(s) != nil {
		s.Status = StatusFinalizedThresholdNotReached
	} else {
		s.Status = StatusFinalizedThresholdReached
	}
	return nil
}
