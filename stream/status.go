package stream

import (
	"slices"
	"time"

	errorsmod "cosmossdk.io/errors"
)

// Status is the lifecycle state of a stream.
type Status string

const (
	StatusWaiting                      Status = "waiting"
	StatusBootstrapping                Status = "bootstrapping"
	StatusActive                       Status = "active"
	StatusEnded                        Status = "ended"
	StatusPaused                       Status = "paused"
	StatusCancelled                    Status = "cancelled"
	StatusFinalizedThresholdReached    Status = "finalized_threshold_reached"
	StatusFinalizedThresholdNotReached Status = "finalized_threshold_not_reached"
)

// IsFinalized reports whether the stream has been finalized either way.
func (s Status) IsFinalized() bool {
	return s == StatusFinalizedThresholdReached || s == StatusFinalizedThresholdNotReached
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s.IsFinalized()
}

// IsSticky reports whether the status was set by an explicit transition and
// therefore survives the passage of time.
func (s Status) IsSticky() bool {
	return s == StatusPaused || s.IsTerminal()
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusBootstrapping, StatusActive, StatusEnded, StatusPaused,
		StatusCancelled, StatusFinalizedThresholdReached, StatusFinalizedThresholdNotReached:
		return true
	default:
		return false
	}
}

// DeriveStatus computes the status of s at now without mutating it. Sticky
// statuses are returned unchanged; everything else follows from the window.
func DeriveStatus(s *Stream, now time.Time) Status {
	if s.Status.IsSticky() {
		return s.Status
	}
	switch {
	case now.Before(s.StartTime):
		if b := s.BootstrappingStartTime; b != nil && !now.Before(*b) {
			return StatusBootstrapping
		}
		return StatusWaiting
	case now.Before(s.EndTime):
		return StatusActive
	default:
		return StatusEnded
	}
}

// Require refreshes the stored status at now and fails with
// ErrOperationNotAllowed unless it is one of allowed.
func (s *Stream) Require(op string, now time.Time, allowed ...Status) error {
	s.Status = DeriveStatus(s, now)
	if slices.Contains(allowed, s.Status) {
		return nil
	}
	return NotAllowed(op, s.Status)
}

// NotAllowed builds the error returned for an illegal transition.
func NotAllowed(op string, status Status) error {
	return errorsmod.Wrapf(ErrOperationNotAllowed, "%s: status %s", op, status)
}
