package stream

import (
	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
)

// ThresholdState is the query view of a stream's threshold.
type ThresholdState struct {
	Set       bool      `json:"set"`
	Threshold *math.Int `json:"threshold,omitempty"`
	SpentIn   math.Int  `json:"spent_in"`
	Reached   bool      `json:"reached"`
}

// NewThreshold validates v as a threshold. Zero is rejected; a stream
// without a threshold leaves the field unset instead.
func NewThreshold(v math.Int) (*math.Int, error) {
	if v.IsNil() || v.IsZero() {
		return nil, ErrZeroThreshold
	}
	if v.IsNegative() {
		return nil, errorsmod.Wrapf(ErrInvalidInput, "negative threshold %s", v)
	}
	return &v, nil
}

// SetThreshold sets the minimum SpentIn for the stream to succeed.
func (s *Stream) SetThreshold(v math.Int) error {
	t, err := NewThreshold(v)
	if err != nil {
		return err
	}
	s.Threshold = t
	return nil
}

// ThresholdReached reports whether the stream met its threshold. A stream
// without one always has.
func (s *Stream) ThresholdReached() bool {
	return s.Threshold == nil || s.SpentIn.GTE(*s.Threshold)
}

// ThresholdState returns the threshold view as of LastUpdated.
func (s *Stream) ThresholdState() ThresholdState {
	st := ThresholdState{
		Set:     s.Threshold != nil,
		SpentIn: s.SpentIn,
		Reached: s.ThresholdReached(),
	}
	if s.Threshold != nil {
		t := *s.Threshold
		st.Threshold = &t
	}
	return st
}

// ErrorIfNotReached fails when a threshold is set and SpentIn is below it.
func ErrorIfNotReached(s *Stream) error {
	if s.Threshold != nil && s.SpentIn.LT(*s.Threshold) {
		return errorsmod.Wrapf(ErrThresholdNotReached, "spent %s of %s", s.SpentIn, s.Threshold)
	}
	return nil
}

// ErrorIfReached fails when a threshold is set and SpentIn has met it.
func ErrorIfReached(s *Stream) error {
	if s.Threshold != nil && s.SpentIn.GTE(*s.Threshold) {
		return errorsmod.Wrapf(ErrThresholdReached, "spent %s of %s", s.SpentIn, s.Threshold)
	}
	return nil
}
