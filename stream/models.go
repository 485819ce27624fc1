package stream

import (
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"

	"github.com/xraph/streamswap/id"
	"github.com/xraph/streamswap/types"
)

// Stream is a bounded-window sale of OutAsset for InDenom.
type Stream struct {
	types.Entity
	ID      id.StreamID `json:"id"`
	Name    string      `json:"name"`
	URL     string      `json:"url,omitempty"`
	Creator string      `json:"creator"`

	OutAsset     types.Coin `json:"out_asset"`
	OutRemaining math.Int   `json:"out_remaining"`
	InDenom      string     `json:"in_denom"`
	InSupply     math.Int   `json:"in_supply"`
	SpentIn      math.Int   `json:"spent_in"`
	Shares       math.Int   `json:"shares"`

	DistIndex            math.LegacyDec `json:"dist_index"`
	CurrentStreamedPrice math.LegacyDec `json:"current_streamed_price"`

	StartTime              time.Time  `json:"start_time"`
	EndTime                time.Time  `json:"end_time"`
	LastUpdated            time.Time  `json:"last_updated"`
	BootstrappingStartTime *time.Time `json:"bootstrapping_start_time,omitempty"`
	PauseDate              *time.Time `json:"pause_date,omitempty"`

	Threshold      *math.Int      `json:"threshold,omitempty"`
	Status         Status         `json:"status"`
	ExitFeePercent math.LegacyDec `json:"exit_fee_percent"`
}

// Params describes a stream to create.
type Params struct {
	Name                   string
	URL                    string
	Creator                string
	OutAsset               types.Coin
	InDenom                string
	StartTime              time.Time
	EndTime                time.Time
	BootstrappingStartTime *time.Time
	Threshold              *math.Int
	ExitFeePercent         math.LegacyDec
}

// New validates p against now and returns a fresh stream.
func New(now time.Time, p Params) (*Stream, error) {
	if err := p.validate(now); err != nil {
		return nil, err
	}

	s := &Stream{
		Entity:                 types.NewEntity(now),
		ID:                     id.NewStreamID(),
		Name:                   p.Name,
		URL:                    p.URL,
		Creator:                p.Creator,
		OutAsset:               p.OutAsset,
		OutRemaining:           p.OutAsset.Amount,
		InDenom:                p.InDenom,
		InSupply:               math.ZeroInt(),
		SpentIn:                math.ZeroInt(),
		Shares:                 math.ZeroInt(),
		DistIndex:              math.LegacyZeroDec(),
		CurrentStreamedPrice:   math.LegacyZeroDec(),
		StartTime:              p.StartTime.UTC(),
		EndTime:                p.EndTime.UTC(),
		LastUpdated:            p.StartTime.UTC(),
		BootstrappingStartTime: copyTime(p.BootstrappingStartTime),
		ExitFeePercent:         p.ExitFeePercent,
	}
	if s.ExitFeePercent.IsNil() {
		s.ExitFeePercent = math.LegacyZeroDec()
	}
	if p.Threshold != nil {
		if err := s.SetThreshold(*p.Threshold); err != nil {
			return nil, err
		}
	}
	s.Status = DeriveStatus(s, now)

	return s, nil
}

func (p Params) validate(now time.Time) error {
	if p.Creator == "" {
		return errorsmod.Wrap(ErrInvalidInput, "creator is required")
	}
	if err := p.OutAsset.Validate(); err != nil {
		return errorsmod.Wrap(ErrInvalidInput, err.Error())
	}
	if !p.OutAsset.IsPositive() {
		return errorsmod.Wrap(ErrInvalidInput, "out asset amount must be positive")
	}
	if err := types.ValidateDenom(p.InDenom); err != nil {
		return errorsmod.Wrap(ErrInvalidInput, err.Error())
	}
	if p.InDenom == p.OutAsset.Denom {
		return errorsmod.Wrap(ErrInvalidInput, "in and out denoms must differ")
	}
	if p.StartTime.Before(now) {
		return errorsmod.Wrap(ErrInvalidInput, "start time is in the past")
	}
	if !p.EndTime.After(p.StartTime) {
		return errorsmod.Wrap(ErrInvalidInput, "end time must be after start time")
	}
	if b := p.BootstrappingStartTime; b != nil {
		if b.Before(now) {
			return errorsmod.Wrap(ErrInvalidInput, "bootstrapping start time is in the past")
		}
		if !b.Before(p.StartTime) {
			return errorsmod.Wrap(ErrInvalidInput, "bootstrapping start time must be before start time")
		}
	}
	if !p.ExitFeePercent.IsNil() && (p.ExitFeePercent.IsNegative() || p.ExitFeePercent.GTE(math.LegacyOneDec())) {
		return errorsmod.Wrap(ErrInvalidInput, "exit fee percent must be in [0, 1)")
	}
	return nil
}

// Clone returns a deep copy. Int and LegacyDec values are immutable under
// the operations used here, so only the pointer fields need copying.
func (s *Stream) Clone() *Stream {
	c := *s
	c.BootstrappingStartTime = copyTime(s.BootstrappingStartTime)
	c.PauseDate = copyTime(s.PauseDate)
	if s.Threshold != nil {
		t := *s.Threshold
		c.Threshold = &t
	}
	return &c
}

// Released is the out amount distributed so far.
func (s *Stream) Released() math.Int {
	return s.OutAsset.Amount.Sub(s.OutRemaining)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
