package postgres

import (
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/xraph/grove"

	"github.com/xraph/streamswap/id"
	"github.com/xraph/streamswap/position"
	"github.com/xraph/streamswap/stream"
	"github.com/xraph/streamswap/types"
)

// Amounts are stored as decimal TEXT since they exceed 64 bits. Times are
// stored as unix nanoseconds so accrual keeps full precision.

// ==================== Stream models ====================

type streamModel struct {
	grove.BaseModel `grove:"table:streamswap_streams"`

	ID                     string  `grove:"id,pk"`
	Name                   string  `grove:"name"`
	URL                    string  `grove:"url"`
	Creator                string  `grove:"creator"`
	OutDenom               string  `grove:"out_denom"`
	OutAmount              string  `grove:"out_amount"`
	OutRemaining           string  `grove:"out_remaining"`
	InDenom                string  `grove:"in_denom"`
	InSupply               string  `grove:"in_supply"`
	SpentIn                string  `grove:"spent_in"`
	Shares                 string  `grove:"shares"`
	DistIndex              string  `grove:"dist_index"`
	CurrentStreamedPrice   string  `grove:"current_streamed_price"`
	StartTime              int64   `grove:"start_time"`
	EndTime                int64   `grove:"end_time"`
	LastUpdated            int64   `grove:"last_updated"`
	BootstrappingStartTime *int64  `grove:"bootstrapping_start_time"`
	PauseDate              *int64  `grove:"pause_date"`
	Threshold              *string `grove:"threshold"`
	Status                 string  `grove:"status"`
	ExitFeePercent         string  `grove:"exit_fee_percent"`
	CreatedAt              int64   `grove:"created_at"`
	UpdatedAt              int64   `grove:"updated_at"`
}

func toStreamModel(s *stream.Stream) *streamModel {
	m := &streamModel{
		ID:                     s.ID.String(),
		Name:                   s.Name,
		URL:                    s.URL,
		Creator:                s.Creator,
		OutDenom:               s.OutAsset.Denom,
		OutAmount:              s.OutAsset.Amount.String(),
		OutRemaining:           s.OutRemaining.String(),
		InDenom:                s.InDenom,
		InSupply:               s.InSupply.String(),
		SpentIn:                s.SpentIn.String(),
		Shares:                 s.Shares.String(),
		DistIndex:              s.DistIndex.String(),
		CurrentStreamedPrice:   s.CurrentStreamedPrice.String(),
		StartTime:              s.StartTime.UnixNano(),
		EndTime:                s.EndTime.UnixNano(),
		LastUpdated:            s.LastUpdated.UnixNano(),
		BootstrappingStartTime: toNanos(s.BootstrappingStartTime),
		PauseDate:              toNanos(s.PauseDate),
		Status:                 string(s.Status),
		ExitFeePercent:         s.ExitFeePercent.String(),
		CreatedAt:              s.CreatedAt.UnixNano(),
		UpdatedAt:              s.UpdatedAt.UnixNano(),
	}
	if s.Threshold != nil {
		v := s.Threshold.String()
		m.Threshold = &v
	}
	return m
}

func fromStreamModel(m *streamModel) (*stream.Stream, error) {
	streamID, err := id.ParseStreamID(m.ID)
	if err != nil {
		return nil, err
	}

	var d decoder
	s := &stream.Stream{
		Entity: types.Entity{
			CreatedAt: fromNanos(m.CreatedAt),
			UpdatedAt: fromNanos(m.UpdatedAt),
		},
		ID:                     streamID,
		Name:                   m.Name,
		URL:                    m.URL,
		Creator:                m.Creator,
		OutAsset:               types.NewCoin(m.OutDenom, d.int("out_amount", m.OutAmount)),
		OutRemaining:           d.int("out_remaining", m.OutRemaining),
		InDenom:                m.InDenom,
		InSupply:               d.int("in_supply", m.InSupply),
		SpentIn:                d.int("spent_in", m.SpentIn),
		Shares:                 d.int("shares", m.Shares),
		DistIndex:              d.dec("dist_index", m.DistIndex),
		CurrentStreamedPrice:   d.dec("current_streamed_price", m.CurrentStreamedPrice),
		StartTime:              fromNanos(m.StartTime),
		EndTime:                fromNanos(m.EndTime),
		LastUpdated:            fromNanos(m.LastUpdated),
		BootstrappingStartTime: fromNanosPtr(m.BootstrappingStartTime),
		PauseDate:              fromNanosPtr(m.PauseDate),
		Status:                 stream.Status(m.Status),
		ExitFeePercent:         d.dec("exit_fee_percent", m.ExitFeePercent),
	}
	if m.Threshold != nil {
		v := d.int("threshold", *m.Threshold)
		s.Threshold = &v
	}
	if d.err != nil {
		return nil, fmt.Errorf("streamswap/postgres: stream %s: %w", m.ID, d.err)
	}
	return s, nil
}

// ==================== Position models ====================

type positionModel struct {
	grove.BaseModel `grove:"table:streamswap_positions"`

	ID              string `grove:"id,pk"`
	StreamID        string `grove:"stream_id"`
	Owner           string `grove:"owner"`
	Operator        string `grove:"operator"`
	InBalance       string `grove:"in_balance"`
	Shares          string `grove:"shares"`
	Purchased       string `grove:"purchased"`
	Spent           string `grove:"spent"`
	Index           string `grove:"dist_index"`
	PendingPurchase string `grove:"pending_purchase"`
	LastUpdated     int64  `grove:"last_updated"`
	ExitDate        *int64 `grove:"exit_date"`
	CreatedAt       int64  `grove:"created_at"`
	UpdatedAt       int64  `grove:"updated_at"`
}

func toPositionModel(p *position.Position) *positionModel {
	return &positionModel{
		ID:              p.ID.String(),
		StreamID:        p.StreamID.String(),
		Owner:           p.Owner,
		Operator:        p.Operator,
		InBalance:       p.InBalance.String(),
		Shares:          p.Shares.String(),
		Purchased:       p.Purchased.String(),
		Spent:           p.Spent.String(),
		Index:           p.Index.String(),
		PendingPurchase: p.PendingPurchase.String(),
		LastUpdated:     p.LastUpdated.UnixNano(),
		ExitDate:        toNanos(p.ExitDate),
		CreatedAt:       p.CreatedAt.UnixNano(),
		UpdatedAt:       p.UpdatedAt.UnixNano(),
	}
}

func fromPositionModel(m *positionModel) (*position.Position, error) {
	posID, err := id.ParsePositionID(m.ID)
	if err != nil {
		return nil, err
	}
	streamID, err := id.ParseStreamID(m.StreamID)
	if err != nil {
		return nil, err
	}

	var d decoder
	p := &position.Position{
		Entity: types.Entity{
			CreatedAt: fromNanos(m.CreatedAt),
			UpdatedAt: fromNanos(m.UpdatedAt),
		},
		ID:              posID,
		StreamID:        streamID,
		Owner:           m.Owner,
		Operator:        m.Operator,
		InBalance:       d.int("in_balance", m.InBalance),
		Shares:          d.int("shares", m.Shares),
		Purchased:       d.int("purchased", m.Purchased),
		Spent:           d.int("spent", m.Spent),
		Index:           d.dec("dist_index", m.Index),
		PendingPurchase: d.dec("pending_purchase", m.PendingPurchase),
		LastUpdated:     fromNanos(m.LastUpdated),
		ExitDate:        fromNanosPtr(m.ExitDate),
	}
	if d.err != nil {
		return nil, fmt.Errorf("streamswap/postgres: position %s: %w", m.ID, d.err)
	}
	return p, nil
}

// ==================== Helpers ====================

// decoder parses stored amounts and keeps the first failure.
type decoder struct{ err error }

func (d *decoder) int(column, v string) math.Int {
	n, ok := math.NewIntFromString(v)
	if !ok {
		if d.err == nil {
			d.err = fmt.Errorf("column %s: invalid integer %q", column, v)
		}
		return math.ZeroInt()
	}
	return n
}

func (d *decoder) dec(column, v string) math.LegacyDec {
	n, err := math.LegacyNewDecFromStr(v)
	if err != nil {
		if d.err == nil {
			d.err = fmt.Errorf("column %s: %w", column, err)
		}
		return math.LegacyZeroDec()
	}
	return n
}

func toNanos(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	v := t.UnixNano()
	return &v
}

func fromNanos(v int64) time.Time {
	return time.Unix(0, v).UTC()
}

func fromNanosPtr(v *int64) *time.Time {
	if v == nil {
		return nil
	}
	t := fromNanos(*v)
	return &t
}
