package mongo

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

// Amounts are kept as decimal strings: Decimal128 tops out at 34 digits.
// Times are unix nanoseconds since BSON dates stop at milliseconds.

// ==================== Stream models ====================

type streamModel struct {
	grove.BaseModel `grove:"table:streamswap_streams"`

	ID                     string  `grove:"id,pk"                    bson:"_id"`
	Name                   string  `grove:"name"                     bson:"name"`
	URL                    string  `grove:"url"                      bson:"url"`
	Creator                string  `grove:"creator"                  bson:"creator"`
	OutDenom               string  `grove:"out_denom"                bson:"out_denom"`
	OutAmount              string  `grove:"out_amount"               bson:"out_amount"`
	OutRemaining           string  `grove:"out_remaining"            bson:"out_remaining"`
	InDenom                string  `grove:"in_denom"                 bson:"in_denom"`
	InSupply               string  `grove:"in_supply"                bson:"in_supply"`
	SpentIn                string  `grove:"spent_in"                 bson:"spent_in"`
	Shares                 string  `grove:"shares"                   bson:"shares"`
	DistIndex              string  `grove:"dist_index"               bson:"dist_index"`
	CurrentStreamedPrice   string  `grove:"current_streamed_price"   bson:"current_streamed_price"`
	StartTime              int64   `grove:"start_time"               bson:"start_time"`
	EndTime                int64   `grove:"end_time"                 bson:"end_time"`
	LastUpdated            int64   `grove:"last_updated"             bson:"last_updated"`
	BootstrappingStartTime *int64  `grove:"bootstrapping_start_time" bson:"bootstrapping_start_time"`
	PauseDate              *int64  `grove:"pause_date"               bson:"pause_date"`
	Threshold              *string `grove:"threshold"                bson:"threshold"`
	Status                 string  `grove:"status"                   bson:"status"`
	ExitFeePercent         string  `grove:"exit_fee_percent"         bson:"exit_fee_percent"`
	CreatedAt              int64   `grove:"created_at"               bson:"created_at"`
	UpdatedAt              int64   `grove:"updated_at"               bson:"updated_at"`
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
		return nil, fmt.Errorf("streamswap/mongo: stream %s: %w", m.ID, d.err)
	}
	return s, nil
}

// ==================== Position models ====================

type positionModel struct {
	grove.BaseModel `grove:"table:streamswap_positions"`

	ID              string `grove:"id,pk"            bson:"_id"`
	StreamID        string `grove:"stream_id"        bson:"stream_id"`
	Owner           string `grove:"owner"            bson:"owner"`
	Operator        string `grove:"operator"         bson:"operator"`
	InBalance       string `grove:"in_balance"       bson:"in_balance"`
	Shares          string `grove:"shares"           bson:"shares"`
	Purchased       string `grove:"purchased"        bson:"purchased"`
	Spent           string `grove:"spent"            bson:"spent"`
	Index           string `grove:"dist_index"       bson:"dist_index"`
	PendingPurchase string `grove:"pending_purchase" bson:"pending_purchase"`
	LastUpdated     int64  `grove:"last_updated"     bson:"last_updated"`
	ExitDate        *int64 `grove:"exit_date"        bson:"exit_date"`
	CreatedAt       int64  `grove:"created_at"       bson:"created_at"`
	UpdatedAt       int64  `grove:"updated_at"       bson:"updated_at"`
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
		return nil, fmt.Errorf("streamswap/mongo: position %s: %w", m.ID, d.err)
	}
	return p, nil
}

// ==================== Helpers ====================

type decoder struct{ err error }

func (d *decoder) int(field, v string) math.Int {
	n, ok := math.NewIntFromString(v)
	if !ok {
		if d.err == nil {
			d.err = fmt.Errorf("field %s: invalid integer %q", field, v)
		}
		return math.ZeroInt()
	}
	return n
}

func (d *decoder) dec(field, v string) math.LegacyDec {
	n, err := math.LegacyNewDecFromStr(v)
	if err != nil {
		if d.err == nil {
			d.err = fmt.Errorf("field %s: %w", field, err)
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
