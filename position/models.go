package position

import (
	"time"

	"cosmossdk.io/math"

	"github.com/xraph/streamswap/id"
	"github.com/xraph/streamswap/types"
)

// Position is one participant's stake in a stream.
type Position struct {
	types.Entity
	ID       id.PositionID `json:"id"`
	StreamID id.StreamID   `json:"stream_id"`
	Owner    string        `json:"owner"`
	Operator string        `json:"operator,omitempty"`

	InBalance math.Int `json:"in_balance"`
	Shares    math.Int `json:"shares"`
	Purchased math.Int `json:"purchased"`
	Spent     math.Int `json:"spent"`

	Index           math.LegacyDec `json:"index"`
	PendingPurchase math.LegacyDec `json:"pending_purchase"`

	LastUpdated time.Time  `json:"last_updated"`
	ExitDate    *time.Time `json:"exit_date,omitempty"`
}

// New opens an empty position at the stream's current index so it has no
// claim on anything distributed before it joined.
func New(streamID id.StreamID, owner, operator string, index math.LegacyDec, now time.Time) *Position {
	return &Position{
		Entity:          types.NewEntity(now),
		ID:              id.NewPositionID(),
		StreamID:        streamID,
		Owner:           owner,
		Operator:        operator,
		InBalance:       math.ZeroInt(),
		Shares:          math.ZeroInt(),
		Purchased:       math.ZeroInt(),
		Spent:           math.ZeroInt(),
		Index:           index,
		PendingPurchase: math.LegacyZeroDec(),
		LastUpdated:     now.UTC(),
	}
}

// Clone returns a deep copy.
func (p *Position) Clone() *Position {
	c := *p
	if p.ExitDate != nil {
		t := *p.ExitDate
		c.ExitDate = &t
	}
	return &c
}

// IsExited reports whether the position has been settled out.
func (p *Position) IsExited() bool { return p.ExitDate != nil }

// Authorized reports whether sender may act on the position.
func (p *Position) Authorized(sender string) bool {
	return sender != "" && (sender == p.Owner || (p.Operator != "" && sender == p.Operator))
}
