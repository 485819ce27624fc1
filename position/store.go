package position

import (
	"context"

	"github.com/xraph/streamswap/id"
)

type Store interface {
	GetPosition(ctx context.Context, streamID id.StreamID, owner string) (*Position, error)
	ListPositions(ctx context.Context, streamID id.StreamID, opts ListOpts) ([]*Position, error)
}

type ListOpts struct {
	// IncludeExited also returns positions that have left the stream.
	IncludeExited bool
	Limit         int
	Offset        int
}
