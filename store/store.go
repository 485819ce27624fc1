// Package store defines the persistence contract of the streamswap engine.
package store

import (
	"context"

	"github.com/xraph/streamswap/id"
	"github.com/xraph/streamswap/position"
	"github.com/xraph/streamswap/stream"
)

// Store is the unified storage interface for streams and positions.
// Methods are declared explicitly rather than by embedding the domain
// sub-interfaces so every backend lists its whole surface in one place.
type Store interface {
	// Stream methods
	CreateStream(ctx context.Context, s *stream.Stream) error
	GetStream(ctx context.Context, streamID id.StreamID) (*stream.Stream, error)
	UpdateStream(ctx context.Context, s *stream.Stream) error
	ListStreams(ctx context.Context, opts stream.ListOpts) ([]*stream.Stream, error)

	// Position methods
	GetPosition(ctx context.Context, streamID id.StreamID, owner string) (*position.Position, error)
	ListPositions(ctx context.Context, streamID id.StreamID, opts position.ListOpts) ([]*position.Position, error)

	// SaveState persists s and, when non-nil, p in one atomic write. Either
	// both are stored or neither is.
	SaveState(ctx context.Context, s *stream.Stream, p *position.Position) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ stream.Store   = Store(nil)
	_ position.Store = Store(nil)
)
