// Package plugin provides the extension points of the streamswap engine.
// Plugins implement any subset of the hook interfaces below and are
// discovered by type assertion when registered.
//
// Hooks run after the operation has been committed. A failing or slow hook
// is logged and never rolls the operation back.
package plugin

import (
	"context"

	"cosmossdk.io/math"

	"github.com/xraph/streamswap/position"
	"github.com/xraph/streamswap/stream"
	"github.com/xraph/streamswap/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Stream hooks
// ──────────────────────────────────────────────────

// OnStreamCreated is called when a stream is created.
type OnStreamCreated interface {
	Plugin
	OnStreamCreated(ctx context.Context, s *stream.Stream) error
}

// OnStreamUpdated is called after an explicit stream sync.
type OnStreamUpdated interface {
	Plugin
	OnStreamUpdated(ctx context.Context, s *stream.Stream, diff math.LegacyDec) error
}

// OnStreamPaused is called when the admin pauses a stream.
type OnStreamPaused interface {
	Plugin
	OnStreamPaused(ctx context.Context, s *stream.Stream) error
}

// OnStreamResumed is called when the admin resumes a stream.
type OnStreamResumed interface {
	Plugin
	OnStreamResumed(ctx context.Context, s *stream.Stream) error
}

// OnStreamCanceled is called when a stream is cancelled by the admin or
// through the threshold path.
type OnStreamCanceled interface {
	Plugin
	OnStreamCanceled(ctx context.Context, s *stream.Stream, transfers []types.Transfer) error
}

// OnStreamFinalized is the post-finalize hook. Pool creation, vesting and
// similar follow-ups hang off it.
type OnStreamFinalized interface {
	Plugin
	OnStreamFinalized(ctx context.Context, s *stream.Stream, transfers []types.Transfer) error
}

// ──────────────────────────────────────────────────
// Position hooks
// ──────────────────────────────────────────────────

// OnSubscribed is called after amount was deposited into a position.
type OnSubscribed interface {
	Plugin
	OnSubscribed(ctx context.Context, s *stream.Stream, p *position.Position, amount math.Int) error
}

// OnWithdrawn is called after amount was withdrawn from a position.
type OnWithdrawn interface {
	Plugin
	OnWithdrawn(ctx context.Context, s *stream.Stream, p *position.Position, amount math.Int) error
}

// OnPositionUpdated is called after a position was settled explicitly or
// had its operator changed.
type OnPositionUpdated interface {
	Plugin
	OnPositionUpdated(ctx context.Context, s *stream.Stream, p *position.Position, purchased, spent math.Int) error
}

// OnPositionExited is called after a position left the stream.
type OnPositionExited interface {
	Plugin
	OnPositionExited(ctx context.Context, s *stream.Stream, p *position.Position, transfers []types.Transfer) error
}

// ──────────────────────────────────────────────────
// Failure hooks
// ──────────────────────────────────────────────────

// OnOperationRejected is called when a command fails. Nothing was persisted.
type OnOperationRejected interface {
	Plugin
	OnOperationRejected(ctx context.Context, op string, streamID string, err error) error
}
