package stream

import (
	"context"

	errorsmod "cosmossdk.io/errors"

	"github.com/xraph/streamswap/id"
)

type Store interface {
	CreateStream(ctx context.Context, s *Stream) error
	GetStream(ctx context.Context, streamID id.StreamID) (*Stream, error)
	UpdateStream(ctx context.Context, s *Stream) error
	ListStreams(ctx context.Context, opts ListOpts) ([]*Stream, error)
}

type ListOpts struct {
	// Status filters on the persisted status. Stores only accept sticky
	// statuses here: waiting, bootstrapping, active and ended depend on the
	// clock and are resolved by the engine.
	Status  Status
	Creator string
	Limit   int
	Offset  int
}

// Validate rejects status filters a store cannot answer from persisted rows.
func (o ListOpts) Validate() error {
	if o.Status == "" {
		return nil
	}
	if !o.Status.Valid() {
		return errorsmod.Wrapf(ErrInvalidInput, "unknown status %q", o.Status)
	}
	if !o.Status.IsSticky() {
		return errorsmod.Wrapf(ErrInvalidInput, "status %s depends on time and cannot be filtered in storage", o.Status)
	}
	return nil
}
