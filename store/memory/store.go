// Package memory provides an in-memory store for tests and single-process
// use. Values are deep-copied on the way in and out so callers can never
// alias stored state.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	errorsmod "cosmossdk.io/errors"

	"github.com/xraph/streamswap"
	"github.com/xraph/streamswap/id"
	"github.com/xraph/streamswap/position"
	"github.com/xraph/streamswap/store"
	"github.com/xraph/streamswap/stream"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu     sync.RWMutex
	closed bool

	// Stream storage
	streams map[string]*stream.Stream

	// Position storage, keyed by stream then owner
	positions map[string]map[string]*position.Position
}

func New() *Store {
	return &Store{
		streams:   make(map[string]*stream.Stream),
		positions: make(map[string]map[string]*position.Position),
	}
}

// Stream Store implementation
func (s *Store) CreateStream(_ context.Context, st *stream.Stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return streamswap.ErrStoreClosed
	}
	if _, exists := s.streams[st.ID.String()]; exists {
		return errorsmod.Wrapf(streamswap.ErrAlreadyExists, "stream %s", st.ID)
	}
	s.streams[st.ID.String()] = st.Clone()
	return nil
}

func (s *Store) GetStream(_ context.Context, streamID id.StreamID) (*stream.Stream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, streamswap.ErrStoreClosed
	}
	if st, ok := s.streams[streamID.String()]; ok {
		return st.Clone(), nil
	}
	return nil, errorsmod.Wrapf(streamswap.ErrStreamNotFound, "%s", streamID)
}

func (s *Store) UpdateStream(_ context.Context, st *stream.Stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return streamswap.ErrStoreClosed
	}
	if _, exists := s.streams[st.ID.String()]; !exists {
		return errorsmod.Wrapf(streamswap.ErrStreamNotFound, "%s", st.ID)
	}
	s.streams[st.ID.String()] = st.Clone()
	return nil
}

func (s *Store) ListStreams(_ context.Context, opts stream.ListOpts) ([]*stream.Stream, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, streamswap.ErrStoreClosed
	}

	result := make([]*stream.Stream, 0)
	for _, st := range s.streams {
		if opts.Status != "" && st.Status != opts.Status {
			continue
		}
		if opts.Creator != "" && st.Creator != opts.Creator {
			continue
		}
		result = append(result, st.Clone())
	}
	slices.SortFunc(result, func(a, b *stream.Stream) int {
		return strings.Compare(a.ID.String(), b.ID.String())
	})

	return page(result, opts.Offset, opts.Limit), nil
}

// Position Store implementation
func (s *Store) GetPosition(_ context.Context, streamID id.StreamID, owner string) (*position.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, streamswap.ErrStoreClosed
	}
	if p, ok := s.positions[streamID.String()][owner]; ok {
		return p.Clone(), nil
	}
	return nil, errorsmod.Wrapf(streamswap.ErrPositionNotFound, "%s/%s", streamID, owner)
}

func (s *Store) ListPositions(_ context.Context, streamID id.StreamID, opts position.ListOpts) ([]*position.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, streamswap.ErrStoreClosed
	}

	result := make([]*position.Position, 0)
	for _, p := range s.positions[streamID.String()] {
		if !opts.IncludeExited && p.IsExited() {
			continue
		}
		result = append(result, p.Clone())
	}
	slices.SortFunc(result, func(a, b *position.Position) int {
		return strings.Compare(a.ID.String(), b.ID.String())
	})

	return page(result, opts.Offset, opts.Limit), nil
}

// SaveState writes both records under one lock acquisition.
func (s *Store) SaveState(_ context.Context, st *stream.Stream, p *position.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return streamswap.ErrStoreClosed
	}
	key := st.ID.String()
	if _, exists := s.streams[key]; !exists {
		return errorsmod.Wrapf(streamswap.ErrStreamNotFound, "%s", st.ID)
	}

	if p != nil {
		if cur, ok := s.positions[key][p.Owner]; ok && cur.ID.String() != p.ID.String() {
			return errorsmod.Wrapf(streamswap.ErrAlreadyExists, "position %s/%s", st.ID, p.Owner)
		}
	}

	s.streams[key] = st.Clone()
	if p != nil {
		byOwner, ok := s.positions[key]
		if !ok {
			byOwner = make(map[string]*position.Position)
			s.positions[key] = byOwner
		}
		byOwner[p.Owner] = p.Clone()
	}
	return nil
}

// Core methods
func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return streamswap.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

func page[T any](items []T, offset, limit int) []T {
	start := min(offset, len(items))
	end := len(items)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return items[start:end]
}
