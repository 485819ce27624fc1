package mongo

import (
	"context"
	"errors"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/streamswap"
	"github.com/xraph/streamswap/id"
	"github.com/xraph/streamswap/position"
	"github.com/xraph/streamswap/store"
	"github.com/xraph/streamswap/stream"
)

// Collection name constants.
const (
	colStreams   = "streamswap_streams"
	colPositions = "streamswap_positions"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM. SaveState runs
// in a multi-document transaction, so the deployment must be a replica set.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for the streamswap collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("streamswap/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Stream Store ====================

func (s *Store) CreateStream(ctx context.Context, st *stream.Stream) error {
	if _, err := s.mdb.NewInsert(toStreamModel(st)).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errorsmod.Wrapf(streamswap.ErrAlreadyExists, "stream %s", st.ID)
		}
		return fmt.Errorf("streamswap/mongo: create stream: %w", err)
	}
	return nil
}

func (s *Store) GetStream(ctx context.Context, streamID id.StreamID) (*stream.Stream, error) {
	var m streamModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": streamID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, errorsmod.Wrapf(streamswap.ErrStreamNotFound, "%s", streamID)
		}
		return nil, fmt.Errorf("streamswap/mongo: get stream: %w", err)
	}
	return fromStreamModel(&m)
}

func (s *Store) UpdateStream(ctx context.Context, st *stream.Stream) error {
	m := toStreamModel(st)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("streamswap/mongo: update stream: %w", err)
	}
	if res.MatchedCount() == 0 {
		return errorsmod.Wrapf(streamswap.ErrStreamNotFound, "%s", st.ID)
	}
	return nil
}

func (s *Store) ListStreams(ctx context.Context, opts stream.ListOpts) ([]*stream.Stream, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var models []streamModel
	filter := bson.M{}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	if opts.Creator != "" {
		filter["creator"] = opts.Creator
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("streamswap/mongo: list streams: %w", err)
	}

	result := make([]*stream.Stream, len(models))
	for i := range models {
		st, err := fromStreamModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = st
	}
	return result, nil
}

// ==================== Position Store ====================

func (s *Store) GetPosition(ctx context.Context, streamID id.StreamID, owner string) (*position.Position, error) {
	var m positionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{
			"stream_id": streamID.String(),
			"owner":     owner,
		}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, errorsmod.Wrapf(streamswap.ErrPositionNotFound, "%s/%s", streamID, owner)
		}
		return nil, fmt.Errorf("streamswap/mongo: get position: %w", err)
	}
	return fromPositionModel(&m)
}

func (s *Store) ListPositions(ctx context.Context, streamID id.StreamID, opts position.ListOpts) ([]*position.Position, error) {
	var models []positionModel
	filter := bson.M{"stream_id": streamID.String()}
	if !opts.IncludeExited {
		// matches both null and missing
		filter["exit_date"] = nil
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("streamswap/mongo: list positions: %w", err)
	}

	result := make([]*position.Position, len(models))
	for i := range models {
		p, err := fromPositionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

// ==================== Atomic write ====================

// SaveState replaces the stream document and upserts the position document
// inside one session transaction.
func (s *Store) SaveState(ctx context.Context, st *stream.Stream, p *position.Position) (err error) {
	raw, err := s.mdb.GroveTx(ctx, 0, false)
	if err != nil {
		return fmt.Errorf("streamswap/mongo: begin: %w", err)
	}
	tx, ok := raw.(*mongodriver.MongoTx)
	if !ok {
		return fmt.Errorf("streamswap/mongo: unexpected transaction type %T", raw)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	sm := toStreamModel(st)
	res, err := tx.NewUpdate(sm).
		Filter(bson.M{"_id": sm.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("streamswap/mongo: save stream: %w", err)
	}
	if res.MatchedCount() == 0 {
		return errorsmod.Wrapf(streamswap.ErrStreamNotFound, "%s", st.ID)
	}

	if p != nil {
		pm := toPositionModel(p)
		if _, err = tx.NewUpdate(pm).
			Filter(bson.M{"_id": pm.ID}).
			Upsert().
			Exec(ctx); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return errorsmod.Wrapf(streamswap.ErrAlreadyExists, "position %s/%s", st.ID, p.Owner)
			}
			return fmt.Errorf("streamswap/mongo: save position: %w", err)
		}
	}

	return tx.Commit()
}

// ==================== Helpers ====================

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for the streamswap collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colStreams: {
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "creator", Value: 1}}},
		},
		colPositions: {
			{
				Keys:    bson.D{{Key: "stream_id", Value: 1}, {Key: "owner", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "stream_id", Value: 1}, {Key: "exit_date", Value: 1}}},
		},
	}
}
