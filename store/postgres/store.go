package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/streamswap"
	"github.com/xraph/streamswap/id"
	"github.com/xraph/streamswap/position"
	"github.com/xraph/streamswap/store"
	"github.com/xraph/streamswap/stream"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// positionUpsert lists the columns an existing position row takes from a
// conflicting insert.
var positionUpsert = []string{
	"operator = EXCLUDED.operator",
	"in_balance = EXCLUDED.in_balance",
	"shares = EXCLUDED.shares",
	"purchased = EXCLUDED.purchased",
	"spent = EXCLUDED.spent",
	"dist_index = EXCLUDED.dist_index",
	"pending_purchase = EXCLUDED.pending_purchase",
	"last_updated = EXCLUDED.last_updated",
	"exit_date = EXCLUDED.exit_date",
	"updated_at = EXCLUDED.updated_at",
}

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("streamswap/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("streamswap/postgres: migration failed: %w", err)
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
	_, err := s.pg.NewInsert(toStreamModel(st)).Exec(ctx)
	if isUniqueViolation(err) {
		return errorsmod.Wrapf(streamswap.ErrAlreadyExists, "stream %s", st.ID)
	}
	return err
}

func (s *Store) GetStream(ctx context.Context, streamID id.StreamID) (*stream.Stream, error) {
	m := new(streamModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", streamID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, errorsmod.Wrapf(streamswap.ErrStreamNotFound, "%s", streamID)
		}
		return nil, err
	}
	return fromStreamModel(m)
}

func (s *Store) UpdateStream(ctx context.Context, st *stream.Stream) error {
	res, err := s.pg.NewUpdate(toStreamModel(st)).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errorsmod.Wrapf(streamswap.ErrStreamNotFound, "%s", st.ID)
	}
	return nil
}

func (s *Store) ListStreams(ctx context.Context, opts stream.ListOpts) ([]*stream.Stream, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var models []streamModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
	}
	if opts.Creator != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("creator = $%d", argIdx), opts.Creator)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	m := new(positionModel)
	err := s.pg.NewSelect(m).
		Where("stream_id = $1", streamID.String()).
		Where("owner = $2", owner).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, errorsmod.Wrapf(streamswap.ErrPositionNotFound, "%s/%s", streamID, owner)
		}
		return nil, err
	}
	return fromPositionModel(m)
}

func (s *Store) ListPositions(ctx context.Context, streamID id.StreamID, opts position.ListOpts) ([]*position.Position, error) {
	var models []positionModel
	q := s.pg.NewSelect(&models).Where("stream_id = $1", streamID.String())

	if !opts.IncludeExited {
		q = q.Where("exit_date IS NULL")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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

// SaveState updates the stream row and upserts the position row in one
// transaction.
func (s *Store) SaveState(ctx context.Context, st *stream.Stream, p *position.Position) (err error) {
	tx, err := s.pg.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("streamswap/postgres: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.NewUpdate(toStreamModel(st)).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errorsmod.Wrapf(streamswap.ErrStreamNotFound, "%s", st.ID)
	}

	if p != nil {
		q := tx.NewInsert(toPositionModel(p)).OnConflict("(id) DO UPDATE")
		for _, set := range positionUpsert {
			q = q.Set(set)
		}
		if _, err = q.Exec(ctx); err != nil {
			if isUniqueViolation(err) {
				return errorsmod.Wrapf(streamswap.ErrAlreadyExists, "position %s/%s", st.ID, p.Owner)
			}
			return err
		}
	}

	return tx.Commit()
}

// ==================== Helpers ====================

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a primary key or unique index
// conflict.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
