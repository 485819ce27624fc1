package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the streamswap store (PostgreSQL).
var Migrations = migrate.NewGroup("streamswap")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_streamswap_streams",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS streamswap_streams (
    id                       TEXT PRIMARY KEY,
    name                     TEXT NOT NULL DEFAULT '',
    url                      TEXT NOT NULL DEFAULT '',
    creator                  TEXT NOT NULL,
    out_denom                TEXT NOT NULL,
    out_amount               TEXT NOT NULL,
    out_remaining            TEXT NOT NULL,
    in_denom                 TEXT NOT NULL,
    in_supply                TEXT NOT NULL DEFAULT '0',
    spent_in                 TEXT NOT NULL DEFAULT '0',
    shares                   TEXT NOT NULL DEFAULT '0',
    dist_index               TEXT NOT NULL DEFAULT '0.000000000000000000',
    current_streamed_price   TEXT NOT NULL DEFAULT '0.000000000000000000',
    start_time               BIGINT NOT NULL,
    end_time                 BIGINT NOT NULL,
    last_updated             BIGINT NOT NULL,
    bootstrapping_start_time BIGINT,
    pause_date               BIGINT,
    threshold                TEXT,
    status                   TEXT NOT NULL DEFAULT 'waiting',
    exit_fee_percent         TEXT NOT NULL DEFAULT '0.000000000000000000',
    created_at               BIGINT NOT NULL,
    updated_at               BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_streamswap_streams_status ON streamswap_streams (status);
CREATE INDEX IF NOT EXISTS idx_streamswap_streams_creator ON streamswap_streams (creator);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS streamswap_streams`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_streamswap_positions",
			Version: "20260101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS streamswap_positions (
    id               TEXT PRIMARY KEY,
    stream_id        TEXT NOT NULL REFERENCES streamswap_streams (id),
    owner            TEXT NOT NULL,
    operator         TEXT NOT NULL DEFAULT '',
    in_balance       TEXT NOT NULL DEFAULT '0',
    shares           TEXT NOT NULL DEFAULT '0',
    purchased        TEXT NOT NULL DEFAULT '0',
    spent            TEXT NOT NULL DEFAULT '0',
    dist_index       TEXT NOT NULL DEFAULT '0.000000000000000000',
    pending_purchase TEXT NOT NULL DEFAULT '0.000000000000000000',
    last_updated     BIGINT NOT NULL,
    exit_date        BIGINT,
    created_at       BIGINT NOT NULL,
    updated_at       BIGINT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_streamswap_positions_owner ON streamswap_positions (stream_id, owner);
CREATE INDEX IF NOT EXISTS idx_streamswap_positions_open ON streamswap_positions (stream_id, exit_date);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS streamswap_positions`)
				return err
			},
		},
	)
}
