package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pairVault/internal/model"
)

// Store provides Postgres persistence for protocol events, pool snapshots and run
// progress.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Schema creates the tables the store writes to. Amounts are kept as NUMERIC so
// 256-bit values survive.
const Schema = `
CREATE TABLE IF NOT EXISTS protocol_events (
	id         UUID PRIMARY KEY,
	seq        BIGINT NOT NULL,
	kind       TEXT NOT NULL,
	ts         TIMESTAMPTZ NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS protocol_events_kind_seq ON protocol_events (kind, seq);

CREATE TABLE IF NOT EXISTS pool_snapshots (
	run           TEXT NOT NULL,
	pool_address  TEXT NOT NULL,
	underlying    TEXT NOT NULL,
	symbol        TEXT NOT NULL,
	total_shares  NUMERIC(78,0) NOT NULL,
	total_assets  NUMERIC(78,0) NOT NULL,
	held          NUMERIC(78,0) NOT NULL,
	outstanding   NUMERIC(78,0) NOT NULL,
	accrued_fees  NUMERIC(78,0) NOT NULL,
	fee_bps       BIGINT NOT NULL,
	fee_recipient TEXT NOT NULL,
	taken_at      TIMESTAMPTZ NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run, pool_address)
);

CREATE TABLE IF NOT EXISTS sim_runs (
	name        TEXT PRIMARY KEY,
	ops_applied BIGINT NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate applies Schema. It is safe to run against an existing database.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// PutEvents inserts journaled events. Replayed events are ignored by id, so a retried
// flush never duplicates rows.
func (s *Store) PutEvents(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("marshal event %d payload: %w", ev.Seq, err)
		}
		batch.Queue(`
			INSERT INTO protocol_events (id, seq, kind, ts, payload, created_at)
			VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (id) DO NOTHING
		`,
			ev.ID.String(),
			int64(ev.Seq),
			string(ev.Kind),
			ev.Timestamp,
			payload,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertPoolSnapshots inserts or updates the snapshot of each pool for a run.
func (s *Store) UpsertPoolSnapshots(ctx context.Context, run string, snapshots []model.PoolSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		batch.Queue(`
			INSERT INTO pool_snapshots (
				run, pool_address, underlying, symbol, total_shares, total_assets, held,
				outstanding, accrued_fees, fee_bps, fee_recipient, taken_at, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now(),now())
			ON CONFLICT (run, pool_address)
			DO UPDATE SET
				symbol = EXCLUDED.symbol,
				total_shares = EXCLUDED.total_shares,
				total_assets = EXCLUDED.total_assets,
				held = EXCLUDED.held,
				outstanding = EXCLUDED.outstanding,
				accrued_fees = EXCLUDED.accrued_fees,
				fee_bps = EXCLUDED.fee_bps,
				fee_recipient = EXCLUDED.fee_recipient,
				taken_at = EXCLUDED.taken_at,
				updated_at = now()
		`,
			run,
			snap.Pool,
			snap.Underlying,
			snap.Symbol,
			snap.TotalShares,
			snap.TotalAssets,
			snap.Held,
			snap.Outstanding,
			snap.AccruedFees,
			int64(snap.FeeBps),
			snap.FeeRecipient,
			snap.TakenAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range snapshots {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns the number of scenario operations applied by a run.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var applied int64
	row := s.pool.QueryRow(ctx, `SELECT ops_applied FROM sim_runs WHERE name=$1`, name)
	if err := row.Scan(&applied); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(applied), true, nil
}

// SaveState upserts the number of scenario operations applied by a run.
func (s *Store) SaveState(ctx context.Context, name string, applied uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sim_runs (name, ops_applied, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET ops_applied = EXCLUDED.ops_applied, updated_at = now()
	`, name, int64(applied))
	return err
}
