package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps the whole snapshot in a single jsonb row keyed by
// snapshot name. The version column increments on every write; it exists as
// an upgrade path toward conditional writes but the engine never requires it.
type PostgresStore struct {
	db   *pgxpool.Pool
	name string
}

// NewPostgresStore builds a snapshot store over the given pool and snapshot name.
func NewPostgresStore(db *pgxpool.Pool, name string) *PostgresStore {
	return &PostgresStore{db: db, name: name}
}

// EnsureSchema creates the snapshots table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `CREATE TABLE IF NOT EXISTS snapshots (
        name text PRIMARY KEY,
        data jsonb NOT NULL,
        version bigint NOT NULL DEFAULT 1,
        updated_at timestamptz NOT NULL DEFAULT now()
    )`)
	if err != nil {
		return fmt.Errorf("ensure snapshots schema: %w", err)
	}
	return nil
}

// Read fetches and decodes the full mapping. A missing row yields an empty snapshot.
func (s *PostgresStore) Read(ctx context.Context) (Snapshot, error) {
	var raw []byte
	err := s.db.QueryRow(ctx, `SELECT data FROM snapshots WHERE name = $1`, s.name).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrUnavailable, s.name, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrUnavailable, s.name, err)
	}
	if snap == nil {
		snap = Snapshot{}
	}
	return snap, nil
}

// Write upserts the full mapping, bumping the version.
func (s *PostgresStore) Write(ctx context.Context, snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrUnavailable, s.name, err)
	}
	_, err = s.db.Exec(ctx, `INSERT INTO snapshots (name, data, version, updated_at)
        VALUES ($1, $2, 1, now())
        ON CONFLICT (name) DO UPDATE
        SET data = EXCLUDED.data, version = snapshots.version + 1, updated_at = now()`,
		s.name, payload)
	if err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrUnavailable, s.name, err)
	}
	return nil
}
