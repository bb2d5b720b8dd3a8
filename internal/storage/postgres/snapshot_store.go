// Package postgres archives every published ledger snapshot in Postgres.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "ledger_snapshots"

// Config controls the Postgres connection pool used for snapshot rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// Snapshot is one archived run.
type Snapshot struct {
	RunID        string
	GeneratedAt  time.Time
	ReleaseCount int
	// Digest is the hex SHA-256 of Releases.
	Digest       string
	Releases     []byte
	Tally        []byte
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// SnapshotStore writes snapshot rows into Postgres.
type SnapshotStore struct {
	pool  execCloser
	table string
}

// NewSnapshotStore creates a Postgres-backed SnapshotStore using the provided config.
func NewSnapshotStore(ctx context.Context, cfg Config) (*SnapshotStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("archive.postgres.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &SnapshotStore{pool: pool, table: table}, nil
}

// NewSnapshotStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewSnapshotStoreWithPool(pool execCloser, table string) (*SnapshotStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &SnapshotStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *SnapshotStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Archive inserts a snapshot row. Re-archiving a run ID is a no-op.
// The table is assumed to match:
//
// CREATE TABLE ledger_snapshots (
//
//	run_id TEXT PRIMARY KEY,
//	generated_at TIMESTAMPTZ NOT NULL,
//	release_count INTEGER NOT NULL,
//	releases_sha256 TEXT NOT NULL,
//	releases JSONB NOT NULL,
//	tally JSONB NOT NULL,
//	created_at TIMESTAMPTZ DEFAULT NOW()
//
// );
func (s *SnapshotStore) Archive(ctx context.Context, snap Snapshot) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("snapshot store is not configured")
	}
	if snap.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	generated_at,
	release_count,
	releases_sha256,
	releases,
	tally
) VALUES (
	$1,$2,$3,$4,$5,$6
)
ON CONFLICT (run_id) DO NOTHING`, s.table)

	if _, err := s.pool.Exec(ctx, query, snap.RunID, snap.GeneratedAt, snap.ReleaseCount, snap.Digest, snap.Releases, snap.Tally); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}
