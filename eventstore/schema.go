package eventstore

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements creates the two append-only tables and their indices
// (§4.J). Run idempotently on every pool open.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS task_events (
		event_id   BIGSERIAL PRIMARY KEY,
		event_type TEXT NOT NULL,
		event_ts   TIMESTAMPTZ NOT NULL DEFAULT now(),
		task_id    TEXT NOT NULL,
		event_data JSONB NOT NULL,
		world_seed TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_task_events_task_id ON task_events (task_id)`,
	`CREATE INDEX IF NOT EXISTS idx_task_events_event_ts ON task_events (event_ts DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_task_events_type_ts ON task_events (event_type, event_ts DESC)`,
	`CREATE TABLE IF NOT EXISTS task_snapshots (
		task_id     TEXT PRIMARY KEY,
		snapshot_ts TIMESTAMPTZ NOT NULL DEFAULT now(),
		task_data   JSONB NOT NULL,
		world_seed  TEXT NOT NULL,
		status      TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_task_snapshots_status ON task_snapshots (status)`,
	`CREATE INDEX IF NOT EXISTS idx_task_snapshots_ts ON task_snapshots (snapshot_ts DESC)`,
}

func applySchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
