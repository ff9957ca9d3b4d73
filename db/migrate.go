package db

import (
	"context"
	"database/sql"
	"fmt"
)

// liveSchema создаёт таблицы живых матчей. Таблицы сетки (team_matches,
// tournament_team_rosters) принадлежат основной схеме турниров.
var liveSchema = []string{
	`CREATE TABLE IF NOT EXISTS live_match_snapshots (
		match_id   INTEGER PRIMARY KEY,
		version    BIGINT NOT NULL,
		status     VARCHAR(32) NOT NULL,
		home_score INTEGER NOT NULL DEFAULT 0,
		away_score INTEGER NOT NULL DEFAULT 0,
		state      JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS live_match_events (
		id                  VARCHAR(64) NOT NULL,
		match_id            INTEGER NOT NULL,
		sequence            INTEGER NOT NULL,
		type                VARCHAR(32) NOT NULL,
		team_id             INTEGER,
		minute              INTEGER NOT NULL,
		author_principal_id INTEGER NOT NULL,
		payload             JSONB NOT NULL,
		accepted_at         TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (match_id, sequence),
		UNIQUE (id)
	)`,
}

// Migrate идемпотентно создаёт таблицы живых матчей.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range liveSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i+1, err)
		}
	}
	return nil
}
