package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-live/models"
)

// MatchSnapshotRepository хранит снапшоты живых матчей и журнал их событий.
type MatchSnapshotRepository interface {
	Load(ctx context.Context, matchID int) (*models.MatchState, error)
	Save(ctx context.Context, state *models.MatchState) error
	EventsAfter(ctx context.Context, matchID int, afterSequence int) ([]models.MatchEvent, error)
}

type postgresMatchSnapshotRepository struct {
	db *sql.DB
}

func NewPostgresMatchSnapshotRepository(db *sql.DB) MatchSnapshotRepository {
	return &postgresMatchSnapshotRepository{db: db}
}

// Load возвращает (nil, nil), если снапшота матча ещё нет.
func (r *postgresMatchSnapshotRepository) Load(ctx context.Context, matchID int) (*models.MatchState, error) {
	query := `SELECT state FROM live_match_snapshots WHERE match_id = $1`

	var raw []byte
	err := r.db.QueryRowContext(ctx, query, matchID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, mapPQError(fmt.Errorf("failed to load snapshot of match %d: %w", matchID, err))
	}

	state := &models.MatchState{}
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot of match %d: %w", matchID, err)
	}
	return state, nil
}

// Save дописывает новые события в журнал и обновляет снапшот в одной
// транзакции. Более новый снапшот никогда не перезаписывается старым.
func (r *postgresMatchSnapshotRepository) Save(ctx context.Context, state *models.MatchState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot of match %d: %w", state.MatchID, err)
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var lastSequence int
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(sequence), -1) FROM live_match_events WHERE match_id = $1`, state.MatchID,
		).Scan(&lastSequence)
		if err != nil {
			return mapPQError(fmt.Errorf("failed to read event log of match %d: %w", state.MatchID, err))
		}

		if lastSequence+1 < len(state.AppliedEvents) {
			if err := r.appendEvents(ctx, tx, state.AppliedEvents[lastSequence+1:]); err != nil {
				return err
			}
		}

		query := `
			INSERT INTO live_match_snapshots (match_id, version, status, home_score, away_score, state, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
			ON CONFLICT (match_id) DO UPDATE
			SET version = EXCLUDED.version, status = EXCLUDED.status,
				home_score = EXCLUDED.home_score, away_score = EXCLUDED.away_score,
				state = EXCLUDED.state, updated_at = NOW()
			WHERE live_match_snapshots.version <= EXCLUDED.version`
		_, err = tx.ExecContext(ctx, query,
			state.MatchID, state.Version, state.Status, state.HomeScore, state.AwayScore, raw,
		)
		if err != nil {
			return mapPQError(fmt.Errorf("failed to save snapshot of match %d: %w", state.MatchID, err))
		}
		return nil
	})
}

func (r *postgresMatchSnapshotRepository) appendEvents(ctx context.Context, exec SQLExecutor, events []models.MatchEvent) error {
	query := `
		INSERT INTO live_match_events (id, match_id, sequence, type, team_id, minute, author_principal_id, payload, accepted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (match_id, sequence) DO NOTHING`

	for _, ev := range events {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode payload of event %s: %w", ev.ID, err)
		}
		var teamID sql.NullInt64
		if ev.TeamID != 0 {
			teamID = sql.NullInt64{Int64: int64(ev.TeamID), Valid: true}
		}
		_, err = exec.ExecContext(ctx, query,
			ev.ID, ev.MatchID, ev.Sequence, ev.Type, teamID, ev.Minute, ev.AuthorPrincipalID, payload, ev.AcceptedAt,
		)
		if err != nil {
			return mapPQError(fmt.Errorf("failed to append event %s: %w", ev.ID, err))
		}
	}
	return nil
}

func (r *postgresMatchSnapshotRepository) EventsAfter(ctx context.Context, matchID int, afterSequence int) ([]models.MatchEvent, error) {
	query := `
		SELECT id, match_id, sequence, type, team_id, minute, author_principal_id, payload, accepted_at
		FROM live_match_events
		WHERE match_id = $1 AND sequence > $2
		ORDER BY sequence ASC`

	rows, err := r.db.QueryContext(ctx, query, matchID, afterSequence)
	if err != nil {
		return nil, mapPQError(fmt.Errorf("failed to query events of match %d: %w", matchID, err))
	}
	defer rows.Close()

	events := make([]models.MatchEvent, 0)
	for rows.Next() {
		var (
			ev      models.MatchEvent
			teamID  sql.NullInt64
			payload []byte
		)
		if err := rows.Scan(&ev.ID, &ev.MatchID, &ev.Sequence, &ev.Type, &teamID, &ev.Minute, &ev.AuthorPrincipalID, &payload, &ev.AcceptedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event of match %d: %w", matchID, err)
		}
		if teamID.Valid {
			ev.TeamID = int(teamID.Int64)
		}
		ev.Payload, err = models.DecodeEventPayload(ev.Type, payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode event %s: %w", ev.ID, err)
		}
		events = append(events, ev)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
