// File: repositories/roster_repository.go
package repositories

import (
	"context"
	"database/sql"
	"fmt"
)

// TournamentTeamRosterRepository проверяет, заявлен ли игрок в состав команды.
type TournamentTeamRosterRepository interface {
	IsValidPlayer(ctx context.Context, teamParticipantID, userID int) (bool, error)
}

type postgresTournamentTeamRosterRepository struct {
	db *sql.DB
}

func NewPostgresTournamentTeamRosterRepository(db *sql.DB) TournamentTeamRosterRepository {
	return &postgresTournamentTeamRosterRepository{db: db}
}

func (r *postgresTournamentTeamRosterRepository) IsValidPlayer(ctx context.Context, teamParticipantID, userID int) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM tournament_team_rosters ttr
			WHERE ttr.participant_id = $1 AND ttr.user_id = $2
		)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, teamParticipantID, userID).Scan(&exists); err != nil {
		return false, mapPQError(fmt.Errorf("failed to check roster of participant %d: %w", teamParticipantID, err))
	}
	return exists, nil
}
