package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-live/models"
	"github.com/lib/pq"
)

var (
	ErrTeamMatchNotFound                 = errors.New("team match not found")
	ErrTeamMatchParticipantMissing       = errors.New("team match has no opponents assigned yet")
	ErrTeamMatchWinnerParticipantInvalid = errors.New("team match winner participant conflict or invalid")
	ErrTeamMatchStatusInvalid            = errors.New("team match status not accepted by the database")
)

// TeamMatchRepository читает матчи сетки (team_matches) и записывает итог живого матча.
type TeamMatchRepository interface {
	GetFixture(ctx context.Context, matchID int) (*models.MatchFixture, error)
	RecordResult(ctx context.Context, state *models.MatchState) error
}

type postgresTeamMatchRepository struct {
	db *sql.DB
}

func NewPostgresTeamMatchRepository(db *sql.DB) TeamMatchRepository {
	return &postgresTeamMatchRepository{db: db}
}

func (r *postgresTeamMatchRepository) GetFixture(ctx context.Context, matchID int) (*models.MatchFixture, error) {
	query := `
		SELECT id, tournament_id, t1_participant_id, t2_participant_id, status, match_time
		FROM team_matches
		WHERE id = $1`

	var (
		fixture models.MatchFixture
		t1, t2  sql.NullInt64
		status  string
	)
	err := r.db.QueryRowContext(ctx, query, matchID).Scan(
		&fixture.MatchID,
		&fixture.TournamentID,
		&t1,
		&t2,
		&status,
		&fixture.MatchTime,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamMatchNotFound
		}
		return nil, mapPQError(fmt.Errorf("failed to get team match %d: %w", matchID, err))
	}
	if !t1.Valid || !t2.Valid {
		return nil, fmt.Errorf("%w: match %d", ErrTeamMatchParticipantMissing, matchID)
	}
	fixture.HomeTeamID = int(t1.Int64)
	fixture.AwayTeamID = int(t2.Int64)

	// живой матч всегда начинается из scheduled, если сетка ещё не завершила его
	fixture.Status = models.MatchStatusScheduled
	if s := models.MatchStatus(status); s.IsTerminal() {
		fixture.Status = s
	}
	return &fixture, nil
}

// RecordResult записывает итоговый счёт ("2-1"), статус и победителя завершённого матча.
func (r *postgresTeamMatchRepository) RecordResult(ctx context.Context, state *models.MatchState) error {
	query := `
		UPDATE team_matches
		SET score = $1, status = $2, winner_participant_id = $3
		WHERE id = $4`

	score := fmt.Sprintf("%d-%d", state.HomeScore, state.AwayScore)
	var winner *int
	switch {
	case state.Status != models.MatchStatusCompleted:
	case state.HomeScore > state.AwayScore:
		winner = &state.HomeTeamID
	case state.AwayScore > state.HomeScore:
		winner = &state.AwayTeamID
	}

	result, err := r.db.ExecContext(ctx, query, score, state.Status, winner, state.MatchID)
	if err != nil {
		return r.handleTeamMatchError(err)
	}
	return checkAffectedRows(result, ErrTeamMatchNotFound)
}

func (r *postgresTeamMatchRepository) handleTeamMatchError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23503": // foreign_key_violation
			if pqErr.Constraint == "team_matches_winner_participant_id_fkey" {
				return ErrTeamMatchWinnerParticipantInvalid
			}
		case "22P02": // invalid_text_representation: значение ENUM
			return fmt.Errorf("%w: %s", ErrTeamMatchStatusInvalid, pqErr.Message)
		}
	}
	return mapPQError(err)
}
