package services

import (
	"context"
	"errors"

	"github.com/Dosada05/tournament-live/live"
	"github.com/Dosada05/tournament-live/models"
	"github.com/Dosada05/tournament-live/repositories"
)

type fixtureLookup struct {
	repo live.FixtureLookup
}

// NewFixtureLookup адаптирует репозиторий матчей для движка: неизвестный матч
// возвращается как (nil, nil), и движок отвечает ErrMatchNotFound.
func NewFixtureLookup(repo live.FixtureLookup) live.FixtureLookup {
	return &fixtureLookup{repo: repo}
}

func (f *fixtureLookup) GetFixture(ctx context.Context, matchID int) (*models.MatchFixture, error) {
	fixture, err := f.repo.GetFixture(ctx, matchID)
	if errors.Is(err, repositories.ErrTeamMatchNotFound) {
		return nil, nil
	}
	return fixture, err
}
