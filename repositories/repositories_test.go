package repositories

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"

	"github.com/Dosada05/tournament-live/models"
)

func TestMemorySnapshotRoundTripIsIsolated(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryMatchSnapshotRepository()

	if state, err := repo.Load(ctx, 1); err != nil || state != nil {
		t.Fatalf("Load of unknown match = %v, %v; want nil, nil", state, err)
	}

	state := models.NewMatchState(models.MatchFixture{MatchID: 1, HomeTeamID: 10, AwayTeamID: 20, Status: models.MatchStatusScheduled})
	state.HomeScore, state.Version = 2, 5
	if err := repo.Save(ctx, state); err != nil {
		t.Fatal(err)
	}
	state.HomeScore = 9

	loaded, err := repo.Load(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.HomeScore != 2 || loaded.Version != 5 {
		t.Errorf("loaded %d/v%d, want 2/v5", loaded.HomeScore, loaded.Version)
	}
}

func TestMemorySnapshotIgnoresOlderVersions(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryMatchSnapshotRepository()
	fixture := models.MatchFixture{MatchID: 1, HomeTeamID: 10, AwayTeamID: 20}

	newer := models.NewMatchState(fixture)
	newer.Version = 7
	older := models.NewMatchState(fixture)
	older.Version = 3

	repo.Save(ctx, newer)
	repo.Save(ctx, older)

	loaded, _ := repo.Load(ctx, 1)
	if loaded.Version != 7 {
		t.Errorf("version %d, want 7", loaded.Version)
	}
	if repo.Saves() != 1 {
		t.Errorf("saves %d, want 1", repo.Saves())
	}
}

func TestMemoryFixtures(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryFixtureRepository(models.MatchFixture{MatchID: 1, HomeTeamID: 10, AwayTeamID: 20, Status: models.MatchStatusScheduled})

	if _, err := repo.GetFixture(ctx, 2); !errors.Is(err, ErrTeamMatchNotFound) {
		t.Fatalf("err = %v, want ErrTeamMatchNotFound", err)
	}
	state := models.NewMatchState(models.MatchFixture{MatchID: 2, HomeTeamID: 1, AwayTeamID: 2})
	if err := repo.RecordResult(ctx, state); !errors.Is(err, ErrTeamMatchNotFound) {
		t.Fatalf("RecordResult of unknown match: %v", err)
	}

	final, _ := repo.GetFixture(ctx, 1)
	result := models.NewMatchState(*final)
	result.Status, result.HomeScore = models.MatchStatusCompleted, 1
	if err := repo.RecordResult(ctx, result); err != nil {
		t.Fatal(err)
	}
	f, _ := repo.GetFixture(ctx, 1)
	if f.Status != models.MatchStatusCompleted {
		t.Errorf("fixture status %s", f.Status)
	}
	if got, ok := repo.Result(1); !ok || got.HomeScore != 1 {
		t.Errorf("result %+v, %v", got, ok)
	}
}

func TestMemoryRoster(t *testing.T) {
	repo := NewMemoryRosterRepository(map[int][]int{10: {1, 2}})
	tests := []struct {
		team, player int
		want         bool
	}{
		{10, 1, true},
		{10, 3, false},
		{20, 1, false},
	}
	for _, tt := range tests {
		got, err := repo.IsValidPlayer(context.Background(), tt.team, tt.player)
		if err != nil || got != tt.want {
			t.Errorf("IsValidPlayer(%d, %d) = %v, %v; want %v", tt.team, tt.player, got, err, tt.want)
		}
	}
}

func TestMapPQError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"connection", &pq.Error{Code: "08006"}, ErrDatabaseUnavailable},
		{"admin shutdown", &pq.Error{Code: "57P01"}, ErrDatabaseUnavailable},
		{"serialization", fmt.Errorf("save: %w", &pq.Error{Code: "40001"}), ErrSnapshotConflict},
		{"deadlock", &pq.Error{Code: "40P01"}, ErrSnapshotConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapPQError(tt.err); !errors.Is(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	plain := errors.New("boom")
	if got := mapPQError(plain); got != plain {
		t.Errorf("non-pq error changed to %v", got)
	}
	if mapPQError(nil) != nil {
		t.Error("nil error mapped to non-nil")
	}
}
