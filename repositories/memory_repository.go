package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Dosada05/tournament-live/models"
)

// MemoryMatchSnapshotRepository хранит снапшоты в памяти процесса. Снапшоты
// хранятся в закодированном виде, поэтому вызывающие не делят с ним состояние.
type MemoryMatchSnapshotRepository struct {
	mu        sync.RWMutex
	snapshots map[int][]byte
	versions  map[int]int64
	saves     int
}

func NewMemoryMatchSnapshotRepository() *MemoryMatchSnapshotRepository {
	return &MemoryMatchSnapshotRepository{
		snapshots: make(map[int][]byte),
		versions:  make(map[int]int64),
	}
}

func (r *MemoryMatchSnapshotRepository) Load(ctx context.Context, matchID int) (*models.MatchState, error) {
	r.mu.RLock()
	raw, ok := r.snapshots[matchID]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	state := &models.MatchState{}
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot of match %d: %w", matchID, err)
	}
	return state, nil
}

func (r *MemoryMatchSnapshotRepository) Save(ctx context.Context, state *models.MatchState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot of match %d: %w", state.MatchID, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.versions[state.MatchID]; ok && v > state.Version {
		return nil
	}
	r.snapshots[state.MatchID] = raw
	r.versions[state.MatchID] = state.Version
	r.saves++
	return nil
}

func (r *MemoryMatchSnapshotRepository) Saves() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.saves
}

// MemoryFixtureRepository отдаёт заранее зарегистрированные матчи, например из
// файла настроек, когда сервис работает без базы данных.
type MemoryFixtureRepository struct {
	mu       sync.RWMutex
	fixtures map[int]models.MatchFixture
	results  map[int]*models.MatchState
}

func NewMemoryFixtureRepository(fixtures ...models.MatchFixture) *MemoryFixtureRepository {
	r := &MemoryFixtureRepository{
		fixtures: make(map[int]models.MatchFixture),
		results:  make(map[int]*models.MatchState),
	}
	for _, f := range fixtures {
		r.fixtures[f.MatchID] = f
	}
	return r
}

func (r *MemoryFixtureRepository) Register(f models.MatchFixture) {
	r.mu.Lock()
	r.fixtures[f.MatchID] = f
	r.mu.Unlock()
}

func (r *MemoryFixtureRepository) GetFixture(ctx context.Context, matchID int) (*models.MatchFixture, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fixtures[matchID]
	if !ok {
		return nil, ErrTeamMatchNotFound
	}
	return &f, nil
}

func (r *MemoryFixtureRepository) RecordResult(ctx context.Context, state *models.MatchState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.fixtures[state.MatchID]
	if !ok {
		return ErrTeamMatchNotFound
	}
	f.Status = state.Status
	r.fixtures[state.MatchID] = f
	r.results[state.MatchID] = state.Clone()
	return nil
}

func (r *MemoryFixtureRepository) Result(matchID int) (*models.MatchState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.results[matchID]
	return s, ok
}

// MemoryRosterRepository проверяет заявки по фиксированной карте команда -> игроки.
type MemoryRosterRepository struct {
	mu      sync.RWMutex
	players map[int]map[int]bool
}

func NewMemoryRosterRepository(rosters map[int][]int) *MemoryRosterRepository {
	r := &MemoryRosterRepository{players: make(map[int]map[int]bool)}
	for teamID, players := range rosters {
		r.players[teamID] = make(map[int]bool, len(players))
		for _, p := range players {
			r.players[teamID][p] = true
		}
	}
	return r
}

func (r *MemoryRosterRepository) IsValidPlayer(ctx context.Context, teamID, playerID int) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.players[teamID][playerID], nil
}
