package live

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/tournament-live/models"
)

const (
	testMatchID      = 1
	testTournamentID = 5
	homeTeam         = 10
	awayTeam         = 20
)

var (
	referee   = models.Principal{ID: 100, Role: models.RoleReferee}
	referee2  = models.Principal{ID: 101, Role: models.RoleReferee}
	admin     = models.Principal{ID: 1, Role: models.RoleAdmin}
	spectator = models.Principal{ID: 300, Role: models.RoleSpectator}
)

func coachOf(teamID int) models.Principal {
	return models.Principal{ID: 200 + teamID, Role: models.RoleCoach, TeamID: &teamID}
}

func intPtr(v int) *int { return &v }

func testFixture() models.MatchFixture {
	return models.MatchFixture{MatchID: testMatchID, TournamentID: testTournamentID, HomeTeamID: homeTeam, AwayTeamID: awayTeam}
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

// liveState returns a match in progress with the given events applied.
func liveState(t *testing.T, events ...models.MatchEvent) *models.MatchState {
	t.Helper()
	state := models.NewMatchState(testFixture())
	m := NewMachine(state, newFakeClock().Now)
	kickOff := models.MatchEvent{
		ID: "kick-off", MatchID: testMatchID, Type: models.EventStatusChange,
		Payload: models.StatusChangePayload{From: models.MatchStatusScheduled, To: models.MatchStatusInProgress},
	}
	if _, err := m.Apply(kickOff); err != nil {
		t.Fatalf("kick-off: %v", err)
	}
	for _, ev := range events {
		if _, err := m.Apply(ev); err != nil {
			t.Fatalf("apply %s: %v", ev.ID, err)
		}
	}
	return state
}

func goal(id string, teamID, playerID, minute int) models.MatchEvent {
	return models.MatchEvent{ID: id, MatchID: testMatchID, Type: models.EventGoal, TeamID: teamID, Minute: minute,
		Payload: models.GoalPayload{PlayerID: playerID}}
}

func redCard(id string, teamID, playerID, minute int) models.MatchEvent {
	return models.MatchEvent{ID: id, MatchID: testMatchID, Type: models.EventRedCard, TeamID: teamID, Minute: minute,
		Payload: models.RedCardPayload{PlayerID: playerID}}
}

func yellowCard(id string, teamID, playerID, minute int) models.MatchEvent {
	return models.MatchEvent{ID: id, MatchID: testMatchID, Type: models.EventYellowCard, TeamID: teamID, Minute: minute,
		Payload: models.YellowCardPayload{PlayerID: playerID}}
}

func correction(id string, teamID int, target string, minute int) models.MatchEvent {
	return models.MatchEvent{ID: id, MatchID: testMatchID, Type: models.EventCorrection, TeamID: teamID, Minute: minute,
		Payload: models.CorrectionPayload{CorrectsEventID: target}}
}

func statusChange(id string, from, to models.MatchStatus) models.MatchEvent {
	return models.MatchEvent{ID: id, MatchID: testMatchID, Type: models.EventStatusChange,
		Payload: models.StatusChangePayload{From: from, To: to}}
}

func hasIssue(issues []Issue, code string) bool {
	for _, i := range issues {
		if i.Code == code {
			return true
		}
	}
	return false
}
