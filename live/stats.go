package live

import (
	"fmt"
	"math"

	"github.com/Dosada05/tournament-live/models"
)

type statCounters struct {
	goals, shots, onTarget, corners, fouls, yellow, red int
}

func (c *statCounters) add(d statCounters, sign int) {
	c.goals += sign * d.goals
	c.shots += sign * d.shots
	c.onTarget += sign * d.onTarget
	c.corners += sign * d.corners
	c.fouls += sign * d.fouls
	c.yellow += sign * d.yellow
	c.red += sign * d.red
}

func deltaFor(p models.EventPayload) statCounters {
	switch p := p.(type) {
	case models.GoalPayload:
		return statCounters{goals: 1, shots: 1, onTarget: 1}
	case models.ShotPayload:
		if p.OnTarget {
			return statCounters{shots: 1, onTarget: 1}
		}
		return statCounters{shots: 1}
	case models.CornerPayload:
		return statCounters{corners: 1}
	case models.FoulPayload:
		return statCounters{fouls: 1}
	case models.YellowCardPayload:
		return statCounters{yellow: 1}
	case models.RedCardPayload:
		return statCounters{red: 1}
	default:
		return statCounters{}
	}
}

type teamDelta struct {
	teamID int
	delta  statCounters
}

// Aggregator хранит статистику команд одного матча. Каждое обновление O(1).
type Aggregator struct {
	matchID    int
	homeTeamID int
	awayTeamID int
	counters   map[int]*statCounters
	applied    map[string]teamDelta
	tracking   map[int]models.TrackingSample
}

func NewAggregator(state *models.MatchState) *Aggregator {
	return &Aggregator{
		matchID:    state.MatchID,
		homeTeamID: state.HomeTeamID,
		awayTeamID: state.AwayTeamID,
		counters: map[int]*statCounters{
			state.HomeTeamID: {},
			state.AwayTeamID: {},
		},
		applied:  make(map[string]teamDelta),
		tracking: make(map[int]models.TrackingSample),
	}
}

// RebuildStatistics собирает агрегатор заново из AppliedEvents и сохранённых замеров трекинга.
func RebuildStatistics(state *models.MatchState) *Aggregator {
	a := NewAggregator(state)
	for teamID, sample := range state.Tracking {
		if _, known := a.counters[teamID]; known {
			sample.TeamID = teamID
			a.tracking[teamID] = sample
		}
	}
	for _, ev := range state.AppliedEvents {
		a.OnEventApplied(ev)
	}
	return a
}

// OnEventApplied обновляет счётчики и возвращает снимок команды, чья
// статистика изменилась. ok = false, если ничего не изменилось.
func (a *Aggregator) OnEventApplied(ev models.MatchEvent) (snap models.TeamStatSnapshot, ok bool) {
	if c, isCorrection := ev.Payload.(models.CorrectionPayload); isCorrection {
		target, found := a.applied[c.CorrectsEventID]
		if !found {
			return models.TeamStatSnapshot{}, false
		}
		delete(a.applied, c.CorrectsEventID)
		counters, known := a.counters[target.teamID]
		if !known {
			return models.TeamStatSnapshot{}, false
		}
		counters.add(target.delta, -1)
		return a.Snapshot(target.teamID), target.delta != (statCounters{})
	}

	counters, known := a.counters[ev.TeamID]
	if !known {
		return models.TeamStatSnapshot{}, false
	}
	d := deltaFor(ev.Payload)
	a.applied[ev.ID] = teamDelta{teamID: ev.TeamID, delta: d}
	if d == (statCounters{}) {
		return models.TeamStatSnapshot{}, false
	}
	counters.add(d, 1)
	return a.Snapshot(ev.TeamID), true
}

// ReportTracking запоминает последний внешний замер команды.
func (a *Aggregator) ReportTracking(sample models.TrackingSample) (models.TeamStatSnapshot, error) {
	if _, known := a.counters[sample.TeamID]; !known {
		return models.TeamStatSnapshot{}, fmt.Errorf("%w: team %d does not play in match %d", ErrMalformedRequest, sample.TeamID, a.matchID)
	}
	if sample.Possession < 0 || sample.Possession > 100 || sample.PassAccuracy < 0 || sample.PassAccuracy > 100 || sample.Passes < 0 {
		return models.TeamStatSnapshot{}, fmt.Errorf("%w: tracking values out of range", ErrMalformedRequest)
	}
	a.tracking[sample.TeamID] = sample
	return a.Snapshot(sample.TeamID), nil
}

func (a *Aggregator) Snapshot(teamID int) models.TeamStatSnapshot {
	c := a.counters[teamID]
	if c == nil {
		c = &statCounters{}
	}
	snap := models.TeamStatSnapshot{
		MatchID:       a.matchID,
		TeamID:        teamID,
		Goals:         c.goals,
		Shots:         c.shots,
		ShotsOnTarget: c.onTarget,
		ShotAccuracy:  percentage(c.onTarget, c.shots),
		Corners:       c.corners,
		Fouls:         c.fouls,
		YellowCards:   c.yellow,
		RedCards:      c.red,
	}
	home, away := a.possession()
	switch teamID {
	case a.homeTeamID:
		snap.Possession = home
	case a.awayTeamID:
		snap.Possession = away
	}
	if t, ok := a.tracking[teamID]; ok {
		snap.Passes = t.Passes
		snap.PassAccuracy = t.PassAccuracy
	}
	return snap
}

// Snapshots - сначала хозяева, затем гости.
func (a *Aggregator) Snapshots() []models.TeamStatSnapshot {
	return []models.TeamStatSnapshot{a.Snapshot(a.homeTeamID), a.Snapshot(a.awayTeamID)}
}

// possession нормирует последние замеры так, чтобы home + away = 100.
func (a *Aggregator) possession() (float64, float64) {
	h, hok := a.tracking[a.homeTeamID]
	w, wok := a.tracking[a.awayTeamID]
	switch {
	case hok && wok:
		return normalizePossession(h.Possession, w.Possession)
	case hok:
		return normalizePossession(h.Possession, 100-h.Possession)
	case wok:
		return normalizePossession(100-w.Possession, w.Possession)
	default:
		return 50, 50
	}
}

func normalizePossession(home, away float64) (float64, float64) {
	total := home + away
	if total <= 0 {
		return 50, 50
	}
	h := math.Round(home*1000/total) / 10
	return h, math.Round((100-h)*10) / 10
}

func percentage(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)*1000/float64(whole)) / 10
}
