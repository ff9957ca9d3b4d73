package models

import (
	"maps"
	"slices"
	"time"
)

// MatchStatus представляет статусы матча, соответствующие ENUM в БД.
type MatchStatus string

const (
	MatchStatusScheduled  MatchStatus = "scheduled"
	MatchStatusInProgress MatchStatus = "in_progress"
	MatchStatusPaused     MatchStatus = "paused"
	MatchStatusCompleted  MatchStatus = "completed"
	MatchStatusCanceled   MatchStatus = "canceled"
)

func (s MatchStatus) IsValid() bool {
	switch s {
	case MatchStatusScheduled, MatchStatusInProgress, MatchStatusPaused, MatchStatusCompleted, MatchStatusCanceled:
		return true
	}
	return false
}

func (s MatchStatus) IsTerminal() bool {
	return s == MatchStatusCompleted || s == MatchStatusCanceled
}

// AcceptsGameplay сообщает, можно ли в этом статусе вносить игровые события.
func (s MatchStatus) AcceptsGameplay() bool {
	return s == MatchStatusInProgress || s == MatchStatusPaused
}

// MatchFixture - матч турнирной сетки (таблица team_matches), из которого создаётся живой матч.
type MatchFixture struct {
	MatchID      int         `json:"match_id"`
	TournamentID int         `json:"tournament_id"`
	HomeTeamID   int         `json:"home_team_id"`
	AwayTeamID   int         `json:"away_team_id"`
	Status       MatchStatus `json:"status"`
	MatchTime    time.Time   `json:"match_time"`
}

type CardTally struct {
	Yellow int `json:"yellow"`
	Red    int `json:"red"`
}

// PendingSubstitution - запрос замены от тренера, ожидающий подтверждения судьи.
type PendingSubstitution struct {
	RequestID   string    `json:"request_id"`
	TeamID      int       `json:"team_id"`
	PlayerOutID int       `json:"player_out_id"`
	PlayerInID  int       `json:"player_in_id"`
	Minute      int       `json:"minute"`
	RequestedBy int       `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at"`
}

// MatchState - авторитетное состояние живого матча.
// Счёт и карточки всегда равны свёртке AppliedEvents.
type MatchState struct {
	MatchID              int                    `json:"match_id"`
	TournamentID         int                    `json:"tournament_id"`
	HomeTeamID           int                    `json:"home_team_id"`
	AwayTeamID           int                    `json:"away_team_id"`
	InitialStatus        MatchStatus            `json:"initial_status"`
	Status               MatchStatus            `json:"status"`
	HomeScore            int                    `json:"home_score"`
	AwayScore            int                    `json:"away_score"`
	HomeCards            CardTally              `json:"home_cards"`
	AwayCards            CardTally              `json:"away_cards"`
	ClockSeconds         int                    `json:"clock_seconds"`
	Timer                TimerState             `json:"timer"`
	PendingSubstitutions []PendingSubstitution  `json:"pending_substitutions"`
	// Tracking - последние внешние замеры (владение, передачи) по командам.
	// Не являются событиями и версию не меняют.
	Tracking             map[int]TrackingSample `json:"tracking,omitempty"`
	AppliedEvents        []MatchEvent           `json:"applied_events"`
	Version              int64                  `json:"version"`
	UpdatedAt            time.Time              `json:"updated_at"`
}

// NewMatchState создаёт начальное состояние живого матча по матчу сетки.
func NewMatchState(f MatchFixture) *MatchState {
	status := f.Status
	if status == "" {
		status = MatchStatusScheduled
	}
	return &MatchState{
		MatchID:              f.MatchID,
		TournamentID:         f.TournamentID,
		HomeTeamID:           f.HomeTeamID,
		AwayTeamID:           f.AwayTeamID,
		InitialStatus:        status,
		Status:               status,
		Timer:                TimerStopped,
		PendingSubstitutions: []PendingSubstitution{},
		AppliedEvents:        []MatchEvent{},
	}
}

// Header возвращает состояние матча до первого события.
func (s *MatchState) Header() *MatchState {
	return NewMatchState(MatchFixture{
		MatchID:      s.MatchID,
		TournamentID: s.TournamentID,
		HomeTeamID:   s.HomeTeamID,
		AwayTeamID:   s.AwayTeamID,
		Status:       s.InitialStatus,
	})
}

func (s *MatchState) HasTeam(teamID int) bool {
	return teamID != 0 && (teamID == s.HomeTeamID || teamID == s.AwayTeamID)
}

// Clone возвращает глубокую копию, которую можно отдавать за пределы воркера.
func (s *MatchState) Clone() *MatchState {
	if s == nil {
		return nil
	}
	c := *s
	c.PendingSubstitutions = slices.Clone(s.PendingSubstitutions)
	if c.PendingSubstitutions == nil {
		c.PendingSubstitutions = []PendingSubstitution{}
	}
	c.Tracking = maps.Clone(s.Tracking)
	c.AppliedEvents = slices.Clone(s.AppliedEvents)
	if c.AppliedEvents == nil {
		c.AppliedEvents = []MatchEvent{}
	}
	return &c
}

func (s *MatchState) LastSequence() int {
	return len(s.AppliedEvents) - 1
}

func (s *MatchState) FindEvent(eventID string) (MatchEvent, bool) {
	for _, ev := range s.AppliedEvents {
		if ev.ID == eventID {
			return ev, true
		}
	}
	return MatchEvent{}, false
}

// IsCorrected сообщает, есть ли уже CORRECTION для eventID.
func (s *MatchState) IsCorrected(eventID string) bool {
	for _, ev := range s.AppliedEvents {
		if p, ok := ev.Payload.(CorrectionPayload); ok && p.CorrectsEventID == eventID {
			return true
		}
	}
	return false
}

// IsSentOff сообщает, есть ли у игрока неотменённая красная карточка.
func (s *MatchState) IsSentOff(playerID int) bool {
	for _, ev := range s.AppliedEvents {
		p, ok := ev.Payload.(RedCardPayload)
		if ok && p.PlayerID == playerID && !s.IsCorrected(ev.ID) {
			return true
		}
	}
	return false
}

// YellowCards считает неотменённые жёлтые карточки игрока.
func (s *MatchState) YellowCards(playerID int) int {
	n := 0
	for _, ev := range s.AppliedEvents {
		p, ok := ev.Payload.(YellowCardPayload)
		if ok && p.PlayerID == playerID && !s.IsCorrected(ev.ID) {
			n++
		}
	}
	return n
}

// LastMinute возвращает наибольшую минуту событий команды без учёта смены статуса.
func (s *MatchState) LastMinute(teamID int) (int, bool) {
	last, found := 0, false
	for _, ev := range s.AppliedEvents {
		if ev.Type == EventStatusChange || ev.TeamID != teamID {
			continue
		}
		if !found || ev.Minute > last {
			last, found = ev.Minute, true
		}
	}
	return last, found
}

func (s *MatchState) PendingSubstitution(requestID string) (PendingSubstitution, int) {
	for i, p := range s.PendingSubstitutions {
		if p.RequestID == requestID {
			return p, i
		}
	}
	return PendingSubstitution{}, -1
}

// View возвращает компактное представление, рассылаемое при каждом изменении.
func (s *MatchState) View() MatchStateView {
	return MatchStateView{
		MatchID:              s.MatchID,
		TournamentID:         s.TournamentID,
		HomeTeamID:           s.HomeTeamID,
		AwayTeamID:           s.AwayTeamID,
		Status:               s.Status,
		HomeScore:            s.HomeScore,
		AwayScore:            s.AwayScore,
		HomeCards:            s.HomeCards,
		AwayCards:            s.AwayCards,
		ClockSeconds:         s.ClockSeconds,
		Timer:                s.Timer,
		PendingSubstitutions: slices.Clone(s.PendingSubstitutions),
		LastSequence:         s.LastSequence(),
		Version:              s.Version,
	}
}

type MatchStateView struct {
	MatchID              int                   `json:"match_id"`
	TournamentID         int                   `json:"tournament_id"`
	HomeTeamID           int                   `json:"home_team_id"`
	AwayTeamID           int                   `json:"away_team_id"`
	Status               MatchStatus           `json:"status"`
	HomeScore            int                   `json:"home_score"`
	AwayScore            int                   `json:"away_score"`
	HomeCards            CardTally             `json:"home_cards"`
	AwayCards            CardTally             `json:"away_cards"`
	ClockSeconds         int                   `json:"clock_seconds"`
	Timer                TimerState            `json:"timer"`
	PendingSubstitutions []PendingSubstitution `json:"pending_substitutions,omitempty"`
	LastSequence         int                   `json:"last_sequence"`
	Version              int64                 `json:"version"`
}

// TimerState - состояние матчевого таймера.
type TimerState string

const (
	TimerStopped  TimerState = "stopped"
	TimerRunning  TimerState = "running"
	TimerPaused   TimerState = "paused"
	TimerFinished TimerState = "finished"
)

type TimerAction string

const (
	TimerActionStart  TimerAction = "start"
	TimerActionPause  TimerAction = "pause"
	TimerActionResume TimerAction = "resume"
	TimerActionStop   TimerAction = "stop"
)

type TimerView struct {
	MatchID      int        `json:"match_id"`
	State        TimerState `json:"state"`
	ClockSeconds int        `json:"clock_seconds"`
}
