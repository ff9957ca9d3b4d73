package models

import (
	"encoding/json"
	"strconv"
	"time"
)

type Role string

const (
	RoleReferee   Role = "referee"
	RoleCoach     Role = "coach"
	RoleSpectator Role = "spectator"
	RoleAdmin     Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleReferee, RoleCoach, RoleSpectator, RoleAdmin:
		return true
	}
	return false
}

// CanOfficiate сообщает, может ли роль вносить события любого типа.
func (r Role) CanOfficiate() bool {
	return r == RoleReferee || r == RoleAdmin
}

// Principal - аутентифицированный участник, полученный из JWT.
type Principal struct {
	ID     int  `json:"id"`
	Role   Role `json:"role"`
	TeamID *int `json:"team_id,omitempty"`
}

func (p Principal) BelongsTo(teamID int) bool {
	return p.TeamID != nil && *p.TeamID == teamID
}

type EventEntrySession struct {
	SessionID            string    `json:"session_id"`
	MatchID              int       `json:"match_id"`
	PrincipalID          int       `json:"principal_id"`
	Role                 Role      `json:"role"`
	StartedAt            time.Time `json:"started_at"`
	LastActivityAt       time.Time `json:"last_activity_at"`
	EventsSubmittedCount int       `json:"events_submitted_count"`
}

type MatchRoomSubscription struct {
	ConnectionID string    `json:"connection_id"`
	MatchID      int       `json:"match_id"`
	Role         Role      `json:"role"`
	TeamID       *int      `json:"team_id,omitempty"`
	SubscribedAt time.Time `json:"subscribed_at"`
}

// TeamStatSnapshot - статистика команды в матче.
type TeamStatSnapshot struct {
	MatchID       int     `json:"match_id"`
	TeamID        int     `json:"team_id"`
	Goals         int     `json:"goals"`
	Shots         int     `json:"shots"`
	ShotsOnTarget int     `json:"shots_on_target"`
	ShotAccuracy  float64 `json:"shot_accuracy"`
	Corners       int     `json:"corners"`
	Fouls         int     `json:"fouls"`
	YellowCards   int     `json:"yellow_cards"`
	RedCards      int     `json:"red_cards"`
	Possession    float64 `json:"possession"`
	Passes        int     `json:"passes"`
	PassAccuracy  float64 `json:"pass_accuracy"`
}

// TrackingSample - периодический внешний замер владения и передач.
type TrackingSample struct {
	TeamID       int       `json:"team_id"`
	Possession   float64   `json:"possession"`
	Passes       int       `json:"passes"`
	PassAccuracy float64   `json:"pass_accuracy"`
	ReportedAt   time.Time `json:"reported_at,omitempty"`
}

// Типы сообщений websocket-протокола.
const (
	// входящие
	MsgJoinMatch          = "join-match"
	MsgLeaveMatch         = "leave-match"
	MsgJoinTournament     = "join-tournament"
	MsgStartEventEntry    = "start-event-entry"
	MsgEndEventEntry      = "end-event-entry"
	MsgValidateEventEntry = "validate-event-entry"
	MsgSubmitEventEntry   = "submit-event-entry"
	MsgControlTimer       = "control-timer"
	MsgChangeStatus       = "change-status"
	MsgSyncMatch          = "sync-match"

	// ответы на команды
	MsgMatchJoined          = "match-joined"
	MsgMatchLeft            = "match-left"
	MsgTournamentJoined     = "tournament-joined"
	MsgEventEntryStarted    = "event-entry-started"
	MsgEventEntryEnded      = "event-entry-ended"
	MsgEventEntryValidation = "event-entry-validation"
	MsgEventEntrySubmitted  = "event-entry-submitted"
	MsgTimerControlled      = "timer-controlled"
	MsgStatusChanged        = "status-changed"
	MsgMatchSync            = "match-sync"
	MsgError                = "error"

	// рассылка в комнаты
	MsgMatchEvent            = "match-event"
	MsgMatchState            = "match-state"
	MsgMatchTick             = "match-tick"
	MsgTeamStatisticsUpdated = "team-statistics-updated"
	MsgSessionExpired        = "session-expired"
	MsgSessionStarted        = "session-started"
	MsgSessionEnded          = "session-ended"
	MsgSubstitutionRequested = "substitution-requested"
	MsgMatchStateError       = "match-state-error"
)

// MatchRoomID возвращает имя комнаты рассылки матча.
func MatchRoomID(matchID int) string {
	return "match_" + strconv.Itoa(matchID)
}

func TournamentRoomID(tournamentID int) string {
	return "tournament_" + strconv.Itoa(tournamentID)
}

// LiveMessage - конверт каждого исходящего websocket-сообщения.
type LiveMessage struct {
	Type      string      `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	RoomID    string      `json:"room_id,omitempty"`
	Payload   interface{} `json:"payload"`
}

// LiveCommand - конверт каждого входящего websocket-сообщения.
type LiveCommand struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type MatchStatePayload struct {
	MatchID int            `json:"match_id"`
	State   MatchStateView `json:"state"`
	Version int64          `json:"version"`
}

type MatchTickPayload struct {
	MatchID      int `json:"match_id"`
	ClockSeconds int `json:"clock_seconds"`
}

type TeamStatisticsPayload struct {
	MatchID  int              `json:"match_id"`
	TeamID   int              `json:"team_id"`
	Snapshot TeamStatSnapshot `json:"snapshot"`
}

type SessionPayload struct {
	SessionID   string `json:"session_id"`
	MatchID     int    `json:"match_id"`
	PrincipalID int    `json:"principal_id"`
	Role        Role   `json:"role,omitempty"`
}

type MatchStateErrorPayload struct {
	MatchID int    `json:"match_id"`
	Message string `json:"message"`
}

type MatchSyncPayload struct {
	MatchID int            `json:"match_id"`
	State   MatchStateView `json:"state"`
	Events  []MatchEvent   `json:"events"`
}
