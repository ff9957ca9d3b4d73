package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	EventGoal         EventType = "GOAL"
	EventYellowCard   EventType = "YELLOW_CARD"
	EventRedCard      EventType = "RED_CARD"
	EventSubstitution EventType = "SUBSTITUTION"
	EventInjury       EventType = "INJURY"
	EventStatusChange EventType = "STATUS_CHANGE"
	EventShot         EventType = "SHOT"
	EventCorner       EventType = "CORNER"
	EventFoul         EventType = "FOUL"
	EventCorrection   EventType = "CORRECTION"
	EventOther        EventType = "OTHER"
)

func (t EventType) IsValid() bool {
	switch t {
	case EventGoal, EventYellowCard, EventRedCard, EventSubstitution, EventInjury,
		EventStatusChange, EventShot, EventCorner, EventFoul, EventCorrection, EventOther:
		return true
	}
	return false
}

// RequiresPlayer сообщает, должно ли событие указывать игрока.
func (t EventType) RequiresPlayer() bool {
	return t == EventGoal || t == EventYellowCard || t == EventRedCard
}

// EventPayload реализуют только типы данных событий из этого пакета.
type EventPayload interface {
	EventType() EventType
	isEventPayload()
}

type GoalPayload struct {
	PlayerID       int  `json:"player_id"`
	AssistPlayerID *int `json:"assist_player_id,omitempty"`
}

type YellowCardPayload struct {
	PlayerID int    `json:"player_id"`
	Reason   string `json:"reason,omitempty"`
}

type RedCardPayload struct {
	PlayerID int    `json:"player_id"`
	Reason   string `json:"reason,omitempty"`
}

type SubstitutionPayload struct {
	PlayerOutID int `json:"player_out_id"`
	PlayerInID  int `json:"player_in_id"`
	// RequestID задан, если замена подтверждает запрос тренера.
	RequestID string `json:"request_id,omitempty"`
}

type InjuryPayload struct {
	PlayerID int    `json:"player_id,omitempty"`
	Note     string `json:"note,omitempty"`
}

type StatusChangePayload struct {
	From MatchStatus `json:"from"`
	To   MatchStatus `json:"to"`
}

type ShotPayload struct {
	PlayerID int  `json:"player_id,omitempty"`
	OnTarget bool `json:"on_target"`
}

type CornerPayload struct{}

type FoulPayload struct {
	PlayerID int `json:"player_id,omitempty"`
}

type CorrectionPayload struct {
	CorrectsEventID string `json:"corrects_event_id"`
	Reason          string `json:"reason,omitempty"`
}

type OtherPayload struct {
	Note string `json:"note,omitempty"`
}

func (GoalPayload) EventType() EventType         { return EventGoal }
func (YellowCardPayload) EventType() EventType   { return EventYellowCard }
func (RedCardPayload) EventType() EventType      { return EventRedCard }
func (SubstitutionPayload) EventType() EventType { return EventSubstitution }
func (InjuryPayload) EventType() EventType       { return EventInjury }
func (StatusChangePayload) EventType() EventType { return EventStatusChange }
func (ShotPayload) EventType() EventType         { return EventShot }
func (CornerPayload) EventType() EventType       { return EventCorner }
func (FoulPayload) EventType() EventType         { return EventFoul }
func (CorrectionPayload) EventType() EventType   { return EventCorrection }
func (OtherPayload) EventType() EventType        { return EventOther }

func (GoalPayload) isEventPayload()         {}
func (YellowCardPayload) isEventPayload()   {}
func (RedCardPayload) isEventPayload()      {}
func (SubstitutionPayload) isEventPayload() {}
func (InjuryPayload) isEventPayload()       {}
func (StatusChangePayload) isEventPayload() {}
func (ShotPayload) isEventPayload()         {}
func (CornerPayload) isEventPayload()       {}
func (FoulPayload) isEventPayload()         {}
func (CorrectionPayload) isEventPayload()   {}
func (OtherPayload) isEventPayload()        {}

// MatchEvent - принятое и упорядоченное событие матча. После применения не изменяется.
type MatchEvent struct {
	ID                string       `json:"id"`
	MatchID           int          `json:"match_id"`
	Type              EventType    `json:"type"`
	TeamID            int          `json:"team_id,omitempty"`
	Minute            int          `json:"minute"`
	AuthorPrincipalID int          `json:"author_principal_id"`
	Payload           EventPayload `json:"payload"`
	AcceptedAt        time.Time    `json:"accepted_at"`
	Sequence          int          `json:"sequence"`
}

type matchEventJSON struct {
	ID                string          `json:"id"`
	MatchID           int             `json:"match_id"`
	Type              EventType       `json:"type"`
	TeamID            int             `json:"team_id,omitempty"`
	Minute            int             `json:"minute"`
	AuthorPrincipalID int             `json:"author_principal_id"`
	Payload           json.RawMessage `json:"payload"`
	AcceptedAt        time.Time       `json:"accepted_at"`
	Sequence          int             `json:"sequence"`
}

func (e *MatchEvent) UnmarshalJSON(data []byte) error {
	var raw matchEventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	payload, err := DecodeEventPayload(raw.Type, raw.Payload)
	if err != nil {
		return fmt.Errorf("event %s: %w", raw.ID, err)
	}
	*e = MatchEvent{
		ID:                raw.ID,
		MatchID:           raw.MatchID,
		Type:              raw.Type,
		TeamID:            raw.TeamID,
		Minute:            raw.Minute,
		AuthorPrincipalID: raw.AuthorPrincipalID,
		Payload:           payload,
		AcceptedAt:        raw.AcceptedAt,
		Sequence:          raw.Sequence,
	}
	return nil
}

// DecodeEventPayload декодирует данные события в вариант, соответствующий его типу.
func DecodeEventPayload(t EventType, data json.RawMessage) (EventPayload, error) {
	switch t {
	case EventGoal:
		return decodeInto[GoalPayload](data)
	case EventYellowCard:
		return decodeInto[YellowCardPayload](data)
	case EventRedCard:
		return decodeInto[RedCardPayload](data)
	case EventSubstitution:
		return decodeInto[SubstitutionPayload](data)
	case EventInjury:
		return decodeInto[InjuryPayload](data)
	case EventStatusChange:
		return decodeInto[StatusChangePayload](data)
	case EventShot:
		return decodeInto[ShotPayload](data)
	case EventCorner:
		return decodeInto[CornerPayload](data)
	case EventFoul:
		return decodeInto[FoulPayload](data)
	case EventCorrection:
		return decodeInto[CorrectionPayload](data)
	case EventOther:
		return decodeInto[OtherPayload](data)
	default:
		return nil, fmt.Errorf("unknown event type %q", t)
	}
}

func decodeInto[P EventPayload](data json.RawMessage) (EventPayload, error) {
	var p P
	if len(data) == 0 || string(data) == "null" {
		return p, nil
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return p, nil
}

// MatchEventInput - предложение события от клиента (до валидации и присвоения sequence).
type MatchEventInput struct {
	MatchID           int         `json:"match_id"`
	Type              EventType   `json:"type"`
	TeamID            int         `json:"team_id,omitempty"`
	Minute            int         `json:"minute"`
	PlayerID          *int        `json:"player_id,omitempty"`
	AssistPlayerID    *int        `json:"assist_player_id,omitempty"`
	PlayerOutID       *int        `json:"player_out_id,omitempty"`
	PlayerInID        *int        `json:"player_in_id,omitempty"`
	OnTarget          bool        `json:"on_target,omitempty"`
	Status            MatchStatus `json:"status,omitempty"`
	CorrectsEventID   string      `json:"corrects_event_id,omitempty"`
	ConfirmsRequestID string      `json:"confirms_request_id,omitempty"`
	Note              string      `json:"note,omitempty"`
}

// PlayerRef - игрок, который должен быть в заявке команды.
type PlayerRef struct {
	TeamID   int
	PlayerID int
}

// PlayerRefs перечисляет упомянутых во вводе игроков для проверки заявки.
func (in MatchEventInput) PlayerRefs() []PlayerRef {
	if in.TeamID == 0 || in.ConfirmsRequestID != "" {
		return nil
	}
	var refs []PlayerRef
	for _, id := range []*int{in.PlayerID, in.AssistPlayerID, in.PlayerOutID, in.PlayerInID} {
		if id != nil && *id > 0 {
			refs = append(refs, PlayerRef{TeamID: in.TeamID, PlayerID: *id})
		}
	}
	return refs
}

func IntValue(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
