package live

import (
	"time"

	"github.com/Dosada05/tournament-live/models"
)

var allowedTransitions = map[models.MatchStatus][]models.MatchStatus{
	models.MatchStatusScheduled:  {models.MatchStatusInProgress, models.MatchStatusCanceled},
	models.MatchStatusInProgress: {models.MatchStatusPaused, models.MatchStatusCompleted, models.MatchStatusCanceled},
	models.MatchStatusPaused:     {models.MatchStatusInProgress, models.MatchStatusCompleted, models.MatchStatusCanceled},
	models.MatchStatusCompleted:  {},
	models.MatchStatusCanceled:   {},
}

func isValidStatusTransition(current, next models.MatchStatus) bool {
	for _, allowedNextStatus := range allowedTransitions[current] {
		if next == allowedNextStatus {
			return true
		}
	}
	return false
}

// Machine применяет принятые события к состоянию матча. Принадлежит одному
// воркеру, конкурентно не используется.
type Machine struct {
	state     *models.MatchState
	now       func() time.Time
	replaying bool
}

func NewMachine(state *models.MatchState, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	if state.AppliedEvents == nil {
		state.AppliedEvents = []models.MatchEvent{}
	}
	if state.PendingSubstitutions == nil {
		state.PendingSubstitutions = []models.PendingSubstitution{}
	}
	return &Machine{state: state, now: now}
}

func (m *Machine) State() *models.MatchState { return m.state }

// Apply добавляет событие, присваивает sequence и обновляет счёт, карточки и
// статус. Изменения применяются целиком или не применяются вовсе: любое
// противоречие возвращается как *StateIntegrityError до изменения состояния.
func (m *Machine) Apply(ev models.MatchEvent) (models.MatchEvent, error) {
	effect, err := m.plan(ev)
	if err != nil {
		return models.MatchEvent{}, err
	}
	s := m.state
	ev.Sequence = len(s.AppliedEvents)
	if ev.AcceptedAt.IsZero() {
		ev.AcceptedAt = m.now().UTC()
	}
	effect()
	s.AppliedEvents = append(s.AppliedEvents, ev)
	s.Version++
	s.UpdatedAt = ev.AcceptedAt
	return ev, nil
}

// Replay повторно применяет ранее принятое событие с его sequence.
func (m *Machine) Replay(ev models.MatchEvent) error {
	if ev.Sequence != len(m.state.AppliedEvents) {
		return integrityFault(m.state.MatchID, "event %s has sequence %d, expected %d", ev.ID, ev.Sequence, len(m.state.AppliedEvents))
	}
	m.replaying = true
	defer func() { m.replaying = false }()
	_, err := m.Apply(ev)
	return err
}

func (m *Machine) plan(ev models.MatchEvent) (func(), error) {
	s := m.state
	if ev.MatchID != s.MatchID {
		return nil, integrityFault(s.MatchID, "event %s belongs to match %d", ev.ID, ev.MatchID)
	}
	if ev.Payload == nil || ev.Payload.EventType() != ev.Type {
		return nil, integrityFault(s.MatchID, "event %s of type %s carries a mismatched payload", ev.ID, ev.Type)
	}
	if _, dup := s.FindEvent(ev.ID); dup {
		return nil, integrityFault(s.MatchID, "event %s applied twice", ev.ID)
	}

	if p, ok := ev.Payload.(models.StatusChangePayload); ok {
		if p.From != s.Status || !isValidStatusTransition(s.Status, p.To) {
			return nil, integrityFault(s.MatchID, "illegal status transition %s -> %s (current %s)", p.From, p.To, s.Status)
		}
		return func() { s.Status = p.To }, nil
	}

	if !s.Status.AcceptsGameplay() {
		return nil, integrityFault(s.MatchID, "%s event while match is %s", ev.Type, s.Status)
	}
	score, cards, err := m.side(ev.TeamID)
	if err != nil {
		return nil, err
	}

	switch p := ev.Payload.(type) {
	case models.GoalPayload:
		return func() { *score++ }, nil
	case models.YellowCardPayload:
		return func() { cards.Yellow++ }, nil
	case models.RedCardPayload:
		return func() { cards.Red++ }, nil
	case models.SubstitutionPayload:
		if p.RequestID == "" {
			return func() {}, nil
		}
		req, idx := s.PendingSubstitution(p.RequestID)
		if idx < 0 && m.replaying {
			// запросы хранятся только в снапшоте, подтверждение при replay свой запрос уже забрало
			return func() {}, nil
		}
		if idx < 0 || req.TeamID != ev.TeamID {
			return nil, integrityFault(s.MatchID, "substitution %s confirms unknown request %s", ev.ID, p.RequestID)
		}
		return func() {
			s.PendingSubstitutions = append(s.PendingSubstitutions[:idx:idx], s.PendingSubstitutions[idx+1:]...)
		}, nil
	case models.CorrectionPayload:
		return m.planCorrection(ev, p, score, cards)
	case models.InjuryPayload, models.ShotPayload, models.CornerPayload, models.FoulPayload, models.OtherPayload:
		return func() {}, nil
	default:
		return nil, integrityFault(s.MatchID, "unhandled payload %T", p)
	}
}

func (m *Machine) planCorrection(ev models.MatchEvent, p models.CorrectionPayload, score *int, cards *models.CardTally) (func(), error) {
	s := m.state
	target, ok := s.FindEvent(p.CorrectsEventID)
	if !ok || s.IsCorrected(target.ID) || target.TeamID != ev.TeamID {
		return nil, integrityFault(s.MatchID, "correction %s cannot target event %s", ev.ID, p.CorrectsEventID)
	}
	switch target.Payload.(type) {
	case models.GoalPayload:
		if *score == 0 {
			return nil, integrityFault(s.MatchID, "correction %s would make the score negative", ev.ID)
		}
		return func() { *score-- }, nil
	case models.YellowCardPayload:
		if cards.Yellow == 0 {
			return nil, integrityFault(s.MatchID, "correction %s would make yellow cards negative", ev.ID)
		}
		return func() { cards.Yellow-- }, nil
	case models.RedCardPayload:
		if cards.Red == 0 {
			return nil, integrityFault(s.MatchID, "correction %s would make red cards negative", ev.ID)
		}
		return func() { cards.Red-- }, nil
	case models.StatusChangePayload, models.CorrectionPayload:
		return nil, integrityFault(s.MatchID, "%s events cannot be corrected", target.Type)
	default:
		return func() {}, nil
	}
}

func (m *Machine) side(teamID int) (*int, *models.CardTally, error) {
	s := m.state
	switch teamID {
	case s.HomeTeamID:
		return &s.HomeScore, &s.HomeCards, nil
	case s.AwayTeamID:
		return &s.AwayScore, &s.AwayCards, nil
	default:
		return nil, nil, integrityFault(s.MatchID, "team %d does not play in this match", teamID)
	}
}

// Fold восстанавливает производную от событий часть состояния по заголовку и событиям.
func Fold(header *models.MatchState, events []models.MatchEvent) (*models.MatchState, error) {
	m := NewMachine(header, nil)
	for _, ev := range events {
		if err := m.Replay(ev); err != nil {
			return nil, err
		}
	}
	return m.state, nil
}
