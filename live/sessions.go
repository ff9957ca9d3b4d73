package live

import (
	"sort"
	"time"

	"github.com/Dosada05/tournament-live/models"
)

// SessionManager ведёт сессии ввода событий одного матча. Сессии не хранят
// событий, закрытие сессии применённые события не трогает.
type SessionManager struct {
	matchID     int
	idleTimeout time.Duration
	newID       func() string
	byID        map[string]*models.EventEntrySession
	byPrincipal map[int]string
}

func NewSessionManager(matchID int, idleTimeout time.Duration, newID func() string) *SessionManager {
	return &SessionManager{
		matchID:     matchID,
		idleTimeout: idleTimeout,
		newID:       newID,
		byID:        make(map[string]*models.EventEntrySession),
		byPrincipal: make(map[int]string),
	}
}

// Start открывает сессию или возвращает *ConflictError с уже открытой
// сессией пользователя в этом матче.
func (m *SessionManager) Start(p models.Principal, now time.Time) (models.EventEntrySession, error) {
	if id, ok := m.byPrincipal[p.ID]; ok {
		return models.EventEntrySession{}, &ConflictError{MatchID: m.matchID, PrincipalID: p.ID, SessionID: id}
	}
	s := &models.EventEntrySession{
		SessionID:      m.newID(),
		MatchID:        m.matchID,
		PrincipalID:    p.ID,
		Role:           p.Role,
		StartedAt:      now,
		LastActivityAt: now,
	}
	m.byID[s.SessionID] = s
	m.byPrincipal[p.ID] = s.SessionID
	return *s, nil
}

// End закрывает сессию. Неизвестная или закрытая сессия - no-op.
func (m *SessionManager) End(sessionID string) (models.EventEntrySession, bool) {
	s, ok := m.byID[sessionID]
	if !ok {
		return models.EventEntrySession{}, false
	}
	delete(m.byID, sessionID)
	delete(m.byPrincipal, s.PrincipalID)
	return *s, true
}

func (m *SessionManager) Get(sessionID string) (models.EventEntrySession, bool) {
	s, ok := m.byID[sessionID]
	if !ok {
		return models.EventEntrySession{}, false
	}
	return *s, true
}

func (m *SessionManager) ActiveFor(principalID int) (models.EventEntrySession, bool) {
	id, ok := m.byPrincipal[principalID]
	if !ok {
		return models.EventEntrySession{}, false
	}
	return *m.byID[id], true
}

// Touch сбрасывает таймер простоя сессии пользователя.
func (m *SessionManager) Touch(principalID int, now time.Time) bool {
	id, ok := m.byPrincipal[principalID]
	if !ok {
		return false
	}
	m.byID[id].LastActivityAt = now
	return true
}

func (m *SessionManager) RecordSubmission(principalID int, now time.Time) {
	if id, ok := m.byPrincipal[principalID]; ok {
		s := m.byID[id]
		s.EventsSubmittedCount++
		s.LastActivityAt = now
	}
}

// Expire принудительно закрывает сессии, простаивающие дольше таймаута.
func (m *SessionManager) Expire(now time.Time) []models.EventEntrySession {
	var expired []models.EventEntrySession
	for id, s := range m.byID {
		if now.Sub(s.LastActivityAt) >= m.idleTimeout {
			expired = append(expired, *s)
			delete(m.byID, id)
			delete(m.byPrincipal, s.PrincipalID)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].StartedAt.Before(expired[j].StartedAt) })
	return expired
}

func (m *SessionManager) Len() int { return len(m.byID) }

func (m *SessionManager) All() []models.EventEntrySession {
	out := make([]models.EventEntrySession, 0, len(m.byID))
	for _, s := range m.byID {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}
