package live

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Dosada05/tournament-live/models"
)

// JoinMatch подписывает sink на комнату матча и отдаёт ему текущее состояние
// раньше любых последующих рассылок.
func (e *Engine) JoinMatch(ctx context.Context, sub models.MatchRoomSubscription, sink chan<- []byte) (func(), error) {
	var unsubscribe func()
	err := e.do(ctx, sub.MatchID, func(w *matchWorker) error {
		if sub.SubscribedAt.IsZero() {
			sub.SubscribedAt = w.now().UTC()
		}
		room := models.MatchRoomID(sub.MatchID)
		unsubscribe = e.deps.Rooms.Subscribe(room, sub, sink)
		e.deps.Rooms.Deliver(sink, models.LiveMessage{Type: models.MsgMatchState, RoomID: room, Payload: w.statePayload()})
		for _, snap := range w.stats.Snapshots() {
			e.deps.Rooms.Deliver(sink, models.LiveMessage{
				Type:    models.MsgTeamStatisticsUpdated,
				RoomID:  room,
				Payload: models.TeamStatisticsPayload{MatchID: sub.MatchID, TeamID: snap.TeamID, Snapshot: snap},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return unsubscribe, nil
}

func canEnterEvents(p models.Principal, opts ValidatorOptions) bool {
	return p.Role.CanOfficiate() || (p.Role == models.RoleCoach && opts.CoachSubstitutionRequests)
}

// StartEventEntry открывает сессию ввода событий для пользователя.
func (e *Engine) StartEventEntry(ctx context.Context, matchID int, p models.Principal) (models.EventEntrySession, error) {
	if !canEnterEvents(p, e.opts.Validator) {
		return models.EventEntrySession{}, &AuthorizationError{PrincipalID: p.ID, Role: p.Role, MatchID: matchID, Reason: "start event entry"}
	}
	var session models.EventEntrySession
	err := e.do(ctx, matchID, func(w *matchWorker) error {
		if w.state.Status.IsTerminal() {
			return fmt.Errorf("%w: match %d is %s", ErrMatchFinished, matchID, w.state.Status)
		}
		s, err := w.sessions.Start(p, w.now().UTC())
		if err != nil {
			return err
		}
		e.indexSession(s.SessionID, matchID)
		w.publish(models.MsgSessionStarted, models.SessionPayload{SessionID: s.SessionID, MatchID: matchID, PrincipalID: p.ID, Role: p.Role})
		session = s
		return nil
	})
	return session, err
}

// EndEventEntry закрывает сессию. Неизвестная или уже закрытая сессия - no-op.
func (e *Engine) EndEventEntry(ctx context.Context, sessionID string, p models.Principal) error {
	matchID, ok := e.sessionMatch(sessionID)
	if !ok {
		return nil
	}
	_, err := e.doResident(ctx, matchID, func(w *matchWorker) error {
		s, ok := w.sessions.Get(sessionID)
		if !ok {
			return nil
		}
		if s.PrincipalID != p.ID && !p.Role.CanOfficiate() {
			return &AuthorizationError{PrincipalID: p.ID, Role: p.Role, MatchID: matchID, Reason: "end another principal's session"}
		}
		w.sessions.End(sessionID)
		e.unindexSession(sessionID)
		w.publish(models.MsgSessionEnded, models.SessionPayload{SessionID: sessionID, MatchID: matchID, PrincipalID: s.PrincipalID, Role: s.Role})
		return nil
	})
	return err
}

// ValidateEvent прогоняет валидатор по текущему состоянию без применения.
func (e *Engine) ValidateEvent(ctx context.Context, c Candidate) (ValidationResult, error) {
	var res ValidationResult
	err := e.do(ctx, c.Input.MatchID, func(w *matchWorker) error {
		r, err := Validate(c, w.state, e.opts.Validator)
		if err != nil {
			return err
		}
		w.sessions.Touch(c.Principal.ID, w.now())
		res = r
		return nil
	})
	return res, err
}

// SubmitEvent проверяет и применяет событие. У пользователя должна быть
// открытая сессия ввода для этого матча.
func (e *Engine) SubmitEvent(ctx context.Context, c Candidate) (SubmitResult, error) {
	var out SubmitResult
	err := e.do(ctx, c.Input.MatchID, func(w *matchWorker) error {
		r, err := w.submit(c, true)
		out = r
		return err
	})
	return out, err
}

// ChangeStatus записывает событие STATUS_CHANGE на текущей минуте матча.
func (e *Engine) ChangeStatus(ctx context.Context, matchID int, p models.Principal, status models.MatchStatus) (SubmitResult, error) {
	if !p.Role.CanOfficiate() {
		return SubmitResult{}, &AuthorizationError{PrincipalID: p.ID, Role: p.Role, MatchID: matchID, Reason: "change match status"}
	}
	var out SubmitResult
	err := e.do(ctx, matchID, func(w *matchWorker) error {
		c := Candidate{
			Principal: p,
			Input: models.MatchEventInput{
				MatchID: matchID,
				Type:    models.EventStatusChange,
				Minute:  w.clockMinute(),
				Status:  status,
			},
		}
		r, err := w.submit(c, false)
		out = r
		return err
	})
	return out, err
}

// ControlTimer управляет таймером матча (start, pause, resume, stop).
func (e *Engine) ControlTimer(ctx context.Context, matchID int, p models.Principal, action models.TimerAction) (models.TimerView, error) {
	if !p.Role.CanOfficiate() {
		return models.TimerView{}, &AuthorizationError{PrincipalID: p.ID, Role: p.Role, MatchID: matchID, Reason: "control the match timer"}
	}
	var view models.TimerView
	err := e.do(ctx, matchID, func(w *matchWorker) error {
		v, err := w.controlTimer(action)
		view = v
		return err
	})
	return view, err
}

// ReportTracking сохраняет внешний замер владения и передач.
func (e *Engine) ReportTracking(ctx context.Context, matchID int, sample models.TrackingSample) (models.TeamStatSnapshot, error) {
	var snap models.TeamStatSnapshot
	err := e.do(ctx, matchID, func(w *matchWorker) error {
		if sample.ReportedAt.IsZero() {
			sample.ReportedAt = w.now().UTC()
		}
		s, err := w.stats.ReportTracking(sample)
		if err != nil {
			return err
		}
		if w.state.Tracking == nil {
			w.state.Tracking = make(map[int]models.TrackingSample, 2)
		}
		w.state.Tracking[sample.TeamID] = sample
		w.persist()
		snap = s
		w.publish(models.MsgTeamStatisticsUpdated, models.TeamStatisticsPayload{MatchID: matchID, TeamID: s.TeamID, Snapshot: s})
		// владение соперника тоже изменилось
		for _, other := range w.stats.Snapshots() {
			if other.TeamID != s.TeamID {
				w.publish(models.MsgTeamStatisticsUpdated, models.TeamStatisticsPayload{MatchID: matchID, TeamID: other.TeamID, Snapshot: other})
			}
		}
		return nil
	})
	return snap, err
}

// State возвращает копию авторитетного состояния матча.
func (e *Engine) State(ctx context.Context, matchID int) (*models.MatchState, error) {
	var state *models.MatchState
	err := e.do(ctx, matchID, func(w *matchWorker) error {
		w.syncClock()
		state = w.state.Clone()
		return nil
	})
	return state, err
}

func (e *Engine) Statistics(ctx context.Context, matchID int) ([]models.TeamStatSnapshot, error) {
	var snaps []models.TeamStatSnapshot
	err := e.do(ctx, matchID, func(w *matchWorker) error {
		snaps = w.stats.Snapshots()
		return nil
	})
	return snaps, err
}

// Sync возвращает компактное состояние и все события с sequence больше sinceSequence.
func (e *Engine) Sync(ctx context.Context, matchID int, sinceSequence int) (models.MatchSyncPayload, error) {
	var out models.MatchSyncPayload
	err := e.do(ctx, matchID, func(w *matchWorker) error {
		from := sinceSequence + 1
		if from < 0 {
			from = 0
		}
		events := []models.MatchEvent{}
		if from < len(w.state.AppliedEvents) {
			events = append(events, w.state.AppliedEvents[from:]...)
		}
		out = models.MatchSyncPayload{MatchID: matchID, State: w.statePayload().State, Events: events}
		return nil
	})
	return out, err
}

// ConnectionLost перезапускает таймер простоя сессий пользователя в указанных
// матчах. Сессии не закрываются, а истекают, если никто не переподключился.
func (e *Engine) ConnectionLost(ctx context.Context, principalID int, matchIDs []int) {
	for _, matchID := range matchIDs {
		_, err := e.doResident(ctx, matchID, func(w *matchWorker) error {
			if w.sessions.Touch(principalID, w.now()) {
				w.logger.Info("Transport dropped, session idle timer restarted", slog.Int("principal_id", principalID))
			}
			return nil
		})
		if err != nil {
			e.logger.Warn("Failed to suspend sessions after disconnect", slog.Int("match_id", matchID), slog.Any("error", err))
		}
	}
}
