package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-live/models"
)

// matchWorker владеет одним живым матчем. Все команды матча выполняются на
// его горутине, поэтому поля ниже конкурентно не используются.
type matchWorker struct {
	engine  *Engine
	matchID int
	logger  *slog.Logger

	state    *models.MatchState
	machine  *Machine
	stats    *Aggregator
	sessions *SessionManager
	timer    *Timer
	writer   *snapshotWriter

	lastActivity time.Time
	fault        *StateIntegrityError

	cmds chan func(*matchWorker)
	quit chan struct{}
	done chan struct{}
}

func newMatchWorker(e *Engine, state *models.MatchState) *matchWorker {
	now := e.now()
	return &matchWorker{
		engine:       e,
		matchID:      state.MatchID,
		logger:       e.logger.With(slog.Int("match_id", state.MatchID)),
		state:        state,
		machine:      NewMachine(state, e.now),
		stats:        RebuildStatistics(state),
		sessions:     NewSessionManager(state.MatchID, e.opts.SessionIdleTimeout, e.opts.NewID),
		timer:        NewTimer(state.Timer, state.ClockSeconds, now),
		writer:       newSnapshotWriter(state.MatchID, e.deps.Store, e.logger),
		lastActivity: now,
		cmds:         make(chan func(*matchWorker)),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

func (w *matchWorker) run(ctx context.Context) {
	defer close(w.done)

	stopWriter := make(chan struct{})
	go w.writer.run(ctx, stopWriter)
	defer close(stopWriter)

	ticker := time.NewTicker(w.engine.opts.TickInterval)
	defer ticker.Stop()
	housekeeping := time.NewTicker(w.engine.opts.HousekeepingInterval)
	defer housekeeping.Stop()

	for {
		select {
		case cmd := <-w.cmds:
			cmd(w)
			if w.fault != nil {
				w.quarantine(ctx)
				return
			}
		case <-ticker.C:
			w.tick()
		case <-housekeeping.C:
			w.housekeeping()
			if w.evictable() && w.evict(ctx) {
				return
			}
		case <-w.quit:
			w.syncClock()
			w.persist()
			if err := w.writer.flush(ctx); err != nil {
				w.logger.Error("Failed to flush match snapshot on shutdown", slog.Any("error", err))
			}
			w.engine.forget(w)
			return
		}
	}
}

// exec выполняет команду, превращая панику в нарушение целостности матча.
func (w *matchWorker) exec(fn func(*matchWorker) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = integrityFault(w.matchID, "panic: %v", r)
		}
		var fault *StateIntegrityError
		if errors.As(err, &fault) {
			w.fault = fault
		}
	}()
	err = fn(w)
	if err == nil {
		w.lastActivity = w.engine.now()
	}
	return err
}

func (w *matchWorker) now() time.Time { return w.engine.now() }

func (w *matchWorker) syncClock() {
	now := w.now()
	w.state.Timer = w.timer.State()
	w.state.ClockSeconds = w.timer.ClockSeconds(now)
}

func (w *matchWorker) persist() {
	w.writer.enqueue(w.state.Clone())
}

func (w *matchWorker) clockMinute() int {
	m := w.timer.ClockSeconds(w.now()) / 60
	if m > w.engine.opts.Validator.MaxMinute {
		m = w.engine.opts.Validator.MaxMinute
	}
	return m
}

func (w *matchWorker) publish(msgType string, payload any) {
	room := models.MatchRoomID(w.matchID)
	w.engine.deps.Rooms.Publish(room, models.LiveMessage{Type: msgType, RoomID: room, Payload: payload})
}

func (w *matchWorker) publishTournament(msgType string, payload any) {
	if w.state.TournamentID == 0 {
		return
	}
	room := models.TournamentRoomID(w.state.TournamentID)
	w.engine.deps.Rooms.Publish(room, models.LiveMessage{Type: msgType, RoomID: room, Payload: payload})
}

func (w *matchWorker) statePayload() models.MatchStatePayload {
	w.syncClock()
	return models.MatchStatePayload{MatchID: w.matchID, State: w.state.View(), Version: w.state.Version}
}

// submit проверяет кандидата и применяет его, если он принят. Смена статуса
// проходит здесь же с requireSession = false.
func (w *matchWorker) submit(c Candidate, requireSession bool) (SubmitResult, error) {
	principal := c.Principal
	if requireSession {
		if _, ok := w.sessions.ActiveFor(principal.ID); !ok {
			return SubmitResult{}, fmt.Errorf("%w: match %d", ErrSessionRequired, w.matchID)
		}
	}

	res, err := Validate(c, w.state, w.engine.opts.Validator)
	if err != nil {
		return SubmitResult{}, err
	}
	w.sessions.Touch(principal.ID, w.now())
	if !res.IsValid {
		if res.unauthorized {
			return SubmitResult{Result: res}, &AuthorizationError{
				PrincipalID: principal.ID,
				Role:        principal.Role,
				MatchID:     w.matchID,
				Reason:      "record " + string(c.Input.Type) + " events",
			}
		}
		return SubmitResult{Result: res}, &ValidationError{Result: res}
	}
	if res.NoOp {
		return SubmitResult{Result: res}, nil
	}
	if res.Pending {
		req := w.requestSubstitution(c)
		return SubmitResult{Result: res, RequestID: req.RequestID}, nil
	}

	ev, err := w.buildEvent(c)
	if err != nil {
		return SubmitResult{}, err
	}
	applied, err := w.apply(ev)
	if err != nil {
		return SubmitResult{}, err
	}
	w.sessions.RecordSubmission(principal.ID, w.now())
	return SubmitResult{Result: res, Event: &applied}, nil
}

func (w *matchWorker) buildEvent(c Candidate) (models.MatchEvent, error) {
	in := c.Input
	ev := models.MatchEvent{
		ID:                w.engine.opts.NewID(),
		MatchID:           w.matchID,
		Type:              in.Type,
		TeamID:            in.TeamID,
		Minute:            in.Minute,
		AuthorPrincipalID: c.Principal.ID,
	}
	player := models.IntValue(in.PlayerID)
	switch in.Type {
	case models.EventGoal:
		ev.Payload = models.GoalPayload{PlayerID: player, AssistPlayerID: in.AssistPlayerID}
	case models.EventYellowCard:
		ev.Payload = models.YellowCardPayload{PlayerID: player, Reason: in.Note}
	case models.EventRedCard:
		ev.Payload = models.RedCardPayload{PlayerID: player, Reason: in.Note}
	case models.EventSubstitution:
		if in.ConfirmsRequestID != "" {
			req, _ := w.state.PendingSubstitution(in.ConfirmsRequestID)
			ev.Payload = models.SubstitutionPayload{PlayerOutID: req.PlayerOutID, PlayerInID: req.PlayerInID, RequestID: req.RequestID}
		} else {
			ev.Payload = models.SubstitutionPayload{PlayerOutID: models.IntValue(in.PlayerOutID), PlayerInID: models.IntValue(in.PlayerInID)}
		}
	case models.EventInjury:
		ev.Payload = models.InjuryPayload{PlayerID: player, Note: in.Note}
	case models.EventStatusChange:
		ev.TeamID = 0
		ev.Payload = models.StatusChangePayload{From: w.state.Status, To: in.Status}
	case models.EventShot:
		ev.Payload = models.ShotPayload{PlayerID: player, OnTarget: in.OnTarget}
	case models.EventCorner:
		ev.Payload = models.CornerPayload{}
	case models.EventFoul:
		ev.Payload = models.FoulPayload{PlayerID: player}
	case models.EventCorrection:
		ev.Payload = models.CorrectionPayload{CorrectsEventID: in.CorrectsEventID, Reason: in.Note}
	case models.EventOther:
		ev.Payload = models.OtherPayload{Note: in.Note}
	default:
		return models.MatchEvent{}, fmt.Errorf("%w: unknown event type %q", ErrMalformedRequest, in.Type)
	}
	return ev, nil
}

// apply проводит принятое событие через машину состояний и рассылает результат.
func (w *matchWorker) apply(ev models.MatchEvent) (models.MatchEvent, error) {
	prevStatus := w.state.Status
	prevHome, prevAway := w.state.HomeScore, w.state.AwayScore

	applied, err := w.machine.Apply(ev)
	if err != nil {
		return models.MatchEvent{}, err
	}
	if p, ok := applied.Payload.(models.StatusChangePayload); ok {
		w.onStatusChanged(p)
	}
	snap, statsChanged := w.stats.OnEventApplied(applied)
	state := w.statePayload()

	w.publish(models.MsgMatchEvent, applied)
	w.publish(models.MsgMatchState, state)
	if statsChanged {
		w.publish(models.MsgTeamStatisticsUpdated, models.TeamStatisticsPayload{MatchID: w.matchID, TeamID: snap.TeamID, Snapshot: snap})
	}
	if prevStatus != w.state.Status || prevHome != w.state.HomeScore || prevAway != w.state.AwayScore {
		w.publishTournament(models.MsgMatchState, state)
	}
	if sink := w.engine.deps.Events; sink != nil {
		sink.PublishApplied(applied, state.State)
	}
	w.persist()
	if w.state.Status == models.MatchStatusCompleted && prevStatus != w.state.Status {
		w.engine.recordResult(w.state.Clone())
	}
	return applied, nil
}

func (w *matchWorker) onStatusChanged(p models.StatusChangePayload) {
	now := w.now()
	var err error
	// начало матча таймер не запускает, это делает судья через control-timer
	switch {
	case p.To == models.MatchStatusPaused:
		_, err = w.timer.Pause(now)
	case p.To == models.MatchStatusInProgress && p.From == models.MatchStatusPaused:
		_, err = w.timer.Resume(now)
	case p.To.IsTerminal():
		_, err = w.timer.Stop(now)
	}
	if err != nil {
		w.logger.Debug("Timer unchanged by status change", slog.String("status", string(p.To)), slog.Any("reason", err))
	}
	w.syncClock()
}

func (w *matchWorker) requestSubstitution(c Candidate) models.PendingSubstitution {
	in := c.Input
	req := models.PendingSubstitution{
		RequestID:   w.engine.opts.NewID(),
		TeamID:      in.TeamID,
		PlayerOutID: models.IntValue(in.PlayerOutID),
		PlayerInID:  models.IntValue(in.PlayerInID),
		Minute:      in.Minute,
		RequestedBy: c.Principal.ID,
		RequestedAt: w.now().UTC(),
	}
	w.state.PendingSubstitutions = append(w.state.PendingSubstitutions, req)
	w.sessions.RecordSubmission(c.Principal.ID, w.now())
	w.publish(models.MsgSubstitutionRequested, req)
	w.persist()
	return req
}

func (w *matchWorker) controlTimer(action models.TimerAction) (models.TimerView, error) {
	if (action == models.TimerActionStart || action == models.TimerActionResume) && w.state.Status != models.MatchStatusInProgress {
		return models.TimerView{}, fmt.Errorf("%w: match is %s", ErrTimerTransition, w.state.Status)
	}
	changed, err := w.timer.Do(action, w.now())
	if err != nil {
		return models.TimerView{}, err
	}
	w.syncClock()
	if changed {
		w.publish(models.MsgMatchState, w.statePayload())
		w.persist()
	}
	return models.TimerView{MatchID: w.matchID, State: w.state.Timer, ClockSeconds: w.state.ClockSeconds}, nil
}

func (w *matchWorker) tick() {
	secs, advanced := w.timer.Tick(w.now())
	if !advanced {
		return
	}
	w.state.ClockSeconds = secs
	w.publish(models.MsgMatchTick, models.MatchTickPayload{MatchID: w.matchID, ClockSeconds: secs})
}

func (w *matchWorker) housekeeping() {
	for _, s := range w.sessions.Expire(w.now()) {
		w.engine.unindexSession(s.SessionID)
		w.logger.Info("Event entry session expired", slog.String("session_id", s.SessionID), slog.Int("principal_id", s.PrincipalID))
		w.publish(models.MsgSessionExpired, models.SessionPayload{SessionID: s.SessionID, MatchID: w.matchID, PrincipalID: s.PrincipalID, Role: s.Role})
	}
	if w.timer.Running() {
		w.syncClock()
		w.persist()
	}
}

func (w *matchWorker) evictable() bool {
	if w.timer.Running() || w.sessions.Len() > 0 {
		return false
	}
	if w.state.Status.IsTerminal() {
		return true
	}
	if w.engine.deps.Rooms.RoomSize(models.MatchRoomID(w.matchID)) > 0 {
		return false
	}
	return w.now().Sub(w.lastActivity) >= w.engine.opts.MatchIdleTimeout
}

// evict сохраняет матч и убирает его из реестра. Возвращает false, если снапшот
// не сохранился, тогда воркер остаётся в памяти.
func (w *matchWorker) evict(ctx context.Context) bool {
	w.syncClock()
	w.persist()
	if err := w.writer.flush(ctx); err != nil {
		w.logger.Warn("Match kept resident: snapshot flush failed", slog.Any("error", err))
		return false
	}
	w.engine.forget(w)
	if w.state.Status.IsTerminal() {
		w.engine.archive(w.state.Clone())
	}
	w.logger.Info("Live match evicted", slog.String("status", string(w.state.Status)), slog.Int64("version", w.state.Version))
	return true
}

// quarantine выгружает матч после нарушения целостности. Снапшоты уже
// подтверждённых событий сохраняются, следующее обращение загрузит матч заново.
func (w *matchWorker) quarantine(ctx context.Context) {
	w.logger.Error("Match state integrity fault, quarantining match", slog.Any("error", w.fault))
	// flush заодно дожидается уже идущей записи
	if err := w.writer.flush(ctx); err != nil {
		w.logger.Error("Failed to flush match snapshot before quarantine", slog.Any("error", err))
	}
	w.publish(models.MsgMatchStateError, models.MatchStateErrorPayload{
		MatchID: w.matchID,
		Message: "match state integrity fault; state will be reloaded on next access",
	})
	// сессии не переживают перезагрузку, судьям нужно открыть их заново
	for _, s := range w.sessions.All() {
		w.engine.unindexSession(s.SessionID)
		w.publish(models.MsgSessionEnded, models.SessionPayload{SessionID: s.SessionID, MatchID: w.matchID, PrincipalID: s.PrincipalID, Role: s.Role})
	}
	w.engine.forget(w)
}
