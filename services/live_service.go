package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-live/live"
	"github.com/Dosada05/tournament-live/models"
)

const rosterLookupTimeout = 3 * time.Second

// JoinMatchRequest - параметры подписки на комнату матча.
type JoinMatchRequest struct {
	MatchID int         `json:"match_id"`
	Role    models.Role `json:"role"`
	TeamID  *int        `json:"team_id,omitempty"`
}

type LiveMatchService interface {
	JoinMatch(ctx context.Context, p models.Principal, connectionID string, req JoinMatchRequest, sink chan<- []byte) (func(), error)
	JoinTournament(ctx context.Context, connectionID string, tournamentID int, sink chan<- []byte) (func(), error)
	StartEventEntry(ctx context.Context, p models.Principal, matchID int) (models.EventEntrySession, error)
	EndEventEntry(ctx context.Context, p models.Principal, sessionID string) error
	ValidateEvent(ctx context.Context, p models.Principal, in models.MatchEventInput) (live.ValidationResult, error)
	SubmitEvent(ctx context.Context, p models.Principal, in models.MatchEventInput) (live.SubmitResult, error)
	ControlTimer(ctx context.Context, p models.Principal, matchID int, action models.TimerAction) (models.TimerView, error)
	ChangeStatus(ctx context.Context, p models.Principal, matchID int, status models.MatchStatus) (live.SubmitResult, error)
	Sync(ctx context.Context, matchID int, sinceSequence int) (models.MatchSyncPayload, error)
	State(ctx context.Context, matchID int) (models.MatchStateView, error)
	Statistics(ctx context.Context, matchID int) ([]models.TeamStatSnapshot, error)
	ReportTracking(ctx context.Context, matchID int, sample models.TrackingSample) (models.TeamStatSnapshot, error)
	ConnectionLost(ctx context.Context, principalID int, matchIDs []int)
}

type liveMatchService struct {
	engine  *live.Engine
	rooms   live.Broadcaster
	rosters live.RosterLookup
	logger  *slog.Logger
}

func NewLiveMatchService(engine *live.Engine, rooms live.Broadcaster, rosters live.RosterLookup, logger *slog.Logger) LiveMatchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &liveMatchService{
		engine:  engine,
		rooms:   rooms,
		rosters: rosters,
		logger:  logger,
	}
}

func (s *liveMatchService) JoinMatch(ctx context.Context, p models.Principal, connectionID string, req JoinMatchRequest, sink chan<- []byte) (func(), error) {
	role := req.Role
	if role == "" {
		role = models.RoleSpectator
	}
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, req.Role)
	}
	// зрителем может подключиться кто угодно, остальные роли только свои
	if role != models.RoleSpectator && role != p.Role {
		err := &live.AuthorizationError{PrincipalID: p.ID, Role: p.Role, MatchID: req.MatchID, Reason: "join as " + string(role)}
		s.audit(err)
		return nil, err
	}
	teamID := req.TeamID
	if teamID == nil && role == models.RoleCoach {
		teamID = p.TeamID
	}
	return s.engine.JoinMatch(ctx, models.MatchRoomSubscription{
		ConnectionID: connectionID,
		MatchID:      req.MatchID,
		Role:         role,
		TeamID:       teamID,
	}, sink)
}

func (s *liveMatchService) JoinTournament(ctx context.Context, connectionID string, tournamentID int, sink chan<- []byte) (func(), error) {
	if tournamentID <= 0 {
		return nil, ErrTournamentInvalid
	}
	return s.rooms.Subscribe(models.TournamentRoomID(tournamentID), models.MatchRoomSubscription{
		ConnectionID: connectionID,
		Role:         models.RoleSpectator,
		SubscribedAt: time.Now().UTC(),
	}, sink), nil
}

func (s *liveMatchService) StartEventEntry(ctx context.Context, p models.Principal, matchID int) (models.EventEntrySession, error) {
	session, err := s.engine.StartEventEntry(ctx, matchID, p)
	if err != nil {
		s.audit(err)
		return models.EventEntrySession{}, err
	}
	s.logger.Info("Event entry session started",
		slog.String("session_id", session.SessionID), slog.Int("match_id", matchID), slog.Int("principal_id", p.ID), slog.String("role", string(p.Role)))
	return session, nil
}

func (s *liveMatchService) EndEventEntry(ctx context.Context, p models.Principal, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session_id is required", live.ErrMalformedRequest)
	}
	err := s.engine.EndEventEntry(ctx, sessionID, p)
	s.audit(err)
	return err
}

func (s *liveMatchService) ValidateEvent(ctx context.Context, p models.Principal, in models.MatchEventInput) (live.ValidationResult, error) {
	return s.engine.ValidateEvent(ctx, s.candidate(ctx, p, in))
}

func (s *liveMatchService) SubmitEvent(ctx context.Context, p models.Principal, in models.MatchEventInput) (live.SubmitResult, error) {
	res, err := s.engine.SubmitEvent(ctx, s.candidate(ctx, p, in))
	if err != nil {
		s.audit(err)
		return res, err
	}
	if res.Event != nil {
		s.logger.Debug("Event applied",
			slog.Int("match_id", in.MatchID), slog.String("event_id", res.Event.ID), slog.Int("sequence", res.Event.Sequence), slog.String("type", string(res.Event.Type)))
	}
	return res, nil
}

func (s *liveMatchService) ControlTimer(ctx context.Context, p models.Principal, matchID int, action models.TimerAction) (models.TimerView, error) {
	view, err := s.engine.ControlTimer(ctx, matchID, p, action)
	s.audit(err)
	return view, err
}

func (s *liveMatchService) ChangeStatus(ctx context.Context, p models.Principal, matchID int, status models.MatchStatus) (live.SubmitResult, error) {
	res, err := s.engine.ChangeStatus(ctx, matchID, p, status)
	if err != nil {
		s.audit(err)
		return res, err
	}
	if res.Event != nil {
		s.logger.Info("Match status changed", slog.Int("match_id", matchID), slog.String("status", string(status)), slog.Int("principal_id", p.ID))
	}
	return res, nil
}

func (s *liveMatchService) Sync(ctx context.Context, matchID int, sinceSequence int) (models.MatchSyncPayload, error) {
	return s.engine.Sync(ctx, matchID, sinceSequence)
}

func (s *liveMatchService) State(ctx context.Context, matchID int) (models.MatchStateView, error) {
	state, err := s.engine.State(ctx, matchID)
	if err != nil {
		return models.MatchStateView{}, err
	}
	return state.View(), nil
}

func (s *liveMatchService) Statistics(ctx context.Context, matchID int) ([]models.TeamStatSnapshot, error) {
	return s.engine.Statistics(ctx, matchID)
}

func (s *liveMatchService) ReportTracking(ctx context.Context, matchID int, sample models.TrackingSample) (models.TeamStatSnapshot, error) {
	return s.engine.ReportTracking(ctx, matchID, sample)
}

func (s *liveMatchService) ConnectionLost(ctx context.Context, principalID int, matchIDs []int) {
	s.engine.ConnectionLost(ctx, principalID, matchIDs)
}

// candidate проверяет заявку до того, как событие попадёт в воркер матча,
// чтобы внутри сериализованной части не было I/O.
func (s *liveMatchService) candidate(ctx context.Context, p models.Principal, in models.MatchEventInput) live.Candidate {
	c := live.Candidate{Input: in, Principal: p}
	if s.rosters == nil {
		return c
	}
	lookupCtx, cancel := context.WithTimeout(ctx, rosterLookupTimeout)
	defer cancel()
	for _, ref := range in.PlayerRefs() {
		ok, err := s.rosters.IsValidPlayer(lookupCtx, ref.TeamID, ref.PlayerID)
		if err != nil {
			s.logger.Warn("Roster lookup failed", slog.Int("match_id", in.MatchID), slog.Int("team_id", ref.TeamID), slog.Any("error", err))
			c.RosterErr = err
			return c
		}
		if !ok {
			c.UnknownPlayers = append(c.UnknownPlayers, ref)
		}
	}
	return c
}

// audit логирует отклонённые операции.
func (s *liveMatchService) audit(err error) {
	var authErr *live.AuthorizationError
	if errors.As(err, &authErr) {
		s.logger.Warn("Authorization denied",
			slog.Int("principal_id", authErr.PrincipalID),
			slog.String("role", string(authErr.Role)),
			slog.Int("match_id", authErr.MatchID),
			slog.String("action", authErr.Reason))
	}
}
