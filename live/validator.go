package live

import (
	"fmt"

	"github.com/Dosada05/tournament-live/models"
)

// Коды ошибок и предупреждений валидации.
const (
	CodeUnknownEventType    = "unknown_event_type"
	CodeMinuteOutOfRange    = "minute_out_of_range"
	CodeUnknownTeam         = "unknown_team"
	CodeMissingPlayer       = "missing_player"
	CodeMissingSubstitution = "missing_substitution_players"
	CodeSamePlayer          = "same_player"
	CodeInvalidStatus       = "invalid_status"
	CodeMissingCorrection   = "missing_correction_target"
	CodeNotOnRoster         = "not_on_roster"
	CodeRosterUnavailable   = "roster_unavailable"
	CodeForbidden           = "forbidden"
	CodeMatchNotLive        = "match_not_live"
	CodeIllegalTransition   = "illegal_transition"
	CodeDuplicateDismissal  = "duplicate_dismissal"
	CodePlayerSentOff       = "player_sent_off"
	CodeUnknownRequest      = "unknown_substitution_request"
	CodeCorrectionNotFound  = "correction_target_not_found"
	CodeAlreadyCorrected    = "already_corrected"
	CodeUncorrectable       = "uncorrectable_event"
	CodeTeamMismatch        = "team_mismatch"
	CodeEnteredWhilePaused  = "entered_while_paused"
	CodeStatusUnchanged     = "status_unchanged"
	CodeOutOfOrder          = "out_of_order"
	CodeSecondYellow        = "second_yellow"
	CodePendingConfirmation = "pending_referee_confirmation"
	CodeRequestTeamMismatch = "request_for_other_team"
)

type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationResult struct {
	IsValid  bool    `json:"is_valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
	// NoOp - принятый ввод, который ничего не меняет (например, смена статуса на текущий).
	NoOp bool `json:"no_op,omitempty"`
	// Pending - запрос замены от тренера, ожидающий подтверждения судьи.
	Pending bool `json:"pending,omitempty"`

	unauthorized bool
}

type ValidatorOptions struct {
	MaxMinute                 int
	MinuteTolerance           int
	CoachSubstitutionRequests bool
}

func DefaultValidatorOptions() ValidatorOptions {
	return ValidatorOptions{
		MaxMinute:                 130,
		MinuteTolerance:           2,
		CoachSubstitutionRequests: true,
	}
}

// Candidate - предлагаемое событие вместе со всем, что вычислено до входа
// в воркер матча.
type Candidate struct {
	Input     models.MatchEventInput
	Principal models.Principal
	// UnknownPlayers - игроки, которых не нашли в заявке.
	UnknownPlayers []models.PlayerRef
	// RosterErr задан, если сама проверка заявки завершилась ошибкой.
	RosterErr error
}

// Validate проверяет кандидата по текущему состоянию без побочных эффектов.
// Некорректный ввод даёт результат с IsValid=false, ошибка возвращается только
// для запросов, которые вообще нельзя оценить.
func Validate(c Candidate, state *models.MatchState, opts ValidatorOptions) (ValidationResult, error) {
	if c.Input.MatchID <= 0 {
		return ValidationResult{}, fmt.Errorf("%w: match_id is required", ErrMalformedRequest)
	}
	if state == nil || state.MatchID != c.Input.MatchID {
		return ValidationResult{}, fmt.Errorf("%w: event targets match %d", ErrMalformedRequest, c.Input.MatchID)
	}

	v := &validation{c: c, in: c.Input, state: state, opts: opts}
	for _, stage := range []func(){v.structural, v.authorization, v.consistency, v.temporal} {
		stage()
		if len(v.res.Errors) > 0 {
			break
		}
	}
	v.res.IsValid = len(v.res.Errors) == 0
	if !v.res.IsValid {
		v.res.NoOp = false
		v.res.Pending = false
	}
	if v.res.Errors == nil {
		v.res.Errors = []Issue{}
	}
	if v.res.Warnings == nil {
		v.res.Warnings = []Issue{}
	}
	return v.res, nil
}

type validation struct {
	c     Candidate
	in    models.MatchEventInput
	state *models.MatchState
	opts  ValidatorOptions
	res   ValidationResult
}

func (v *validation) fail(code, format string, args ...any) {
	v.res.Errors = append(v.res.Errors, Issue{Code: code, Message: fmt.Sprintf(format, args...)})
}

func (v *validation) warn(code, format string, args ...any) {
	v.res.Warnings = append(v.res.Warnings, Issue{Code: code, Message: fmt.Sprintf(format, args...)})
}

func (v *validation) structural() {
	in := v.in
	if !in.Type.IsValid() {
		v.fail(CodeUnknownEventType, "unknown event type %q", in.Type)
		return
	}
	if in.Minute < 0 || in.Minute > v.opts.MaxMinute {
		v.fail(CodeMinuteOutOfRange, "minute %d is outside [0, %d]", in.Minute, v.opts.MaxMinute)
	}

	if in.Type == models.EventStatusChange {
		if !in.Status.IsValid() {
			v.fail(CodeInvalidStatus, "unknown match status %q", in.Status)
		}
		return
	}

	if !v.state.HasTeam(in.TeamID) {
		v.fail(CodeUnknownTeam, "team %d does not play in match %d", in.TeamID, v.state.MatchID)
	}
	if in.Type.RequiresPlayer() && models.IntValue(in.PlayerID) <= 0 {
		v.fail(CodeMissingPlayer, "%s requires player_id", in.Type)
	}

	switch in.Type {
	case models.EventSubstitution:
		if in.ConfirmsRequestID != "" {
			break
		}
		out, inc := models.IntValue(in.PlayerOutID), models.IntValue(in.PlayerInID)
		if out <= 0 || inc <= 0 {
			v.fail(CodeMissingSubstitution, "substitution requires player_out_id and player_in_id")
		} else if out == inc {
			v.fail(CodeSamePlayer, "player %d cannot replace themselves", out)
		}
	case models.EventCorrection:
		if in.CorrectsEventID == "" {
			v.fail(CodeMissingCorrection, "correction requires corrects_event_id")
		}
	}

	if v.c.RosterErr != nil {
		v.fail(CodeRosterUnavailable, "roster lookup failed: %v", v.c.RosterErr)
	}
	for _, ref := range v.c.UnknownPlayers {
		v.fail(CodeNotOnRoster, "player %d is not on the roster of team %d", ref.PlayerID, ref.TeamID)
	}
}

func (v *validation) authorization() {
	p := v.c.Principal
	switch {
	case p.Role.CanOfficiate():
		return
	case p.Role == models.RoleCoach && v.in.Type == models.EventSubstitution && v.in.ConfirmsRequestID == "":
		if !v.opts.CoachSubstitutionRequests {
			v.forbid("substitution requests by coaches are disabled")
			return
		}
		if !p.BelongsTo(v.in.TeamID) {
			v.forbid("coaches may only request substitutions for their own team")
			return
		}
		v.res.Pending = true
		v.warn(CodePendingConfirmation, "substitution request waits for referee confirmation")
	default:
		v.forbid("role %s may not record %s events", p.Role, v.in.Type)
	}
}

func (v *validation) forbid(format string, args ...any) {
	v.res.unauthorized = true
	v.fail(CodeForbidden, format, args...)
}

func (v *validation) consistency() {
	in, s := v.in, v.state

	if in.Type == models.EventStatusChange {
		switch {
		case in.Status == s.Status:
			v.res.NoOp = true
			v.warn(CodeStatusUnchanged, "match is already %s", s.Status)
		case !isValidStatusTransition(s.Status, in.Status):
			v.fail(CodeIllegalTransition, "cannot change status from %s to %s", s.Status, in.Status)
		}
		return
	}

	if !s.Status.AcceptsGameplay() {
		v.fail(CodeMatchNotLive, "match is %s; events are accepted only while in progress or paused", s.Status)
		return
	}
	if s.Status == models.MatchStatusPaused {
		v.warn(CodeEnteredWhilePaused, "event entered while the match is paused")
	}

	player := models.IntValue(in.PlayerID)
	switch in.Type {
	case models.EventRedCard:
		if s.IsSentOff(player) {
			v.fail(CodeDuplicateDismissal, "duplicate dismissal: player %d has already been sent off", player)
		}
	case models.EventYellowCard:
		if s.IsSentOff(player) {
			v.fail(CodePlayerSentOff, "player %d has been sent off", player)
		} else if s.YellowCards(player) > 0 {
			v.warn(CodeSecondYellow, "second yellow card for player %d; a red card is expected to follow", player)
		}
	case models.EventGoal:
		if s.IsSentOff(player) {
			v.fail(CodePlayerSentOff, "player %d has been sent off", player)
		}
	case models.EventSubstitution:
		v.substitution()
	case models.EventCorrection:
		v.correction()
	}
}

func (v *validation) substitution() {
	in, s := v.in, v.state
	if in.ConfirmsRequestID != "" {
		req, idx := s.PendingSubstitution(in.ConfirmsRequestID)
		if idx < 0 {
			v.fail(CodeUnknownRequest, "no pending substitution request %s", in.ConfirmsRequestID)
			return
		}
		if req.TeamID != in.TeamID {
			v.fail(CodeRequestTeamMismatch, "substitution request %s belongs to team %d", req.RequestID, req.TeamID)
		}
		return
	}
	if out := models.IntValue(in.PlayerOutID); s.IsSentOff(out) {
		v.fail(CodePlayerSentOff, "player %d has been sent off and cannot be substituted", out)
	}
	if inc := models.IntValue(in.PlayerInID); s.IsSentOff(inc) {
		v.fail(CodePlayerSentOff, "player %d has been sent off", inc)
	}
}

func (v *validation) correction() {
	in, s := v.in, v.state
	target, ok := s.FindEvent(in.CorrectsEventID)
	if !ok {
		v.fail(CodeCorrectionNotFound, "event %s was not applied to match %d", in.CorrectsEventID, s.MatchID)
		return
	}
	switch target.Type {
	case models.EventStatusChange, models.EventCorrection:
		v.fail(CodeUncorrectable, "%s events cannot be corrected", target.Type)
		return
	}
	if s.IsCorrected(target.ID) {
		v.fail(CodeAlreadyCorrected, "event %s has already been corrected", target.ID)
	}
	if target.TeamID != in.TeamID {
		v.fail(CodeTeamMismatch, "event %s belongs to team %d", target.ID, target.TeamID)
	}
}

func (v *validation) temporal() {
	if v.in.Type == models.EventStatusChange {
		return
	}
	last, ok := v.state.LastMinute(v.in.TeamID)
	if ok && v.in.Minute < last-v.opts.MinuteTolerance {
		v.warn(CodeOutOfOrder, "minute %d is earlier than the last recorded minute %d for team %d", v.in.Minute, last, v.in.TeamID)
	}
}
