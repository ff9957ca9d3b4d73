package live

import (
	"errors"
	"testing"

	"github.com/Dosada05/tournament-live/models"
)

func TestValidate(t *testing.T) {
	dismissed := liveState(t, redCard("r1", homeTeam, 7, 30))
	booked := liveState(t, yellowCard("y1", homeTeam, 8, 20))
	scored := liveState(t, goal("g1", homeTeam, 9, 30))
	scheduled := models.NewMatchState(testFixture())
	paused := liveState(t, statusChange("p", models.MatchStatusInProgress, models.MatchStatusPaused))

	tests := []struct {
		name      string
		state     *models.MatchState
		principal models.Principal
		in        models.MatchEventInput
		unknown   []models.PlayerRef
		wantValid bool
		wantError string
		wantWarn  string
		wantNoOp  bool
		wantPend  bool
	}{
		{
			name:      "goal by referee",
			principal: referee,
			in:        models.MatchEventInput{Type: models.EventGoal, TeamID: homeTeam, Minute: 12, PlayerID: intPtr(9)},
			wantValid: true,
		},
		{
			name:      "minute above range",
			principal: referee,
			in:        models.MatchEventInput{Type: models.EventGoal, TeamID: homeTeam, Minute: 131, PlayerID: intPtr(9)},
			wantError: CodeMinuteOutOfRange,
		},
		{
			name:      "negative minute",
			principal: referee,
			in:        models.MatchEventInput{Type: models.EventFoul, TeamID: homeTeam, Minute: -1},
			wantError: CodeMinuteOutOfRange,
		},
		{
			name:      "team not in match",
			principal: referee,
			in:        models.MatchEventInput{Type: models.EventCorner, TeamID: 99, Minute: 5},
			wantError: CodeUnknownTeam,
		},
		{
			name:      "card without player",
			principal: referee,
			in:        models.MatchEventInput{Type: models.EventYellowCard, TeamID: awayTeam, Minute: 5},
			wantError: CodeMissingPlayer,
		},
		{
			name:      "substitution without incoming player",
			principal: referee,
			in:        models.MatchEventInput{Type: models.EventSubstitution, TeamID: awayTeam, Minute: 60, PlayerOutID: intPtr(3)},
			wantError: CodeMissingSubstitution,
		},
		{
			name:      "unknown event type",
			principal: referee,
			in:        models.MatchEventInput{Type: "PENALTY_SHOOTOUT", TeamID: homeTeam, Minute: 5},
			wantError: CodeUnknownEventType,
		},
		{
			name:      "player not on roster",
			principal: referee,
			in:        models.MatchEventInput{Type: models.EventGoal, TeamID: homeTeam, Minute: 5, PlayerID: intPtr(55)},
			unknown:   []models.PlayerRef{{TeamID: homeTeam, PlayerID: 55}},
			wantError: CodeNotOnRoster,
		},
		{
			name:      "spectator cannot record",
			principal: spectator,
			in:        models.MatchEventInput{Type: models.EventGoal, TeamID: homeTeam, Minute: 5, PlayerID: intPtr(9)},
			wantError: CodeForbidden,
		},
		{
			name:      "coach cannot record goals",
			principal: coachOf(homeTeam),
			in:        models.MatchEventInput{Type: models.EventGoal, TeamID: homeTeam, Minute: 5, PlayerID: intPtr(9)},
			wantError: CodeForbidden,
		},
		{
			name:      "coach requests substitution for own team",
			principal: coachOf(homeTeam),
			in:        models.MatchEventInput{Type: models.EventSubstitution, TeamID: homeTeam, Minute: 60, PlayerOutID: intPtr(3), PlayerInID: intPtr(14)},
			wantValid: true,
			wantWarn:  CodePendingConfirmation,
			wantPend:  true,
		},
		{
			name:      "coach requests substitution for the opponent",
			principal: coachOf(homeTeam),
			in:        models.MatchEventInput{Type: models.EventSubstitution, TeamID: awayTeam, Minute: 60, PlayerOutID: intPtr(3), PlayerInID: intPtr(14)},
			wantError: CodeForbidden,
		},
		{
			name:      "event before kick-off",
			state:     scheduled,
			principal: referee,
			in:        models.MatchEventInput{Type: models.EventGoal, TeamID: homeTeam, Minute: 0, PlayerID: intPtr(9)},
			wantError: CodeMatchNotLive,
		},
		{
			name:      "event while paused",
			state:     paused,
			principal: referee,
			in:        models.MatchEventInput{Type: models.EventFoul, TeamID: awayTeam, Minute: 44},
			wantValid: true,
			wantWarn:  CodeEnteredWhilePaused,
		},
		{
			name:      "duplicate dismissal",
			state:     dismissed,
			principal: referee,
			in:        models.MatchEventInput{Type: models.EventRedCard, TeamID: homeTeam, Minute: 35, PlayerID: intPtr(7)},
			wantError: CodeDuplicateDismissal,
		},
		{
			name:      "dismissed player cannot score",
			state:     dismissed,
			principal: referee,
			in:        models.MatchEventInput{Type: models.EventGoal, TeamID: homeTeam, Minute: 35, PlayerID: intPtr(7)},
			wantError: CodePlayerSentOff,
		},
		{
			name:      "second yellow warns",
			state:     booked,
			principal: referee,
			in:        models.MatchEventInput{Type: models.EventYellowCard, TeamID: homeTeam, Minute: 50, PlayerID: intPtr(8)},
			wantValid: true,
			wantWarn:  CodeSecondYellow,
		},
		{
			name:      "status change to current status is a no-op",
			principal: referee,
			in:        models.MatchEventInput{Type: models.EventStatusChange, Minute: 10, Status: models.MatchStatusInProgress},
			wantValid: true,
			wantWarn:  CodeStatusUnchanged,
			wantNoOp:  true,
		},
		{
			name:      "status cannot return to scheduled",
			principal: referee,
			in:        models.MatchEventInput{Type: models.EventStatusChange, Minute: 10, Status: models.MatchStatusScheduled},
			wantError: CodeIllegalTransition,
		},
		{
			name:      "minute far behind the team's last event",
			state:     scored,
			principal: referee,
			in:        models.MatchEventInput{Type: models.EventCorner, TeamID: homeTeam, Minute: 20},
			wantValid: true,
			wantWarn:  CodeOutOfOrder,
		},
		{
			name:      "correction of a goal",
			state:     scored,
			principal: referee,
			in:        models.MatchEventInput{Type: models.EventCorrection, TeamID: homeTeam, Minute: 31, CorrectsEventID: "g1"},
			wantValid: true,
		},
		{
			name:      "correction of an unknown event",
			state:     scored,
			principal: referee,
			in:        models.MatchEventInput{Type: models.EventCorrection, TeamID: homeTeam, Minute: 31, CorrectsEventID: "nope"},
			wantError: CodeCorrectionNotFound,
		},
		{
			name:      "correction of a status change",
			state:     scored,
			principal: referee,
			in:        models.MatchEventInput{Type: models.EventCorrection, TeamID: homeTeam, Minute: 31, CorrectsEventID: "kick-off"},
			wantError: CodeUncorrectable,
		},
		{
			name:      "confirmation of an unknown request",
			principal: referee,
			in:        models.MatchEventInput{Type: models.EventSubstitution, TeamID: homeTeam, Minute: 61, ConfirmsRequestID: "missing"},
			wantError: CodeUnknownRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := tt.state
			if state == nil {
				state = liveState(t)
			}
			in := tt.in
			in.MatchID = testMatchID
			before := state.Version

			res, err := Validate(Candidate{Input: in, Principal: tt.principal, UnknownPlayers: tt.unknown}, state, DefaultValidatorOptions())
			if err != nil {
				t.Fatalf("Validate returned error: %v", err)
			}
			if res.IsValid != tt.wantValid {
				t.Fatalf("IsValid = %v, want %v (errors %+v)", res.IsValid, tt.wantValid, res.Errors)
			}
			if tt.wantError != "" && !hasIssue(res.Errors, tt.wantError) {
				t.Errorf("errors %+v do not contain %q", res.Errors, tt.wantError)
			}
			if tt.wantWarn != "" && !hasIssue(res.Warnings, tt.wantWarn) {
				t.Errorf("warnings %+v do not contain %q", res.Warnings, tt.wantWarn)
			}
			if res.NoOp != tt.wantNoOp {
				t.Errorf("NoOp = %v, want %v", res.NoOp, tt.wantNoOp)
			}
			if res.Pending != tt.wantPend {
				t.Errorf("Pending = %v, want %v", res.Pending, tt.wantPend)
			}
			if state.Version != before {
				t.Errorf("validation changed the state version from %d to %d", before, state.Version)
			}
		})
	}
}

func TestValidateMinuteTolerance(t *testing.T) {
	state := liveState(t, goal("g1", homeTeam, 9, 30))
	in := models.MatchEventInput{MatchID: testMatchID, Type: models.EventCorner, TeamID: homeTeam, Minute: 28}

	res, err := Validate(Candidate{Input: in, Principal: referee}, state, DefaultValidatorOptions())
	if err != nil {
		t.Fatal(err)
	}
	if hasIssue(res.Warnings, CodeOutOfOrder) {
		t.Errorf("minute within tolerance produced warning: %+v", res.Warnings)
	}

	// the other team has no events yet
	in.TeamID = awayTeam
	in.Minute = 1
	res, _ = Validate(Candidate{Input: in, Principal: referee}, state, DefaultValidatorOptions())
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings %+v", res.Warnings)
	}
}

func TestValidateCoachRequestsDisabled(t *testing.T) {
	opts := DefaultValidatorOptions()
	opts.CoachSubstitutionRequests = false
	in := models.MatchEventInput{MatchID: testMatchID, Type: models.EventSubstitution, TeamID: homeTeam, Minute: 60, PlayerOutID: intPtr(3), PlayerInID: intPtr(14)}

	res, err := Validate(Candidate{Input: in, Principal: coachOf(homeTeam)}, liveState(t), opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.IsValid || !hasIssue(res.Errors, CodeForbidden) {
		t.Fatalf("expected forbidden, got %+v", res)
	}
}

func TestValidateMalformedRequest(t *testing.T) {
	_, err := Validate(Candidate{Input: models.MatchEventInput{Type: models.EventGoal}, Principal: referee}, liveState(t), DefaultValidatorOptions())
	if !errors.Is(err, ErrMalformedRequest) {
		t.Fatalf("err = %v, want ErrMalformedRequest", err)
	}
}

func TestValidateRosterFailureIsValidationError(t *testing.T) {
	in := models.MatchEventInput{MatchID: testMatchID, Type: models.EventGoal, TeamID: homeTeam, Minute: 5, PlayerID: intPtr(9)}
	res, err := Validate(Candidate{Input: in, Principal: referee, RosterErr: errors.New("connection refused")}, liveState(t), DefaultValidatorOptions())
	if err != nil {
		t.Fatalf("roster failure must not be a request error: %v", err)
	}
	if res.IsValid || !hasIssue(res.Errors, CodeRosterUnavailable) {
		t.Fatalf("expected roster_unavailable, got %+v", res.Errors)
	}
}
