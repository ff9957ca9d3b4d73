package live

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/tournament-live/models"
)

var (
	ErrMalformedRequest   = errors.New("malformed request")
	ErrMatchNotFound      = errors.New("match not found")
	ErrSessionConflict    = errors.New("event entry session already active")
	ErrSessionRequired    = errors.New("an active event entry session is required")
	ErrForbidden          = errors.New("forbidden")
	ErrTimerTransition    = errors.New("illegal timer transition")
	ErrEngineClosed       = errors.New("live engine is shut down")
	ErrStateIntegrity     = errors.New("match state integrity fault")
	ErrUnknownTimerAction = errors.New("unknown timer action")
	ErrMatchFinished      = errors.New("match is already finished")
)

// ValidationError возвращается только отправителю, состояние матча не меняется.
type ValidationError struct {
	Result ValidationResult
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Result.Errors))
	for _, issue := range e.Result.Errors {
		msgs = append(msgs, issue.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

type AuthorizationError struct {
	PrincipalID int
	Role        models.Role
	MatchID     int
	Reason      string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("principal %d (%s) is not allowed to %s", e.PrincipalID, e.Role, e.Reason)
}

func (e *AuthorizationError) Is(target error) bool { return target == ErrForbidden }

// ConflictError содержит сессию, которая уже занимает пару (матч, пользователь).
type ConflictError struct {
	MatchID     int
	PrincipalID int
	SessionID   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("principal %d already has event entry session %s for match %d", e.PrincipalID, e.SessionID, e.MatchID)
}

func (e *ConflictError) Is(target error) bool { return target == ErrSessionConflict }

// StateIntegrityError отправляет воркер матча в карантин, следующее обращение загрузит его заново.
type StateIntegrityError struct {
	MatchID int
	Cause   error
}

func (e *StateIntegrityError) Error() string {
	return fmt.Sprintf("match %d: state integrity fault: %v", e.MatchID, e.Cause)
}

func (e *StateIntegrityError) Unwrap() error { return e.Cause }

func (e *StateIntegrityError) Is(target error) bool { return target == ErrStateIntegrity }

func integrityFault(matchID int, format string, args ...any) *StateIntegrityError {
	return &StateIntegrityError{MatchID: matchID, Cause: fmt.Errorf(format, args...)}
}
