package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Dosada05/tournament-live/live"
	"github.com/Dosada05/tournament-live/services"
)

type jsonResponse map[string]interface{}

// Коды ошибок в ответах websocket и REST.
const (
	CodeBadRequest       = "bad_request"
	CodeValidationFailed = "validation_failed"
	CodeForbidden        = "forbidden"
	CodeConflict         = "conflict"
	CodeNotFound         = "not_found"
	CodeSessionRequired  = "session_required"
	CodeMatchFinished    = "match_finished"
	CodeStateIntegrity   = "state_integrity"
	CodeUnavailable      = "unavailable"
	CodeInternal         = "internal_error"
)

func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	maxBytes := 1_048_576 // 1MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("body contains unknown key %s", fieldName)
		case errors.As(err, &maxBytesError):
			return fmt.Errorf("body must not be larger than %d bytes", maxBytes)
		default:
			return err
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}, headers http.Header) error {
	js, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return err
	}
	js = append(js, '\n')

	for key, value := range headers {
		w.Header()[key] = value
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	return err
}

func errorResponse(w http.ResponseWriter, r *http.Request, status int, message interface{}) {
	env := jsonResponse{"error": message}
	if err := writeJSON(w, status, env, nil); err != nil {
		slog.Error("Error writing error JSON response", slog.String("path", r.URL.Path), slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("Internal server error", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Any("error", err))
	message := "the server encountered a problem and could not process your request"
	errorResponse(w, r, http.StatusInternalServerError, message)
}

func badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	errorResponse(w, r, http.StatusBadRequest, err.Error())
}

func notFoundResponse(w http.ResponseWriter, r *http.Request) {
	message := "the requested resource could not be found"
	errorResponse(w, r, http.StatusNotFound, message)
}

func conflictResponse(w http.ResponseWriter, r *http.Request, message string) {
	errorResponse(w, r, http.StatusConflict, message)
}

func forbiddenResponse(w http.ResponseWriter, r *http.Request, message string) {
	errorResponse(w, r, http.StatusForbidden, message)
}

func unavailableResponse(w http.ResponseWriter, r *http.Request, message string) {
	errorResponse(w, r, http.StatusServiceUnavailable, message)
}

// ErrorPayload - тело ответа "error" в websocket-протоколе.
type ErrorPayload struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	SessionID string                 `json:"session_id,omitempty"`
	MatchID   int                    `json:"match_id,omitempty"`
	Result    *live.ValidationResult `json:"result,omitempty"`
}

// classifyError сводит ошибки сервиса и движка к коду ответа и HTTP-статусу.
func classifyError(err error) (ErrorPayload, int) {
	p := ErrorPayload{Message: err.Error()}
	var (
		validationErr *live.ValidationError
		conflictErr   *live.ConflictError
		integrityErr  *live.StateIntegrityError
	)
	switch {
	case errors.As(err, &validationErr):
		res := validationErr.Result
		p.Code, p.Result = CodeValidationFailed, &res
		return p, http.StatusUnprocessableEntity
	case errors.As(err, &conflictErr):
		p.Code, p.SessionID, p.MatchID = CodeConflict, conflictErr.SessionID, conflictErr.MatchID
		return p, http.StatusConflict
	case errors.As(err, &integrityErr):
		// клиенту не нужны подробности нарушения
		p.Code, p.MatchID, p.Message = CodeStateIntegrity, integrityErr.MatchID, "match state is being reloaded, retry the request"
		return p, http.StatusServiceUnavailable
	case errors.Is(err, live.ErrForbidden):
		p.Code = CodeForbidden
		return p, http.StatusForbidden
	case errors.Is(err, live.ErrMatchNotFound):
		p.Code = CodeNotFound
		return p, http.StatusNotFound
	case errors.Is(err, live.ErrSessionRequired):
		p.Code = CodeSessionRequired
		return p, http.StatusForbidden
	case errors.Is(err, live.ErrMatchFinished):
		p.Code = CodeMatchFinished
		return p, http.StatusConflict
	case errors.Is(err, live.ErrMalformedRequest),
		errors.Is(err, live.ErrTimerTransition),
		errors.Is(err, live.ErrUnknownTimerAction),
		errors.Is(err, services.ErrUnknownRole),
		errors.Is(err, services.ErrTournamentInvalid):
		p.Code = CodeBadRequest
		return p, http.StatusBadRequest
	case errors.Is(err, live.ErrEngineClosed):
		p.Code = CodeUnavailable
		return p, http.StatusServiceUnavailable
	default:
		p.Code, p.Message = CodeInternal, "internal error"
		return p, http.StatusInternalServerError
	}
}

// mapServiceErrorToHTTP преобразует ошибки сервисного слоя в HTTP-ответы
func mapServiceErrorToHTTP(w http.ResponseWriter, r *http.Request, err error) {
	payload, status := classifyError(err)
	switch status {
	case http.StatusNotFound:
		notFoundResponse(w, r)
	case http.StatusConflict:
		conflictResponse(w, r, payload.Message)
	case http.StatusForbidden:
		forbiddenResponse(w, r, payload.Message)
	case http.StatusServiceUnavailable:
		unavailableResponse(w, r, payload.Message)
	case http.StatusInternalServerError:
		serverErrorResponse(w, r, err)
	default:
		errorResponse(w, r, status, payload)
	}
}

func getIDFromURL(r *http.Request, key string) (int, error) {
	idStr := chi.URLParam(r, key)
	if idStr == "" {
		return 0, fmt.Errorf("missing %s parameter in URL", key)
	}
	id, err := strconv.Atoi(idStr)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s parameter: %q", key, idStr)
	}
	return id, nil
}
