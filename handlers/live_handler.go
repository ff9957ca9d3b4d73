package handlers

import (
	"net/http"

	"github.com/Dosada05/tournament-live/models"
	"github.com/Dosada05/tournament-live/services"
)

type LiveMatchHandler struct {
	liveService services.LiveMatchService
}

func NewLiveMatchHandler(ls services.LiveMatchService) *LiveMatchHandler {
	return &LiveMatchHandler{liveService: ls}
}

// GetMatchState godoc
// @Summary Текущее состояние живого матча
// @Tags live
// @Description Авторитетный снимок состояния матча для ресинхронизации клиента.
// @Produce json
// @Param matchID path int true "Match ID"
// @Success 200 {object} models.MatchStateView
// @Failure 400 {object} map[string]string "Некорректный ID"
// @Failure 404 {object} map[string]string "Матч не найден"
// @Security BearerAuth
// @Router /live/matches/{matchID}/state [get]
func (h *LiveMatchHandler) GetMatchState(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	view, err := h.liveService.State(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"state": view}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetMatchStatistics godoc
// @Summary Статистика команд в живом матче
// @Tags live
// @Produce json
// @Param matchID path int true "Match ID"
// @Success 200 {array} models.TeamStatSnapshot
// @Failure 400 {object} map[string]string "Некорректный ID"
// @Failure 404 {object} map[string]string "Матч не найден"
// @Security BearerAuth
// @Router /live/matches/{matchID}/statistics [get]
func (h *LiveMatchHandler) GetMatchStatistics(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	stats, err := h.liveService.Statistics(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"statistics": stats}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ReportTracking godoc
// @Summary Передать данные трекинга (владение, передачи)
// @Tags live
// @Description Доступно судьям и администраторам. Владение нормализуется так, что сумма по командам равна 100.
// @Accept json
// @Produce json
// @Param matchID path int true "Match ID"
// @Param body body models.TrackingSample true "Данные трекинга"
// @Success 200 {object} models.TeamStatSnapshot
// @Failure 400 {object} map[string]string "Ошибка валидации"
// @Failure 401 {object} map[string]string "Неавторизован"
// @Failure 403 {object} map[string]string "Нет прав"
// @Failure 404 {object} map[string]string "Матч не найден"
// @Security BearerAuth
// @Router /live/matches/{matchID}/tracking [post]
func (h *LiveMatchHandler) ReportTracking(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var sample models.TrackingSample
	if err := readJSON(w, r, &sample); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	snap, err := h.liveService.ReportTracking(r.Context(), matchID, sample)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"snapshot": snap}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
