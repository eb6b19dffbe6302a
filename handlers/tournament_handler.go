package handlers

import (
	"net/http"

	"github.com/Dosada05/lunch-roulette/services"
)

type TournamentHandler struct {
	sessionService services.SessionService
}

func NewTournamentHandler(ss services.SessionService) *TournamentHandler {
	return &TournamentHandler{sessionService: ss}
}

type winnerRequest struct {
	WinnerID int `json:"winner_id"`
}

// StartTournament godoc
// @Summary Начать турнир
// @Tags tournament
// @Description Запускает турнир на выбывание среди оставшихся ресторанов.
// @Produce json
// @Success 201 {object} services.TournamentView
// @Failure 409 {object} map[string]string "Меньше двух ресторанов или турнир уже идет"
// @Security SessionCookie
// @Router /session/tournament [post]
func (h *TournamentHandler) StartTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	view, err := h.sessionService.StartTournament(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"tournament": view}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetTournament godoc
// @Summary Состояние турнира
// @Tags tournament
// @Produce json
// @Success 200 {object} services.TournamentView
// @Failure 409 {object} map[string]string "Турнир не начат"
// @Security SessionCookie
// @Router /session/tournament [get]
func (h *TournamentHandler) GetTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	view, err := h.sessionService.GetTournament(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": view}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ReportWinner godoc
// @Summary Выбрать победителя матча
// @Tags tournament
// @Accept json
// @Produce json
// @Param body body winnerRequest true "ID победителя текущего матча"
// @Success 200 {object} services.TournamentView
// @Failure 400 {object} map[string]string "Победитель не участвует в матче"
// @Failure 409 {object} map[string]string "Турнир не начат или завершен"
// @Security SessionCookie
// @Router /session/tournament/winner [post]
func (h *TournamentHandler) ReportWinner(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req winnerRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	view, err := h.sessionService.ReportWinner(r.Context(), id, req.WinnerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": view}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CloseTournament godoc
// @Summary Закрыть турнир
// @Tags tournament
// @Success 204
// @Security SessionCookie
// @Router /session/tournament [delete]
func (h *TournamentHandler) CloseTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if err := h.sessionService.CloseTournament(r.Context(), id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
