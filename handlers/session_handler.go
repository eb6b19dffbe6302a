package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/lunch-roulette/middleware"
	"github.com/Dosada05/lunch-roulette/services"
	"github.com/Dosada05/lunch-roulette/share"
	"github.com/go-chi/chi/v5"
)

type SessionHandler struct {
	sessionService services.SessionService
	sessions       *middleware.Sessions
}

func NewSessionHandler(ss services.SessionService, sessions *middleware.Sessions) *SessionHandler {
	return &SessionHandler{
		sessionService: ss,
		sessions:       sessions,
	}
}

type createSessionRequest struct {
	ShareToken string   `json:"share_token"`
	X          *float64 `json:"x"`
	Y          *float64 `json:"y"`
	Radius     *int     `json:"radius"`
}

type radiusRequest struct {
	Radius int `json:"radius"`
}

type searchRequest struct {
	Keyword string `json:"keyword"`
}

// CreateSession godoc
// @Summary Создать сессию
// @Tags session
// @Description Создает сессию выбора ресторана. Токен ссылки можно передать в теле или в query параметре `s`.
// @Accept json
// @Produce json
// @Param s query string false "Share token"
// @Param body body createSessionRequest false "Начальные параметры"
// @Success 201 {object} map[string]interface{} "Сессия создана"
// @Failure 400 {object} map[string]string "Ошибка валидации"
// @Router /session [post]
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	// Тело необязательно; chunked запросы приходят с ContentLength == -1.
	if r.Body != nil && r.Body != http.NoBody {
		if err := readJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
			badRequestResponse(w, r, err)
			return
		}
	}
	if req.ShareToken == "" {
		req.ShareToken = r.URL.Query().Get(share.QueryParam)
	}
	if (req.X == nil) != (req.Y == nil) {
		badRequestResponse(w, r, errors.New("x and y must be provided together"))
		return
	}

	view, err := h.sessionService.Create(r.Context(), services.CreateSessionInput{
		ShareToken: req.ShareToken,
		OriginX:    req.X,
		OriginY:    req.Y,
		Radius:     req.Radius,
		Layout:     middleware.LayoutFromContext(r.Context()),
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	token, err := h.sessions.Issue(w, view.ID)
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	response := jsonResponse{"session": view, "token": token}
	if err := writeJSON(w, http.StatusCreated, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetSession godoc
// @Summary Текущее состояние сессии
// @Tags session
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string "Нет сессии"
// @Security SessionCookie
// @Router /session [get]
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	view, err := h.sessionService.Get(r.Context(), id)
	h.respondSession(w, r, view, err)
}

// ChangeRadius godoc
// @Summary Изменить радиус поиска
// @Tags session
// @Accept json
// @Produce json
// @Param body body radiusRequest true "Радиус: 100, 200, 300, 400 или 500 метров"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string "Недопустимый радиус"
// @Failure 409 {object} map[string]string "Идет турнир"
// @Failure 502 {object} map[string]string "API ресторанов недоступен"
// @Security SessionCookie
// @Router /session/radius [put]
func (h *SessionHandler) ChangeRadius(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req radiusRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	view, err := h.sessionService.ChangeRadius(r.Context(), id, req.Radius)
	h.respondSession(w, r, view, err)
}

// Search godoc
// @Summary Поиск ресторанов по ключевому слову
// @Tags session
// @Accept json
// @Produce json
// @Param body body searchRequest true "Ключевое слово"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Security SessionCookie
// @Router /session/search [post]
func (h *SessionHandler) Search(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req searchRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	view, err := h.sessionService.Search(r.Context(), id, req.Keyword)
	h.respondSession(w, r, view, err)
}

// ResetSearch godoc
// @Summary Сбросить поиск
// @Tags session
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security SessionCookie
// @Router /session/search [delete]
func (h *SessionHandler) ResetSearch(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	view, err := h.sessionService.ResetSearch(r.Context(), id)
	h.respondSession(w, r, view, err)
}

// ToggleCategory godoc
// @Summary Включить/исключить категорию
// @Tags session
// @Produce json
// @Param name path string true "Category name"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string "Категория не найдена"
// @Security SessionCookie
// @Router /session/categories/{name}/toggle [post]
func (h *SessionHandler) ToggleCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	view, err := h.sessionService.ToggleCategory(r.Context(), id, chi.URLParam(r, "name"))
	h.respondSession(w, r, view, err)
}

// RemoveCandidate godoc
// @Summary Исключить ресторан
// @Tags session
// @Produce json
// @Param candidateID path int true "Candidate ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string "Ресторан не найден"
// @Security SessionCookie
// @Router /session/candidates/{candidateID} [delete]
func (h *SessionHandler) RemoveCandidate(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	candidateID, err := intURLParam(r, "candidateID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	view, err := h.sessionService.RemoveCandidate(r.Context(), id, candidateID)
	h.respondSession(w, r, view, err)
}

// Refresh godoc
// @Summary Вернуть все рестораны
// @Tags session
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security SessionCookie
// @Router /session/refresh [post]
func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	view, err := h.sessionService.Refresh(r.Context(), id)
	h.respondSession(w, r, view, err)
}

// Markers godoc
// @Summary Маркеры карты
// @Tags session
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security SessionCookie
// @Router /session/markers [get]
func (h *SessionHandler) Markers(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	ms, err := h.sessionService.Markers(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"markers": ms}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Share godoc
// @Summary Ссылка на текущее состояние
// @Tags session
// @Produce json
// @Success 200 {object} services.ShareResult
// @Security SessionCookie
// @Router /session/share [post]
func (h *SessionHandler) Share(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	res, err := h.sessionService.Share(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, res, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SessionHandler) respondSession(w http.ResponseWriter, r *http.Request, view *services.SessionView, err error) {
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"session": view}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
