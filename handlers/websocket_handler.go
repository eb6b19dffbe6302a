package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/lunch-roulette/brackets"
	"github.com/Dosada05/lunch-roulette/services"
	"github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	hub            *brackets.Hub
	sessionService services.SessionService
	upgrader       websocket.Upgrader
	logger         *slog.Logger
}

// NewWebSocketHandler accepts connections from allowedOrigins; "*" or an
// empty list allows any origin.
func NewWebSocketHandler(hub *brackets.Hub, ss services.SessionService, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	anyOrigin := len(allowedOrigins) == 0
	for _, o := range allowedOrigins {
		if o == "*" {
			anyOrigin = true
		}
		allowed[o] = true
	}
	return &WebSocketHandler{
		hub:            hub,
		sessionService: ss,
		logger:         logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return anyOrigin || origin == "" || allowed[origin]
			},
		},
	}
}

// ServeWs godoc
// @Summary Живые обновления сессии
// @Tags session
// @Description WebSocket: SESSION_UPDATED, TOURNAMENT_UPDATED, TOURNAMENT_FINISHED, TOURNAMENT_CLOSED.
// @Security SessionCookie
// @Router /ws/session [get]
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	// Комната только для существующей сессии.
	if _, err := h.sessionService.Get(r.Context(), id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам отвечает клиенту ошибкой.
		h.logger.WarnContext(r.Context(), "Failed to upgrade websocket", slog.String("session_id", id), slog.Any("error", err))
		return
	}

	client := &brackets.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: services.RoomID(id),
	}
	if !h.hub.Attach(client) {
		conn.Close()
		return
	}
	h.logger.DebugContext(r.Context(), "WebSocket connected", slog.String("session_id", id))

	go client.WritePump()
	go client.ReadPump()
}
