package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"quizplay/internal/domain"
	"quizplay/internal/platform"
)

// WSHandler pushes played events to the owner of the token in the query string.
type WSHandler struct {
	service  *platform.Service
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewWSHandler(service *platform.Service, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS upgrades the request and streams {type:"played"} messages until either side closes.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeJSONError(w, http.StatusUnauthorized, "missing token")
		return
	}
	principal, err := h.service.Authenticate(token)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	if _, err := h.service.Identity(r.Context(), principal.UserID); err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}

	// Subscribe before the handshake completes so no event published after it is missed.
	events, cancel := h.service.Events(principal.UserID)
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		// Inbound messages are ignored; reading surfaces the client's close.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.logger.Debug("feed subscribed", "user", principal.UserID)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "account closed"))
				return
			}
			if err := conn.WriteJSON(outboundMessage[domain.PlayedEvent]{Type: "played", Payload: ev}); err != nil {
				h.logger.Warn("ws write error", "err", err)
				return
			}
		case <-readerDone:
			return
		}
	}
}
