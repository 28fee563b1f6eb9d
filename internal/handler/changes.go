package handler

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/babui-rent/babui/internal/events"
)

const (
	changesWriteWait = 5 * time.Second
	changesPingEvery = 15 * time.Second
)

// ChangesHandler streams property change messages over WebSocket
type ChangesHandler struct {
	hub            *events.Hub
	logger         *slog.Logger
	allowedOrigins []string
	pingInterval   time.Duration
}

// NewChangesHandler creates a new change stream handler
func NewChangesHandler(hub *events.Hub, logger *slog.Logger, allowedOrigins []string) *ChangesHandler {
	return &ChangesHandler{
		hub:            hub,
		logger:         logger,
		allowedOrigins: allowedOrigins,
		pingInterval:   changesPingEvery,
	}
}

func (h *ChangesHandler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// non-browser clients send no origin
			if origin == "" || slices.Contains(h.allowedOrigins, "*") || slices.Contains(h.allowedOrigins, origin) {
				return true
			}
			h.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// ServeHTTP handles GET /ws/changes
func (h *ChangesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := h.upgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	sub := h.hub.Subscribe()
	defer sub.Close()
	h.logger.Debug("change stream opened", slog.Int("subscribers", h.hub.Len()))

	// drain client frames so pongs and close frames are processed
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-sub.C:
			if !ok {
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "change stream closed"),
					time.Now().Add(changesWriteWait))
				return
			}
			_ = ws.SetWriteDeadline(time.Now().Add(changesWriteWait))
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.Debug("websocket write failed", slog.String("error", err.Error()))
				}
				return
			}
		case <-ticker.C:
			_ = ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(changesWriteWait))
		case <-gone:
			h.logger.Debug("change stream closed by client")
			return
		}
	}
}
