package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single write to the socket.
	writeWait = 10 * time.Second

	// pongWait is how long the client may stay silent before the stream is
	// considered dead.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// The client only sends control frames.
	maxMessageSize = 512
)

// NotificationHandler streams a session's notifications over a WebSocket.
type NotificationHandler struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewNotificationHandler creates a NotificationHandler. upgrader carries the
// origin policy.
func NewNotificationHandler(upgrader websocket.Upgrader, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{upgrader: upgrader, logger: logger}
}

// HandleStream upgrades the connection and writes every notification of the
// session as a JSON text frame until either side goes away or the session
// expires.
//
// HTTP: GET /api/notifications (WebSocket)
func (h *NotificationHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	// Subscribe first so nothing emitted during the handshake is lost.
	notes, unsubscribe := sess.Feed.Subscribe()
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	logger := h.logger.With(slog.String("session", sess.ID))
	logger.Debug("notification stream opened")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		readPump(conn, logger)
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case n, open := <-notes:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !open {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session expired"))
				return
			}
			if err := conn.WriteJSON(n); err != nil {
				logger.Debug("notification write failed", slog.String("error", err.Error()))
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-closed:
			logger.Debug("notification stream closed by client")
			return
		}
	}
}

// readPump drains client frames so pongs and close frames are processed.
// It returns when the connection fails or the peer stops answering pings.
func readPump(conn *websocket.Conn, logger *slog.Logger) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Info("notification stream read error", slog.String("error", err.Error()))
			}
			return
		}
	}
}
