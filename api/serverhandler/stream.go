package serverhandler

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wpbryant/WordOps-Dashboard/api/authhandler"
	"github.com/wpbryant/WordOps-Dashboard/interfaces"
)

// Application close codes sent before the stream is torn down.
const (
	CloseInvalidToken   = 4001
	CloseInvalidLogType = 4004
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

func (h *Handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin:     h.checkOrigin,
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.deps.AllowedOrigins) == 0 {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range h.deps.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) || strings.EqualFold(allowed, u.Host) {
			return true
		}
	}
	return false
}

// HandleLogStream upgrades to a websocket and pushes {"lines": [...]} every
// relay interval until either side goes away.
//
// URL format: GET /api/v1/server/logs/{type}/stream?token=<access token>
//
// The connection is accepted first and then closed with 4001 for a missing or
// invalid token, or 4004 for an unknown log type.
func (h *Handler) HandleLogStream(w http.ResponseWriter, r *http.Request) {
	logType := r.PathValue("type")
	conn, err := h.upgrader().Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Failed to upgrade log stream", "err", err)
		return
	}
	defer conn.Close()

	log := h.log.With("session", uuid.NewString(), "log_type", logType)

	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = authhandler.BearerToken(r)
	}
	if token == "" {
		closeWith(conn, CloseInvalidToken, "missing token")
		return
	}
	if _, err := h.deps.Verifier.Verify(token); err != nil {
		log.Warn("Rejected log stream token")
		closeWith(conn, CloseInvalidToken, "invalid token")
		return
	}

	sub, err := h.deps.Stream.Subscribe(logType)
	if err != nil {
		if interfaces.IsValidation(err) {
			closeWith(conn, CloseInvalidLogType, "invalid log type")
			return
		}
		log.Error("Failed to subscribe to log stream", "err", err)
		closeWith(conn, websocket.CloseInternalServerErr, "log stream unavailable")
		return
	}
	defer h.deps.Stream.Unsubscribe(sub)
	log.Info("Log stream opened", "subscriber", sub.ID)

	// The read loop only exists to process control frames and notice the
	// client going away.
	gone := make(chan struct{})
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case batch, ok := <-sub.C():
			if !ok {
				closeWith(conn, websocket.CloseGoingAway, "log stream stopped")
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(batch); err != nil {
				log.Debug("Log stream write failed", "err", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-gone:
			log.Info("Log stream closed by client", "subscriber", sub.ID)
			return
		}
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
