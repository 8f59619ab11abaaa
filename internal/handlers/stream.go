package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/crm360hq/crm360/internal/auth"
	"github.com/crm360hq/crm360/internal/notify"
)

// StreamHandler upgrades inbox clients to a websocket fed by the notify hub.
// Auth rides the token query parameter, which the JWT middleware accepts.
type StreamHandler struct {
	hub      *notify.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewStreamHandler(log *slog.Logger, hub *notify.Hub) *StreamHandler {
	return &StreamHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: log.With(slog.String("handler", "stream")),
	}
}

func (h *StreamHandler) Register(e *echo.Echo) {
	e.GET("/inbox/stream", h.Stream)
}

func (h *StreamHandler) Stream(c echo.Context) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	h.hub.Add(identity.TenantID, conn)
	h.logger.Info("inbox stream connected",
		slog.String("agent_id", identity.AgentID),
		slog.String("tenant_id", identity.TenantID))

	// Reads only drain control frames; the hub owns all writes.
	go func() {
		defer func() {
			h.hub.Remove(identity.TenantID, conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}
