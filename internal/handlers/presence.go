package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/crm360hq/crm360/internal/auth"
	"github.com/crm360hq/crm360/internal/presence"
)

type PresenceHandler struct {
	presence *presence.Service
	logger   *slog.Logger
}

func NewPresenceHandler(log *slog.Logger, svc *presence.Service) *PresenceHandler {
	return &PresenceHandler{
		presence: svc,
		logger:   log.With(slog.String("handler", "presence")),
	}
}

func (h *PresenceHandler) Register(e *echo.Echo) {
	e.PUT("/presence", h.SetOnline)
	e.POST("/presence/heartbeat", h.Heartbeat)
	e.GET("/presence/online", h.ListOnline)
}

type setPresenceRequest struct {
	Online bool `json:"online"`
}

func (h *PresenceHandler) SetOnline(c echo.Context) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	var req setPresenceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.presence.SetOnline(c.Request().Context(), identity.TenantID, identity.AgentID, req.Online); err != nil {
		h.logger.Error("set presence failed", slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "set presence failed")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *PresenceHandler) Heartbeat(c echo.Context) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if err := h.presence.Heartbeat(c.Request().Context(), identity.AgentID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "heartbeat failed")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *PresenceHandler) ListOnline(c echo.Context) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	online, err := h.presence.ListOnline(c.Request().Context(), identity.TenantID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "list online failed")
	}
	return c.JSON(http.StatusOK, map[string]any{"agent_ids": online})
}
