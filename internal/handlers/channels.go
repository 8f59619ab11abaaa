package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/crm360hq/crm360/internal/auth"
	"github.com/crm360hq/crm360/internal/channel"
)

type ChannelsHandler struct {
	store    *channel.Store
	registry *channel.Registry
	logger   *slog.Logger
}

func NewChannelsHandler(log *slog.Logger, store *channel.Store, registry *channel.Registry) *ChannelsHandler {
	return &ChannelsHandler{
		store:    store,
		registry: registry,
		logger:   log.With(slog.String("handler", "channels")),
	}
}

func (h *ChannelsHandler) Register(e *echo.Echo) {
	e.GET("/channel-accounts", h.List)
	e.POST("/channel-accounts", h.Create)
	e.GET("/channel-providers", h.Providers)
}

func (h *ChannelsHandler) List(c echo.Context) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	accounts, err := h.store.ListAccounts(c.Request().Context(), identity.TenantID)
	if err != nil {
		h.logger.Error("list channel accounts failed", slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "list channel accounts failed")
	}
	return c.JSON(http.StatusOK, accounts)
}

type createAccountRequest struct {
	Provider    string         `json:"provider" validate:"required"`
	ChannelType string         `json:"channel_type" validate:"required,oneof=whatsapp sms email voice"`
	DisplayName string         `json:"display_name"`
	Config      map[string]any `json:"config"`
}

func (h *ChannelsHandler) Create(c echo.Context) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	var req createAccountRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if _, ok := h.registry.Get(req.Provider); !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown provider")
	}
	created, err := h.store.CreateAccount(c.Request().Context(), channel.Account{
		TenantID:    identity.TenantID,
		Provider:    req.Provider,
		ChannelType: channel.ChannelType(req.ChannelType),
		DisplayName: req.DisplayName,
		Config:      req.Config,
		IsActive:    true,
	})
	if err != nil {
		h.logger.Error("create channel account failed", slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "create channel account failed")
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *ChannelsHandler) Providers(c echo.Context) error {
	if _, err := auth.IdentityFromContext(c); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return c.JSON(http.StatusOK, map[string]any{"providers": h.registry.Providers()})
}
