package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/crm360hq/crm360/internal/agent"
	"github.com/crm360hq/crm360/internal/auth"
)

type AuthHandler struct {
	agents    *agent.Service
	jwtSecret string
	expiresIn time.Duration
	logger    *slog.Logger
}

func NewAuthHandler(log *slog.Logger, agents *agent.Service, jwtSecret string, expiresIn time.Duration) *AuthHandler {
	return &AuthHandler{
		agents:    agents,
		jwtSecret: jwtSecret,
		expiresIn: expiresIn,
		logger:    log.With(slog.String("handler", "auth")),
	}
}

func (h *AuthHandler) Register(e *echo.Echo) {
	e.POST("/auth/login", h.Login)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	AgentID   string    `json:"agent_id"`
	TenantID  string    `json:"tenant_id"`
	Role      string    `json:"role"`
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	found, err := h.agents.Authenticate(c.Request().Context(), req.Email, req.Password)
	if errors.Is(err, agent.ErrInvalidCredentials) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if err != nil {
		h.logger.Error("login failed", slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
	}

	token, expiresAt, err := auth.GenerateToken(found.ID, found.TenantID, found.Role, h.jwtSecret, h.expiresIn)
	if err != nil {
		h.logger.Error("token generation failed", slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
	}
	return c.JSON(http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		AgentID:   found.ID,
		TenantID:  found.TenantID,
		Role:      found.Role,
	})
}
