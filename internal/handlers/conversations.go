package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/crm360hq/crm360/internal/assignment"
	"github.com/crm360hq/crm360/internal/auth"
	"github.com/crm360hq/crm360/internal/conversation"
	"github.com/crm360hq/crm360/internal/message"
)

type ConversationsHandler struct {
	conversations *conversation.Service
	messages      *message.Service
	engine        *assignment.Engine
	logger        *slog.Logger
}

func NewConversationsHandler(log *slog.Logger, conversations *conversation.Service,
	messages *message.Service, engine *assignment.Engine) *ConversationsHandler {
	return &ConversationsHandler{
		conversations: conversations,
		messages:      messages,
		engine:        engine,
		logger:        log.With(slog.String("handler", "conversations")),
	}
}

func (h *ConversationsHandler) Register(e *echo.Echo) {
	e.GET("/conversations", h.List)
	e.GET("/conversations/:id", h.Get)
	e.GET("/conversations/:id/messages", h.Messages)
	e.PUT("/conversations/:id/status", h.SetStatus)
	e.POST("/conversations/:id/assign", h.TriggerAssignment)
}

func (h *ConversationsHandler) List(c echo.Context) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	status := conversation.Status(c.QueryParam("status"))
	items, err := h.conversations.List(c.Request().Context(), identity.TenantID, status, 0)
	if err != nil {
		h.logger.Error("list conversations failed", slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "list conversations failed")
	}
	return c.JSON(http.StatusOK, items)
}

func (h *ConversationsHandler) Get(c echo.Context) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	conv, err := h.conversations.Get(c.Request().Context(), identity.TenantID, c.Param("id"))
	if errors.Is(err, conversation.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "get conversation failed")
	}
	return c.JSON(http.StatusOK, conv)
}

func (h *ConversationsHandler) Messages(c echo.Context) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	items, err := h.messages.Thread(c.Request().Context(), identity.TenantID, c.Param("id"), 0)
	if err != nil {
		h.logger.Error("list messages failed", slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "list messages failed")
	}
	return c.JSON(http.StatusOK, items)
}

type setStatusRequest struct {
	Status       string     `json:"status" validate:"required,oneof=PENDING OPEN SNOOZED RESOLVED CLOSED"`
	SnoozedUntil *time.Time `json:"snoozed_until"`
}

func (h *ConversationsHandler) SetStatus(c echo.Context) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	var req setStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	var snoozedUntil time.Time
	if req.SnoozedUntil != nil {
		snoozedUntil = *req.SnoozedUntil
	}
	err = h.conversations.SetStatus(c.Request().Context(), identity.TenantID, c.Param("id"),
		conversation.Status(req.Status), snoozedUntil)
	if errors.Is(err, conversation.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

type triggerAssignmentRequest struct {
	Reassign     bool   `json:"reassign"`
	MessageText  string `json:"message_text"`
	PriorityTier string `json:"priority_tier"`
}

type triggerAssignmentResponse struct {
	Assigned bool                 `json:"assigned"`
	Decision *assignment.Decision `json:"decision,omitempty"`
}

// TriggerAssignment is the operator entry point for re-running assignment.
// Without the reassign flag it is a no-op on an assigned conversation.
func (h *ConversationsHandler) TriggerAssignment(c echo.Context) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	var req triggerAssignmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	decision, err := h.engine.Trigger(c.Request().Context(), identity.TenantID, c.Param("id"),
		assignment.RuleInput{MessageText: req.MessageText, PriorityTier: req.PriorityTier},
		req.Reassign)
	if errors.Is(err, conversation.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	}
	if err != nil {
		h.logger.Error("trigger assignment failed",
			slog.String("conversation_id", c.Param("id")),
			slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "trigger assignment failed")
	}
	return c.JSON(http.StatusOK, triggerAssignmentResponse{
		Assigned: decision != nil,
		Decision: decision,
	})
}
