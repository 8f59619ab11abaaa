package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/crm360hq/crm360/internal/assignment"
	"github.com/crm360hq/crm360/internal/auth"
	"github.com/crm360hq/crm360/internal/channel"
)

type RulesHandler struct {
	rules  *assignment.Service
	logger *slog.Logger
}

func NewRulesHandler(log *slog.Logger, rules *assignment.Service) *RulesHandler {
	return &RulesHandler{
		rules:  rules,
		logger: log.With(slog.String("handler", "rules")),
	}
}

func (h *RulesHandler) Register(e *echo.Echo) {
	e.GET("/assignment-rules", h.List)
	e.POST("/assignment-rules", h.Create)
	e.GET("/assignment-rules/:id", h.Get)
	e.PUT("/assignment-rules/:id", h.Update)
	e.DELETE("/assignment-rules/:id", h.Delete)
}

type ruleRequest struct {
	Name              string   `json:"name" validate:"required"`
	Priority          int      `json:"priority"`
	ChannelType       string   `json:"channel_type"`
	Keywords          []string `json:"keywords"`
	BusinessHoursOnly *bool    `json:"business_hours_only"`
	PriorityTier      string   `json:"priority_tier"`
	AssignToType      string   `json:"assign_to_type" validate:"required,oneof=USER TEAM ROUND_ROBIN LEAST_BUSY"`
	AssignToID        string   `json:"assign_to_id"`
	AssignToTeamID    string   `json:"assign_to_team_id"`
	CandidateIDs      []string `json:"candidate_ids"`
	IsActive          bool     `json:"is_active"`
}

func (r ruleRequest) toRule(tenantID, ruleID string) assignment.Rule {
	return assignment.Rule{
		ID:                ruleID,
		TenantID:          tenantID,
		Name:              r.Name,
		Priority:          r.Priority,
		ChannelType:       channel.ChannelType(r.ChannelType),
		Keywords:          r.Keywords,
		BusinessHoursOnly: r.BusinessHoursOnly,
		PriorityTier:      r.PriorityTier,
		AssignToType:      assignment.AssignToType(r.AssignToType),
		AssignToID:        r.AssignToID,
		AssignToTeamID:    r.AssignToTeamID,
		CandidateIDs:      r.CandidateIDs,
		IsActive:          r.IsActive,
	}
}

func (h *RulesHandler) List(c echo.Context) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	rules, err := h.rules.List(c.Request().Context(), identity.TenantID)
	if err != nil {
		h.logger.Error("list rules failed", slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "list rules failed")
	}
	return c.JSON(http.StatusOK, rules)
}

func (h *RulesHandler) Get(c echo.Context) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	rule, err := h.rules.Get(c.Request().Context(), identity.TenantID, c.Param("id"))
	if errors.Is(err, assignment.ErrRuleNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "rule not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "get rule failed")
	}
	return c.JSON(http.StatusOK, rule)
}

func (h *RulesHandler) Create(c echo.Context) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	var req ruleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	created, err := h.rules.Create(c.Request().Context(), req.toRule(identity.TenantID, ""))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *RulesHandler) Update(c echo.Context) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	var req ruleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	updated, err := h.rules.Update(c.Request().Context(), req.toRule(identity.TenantID, c.Param("id")))
	if errors.Is(err, assignment.ErrRuleNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "rule not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *RulesHandler) Delete(c echo.Context) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	err = h.rules.Delete(c.Request().Context(), identity.TenantID, c.Param("id"))
	if errors.Is(err, assignment.ErrRuleNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "rule not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "delete rule failed")
	}
	return c.NoContent(http.StatusNoContent)
}
