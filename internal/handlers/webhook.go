package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// WebhookPipeline processes one raw webhook delivery.
type WebhookPipeline interface {
	Handle(ctx context.Context, accountID string, raw []byte) error
}

// WebhookHandler is the provider-facing ingestion endpoint. It acknowledges
// every delivery with 200: a non-success response only makes providers retry
// payloads that will fail again.
type WebhookHandler struct {
	pipeline WebhookPipeline
	logger   *slog.Logger
}

func NewWebhookHandler(log *slog.Logger, pipeline WebhookPipeline) *WebhookHandler {
	return &WebhookHandler{
		pipeline: pipeline,
		logger:   log.With(slog.String("handler", "webhook")),
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhooks/:provider/:account_id", h.Handle)
}

func (h *WebhookHandler) Handle(c echo.Context) error {
	provider := strings.TrimSpace(c.Param("provider"))
	accountID := strings.TrimSpace(c.Param("account_id"))

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		h.logger.Warn("webhook body read failed",
			slog.String("provider", provider),
			slog.String("error", err.Error()))
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}

	if err := h.pipeline.Handle(c.Request().Context(), accountID, body); err != nil {
		h.logger.Error("webhook processing failed",
			slog.String("provider", provider),
			slog.String("account_id", accountID),
			slog.String("error", err.Error()))
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
