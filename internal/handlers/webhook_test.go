package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

type scriptedPipeline struct {
	err    error
	bodies []string
}

func (s *scriptedPipeline) Handle(_ context.Context, _ string, raw []byte) error {
	s.bodies = append(s.bodies, string(raw))
	return s.err
}

func postWebhook(t *testing.T, pipeline WebhookPipeline, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	NewWebhookHandler(slog.Default(), pipeline).Register(e)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/msg91-whatsapp/acct-1", strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestWebhook_AcknowledgesSuccess(t *testing.T) {
	pipeline := &scriptedPipeline{}
	rec := postWebhook(t, pipeline, `{"entry":[]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(pipeline.bodies) != 1 || pipeline.bodies[0] != `{"entry":[]}` {
		t.Errorf("bodies = %v", pipeline.bodies)
	}
}

func TestWebhook_AcknowledgesInternalFailure(t *testing.T) {
	// Provider must get 200 even when processing fails; retries cannot fix an
	// internal error.
	pipeline := &scriptedPipeline{err: errors.New("db down")}
	rec := postWebhook(t, pipeline, `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 despite pipeline failure", rec.Code)
	}
}
