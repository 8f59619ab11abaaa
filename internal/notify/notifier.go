package notify

import (
	"context"
	"log/slog"

	"github.com/crm360hq/crm360/internal/assignment"
	"github.com/crm360hq/crm360/internal/channel"
	"github.com/crm360hq/crm360/internal/message"
)

// Service is the notifier the ingestion pipeline and reconciler call into.
// Every method swallows downstream failures after logging them.
type Service struct {
	log       *slog.Logger
	hub       *Hub
	publisher Publisher
}

// NewService builds the notifier. publisher may be nil when no broker is
// configured; websocket fan-out still works.
func NewService(log *slog.Logger, hub *Hub, publisher Publisher) *Service {
	return &Service{
		log:       log.With(slog.String("service", "notify")),
		hub:       hub,
		publisher: publisher,
	}
}

// NotifyNewMessage announces an ingested inbound message.
func (s *Service) NotifyNewMessage(ctx context.Context, tenantID string, msg message.Message) {
	s.emit(ctx, KeyMessageReceived, newEvent(KeyMessageReceived, tenantID, map[string]any{
		"message_id":      msg.ID,
		"conversation_id": msg.ConversationID,
		"content_type":    msg.ContentType,
		"text":            msg.Text,
	}))
}

// NotifyStatusChange announces an applied delivery-status transition.
func (s *Service) NotifyStatusChange(ctx context.Context, tenantID, messageID string, status channel.MessageStatus, reason string) {
	payload := map[string]any{
		"message_id": messageID,
		"status":     string(status),
	}
	if reason != "" {
		payload["failure_reason"] = reason
	}
	s.emit(ctx, KeyMessageStatus, newEvent(KeyMessageStatus, tenantID, payload))
}

// NotifyAssignment announces an assignment decision, including which rule
// fired for audit.
func (s *Service) NotifyAssignment(ctx context.Context, tenantID, conversationID string, decision assignment.Decision) {
	s.emit(ctx, KeyConversationAssigned, newEvent(KeyConversationAssigned, tenantID, map[string]any{
		"conversation_id": conversationID,
		"rule_id":         decision.RuleID,
		"rule_name":       decision.RuleName,
		"assign_to_type":  string(decision.AssignToType),
		"user_id":         decision.UserID,
		"team_id":         decision.TeamID,
	}))
}

func (s *Service) emit(ctx context.Context, key string, event Event) {
	if s.hub != nil {
		s.hub.Broadcast(event.TenantID, event)
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, key, event); err != nil {
		s.log.Warn("publish event failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
}
