package message

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// MessageStore is the persistence surface for ingestion and thread reads.
type MessageStore interface {
	InsertInbound(ctx context.Context, params IngestParams) (Message, error)
	ListByConversation(ctx context.Context, tenantID, conversationID string, limit int) ([]Message, error)
}

type Service struct {
	log   *slog.Logger
	store MessageStore
}

func NewService(log *slog.Logger, store MessageStore) *Service {
	return &Service{
		log:   log.With(slog.String("service", "message")),
		store: store,
	}
}

// Ingest persists an inbound message on its conversation thread.
func (s *Service) Ingest(ctx context.Context, params IngestParams) (Message, error) {
	if strings.TrimSpace(params.ConversationID) == "" {
		return Message{}, fmt.Errorf("conversation id is required")
	}
	if params.ContentType == "" {
		params.ContentType = "text"
	}
	msg, err := s.store.InsertInbound(ctx, params)
	if err != nil {
		return Message{}, fmt.Errorf("ingest message: %w", err)
	}
	s.log.Info("message ingested",
		slog.String("message_id", msg.ID),
		slog.String("conversation_id", msg.ConversationID),
		slog.String("content_type", msg.ContentType))
	return msg, nil
}

// Thread returns a conversation's messages in arrival order.
func (s *Service) Thread(ctx context.Context, tenantID, conversationID string, limit int) ([]Message, error) {
	return s.store.ListByConversation(ctx, tenantID, conversationID, limit)
}
