package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ConversationStore is the persistence surface the resolver needs.
type ConversationStore interface {
	Get(ctx context.Context, tenantID, conversationID string) (Conversation, error)
	FindOpen(ctx context.Context, tenantID, identifier, channelType string) (Conversation, error)
	Reserve(ctx context.Context, params ResolveParams) (Conversation, error)
	Touch(ctx context.Context, conversationID string, messageAt time.Time) error
	UpdateStatus(ctx context.Context, tenantID, conversationID string, status Status, snoozedUntil time.Time) error
	List(ctx context.Context, tenantID string, status Status, limit int) ([]Conversation, error)
}

type Service struct {
	log   *slog.Logger
	store ConversationStore
}

func NewService(log *slog.Logger, store ConversationStore) *Service {
	return &Service{
		log:   log.With(slog.String("service", "conversation")),
		store: store,
	}
}

// Resolve finds the open thread for the sender key, creating a PENDING one if
// none exists. isNew is true only on actual creation; that gates auto
// assignment, which runs exactly once per conversation lifetime.
func (s *Service) Resolve(ctx context.Context, params ResolveParams) (Conversation, bool, error) {
	existing, err := s.store.FindOpen(ctx, params.TenantID, params.Identifier, string(params.ChannelType))
	if err == nil {
		if touchErr := s.store.Touch(ctx, existing.ID, params.MessageAt); touchErr != nil {
			s.log.Warn("touch conversation failed",
				slog.String("conversation_id", existing.ID),
				slog.String("error", touchErr.Error()))
		}
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Conversation{}, false, fmt.Errorf("find open conversation: %w", err)
	}

	created, err := s.store.Reserve(ctx, params)
	if errors.Is(err, ErrNotFound) {
		// A concurrent delivery reserved the open slot first.
		winner, err := s.store.FindOpen(ctx, params.TenantID, params.Identifier, string(params.ChannelType))
		if err != nil {
			return Conversation{}, false, fmt.Errorf("refetch conversation after reserve race: %w", err)
		}
		if touchErr := s.store.Touch(ctx, winner.ID, params.MessageAt); touchErr != nil {
			s.log.Warn("touch conversation failed",
				slog.String("conversation_id", winner.ID),
				slog.String("error", touchErr.Error()))
		}
		return winner, false, nil
	}
	if err != nil {
		return Conversation{}, false, fmt.Errorf("reserve conversation: %w", err)
	}

	s.log.Info("conversation created",
		slog.String("conversation_id", created.ID),
		slog.String("channel", string(params.ChannelType)))
	return created, true, nil
}

// Get fetches one conversation scoped to the tenant.
func (s *Service) Get(ctx context.Context, tenantID, conversationID string) (Conversation, error) {
	return s.store.Get(ctx, tenantID, conversationID)
}

// List returns conversations for the inbox view.
func (s *Service) List(ctx context.Context, tenantID string, status Status, limit int) ([]Conversation, error) {
	return s.store.List(ctx, tenantID, status, limit)
}

var validTransitions = map[Status][]Status{
	StatusPending:  {StatusOpen, StatusSnoozed, StatusResolved, StatusClosed},
	StatusOpen:     {StatusSnoozed, StatusResolved, StatusClosed},
	StatusSnoozed:  {StatusOpen, StatusResolved, StatusClosed},
	StatusResolved: {StatusOpen, StatusClosed},
	StatusClosed:   {},
}

// SetStatus applies an agent-driven lifecycle transition.
func (s *Service) SetStatus(ctx context.Context, tenantID, conversationID string, next Status, snoozedUntil time.Time) error {
	current, err := s.store.Get(ctx, tenantID, conversationID)
	if err != nil {
		return err
	}
	if current.Status == next {
		return nil
	}
	allowed := false
	for _, candidate := range validTransitions[current.Status] {
		if candidate == next {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("invalid transition %s -> %s", current.Status, next)
	}
	if next != StatusSnoozed {
		snoozedUntil = time.Time{}
	}
	return s.store.UpdateStatus(ctx, tenantID, conversationID, next, snoozedUntil)
}
