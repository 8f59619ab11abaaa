package contact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ContactStore is the persistence surface the service needs.
type ContactStore interface {
	Find(ctx context.Context, tenantID, channelType, identifier string) (Contact, error)
	Insert(ctx context.Context, c Contact) (Contact, error)
	UpdateDisplayName(ctx context.Context, contactID, displayName string) error
	RecordActivity(ctx context.Context, tenantID, kind, subjectID string, detail map[string]any) error
}

type Service struct {
	log   *slog.Logger
	store ContactStore
}

func NewService(log *slog.Logger, store ContactStore) *Service {
	return &Service{
		log:   log.With(slog.String("service", "contact")),
		store: store,
	}
}

// Resolve finds the contact for an inbound sender, creating one if needed.
// Safe under concurrent webhook deliveries for the same sender: the insert
// races on the unique key and the loser refetches.
func (s *Service) Resolve(ctx context.Context, params ResolveParams) (Contact, bool, error) {
	identifier := strings.TrimSpace(params.Identifier)
	if identifier == "" {
		return Contact{}, false, fmt.Errorf("identifier is required")
	}

	existing, err := s.store.Find(ctx, params.TenantID, string(params.ChannelType), identifier)
	if err == nil {
		s.backfillName(ctx, existing, params.DisplayName)
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Contact{}, false, fmt.Errorf("find contact: %w", err)
	}

	created, err := s.store.Insert(ctx, Contact{
		TenantID:              params.TenantID,
		Identifier:            identifier,
		ChannelType:           params.ChannelType,
		DisplayName:           strings.TrimSpace(params.DisplayName),
		Source:                "inbound_message",
		LifecycleStage:        "lead",
		Consent:               map[string]bool{string(params.ChannelType): true},
		FirstChannelAccountID: params.ChannelAccountID,
		FirstMessageAt:        params.MessageAt,
	})
	if errors.Is(err, ErrNotFound) {
		// Another delivery created it between our find and insert.
		existing, err = s.store.Find(ctx, params.TenantID, string(params.ChannelType), identifier)
		if err != nil {
			return Contact{}, false, fmt.Errorf("refetch contact after insert race: %w", err)
		}
		return existing, false, nil
	}
	if err != nil {
		return Contact{}, false, fmt.Errorf("create contact: %w", err)
	}

	if err := s.store.RecordActivity(ctx, params.TenantID, "contact_created", created.ID, map[string]any{
		"channel":    string(params.ChannelType),
		"identifier": identifier,
	}); err != nil {
		s.log.Warn("record contact activity failed", slog.String("error", err.Error()))
	}
	s.log.Info("contact created",
		slog.String("contact_id", created.ID),
		slog.String("channel", string(params.ChannelType)))
	return created, true, nil
}

// backfillName fills the display name from provider profile data when the
// stored contact has none. Never overwrites an agent-entered name.
func (s *Service) backfillName(ctx context.Context, existing Contact, name string) {
	name = strings.TrimSpace(name)
	if name == "" || existing.DisplayName != "" {
		return
	}
	if err := s.store.UpdateDisplayName(ctx, existing.ID, name); err != nil {
		s.log.Warn("backfill contact name failed",
			slog.String("contact_id", existing.ID),
			slog.String("error", err.Error()))
	}
}
