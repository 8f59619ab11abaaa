// Package inbox runs the webhook ingestion pipeline: normalize the provider
// payload, resolve contact and conversation, persist the message, trigger
// assignment for new conversations, and notify listeners.
package inbox

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crm360hq/crm360/internal/assignment"
	"github.com/crm360hq/crm360/internal/channel"
	"github.com/crm360hq/crm360/internal/contact"
	"github.com/crm360hq/crm360/internal/conversation"
	"github.com/crm360hq/crm360/internal/message"
)

// AccountReader looks up the webhook's channel account.
type AccountReader interface {
	GetAccount(ctx context.Context, id string) (channel.Account, error)
}

// ContactResolver find-or-creates the sender's contact.
type ContactResolver interface {
	Resolve(ctx context.Context, params contact.ResolveParams) (contact.Contact, bool, error)
}

// ConversationResolver find-or-creates the open thread.
type ConversationResolver interface {
	Resolve(ctx context.Context, params conversation.ResolveParams) (conversation.Conversation, bool, error)
}

// MessageIngestor persists inbound messages.
type MessageIngestor interface {
	Ingest(ctx context.Context, params message.IngestParams) (message.Message, error)
}

// StatusReconciler applies delivery-status callbacks.
type StatusReconciler interface {
	Reconcile(ctx context.Context, tenantID string, update channel.StatusUpdate) (message.ReconcileOutcome, error)
}

// Assigner runs rule evaluation for new conversations.
type Assigner interface {
	AssignNew(ctx context.Context, conv conversation.Conversation, input assignment.RuleInput) (*assignment.Decision, error)
}

// MessageNotifier announces ingested messages.
type MessageNotifier interface {
	NotifyNewMessage(ctx context.Context, tenantID string, msg message.Message)
}

// Pipeline processes one webhook delivery end to end.
type Pipeline struct {
	log           *slog.Logger
	registry      *channel.Registry
	accounts      AccountReader
	contacts      ContactResolver
	conversations ConversationResolver
	messages      MessageIngestor
	reconciler    StatusReconciler
	engine        Assigner
	notifier      MessageNotifier
}

func NewPipeline(log *slog.Logger, registry *channel.Registry, accounts AccountReader,
	contacts ContactResolver, conversations ConversationResolver, messages MessageIngestor,
	reconciler StatusReconciler, engine Assigner, notifier MessageNotifier) *Pipeline {
	return &Pipeline{
		log:           log.With(slog.String("service", "inbox")),
		registry:      registry,
		accounts:      accounts,
		contacts:      contacts,
		conversations: conversations,
		messages:      messages,
		reconciler:    reconciler,
		engine:        engine,
		notifier:      notifier,
	}
}

// Handle processes one raw webhook body. The returned error is for logging
// only; the webhook handler acknowledges the provider regardless, since
// provider retries cannot fix an internal failure and only amplify load.
func (p *Pipeline) Handle(ctx context.Context, accountID string, raw []byte) error {
	account, err := p.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return fmt.Errorf("channel account %s: %w", accountID, err)
	}
	if !account.IsActive {
		p.log.Info("webhook for inactive channel account dropped",
			slog.String("account_id", accountID))
		return nil
	}
	normalizer, ok := p.registry.Get(account.Provider)
	if !ok {
		return fmt.Errorf("no normalizer for provider %q", account.Provider)
	}

	result := normalizer.Normalize(account, raw)
	switch result.Kind {
	case channel.KindUnroutable:
		p.log.Info("unroutable payload dropped",
			slog.String("provider", account.Provider),
			slog.String("reason", result.Reason))
		return nil
	case channel.KindStatus:
		_, err := p.reconciler.Reconcile(ctx, account.TenantID, result.Status)
		if err != nil {
			return fmt.Errorf("reconcile status: %w", err)
		}
		return nil
	case channel.KindMessage:
		return p.ingestMessage(ctx, account, result.Message)
	default:
		return fmt.Errorf("unknown normalize result kind %q", result.Kind)
	}
}

func (p *Pipeline) ingestMessage(ctx context.Context, account channel.Account, inbound channel.InboundMessage) error {
	resolved, _, err := p.contacts.Resolve(ctx, contact.ResolveParams{
		TenantID:         account.TenantID,
		ChannelType:      inbound.Channel,
		Identifier:       inbound.SenderIdentifier,
		DisplayName:      inbound.SenderName,
		ChannelAccountID: account.ID,
		MessageAt:        inbound.ProviderTime,
	})
	if err != nil {
		return fmt.Errorf("resolve contact: %w", err)
	}

	conv, isNew, err := p.conversations.Resolve(ctx, conversation.ResolveParams{
		TenantID:         account.TenantID,
		ContactID:        resolved.ID,
		Identifier:       inbound.SenderIdentifier,
		ChannelType:      inbound.Channel,
		ChannelAccountID: account.ID,
		MessageAt:        inbound.ProviderTime,
	})
	if err != nil {
		return fmt.Errorf("resolve conversation: %w", err)
	}

	msg, err := p.messages.Ingest(ctx, message.IngestParams{
		TenantID:       account.TenantID,
		ConversationID: conv.ID,
		ContentType:    inbound.ContentType,
		Text:           inbound.Text,
		ExternalID:     inbound.ExternalID,
		ProviderTime:   inbound.ProviderTime,
	})
	if err != nil {
		return fmt.Errorf("ingest message: %w", err)
	}

	if p.notifier != nil {
		p.notifier.NotifyNewMessage(ctx, account.TenantID, msg)
	}

	// Assignment runs exactly once per conversation, at creation. The engine
	// also no-ops on an already-assigned conversation, so a duplicate trigger
	// cannot double-assign.
	if isNew {
		if _, err := p.engine.AssignNew(ctx, conv, assignment.RuleInput{
			ChannelType: inbound.Channel,
			MessageText: inbound.Text,
		}); err != nil {
			// The message is persisted; a failed assignment leaves the
			// conversation PENDING and visible in the inbox.
			p.log.Error("auto assignment failed",
				slog.String("conversation_id", conv.ID),
				slog.String("error", err.Error()))
		}
	}
	return nil
}
