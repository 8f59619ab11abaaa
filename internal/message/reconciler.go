package message

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/crm360hq/crm360/internal/channel"
)

// ReconcileStore is the persistence surface the reconciler needs.
type ReconcileStore interface {
	FindOutboundByExternalID(ctx context.Context, tenantID, externalID string) (Message, error)
	ApplyStatus(ctx context.Context, messageID string, status channel.MessageStatus, reason string) (bool, error)
}

// StatusNotifier receives applied status changes. Failures are the notifier's
// problem; the reconciler never sees them.
type StatusNotifier interface {
	NotifyStatusChange(ctx context.Context, tenantID, messageID string, status channel.MessageStatus, reason string)
}

// Reconciler matches provider delivery callbacks to stored outbound messages
// and applies forward-only status transitions.
type Reconciler struct {
	log      *slog.Logger
	store    ReconcileStore
	notifier StatusNotifier
}

func NewReconciler(log *slog.Logger, store ReconcileStore, notifier StatusNotifier) *Reconciler {
	return &Reconciler{
		log:      log.With(slog.String("service", "reconciler")),
		store:    store,
		notifier: notifier,
	}
}

// Reconcile tries each candidate id in order until a stored outbound message
// matches, then conditionally applies the status. Unmatched callbacks are
// dropped: providers send reports for messages this system never tracked.
func (r *Reconciler) Reconcile(ctx context.Context, tenantID string, update channel.StatusUpdate) (ReconcileOutcome, error) {
	if update.Status == "" {
		return ReconcileOutcome{}, fmt.Errorf("status is required")
	}

	matched, ok, err := r.findByCandidates(ctx, tenantID, update.ExternalIDCandidates)
	if err != nil {
		return ReconcileOutcome{}, err
	}
	if !ok {
		r.log.Info("status callback matched no message",
			slog.String("status", string(update.Status)),
			slog.Int("candidates", len(update.ExternalIDCandidates)))
		return ReconcileOutcome{Applied: false, Status: update.Status}, nil
	}

	applied, err := r.store.ApplyStatus(ctx, matched.ID, update.Status, update.FailureReason)
	if err != nil {
		return ReconcileOutcome{}, fmt.Errorf("apply status: %w", err)
	}
	outcome := ReconcileOutcome{
		Applied:   applied,
		MatchedID: matched.ID,
		Status:    update.Status,
		Reason:    update.FailureReason,
	}
	if !applied {
		// Duplicate or out-of-order callback; current status already at or
		// past the reported one.
		r.log.Debug("status callback ignored",
			slog.String("message_id", matched.ID),
			slog.String("current", string(matched.Status)),
			slog.String("reported", string(update.Status)))
		return outcome, nil
	}

	r.log.Info("message status applied",
		slog.String("message_id", matched.ID),
		slog.String("status", string(update.Status)))
	if r.notifier != nil {
		r.notifier.NotifyStatusChange(ctx, tenantID, matched.ID, update.Status, update.FailureReason)
	}
	return outcome, nil
}

func (r *Reconciler) findByCandidates(ctx context.Context, tenantID string, candidates []string) (Message, bool, error) {
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" || channel.IsGeneratedExternalID(candidate) {
			continue
		}
		msg, err := r.store.FindOutboundByExternalID(ctx, tenantID, candidate)
		if err == nil {
			return msg, true, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Message{}, false, fmt.Errorf("lookup candidate id: %w", err)
		}
	}
	return Message{}, false, nil
}
